package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ddlkit/ddlkit/cmd/generate"
	"github.com/ddlkit/ddlkit/cmd/push"
	"github.com/ddlkit/ddlkit/cmd/util"
	"github.com/ddlkit/ddlkit/internal/logger"
	"github.com/ddlkit/ddlkit/internal/version"
)

var Debug bool
var configPath string

var RootCmd = &cobra.Command{
	Use:   "ddlkit",
	Short: "Schema diff and migration tool",
	Long: fmt.Sprintf(`ddlkit diffs a declared schema against migration snapshots or a live
database and writes the SQL that gets from one to the other.

Version: %s

Commands:
  generate    Generate a migration from schema changes
  push        Apply schema changes directly to a database
  drop        Remove a migration from the journal
  check       Validate the migration folder
  up          Upgrade snapshots to the current format
  introspect  Write a snapshot of a live database

Use "ddlkit [command] --help" for more information about a command.`, version.String()),
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()
		_, err := util.LoadConfig(cmd, configPath, cmd.Flags().Changed("config"))
		return err
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "Enable debug logging")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", util.DefaultConfigFile, "Path to the config file")
	RootCmd.PersistentFlags().BoolVar(&util.NoColor, "no-color", false, "Disable colored output")
	RootCmd.AddCommand(generate.GenerateCmd)
	RootCmd.AddCommand(push.PushCmd)
	RootCmd.AddCommand(DropCmd)
	RootCmd.AddCommand(CheckCmd)
	RootCmd.AddCommand(UpCmd)
	RootCmd.AddCommand(IntrospectCmd)
	RootCmd.AddCommand(VersionCmd)
}

func setupLogger() {
	logger.SetGlobal(logger.New(os.Stderr, Debug), Debug)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, util.Colors().Destroy("Error: "+err.Error()))
		os.Exit(1)
	}
}
