package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ddlkit/ddlkit/cmd/util"
	"github.com/ddlkit/ddlkit/ddlkit"
	"github.com/ddlkit/ddlkit/internal/snapshot"
)

var (
	introspectOutput  string
	introspectSchemas []string
	introspectExclude []string
	introspectRoles   bool
)

var IntrospectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Write a snapshot of a live database",
	Long: `Read the database at --url and write it as a snapshot JSON file. The file
can be used as --schema of generate and push.`,
	RunE:         runIntrospect,
	SilenceUsage: true,
}

func init() {
	IntrospectCmd.Flags().String("dialect", "", "Database dialect: postgresql, cockroach, mysql or sqlite (config: dialect)")
	IntrospectCmd.Flags().String("url", "", "Database URL (config: dbCredentials.url, env: DDLKIT_DATABASE_URL)")
	IntrospectCmd.Flags().StringVarP(&introspectOutput, "output", "o", "schema.json", "Snapshot file to write")
	IntrospectCmd.Flags().StringSliceVar(&introspectSchemas, "schemas", nil, "Postgres schemas to read (default: every user schema)")
	IntrospectCmd.Flags().StringSliceVar(&introspectExclude, "exclude", nil, "Tables to skip, table or schema.table")
	IntrospectCmd.Flags().BoolVar(&introspectRoles, "roles", false, "Read non-system roles (postgres family)")
}

func runIntrospect(cmd *cobra.Command, args []string) error {
	cfg := util.Current()
	dialect, err := cfg.ParsedDialect()
	if err != nil {
		return err
	}
	if cfg.URL == "" {
		return fmt.Errorf("database url is required, set --url, dbCredentials.url or DDLKIT_DATABASE_URL")
	}

	snap, issues, err := ddlkit.Introspect(cmd.Context(), ddlkit.IntrospectOptions{
		Dialect:       dialect,
		URL:           cfg.URL,
		Schemas:       introspectSchemas,
		ExcludeTables: introspectExclude,
		Roles:         introspectRoles,
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	c := util.Colors()
	util.PrintIssues(out, c, issues)

	data, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(introspectOutput); dir != "." {
		if err := util.AppFs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(util.AppFs, introspectOutput, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	fmt.Fprintf(out, "%s Wrote %d tables to %s\n", c.Add("[✓]"), len(snap.Tables), c.Bold(introspectOutput))
	return nil
}
