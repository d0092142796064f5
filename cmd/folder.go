package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ddlkit/ddlkit/cmd/util"
	"github.com/ddlkit/ddlkit/ddlkit"
)

var dropTag string

var DropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Remove a migration from the journal",
	Long: `Remove a migration (--tag, default: the latest) with its SQL file and
snapshot. A migration whose snapshot is the parent of another one cannot
be dropped.`,
	RunE:         runDrop,
	SilenceUsage: true,
}

var CheckCmd = &cobra.Command{
	Use:          "check",
	Short:        "Validate the migration folder",
	Long:         "Check that every migration has its files and that the snapshots form a single lineage without collisions.",
	RunE:         runCheck,
	SilenceUsage: true,
}

var UpCmd = &cobra.Command{
	Use:          "up",
	Short:        "Upgrade snapshots to the current format",
	Long:         "Rewrite snapshots written by older versions of ddlkit to the current snapshot version.",
	RunE:         runUp,
	SilenceUsage: true,
}

func init() {
	for _, c := range []*cobra.Command{DropCmd, CheckCmd, UpCmd} {
		c.Flags().String("out", "drizzle", "Migration folder (config: out)")
		c.Flags().String("dialect", "", "Expected dialect of the journal (config: dialect)")
	}
	DropCmd.Flags().StringVar(&dropTag, "tag", "", "Tag of the migration to drop (default: latest)")
}

func runDrop(cmd *cobra.Command, args []string) error {
	entry, err := ddlkit.Drop(cmd.Context(), util.Current().Folder(), dropTag)
	if err != nil {
		return err
	}
	c := util.Colors()
	fmt.Fprintf(cmd.OutOrStdout(), "%s Dropped migration %s\n", c.Destroy("[-]"), c.Bold(entry.Tag))
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	problems, err := ddlkit.Check(cmd.Context(), util.Current().Folder())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	c := util.Colors()
	if len(problems) == 0 {
		fmt.Fprintf(out, "%s Everything's fine\n", c.Add("[✓]"))
		return nil
	}
	for _, p := range problems {
		fmt.Fprintln(out, c.Destroy(p.String()))
	}
	return fmt.Errorf("migration folder has %d problem(s)", len(problems))
}

func runUp(cmd *cobra.Command, args []string) error {
	tags, err := ddlkit.Upgrade(cmd.Context(), util.Current().Folder())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(tags) == 0 {
		fmt.Fprintln(out, "Everything's fine, snapshots are up to date")
		return nil
	}
	for _, tag := range tags {
		fmt.Fprintf(out, "%s Upgraded %s\n", util.Colors().Add("[✓]"), tag)
	}
	return nil
}
