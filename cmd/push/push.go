package push

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ddlkit/ddlkit/cmd/util"
	"github.com/ddlkit/ddlkit/ddlkit"
	"github.com/ddlkit/ddlkit/internal/compile"
)

var (
	pushDefaultSchema string
	pushSchemas       []string
	pushForce         bool
	pushDryRun        bool
	pushRenames       []string
)

var PushCmd = &cobra.Command{
	Use:   "push",
	Short: "Apply schema changes directly to a database",
	Long: `Introspect the database at --url, diff it against the declared schema and
apply the differences in one transaction without writing a migration.
Data loss statements ask for confirmation unless --force is given; with
--strict every change asks.`,
	RunE:         runPush,
	SilenceUsage: true,
}

func init() {
	PushCmd.Flags().String("dialect", "", "Database dialect: postgresql, cockroach, mysql or sqlite (config: dialect)")
	PushCmd.Flags().String("schema", "", "Schema .sql file, directory of .sql files, or snapshot .json (config: schema)")
	PushCmd.Flags().String("url", "", "Database URL (config: dbCredentials.url, env: DDLKIT_DATABASE_URL)")
	PushCmd.Flags().Bool("strict", false, "Ask for confirmation before any change (config: strict)")
	PushCmd.Flags().Bool("verbose", false, "Print every SQL statement (config: verbose)")
	PushCmd.Flags().String("migrations-table", "", "Tracking table (config: migrations.table)")
	PushCmd.Flags().String("migrations-schema", "", "Tracking table schema (config: migrations.schema)")
	PushCmd.Flags().StringVar(&pushDefaultSchema, "default-schema", "", "Schema of unqualified objects in .sql files (default: public)")
	PushCmd.Flags().StringSliceVar(&pushSchemas, "schemas", nil, "Postgres schemas to compare (default: those the schema declares)")
	PushCmd.Flags().BoolVar(&pushForce, "force", false, "Apply data loss statements without asking")
	PushCmd.Flags().BoolVar(&pushDryRun, "dry-run", false, "Print the SQL without executing it")
	PushCmd.Flags().StringSliceVar(&pushRenames, "renames", nil, "Renames to apply, e.g. public.users.name->public.users.full_name")
}

func runPush(cmd *cobra.Command, args []string) error {
	cfg := util.Current()
	dialect, err := cfg.ParsedDialect()
	if err != nil {
		return err
	}
	if cfg.URL == "" {
		return fmt.Errorf("database url is required, set --url, dbCredentials.url or DDLKIT_DATABASE_URL")
	}
	r, err := util.NewResolver(pushRenames)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	c := util.Colors()
	confirm := func(warnings []compile.Warning, statements []string) (bool, error) {
		if cfg.Verbose || cfg.Strict {
			util.PrintStatements(out, statements)
		}
		util.PrintWarnings(out, c, warnings)
		if pushForce {
			return true, nil
		}
		return util.Confirm(fmt.Sprintf("Apply %d statements?", len(statements)))
	}

	res, err := ddlkit.Push(cmd.Context(), ddlkit.PushOptions{
		Fs:            util.AppFs,
		Dialect:       dialect,
		URL:           cfg.URL,
		Schema:        cfg.Schema,
		DefaultSchema: pushDefaultSchema,
		Schemas:       pushSchemas,
		Resolver:      r,
		DryRun:        pushDryRun,
		Confirm:       confirm,
		Strict:        cfg.Strict,
		TrackerTable:  cfg.MigrationsTable,
		TrackerSchema: cfg.MigrationsSchema,
	})
	if errors.Is(err, ddlkit.ErrAborted) {
		fmt.Fprintln(out, "Push aborted, no changes applied")
		return nil
	}
	if err != nil {
		return err
	}

	util.PrintIssues(out, c, res.Issues)
	if res.Plan == nil || res.Plan.Empty() {
		fmt.Fprintln(out, "No schema changes, nothing to push")
		return nil
	}
	util.PrintPlan(out, c, res.Plan)
	if pushDryRun {
		util.PrintWarnings(out, c, res.Warnings)
		util.PrintStatements(out, res.Statements)
		return nil
	}
	if cfg.Verbose && len(res.Warnings) == 0 && !cfg.Strict {
		util.PrintStatements(out, res.Statements)
	}
	fmt.Fprintf(out, "%s Changes applied\n", c.Add("[✓]"))
	return nil
}
