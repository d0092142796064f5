package generate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ddlkit/ddlkit/cmd/util"
	"github.com/ddlkit/ddlkit/ddlkit"
	"github.com/ddlkit/ddlkit/internal/journal"
)

var (
	generateName          string
	generateDefaultSchema string
	generateCustom        bool
	generateRenames       []string
)

var GenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a migration from schema changes",
	Long: `Compare the declared schema (--schema) with the latest snapshot of the
migration folder (--out) and write the SQL of the differences as a new
migration. Renames are asked for on a terminal unless --renames is given.`,
	RunE:         runGenerate,
	SilenceUsage: true,
}

func init() {
	GenerateCmd.Flags().StringVar(&generateName, "name", "", "Migration name (default: random)")
	GenerateCmd.Flags().String("dialect", "", "Database dialect: postgresql, cockroach, mysql or sqlite (config: dialect)")
	GenerateCmd.Flags().String("schema", "", "Schema .sql file, directory of .sql files, or snapshot .json (config: schema)")
	GenerateCmd.Flags().String("out", "drizzle", "Migration folder (config: out)")
	GenerateCmd.Flags().String("prefix", "index", "Tag prefix: index, timestamp, unix or none (config: migrations.prefix)")
	GenerateCmd.Flags().Bool("breakpoints", true, "Separate statements with breakpoint markers (config: breakpoints)")
	GenerateCmd.Flags().StringVar(&generateDefaultSchema, "default-schema", "", "Schema of unqualified objects in .sql files (default: public)")
	GenerateCmd.Flags().BoolVar(&generateCustom, "custom", false, "Write an empty migration for hand-written SQL")
	GenerateCmd.Flags().StringSliceVar(&generateRenames, "renames", nil, "Renames to apply, e.g. public.users.name->public.users.full_name")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg := util.Current()
	dialect, err := cfg.ParsedDialect()
	if err != nil {
		return err
	}
	prefix, err := journal.ParsePrefixMode(cfg.MigrationsPrefix)
	if err != nil {
		return err
	}
	r, err := util.NewResolver(generateRenames)
	if err != nil {
		return err
	}

	folder := cfg.Folder()
	folder.Dialect = dialect
	res, err := ddlkit.Generate(cmd.Context(), ddlkit.GenerateOptions{
		FolderOptions: folder,
		Schema:        cfg.Schema,
		DefaultSchema: generateDefaultSchema,
		Name:          generateName,
		Prefix:        prefix,
		Breakpoints:   cfg.Breakpoints,
		Custom:        generateCustom,
		Resolver:      r,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	c := util.Colors()
	util.PrintIssues(out, c, res.Issues)
	if res.Entry == nil {
		fmt.Fprintln(out, "No schema changes, nothing to migrate")
		return nil
	}
	if res.Plan != nil {
		util.PrintPlan(out, c, res.Plan)
	}
	util.PrintWarnings(out, c, res.Warnings)
	fmt.Fprintf(out, "%s Your SQL migration file %s\n", c.Add("[✓]"), c.Bold(res.Path))
	return nil
}
