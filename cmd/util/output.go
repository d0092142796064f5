package util

import (
	"fmt"
	"io"
	"strings"

	"github.com/ddlkit/ddlkit/internal/color"
	"github.com/ddlkit/ddlkit/internal/compile"
	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/diff"
)

// NoColor disables colored output for every command.
var NoColor bool

// Colors returns the colorizer for command output.
func Colors() *color.Color {
	return color.New(!NoColor)
}

// action classifies a statement kind as add, change or drop.
func action(k diff.StatementKind) string {
	name := k.String()
	switch {
	case strings.HasPrefix(name, "create_"), strings.HasPrefix(name, "add_"), strings.HasPrefix(name, "enable_"):
		return "add"
	case strings.HasPrefix(name, "drop_"), strings.HasPrefix(name, "disable_"):
		return "drop"
	default:
		return "change"
	}
}

// PrintPlan writes a one line per statement summary of plan.
func PrintPlan(w io.Writer, c *color.Color, plan *diff.Plan) {
	var added, changed, dropped int
	lines := make([]string, 0, len(plan.Statements))
	for _, s := range plan.Statements {
		a := action(s.Kind())
		switch a {
		case "add":
			added++
		case "drop":
			dropped++
		default:
			changed++
		}
		lines = append(lines, c.FormatPlanLine(a, s.Kind().String(), s.Subject().Qualified()))
	}
	fmt.Fprintln(w, c.Bold(c.FormatPlanHeader(added, changed, dropped)))
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

// PrintStatements writes the SQL that will run.
func PrintStatements(w io.Writer, stmts []string) {
	for _, s := range stmts {
		fmt.Fprintln(w, s)
	}
}

// PrintWarnings writes data loss warnings in yellow.
func PrintWarnings(w io.Writer, c *color.Color, warnings []compile.Warning) {
	for _, warning := range warnings {
		fmt.Fprintln(w, c.Warn(warning.String()))
	}
}

// PrintIssues writes schema issues in red.
func PrintIssues(w io.Writer, c *color.Color, issues []ddl.Issue) {
	for _, issue := range issues {
		fmt.Fprintln(w, c.Destroy("Error: "+issue.Error()))
	}
}
