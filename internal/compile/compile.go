// Package compile renders diff plans into dialect specific SQL.
package compile

import (
	"fmt"
	"strings"

	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/diff"
	"github.com/ddlkit/ddlkit/internal/logger"
)

// Breakpoint separates statements of one migration file that the migrator
// runs independently.
const Breakpoint = "--> statement-breakpoint"

// Compiler turns a plan into SQL for one dialect.
type Compiler interface {
	Compile(plan *diff.Plan) (*Result, error)
}

// Result is the rendered SQL of a plan. Statements and Steps are parallel.
type Result struct {
	Statements []string
	Steps      []Step
	Warnings   []Warning
}

// For returns the compiler for dialect d.
func For(d ddl.Dialect) (Compiler, error) {
	switch d {
	case ddl.PostgreSQL:
		return &postgres{dialect: d, q: doubleQuotes}, nil
	case ddl.Cockroach:
		return &postgres{dialect: d, q: doubleQuotes, cockroach: true}, nil
	case ddl.MySQL:
		return &mysql{q: backticks}, nil
	case ddl.SQLite:
		return &sqlite{q: backticks}, nil
	}
	return nil, fmt.Errorf("unsupported dialect %q", d)
}

// Compile is a shorthand for For(plan.Dialect) followed by Compile.
func Compile(plan *diff.Plan) (*Result, error) {
	c, err := For(plan.Dialect)
	if err != nil {
		return nil, err
	}
	return c.Compile(plan)
}

// run drives a renderer and assembles the result. Nothing is returned when
// the renderer fails.
func run(plan *diff.Plan, d ddl.Dialect, render func(c *collector) error) (*Result, error) {
	if plan.Dialect != d {
		return nil, fmt.Errorf("cannot compile %s plan as %s", plan.Dialect, d)
	}
	c := &collector{}
	if err := render(c); err != nil {
		return nil, err
	}

	res := &Result{
		Steps:    c.steps,
		Warnings: append(warnings(plan), c.warnings...),
	}
	for _, s := range c.steps {
		res.Statements = append(res.Statements, s.SQL)
	}
	logger.Get().Debug("Compiled plan",
		"dialect", d,
		"statements", len(res.Statements),
		"warnings", len(res.Warnings))
	return res, nil
}

func unsupported(d ddl.Dialect, s diff.Statement, reason string) error {
	return &diff.UnsupportedChangeError{Subject: s.Subject(), Dialect: d, Reason: reason}
}

// Join renders the body of a migration file.
func Join(stmts []string, breakpoints bool) string {
	if len(stmts) == 0 {
		return ""
	}
	sep := "\n"
	if breakpoints {
		sep = "\n" + Breakpoint + "\n"
	}
	return strings.Join(stmts, sep) + "\n"
}

// Split is the inverse of Join with breakpoints. A body without breakpoints
// is returned as a single statement.
func Split(body string) []string {
	var out []string
	for _, part := range strings.Split(body, Breakpoint) {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// renderDefault keeps literals as written and parenthesizes expressions,
// which every dialect accepts in a DEFAULT clause.
func renderDefault(def string) string {
	if ddl.IsLiteralDefault(def) {
		return def
	}
	return wrap(def)
}

func sequenceOptions(increment, min, max, start, cache string, cycle bool) string {
	var b strings.Builder
	add := func(kw, v string) {
		if v != "" {
			b.WriteString(" " + kw + " " + v)
		}
	}
	add("INCREMENT BY", increment)
	add("MINVALUE", min)
	add("MAXVALUE", max)
	add("START WITH", start)
	add("CACHE", cache)
	if cycle {
		b.WriteString(" CYCLE")
	}
	return strings.TrimSpace(b.String())
}
