package compile

import (
	"strings"

	"github.com/ddlkit/ddlkit/internal/diff"
)

// Step is a single SQL statement with the abstract statement it renders.
type Step struct {
	SQL     string         `json:"sql"`
	Kind    string         `json:"kind"`
	Subject string         `json:"subject"`
	Source  diff.Statement `json:"-"`
}

// stepRebuildTable marks statements of a sqlite table rebuild.
const stepRebuildTable = "rebuild_table"

// collector collects rendered SQL with its context information
type collector struct {
	steps    []Step
	warnings []Warning
}

// collect records one or more SQL statements rendered from src.
func (c *collector) collect(src diff.Statement, stmts ...string) {
	for _, sql := range stmts {
		c.steps = append(c.steps, Step{
			SQL:     strings.TrimSpace(sql),
			Kind:    src.Kind().String(),
			Subject: src.Subject().Qualified(),
			Source:  src,
		})
	}
}

// collectAs records statements that do not map to a single abstract
// statement, such as the parts of a table rebuild.
func (c *collector) collectAs(kind, subject string, stmts ...string) {
	for _, sql := range stmts {
		c.steps = append(c.steps, Step{
			SQL:     strings.TrimSpace(sql),
			Kind:    kind,
			Subject: subject,
		})
	}
}

func (c *collector) warn(w Warning) {
	c.warnings = append(c.warnings, w)
}
