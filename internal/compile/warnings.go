package compile

import (
	"fmt"
	"strings"

	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/diff"
)

// WarningKind classifies a destructive change.
type WarningKind string

const (
	WarnDropTable    WarningKind = "drop_table"
	WarnDropColumn   WarningKind = "drop_column"
	WarnDropSchema   WarningKind = "drop_schema"
	WarnDropEnum     WarningKind = "drop_enum"
	WarnTypeChange   WarningKind = "type_change"
	WarnSetNotNull   WarningKind = "set_not_null"
	WarnAddNotNull   WarningKind = "add_not_null"
	WarnTableRebuild WarningKind = "table_rebuild"
)

// Warning is a destructive change warning. It never stops compilation; the
// caller decides whether to ask for confirmation.
type Warning struct {
	Kind    WarningKind
	Subject ddl.Key
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Subject.Qualified(), w.Message)
}

// warnings collects the dialect independent warnings of a plan.
func warnings(plan *diff.Plan) []Warning {
	var out []Warning
	for _, s := range plan.Statements {
		switch s := s.(type) {
		case *diff.DropTable:
			out = append(out, Warning{WarnDropTable, s.Subject(), "table is dropped with all its rows"})
		case *diff.DropColumn:
			out = append(out, Warning{WarnDropColumn, s.Subject(), "column is dropped with its data"})
		case *diff.DropSchema:
			out = append(out, Warning{WarnDropSchema, s.Subject(), "schema is dropped"})
		case *diff.DropEnum:
			out = append(out, Warning{WarnDropEnum, s.Subject(), "enum type is dropped"})
		case *diff.AlterColumn:
			if s.Changes.Has(diff.ChangeType) {
				out = append(out, Warning{WarnTypeChange, s.Subject(),
					fmt.Sprintf("type changes from %s to %s, values that do not convert are lost or fail", s.From.Type, s.To.Type)})
			}
			if s.Changes.Has(diff.ChangeNotNull) && s.To.NotNull {
				out = append(out, Warning{WarnSetNotNull, s.Subject(), "NOT NULL is set, existing NULL values make the migration fail"})
			}
		case *diff.AddColumn:
			if needsValue(s.Column) {
				out = append(out, Warning{WarnAddNotNull, s.Subject(), "NOT NULL column without default is added, existing rows make the migration fail"})
			}
		}
	}
	return out
}

// needsValue reports whether adding c to a table with rows requires a value
// the statement does not provide.
func needsValue(c *ddl.Column) bool {
	if !c.NotNull || c.Default != nil || c.Identity != nil || c.Generated != nil || c.AutoIncrement {
		return false
	}
	return !strings.Contains(ddl.BaseType(c.Type), "serial")
}
