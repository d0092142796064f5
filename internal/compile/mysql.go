package compile

import (
	"fmt"
	"strings"

	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/diff"
)

type mysql struct {
	q quoter
}

func (m *mysql) Compile(plan *diff.Plan) (*Result, error) {
	return run(plan, ddl.MySQL, func(c *collector) error {
		for _, s := range plan.Statements {
			stmts, err := m.render(s)
			if err != nil {
				return err
			}
			c.collect(s, stmts...)
		}
		return nil
	})
}

func (m *mysql) render(s diff.Statement) ([]string, error) {
	q := m.q
	switch s := s.(type) {
	case *diff.CreateTable:
		return []string{m.createTable(s)}, nil
	case *diff.DropTable:
		return one("DROP TABLE %s;", q.ident(s.Table.Name)), nil
	case *diff.RenameTable:
		return one("RENAME TABLE %s TO %s;", q.ident(s.From.Name), q.ident(s.To.Name)), nil

	case *diff.AddColumn:
		return one("ALTER TABLE %s ADD %s;", q.ident(s.Column.Table), m.columnDefinition(s.Column)), nil
	case *diff.DropColumn:
		return one("ALTER TABLE %s DROP COLUMN %s;", q.ident(s.Column.Table), q.ident(s.Column.Name)), nil
	case *diff.RenameColumn:
		return one("ALTER TABLE %s RENAME COLUMN %s TO %s;", q.ident(s.To.Table), q.ident(s.From.Name), q.ident(s.To.Name)), nil
	case *diff.AlterColumn:
		// MODIFY restates the whole column, so every change is one statement
		return one("ALTER TABLE %s MODIFY COLUMN %s;", q.ident(s.To.Table), m.columnDefinition(s.To)), nil

	case *diff.CreatePrimaryKey:
		return one("ALTER TABLE %s ADD PRIMARY KEY(%s);", q.ident(s.PrimaryKey.Table), q.list(s.PrimaryKey.Columns, ",")), nil
	case *diff.DropPrimaryKey:
		return one("ALTER TABLE %s DROP PRIMARY KEY;", q.ident(s.PrimaryKey.Table)), nil
	case *diff.CreateUnique:
		u := s.Unique
		return one("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE(%s);", q.ident(u.Table), q.ident(u.Name), q.list(u.Columns, ",")), nil
	case *diff.DropUnique:
		return one("ALTER TABLE %s DROP INDEX %s;", q.ident(s.Unique.Table), q.ident(s.Unique.Name)), nil
	case *diff.CreateCheck:
		return one("ALTER TABLE %s ADD CONSTRAINT %s CHECK %s;", q.ident(s.Check.Table), q.ident(s.Check.Name), wrap(s.Check.Expression)), nil
	case *diff.DropCheck:
		return one("ALTER TABLE %s DROP CONSTRAINT %s;", q.ident(s.Check.Table), q.ident(s.Check.Name)), nil
	case *diff.CreateIndex:
		return []string{m.createIndex(s.Index)}, nil
	case *diff.DropIndex:
		return one("DROP INDEX %s ON %s;", q.ident(s.Index.Name), q.ident(s.Index.Table)), nil
	case *diff.CreateForeignKey:
		fk := s.ForeignKey
		return one("ALTER TABLE %s ADD CONSTRAINT %s %s;", q.ident(fk.Table), q.ident(fk.Name), foreignKeyClause(q, fk)), nil
	case *diff.DropForeignKey:
		return one("ALTER TABLE %s DROP FOREIGN KEY %s;", q.ident(s.ForeignKey.Table), q.ident(s.ForeignKey.Name)), nil

	case *diff.CreateView:
		if s.View.Materialized {
			return nil, unsupported(ddl.MySQL, s, "materialized views do not exist")
		}
		return one("CREATE VIEW %s AS %s;", q.ident(s.View.Name), s.View.Definition), nil
	case *diff.DropView:
		return one("DROP VIEW %s;", q.ident(s.View.Name)), nil
	case *diff.RenameView:
		return one("RENAME TABLE %s TO %s;", q.ident(s.From.Name), q.ident(s.To.Name)), nil

	case *diff.CreateSchema, *diff.DropSchema, *diff.RenameSchema:
		return nil, unsupported(ddl.MySQL, s, "schemas are databases and are not managed")
	case *diff.CreateEnum, *diff.DropEnum, *diff.RenameEnum, *diff.AddEnumValue, *diff.RenameEnumValue:
		return nil, unsupported(ddl.MySQL, s, "enum types do not exist, use an enum column type")
	case *diff.CreateSequence, *diff.DropSequence, *diff.RenameSequence, *diff.AlterSequence:
		return nil, unsupported(ddl.MySQL, s, "sequences do not exist")
	case *diff.CreateRole, *diff.DropRole, *diff.RenameRole, *diff.AlterRole:
		return nil, unsupported(ddl.MySQL, s, "roles are not managed")
	case *diff.EnableRLS, *diff.DisableRLS,
		*diff.CreatePolicy, *diff.DropPolicy, *diff.RenamePolicy, *diff.AlterPolicy:
		return nil, unsupported(ddl.MySQL, s, "row level security does not exist")
	case *diff.AlterView:
		return nil, unsupported(ddl.MySQL, s, "view options cannot be altered")
	}
	return nil, unsupported(ddl.MySQL, s, fmt.Sprintf("no rendering for %s", s.Kind()))
}

func (m *mysql) columnDefinition(c *ddl.Column) string {
	var b strings.Builder
	b.WriteString(m.q.ident(c.Name))
	b.WriteString(" ")
	b.WriteString(c.Type)
	if c.Generated != nil {
		b.WriteString(" GENERATED ALWAYS AS " + wrap(c.Generated.Expression))
		b.WriteString(" " + strings.ToUpper(string(c.Generated.Type)))
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT " + renderDefault(*c.Default))
	}
	if c.AutoIncrement {
		b.WriteString(" AUTO_INCREMENT")
	}
	return b.String()
}

func (m *mysql) createTable(s *diff.CreateTable) string {
	var parts []string
	for _, c := range s.Columns {
		parts = append(parts, "    "+m.columnDefinition(c))
	}
	if pk := s.PrimaryKey; pk != nil {
		parts = append(parts, fmt.Sprintf("    PRIMARY KEY(%s)", m.q.list(pk.Columns, ",")))
	}
	for _, u := range s.Uniques {
		parts = append(parts, fmt.Sprintf("    CONSTRAINT %s UNIQUE(%s)", m.q.ident(u.Name), m.q.list(u.Columns, ",")))
	}
	for _, ck := range s.Checks {
		parts = append(parts, fmt.Sprintf("    CONSTRAINT %s CHECK %s", m.q.ident(ck.Name), wrap(ck.Expression)))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);", m.q.ident(s.Table.Name), strings.Join(parts, ",\n"))
}

func (m *mysql) createIndex(idx *ddl.Index) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	fmt.Fprintf(&b, "INDEX %s ON %s (", m.q.ident(idx.Name), m.q.ident(idx.Table))
	for i, col := range idx.Columns {
		if i > 0 {
			b.WriteString(",")
		}
		if col.IsExpression {
			// functional key parts need their own parentheses
			b.WriteString("(" + wrap(col.Value) + ")")
		} else {
			b.WriteString(m.q.ident(col.Value))
		}
		if col.Desc {
			b.WriteString(" DESC")
		}
	}
	b.WriteString(");")
	return b.String()
}
