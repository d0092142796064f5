package compile

import (
	"fmt"
	"strings"

	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/diff"
)

// postgres renders the Postgres family. Cockroach shares the surface with a
// few quirks.
type postgres struct {
	dialect   ddl.Dialect
	q         quoter
	cockroach bool
}

func (p *postgres) Compile(plan *diff.Plan) (*Result, error) {
	return run(plan, p.dialect, func(c *collector) error {
		for _, s := range plan.Statements {
			stmts, err := p.render(s)
			if err != nil {
				return err
			}
			c.collect(s, stmts...)
		}
		return nil
	})
}

func (p *postgres) render(s diff.Statement) ([]string, error) {
	q := p.q
	switch s := s.(type) {
	case *diff.CreateSchema:
		return one("CREATE SCHEMA %s;", q.ident(s.Schema.Name)), nil
	case *diff.DropSchema:
		return one("DROP SCHEMA %s;", q.ident(s.Schema.Name)), nil
	case *diff.RenameSchema:
		return one("ALTER SCHEMA %s RENAME TO %s;", q.ident(s.From.Name), q.ident(s.To.Name)), nil

	case *diff.CreateEnum:
		values := make([]string, len(s.Enum.Values))
		for i, v := range s.Enum.Values {
			values[i] = literal(v)
		}
		return one("CREATE TYPE %s AS ENUM(%s);", q.qualify(s.Enum.Schema, s.Enum.Name), strings.Join(values, ", ")), nil
	case *diff.DropEnum:
		return one("DROP TYPE %s;", q.qualify(s.Enum.Schema, s.Enum.Name)), nil
	case *diff.RenameEnum:
		return p.move("TYPE", s.From.Schema, s.From.Name, s.To.Schema, s.To.Name), nil
	case *diff.AddEnumValue:
		sql := fmt.Sprintf("ALTER TYPE %s ADD VALUE %s", q.qualify(s.Enum.Schema, s.Enum.Name), literal(s.Value))
		if s.Before != "" {
			sql += " BEFORE " + literal(s.Before)
		}
		return []string{sql + ";"}, nil
	case *diff.RenameEnumValue:
		return one("ALTER TYPE %s RENAME VALUE %s TO %s;", q.qualify(s.Enum.Schema, s.Enum.Name), literal(s.From), literal(s.To)), nil

	case *diff.CreateSequence:
		seq := s.Sequence
		return []string{joinSpace("CREATE SEQUENCE", q.qualify(seq.Schema, seq.Name),
			sequenceOptions(seq.Increment, seq.Min, seq.Max, seq.Start, seq.Cache, seq.Cycle)) + ";"}, nil
	case *diff.DropSequence:
		return one("DROP SEQUENCE %s;", q.qualify(s.Sequence.Schema, s.Sequence.Name)), nil
	case *diff.RenameSequence:
		return p.move("SEQUENCE", s.From.Schema, s.From.Name, s.To.Schema, s.To.Name), nil
	case *diff.AlterSequence:
		seq := s.To
		opts := sequenceOptions(seq.Increment, seq.Min, seq.Max, seq.Start, seq.Cache, false)
		if seq.Cycle {
			opts += " CYCLE"
		} else if s.From.Cycle {
			opts += " NO CYCLE"
		}
		return []string{joinSpace("ALTER SEQUENCE", q.qualify(seq.Schema, seq.Name), opts) + ";"}, nil

	case *diff.CreateRole:
		return []string{joinSpace("CREATE ROLE", q.ident(s.Role.Name), roleOptions(s.Role, false)) + ";"}, nil
	case *diff.DropRole:
		return one("DROP ROLE %s;", q.ident(s.Role.Name)), nil
	case *diff.RenameRole:
		return one("ALTER ROLE %s RENAME TO %s;", q.ident(s.From.Name), q.ident(s.To.Name)), nil
	case *diff.AlterRole:
		return []string{joinSpace("ALTER ROLE", q.ident(s.To.Name), roleOptions(s.To, true)) + ";"}, nil

	case *diff.CreateTable:
		return []string{p.createTable(s)}, nil
	case *diff.DropTable:
		return one("DROP TABLE %s CASCADE;", q.qualify(s.Table.Schema, s.Table.Name)), nil
	case *diff.RenameTable:
		return p.move("TABLE", s.From.Schema, s.From.Name, s.To.Schema, s.To.Name), nil

	case *diff.AddColumn:
		return one("ALTER TABLE %s ADD COLUMN %s;", p.table(s.Column.Schema, s.Column.Table), p.columnDefinition(s.Column)), nil
	case *diff.DropColumn:
		return one("ALTER TABLE %s DROP COLUMN %s;", p.table(s.Column.Schema, s.Column.Table), q.ident(s.Column.Name)), nil
	case *diff.RenameColumn:
		return one("ALTER TABLE %s RENAME COLUMN %s TO %s;", p.table(s.To.Schema, s.To.Table), q.ident(s.From.Name), q.ident(s.To.Name)), nil
	case *diff.AlterColumn:
		return p.alterColumn(s), nil

	case *diff.CreatePrimaryKey:
		pk := s.PrimaryKey
		return one("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY(%s);", p.table(pk.Schema, pk.Table), q.ident(pk.Name), q.list(pk.Columns, ",")), nil
	case *diff.DropPrimaryKey:
		return p.dropConstraint(s.PrimaryKey.Schema, s.PrimaryKey.Table, s.PrimaryKey.Name), nil
	case *diff.RenamePrimaryKey:
		return one("ALTER TABLE %s RENAME CONSTRAINT %s TO %s;", p.table(s.To.Schema, s.To.Table), q.ident(s.From.Name), q.ident(s.To.Name)), nil
	case *diff.CreateUnique:
		u := s.Unique
		return one("ALTER TABLE %s ADD CONSTRAINT %s %s;", p.table(u.Schema, u.Table), q.ident(u.Name), p.uniqueClause(u)), nil
	case *diff.DropUnique:
		return p.dropConstraint(s.Unique.Schema, s.Unique.Table, s.Unique.Name), nil
	case *diff.CreateCheck:
		ck := s.Check
		return one("ALTER TABLE %s ADD CONSTRAINT %s CHECK %s;", p.table(ck.Schema, ck.Table), q.ident(ck.Name), wrap(ck.Expression)), nil
	case *diff.DropCheck:
		return p.dropConstraint(s.Check.Schema, s.Check.Table, s.Check.Name), nil
	case *diff.CreateIndex:
		return []string{p.createIndex(s.Index)}, nil
	case *diff.DropIndex:
		if p.cockroach {
			return one("DROP INDEX %s@%s CASCADE;", p.table(s.Index.Schema, s.Index.Table), q.ident(s.Index.Name)), nil
		}
		return one("DROP INDEX %s;", q.qualify(s.Index.Schema, s.Index.Name)), nil
	case *diff.CreateForeignKey:
		fk := s.ForeignKey
		return one("ALTER TABLE %s ADD CONSTRAINT %s %s;", p.table(fk.Schema, fk.Table), q.ident(fk.Name), foreignKeyClause(q, fk)), nil
	case *diff.DropForeignKey:
		return p.dropConstraint(s.ForeignKey.Schema, s.ForeignKey.Table, s.ForeignKey.Name), nil

	case *diff.EnableRLS:
		return one("ALTER TABLE %s ENABLE ROW LEVEL SECURITY;", p.table(s.Table.Schema, s.Table.Name)), nil
	case *diff.DisableRLS:
		return one("ALTER TABLE %s DISABLE ROW LEVEL SECURITY;", p.table(s.Table.Schema, s.Table.Name)), nil

	case *diff.CreatePolicy:
		return []string{p.createPolicy(s.Policy)}, nil
	case *diff.DropPolicy:
		return one("DROP POLICY %s ON %s CASCADE;", q.ident(s.Policy.Name), p.table(s.Policy.Schema, s.Policy.Table)), nil
	case *diff.RenamePolicy:
		return one("ALTER POLICY %s ON %s RENAME TO %s;", q.ident(s.From.Name), p.table(s.To.Schema, s.To.Table), q.ident(s.To.Name)), nil
	case *diff.AlterPolicy:
		return []string{p.alterPolicy(s.From, s.To)}, nil

	case *diff.CreateView:
		return []string{p.createView(s.View)}, nil
	case *diff.DropView:
		return one("DROP %s %s;", viewKeyword(s.View), q.qualify(s.View.Schema, s.View.Name)), nil
	case *diff.RenameView:
		return p.move(viewKeyword(s.To), s.From.Schema, s.From.Name, s.To.Schema, s.To.Name), nil
	case *diff.AlterView:
		return p.alterView(s)
	}
	return nil, unsupported(p.dialect, s, fmt.Sprintf("no rendering for %s", s.Kind()))
}

func one(format string, args ...any) []string {
	return []string{fmt.Sprintf(format, args...)}
}

// joinSpace joins the non-empty parts with single spaces.
func joinSpace(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func (p *postgres) table(schema, name string) string {
	return p.q.qualify(schema, name)
}

// move renders a schema move followed by a rename, skipping the parts that
// do not change.
func (p *postgres) move(object, fromSchema, fromName, toSchema, toName string) []string {
	var out []string
	name := fromName
	if fromSchema != toSchema {
		out = append(out, fmt.Sprintf("ALTER %s %s SET SCHEMA %s;", object, p.q.qualify(fromSchema, fromName), p.q.ident(toSchema)))
	}
	if name != toName {
		out = append(out, fmt.Sprintf("ALTER %s %s RENAME TO %s;", object, p.q.qualify(toSchema, name), p.q.ident(toName)))
	}
	return out
}

func (p *postgres) dropConstraint(schema, table, name string) []string {
	return one("ALTER TABLE %s DROP CONSTRAINT %s;", p.table(schema, table), p.q.ident(name))
}

func roleOptions(r *ddl.Role, explicit bool) string {
	var opts []string
	switch {
	case r.CreateDB:
		opts = append(opts, "CREATEDB")
	case explicit:
		opts = append(opts, "NOCREATEDB")
	}
	switch {
	case r.CreateRole:
		opts = append(opts, "CREATEROLE")
	case explicit:
		opts = append(opts, "NOCREATEROLE")
	}
	switch {
	case !r.Inherit:
		opts = append(opts, "NOINHERIT")
	case explicit:
		opts = append(opts, "INHERIT")
	}
	if len(opts) == 0 {
		return ""
	}
	return "WITH " + strings.Join(opts, " ")
}

// columnType quotes user-defined enum types and keeps builtins bare.
func (p *postgres) columnType(c *ddl.Column) string {
	if c.TypeSchema == "" {
		return c.Type
	}
	base := strings.TrimRight(c.Type, "[]")
	return p.q.qualify(c.TypeSchema, base) + c.Type[len(base):]
}

func (p *postgres) columnDefinition(c *ddl.Column) string {
	var b strings.Builder
	b.WriteString(p.q.ident(c.Name))
	b.WriteString(" ")
	b.WriteString(p.columnType(c))
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(renderDefault(*c.Default))
	}
	if c.Generated != nil {
		b.WriteString(" GENERATED ALWAYS AS ")
		b.WriteString(wrap(c.Generated.Expression))
		b.WriteString(" STORED")
	}
	if c.Identity != nil {
		b.WriteString(" ")
		b.WriteString(identityClause(c.Identity))
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

func identityClause(id *ddl.Identity) string {
	kind := "BY DEFAULT"
	if id.Type == ddl.IdentityAlways {
		kind = "ALWAYS"
	}
	sql := "GENERATED " + kind + " AS IDENTITY"
	if opts := sequenceOptions(id.Increment, id.Min, id.Max, id.Start, id.Cache, id.Cycle); opts != "" {
		sql += " (" + opts + ")"
	}
	return sql
}

func (p *postgres) uniqueClause(u *ddl.Unique) string {
	if u.NullsNotDistinct {
		return fmt.Sprintf("UNIQUE NULLS NOT DISTINCT(%s)", p.q.list(u.Columns, ","))
	}
	return fmt.Sprintf("UNIQUE(%s)", p.q.list(u.Columns, ","))
}

func foreignKeyClause(q quoter, fk *ddl.ForeignKey) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FOREIGN KEY (%s) REFERENCES %s(%s)", q.list(fk.Columns, ","), q.qualify(fk.ToSchema, fk.ToTable), q.list(fk.ToColumns, ","))
	if fk.OnDelete != "" && fk.OnDelete != "no action" {
		b.WriteString(" ON DELETE " + fk.OnDelete)
	}
	if fk.OnUpdate != "" && fk.OnUpdate != "no action" {
		b.WriteString(" ON UPDATE " + fk.OnUpdate)
	}
	return b.String()
}

func (p *postgres) createTable(s *diff.CreateTable) string {
	var parts []string
	for _, c := range s.Columns {
		parts = append(parts, "    "+p.columnDefinition(c))
	}
	if pk := s.PrimaryKey; pk != nil {
		parts = append(parts, fmt.Sprintf("    CONSTRAINT %s PRIMARY KEY(%s)", p.q.ident(pk.Name), p.q.list(pk.Columns, ",")))
	}
	for _, u := range s.Uniques {
		parts = append(parts, fmt.Sprintf("    CONSTRAINT %s %s", p.q.ident(u.Name), p.uniqueClause(u)))
	}
	for _, ck := range s.Checks {
		parts = append(parts, fmt.Sprintf("    CONSTRAINT %s CHECK %s", p.q.ident(ck.Name), wrap(ck.Expression)))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);", p.table(s.Table.Schema, s.Table.Name), strings.Join(parts, ",\n"))
}

// alterColumn splits the column delta into one statement per clause.
func (p *postgres) alterColumn(s *diff.AlterColumn) []string {
	table := p.table(s.To.Schema, s.To.Table)
	col := p.q.ident(s.To.Name)
	alter := func(clause string) string {
		return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s;", table, col, clause)
	}

	// a generated expression cannot be altered in place
	if s.Changes.Has(diff.ChangeGenerated) {
		if s.To.Generated == nil {
			out := []string{alter("DROP EXPRESSION")}
			rest := *s
			rest.Changes &^= diff.ChangeGenerated
			return append(out, p.alterColumn(&rest)...)
		}
		return []string{
			fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", table, col),
			fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", table, p.columnDefinition(s.To)),
		}
	}

	var out []string
	if s.Changes.Has(diff.ChangeIdentity) && s.From.Identity != nil {
		out = append(out, alter("DROP IDENTITY"))
	}
	// the old default may not cast to the new type, so it is dropped
	// before the type changes and restored after
	resetDefault := s.Changes.Has(diff.ChangeType) && s.From.Default != nil
	if resetDefault {
		out = append(out, alter("DROP DEFAULT"))
	}
	if s.Changes.Has(diff.ChangeType) {
		typ := p.columnType(s.To)
		out = append(out, alter(fmt.Sprintf("SET DATA TYPE %s USING %s::%s", typ, col, typ)))
	}
	if s.Changes.Has(diff.ChangeDefault) || resetDefault {
		switch {
		case s.To.Default != nil:
			out = append(out, alter("SET DEFAULT "+renderDefault(*s.To.Default)))
		case !resetDefault:
			out = append(out, alter("DROP DEFAULT"))
		}
	}
	if s.Changes.Has(diff.ChangeNotNull) {
		if s.To.NotNull {
			out = append(out, alter("SET NOT NULL"))
		} else {
			out = append(out, alter("DROP NOT NULL"))
		}
	}
	if s.Changes.Has(diff.ChangeIdentity) && s.To.Identity != nil {
		out = append(out, alter("ADD "+identityClause(s.To.Identity)))
	}
	return out
}

func (p *postgres) createIndex(idx *ddl.Index) string {
	var b strings.Builder

	// CREATE [UNIQUE] INDEX [CONCURRENTLY]
	b.WriteString("CREATE ")
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX ")
	if idx.Concurrently {
		b.WriteString("CONCURRENTLY ")
	}
	b.WriteString(p.q.ident(idx.Name))
	b.WriteString(" ON ")
	b.WriteString(p.table(idx.Schema, idx.Table))

	if idx.Method != "" && idx.Method != "btree" {
		b.WriteString(" USING ")
		b.WriteString(idx.Method)
	}

	b.WriteString(" (")
	for i, col := range idx.Columns {
		if i > 0 {
			b.WriteString(",")
		}
		if col.IsExpression {
			b.WriteString(wrap(col.Value))
		} else {
			b.WriteString(p.q.ident(col.Value))
		}
		if col.Opclass != "" {
			b.WriteString(" " + col.Opclass)
		}
		if col.Desc {
			b.WriteString(" DESC")
		}
		if col.Nulls != "" {
			b.WriteString(" NULLS " + strings.ToUpper(col.Nulls))
		}
	}
	b.WriteString(")")

	if idx.With != "" {
		b.WriteString(" WITH (" + idx.With + ")")
	}
	if idx.Where != "" {
		b.WriteString(" WHERE " + idx.Where)
	}
	b.WriteString(";")
	return b.String()
}

func (p *postgres) roles(to []string) string {
	roles := make([]string, len(to))
	for i, r := range to {
		roles[i] = p.q.role(r)
	}
	return strings.Join(roles, ", ")
}

func (p *postgres) createPolicy(pol *ddl.Policy) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE POLICY %s ON %s AS %s FOR %s TO %s",
		p.q.ident(pol.Name), p.table(pol.Schema, pol.Table),
		strings.ToUpper(pol.As), strings.ToUpper(pol.For), p.roles(pol.To))
	if pol.Using != "" {
		b.WriteString(" USING " + wrap(pol.Using))
	}
	if pol.WithCheck != "" {
		b.WriteString(" WITH CHECK " + wrap(pol.WithCheck))
	}
	b.WriteString(";")
	return b.String()
}

func (p *postgres) alterPolicy(from, to *ddl.Policy) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ALTER POLICY %s ON %s TO %s", p.q.ident(to.Name), p.table(to.Schema, to.Table), p.roles(to.To))
	if to.Using != from.Using && to.Using != "" {
		b.WriteString(" USING " + wrap(to.Using))
	}
	if to.WithCheck != from.WithCheck && to.WithCheck != "" {
		b.WriteString(" WITH CHECK " + wrap(to.WithCheck))
	}
	b.WriteString(";")
	return b.String()
}

func viewKeyword(v *ddl.View) string {
	if v.Materialized {
		return "MATERIALIZED VIEW"
	}
	return "VIEW"
}

func (p *postgres) createView(v *ddl.View) string {
	sql := fmt.Sprintf("CREATE %s %s", viewKeyword(v), p.q.qualify(v.Schema, v.Name))
	if v.With != "" {
		sql += " WITH (" + v.With + ")"
	}
	return sql + " AS " + v.Definition + ";"
}

func (p *postgres) alterView(s *diff.AlterView) ([]string, error) {
	if !s.To.Materialized {
		return nil, unsupported(p.dialect, s, "only materialized view options can be altered")
	}
	name := p.q.qualify(s.To.Schema, s.To.Name)
	var out []string
	if removed := removedOptions(s.From.With, s.To.With); len(removed) > 0 {
		out = append(out, fmt.Sprintf("ALTER MATERIALIZED VIEW %s RESET (%s);", name, strings.Join(removed, ", ")))
	}
	if s.To.With != "" {
		out = append(out, fmt.Sprintf("ALTER MATERIALIZED VIEW %s SET (%s);", name, s.To.With))
	}
	return out, nil
}

// removedOptions lists storage parameter names present in from but not in
// to. Options are "key=value" pairs separated by commas.
func removedOptions(from, to string) []string {
	keys := func(opts string) []string {
		var out []string
		for _, kv := range strings.Split(opts, ",") {
			k, _, _ := strings.Cut(kv, "=")
			if k = strings.TrimSpace(k); k != "" {
				out = append(out, k)
			}
		}
		return out
	}
	keep := map[string]bool{}
	for _, k := range keys(to) {
		keep[k] = true
	}
	var removed []string
	for _, k := range keys(from) {
		if !keep[k] {
			removed = append(removed, k)
		}
	}
	return removed
}
