package compile

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/diff"
)

// sqlite renders SQLite DDL. Changes SQLite cannot apply in place are
// lowered into a table rebuild.
type sqlite struct {
	q quoter
}

// sqliteRebuild is the set of existing tables that are rebuilt, in the order
// their first triggering statement appears.
type sqliteRebuild struct {
	order  []ddl.Key
	tables map[ddl.Key]bool
}

func (r *sqliteRebuild) add(k ddl.Key) {
	if !r.tables[k] {
		r.tables[k] = true
		r.order = append(r.order, k)
	}
}

func (s *sqlite) Compile(plan *diff.Plan) (*Result, error) {
	return run(plan, ddl.SQLite, func(c *collector) error {
		created := map[ddl.Key]bool{}
		for _, st := range plan.Statements {
			if ct, ok := st.(*diff.CreateTable); ok {
				created[ct.Table.Key()] = true
			}
		}
		rb := s.planRebuilds(plan, created)

		// rebuilds run once every column level statement has been seen,
		// before tables are dropped and indexes created
		pending := len(rb.order) > 0
		for _, st := range plan.Statements {
			if pending && diff.Phase(st.Kind()) >= diff.Phase(diff.KindDropTable) {
				s.rebuildAll(c, plan, rb)
				pending = false
			}
			if absorbed(st, rb) {
				continue
			}
			stmts, err := s.render(plan, st, created)
			if err != nil {
				return err
			}
			c.collect(st, stmts...)
		}
		if pending {
			s.rebuildAll(c, plan, rb)
		}
		return nil
	})
}

// planRebuilds finds the existing tables that need a rebuild.
func (s *sqlite) planRebuilds(plan *diff.Plan, created map[ddl.Key]bool) *sqliteRebuild {
	rb := &sqliteRebuild{tables: map[ddl.Key]bool{}}
	for _, st := range plan.Statements {
		owner := st.Subject().Owner()
		if created[owner] {
			continue
		}
		switch st := st.(type) {
		case *diff.AlterColumn, *diff.DropColumn,
			*diff.CreatePrimaryKey, *diff.DropPrimaryKey,
			*diff.CreateForeignKey, *diff.DropForeignKey,
			*diff.CreateCheck, *diff.DropCheck:
			rb.add(owner)
		case *diff.AddColumn:
			if !canAddColumn(plan.To, st.Column) {
				rb.add(owner)
			}
		}
	}
	return rb
}

// canAddColumn reports whether ALTER TABLE ADD COLUMN accepts the column.
func canAddColumn(m *ddl.Model, c *ddl.Column) bool {
	if needsValue(c) {
		return false
	}
	if pk := m.PrimaryKeyOf(c.Schema, c.Table); pk != nil && slices.Contains(pk.Columns, c.Name) {
		return false
	}
	if c.Generated != nil && c.Generated.Type == ddl.GeneratedStored {
		return false
	}
	if c.Default != nil && strings.HasPrefix(strings.ToUpper(*c.Default), "CURRENT_") {
		return false
	}
	return true
}

// absorbed reports whether the rebuild of the statement's table covers it.
func absorbed(st diff.Statement, rb *sqliteRebuild) bool {
	if !rb.tables[st.Subject().Owner()] {
		return false
	}
	switch st.(type) {
	case *diff.AlterColumn, *diff.DropColumn, *diff.AddColumn,
		*diff.CreatePrimaryKey, *diff.DropPrimaryKey,
		*diff.CreateForeignKey, *diff.DropForeignKey,
		*diff.CreateCheck, *diff.DropCheck,
		*diff.CreateIndex, *diff.DropIndex:
		return true
	}
	return false
}

func (s *sqlite) rebuildAll(c *collector, plan *diff.Plan, rb *sqliteRebuild) {
	fks := len(plan.To.ForeignKeys) > 0 || len(plan.Prev.ForeignKeys) > 0
	for _, k := range rb.order {
		s.rebuild(c, plan, k, fks)
	}
}

// rebuild recreates a table in its new shape and copies the rows of the
// columns both shapes share.
func (s *sqlite) rebuild(c *collector, plan *diff.Plan, key ddl.Key, fks bool) {
	q := s.q
	tmp := "__new_" + key.Name

	existing := map[string]bool{}
	for _, col := range plan.Prev.ColumnsOf(key.Schema, key.Name) {
		existing[col.Name] = true
	}
	newCols := plan.To.ColumnsOf(key.Schema, key.Name)
	var common []string
	for _, col := range newCols {
		if existing[col.Name] && col.Generated == nil {
			common = append(common, col.Name)
		}
	}

	var stmts []string
	if fks {
		stmts = append(stmts, "PRAGMA foreign_keys=OFF;")
	}
	stmts = append(stmts, s.createTable(tmp, newCols,
		plan.To.PrimaryKeyOf(key.Schema, key.Name),
		plan.To.ChecksOf(key.Schema, key.Name),
		plan.To.ForeignKeysOf(key.Schema, key.Name)))
	if len(common) > 0 {
		cols := q.list(common, ", ")
		stmts = append(stmts, fmt.Sprintf("INSERT INTO %s(%s) SELECT %s FROM %s;", q.ident(tmp), cols, cols, q.ident(key.Name)))
	}
	stmts = append(stmts,
		fmt.Sprintf("DROP TABLE %s;", q.ident(key.Name)),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", q.ident(tmp), q.ident(key.Name)))
	for _, idx := range plan.To.IndexesOf(key.Schema, key.Name) {
		stmts = append(stmts, s.createIndex(idx))
	}
	if fks {
		stmts = append(stmts, "PRAGMA foreign_keys=ON;")
	}
	c.collectAs(stepRebuildTable, key.Qualified(), stmts...)

	for _, st := range plan.Statements {
		alter, ok := st.(*diff.AlterColumn)
		if !ok || alter.Subject().Owner() != key || !alter.Changes.Has(diff.ChangeType) {
			continue
		}
		c.warn(Warning{WarnTableRebuild, key,
			fmt.Sprintf("table is rebuilt and column %s changes type from %s to %s, rows that do not convert are lost", alter.To.Name, alter.From.Type, alter.To.Type)})
	}
}

func (s *sqlite) render(plan *diff.Plan, st diff.Statement, created map[ddl.Key]bool) ([]string, error) {
	q := s.q
	switch st := st.(type) {
	case *diff.CreateTable:
		t := st.Table
		return []string{s.createTable(t.Name, st.Columns, st.PrimaryKey, st.Checks, plan.To.ForeignKeysOf(t.Schema, t.Name))}, nil
	case *diff.DropTable:
		return one("DROP TABLE %s;", q.ident(st.Table.Name)), nil
	case *diff.RenameTable:
		return one("ALTER TABLE %s RENAME TO %s;", q.ident(st.From.Name), q.ident(st.To.Name)), nil

	case *diff.AddColumn:
		return one("ALTER TABLE %s ADD %s;", q.ident(st.Column.Table), s.columnDefinition(st.Column, false)), nil
	case *diff.RenameColumn:
		return one("ALTER TABLE %s RENAME COLUMN %s TO %s;", q.ident(st.To.Table), q.ident(st.From.Name), q.ident(st.To.Name)), nil

	case *diff.CreateIndex:
		return []string{s.createIndex(st.Index)}, nil
	case *diff.DropIndex:
		return one("DROP INDEX %s;", q.ident(st.Index.Name)), nil
	case *diff.CreateForeignKey:
		if created[st.Subject().Owner()] {
			// inline in CREATE TABLE
			return nil, nil
		}

	case *diff.CreateView:
		if st.View.Materialized {
			return nil, unsupported(ddl.SQLite, st, "materialized views do not exist")
		}
		return one("CREATE VIEW %s AS %s;", q.ident(st.View.Name), st.View.Definition), nil
	case *diff.DropView:
		return one("DROP VIEW %s;", q.ident(st.View.Name)), nil
	case *diff.RenameView:
		if st.To.Existing {
			return nil, unsupported(ddl.SQLite, st, "views cannot be renamed and this view is not managed")
		}
		return []string{
			fmt.Sprintf("DROP VIEW %s;", q.ident(st.From.Name)),
			fmt.Sprintf("CREATE VIEW %s AS %s;", q.ident(st.To.Name), st.To.Definition),
		}, nil
	case *diff.AlterView:
		return nil, unsupported(ddl.SQLite, st, "view options cannot be altered")

	case *diff.CreateUnique, *diff.DropUnique:
		return nil, unsupported(ddl.SQLite, st, "unique constraints are expressed as unique indexes")
	case *diff.CreateSchema, *diff.DropSchema, *diff.RenameSchema:
		return nil, unsupported(ddl.SQLite, st, "schemas do not exist")
	case *diff.CreateEnum, *diff.DropEnum, *diff.RenameEnum, *diff.AddEnumValue, *diff.RenameEnumValue:
		return nil, unsupported(ddl.SQLite, st, "enum types do not exist")
	case *diff.CreateSequence, *diff.DropSequence, *diff.RenameSequence, *diff.AlterSequence:
		return nil, unsupported(ddl.SQLite, st, "sequences do not exist")
	case *diff.CreateRole, *diff.DropRole, *diff.RenameRole, *diff.AlterRole:
		return nil, unsupported(ddl.SQLite, st, "roles do not exist")
	case *diff.EnableRLS, *diff.DisableRLS,
		*diff.CreatePolicy, *diff.DropPolicy, *diff.RenamePolicy, *diff.AlterPolicy:
		return nil, unsupported(ddl.SQLite, st, "row level security does not exist")
	}
	// remaining column and constraint changes are only valid as part of a
	// rebuild, which absorbed them already
	return nil, unsupported(ddl.SQLite, st, fmt.Sprintf("%s needs a table rebuild", st.Kind()))
}

func (s *sqlite) columnDefinition(c *ddl.Column, inlinePK bool) string {
	var b strings.Builder
	b.WriteString(s.q.ident(c.Name))
	b.WriteString(" ")
	b.WriteString(c.Type)
	if inlinePK {
		b.WriteString(" PRIMARY KEY")
		if c.AutoIncrement {
			b.WriteString(" AUTOINCREMENT")
		}
	}
	if c.Generated != nil {
		b.WriteString(" GENERATED ALWAYS AS " + wrap(c.Generated.Expression))
		b.WriteString(" " + strings.ToUpper(string(c.Generated.Type)))
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT " + renderDefault(*c.Default))
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

func (s *sqlite) createTable(name string, cols []*ddl.Column, pk *ddl.PrimaryKey, checks []*ddl.Check, fks []*ddl.ForeignKey) string {
	inline := ""
	if pk != nil && len(pk.Columns) == 1 {
		inline = pk.Columns[0]
	}
	var parts []string
	for _, c := range cols {
		parts = append(parts, "    "+s.columnDefinition(c, c.Name == inline))
	}
	if pk != nil && inline == "" {
		parts = append(parts, fmt.Sprintf("    PRIMARY KEY(%s)", s.q.list(pk.Columns, ", ")))
	}
	for _, fk := range fks {
		parts = append(parts, "    "+foreignKeyClause(s.q, fk))
	}
	for _, ck := range checks {
		parts = append(parts, fmt.Sprintf("    CONSTRAINT %s CHECK%s", s.q.ident(ck.Name), wrap(ck.Expression)))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);", s.q.ident(name), strings.Join(parts, ",\n"))
}

func (s *sqlite) createIndex(idx *ddl.Index) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	fmt.Fprintf(&b, "INDEX %s ON %s (", s.q.ident(idx.Name), s.q.ident(idx.Table))
	for i, col := range idx.Columns {
		if i > 0 {
			b.WriteString(",")
		}
		if col.IsExpression {
			b.WriteString(wrap(col.Value))
		} else {
			b.WriteString(s.q.ident(col.Value))
		}
		if col.Desc {
			b.WriteString(" DESC")
		}
	}
	b.WriteString(")")
	if idx.Where != "" {
		b.WriteString(" WHERE " + idx.Where)
	}
	b.WriteString(";")
	return b.String()
}
