package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ddlkit/ddlkit/internal/ddl"
)

// MySQL introspects the current database through information_schema.
type MySQL struct {
	db   *sql.DB
	opts Options
}

func (p *MySQL) Introspect(ctx context.Context) (*ddl.Model, []ddl.Issue, error) {
	var schema string
	if err := p.db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&schema); err != nil {
		return nil, nil, fmt.Errorf("failed to read current database: %w", err)
	}

	raw := &ddl.Raw{Dialect: ddl.MySQL}
	tables := map[string]*ddl.RawTable{}
	steps := []struct {
		name string
		fn   func(context.Context, string, *ddl.Raw, map[string]*ddl.RawTable) error
	}{
		{"tables", p.tables},
		{"columns", p.columns},
		{"constraints", p.constraints},
		{"foreign keys", p.foreignKeys},
		{"indexes", p.indexes},
		{"checks", p.checks},
		{"views", p.views},
	}
	for _, step := range steps {
		start := time.Now()
		if err := step.fn(ctx, schema, raw, tables); err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", step.name, err)
		}
		timed(step.name, start)
	}
	m, issues := ddl.Normalize(raw)
	return m, issues, nil
}

func (p *MySQL) tables(ctx context.Context, schema string, raw *ddl.Raw, tables map[string]*ddl.RawTable) error {
	rows, err := p.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`, schema)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if p.opts.excluded("", name) {
			continue
		}
		raw.Tables = append(raw.Tables, ddl.RawTable{Name: name})
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range raw.Tables {
		tables[raw.Tables[i].Name] = &raw.Tables[i]
	}
	return nil
}

// quotedDefaults lists the data types whose defaults information_schema
// reports without quotes.
var quotedDefaults = map[string]bool{
	"char": true, "varchar": true, "text": true, "tinytext": true, "mediumtext": true, "longtext": true,
	"enum": true, "set": true, "binary": true, "varbinary": true, "date": true, "datetime": true,
	"timestamp": true, "time": true, "json": true,
}

func (p *MySQL) columns(ctx context.Context, schema string, _ *ddl.Raw, tables map[string]*ddl.RawTable) error {
	rows, err := p.db.QueryContext(ctx, `
		SELECT table_name, column_name, column_type, data_type, is_nullable = 'YES',
		       column_default, extra, COALESCE(generation_expression, '')
		FROM information_schema.columns
		WHERE table_schema = ?
		ORDER BY table_name, ordinal_position`, schema)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			table, dataType, extra, genExpr string
			nullable                        bool
			def                             sql.NullString
			col                             ddl.RawColumn
		)
		if err := rows.Scan(&table, &col.Name, &col.Type, &dataType, &nullable, &def, &extra, &genExpr); err != nil {
			return err
		}
		t := tables[table]
		if t == nil {
			continue
		}
		col.NotNull = !nullable
		extra = strings.ToLower(extra)
		col.AutoIncrement = strings.Contains(extra, "auto_increment")
		switch {
		case strings.Contains(extra, "stored generated"):
			col.Generated = &ddl.Generated{Expression: genExpr, Type: ddl.GeneratedStored}
		case strings.Contains(extra, "virtual generated"):
			col.Generated = &ddl.Generated{Expression: genExpr, Type: ddl.GeneratedVirtual}
		case def.Valid:
			v := mysqlDefault(def.String, dataType, strings.Contains(extra, "default_generated"))
			col.Default = &v
		}
		t.Columns = append(t.Columns, col)
	}
	return rows.Err()
}

func mysqlDefault(v, dataType string, expression bool) string {
	switch {
	case expression:
		return v
	case quotedDefaults[strings.ToLower(dataType)]:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return v
}

func (p *MySQL) constraints(ctx context.Context, schema string, _ *ddl.Raw, tables map[string]*ddl.RawTable) error {
	rows, err := p.db.QueryContext(ctx, `
		SELECT tc.table_name, tc.constraint_name, tc.constraint_type, k.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage k
		  ON k.constraint_schema = tc.constraint_schema AND k.constraint_name = tc.constraint_name AND k.table_name = tc.table_name
		WHERE tc.table_schema = ? AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
		ORDER BY tc.table_name, tc.constraint_name, k.ordinal_position`, schema)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var table, name, kind, column string
		if err := rows.Scan(&table, &name, &kind, &column); err != nil {
			return err
		}
		t := tables[table]
		if t == nil {
			continue
		}
		if kind == "PRIMARY KEY" {
			if t.PrimaryKey == nil {
				t.PrimaryKey = &ddl.PrimaryKey{}
			}
			t.PrimaryKey.Columns = append(t.PrimaryKey.Columns, column)
			continue
		}
		if n := len(t.Uniques); n > 0 && t.Uniques[n-1].Name == name {
			t.Uniques[n-1].Columns = append(t.Uniques[n-1].Columns, column)
			continue
		}
		t.Uniques = append(t.Uniques, ddl.Unique{Name: name, Columns: []string{column}})
	}
	return rows.Err()
}

func (p *MySQL) foreignKeys(ctx context.Context, schema string, _ *ddl.Raw, tables map[string]*ddl.RawTable) error {
	rows, err := p.db.QueryContext(ctx, `
		SELECT k.table_name, k.constraint_name, k.column_name, k.referenced_table_name, k.referenced_column_name,
		       r.update_rule, r.delete_rule
		FROM information_schema.key_column_usage k
		JOIN information_schema.referential_constraints r
		  ON r.constraint_schema = k.constraint_schema AND r.constraint_name = k.constraint_name
		WHERE k.table_schema = ? AND k.referenced_table_name IS NOT NULL
		ORDER BY k.table_name, k.constraint_name, k.ordinal_position`, schema)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var table, name, column, toTable, toColumn, onUpdate, onDelete string
		if err := rows.Scan(&table, &name, &column, &toTable, &toColumn, &onUpdate, &onDelete); err != nil {
			return err
		}
		t := tables[table]
		if t == nil || tables[toTable] == nil {
			continue
		}
		if n := len(t.ForeignKeys); n > 0 && t.ForeignKeys[n-1].Name == name {
			fk := &t.ForeignKeys[n-1]
			fk.Columns = append(fk.Columns, column)
			fk.ToColumns = append(fk.ToColumns, toColumn)
			continue
		}
		t.ForeignKeys = append(t.ForeignKeys, ddl.ForeignKey{
			Name:      name,
			Columns:   []string{column},
			ToTable:   toTable,
			ToColumns: []string{toColumn},
			OnUpdate:  onUpdate,
			OnDelete:  onDelete,
		})
	}
	return rows.Err()
}

func (p *MySQL) indexes(ctx context.Context, schema string, _ *ddl.Raw, tables map[string]*ddl.RawTable) error {
	rows, err := p.db.QueryContext(ctx, `
		SELECT s.table_name, s.index_name, s.non_unique = 0, COALESCE(s.column_name, ''),
		       COALESCE(s.expression, ''), COALESCE(s.collation, 'A') = 'D'
		FROM information_schema.statistics s
		WHERE s.table_schema = ? AND s.index_name <> 'PRIMARY'
		  AND NOT EXISTS (
		    SELECT 1 FROM information_schema.table_constraints tc
		    WHERE tc.table_schema = s.table_schema AND tc.table_name = s.table_name
		      AND tc.constraint_name = s.index_name AND tc.constraint_type IN ('UNIQUE', 'FOREIGN KEY'))
		ORDER BY s.table_name, s.index_name, s.seq_in_index`, schema)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			table, name, column, expr string
			unique, desc              bool
		)
		if err := rows.Scan(&table, &name, &unique, &column, &expr, &desc); err != nil {
			return err
		}
		t := tables[table]
		if t == nil {
			continue
		}
		col := ddl.IndexColumn{Value: column, Desc: desc}
		if column == "" {
			col = ddl.IndexColumn{Value: expr, IsExpression: true, Desc: desc}
		}
		if n := len(t.Indexes); n > 0 && t.Indexes[n-1].Name == name {
			t.Indexes[n-1].Columns = append(t.Indexes[n-1].Columns, col)
			continue
		}
		t.Indexes = append(t.Indexes, ddl.Index{Name: name, Unique: unique, Columns: []ddl.IndexColumn{col}})
	}
	return rows.Err()
}

func (p *MySQL) checks(ctx context.Context, schema string, _ *ddl.Raw, tables map[string]*ddl.RawTable) error {
	rows, err := p.db.QueryContext(ctx, `
		SELECT tc.table_name, cc.constraint_name, cc.check_clause
		FROM information_schema.table_constraints tc
		JOIN information_schema.check_constraints cc
		  ON cc.constraint_schema = tc.constraint_schema AND cc.constraint_name = tc.constraint_name
		WHERE tc.table_schema = ? AND tc.constraint_type = 'CHECK'
		ORDER BY tc.table_name, cc.constraint_name`, schema)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var table string
		var c ddl.Check
		if err := rows.Scan(&table, &c.Name, &c.Expression); err != nil {
			return err
		}
		if t := tables[table]; t != nil {
			t.Checks = append(t.Checks, c)
		}
	}
	return rows.Err()
}

func (p *MySQL) views(ctx context.Context, schema string, raw *ddl.Raw, _ map[string]*ddl.RawTable) error {
	rows, err := p.db.QueryContext(ctx, `
		SELECT table_name, view_definition FROM information_schema.views
		WHERE table_schema = ?
		ORDER BY table_name`, schema)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var v ddl.View
		if err := rows.Scan(&v.Name, &v.Definition); err != nil {
			return err
		}
		raw.Views = append(raw.Views, v)
	}
	return rows.Err()
}
