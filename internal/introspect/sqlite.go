package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ddlkit/ddlkit/internal/ddl"
)

// SQLite introspects through sqlite_master and the pragma table functions.
type SQLite struct {
	db   *sql.DB
	opts Options
}

type sqliteObject struct {
	name, sql string
}

func (p *SQLite) Introspect(ctx context.Context) (*ddl.Model, []ddl.Issue, error) {
	defer timed("sqlite", time.Now())

	objects, err := p.objects(ctx, "table")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read tables: %w", err)
	}
	raw := &ddl.Raw{Dialect: ddl.SQLite}
	for _, o := range objects {
		if strings.HasPrefix(o.name, "sqlite_") || p.opts.excluded("", o.name) {
			continue
		}
		t, err := p.table(ctx, o)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read table %s: %w", o.name, err)
		}
		raw.Tables = append(raw.Tables, *t)
	}

	views, err := p.objects(ctx, "view")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read views: %w", err)
	}
	for _, o := range views {
		raw.Views = append(raw.Views, ddl.View{Name: o.name, Definition: viewDefinition(o.sql)})
	}

	m, issues := ddl.Normalize(raw)
	return m, issues, nil
}

func (p *SQLite) objects(ctx context.Context, kind string) ([]sqliteObject, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT name, COALESCE(sql, '') FROM sqlite_master WHERE type = ? ORDER BY name", kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []sqliteObject
	for rows.Next() {
		var o sqliteObject
		if err := rows.Scan(&o.name, &o.sql); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *SQLite) table(ctx context.Context, o sqliteObject) (*ddl.RawTable, error) {
	t := &ddl.RawTable{Name: o.name}
	body := tableBody(o.sql)
	autoincrement := strings.Contains(strings.ToUpper(o.sql), "AUTOINCREMENT")

	rows, err := p.db.QueryContext(ctx, "SELECT name, type, \"notnull\", dflt_value, pk, hidden FROM pragma_table_xinfo(?) ORDER BY cid", o.name)
	if err != nil {
		return nil, err
	}
	type pkCol struct {
		name string
		pos  int
	}
	var pk []pkCol
	for rows.Next() {
		var (
			col         ddl.RawColumn
			notNull     bool
			def         sql.NullString
			pos, hidden int
		)
		if err := rows.Scan(&col.Name, &col.Type, &notNull, &def, &pos, &hidden); err != nil {
			rows.Close()
			return nil, err
		}
		col.NotNull = notNull
		if def.Valid {
			v := def.String
			col.Default = &v
		}
		switch hidden {
		case 2, 3:
			typ := ddl.GeneratedVirtual
			if hidden == 3 {
				typ = ddl.GeneratedStored
			}
			col.Generated = &ddl.Generated{Expression: generatedExpression(body, col.Name), Type: typ}
			col.Type = strings.TrimSpace(strings.TrimSuffix(strings.ToLower(col.Type), "generated always"))
		}
		if pos > 0 {
			pk = append(pk, pkCol{col.Name, pos})
		}
		t.Columns = append(t.Columns, col)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(pk, func(i, j int) bool { return pk[i].pos < pk[j].pos })
	switch len(pk) {
	case 0:
	case 1:
		for i := range t.Columns {
			if t.Columns[i].Name == pk[0].name {
				t.Columns[i].PrimaryKey = true
				t.Columns[i].AutoIncrement = autoincrement && strings.EqualFold(t.Columns[i].Type, "integer")
			}
		}
	default:
		t.PrimaryKey = &ddl.PrimaryKey{}
		for _, c := range pk {
			t.PrimaryKey.Columns = append(t.PrimaryKey.Columns, c.name)
		}
	}

	if t.ForeignKeys, err = p.foreignKeys(ctx, o.name); err != nil {
		return nil, err
	}
	if err := p.indexes(ctx, t); err != nil {
		return nil, err
	}
	t.Checks = tableChecks(body)
	return t, nil
}

func (p *SQLite) foreignKeys(ctx context.Context, table string) ([]ddl.ForeignKey, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, "table", "from", COALESCE("to", ''), on_update, on_delete
		FROM pragma_foreign_key_list(?) ORDER BY id, seq`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ddl.ForeignKey
	last := -1
	for rows.Next() {
		var (
			id                 int
			toTable, from, to  string
			onUpdate, onDelete string
		)
		if err := rows.Scan(&id, &toTable, &from, &to, &onUpdate, &onDelete); err != nil {
			return nil, err
		}
		if id != last {
			out = append(out, ddl.ForeignKey{ToTable: toTable, OnUpdate: onUpdate, OnDelete: onDelete})
			last = id
		}
		fk := &out[len(out)-1]
		fk.Columns = append(fk.Columns, from)
		fk.ToColumns = append(fk.ToColumns, to)
	}
	return out, rows.Err()
}

func (p *SQLite) indexes(ctx context.Context, t *ddl.RawTable) error {
	type entry struct {
		name, origin string
		unique       bool
	}
	rows, err := p.db.QueryContext(ctx, "SELECT name, \"unique\", origin FROM pragma_index_list(?) ORDER BY name", t.Name)
	if err != nil {
		return err
	}
	var list []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.name, &e.unique, &e.origin); err != nil {
			rows.Close()
			return err
		}
		list = append(list, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, e := range list {
		if e.origin == "pk" {
			continue
		}
		var stmt string
		if err := p.db.QueryRowContext(ctx, "SELECT COALESCE(sql, '') FROM sqlite_master WHERE type = 'index' AND name = ?", e.name).Scan(&stmt); err != nil {
			return err
		}
		exprs, where := indexParts(stmt)

		rows, err := p.db.QueryContext(ctx, "SELECT cid, COALESCE(name, ''), \"desc\" FROM pragma_index_xinfo(?) WHERE key = 1 ORDER BY seqno", e.name)
		if err != nil {
			return err
		}
		var cols []ddl.IndexColumn
		for i := 0; rows.Next(); i++ {
			var (
				cid  int
				name string
				desc bool
			)
			if err := rows.Scan(&cid, &name, &desc); err != nil {
				rows.Close()
				return err
			}
			col := ddl.IndexColumn{Value: name, Desc: desc}
			if cid == -2 && i < len(exprs) {
				col = ddl.IndexColumn{Value: exprs[i], IsExpression: true, Desc: desc}
			}
			cols = append(cols, col)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if e.origin == "u" {
			names := make([]string, len(cols))
			for i, c := range cols {
				names[i] = c.Value
			}
			t.Uniques = append(t.Uniques, ddl.Unique{Columns: names})
			continue
		}
		t.Indexes = append(t.Indexes, ddl.Index{Name: e.name, Unique: e.unique, Columns: cols, Where: where})
	}
	return nil
}

// enclosed returns the text inside the parenthesized group opening at
// s[open] and the index of the closing parenthesis. Quoted text is
// skipped.
func enclosed(s string, open int) (string, int) {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return s[open+1 : i], i
			}
		}
	}
	return "", -1
}

// splitTop splits s at commas outside quotes and parentheses.
func splitTop(s string) []string {
	var parts []string
	depth, start := 0, 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

func unquoteIdent(s string) string {
	if len(s) >= 2 && (s[0] == '`' || s[0] == '"' || s[0] == '[') {
		return s[1 : len(s)-1]
	}
	return s
}

// tableBody returns the definitions between the outer parentheses of a
// CREATE TABLE statement.
func tableBody(stmt string) []string {
	open := strings.IndexByte(stmt, '(')
	if open < 0 {
		return nil
	}
	body, _ := enclosed(stmt, open)
	return splitTop(body)
}

func generatedExpression(body []string, column string) string {
	for _, def := range body {
		fields := strings.Fields(def)
		if len(fields) == 0 || unquoteIdent(fields[0]) != column {
			continue
		}
		upper := strings.ToUpper(def)
		at := strings.Index(upper, " AS (")
		if at < 0 {
			at = strings.Index(upper, " AS(")
		}
		if at < 0 {
			return ""
		}
		expr, _ := enclosed(def, strings.IndexByte(def[at:], '(')+at)
		return strings.TrimSpace(expr)
	}
	return ""
}

// tableChecks extracts named CHECK constraints from table definitions.
func tableChecks(body []string) []ddl.Check {
	var out []ddl.Check
	for _, def := range body {
		fields := strings.Fields(def)
		if len(fields) < 3 || !strings.EqualFold(fields[0], "CONSTRAINT") {
			continue
		}
		if !strings.HasPrefix(strings.ToUpper(fields[2]), "CHECK") {
			continue
		}
		open := strings.IndexByte(def, '(')
		if open < 0 {
			continue
		}
		expr, _ := enclosed(def, open)
		out = append(out, ddl.Check{Name: unquoteIdent(fields[1]), Expression: strings.TrimSpace(expr)})
	}
	return out
}

// indexParts returns the key parts and the WHERE clause of a CREATE INDEX
// statement.
func indexParts(stmt string) ([]string, string) {
	upper := strings.ToUpper(stmt)
	on := strings.Index(upper, " ON ")
	if on < 0 {
		return nil, ""
	}
	open := strings.IndexByte(stmt[on:], '(')
	if open < 0 {
		return nil, ""
	}
	body, end := enclosed(stmt, on+open)
	if end < 0 {
		return nil, ""
	}
	parts := splitTop(body)
	for i, p := range parts {
		p = strings.TrimSpace(p)
		for _, suffix := range []string{" DESC", " ASC"} {
			if strings.HasSuffix(strings.ToUpper(p), suffix) {
				p = strings.TrimSpace(p[:len(p)-len(suffix)])
			}
		}
		parts[i] = p
	}
	var where string
	rest := strings.TrimSpace(stmt[end+1:])
	if strings.HasPrefix(strings.ToUpper(rest), "WHERE ") {
		where = strings.TrimSpace(strings.TrimSuffix(rest[len("WHERE "):], ";"))
	}
	return parts, where
}

func viewDefinition(stmt string) string {
	upper := strings.ToUpper(stmt)
	at := strings.Index(upper, " AS ")
	if at < 0 {
		return stmt
	}
	return strings.TrimSpace(stmt[at+len(" AS "):])
}
