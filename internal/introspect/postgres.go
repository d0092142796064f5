package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/ddlkit/ddlkit/internal/ddl"
)

// Postgres introspects the postgres family through the system catalogs.
type Postgres struct {
	db      *sql.DB
	dialect ddl.Dialect
	opts    Options
}

type pgTable struct {
	schema, name string
	rls          bool
}

type pgColumn struct {
	schema, table string
	col           ddl.RawColumn
}

type pgConstraint struct {
	schema, table string
	name, kind    string
	columns       []string
	toSchema      string
	toTable       string
	toColumns     []string
	onUpdate      string
	onDelete      string
	definition    string
}

type pgIndex struct {
	schema, table string
	index         ddl.Index
}

// pgCatalog is everything read by the concurrent catalog queries.
type pgCatalog struct {
	schemas     []string
	tables      []pgTable
	columns     []pgColumn
	constraints []pgConstraint
	indexes     []pgIndex
	enums       []ddl.Enum
	sequences   []ddl.Sequence
	views       []ddl.View
	policies    []ddl.Policy
	roles       []ddl.Role
}

var systemSchemas = []string{"pg_catalog", "information_schema", "pg_toast", "crdb_internal", "pg_extension"}

func (p *Postgres) Introspect(ctx context.Context) (*ddl.Model, []ddl.Issue, error) {
	schemas, err := p.schemas(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read schemas: %w", err)
	}

	cat := &pgCatalog{schemas: schemas}
	g, gctx := errgroup.WithContext(ctx)
	filter := pq.Array(schemas)
	g.Go(func() error { return p.tables(gctx, filter, cat) })
	g.Go(func() error { return p.columns(gctx, filter, cat) })
	g.Go(func() error { return p.constraints(gctx, filter, cat) })
	g.Go(func() error { return p.indexes(gctx, filter, cat) })
	g.Go(func() error { return p.enums(gctx, filter, cat) })
	g.Go(func() error { return p.sequences(gctx, filter, cat) })
	g.Go(func() error { return p.views(gctx, filter, cat) })
	g.Go(func() error { return p.policies(gctx, filter, cat) })
	if p.opts.Roles {
		g.Go(func() error { return p.roles(gctx, cat) })
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	m, issues := ddl.Normalize(cat.raw(p.dialect, p.opts))
	return m, issues, nil
}

func (p *Postgres) schemas(ctx context.Context) ([]string, error) {
	defer timed("schemas", time.Now())
	rows, err := p.db.QueryContext(ctx, `
		SELECT nspname FROM pg_namespace
		WHERE nspname <> ALL($1)
		  AND nspname NOT LIKE 'pg\_temp\_%'
		  AND nspname NOT LIKE 'pg\_toast\_temp\_%'
		ORDER BY nspname`, pq.Array(systemSchemas))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if len(p.opts.Schemas) == 0 || slices.Contains(p.opts.Schemas, name) {
			out = append(out, name)
		}
	}
	return out, rows.Err()
}

func (p *Postgres) tables(ctx context.Context, filter any, cat *pgCatalog) error {
	defer timed("tables", time.Now())
	rows, err := p.db.QueryContext(ctx, `
		SELECT n.nspname, c.relname, c.relrowsecurity
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p') AND NOT c.relispartition AND n.nspname = ANY($1)
		ORDER BY n.nspname, c.relname`, filter)
	if err != nil {
		return fmt.Errorf("failed to read tables: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t pgTable
		if err := rows.Scan(&t.schema, &t.name, &t.rls); err != nil {
			return fmt.Errorf("failed to scan table: %w", err)
		}
		cat.tables = append(cat.tables, t)
	}
	return rows.Err()
}

var nextvalDefault = regexp.MustCompile(`^nextval\('(?:"?[^'".]+"?\.)?"?([^'"]+)"?'::regclass\)$`)

var serialOf = map[string]string{
	"integer":  "serial",
	"bigint":   "bigserial",
	"smallint": "smallserial",
}

func (p *Postgres) columns(ctx context.Context, filter any, cat *pgCatalog) error {
	defer timed("columns", time.Now())
	rows, err := p.db.QueryContext(ctx, `
		SELECT n.nspname, c.relname, a.attname,
		       format_type(a.atttypid, a.atttypmod),
		       COALESCE(et.typtype, t.typtype)::text,
		       COALESCE(et.typname, t.typname)::text,
		       COALESCE(etn.nspname, tn.nspname)::text,
		       t.typcategory = 'A',
		       a.attnotnull,
		       pg_get_expr(d.adbin, d.adrelid),
		       a.attidentity::text,
		       a.attgenerated::text,
		       s.seqstart::text, s.seqincrement::text, s.seqmin::text, s.seqmax::text, s.seqcache::text, s.seqcycle
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_type t ON t.oid = a.atttypid
		JOIN pg_namespace tn ON tn.oid = t.typnamespace
		LEFT JOIN pg_type et ON t.typcategory = 'A' AND et.oid = t.typelem
		LEFT JOIN pg_namespace etn ON etn.oid = et.typnamespace
		LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		LEFT JOIN pg_sequence s ON a.attidentity <> ''
		     AND s.seqrelid = pg_get_serial_sequence(format('%I.%I', n.nspname, c.relname), a.attname)::regclass
		WHERE c.relkind IN ('r', 'p') AND a.attnum > 0 AND NOT a.attisdropped AND n.nspname = ANY($1)
		ORDER BY n.nspname, c.relname, a.attnum`, filter)
	if err != nil {
		return fmt.Errorf("failed to read columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c                                pgColumn
			typ, typtype, typname, typschema string
			isArray, notNull                 bool
			def                              sql.NullString
			identity, generated              string
			start, incr, minv, maxv, cache   sql.NullString
			cycle                            sql.NullBool
		)
		if err := rows.Scan(&c.schema, &c.table, &c.col.Name, &typ, &typtype, &typname, &typschema,
			&isArray, &notNull, &def, &identity, &generated,
			&start, &incr, &minv, &maxv, &cache, &cycle); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}
		c.col.Type = typ
		c.col.NotNull = notNull
		if typtype == "e" {
			c.col.Type = typname
			if isArray {
				c.col.Type += "[]"
			}
			c.col.TypeSchema = typschema
		}
		if def.Valid {
			v := def.String
			c.col.Default = &v
		}
		if m := nextvalDefault.FindStringSubmatch(def.String); m != nil && m[1] == c.table+"_"+c.col.Name+"_seq" {
			if serial, ok := serialOf[typ]; ok {
				c.col.Type = serial
				c.col.Default = nil
			}
		}
		switch identity {
		case "a", "d":
			id := &ddl.Identity{Type: ddl.IdentityByDefault}
			if identity == "a" {
				id.Type = ddl.IdentityAlways
			}
			id.Start, id.Increment, id.Min, id.Max, id.Cache = start.String, incr.String, minv.String, maxv.String, cache.String
			id.Cycle = cycle.Bool
			c.col.Identity = id
			c.col.Default = nil
		}
		if generated == "s" && c.col.Default != nil {
			c.col.Generated = &ddl.Generated{Expression: *c.col.Default, Type: ddl.GeneratedStored}
			c.col.Default = nil
		}
		cat.columns = append(cat.columns, c)
	}
	return rows.Err()
}

var fkActions = map[string]string{
	"a": "no action",
	"r": "restrict",
	"c": "cascade",
	"n": "set null",
	"d": "set default",
}

func (p *Postgres) constraints(ctx context.Context, filter any, cat *pgCatalog) error {
	defer timed("constraints", time.Now())
	rows, err := p.db.QueryContext(ctx, `
		SELECT n.nspname, c.relname, con.conname, con.contype::text,
		       ARRAY(SELECT a.attname FROM unnest(con.conkey) WITH ORDINALITY k(num, ord)
		             JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.num ORDER BY k.ord)::text[],
		       COALESCE(fn.nspname, ''), COALESCE(fc.relname, ''),
		       ARRAY(SELECT a.attname FROM unnest(con.confkey) WITH ORDINALITY k(num, ord)
		             JOIN pg_attribute a ON a.attrelid = con.confrelid AND a.attnum = k.num ORDER BY k.ord)::text[],
		       con.confupdtype::text, con.confdeltype::text,
		       pg_get_constraintdef(con.oid)
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_class fc ON fc.oid = con.confrelid
		LEFT JOIN pg_namespace fn ON fn.oid = fc.relnamespace
		WHERE con.contype IN ('p', 'u', 'c', 'f') AND n.nspname = ANY($1)
		ORDER BY n.nspname, c.relname, con.conname`, filter)
	if err != nil {
		return fmt.Errorf("failed to read constraints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c pgConstraint
		if err := rows.Scan(&c.schema, &c.table, &c.name, &c.kind, pq.Array(&c.columns),
			&c.toSchema, &c.toTable, pq.Array(&c.toColumns), &c.onUpdate, &c.onDelete, &c.definition); err != nil {
			return fmt.Errorf("failed to scan constraint: %w", err)
		}
		c.onUpdate = fkActions[c.onUpdate]
		c.onDelete = fkActions[c.onDelete]
		cat.constraints = append(cat.constraints, c)
	}
	return rows.Err()
}

const (
	indoptionDesc       = 1
	indoptionNullsFirst = 2
)

func (p *Postgres) indexes(ctx context.Context, filter any, cat *pgCatalog) error {
	defer timed("indexes", time.Now())
	rows, err := p.db.QueryContext(ctx, `
		SELECT n.nspname, t.relname, i.relname, am.amname, ix.indisunique,
		       COALESCE(pg_get_expr(ix.indpred, ix.indrelid), ''),
		       ARRAY(SELECT pg_get_indexdef(ix.indexrelid, k, true) FROM generate_series(1, ix.indnkeyatts) k ORDER BY k)::text[],
		       ARRAY(SELECT ix.indkey[k - 1] = 0 FROM generate_series(1, ix.indnkeyatts) k ORDER BY k)::bool[],
		       ARRAY(SELECT ix.indoption[k - 1] FROM generate_series(1, ix.indnkeyatts) k ORDER BY k)::int[],
		       ARRAY(SELECT CASE WHEN oc.opcdefault THEN '' ELSE oc.opcname END
		             FROM generate_series(1, ix.indnkeyatts) k
		             JOIN pg_opclass oc ON oc.oid = ix.indclass[k - 1] ORDER BY k)::text[],
		       COALESCE(array_to_string(i.reloptions, ', '), '')
		FROM pg_index ix
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_am am ON am.oid = i.relam
		WHERE n.nspname = ANY($1)
		  AND NOT EXISTS (SELECT 1 FROM pg_constraint con WHERE con.conindid = ix.indexrelid AND con.contype IN ('p', 'u'))
		ORDER BY n.nspname, t.relname, i.relname`, filter)
	if err != nil {
		return fmt.Errorf("failed to read indexes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ix      pgIndex
			defs    []string
			exprs   []bool
			options []int64
			opclass []string
		)
		if err := rows.Scan(&ix.schema, &ix.table, &ix.index.Name, &ix.index.Method, &ix.index.Unique, &ix.index.Where,
			pq.Array(&defs), pq.Array(&exprs), pq.Array(&options), pq.Array(&opclass), &ix.index.With); err != nil {
			return fmt.Errorf("failed to scan index: %w", err)
		}
		for k, def := range defs {
			col := ddl.IndexColumn{Value: strings.Trim(def, `"`)}
			if k < len(exprs) && exprs[k] {
				col = ddl.IndexColumn{Value: def, IsExpression: true}
			}
			if k < len(options) {
				col.Desc = options[k]&indoptionDesc != 0
				col.Nulls = "last"
				if options[k]&indoptionNullsFirst != 0 {
					col.Nulls = "first"
				}
			}
			if k < len(opclass) {
				col.Opclass = opclass[k]
			}
			ix.index.Columns = append(ix.index.Columns, col)
		}
		cat.indexes = append(cat.indexes, ix)
	}
	return rows.Err()
}

func (p *Postgres) enums(ctx context.Context, filter any, cat *pgCatalog) error {
	defer timed("enums", time.Now())
	rows, err := p.db.QueryContext(ctx, `
		SELECT n.nspname, t.typname,
		       ARRAY(SELECT e.enumlabel FROM pg_enum e WHERE e.enumtypid = t.oid ORDER BY e.enumsortorder)::text[]
		FROM pg_type t
		JOIN pg_namespace n ON n.oid = t.typnamespace
		WHERE t.typtype = 'e' AND n.nspname = ANY($1)
		ORDER BY n.nspname, t.typname`, filter)
	if err != nil {
		return fmt.Errorf("failed to read enums: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e ddl.Enum
		if err := rows.Scan(&e.Schema, &e.Name, pq.Array(&e.Values)); err != nil {
			return fmt.Errorf("failed to scan enum: %w", err)
		}
		cat.enums = append(cat.enums, e)
	}
	return rows.Err()
}

func (p *Postgres) sequences(ctx context.Context, filter any, cat *pgCatalog) error {
	defer timed("sequences", time.Now())
	// sequences owned by serial or identity columns belong to the column
	rows, err := p.db.QueryContext(ctx, `
		SELECT n.nspname, c.relname,
		       s.seqstart::text, s.seqincrement::text, s.seqmin::text, s.seqmax::text, s.seqcache::text, s.seqcycle
		FROM pg_sequence s
		JOIN pg_class c ON c.oid = s.seqrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = ANY($1)
		  AND NOT EXISTS (SELECT 1 FROM pg_depend d WHERE d.objid = c.oid AND d.deptype IN ('a', 'i'))
		ORDER BY n.nspname, c.relname`, filter)
	if err != nil {
		return fmt.Errorf("failed to read sequences: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s ddl.Sequence
		if err := rows.Scan(&s.Schema, &s.Name, &s.Start, &s.Increment, &s.Min, &s.Max, &s.Cache, &s.Cycle); err != nil {
			return fmt.Errorf("failed to scan sequence: %w", err)
		}
		cat.sequences = append(cat.sequences, s)
	}
	return rows.Err()
}

func (p *Postgres) views(ctx context.Context, filter any, cat *pgCatalog) error {
	defer timed("views", time.Now())
	rows, err := p.db.QueryContext(ctx, `
		SELECT n.nspname, c.relname, c.relkind = 'm', pg_get_viewdef(c.oid, true),
		       COALESCE(array_to_string(c.reloptions, ', '), '')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('v', 'm') AND n.nspname = ANY($1)
		ORDER BY n.nspname, c.relname`, filter)
	if err != nil {
		return fmt.Errorf("failed to read views: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v ddl.View
		if err := rows.Scan(&v.Schema, &v.Name, &v.Materialized, &v.Definition, &v.With); err != nil {
			return fmt.Errorf("failed to scan view: %w", err)
		}
		cat.views = append(cat.views, v)
	}
	return rows.Err()
}

func (p *Postgres) policies(ctx context.Context, filter any, cat *pgCatalog) error {
	defer timed("policies", time.Now())
	rows, err := p.db.QueryContext(ctx, `
		SELECT schemaname, tablename, policyname, permissive, roles::text[], cmd,
		       COALESCE(qual, ''), COALESCE(with_check, '')
		FROM pg_policies
		WHERE schemaname = ANY($1)
		ORDER BY schemaname, tablename, policyname`, filter)
	if err != nil {
		return fmt.Errorf("failed to read policies: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pol ddl.Policy
		if err := rows.Scan(&pol.Schema, &pol.Table, &pol.Name, &pol.As, pq.Array(&pol.To), &pol.For,
			&pol.Using, &pol.WithCheck); err != nil {
			return fmt.Errorf("failed to scan policy: %w", err)
		}
		cat.policies = append(cat.policies, pol)
	}
	return rows.Err()
}

func (p *Postgres) roles(ctx context.Context, cat *pgCatalog) error {
	defer timed("roles", time.Now())
	rows, err := p.db.QueryContext(ctx, `
		SELECT rolname, rolcreatedb, rolcreaterole, rolinherit
		FROM pg_roles
		WHERE rolname NOT LIKE 'pg\_%' AND NOT rolsuper
		ORDER BY rolname`)
	if err != nil {
		return fmt.Errorf("failed to read roles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r ddl.Role
		if err := rows.Scan(&r.Name, &r.CreateDB, &r.CreateRole, &r.Inherit); err != nil {
			return fmt.Errorf("failed to scan role: %w", err)
		}
		cat.roles = append(cat.roles, r)
	}
	return rows.Err()
}

// raw assembles the catalog rows into a raw description.
func (cat *pgCatalog) raw(d ddl.Dialect, opts Options) *ddl.Raw {
	raw := &ddl.Raw{
		Dialect:   d,
		Schemas:   cat.schemas,
		Enums:     cat.enums,
		Sequences: cat.sequences,
		Views:     cat.views,
		Roles:     cat.roles,
		Policies:  cat.policies,
	}

	tables := map[ddl.Key]*ddl.RawTable{}
	for _, t := range cat.tables {
		if opts.excluded(t.schema, t.name) {
			continue
		}
		raw.Tables = append(raw.Tables, ddl.RawTable{Schema: t.schema, Name: t.name, RLSEnabled: t.rls})
	}
	for i := range raw.Tables {
		t := &raw.Tables[i]
		tables[ddl.TableKey(t.Schema, t.Name)] = t
	}
	lookup := func(schema, table string) *ddl.RawTable {
		return tables[ddl.TableKey(schema, table)]
	}

	for _, c := range cat.columns {
		if t := lookup(c.schema, c.table); t != nil {
			t.Columns = append(t.Columns, c.col)
		}
	}
	for _, c := range cat.constraints {
		t := lookup(c.schema, c.table)
		if t == nil {
			continue
		}
		switch c.kind {
		case "p":
			t.PrimaryKey = &ddl.PrimaryKey{Name: c.name, Columns: c.columns}
		case "u":
			t.Uniques = append(t.Uniques, ddl.Unique{
				Name:             c.name,
				Columns:          c.columns,
				NullsNotDistinct: strings.Contains(c.definition, "NULLS NOT DISTINCT"),
			})
		case "c":
			t.Checks = append(t.Checks, ddl.Check{Name: c.name, Expression: checkExpression(c.definition)})
		case "f":
			if lookup(c.toSchema, c.toTable) == nil {
				continue
			}
			t.ForeignKeys = append(t.ForeignKeys, ddl.ForeignKey{
				Name:      c.name,
				Columns:   c.columns,
				ToSchema:  c.toSchema,
				ToTable:   c.toTable,
				ToColumns: c.toColumns,
				OnUpdate:  c.onUpdate,
				OnDelete:  c.onDelete,
			})
		}
	}
	for _, ix := range cat.indexes {
		if t := lookup(ix.schema, ix.table); t != nil {
			t.Indexes = append(t.Indexes, ix.index)
		}
	}

	// policies of excluded tables would not normalize
	raw.Policies = slices.DeleteFunc(slices.Clone(raw.Policies), func(p ddl.Policy) bool {
		return lookup(p.Schema, p.Table) == nil
	})
	return raw
}

// checkExpression strips the CHECK keyword and modifiers from a
// constraint definition.
func checkExpression(def string) string {
	def = strings.TrimSpace(def)
	def = strings.TrimSuffix(def, " NOT VALID")
	def = strings.TrimSuffix(def, " NO INHERIT")
	if rest, ok := strings.CutPrefix(def, "CHECK "); ok {
		def = rest
	}
	return def
}
