package ddl

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ddlkit/ddlkit/internal/grammar"
)

// Issue is a non-fatal problem found while building a Model. The entity it
// names was left out of the Model, or kept with the offending attribute
// dropped when Message says so.
type Issue struct {
	Key     Key
	Message string
	Err     error
}

func (i Issue) Error() string {
	msg := i.Message
	if i.Err != nil {
		msg += ": " + i.Err.Error()
	}
	if q := i.Key.Qualified(); q != "" {
		return i.Key.Kind.String() + " " + q + ": " + msg
	}
	return msg
}

func (i Issue) Unwrap() error {
	return i.Err
}

// Normalize maps a raw description onto a Model for raw.Dialect. Problems
// are collected as issues; the returned Model holds everything that could
// be normalized.
func Normalize(raw *Raw) (*Model, []Issue) {
	n := &normalizer{
		d: raw.Dialect,
		m: NewModel(raw.Dialect),
	}
	n.schemas(raw.Schemas)
	n.enums(raw.Enums)
	n.sequences(raw.Sequences)
	n.roles(raw.Roles)

	for i := range raw.Tables {
		n.table(&raw.Tables[i])
	}
	for i := range raw.Tables {
		n.constraints(&raw.Tables[i])
	}
	for i := range raw.Tables {
		n.foreignKeys(&raw.Tables[i])
	}

	policies := slices.Clone(raw.Policies)
	for i := range raw.Tables {
		t := &raw.Tables[i]
		for _, p := range t.Policies {
			if p.Table == "" {
				p.Schema, p.Table = t.Schema, t.Name
			}
			policies = append(policies, p)
		}
	}
	n.policies(policies)
	n.views(raw.Views)
	return n.m, n.issues
}

type normalizer struct {
	d      Dialect
	m      *Model
	issues []Issue
}

func (n *normalizer) issue(key Key, msg string, err error) {
	n.issues = append(n.issues, Issue{Key: key, Message: msg, Err: err})
}

func (n *normalizer) add(e Entity) bool {
	if err := n.m.Add(e); err != nil {
		n.issue(e.Key(), "duplicate definition ignored", nil)
		return false
	}
	return true
}

func (n *normalizer) supported(key Key) bool {
	if n.d.Supports(key.Kind) {
		return true
	}
	n.issue(key, fmt.Sprintf("%s is not supported by %s", key.Kind, n.d), nil)
	return false
}

// schema resolves a possibly empty schema name to the one stored in keys.
func (n *normalizer) schema(s string) string {
	if !n.d.IsPostgresFamily() {
		return ""
	}
	if s == "" {
		return n.d.DefaultSchema()
	}
	return s
}

// ensureSchema registers a schema referenced by another entity.
func (n *normalizer) ensureSchema(s string) {
	if s == "" || s == n.d.DefaultSchema() {
		return
	}
	if _, ok := n.m.Schemas[SchemaKey(s)]; !ok {
		n.m.Schemas[SchemaKey(s)] = &Schema{Name: s}
	}
}

func (n *normalizer) schemas(names []string) {
	for _, name := range names {
		if name == "" || name == n.d.DefaultSchema() {
			continue
		}
		if !n.supported(SchemaKey(name)) {
			continue
		}
		n.add(&Schema{Name: name})
	}
}

func (n *normalizer) enums(enums []Enum) {
	for _, e := range enums {
		e.Schema = n.schema(e.Schema)
		e.Values = slices.Clone(e.Values)
		if !n.supported(e.Key()) {
			continue
		}
		if len(e.Values) == 0 {
			n.issue(e.Key(), "enum has no values", nil)
			continue
		}
		if dup := firstDuplicate(e.Values); dup != "" {
			n.issue(e.Key(), fmt.Sprintf("duplicate enum value %q", dup), nil)
			continue
		}
		if n.add(&e) {
			n.ensureSchema(e.Schema)
		}
	}
}

func (n *normalizer) sequences(seqs []Sequence) {
	for _, s := range seqs {
		s.Schema = n.schema(s.Schema)
		if !n.supported(s.Key()) {
			continue
		}
		s.Start, s.Increment, s.Min, s.Max, s.Cache = sequenceDefaults(s.Start, s.Increment, s.Min, s.Max, s.Cache)
		if n.add(&s) {
			n.ensureSchema(s.Schema)
		}
	}
}

func (n *normalizer) roles(roles []Role) {
	for _, r := range roles {
		if !n.supported(r.Key()) {
			continue
		}
		n.add(&r)
	}
}

func (n *normalizer) table(rt *RawTable) {
	t := &Table{Schema: n.schema(rt.Schema), Name: rt.Name}
	if t.Name == "" {
		n.issue(t.Key(), "table has no name", nil)
		return
	}
	if rt.RLSEnabled {
		if n.d.IsPostgresFamily() {
			t.RLSEnabled = true
		} else {
			n.issue(t.Key(), "row level security ignored", nil)
		}
	}
	if !n.add(t) {
		return
	}
	n.ensureSchema(t.Schema)

	position := 0
	for _, rc := range rt.Columns {
		c, ok := n.column(t, rc)
		if !ok {
			continue
		}
		c.Position = position
		if n.add(c) {
			position++
		}
	}
}

var serialTypes = map[string]bool{
	"serial":      true,
	"bigserial":   true,
	"smallserial": true,
}

func (n *normalizer) column(t *Table, rc RawColumn) (*Column, bool) {
	c := &Column{
		Schema:        t.Schema,
		Table:         t.Name,
		Name:          rc.Name,
		NotNull:       rc.NotNull,
		AutoIncrement: rc.AutoIncrement,
	}
	if c.Name == "" {
		n.issue(c.Key(), "column has no name", nil)
		return nil, false
	}

	if enum := n.enumType(rc); enum != nil {
		c.Type = enum.Name + strings.Repeat("[]", grammar.ArrayDimensions(strings.TrimSpace(rc.Type)))
		c.TypeSchema = enum.Schema
	} else {
		typ, err := NormalizeType(n.d, rc.Type)
		if err != nil {
			n.issue(c.Key(), "invalid column type", err)
			return nil, false
		}
		c.Type = typ
	}

	if rc.Default != nil {
		def, err := NormalizeDefault(*rc.Default)
		if err != nil {
			n.issue(c.Key(), "invalid default", err)
			return nil, false
		}
		if def != "" {
			c.Default = &def
		}
	}

	if n.d.IsPostgresFamily() && serialTypes[c.Type] {
		c.NotNull = true
		c.Default = nil
	}
	if c.AutoIncrement && n.d.IsPostgresFamily() {
		n.issue(c.Key(), "autoincrement ignored, use serial or identity", nil)
		c.AutoIncrement = false
	}

	if rc.Identity != nil {
		if !n.d.IsPostgresFamily() {
			n.issue(c.Key(), "identity ignored", nil)
		} else {
			id := *rc.Identity
			if id.Type == "" {
				id.Type = IdentityByDefault
			}
			identityDefaults(c.Type, &id)
			c.Identity = &id
			c.NotNull = true
			c.Default = nil
		}
	}

	if rc.Generated != nil {
		expr, err := NormalizeExpression(rc.Generated.Expression)
		if err != nil {
			n.issue(c.Key(), "invalid generated expression", err)
			return nil, false
		}
		g := Generated{Expression: expr, Type: rc.Generated.Type}
		if g.Type == "" || n.d.IsPostgresFamily() {
			g.Type = GeneratedStored
		}
		c.Generated = &g
		c.Default = nil
	}
	return c, true
}

// enumType returns the enum a raw column type names, if any.
func (n *normalizer) enumType(rc RawColumn) *Enum {
	if !n.d.IsPostgresFamily() {
		return nil
	}
	name := strings.Trim(grammar.StripArrayDimensions(strings.TrimSpace(rc.Type)), `"`)
	if rc.TypeSchema != "" {
		return n.m.Enum(n.schema(rc.TypeSchema), name)
	}
	return n.m.Enum(n.d.DefaultSchema(), name)
}

func identityDefaults(colType string, id *Identity) {
	maxv, minv := maxBigint, minBigint
	switch BaseType(colType) {
	case "smallint":
		maxv, minv = "32767", "-32768"
	case "integer":
		maxv, minv = "2147483647", "-2147483648"
	}
	if id.Increment == "" {
		id.Increment = "1"
	}
	desc := strings.HasPrefix(id.Increment, "-")
	if id.Min == "" {
		id.Min = "1"
		if desc {
			id.Min = minv
		}
	}
	if id.Max == "" {
		id.Max = maxv
		if desc {
			id.Max = "-1"
		}
	}
	id.Start, id.Increment, id.Min, id.Max, id.Cache = sequenceDefaults(id.Start, id.Increment, id.Min, id.Max, id.Cache)
}

// constraints normalizes the primary key, uniques, checks and indexes of a
// table already added by table.
func (n *normalizer) constraints(rt *RawTable) {
	schema := n.schema(rt.Schema)
	if n.m.Table(schema, rt.Name) == nil {
		return
	}
	n.primaryKey(schema, rt)

	uniques := slices.Clone(rt.Uniques)
	for _, rc := range rt.Columns {
		if rc.Unique {
			uniques = append(uniques, Unique{Name: rc.UniqueName, Columns: []string{rc.Name}})
		}
	}
	for _, u := range uniques {
		n.unique(schema, rt.Name, u)
	}
	for i, c := range rt.Checks {
		n.check(schema, rt.Name, i, c)
	}
	for _, idx := range rt.Indexes {
		n.index(schema, rt.Name, idx)
	}
}

func (n *normalizer) hasColumns(owner Key, key Key, cols []string) bool {
	if len(cols) == 0 {
		n.issue(key, "no columns", nil)
		return false
	}
	for _, c := range cols {
		if _, ok := n.m.Columns[Key{Kind: KindColumn, Schema: owner.Schema, Table: owner.Name, Name: c}]; !ok {
			n.issue(key, fmt.Sprintf("unknown column %q", c), nil)
			return false
		}
	}
	return true
}

func (n *normalizer) primaryKey(schema string, rt *RawTable) {
	var inline []string
	for _, rc := range rt.Columns {
		if rc.PrimaryKey {
			inline = append(inline, rc.Name)
		}
	}
	var pk *PrimaryKey
	switch {
	case rt.PrimaryKey != nil && len(inline) > 0:
		n.issue(TableKey(schema, rt.Name), "multiple primary keys, inline primary key ignored", nil)
		fallthrough
	case rt.PrimaryKey != nil:
		cp := *rt.PrimaryKey
		cp.Columns = slices.Clone(cp.Columns)
		pk = &cp
	case len(inline) > 0:
		pk = &PrimaryKey{Columns: inline}
	default:
		return
	}
	pk.Schema, pk.Table = schema, rt.Name
	switch {
	case n.d == MySQL || n.d == SQLite:
		pk.Name = ""
	case pk.Name == "":
		pk.Name = rt.Name + "_pkey"
	}
	owner := TableKey(schema, rt.Name)
	if !n.hasColumns(owner, pk.Key(), pk.Columns) {
		return
	}
	if !n.add(pk) {
		return
	}
	for _, name := range pk.Columns {
		n.m.Columns[Key{Kind: KindColumn, Schema: schema, Table: rt.Name, Name: name}].NotNull = true
	}
}

func (n *normalizer) unique(schema, table string, u Unique) {
	u.Schema, u.Table = schema, table
	u.Columns = slices.Clone(u.Columns)
	if u.Name == "" {
		u.Name = table + "_" + strings.Join(u.Columns, "_") + "_unique"
	}
	if !n.hasColumns(TableKey(schema, table), u.Key(), u.Columns) {
		return
	}
	if n.d == SQLite {
		cols := make([]IndexColumn, len(u.Columns))
		for i, c := range u.Columns {
			cols[i] = IndexColumn{Value: c}
		}
		n.add(&Index{Table: table, Name: u.Name, Columns: cols, Unique: true})
		return
	}
	if u.NullsNotDistinct && !n.d.IsPostgresFamily() {
		u.NullsNotDistinct = false
	}
	n.add(&u)
}

func (n *normalizer) check(schema, table string, i int, c Check) {
	c.Schema, c.Table = schema, table
	if c.Name == "" {
		c.Name = fmt.Sprintf("%s_check_%d", table, i+1)
	}
	expr, err := NormalizeExpression(c.Expression)
	if err != nil {
		n.issue(c.Key(), "invalid check expression", err)
		return
	}
	if expr == "" {
		n.issue(c.Key(), "empty check expression", nil)
		return
	}
	c.Expression = expr
	n.add(&c)
}

var defaultNulls = map[bool]string{false: "last", true: "first"}

func (n *normalizer) index(schema, table string, idx Index) {
	idx.Schema, idx.Table = schema, table
	idx.Columns = slices.Clone(idx.Columns)
	key := idx.Key()
	if len(idx.Columns) == 0 {
		n.issue(key, "index has no columns", nil)
		return
	}

	names := make([]string, 0, len(idx.Columns))
	for i := range idx.Columns {
		col := &idx.Columns[i]
		if col.IsExpression {
			expr, err := NormalizeExpression(col.Value)
			if err != nil {
				n.issue(key, "invalid index expression", err)
				return
			}
			col.Value = expr
		} else if _, ok := n.m.Columns[Key{Kind: KindColumn, Schema: schema, Table: table, Name: col.Value}]; !ok {
			n.issue(key, fmt.Sprintf("unknown column %q", col.Value), nil)
			return
		}
		names = append(names, col.Value)

		col.Nulls = strings.ToLower(col.Nulls)
		col.Opclass = strings.ToLower(col.Opclass)
		if !n.d.IsPostgresFamily() || col.Nulls == defaultNulls[col.Desc] {
			col.Nulls = ""
		}
		if !n.d.IsPostgresFamily() {
			col.Opclass = ""
		}
	}
	if idx.Name == "" {
		if slices.ContainsFunc(idx.Columns, func(c IndexColumn) bool { return c.IsExpression }) {
			n.issue(key, "expression index needs a name", nil)
			return
		}
		idx.Name = table + "_" + strings.Join(names, "_") + "_index"
		key = idx.Key()
	}

	idx.Method = strings.ToLower(idx.Method)
	if n.d.IsPostgresFamily() {
		if idx.Method == "" {
			idx.Method = "btree"
		}
	} else {
		idx.Method = ""
		idx.Concurrently = false
		idx.With = ""
	}

	if idx.Where != "" {
		if n.d == MySQL {
			n.issue(key, "partial indexes are not supported by mysql", nil)
			return
		}
		where, err := NormalizeExpression(idx.Where)
		if err != nil {
			n.issue(key, "invalid index predicate", err)
			return
		}
		idx.Where = where
	}
	n.add(&idx)
}

func (n *normalizer) foreignKeys(rt *RawTable) {
	schema := n.schema(rt.Schema)
	if n.m.Table(schema, rt.Name) == nil {
		return
	}
	for _, fk := range rt.ForeignKeys {
		n.foreignKey(schema, rt.Name, fk)
	}
}

func (n *normalizer) foreignKey(schema, table string, fk ForeignKey) {
	fk.Schema, fk.Table = schema, table
	fk.ToSchema = n.schema(fk.ToSchema)
	fk.Columns = slices.Clone(fk.Columns)
	fk.ToColumns = slices.Clone(fk.ToColumns)
	if fk.Name == "" || n.d == SQLite {
		fk.Name = fmt.Sprintf("%s_%s_%s_%s_fk", table, strings.Join(fk.Columns, "_"), fk.ToTable, strings.Join(fk.ToColumns, "_"))
	}
	key := fk.Key()
	if len(fk.Columns) != len(fk.ToColumns) {
		n.issue(key, "column count does not match referenced columns", nil)
		return
	}
	if !n.hasColumns(TableKey(schema, table), key, fk.Columns) {
		return
	}
	if n.m.Table(fk.ToSchema, fk.ToTable) == nil {
		n.issue(key, fmt.Sprintf("referenced table %s does not exist", TableKey(fk.ToSchema, fk.ToTable).Qualified()), nil)
		return
	}
	if !n.hasColumns(TableKey(fk.ToSchema, fk.ToTable), key, fk.ToColumns) {
		return
	}
	fk.OnUpdate = normalizeAction(fk.OnUpdate)
	fk.OnDelete = normalizeAction(fk.OnDelete)
	n.add(&fk)
}

func normalizeAction(a string) string {
	a = strings.ToLower(strings.Join(strings.Fields(a), " "))
	if a == "" {
		return "no action"
	}
	return a
}

func (n *normalizer) policies(policies []Policy) {
	for _, p := range policies {
		p.Schema = n.schema(p.Schema)
		if !n.supported(p.Key()) {
			continue
		}
		if n.m.Table(p.Schema, p.Table) == nil {
			n.issue(p.Key(), "table does not exist", nil)
			continue
		}
		p.As = strings.ToLower(p.As)
		if p.As == "" {
			p.As = "permissive"
		}
		p.For = strings.ToLower(p.For)
		if p.For == "" {
			p.For = "all"
		}
		p.To = slices.Clone(p.To)
		if len(p.To) == 0 {
			p.To = []string{"public"}
		}
		slices.Sort(p.To)
		p.To = slices.Compact(p.To)

		var err error
		if p.Using, err = NormalizeExpression(p.Using); err != nil {
			n.issue(p.Key(), "invalid using expression", err)
			continue
		}
		if p.WithCheck, err = NormalizeExpression(p.WithCheck); err != nil {
			n.issue(p.Key(), "invalid with check expression", err)
			continue
		}
		n.add(&p)
	}
}

func (n *normalizer) views(views []View) {
	for _, v := range views {
		v.Schema = n.schema(v.Schema)
		if v.Materialized && !n.d.IsPostgresFamily() {
			n.issue(v.Key(), "materialized views are not supported", nil)
			continue
		}
		if !n.d.IsPostgresFamily() {
			v.With = ""
		}
		def, err := grammar.CollapseWhitespace(v.Definition)
		if err != nil {
			n.issue(v.Key(), "invalid view definition", err)
			continue
		}
		v.Definition = strings.TrimSpace(strings.TrimRight(def, "; "))
		if v.Definition == "" && !v.Existing {
			n.issue(v.Key(), "view has no definition", nil)
			continue
		}
		if n.add(&v) {
			n.ensureSchema(v.Schema)
		}
	}
}

func firstDuplicate(values []string) string {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return v
		}
		seen[v] = true
	}
	return ""
}

// IsGrammarIssue reports whether an issue was caused by a malformed
// expression or type string.
func IsGrammarIssue(i Issue) bool {
	return errors.Is(i, grammar.ErrInvalid)
}
