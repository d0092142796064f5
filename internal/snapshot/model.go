package snapshot

import (
	"maps"
	"slices"

	"github.com/ddlkit/ddlkit/internal/ddl"
)

// FromModel converts a model into snapshot form. Ids are left empty.
func FromModel(m *ddl.Model) *Snapshot {
	s := blank(m.Dialect)

	for _, sc := range ddl.Sorted(m.Schemas) {
		s.Schemas[sc.Name] = sc.Name
	}
	for _, e := range ddl.Sorted(m.Enums) {
		s.Enums[e.Key().Qualified()] = Enum{Name: e.Name, Schema: e.Schema, Values: slices.Clone(e.Values)}
	}
	for _, q := range ddl.Sorted(m.Sequences) {
		s.Sequences[q.Key().Qualified()] = Sequence{
			Name:      q.Name,
			Schema:    q.Schema,
			Increment: q.Increment,
			MinValue:  q.Min,
			MaxValue:  q.Max,
			StartWith: q.Start,
			Cache:     q.Cache,
			Cycle:     q.Cycle,
		}
	}
	for _, r := range ddl.Sorted(m.Roles) {
		s.Roles[r.Name] = Role{Name: r.Name, CreateDB: r.CreateDB, CreateRole: r.CreateRole, Inherit: r.Inherit}
	}
	for _, v := range ddl.Sorted(m.Views) {
		s.Views[v.Key().Qualified()] = View{
			Name:         v.Name,
			Schema:       v.Schema,
			Definition:   v.Definition,
			Materialized: v.Materialized,
			IsExisting:   v.Existing,
			With:         v.With,
		}
	}
	for _, t := range ddl.Sorted(m.Tables) {
		s.Tables[t.Key().Qualified()] = fromTable(m, t)
	}
	return s
}

func defaultPKName(d ddl.Dialect, table string) string {
	if d.IsPostgresFamily() {
		return table + "_pkey"
	}
	return ""
}

func fromTable(m *ddl.Model, t *ddl.Table) Table {
	out := Table{
		Name:                 t.Name,
		Schema:               t.Schema,
		Indexes:              map[string]Index{},
		ForeignKeys:          map[string]ForeignKey{},
		CompositePrimaryKeys: map[string]PrimaryKey{},
		UniqueConstraints:    map[string]Unique{},
		CheckConstraints:     map[string]Check{},
		Policies:             map[string]Policy{},
		IsRLSEnabled:         t.RLSEnabled,
	}

	// a single column key under the default name is stored on the column
	inlinePK := ""
	if pk := m.PrimaryKeyOf(t.Schema, t.Name); pk != nil {
		if len(pk.Columns) == 1 && pk.Name == defaultPKName(m.Dialect, t.Name) {
			inlinePK = pk.Columns[0]
		} else {
			name := pk.Name
			if name == "" {
				name = t.Name + "_pk"
			}
			out.CompositePrimaryKeys[name] = PrimaryKey{Name: pk.Name, Columns: slices.Clone(pk.Columns)}
		}
	}

	for _, c := range m.ColumnsOf(t.Schema, t.Name) {
		col := Column{
			Name:          c.Name,
			Type:          c.Type,
			TypeSchema:    c.TypeSchema,
			PrimaryKey:    c.Name == inlinePK,
			NotNull:       c.NotNull,
			AutoIncrement: c.AutoIncrement,
		}
		if c.Default != nil {
			def := *c.Default
			col.Default = &def
		}
		if id := c.Identity; id != nil {
			col.Identity = &Identity{
				Type:      string(id.Type),
				StartWith: id.Start,
				Increment: id.Increment,
				MinValue:  id.Min,
				MaxValue:  id.Max,
				Cache:     id.Cache,
				Cycle:     id.Cycle,
			}
		}
		if g := c.Generated; g != nil {
			col.Generated = &Generated{As: g.Expression, Type: string(g.Type)}
		}
		out.Columns = append(out.Columns, col)
	}

	for _, idx := range m.IndexesOf(t.Schema, t.Name) {
		cols := make([]IndexColumn, len(idx.Columns))
		for i, c := range idx.Columns {
			cols[i] = IndexColumn{
				Expression:   c.Value,
				IsExpression: c.IsExpression,
				Asc:          !c.Desc,
				Nulls:        c.Nulls,
				Opclass:      c.Opclass,
			}
		}
		out.Indexes[idx.Name] = Index{
			Name:         idx.Name,
			Columns:      cols,
			IsUnique:     idx.Unique,
			Where:        idx.Where,
			Method:       idx.Method,
			Concurrently: idx.Concurrently,
			With:         idx.With,
		}
	}
	for _, fk := range m.ForeignKeysOf(t.Schema, t.Name) {
		out.ForeignKeys[fk.Name] = ForeignKey{
			Name:        fk.Name,
			TableFrom:   fk.Table,
			ColumnsFrom: slices.Clone(fk.Columns),
			SchemaTo:    fk.ToSchema,
			TableTo:     fk.ToTable,
			ColumnsTo:   slices.Clone(fk.ToColumns),
			OnUpdate:    fk.OnUpdate,
			OnDelete:    fk.OnDelete,
		}
	}
	for _, u := range m.UniquesOf(t.Schema, t.Name) {
		out.UniqueConstraints[u.Name] = Unique{Name: u.Name, Columns: slices.Clone(u.Columns), NullsNotDistinct: u.NullsNotDistinct}
	}
	for _, c := range m.ChecksOf(t.Schema, t.Name) {
		out.CheckConstraints[c.Name] = Check{Name: c.Name, Value: c.Expression}
	}
	for _, p := range m.PoliciesOf(t.Schema, t.Name) {
		out.Policies[p.Name] = Policy{
			Name:      p.Name,
			As:        p.As,
			For:       p.For,
			To:        slices.Clone(p.To),
			Using:     p.Using,
			WithCheck: p.WithCheck,
		}
	}
	return out
}

// ToModel rebuilds the model through ddl.Normalize. Issues are returned
// with the best effort model.
func (s *Snapshot) ToModel() (*ddl.Model, []ddl.Issue) {
	return ddl.Normalize(s.Raw())
}

// Raw converts the snapshot into the loose form Normalize accepts.
func (s *Snapshot) Raw() *ddl.Raw {
	raw := &ddl.Raw{Dialect: s.Dialect}

	for _, k := range slices.Sorted(maps.Keys(s.Schemas)) {
		raw.Schemas = append(raw.Schemas, s.Schemas[k])
	}
	for _, k := range slices.Sorted(maps.Keys(s.Enums)) {
		e := s.Enums[k]
		raw.Enums = append(raw.Enums, ddl.Enum{Schema: e.Schema, Name: e.Name, Values: slices.Clone(e.Values)})
	}
	for _, k := range slices.Sorted(maps.Keys(s.Sequences)) {
		q := s.Sequences[k]
		raw.Sequences = append(raw.Sequences, ddl.Sequence{
			Schema:    q.Schema,
			Name:      q.Name,
			Start:     q.StartWith,
			Increment: q.Increment,
			Min:       q.MinValue,
			Max:       q.MaxValue,
			Cache:     q.Cache,
			Cycle:     q.Cycle,
		})
	}
	for _, k := range slices.Sorted(maps.Keys(s.Roles)) {
		r := s.Roles[k]
		raw.Roles = append(raw.Roles, ddl.Role{Name: r.Name, CreateDB: r.CreateDB, CreateRole: r.CreateRole, Inherit: r.Inherit})
	}
	for _, k := range slices.Sorted(maps.Keys(s.Views)) {
		v := s.Views[k]
		raw.Views = append(raw.Views, ddl.View{
			Schema:       v.Schema,
			Name:         v.Name,
			Definition:   v.Definition,
			Materialized: v.Materialized,
			Existing:     v.IsExisting,
			With:         v.With,
		})
	}
	for _, k := range slices.Sorted(maps.Keys(s.Tables)) {
		raw.Tables = append(raw.Tables, s.Tables[k].raw())
	}
	for _, k := range slices.Sorted(maps.Keys(s.Policies)) {
		p := s.Policies[k]
		pol := p.policy()
		pol.Schema, pol.Table = p.Schema, p.On
		raw.Policies = append(raw.Policies, pol)
	}
	return raw
}

func (p Policy) policy() ddl.Policy {
	return ddl.Policy{
		Name:      p.Name,
		As:        p.As,
		For:       p.For,
		To:        slices.Clone(p.To),
		Using:     p.Using,
		WithCheck: p.WithCheck,
	}
}

func (t Table) raw() ddl.RawTable {
	rt := ddl.RawTable{Schema: t.Schema, Name: t.Name, RLSEnabled: t.IsRLSEnabled}

	for _, c := range t.Columns {
		rc := ddl.RawColumn{
			Name:          c.Name,
			Type:          c.Type,
			TypeSchema:    c.TypeSchema,
			NotNull:       c.NotNull,
			PrimaryKey:    c.PrimaryKey,
			AutoIncrement: c.AutoIncrement,
		}
		if c.Default != nil {
			def := *c.Default
			rc.Default = &def
		}
		if id := c.Identity; id != nil {
			rc.Identity = &ddl.Identity{
				Type:      ddl.IdentityType(id.Type),
				Start:     id.StartWith,
				Increment: id.Increment,
				Min:       id.MinValue,
				Max:       id.MaxValue,
				Cache:     id.Cache,
				Cycle:     id.Cycle,
			}
		}
		if g := c.Generated; g != nil {
			rc.Generated = &ddl.Generated{Expression: g.As, Type: ddl.GeneratedType(g.Type)}
		}
		rt.Columns = append(rt.Columns, rc)
	}

	for _, k := range slices.Sorted(maps.Keys(t.CompositePrimaryKeys)) {
		pk := t.CompositePrimaryKeys[k]
		rt.PrimaryKey = &ddl.PrimaryKey{Name: pk.Name, Columns: slices.Clone(pk.Columns)}
		break
	}
	for _, k := range slices.Sorted(maps.Keys(t.UniqueConstraints)) {
		u := t.UniqueConstraints[k]
		rt.Uniques = append(rt.Uniques, ddl.Unique{Name: u.Name, Columns: slices.Clone(u.Columns), NullsNotDistinct: u.NullsNotDistinct})
	}
	for _, k := range slices.Sorted(maps.Keys(t.CheckConstraints)) {
		c := t.CheckConstraints[k]
		rt.Checks = append(rt.Checks, ddl.Check{Name: c.Name, Expression: c.Value})
	}
	for _, k := range slices.Sorted(maps.Keys(t.Indexes)) {
		idx := t.Indexes[k]
		cols := make([]ddl.IndexColumn, len(idx.Columns))
		for i, c := range idx.Columns {
			cols[i] = ddl.IndexColumn{
				Value:        c.Expression,
				IsExpression: c.IsExpression,
				Desc:         !c.Asc,
				Nulls:        c.Nulls,
				Opclass:      c.Opclass,
			}
		}
		rt.Indexes = append(rt.Indexes, ddl.Index{
			Name:         idx.Name,
			Columns:      cols,
			Unique:       idx.IsUnique,
			Method:       idx.Method,
			Where:        idx.Where,
			Concurrently: idx.Concurrently,
			With:         idx.With,
		})
	}
	for _, k := range slices.Sorted(maps.Keys(t.ForeignKeys)) {
		fk := t.ForeignKeys[k]
		rt.ForeignKeys = append(rt.ForeignKeys, ddl.ForeignKey{
			Name:      fk.Name,
			Columns:   slices.Clone(fk.ColumnsFrom),
			ToSchema:  fk.SchemaTo,
			ToTable:   fk.TableTo,
			ToColumns: slices.Clone(fk.ColumnsTo),
			OnUpdate:  fk.OnUpdate,
			OnDelete:  fk.OnDelete,
		})
	}
	for _, k := range slices.Sorted(maps.Keys(t.Policies)) {
		rt.Policies = append(rt.Policies, t.Policies[k].policy())
	}
	return rt
}
