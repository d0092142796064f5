// Package ddl defines the normalized, dialect-specific structure of a
// schema as flat keyed collections.
package ddl

import (
	"fmt"
	"slices"
	"sort"
)

// Model is one schema's structure. Collections are keyed by entity identity
// so two Models can be compared without walking a tree. A Model is not
// modified after Normalize returns it.
type Model struct {
	Dialect     Dialect
	Schemas     map[Key]*Schema
	Tables      map[Key]*Table
	Columns     map[Key]*Column
	PrimaryKeys map[Key]*PrimaryKey
	Uniques     map[Key]*Unique
	Checks      map[Key]*Check
	Indexes     map[Key]*Index
	ForeignKeys map[Key]*ForeignKey
	Enums       map[Key]*Enum
	Sequences   map[Key]*Sequence
	Views       map[Key]*View
	Roles       map[Key]*Role
	Policies    map[Key]*Policy
}

// NewModel returns an empty Model for dialect d.
func NewModel(d Dialect) *Model {
	return &Model{
		Dialect:     d,
		Schemas:     map[Key]*Schema{},
		Tables:      map[Key]*Table{},
		Columns:     map[Key]*Column{},
		PrimaryKeys: map[Key]*PrimaryKey{},
		Uniques:     map[Key]*Unique{},
		Checks:      map[Key]*Check{},
		Indexes:     map[Key]*Index{},
		ForeignKeys: map[Key]*ForeignKey{},
		Enums:       map[Key]*Enum{},
		Sequences:   map[Key]*Sequence{},
		Views:       map[Key]*View{},
		Roles:       map[Key]*Role{},
		Policies:    map[Key]*Policy{},
	}
}

// Add inserts e, failing when an entity with the same identity exists.
func (m *Model) Add(e Entity) error {
	key := e.Key()
	if _, ok := m.Lookup(key); ok {
		return fmt.Errorf("duplicate %s", key)
	}
	switch v := e.(type) {
	case *Schema:
		m.Schemas[key] = v
	case *Table:
		m.Tables[key] = v
	case *Column:
		m.Columns[key] = v
	case *PrimaryKey:
		m.PrimaryKeys[key] = v
	case *Unique:
		m.Uniques[key] = v
	case *Check:
		m.Checks[key] = v
	case *Index:
		m.Indexes[key] = v
	case *ForeignKey:
		m.ForeignKeys[key] = v
	case *Enum:
		m.Enums[key] = v
	case *Sequence:
		m.Sequences[key] = v
	case *View:
		m.Views[key] = v
	case *Role:
		m.Roles[key] = v
	case *Policy:
		m.Policies[key] = v
	default:
		return fmt.Errorf("unknown entity %T", e)
	}
	return nil
}

// Lookup finds the entity with identity key.
func (m *Model) Lookup(key Key) (Entity, bool) {
	var (
		e  Entity
		ok bool
	)
	switch key.Kind {
	case KindSchema:
		e, ok = lookup(m.Schemas, key)
	case KindTable:
		e, ok = lookup(m.Tables, key)
	case KindColumn:
		e, ok = lookup(m.Columns, key)
	case KindPrimaryKey:
		e, ok = lookup(m.PrimaryKeys, key)
	case KindUnique:
		e, ok = lookup(m.Uniques, key)
	case KindCheck:
		e, ok = lookup(m.Checks, key)
	case KindIndex:
		e, ok = lookup(m.Indexes, key)
	case KindForeignKey:
		e, ok = lookup(m.ForeignKeys, key)
	case KindEnum:
		e, ok = lookup(m.Enums, key)
	case KindSequence:
		e, ok = lookup(m.Sequences, key)
	case KindView:
		e, ok = lookup(m.Views, key)
	case KindRole:
		e, ok = lookup(m.Roles, key)
	case KindPolicy:
		e, ok = lookup(m.Policies, key)
	}
	return e, ok
}

func lookup[T Entity](m map[Key]T, key Key) (Entity, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	return v, true
}

// Entities returns all entities of kind k sorted by key.
func (m *Model) Entities(k Kind) []Entity {
	switch k {
	case KindSchema:
		return entities(m.Schemas)
	case KindTable:
		return entities(m.Tables)
	case KindColumn:
		return entities(m.Columns)
	case KindPrimaryKey:
		return entities(m.PrimaryKeys)
	case KindUnique:
		return entities(m.Uniques)
	case KindCheck:
		return entities(m.Checks)
	case KindIndex:
		return entities(m.Indexes)
	case KindForeignKey:
		return entities(m.ForeignKeys)
	case KindEnum:
		return entities(m.Enums)
	case KindSequence:
		return entities(m.Sequences)
	case KindView:
		return entities(m.Views)
	case KindRole:
		return entities(m.Roles)
	case KindPolicy:
		return entities(m.Policies)
	}
	return nil
}

func entities[T Entity](m map[Key]T) []Entity {
	out := make([]Entity, 0, len(m))
	for _, v := range Sorted(m) {
		out = append(out, v)
	}
	return out
}

// Sorted returns the values of a collection ordered by key.
func Sorted[T Entity](m map[Key]T) []T {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

// Len counts every entity in the model.
func (m *Model) Len() int {
	return len(m.Schemas) + len(m.Tables) + len(m.Columns) + len(m.PrimaryKeys) +
		len(m.Uniques) + len(m.Checks) + len(m.Indexes) + len(m.ForeignKeys) +
		len(m.Enums) + len(m.Sequences) + len(m.Views) + len(m.Roles) + len(m.Policies)
}

// Table returns the table with the given identity or nil.
func (m *Model) Table(schema, name string) *Table {
	return m.Tables[TableKey(schema, name)]
}

// Enum returns the enum with the given identity or nil.
func (m *Model) Enum(schema, name string) *Enum {
	return m.Enums[Key{Kind: KindEnum, Schema: schema, Name: name}]
}

// ColumnsOf returns the columns of a table ordered by position.
func (m *Model) ColumnsOf(schema, table string) []*Column {
	out := ownedBy(m.Columns, schema, table)
	slices.SortStableFunc(out, func(a, b *Column) int { return a.Position - b.Position })
	return out
}

// PrimaryKeyOf returns the table's primary key or nil.
func (m *Model) PrimaryKeyOf(schema, table string) *PrimaryKey {
	return m.PrimaryKeys[Key{Kind: KindPrimaryKey, Schema: schema, Table: table}]
}

func (m *Model) UniquesOf(schema, table string) []*Unique {
	return ownedBy(m.Uniques, schema, table)
}

func (m *Model) ChecksOf(schema, table string) []*Check {
	return ownedBy(m.Checks, schema, table)
}

func (m *Model) IndexesOf(schema, table string) []*Index {
	return ownedBy(m.Indexes, schema, table)
}

func (m *Model) ForeignKeysOf(schema, table string) []*ForeignKey {
	return ownedBy(m.ForeignKeys, schema, table)
}

func (m *Model) PoliciesOf(schema, table string) []*Policy {
	return ownedBy(m.Policies, schema, table)
}

func ownedBy[T Entity](m map[Key]T, schema, table string) []T {
	var out []T
	for _, v := range Sorted(m) {
		k := v.Key()
		if k.Schema == schema && k.Table == table {
			out = append(out, v)
		}
	}
	return out
}

// Clone returns a deep copy of the model.
func (m *Model) Clone() *Model {
	c := NewModel(m.Dialect)
	for k, v := range m.Schemas {
		cp := *v
		c.Schemas[k] = &cp
	}
	for k, v := range m.Tables {
		cp := *v
		c.Tables[k] = &cp
	}
	for k, v := range m.Columns {
		c.Columns[k] = v.Clone()
	}
	for k, v := range m.PrimaryKeys {
		cp := *v
		cp.Columns = slices.Clone(v.Columns)
		c.PrimaryKeys[k] = &cp
	}
	for k, v := range m.Uniques {
		cp := *v
		cp.Columns = slices.Clone(v.Columns)
		c.Uniques[k] = &cp
	}
	for k, v := range m.Checks {
		cp := *v
		c.Checks[k] = &cp
	}
	for k, v := range m.Indexes {
		cp := *v
		cp.Columns = slices.Clone(v.Columns)
		c.Indexes[k] = &cp
	}
	for k, v := range m.ForeignKeys {
		cp := *v
		cp.Columns = slices.Clone(v.Columns)
		cp.ToColumns = slices.Clone(v.ToColumns)
		c.ForeignKeys[k] = &cp
	}
	for k, v := range m.Enums {
		cp := *v
		cp.Values = slices.Clone(v.Values)
		c.Enums[k] = &cp
	}
	for k, v := range m.Sequences {
		cp := *v
		c.Sequences[k] = &cp
	}
	for k, v := range m.Views {
		cp := *v
		c.Views[k] = &cp
	}
	for k, v := range m.Roles {
		cp := *v
		c.Roles[k] = &cp
	}
	for k, v := range m.Policies {
		cp := *v
		cp.To = slices.Clone(v.To)
		c.Policies[k] = &cp
	}
	return c
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	cp := *c
	if c.Default != nil {
		d := *c.Default
		cp.Default = &d
	}
	if c.Identity != nil {
		id := *c.Identity
		cp.Identity = &id
	}
	if c.Generated != nil {
		g := *c.Generated
		cp.Generated = &g
	}
	return &cp
}
