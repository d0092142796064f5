package ddl

import "strings"

// Kind enumerates the entity kinds a Model holds.
type Kind int

const (
	KindSchema Kind = iota
	KindEnum
	KindSequence
	KindRole
	KindTable
	KindColumn
	KindPrimaryKey
	KindUnique
	KindCheck
	KindIndex
	KindForeignKey
	KindPolicy
	KindView
)

var kindNames = [...]string{
	KindSchema:     "schema",
	KindEnum:       "enum",
	KindSequence:   "sequence",
	KindRole:       "role",
	KindTable:      "table",
	KindColumn:     "column",
	KindPrimaryKey: "primary key",
	KindUnique:     "unique constraint",
	KindCheck:      "check constraint",
	KindIndex:      "index",
	KindForeignKey: "foreign key",
	KindPolicy:     "policy",
	KindView:       "view",
}

// Kinds returns every kind in diff order.
func Kinds() []Kind {
	return []Kind{
		KindSchema, KindEnum, KindSequence, KindRole, KindTable, KindColumn,
		KindPrimaryKey, KindUnique, KindCheck, KindIndex, KindForeignKey,
		KindPolicy, KindView,
	}
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Key is the identity of an entity within a Model. Table is set only for
// table-scoped kinds; Schema is empty for schemas, roles and schema-less
// dialects.
type Key struct {
	Kind   Kind
	Schema string
	Table  string
	Name   string
}

// SchemaKey returns the identity of schema name.
func SchemaKey(name string) Key { return Key{Kind: KindSchema, Name: name} }

// RoleKey returns the identity of role name.
func RoleKey(name string) Key { return Key{Kind: KindRole, Name: name} }

// TableKey returns the identity of a table.
func TableKey(schema, name string) Key { return Key{Kind: KindTable, Schema: schema, Name: name} }

// Owner returns the key of the table owning a table-scoped entity.
func (k Key) Owner() Key {
	return TableKey(k.Schema, k.Table)
}

// Qualified joins the non-empty parts with dots, e.g. "public.users.id".
func (k Key) Qualified() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{k.Schema, k.Table, k.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

func (k Key) String() string {
	return k.Kind.String() + " " + k.Qualified()
}

// Less orders keys by kind, schema, table and name.
func (k Key) Less(o Key) bool {
	if k.Kind != o.Kind {
		return k.Kind < o.Kind
	}
	if k.Schema != o.Schema {
		return k.Schema < o.Schema
	}
	if k.Table != o.Table {
		return k.Table < o.Table
	}
	return k.Name < o.Name
}
