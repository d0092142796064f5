package ddl

import "slices"

// Entity is implemented by every model entity. The set is closed.
type Entity interface {
	Key() Key
	entity()
}

// Schema is a namespace (Postgres family only).
type Schema struct {
	Name string
}

// Table is a relation. Its columns and constraints live in their own
// collections keyed by the table identity.
type Table struct {
	Schema     string
	Name       string
	RLSEnabled bool
}

// IdentityType is the GENERATED ... AS IDENTITY flavour.
type IdentityType string

const (
	IdentityAlways    IdentityType = "always"
	IdentityByDefault IdentityType = "byDefault"
)

// Identity describes an identity column and its implicit sequence options.
// Empty option strings mean the engine default.
type Identity struct {
	Type      IdentityType
	Start     string
	Increment string
	Min       string
	Max       string
	Cache     string
	Cycle     bool
}

// GeneratedType is stored or virtual.
type GeneratedType string

const (
	GeneratedStored  GeneratedType = "stored"
	GeneratedVirtual GeneratedType = "virtual"
)

// Generated is a generated column expression.
type Generated struct {
	Expression string
	Type       GeneratedType
}

// Column belongs to a table. Type is the normalized dialect type string
// including parameters and array dimensions, e.g. "numeric(10,2)[]".
type Column struct {
	Schema   string
	Table    string
	Name     string
	Position int
	Type     string
	// TypeSchema is set when Type names a user-defined enum.
	TypeSchema    string
	NotNull       bool
	Default       *string
	AutoIncrement bool
	Identity      *Identity
	Generated     *Generated
}

type PrimaryKey struct {
	Schema  string
	Table   string
	Name    string
	Columns []string
}

type Unique struct {
	Schema           string
	Table            string
	Name             string
	Columns          []string
	NullsNotDistinct bool
}

type Check struct {
	Schema     string
	Table      string
	Name       string
	Expression string
}

// IndexColumn is one element of an index definition, a column name or an
// expression.
type IndexColumn struct {
	Value        string
	IsExpression bool
	Desc         bool
	// Nulls is "first" or "last" when it differs from the engine default
	// for the sort direction.
	Nulls   string
	Opclass string
}

type Index struct {
	Schema       string
	Table        string
	Name         string
	Columns      []IndexColumn
	Unique       bool
	Method       string
	Where        string
	Concurrently bool
	With         string
}

type ForeignKey struct {
	Schema    string
	Table     string
	Name      string
	Columns   []string
	ToSchema  string
	ToTable   string
	ToColumns []string
	OnUpdate  string
	OnDelete  string
}

// Enum is an ordered label list. Label order is significant.
type Enum struct {
	Schema string
	Name   string
	Values []string
}

// Sequence options are kept as strings so 64-bit bounds survive JSON.
type Sequence struct {
	Schema    string
	Name      string
	Start     string
	Increment string
	Min       string
	Max       string
	Cache     string
	Cycle     bool
}

// View is a regular or materialized view. Existing views are defined
// outside the managed schema: they are compared but never created or dropped.
type View struct {
	Schema       string
	Name         string
	Definition   string
	Materialized bool
	Existing     bool
	With         string
}

type Role struct {
	Name       string
	CreateDB   bool
	CreateRole bool
	Inherit    bool
}

// Policy is a row level security policy on a table.
type Policy struct {
	Schema    string
	Table     string
	Name      string
	As        string
	For       string
	To        []string
	Using     string
	WithCheck string
}

func (e *Schema) Key() Key     { return SchemaKey(e.Name) }
func (e *Table) Key() Key      { return TableKey(e.Schema, e.Name) }
func (e *Column) Key() Key     { return Key{Kind: KindColumn, Schema: e.Schema, Table: e.Table, Name: e.Name} }
func (e *PrimaryKey) Key() Key { return Key{Kind: KindPrimaryKey, Schema: e.Schema, Table: e.Table} }
func (e *Unique) Key() Key     { return Key{Kind: KindUnique, Schema: e.Schema, Table: e.Table, Name: e.Name} }
func (e *Check) Key() Key      { return Key{Kind: KindCheck, Schema: e.Schema, Table: e.Table, Name: e.Name} }
func (e *Index) Key() Key      { return Key{Kind: KindIndex, Schema: e.Schema, Table: e.Table, Name: e.Name} }
func (e *ForeignKey) Key() Key { return Key{Kind: KindForeignKey, Schema: e.Schema, Table: e.Table, Name: e.Name} }
func (e *Enum) Key() Key       { return Key{Kind: KindEnum, Schema: e.Schema, Name: e.Name} }
func (e *Sequence) Key() Key   { return Key{Kind: KindSequence, Schema: e.Schema, Name: e.Name} }
func (e *View) Key() Key       { return Key{Kind: KindView, Schema: e.Schema, Name: e.Name} }
func (e *Role) Key() Key       { return RoleKey(e.Name) }
func (e *Policy) Key() Key     { return Key{Kind: KindPolicy, Schema: e.Schema, Table: e.Table, Name: e.Name} }

func (*Schema) entity()     {}
func (*Table) entity()      {}
func (*Column) entity()     {}
func (*PrimaryKey) entity() {}
func (*Unique) entity()     {}
func (*Check) entity()      {}
func (*Index) entity()      {}
func (*ForeignKey) entity() {}
func (*Enum) entity()       {}
func (*Sequence) entity()   {}
func (*View) entity()       {}
func (*Role) entity()       {}
func (*Policy) entity()     {}

// References reports whether the foreign key points at the given table.
func (e *ForeignKey) References(schema, table string) bool {
	return e.ToSchema == schema && e.ToTable == table
}

// ReferencesColumn reports whether the index lists column by name.
func (e *Index) ReferencesColumn(column string) bool {
	return slices.ContainsFunc(e.Columns, func(c IndexColumn) bool {
		return !c.IsExpression && c.Value == column
	})
}
