package ddl

// Raw is the loose schema description produced by introspection, schema
// file parsing and snapshot decoding. Normalize turns it into a Model.
// Schema names may be empty, meaning the dialect default.
type Raw struct {
	Dialect   Dialect
	Schemas   []string
	Tables    []RawTable
	Enums     []Enum
	Sequences []Sequence
	Roles     []Role
	Views     []View
	// Policies declared outside a table body.
	Policies []Policy
}

// RawTable carries a table with its owned entities. Owned entities may leave
// Schema and Table empty.
type RawTable struct {
	Schema      string
	Name        string
	RLSEnabled  bool
	Columns     []RawColumn
	PrimaryKey  *PrimaryKey
	Uniques     []Unique
	Checks      []Check
	Indexes     []Index
	ForeignKeys []ForeignKey
	Policies    []Policy
}

// RawColumn is a column before type and default normalization.
type RawColumn struct {
	Name       string
	Type       string
	TypeSchema string
	NotNull    bool
	Default    *string
	// PrimaryKey marks an inline single column primary key.
	PrimaryKey    bool
	Unique        bool
	UniqueName    string
	AutoIncrement bool
	Identity      *Identity
	Generated     *Generated
}

// Table returns the raw table with the given name, or nil.
func (r *Raw) Table(schema, name string) *RawTable {
	for i := range r.Tables {
		if r.Tables[i].Schema == schema && r.Tables[i].Name == name {
			return &r.Tables[i]
		}
	}
	return nil
}
