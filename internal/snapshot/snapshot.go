// Package snapshot is the versioned JSON form of a model stored next to
// every migration.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ddlkit/ddlkit/internal/ddl"
)

// CurrentVersion is the snapshot format written by this build.
const CurrentVersion = "7"

// OriginID is the id of the empty snapshot every lineage starts from.
var OriginID = uuid.Nil.String()

// ErrTooNew is returned for snapshots written by a newer format.
var ErrTooNew = errors.New("snapshot version is newer than supported")

type Snapshot struct {
	Version   string              `json:"version"`
	Dialect   ddl.Dialect         `json:"dialect"`
	ID        string              `json:"id"`
	PrevID    string              `json:"prevId"`
	Schemas   map[string]string   `json:"schemas"`
	Tables    map[string]Table    `json:"tables"`
	Enums     map[string]Enum     `json:"enums"`
	Sequences map[string]Sequence `json:"sequences"`
	Views     map[string]View     `json:"views"`
	Roles     map[string]Role     `json:"roles"`
	// Policies declared outside a table, keyed by "table.policy".
	Policies map[string]Policy `json:"policies"`
	Meta     Meta              `json:"_meta"`
	// Internal is carried through untouched.
	Internal json.RawMessage `json:"internal,omitempty"`
}

// Meta records the renames applied by the diff that produced the snapshot.
type Meta struct {
	Schemas map[string]string `json:"schemas"`
	Tables  map[string]string `json:"tables"`
	Columns map[string]string `json:"columns"`
}

type Table struct {
	Name                 string                `json:"name"`
	Schema               string                `json:"schema"`
	Columns              Columns               `json:"columns"`
	Indexes              map[string]Index      `json:"indexes"`
	ForeignKeys          map[string]ForeignKey `json:"foreignKeys"`
	CompositePrimaryKeys map[string]PrimaryKey `json:"compositePrimaryKeys"`
	UniqueConstraints    map[string]Unique     `json:"uniqueConstraints"`
	CheckConstraints     map[string]Check      `json:"checkConstraints"`
	Policies             map[string]Policy     `json:"policies"`
	IsRLSEnabled         bool                  `json:"isRLSEnabled"`
}

type Column struct {
	Name          string     `json:"name"`
	Type          string     `json:"type"`
	TypeSchema    string     `json:"typeSchema,omitempty"`
	PrimaryKey    bool       `json:"primaryKey"`
	NotNull       bool       `json:"notNull"`
	Default       *string    `json:"default,omitempty"`
	AutoIncrement bool       `json:"autoincrement,omitempty"`
	Identity      *Identity  `json:"identity,omitempty"`
	Generated     *Generated `json:"generated,omitempty"`
}

type Identity struct {
	Type      string `json:"type"`
	StartWith string `json:"startWith,omitempty"`
	Increment string `json:"increment,omitempty"`
	MinValue  string `json:"minValue,omitempty"`
	MaxValue  string `json:"maxValue,omitempty"`
	Cache     string `json:"cache,omitempty"`
	Cycle     bool   `json:"cycle,omitempty"`
}

type Generated struct {
	As   string `json:"as"`
	Type string `json:"type"`
}

type Index struct {
	Name         string        `json:"name"`
	Columns      []IndexColumn `json:"columns"`
	IsUnique     bool          `json:"isUnique"`
	Where        string        `json:"where,omitempty"`
	Method       string        `json:"method,omitempty"`
	Concurrently bool          `json:"concurrently,omitempty"`
	With         string        `json:"with,omitempty"`
}

type IndexColumn struct {
	Expression   string `json:"expression"`
	IsExpression bool   `json:"isExpression"`
	Asc          bool   `json:"asc"`
	Nulls        string `json:"nulls,omitempty"`
	Opclass      string `json:"opclass,omitempty"`
}

type ForeignKey struct {
	Name        string   `json:"name"`
	TableFrom   string   `json:"tableFrom"`
	ColumnsFrom []string `json:"columnsFrom"`
	SchemaTo    string   `json:"schemaTo,omitempty"`
	TableTo     string   `json:"tableTo"`
	ColumnsTo   []string `json:"columnsTo"`
	OnUpdate    string   `json:"onUpdate,omitempty"`
	OnDelete    string   `json:"onDelete,omitempty"`
}

type PrimaryKey struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

type Unique struct {
	Name             string   `json:"name"`
	Columns          []string `json:"columns"`
	NullsNotDistinct bool     `json:"nullsNotDistinct,omitempty"`
}

type Check struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Enum struct {
	Name   string   `json:"name"`
	Schema string   `json:"schema"`
	Values []string `json:"values"`
}

type Sequence struct {
	Name      string `json:"name"`
	Schema    string `json:"schema"`
	Increment string `json:"increment,omitempty"`
	MinValue  string `json:"minValue,omitempty"`
	MaxValue  string `json:"maxValue,omitempty"`
	StartWith string `json:"startWith,omitempty"`
	Cache     string `json:"cache,omitempty"`
	Cycle     bool   `json:"cycle,omitempty"`
}

type View struct {
	Name         string `json:"name"`
	Schema       string `json:"schema"`
	Definition   string `json:"definition,omitempty"`
	Materialized bool   `json:"materialized,omitempty"`
	IsExisting   bool   `json:"isExisting,omitempty"`
	With         string `json:"with,omitempty"`
}

type Role struct {
	Name       string `json:"name"`
	CreateDB   bool   `json:"createDb"`
	CreateRole bool   `json:"createRole"`
	Inherit    bool   `json:"inherit"`
}

type Policy struct {
	Name      string   `json:"name"`
	As        string   `json:"as,omitempty"`
	For       string   `json:"for,omitempty"`
	To        []string `json:"to,omitempty"`
	Using     string   `json:"using,omitempty"`
	WithCheck string   `json:"withCheck,omitempty"`
	// On names the owning table of a policy declared outside it.
	On     string `json:"on,omitempty"`
	Schema string `json:"schema,omitempty"`
}

// Empty returns the origin snapshot of a lineage.
func Empty(d ddl.Dialect) *Snapshot {
	s := blank(d)
	s.ID = OriginID
	return s
}

// New snapshots m under a fresh id.
func New(m *ddl.Model, prevID string) *Snapshot {
	s := FromModel(m)
	s.ID = uuid.NewString()
	s.PrevID = prevID
	return s
}

func blank(d ddl.Dialect) *Snapshot {
	return &Snapshot{
		Version:   CurrentVersion,
		Dialect:   d,
		Schemas:   map[string]string{},
		Tables:    map[string]Table{},
		Enums:     map[string]Enum{},
		Sequences: map[string]Sequence{},
		Views:     map[string]View{},
		Roles:     map[string]Role{},
		Policies:  map[string]Policy{},
		Meta: Meta{
			Schemas: map[string]string{},
			Tables:  map[string]string{},
			Columns: map[string]string{},
		},
	}
}

// RecordRename notes an applied rename in the snapshot metadata. Only
// schema, table and column renames are recorded.
func (s *Snapshot) RecordRename(kind ddl.Kind, from, to ddl.Key) {
	switch kind {
	case ddl.KindSchema:
		s.Meta.Schemas[from.Qualified()] = to.Qualified()
	case ddl.KindTable:
		s.Meta.Tables[from.Qualified()] = to.Qualified()
	case ddl.KindColumn:
		s.Meta.Columns[from.Qualified()] = to.Qualified()
	}
}

// IsOrigin reports whether s is the empty start of a lineage.
func (s *Snapshot) IsOrigin() bool {
	return s.ID == OriginID
}

// Encode renders the snapshot as indented JSON.
func Encode(s *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a snapshot of any supported version and upgrades it to
// CurrentVersion in memory.
func Decode(data []byte) (*Snapshot, error) {
	upgraded, err := upgrade(data)
	if err != nil {
		return nil, err
	}
	s := blank("")
	if err := json.Unmarshal(upgraded, s); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if _, err := ddl.ParseDialect(string(s.Dialect)); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	if s.ID == "" {
		return nil, fmt.Errorf("invalid snapshot: missing id")
	}
	return s, nil
}
