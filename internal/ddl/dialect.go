package ddl

import (
	"fmt"
	"strings"
)

// Dialect identifies the SQL engine a Model describes.
type Dialect string

const (
	PostgreSQL Dialect = "postgresql"
	Cockroach  Dialect = "cockroach"
	MySQL      Dialect = "mysql"
	SQLite     Dialect = "sqlite"
)

// Dialects lists every supported dialect.
func Dialects() []Dialect {
	return []Dialect{PostgreSQL, Cockroach, MySQL, SQLite}
}

// ParseDialect accepts the canonical names plus a few common aliases.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgresql", "postgres", "pg":
		return PostgreSQL, nil
	case "cockroach", "cockroachdb", "crdb":
		return Cockroach, nil
	case "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3", "turso", "libsql":
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported dialect %q", s)
}

// IsPostgresFamily reports whether the dialect speaks the Postgres DDL surface.
func (d Dialect) IsPostgresFamily() bool {
	return d == PostgreSQL || d == Cockroach
}

// DefaultSchema is the schema unqualified objects live in.
func (d Dialect) DefaultSchema() string {
	if d.IsPostgresFamily() {
		return "public"
	}
	return ""
}

// Supports reports whether entities of kind k can exist in the dialect.
func (d Dialect) Supports(k Kind) bool {
	switch k {
	case KindSchema, KindEnum, KindSequence, KindRole, KindPolicy:
		return d.IsPostgresFamily()
	case KindUnique:
		// sqlite uniques are modelled as unique indexes
		return d != SQLite
	}
	return true
}

// HasNativeEnumRename reports whether enum labels can be renamed in place.
func (d Dialect) HasNativeEnumRename() bool {
	return d.IsPostgresFamily()
}

func (d Dialect) String() string {
	return string(d)
}
