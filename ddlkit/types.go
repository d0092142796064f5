package ddlkit

import (
	"github.com/ddlkit/ddlkit/internal/compile"
	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/diff"
	"github.com/ddlkit/ddlkit/internal/journal"
	"github.com/ddlkit/ddlkit/internal/resolver"
	"github.com/ddlkit/ddlkit/internal/snapshot"
)

// Re-export important types for external consumption

// Dialect identifies the SQL engine a schema targets.
type Dialect = ddl.Dialect

const (
	PostgreSQL = ddl.PostgreSQL
	Cockroach  = ddl.Cockroach
	MySQL      = ddl.MySQL
	SQLite     = ddl.SQLite
)

// Model is a normalized schema.
type Model = ddl.Model

// Issue is an entity level problem found while normalizing a schema.
type Issue = ddl.Issue

// Plan is the ordered list of changes between two models.
type Plan = diff.Plan

// Warning flags a destructive change in a migration.
type Warning = compile.Warning

// Snapshot is the JSON form of a model stored next to each migration.
type Snapshot = snapshot.Snapshot

// Entry is one migration of a journal.
type Entry = journal.Entry

// Problem is a lineage problem reported by Check.
type Problem = journal.Problem

// PrefixMode selects how migration tags are prefixed.
type PrefixMode = journal.PrefixMode

// Resolver decides between renames and create/drop pairs.
type Resolver = resolver.Resolver

// ParseDialect accepts dialect names and common aliases.
func ParseDialect(s string) (Dialect, error) {
	return ddl.ParseDialect(s)
}

// StaticRenames returns a resolver that applies exactly the given
// "from->to" pairs of qualified names.
func StaticRenames(pairs ...string) (Resolver, error) {
	return resolver.NewStatic(pairs...)
}
