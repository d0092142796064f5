package ddlkit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/introspect"
	"github.com/ddlkit/ddlkit/internal/journal"
	"github.com/ddlkit/ddlkit/internal/snapshot"
)

// IntrospectOptions configures how a live database is read.
type IntrospectOptions struct {
	Dialect       ddl.Dialect // Database dialect
	URL           string      // Database URL, ignored when DB is set
	DB            *sql.DB     // Optional open connection
	Schemas       []string    // Postgres schemas to read (default: every user schema)
	ExcludeTables []string    // Tables to skip, "table" or "schema.table"
	Roles         bool        // Read non-system roles (postgres family)
}

// Introspect reads the database into a snapshot that can serve as the
// declared schema of generate and push. The tracking table is never
// included.
func Introspect(ctx context.Context, opts IntrospectOptions) (*snapshot.Snapshot, []ddl.Issue, error) {
	if opts.Dialect == "" {
		return nil, nil, fmt.Errorf("dialect is required")
	}
	db := opts.DB
	if db == nil {
		var err error
		if db, err = introspect.Open(ctx, opts.Dialect, opts.URL); err != nil {
			return nil, nil, err
		}
		defer db.Close()
	}

	exclude := append([]string{journal.NewTracker(db, opts.Dialect, "", "").Table()}, opts.ExcludeTables...)
	provider, err := introspect.New(db, opts.Dialect, introspect.Options{
		Schemas:       opts.Schemas,
		ExcludeTables: exclude,
		Roles:         opts.Roles,
	})
	if err != nil {
		return nil, nil, err
	}
	m, issues, err := provider.Introspect(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to introspect database: %w", err)
	}
	return snapshot.New(m, snapshot.OriginID), issues, nil
}
