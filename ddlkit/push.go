package ddlkit

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/ddlkit/ddlkit/internal/compile"
	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/diff"
	"github.com/ddlkit/ddlkit/internal/introspect"
	"github.com/ddlkit/ddlkit/internal/journal"
	"github.com/ddlkit/ddlkit/internal/logger"
	"github.com/ddlkit/ddlkit/internal/resolver"
)

// PushOptions configures how the declared schema is pushed to a database.
type PushOptions struct {
	Fs            afero.Fs          // Filesystem for the schema, defaults to the OS filesystem
	Dialect       ddl.Dialect       // Target dialect
	URL           string            // Database URL, ignored when DB is set
	DB            *sql.DB           // Optional open connection
	Schema        string            // Schema file, directory of .sql files, or snapshot JSON
	DefaultSchema string            // Schema for unqualified objects in .sql files (default: "public")
	Schemas       []string          // Postgres schemas to compare; defaults to those the schema declares
	Resolver      resolver.Resolver // Rename resolver; nil treats every change as create/drop
	DryRun        bool              // Compute the SQL without executing it

	// Confirm is asked before executing a plan with warnings, or any
	// non-empty plan when Strict is set. Returning false aborts with
	// ErrAborted.
	Confirm func(warnings []compile.Warning, statements []string) (bool, error)
	Strict  bool

	TrackerTable  string // Tracking table (default: "__ddlkit_migrations")
	TrackerSchema string // Tracking table schema, postgres family only (default: "drizzle")
	Now           func() time.Time
}

// PushResult describes a push. Applied is false for dry runs, aborted
// pushes and schemas without changes.
type PushResult struct {
	Plan       *diff.Plan
	Statements []string
	Warnings   []compile.Warning
	Issues     []ddl.Issue
	Applied    bool
}

// Push introspects the database, diffs it against the declared schema and
// applies the resulting SQL in a single transaction. The applied SQL is
// recorded in the tracking table.
func Push(ctx context.Context, opts PushOptions) (*PushResult, error) {
	if opts.Dialect == "" {
		return nil, fmt.Errorf("dialect is required")
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	to, issues, err := LoadSchema(fs, opts.Schema, opts.Dialect, opts.DefaultSchema)
	if err != nil {
		return nil, err
	}
	if err := grammarError("schema "+opts.Schema, issues); err != nil {
		return nil, err
	}
	result := &PushResult{Issues: issues}

	db := opts.DB
	if db == nil {
		if opts.URL == "" {
			return nil, fmt.Errorf("database url is required")
		}
		if db, err = introspect.Open(ctx, opts.Dialect, opts.URL); err != nil {
			return nil, err
		}
		defer db.Close()
	}

	tracker := journal.NewTracker(db, opts.Dialect, opts.TrackerTable, opts.TrackerSchema)
	provider, err := introspect.New(db, opts.Dialect, introspect.Options{
		Schemas:       pushSchemas(to, opts.Schemas),
		ExcludeTables: []string{tracker.Table()},
	})
	if err != nil {
		return nil, err
	}
	from, live, err := provider.Introspect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect database: %w", err)
	}
	result.Issues = append(result.Issues, live...)
	if err := grammarError("database", live); err != nil {
		return nil, err
	}

	plan, err := diff.Diff(ctx, from, to, opts.Resolver)
	if err != nil {
		return nil, fmt.Errorf("failed to diff schema: %w", err)
	}
	result.Plan = plan
	if plan.Empty() {
		return result, nil
	}
	compiled, err := compile.Compile(plan)
	if err != nil {
		return nil, fmt.Errorf("failed to compile migration: %w", err)
	}
	result.Statements = compiled.Statements
	result.Warnings = compiled.Warnings

	if opts.Confirm != nil && (opts.Strict || len(compiled.Warnings) > 0) {
		ok, err := opts.Confirm(compiled.Warnings, compiled.Statements)
		if err != nil {
			return nil, err
		}
		if !ok {
			return result, ErrAborted
		}
	}
	if opts.DryRun {
		return result, nil
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	if err := tracker.Ensure(ctx); err != nil {
		return nil, err
	}
	if err := execute(ctx, db, opts.Dialect, compiled.Statements, tracker, now()); err != nil {
		return nil, err
	}
	result.Applied = true
	return result, nil
}

// pushSchemas lists the postgres schemas push compares: the explicit list,
// or the default schema plus every schema the declared model uses.
func pushSchemas(to *ddl.Model, explicit []string) []string {
	if !to.Dialect.IsPostgresFamily() {
		return nil
	}
	if len(explicit) > 0 {
		return explicit
	}
	out := []string{to.Dialect.DefaultSchema()}
	for _, s := range ddl.Sorted(to.Schemas) {
		if !slices.Contains(out, s.Name) {
			out = append(out, s.Name)
		}
	}
	return out
}

const (
	foreignKeysOff = "PRAGMA foreign_keys=OFF;"
	foreignKeysOn  = "PRAGMA foreign_keys=ON;"
)

// execute applies stmts in one transaction on a single connection. SQLite
// ignores the foreign_keys pragma inside a transaction, so it is hoisted
// around it.
func execute(ctx context.Context, db *sql.DB, d ddl.Dialect, stmts []string, tracker *journal.Tracker, at time.Time) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	var pragmas bool
	if d == ddl.SQLite {
		stmts = slices.DeleteFunc(slices.Clone(stmts), func(s string) bool {
			if s == foreignKeysOff || s == foreignKeysOn {
				pragmas = true
				return true
			}
			return false
		})
	}
	if pragmas {
		if _, err := conn.ExecContext(ctx, foreignKeysOff); err != nil {
			return fmt.Errorf("failed to disable foreign keys: %w", err)
		}
		defer func() {
			if _, err := conn.ExecContext(ctx, foreignKeysOn); err != nil {
				logger.Get().Debug("Failed to enable foreign keys", "error", err)
			}
		}()
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, stmt := range stmts {
		logger.Get().Debug("Executing statement", "sql", stmt)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to execute %q: %w", firstLine(stmt), err)
		}
	}
	if err := tracker.Record(ctx, tx, compile.Join(stmts, true), at); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
