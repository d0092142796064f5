package journal

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/logger"
)

const (
	DefaultTrackerTable  = "__ddlkit_migrations"
	DefaultTrackerSchema = "drizzle"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Record is one row of the tracking table.
type Record struct {
	ID        int64
	Hash      string
	CreatedAt time.Time
}

// Tracker records pushed SQL in a tracking table.
type Tracker struct {
	db      *sql.DB
	dialect ddl.Dialect
	table   string
	schema  string
}

// NewTracker returns a tracker on db. Empty table and schema use the
// defaults; schema only applies to the postgres family.
func NewTracker(db *sql.DB, d ddl.Dialect, table, schema string) *Tracker {
	if table == "" {
		table = DefaultTrackerTable
	}
	if schema == "" {
		schema = DefaultTrackerSchema
	}
	if !d.IsPostgresFamily() {
		schema = ""
	}
	return &Tracker{db: db, dialect: d, table: table, schema: schema}
}

func (t *Tracker) quote(name string) string {
	if t.dialect.IsPostgresFamily() {
		return pq.QuoteIdentifier(name)
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (t *Tracker) name() string {
	if t.schema == "" {
		return t.quote(t.table)
	}
	return t.quote(t.schema) + "." + t.quote(t.table)
}

// Table is the unquoted, schema qualified name of the tracking table.
func (t *Tracker) Table() string {
	if t.schema == "" {
		return t.table
	}
	return t.schema + "." + t.table
}

func (t *Tracker) placeholder(n int) string {
	if t.dialect.IsPostgresFamily() {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Ensure creates the tracking table when it does not exist.
func (t *Tracker) Ensure(ctx context.Context) error {
	var stmts []string
	switch t.dialect {
	case ddl.PostgreSQL, ddl.Cockroach:
		stmts = []string{
			fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", t.quote(t.schema)),
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id SERIAL PRIMARY KEY, hash text NOT NULL, created_at bigint)", t.name()),
		}
	case ddl.MySQL:
		stmts = []string{
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id SERIAL PRIMARY KEY, hash text NOT NULL, created_at bigint)", t.name()),
		}
	case ddl.SQLite:
		stmts = []string{
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT, hash text NOT NULL, created_at numeric)", t.name()),
		}
	default:
		return fmt.Errorf("unsupported dialect %q", t.dialect)
	}
	for _, stmt := range stmts {
		if _, err := t.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create migrations table: %w", err)
		}
	}
	return nil
}

// Record inserts the hash of body through ex, usually the transaction
// that applied it.
func (t *Tracker) Record(ctx context.Context, ex Execer, body string, at time.Time) error {
	query := fmt.Sprintf("INSERT INTO %s (hash, created_at) VALUES (%s, %s)", t.name(), t.placeholder(1), t.placeholder(2))
	if _, err := ex.ExecContext(ctx, query, Hash(body), at.UnixMilli()); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	logger.Get().Debug("Recorded push", "table", t.name())
	return nil
}

// Applied lists the recorded rows oldest first.
func (t *Tracker) Applied(ctx context.Context) ([]Record, error) {
	rows, err := t.db.QueryContext(ctx, fmt.Sprintf("SELECT id, hash, created_at FROM %s ORDER BY id", t.name()))
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations table: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var ms sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Hash, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		if ms.Valid {
			r.CreatedAt = time.UnixMilli(ms.Int64)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Hash is the hex sha256 of a migration body.
func Hash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}
