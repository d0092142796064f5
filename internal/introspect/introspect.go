// Package introspect reads the structure of a live database into a model.
package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/logger"
)

// Provider introspects one database.
type Provider interface {
	Introspect(ctx context.Context) (*ddl.Model, []ddl.Issue, error)
}

// Options narrow what a provider reads.
type Options struct {
	// Schemas limits postgres introspection. Empty reads every user schema.
	Schemas []string
	// ExcludeTables are skipped, given as "schema.table" or "table".
	ExcludeTables []string
	// Roles includes non-system roles (postgres family).
	Roles bool
}

func (o Options) excluded(schema, table string) bool {
	return slices.Contains(o.ExcludeTables, table) ||
		(schema != "" && slices.Contains(o.ExcludeTables, schema+"."+table))
}

// New returns the provider for dialect d reading db.
func New(db *sql.DB, d ddl.Dialect, opts Options) (Provider, error) {
	switch d {
	case ddl.PostgreSQL, ddl.Cockroach:
		return &Postgres{db: db, dialect: d, opts: opts}, nil
	case ddl.MySQL:
		return &MySQL{db: db, opts: opts}, nil
	case ddl.SQLite:
		return &SQLite{db: db, opts: opts}, nil
	}
	return nil, fmt.Errorf("unsupported dialect %q", d)
}

// DriverName is the database/sql driver used for dialect d.
func DriverName(d ddl.Dialect) (string, error) {
	switch d {
	case ddl.PostgreSQL, ddl.Cockroach:
		return "pgx", nil
	case ddl.MySQL:
		return "mysql", nil
	case ddl.SQLite:
		return "sqlite3", nil
	}
	return "", fmt.Errorf("unsupported dialect %q", d)
}

// Open connects to dbURL with the driver for dialect d and checks the
// connection.
func Open(ctx context.Context, d ddl.Dialect, dbURL string) (*sql.DB, error) {
	driver, err := DriverName(d)
	if err != nil {
		return nil, err
	}
	dsn := dbURL
	switch d {
	case ddl.MySQL:
		if dsn, err = mysqlDSN(dbURL); err != nil {
			return nil, err
		}
	case ddl.SQLite:
		dsn = strings.TrimPrefix(strings.TrimPrefix(dbURL, "sqlite://"), "file://")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// mysqlDSN accepts both the driver DSN and a mysql:// url.
func mysqlDSN(raw string) (string, error) {
	if !strings.HasPrefix(raw, "mysql://") {
		cfg, err := mysql.ParseDSN(raw)
		if err != nil {
			return "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		return cfg.FormatDSN(), nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid mysql url: %w", err)
	}
	cfg := mysql.NewConfig()
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if q := u.Query(); len(q) > 0 {
		cfg.Params = make(map[string]string, len(q))
		for k := range q {
			cfg.Params[k] = q.Get(k)
		}
	}
	return cfg.FormatDSN(), nil
}

func timed(name string, start time.Time) {
	logger.Get().Debug("Introspection query finished", "query", name, "duration", time.Since(start))
}
