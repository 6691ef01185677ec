package db

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"

	"github.com/lettings-match/internal/config"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Connection holds the database connection
type Connection struct {
	DB     *sql.DB
	Driver string
}

// NewConnection opens and pings the configured database.
func NewConnection(cfg config.DatabaseConfig) (*Connection, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, eris.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, eris.Wrap(err, "failed to open database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "failed to ping database")
	}

	// Set connection pool settings
	if cfg.Driver == DriverSQLite {
		// one writer at a time; concurrent writers get SQLITE_BUSY
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, eris.Wrap(err, "failed to enable foreign keys")
		}
	} else {
		maxConns := cfg.MaxConnections
		if maxConns <= 0 {
			maxConns = 10
		}
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns / 2)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	return &Connection{DB: db, Driver: cfg.Driver}, nil
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.DB.Close()
}

// Rebind rewrites ? placeholders into the driver's bind syntax.
func (c *Connection) Rebind(query string) string {
	return Rebind(c.Driver, query)
}

// Rebind rewrites ? placeholders as $1, $2, ... for postgres and leaves
// other drivers untouched. Queries must not contain literal question marks.
func Rebind(driver, query string) string {
	if driver != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
