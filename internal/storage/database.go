package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // Registers the pgx driver
	_ "modernc.org/sqlite"             // Registers the sqlite driver
)

type dialect int

const (
	sqliteDialect dialect = iota
	postgresDialect
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn    *sql.DB
	dialect dialect
}

// Open creates a new database connection and ensures the schema is up to date.
//
// The engine string selects the backend: postgres:// and postgresql:// URLs
// use PostgreSQL, anything else is a sqlite path (an optional sqlite://
// prefix is stripped). ":memory:" opens an in-memory sqlite database.
func Open(engine string) (*DB, error) {
	driver, dsn, d := parseEngine(engine)

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	schema := postgresSchema
	if d == sqliteDialect {
		// One connection keeps ":memory:" databases alive and avoids
		// "database is locked" errors.
		conn.SetMaxOpenConns(1)
		if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set busy timeout: %w", err)
		}
		schema = sqliteSchema
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: conn, dialect: d}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func parseEngine(engine string) (driver, dsn string, d dialect) {
	switch {
	case strings.HasPrefix(engine, "postgres://"), strings.HasPrefix(engine, "postgresql://"):
		return "pgx", engine, postgresDialect
	case strings.HasPrefix(engine, "sqlite://"):
		return "sqlite", strings.TrimPrefix(engine, "sqlite://"), sqliteDialect
	default:
		return "sqlite", engine, sqliteDialect
	}
}

// rebind rewrites '?' placeholders into the dialect's form.
func (db *DB) rebind(query string) string {
	if db.dialect != postgresDialect {
		return query
	}
	var b strings.Builder
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

func (db *DB) exec(query string, args ...any) (sql.Result, error) {
	return db.conn.Exec(db.rebind(query), args...)
}

func (db *DB) query(query string, args ...any) (*sql.Rows, error) {
	return db.conn.Query(db.rebind(query), args...)
}

func (db *DB) queryRow(query string, args ...any) *sql.Row {
	return db.conn.QueryRow(db.rebind(query), args...)
}

// tx wraps a sql.Tx with the same placeholder handling as DB.
type tx struct {
	*sql.Tx
	db *DB
}

func (t tx) exec(query string, args ...any) (sql.Result, error) {
	return t.Exec(t.db.rebind(query), args...)
}

func (t tx) queryRow(query string, args ...any) *sql.Row {
	return t.QueryRow(t.db.rebind(query), args...)
}

// inTx runs fn in a transaction, committing when fn returns nil.
func (db *DB) inTx(fn func(tx) error) error {
	sqlTx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx{Tx: sqlTx, db: db}); err != nil {
		sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}
