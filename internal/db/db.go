// Package db provides database persistence for shelf.
//
// One store holds the whole hierarchy (users, contexts, projects, sections,
// items), task state, external service accounts, lists and their placements.
// SQLite (.shelf/shelf.db) is the default; PostgreSQL is selected by config.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/randalmurphal/shelf/internal/db/driver"
)

//go:embed schema/*.sql schema/postgres/*.sql
var schemaFS embed.FS

// schemaType is the migration file prefix for the store schema.
const schemaType = "store"

// embedFSAdapter wraps embed.FS to implement driver.SchemaFS.
type embedFSAdapter struct {
	fs embed.FS
}

func (e *embedFSAdapter) ReadDir(name string) ([]driver.DirEntry, error) {
	entries, err := e.fs.ReadDir(name)
	if err != nil {
		return nil, err
	}
	result := make([]driver.DirEntry, len(entries))
	for i, entry := range entries {
		result[i] = dirEntryAdapter{entry}
	}
	return result, nil
}

func (e *embedFSAdapter) ReadFile(name string) ([]byte, error) {
	return e.fs.ReadFile(name)
}

type dirEntryAdapter struct {
	fs.DirEntry
}

// DB wraps a database connection with driver abstraction.
type DB struct {
	driver driver.Driver
	path   string
}

// Open opens the SQLite store at {dataDir}/shelf.db and applies migrations.
func Open(dataDir string) (*DB, error) {
	return OpenWithDialect(filepath.Join(dataDir, "shelf.db"), driver.DialectSQLite)
}

// OpenInMemory opens an isolated in-memory SQLite store with the schema applied.
func OpenInMemory() (*DB, error) {
	return OpenWithDialect(driver.MemoryDSN, driver.DialectSQLite)
}

// OpenWithDialect opens a store with a specific dialect and applies migrations.
// For SQLite, dsn is the file path. For PostgreSQL, dsn is the connection string.
func OpenWithDialect(dsn string, dialect driver.Dialect) (*DB, error) {
	if dialect == driver.DialectSQLite && dsn != driver.MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	drv, err := driver.New(dialect)
	if err != nil {
		return nil, err
	}

	if err := drv.Open(dsn); err != nil {
		return nil, err
	}

	d := &DB{driver: drv, path: dsn}
	if err := d.Migrate(context.Background()); err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.driver.Close()
}

// Path returns the database DSN/path.
func (d *DB) Path() string {
	return d.path
}

// SQL returns the underlying sql.DB for advanced operations.
func (d *DB) SQL() *sql.DB {
	return d.driver.DB()
}

// Dialect returns the database dialect.
func (d *DB) Dialect() driver.Dialect {
	return d.driver.Dialect()
}

// Migrate applies pending store migrations.
// Schema files are named store_NNN.sql (schema/postgres/ for PostgreSQL).
func (d *DB) Migrate(ctx context.Context) error {
	return d.driver.Migrate(ctx, &embedFSAdapter{fs: schemaFS}, schemaType)
}
