package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/randalmurphal/shelf/internal/db/driver"
)

// TxRunner provides a transactional execution interface.
// This allows operations to run within a transaction context,
// ensuring atomicity of multi-table operations.
type TxRunner interface {
	// RunInTx executes the given function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	RunInTx(ctx context.Context, fn func(tx *TxOps) error) error
}

// TxOps provides database operations within a transaction.
// Queries use '?' placeholders; the driver transaction rebinds them for
// PostgreSQL.
//
// TxOps also carries a lookup cache for users and contexts. The cache lives
// exactly as long as the transaction, so nothing read under one transaction
// is served to another.
type TxOps struct {
	tx      driver.Tx
	dialect driver.Dialect
	ctx     context.Context

	users    map[string]*User
	contexts map[string]*Context
}

// Exec executes a query within the transaction.
func (t *TxOps) Exec(query string, args ...any) (sql.Result, error) {
	return t.tx.Exec(t.ctx, query, args...)
}

// Query executes a query within the transaction.
func (t *TxOps) Query(query string, args ...any) (*sql.Rows, error) {
	return t.tx.Query(t.ctx, query, args...)
}

// QueryRow executes a query returning at most one row within the transaction.
func (t *TxOps) QueryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRow(t.ctx, query, args...)
}

// Context returns the context associated with this transaction.
func (t *TxOps) Context() context.Context {
	return t.ctx
}

// Dialect returns the database dialect.
func (t *TxOps) Dialect() driver.Dialect {
	return t.dialect
}

// forget drops cached lookups for ids that were just mutated.
func (t *TxOps) forget(ids ...string) {
	for _, id := range ids {
		delete(t.users, id)
		delete(t.contexts, id)
	}
}

// RunInTx executes the given function within a database transaction.
// If fn returns an error, the transaction is rolled back.
// If fn returns nil, the transaction is committed.
// The context is propagated to all database operations within the transaction.
func (d *DB) RunInTx(ctx context.Context, fn func(tx *TxOps) error) error {
	tx, err := d.driver.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txOps := &TxOps{
		tx:       tx,
		dialect:  d.Dialect(),
		ctx:      ctx,
		users:    make(map[string]*User),
		contexts: make(map[string]*Context),
	}

	if err := fn(txOps); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Ensure DB implements TxRunner
var _ TxRunner = (*DB)(nil)
