package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrConnUnavailable is wrapped around failures to acquire a connection from the pool
var ErrConnUnavailable = errors.New("database connection unavailable")

// Executor is the query surface shared by *sql.DB, *sql.Conn and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txKey is the key type for storing transaction in context
type txKey struct{}

// WithTx returns a new context with the transaction attached
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTx retrieves the transaction from context if it exists
func GetTx(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// GetExecutor returns either a transaction from context or the base db connection
func GetExecutor(ctx context.Context, db *sql.DB) Executor {
	if tx, ok := GetTx(ctx); ok {
		return tx
	}
	return db
}

// WithConn runs fn against a connection that is held only for the duration of fn.
// The connection goes back to the pool on every exit path, including panics.
// If the context carries a transaction, fn runs against it instead and no connection is acquired.
func WithConn(ctx context.Context, db *sql.DB, fn func(ctx context.Context, ex Executor) error) error {
	if tx, ok := GetTx(ctx); ok {
		return fn(ctx, tx)
	}
	if db == nil {
		return fmt.Errorf("%w: database is not connected", ErrConnUnavailable)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnUnavailable, err)
	}
	defer conn.Close()

	return fn(ctx, conn)
}

// RunInTransaction executes a function within a database transaction
// If a transaction already exists in the context, it reuses that transaction
// and does not commit or rollback (delegating that to the outer transaction)
// If no transaction exists, it creates one, and commits or rolls back based on the result
func RunInTransaction(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	if _, ok := GetTx(ctx); ok {
		return fn(ctx)
	}
	if db == nil {
		return fmt.Errorf("%w: database is not connected", ErrConnUnavailable)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := WithTx(ctx, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction after error %v: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
