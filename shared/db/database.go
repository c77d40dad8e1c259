package db

import (
	"context"
	"database/sql"
)

// Database owns the lifecycle of a storage engine handle.
// Connect brings the schema up to date before DB returns a usable handle.
type Database interface {
	Connect() error
	Close() error
	DB() *sql.DB

	// SchemaVersion returns the schema version recorded in the database
	SchemaVersion(ctx context.Context) (int, error)
}
