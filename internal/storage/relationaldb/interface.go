package relationaldb

//go:generate mockgen -source=interface.go -destination=mock/interface.go -package=mock

import (
	"context"
	"database/sql"
)

// Session is the statement surface shared by a database handle and an open
// transaction. Statements are prepared once per query text and reused until
// the owning Database clears its statement cache.
type Session interface {
	// Dialect reports the backend's SQL flavour and capabilities.
	Dialect() Dialect

	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// Query runs a statement returning rows. The caller closes them.
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Tx is one storage transaction. Rollback after Commit is a no-op, so
// callers may defer it unconditionally.
type Tx interface {
	Session
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Database is a handle on the relational ledger store.
type Database interface {
	Session

	// Open connects to the database.
	Open(ctx context.Context) error

	// Close closes the database connection and every cached statement.
	Close(ctx context.Context) error

	// Ping tests the database connection.
	Ping(ctx context.Context) error

	// Begin starts a new transaction
	Begin(ctx context.Context) (Tx, error)

	// ClearStatementCache closes every prepared statement.
	ClearStatementCache() error

	// Stats reports statement cache usage.
	Stats() StatementCacheStats
}
