package relationaldb

import (
	"context"
	"database/sql"
	"sync"

	"go.uber.org/zap"
)

// StatementCacheStats reports prepared statement reuse.
type StatementCacheStats struct {
	Prepared int
	Hits     uint64
	Misses   uint64
}

// SQLDatabase implements Database on database/sql for any driver whose
// dialect is supplied by the backend package.
type SQLDatabase struct {
	config  *Config
	dialect Dialect
	logger  *zap.Logger
	initFn  func(ctx context.Context, db *sql.DB) error

	mu     sync.Mutex
	db     *sql.DB
	stmts  map[string]*sql.Stmt
	hits   uint64
	misses uint64
}

// Option customizes an SQLDatabase.
type Option func(*SQLDatabase)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *zap.Logger) Option {
	return func(db *SQLDatabase) {
		if logger != nil {
			db.logger = logger
		}
	}
}

// WithInit registers a hook run once after the connection is established.
func WithInit(fn func(ctx context.Context, db *sql.DB) error) Option {
	return func(db *SQLDatabase) {
		db.initFn = fn
	}
}

// NewSQLDatabase creates a database handle. It does not connect; call Open.
func NewSQLDatabase(config *Config, dialect Dialect, opts ...Option) (*SQLDatabase, error) {
	if err := config.Validate(); err != nil {
		return nil, NewConfigurationError("new_database", "invalid configuration", err)
	}

	db := &SQLDatabase{
		config:  config,
		dialect: dialect,
		logger:  zap.NewNop(),
		stmts:   make(map[string]*sql.Stmt),
	}
	for _, opt := range opts {
		opt(db)
	}
	db.logger = db.logger.With(zap.String("driver", config.Driver))
	return db, nil
}

// Dialect returns the backend dialect.
func (db *SQLDatabase) Dialect() Dialect {
	return db.dialect
}

// Open opens the database connection
func (db *SQLDatabase) Open(ctx context.Context) error {
	connStr, err := db.config.BuildConnectionString()
	if err != nil {
		return NewConfigurationError("open", "failed to build connection string", err)
	}

	sqlDB, err := sql.Open(db.config.Driver, connStr)
	if err != nil {
		return NewConnectionError("open", "failed to open database connection", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(db.config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(db.config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(db.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(db.config.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, db.config.DefaultTimeout)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return NewConnectionError("open", "failed to ping database", err)
	}

	if db.initFn != nil {
		if err := db.initFn(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return NewConnectionError("open", "failed to initialize connection", err)
		}
	}

	db.mu.Lock()
	db.db = sqlDB
	db.mu.Unlock()

	db.logger.Info("database opened", zap.String("database", db.config.Database))
	return nil
}

// Close closes the database connection
func (db *SQLDatabase) Close(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.db == nil {
		return nil
	}

	db.clearLocked()
	err := db.db.Close()
	db.db = nil

	if err != nil {
		return NewConnectionError("close", "failed to close database connection", err)
	}
	db.logger.Info("database closed")
	return nil
}

// Ping tests the database connection
func (db *SQLDatabase) Ping(ctx context.Context) error {
	sqlDB, err := db.handle()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, db.config.DefaultTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return NewConnectionError("ping", "database ping failed", err)
	}
	return nil
}

// Begin starts a new transaction. The transaction lives until Commit or
// Rollback; cancelling ctx rolls it back.
func (db *SQLDatabase) Begin(ctx context.Context) (Tx, error) {
	sqlDB, err := db.handle()
	if err != nil {
		return nil, err
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, NewTransactionError("begin", "failed to begin transaction", err)
	}

	return &sqlTx{tx: tx, db: db}, nil
}

// Exec runs a statement outside any transaction.
func (db *SQLDatabase) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	stmt, err := db.prepare(ctx, query)
	if err != nil {
		return 0, err
	}
	return execStmt(ctx, stmt, args)
}

// Query runs a row-returning statement outside any transaction.
func (db *SQLDatabase) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	stmt, err := db.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, statementError("query", "failed to execute query", err)
	}
	return rows, nil
}

// ClearStatementCache closes every prepared statement.
func (db *SQLDatabase) ClearStatementCache() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.clearLocked()
}

// Stats reports statement cache usage.
func (db *SQLDatabase) Stats() StatementCacheStats {
	db.mu.Lock()
	defer db.mu.Unlock()
	return StatementCacheStats{Prepared: len(db.stmts), Hits: db.hits, Misses: db.misses}
}

func (db *SQLDatabase) clearLocked() error {
	var firstErr error
	for query, stmt := range db.stmts {
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = NewQueryError("clear_statement_cache", "failed to close statement", err)
		}
		delete(db.stmts, query)
	}
	return firstErr
}

func (db *SQLDatabase) handle() (*sql.DB, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.db == nil {
		return nil, ErrDatabaseClosed
	}
	return db.db, nil
}

// prepare returns the cached statement for query, preparing it on a miss.
// A miss takes a pooled connection, so pools must allow at least one
// connection beyond an open transaction.
func (db *SQLDatabase) prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.db == nil {
		return nil, ErrDatabaseClosed
	}
	if stmt, ok := db.stmts[query]; ok {
		db.hits++
		return stmt, nil
	}
	db.misses++

	stmt, err := db.db.PrepareContext(ctx, db.dialect.Rebind(query))
	if err != nil {
		return nil, NewQueryError("prepare", "failed to prepare statement", err).WithDetail("query", query)
	}
	db.stmts[query] = stmt
	return stmt, nil
}

func execStmt(ctx context.Context, stmt *sql.Stmt, args []any) (int64, error) {
	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, statementError("exec", "failed to execute statement", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewQueryError("exec", "failed to read affected rows", err)
	}
	return n, nil
}

// statementError classifies a failed statement as a constraint or query
// error.
func statementError(operation, message string, err error) *DatabaseError {
	if isConstraintViolation(err) {
		return NewConstraintError(operation, "statement violates a table constraint", err)
	}
	return NewQueryError(operation, message, err)
}

// sqlTx implements Tx over a database/sql transaction, binding cached
// statements to it.
type sqlTx struct {
	tx *sql.Tx
	db *SQLDatabase
}

func (t *sqlTx) Dialect() Dialect {
	return t.db.dialect
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	stmt, err := t.stmt(ctx, query)
	if err != nil {
		return 0, err
	}
	return execStmt(ctx, stmt, args)
}

func (t *sqlTx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	stmt, err := t.stmt(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, statementError("query", "failed to execute query", err)
	}
	return rows, nil
}

func (t *sqlTx) stmt(ctx context.Context, query string) (*sql.Stmt, error) {
	if t.tx == nil {
		return nil, ErrTransactionClosed
	}
	stmt, err := t.db.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	return t.tx.StmtContext(ctx, stmt), nil
}

func (t *sqlTx) Commit(ctx context.Context) error {
	if t.tx == nil {
		return ErrTransactionClosed
	}

	err := t.tx.Commit()
	t.tx = nil

	if err != nil {
		return NewTransactionError("commit", "failed to commit transaction", err)
	}
	return nil
}

func (t *sqlTx) Rollback(ctx context.Context) error {
	if t.tx == nil {
		return nil // Already rolled back or committed
	}

	err := t.tx.Rollback()
	t.tx = nil

	if err != nil && err != sql.ErrTxDone {
		return NewTransactionError("rollback", "failed to rollback transaction", err)
	}
	return nil
}
