package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"game-catalog-pipeline/internal/storage"
)

// DBTX is the query surface shared by the pool and open transactions.
// Stores are bound to a DBTX so the same code runs auto-commit or
// inside the per-record transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// DB implements storage.TxRunner over a connection pool. Read committed
// is sufficient; the unique indexes carry correctness.
type DB struct {
	pool *Pool
}

// NewDB creates the transaction runner for a pool.
func NewDB(pool *Pool) *DB {
	return &DB{pool: pool}
}

// Compile-time interface check.
var _ storage.TxRunner = (*DB)(nil)

// Stores returns auto-commit stores over the pool.
func (db *DB) Stores() storage.Stores {
	return newStores(db.pool)
}

// InTx runs fn inside one transaction. Deadlocks and serialization
// failures surface as storage.ErrDeadlock for the caller's retry loop.
func (db *DB) InTx(ctx context.Context, fn func(storage.Stores) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(newStores(tx)); err != nil {
		return classifyTxError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyTxError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func newStores(q DBTX) storage.Stores {
	return storage.Stores{
		Games:      NewGameStore(q),
		Details:    NewGameDetailStore(q),
		Releases:   NewGameReleaseStore(q),
		Companies:  NewCompanyStore(q),
		Roles:      NewGameCompanyRoleStore(q),
		Runs:       NewPipelineRunStore(q),
		Items:      NewPipelineItemStore(q),
		Exclusions: NewExclusionStore(q),
	}
}

// PostgreSQL error codes
const (
	pgErrUniqueViolation      = "23505" // unique_violation
	pgErrDeadlockDetected     = "40P01" // deadlock_detected
	pgErrSerializationFailure = "40001" // serialization_failure
)

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}

	return false
}

// isDeadlockError checks if error is a deadlock or serialization failure.
func isDeadlockError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrDeadlockDetected || pgErr.Code == pgErrSerializationFailure
	}

	return false
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// classifyTxError maps driver-level failures onto the storage sentinels
// the orchestrator acts on.
func classifyTxError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrDeadlock), errors.Is(err, storage.ErrDuplicateKey):
		return err
	case isDeadlockError(err):
		return fmt.Errorf("%w: %v", storage.ErrDeadlock, err)
	case isDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", storage.ErrDuplicateKey, err)
	}
	return err
}
