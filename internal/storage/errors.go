package storage

import "errors"

// Storage errors shared by the Postgres and in-memory implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insert or update violates a
	// unique constraint (SQL state 23505 on Postgres).
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrDeadlock is returned when a transaction is aborted by the
	// database to resolve a deadlock or serialization failure (SQL
	// state 40001 on Postgres). Callers may retry the transaction.
	ErrDeadlock = errors.New("deadlock detected")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
