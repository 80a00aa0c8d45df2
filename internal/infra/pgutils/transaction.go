package pgutils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so repositories can run
// the same statement inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// WithTx runs fn inside a transaction at the default isolation level.
// It commits if fn returns nil, otherwise it rolls back.
func WithTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	return WithTxOpts(ctx, db, nil, fn)
}

// WithTxOpts is WithTx with explicit transaction options. A panic in fn
// rolls the transaction back before it propagates.
func WithTxOpts(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	err = fn(tx)
	if err != nil {
		rbErr := tx.Rollback()
		if rbErr != nil {
			return fmt.Errorf("rollback after fn error: %v (fn err: %w)", rbErr, err)
		}
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// Postgres SQLSTATE codes the repositories map to domain errors.
const (
	CodeUniqueViolation      = "23505"
	CodeCheckViolation       = "23514"
	CodeSerializationFailure = "40001"
)

// HasCode reports whether err wraps a Postgres error with the given code.
func HasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// RetrySerialization runs fn up to attempts times while it fails with a
// serialization failure, which REPEATABLE READ transactions raise when a row
// they lock was changed after their snapshot.
func RetrySerialization(attempts int, fn func() error) error {
	var err error
	for range max(attempts, 1) {
		err = fn()
		if !HasCode(err, CodeSerializationFailure) {
			return err
		}
	}

	return err
}

// AdvisoryXactLock takes a transaction-scoped advisory lock on the pair
// (ns, key). It is released on commit or rollback. Hash collisions only cost
// extra waiting.
func AdvisoryXactLock(ctx context.Context, tx *sql.Tx, ns string, key int64) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2::bigint::text))`, ns, key)
	if err != nil {
		return fmt.Errorf("advisory lock %s/%d: %w", ns, key, err)
	}

	return nil
}
