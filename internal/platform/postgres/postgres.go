// Package postgres opens the database, runs migrations and provides the
// transaction runner every multi-table write goes through.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	dErrors "compliance/pkg/domain-errors"
	txcontext "compliance/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Open connects with the pgx database/sql driver and verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally restricted to one constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// TxRunner runs a unit of work in one SQL transaction, binding it to the context
// so every store call inside fn joins it.
type TxRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewTxRunner(db *sql.DB, timeout time.Duration) *TxRunner {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &TxRunner{db: db, timeout: timeout}
}

// RunInTx commits when fn returns nil and rolls back otherwise. A call made
// while a transaction is already bound joins it.
func (t *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// NullInt64 converts an optional id for a query argument.
func NullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// Int64Ptr converts a scanned nullable id back to an optional id.
func Int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// NullTime converts an optional timestamp for a query argument.
func NullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

// TimePtr converts a scanned nullable timestamp back to an optional one.
func TimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
