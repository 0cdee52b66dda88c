package numbering

import (
	"context"
	"database/sql"
	"fmt"

	txcontext "compliance/pkg/platform/tx"
)

// PostgresSequencer keeps one counter row per scope in record_sequences. The
// upsert takes a row lock that is held until the caller's transaction ends.
type PostgresSequencer struct {
	db *sql.DB
}

func NewPostgresSequencer(db *sql.DB) *PostgresSequencer {
	return &PostgresSequencer{db: db}
}

func (s *PostgresSequencer) Next(ctx context.Context, scope string, floor int64) (int64, error) {
	query := `
		INSERT INTO record_sequences (scope, last_value)
		VALUES ($1, $2::bigint + 1)
		ON CONFLICT (scope) DO UPDATE
		SET last_value = GREATEST(record_sequences.last_value, $2::bigint) + 1
		RETURNING last_value
	`
	var next int64
	if err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, scope, floor).Scan(&next); err != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", scope, err)
	}
	return next, nil
}
