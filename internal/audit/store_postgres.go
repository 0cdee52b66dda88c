package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	txcontext "compliance/pkg/platform/tx"
	"compliance/pkg/requestcontext"
)

// PostgresStore writes versions to record_versions, which doubles as the outbox
// read by the publisher worker.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// RecordVersion appends a version in the transaction bound to ctx.
func (s *PostgresStore) RecordVersion(ctx context.Context, v Version) error {
	if v.EventID == uuid.Nil {
		v.EventID = uuid.New()
	}
	query := `
		INSERT INTO record_versions
			(event_id, entity, entity_id, operation, changed, snapshot, transaction_id, actor, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, txid_current(), $7, $8)
	`
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		v.EventID,
		v.Entity,
		v.EntityID,
		string(v.Operation),
		pq.Array(v.Changed),
		[]byte(v.Snapshot),
		requestcontext.Actor(ctx),
		requestcontext.Now(ctx),
	)
	if err != nil {
		return fmt.Errorf("insert record version: %w", err)
	}
	return nil
}

// FetchUnpublished returns up to limit unpublished versions in insertion order.
func (s *PostgresStore) FetchUnpublished(ctx context.Context, limit int) ([]Version, error) {
	query := `
		SELECT id, event_id, entity, entity_id, operation, changed, snapshot, transaction_id, actor, recorded_at
		FROM record_versions
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
	`
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished versions: %w", err)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		var v Version
		var op string
		var snapshot []byte
		if err := rows.Scan(&v.ID, &v.EventID, &v.Entity, &v.EntityID, &op,
			pq.Array(&v.Changed), &snapshot, &v.TransactionID, &v.Actor, &v.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		v.Operation = Operation(op)
		v.Snapshot = snapshot
		out = append(out, v)
	}
	return out, rows.Err()
}

// MarkPublished stamps the given versions as relayed.
func (s *PostgresStore) MarkPublished(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`UPDATE record_versions SET published_at = $2 WHERE id = ANY($1)`,
		pq.Array(ids), at,
	)
	if err != nil {
		return fmt.Errorf("mark versions published: %w", err)
	}
	return nil
}
