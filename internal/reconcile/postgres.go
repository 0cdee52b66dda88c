package reconcile

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	txcontext "compliance/pkg/platform/tx"
	"compliance/pkg/requestcontext"
)

// Table names an association table and its two foreign-key columns.
type Table struct {
	Name         string
	ParentColumn string
	RefColumn    string
}

// PostgresFamily reconciles an int64-keyed association table. Identifiers come
// from a fixed Table value, never from request input.
type PostgresFamily struct {
	db    *sql.DB
	table Table
}

func NewPostgresFamily(db *sql.DB, table Table) *PostgresFamily {
	return &PostgresFamily{db: db, table: table}
}

func (f *PostgresFamily) Name() string { return f.table.Name }

func (f *PostgresFamily) ActiveKeys(ctx context.Context, parent int64) ([]int64, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = $1 AND is_active ORDER BY %s`,
		f.table.RefColumn, f.table.Name, f.table.ParentColumn, f.table.RefColumn,
	)
	rows, err := txcontext.Exec(ctx, f.db).QueryContext(ctx, query, parent)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", f.table.Name, err)
	}
	defer rows.Close()

	var keys []int64
	for rows.Next() {
		var k int64
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan %s: %w", f.table.Name, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (f *PostgresFamily) Deactivate(ctx context.Context, parent int64, keys []int64) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET is_active = false, is_deleted = true, updated_date = $3, updated_by = $4
		WHERE %s = $1 AND %s = ANY($2) AND is_active`,
		f.table.Name, f.table.ParentColumn, f.table.RefColumn,
	)
	_, err := txcontext.Exec(ctx, f.db).ExecContext(ctx, query,
		parent,
		pq.Array(keys),
		requestcontext.Now(ctx),
		requestcontext.Actor(ctx),
	)
	if err != nil {
		return fmt.Errorf("soft delete %s: %w", f.table.Name, err)
	}
	return nil
}

func (f *PostgresFamily) Insert(ctx context.Context, parent int64, keys []int64) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, created_date, created_by, is_active, is_deleted)
		SELECT $1, ref, $3, $4, true, false FROM unnest($2::bigint[]) AS ref`,
		f.table.Name, f.table.ParentColumn, f.table.RefColumn,
	)
	_, err := txcontext.Exec(ctx, f.db).ExecContext(ctx, query,
		parent,
		pq.Array(keys),
		requestcontext.Now(ctx),
		requestcontext.Actor(ctx),
	)
	if err != nil {
		return fmt.Errorf("bulk insert %s: %w", f.table.Name, err)
	}
	return nil
}
