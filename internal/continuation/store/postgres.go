package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"compliance/internal/continuation/models"
	"compliance/internal/platform/postgres"
	"compliance/internal/reconcile"
	"compliance/pkg/platform/sentinel"
	txcontext "compliance/pkg/platform/tx"
	"compliance/pkg/requestcontext"
)

const keysTable = "continuation_report_keys"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const reportColumns = "id, case_file_id, text, rich_text, context_type, context_id, system_generated, " + postgres.AuditColumns

func scanReport(row interface{ Scan(...any) error }) (*models.Report, error) {
	var r models.Report
	aud := postgres.ScanAudit(&r.Audit)
	dest := append([]any{&r.ID, &r.CaseFileID, &r.Text, &r.RichText, &r.ContextType, &r.ContextID, &r.SystemGenerated}, aud.Dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	aud.Apply()
	return &r, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Report, error) {
	r, err := scanReport(txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM continuation_reports WHERE id = $1 AND NOT is_deleted`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find continuation report: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListByCaseFile(ctx context.Context, f models.ListFilter) ([]*models.Report, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT `+reportColumns+` FROM continuation_reports
		WHERE case_file_id = $1 AND NOT is_deleted
		  AND ($2::text = '' OR context_type = $2::text)
		  AND ($3::bigint = 0 OR context_id = $3::bigint)
		ORDER BY created_date, id`,
		f.CaseFileID, string(f.ContextType), f.ContextID)
	if err != nil {
		return nil, fmt.Errorf("query continuation reports: %w", err)
	}
	defer rows.Close()
	out := []*models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan continuation report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, r *models.Report) error {
	args := append([]any{r.CaseFileID, r.Text, r.RichText, string(r.ContextType), r.ContextID, r.SystemGenerated},
		postgres.AuditArgs(r.Audit)...)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO continuation_reports (case_file_id, text, rich_text, context_type, context_id, system_generated, `+postgres.AuditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`, args...).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert continuation report: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, r *models.Report) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE continuation_reports
		SET text = $2, rich_text = $3, updated_date = $4, updated_by = $5, is_active = $6, is_deleted = $7
		WHERE id = $1`,
		r.ID, r.Text, r.RichText,
		postgres.NullTime(r.UpdatedDate), postgres.NullString(r.UpdatedBy), r.IsActive, r.IsDeleted,
	)
	if err != nil {
		return fmt.Errorf("update continuation report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) KeysFor(ctx context.Context, reportIDs []int64) (map[int64][]models.Key, error) {
	out := make(map[int64][]models.Key, len(reportIDs))
	if len(reportIDs) == 0 {
		return out, nil
	}
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT report_id, key, key_context FROM continuation_report_keys
		WHERE report_id = ANY($1) AND is_active
		ORDER BY report_id, key`, pq.Array(reportIDs))
	if err != nil {
		return nil, fmt.Errorf("query report keys: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var k models.Key
		if err := rows.Scan(&id, &k.Key, &k.KeyContext); err != nil {
			return nil, fmt.Errorf("scan report key: %w", err)
		}
		out[id] = append(out[id], k)
	}
	return out, rows.Err()
}

func (s *PostgresStore) KeyFamily(contexts map[string]models.ContextType) reconcile.Family[int64, string] {
	return &postgresKeys{db: s.db, contexts: contexts}
}

// postgresKeys is the string-keyed key table. It differs from
// reconcile.PostgresFamily only in carrying key_context on insert.
type postgresKeys struct {
	db       *sql.DB
	contexts map[string]models.ContextType
}

func (f *postgresKeys) Name() string { return keysTable }

func (f *postgresKeys) ActiveKeys(ctx context.Context, parent int64) ([]string, error) {
	rows, err := txcontext.Exec(ctx, f.db).QueryContext(ctx,
		`SELECT key FROM continuation_report_keys WHERE report_id = $1 AND is_active ORDER BY key`, parent)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", keysTable, err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan %s: %w", keysTable, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (f *postgresKeys) Deactivate(ctx context.Context, parent int64, keys []string) error {
	_, err := txcontext.Exec(ctx, f.db).ExecContext(ctx, `
		UPDATE continuation_report_keys
		SET is_active = false, is_deleted = true, updated_date = $3, updated_by = $4
		WHERE report_id = $1 AND key = ANY($2) AND is_active`,
		parent, pq.Array(keys), requestcontext.Now(ctx), requestcontext.Actor(ctx))
	if err != nil {
		return fmt.Errorf("soft delete %s: %w", keysTable, err)
	}
	return nil
}

func (f *postgresKeys) Insert(ctx context.Context, parent int64, keys []string) error {
	contexts := make([]string, len(keys))
	for i, k := range keys {
		contexts[i] = string(f.contexts[k])
	}
	_, err := txcontext.Exec(ctx, f.db).ExecContext(ctx, `
		INSERT INTO continuation_report_keys (report_id, key, key_context, created_date, created_by, is_active, is_deleted)
		SELECT $1, k.key, k.key_context, $4, $5, true, false
		FROM unnest($2::text[], $3::text[]) AS k(key, key_context)`,
		parent, pq.Array(keys), pq.Array(contexts), requestcontext.Now(ctx), requestcontext.Actor(ctx))
	if err != nil {
		return fmt.Errorf("bulk insert %s: %w", keysTable, err)
	}
	return nil
}
