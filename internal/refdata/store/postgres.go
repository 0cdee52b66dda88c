package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"compliance/internal/platform/postgres"
	"compliance/internal/refdata/models"
	"compliance/pkg/domain"
	"compliance/pkg/platform/sentinel"
	txcontext "compliance/pkg/platform/tx"
)

// PostgresStore persists reference data in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const agencyColumns = "id, name, abbreviation, " + postgres.AuditColumns

func scanAgency(row interface{ Scan(...any) error }) (*models.Agency, error) {
	var a models.Agency
	var abbreviation sql.NullString
	aud := postgres.ScanAudit(&a.Audit)
	if err := row.Scan(append([]any{&a.ID, &a.Name, &abbreviation}, aud.Dest()...)...); err != nil {
		return nil, err
	}
	aud.Apply()
	a.Abbreviation = abbreviation.String
	return &a, nil
}

func (s *PostgresStore) ListAgencies(ctx context.Context) ([]*models.Agency, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT `+agencyColumns+` FROM agencies WHERE NOT is_deleted ORDER BY lower(name)`)
	if err != nil {
		return nil, fmt.Errorf("query agencies: %w", err)
	}
	defer rows.Close()
	out := []*models.Agency{}
	for rows.Next() {
		a, err := scanAgency(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agency: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindAgency(ctx context.Context, id int64) (*models.Agency, error) {
	a, err := scanAgency(txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+agencyColumns+` FROM agencies WHERE id = $1 AND NOT is_deleted`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find agency: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) FindAgencyByName(ctx context.Context, name string) (*models.Agency, error) {
	a, err := scanAgency(txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+agencyColumns+` FROM agencies WHERE lower(name) = lower($1) AND NOT is_deleted`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find agency by name: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) CreateAgency(ctx context.Context, a *models.Agency) error {
	args := append([]any{a.Name, postgres.NullString(a.Abbreviation)}, postgres.AuditArgs(a.Audit)...)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO agencies (name, abbreviation, `+postgres.AuditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`, args...).Scan(&a.ID)
	if postgres.IsUniqueViolation(err, "agencies_name_key") {
		return sentinel.ErrAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("insert agency: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateAgency(ctx context.Context, a *models.Agency) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE agencies
		SET name = $2, abbreviation = $3, updated_date = $4, updated_by = $5, is_active = $6, is_deleted = $7
		WHERE id = $1`,
		a.ID, a.Name, postgres.NullString(a.Abbreviation),
		postgres.NullTime(a.UpdatedDate), postgres.NullString(a.UpdatedBy), a.IsActive, a.IsDeleted,
	)
	if postgres.IsUniqueViolation(err, "agencies_name_key") {
		return sentinel.ErrAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("update agency: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) UpsertAgency(ctx context.Context, a *models.Agency) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO agencies (id, name, abbreviation, created_date, created_by, is_active, is_deleted)
		VALUES ($1, $2, $3, $4, $5, true, false)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, abbreviation = EXCLUDED.abbreviation,
		    updated_date = EXCLUDED.created_date, updated_by = EXCLUDED.created_by`,
		a.ID, a.Name, postgres.NullString(a.Abbreviation), a.CreatedDate, a.CreatedBy,
	)
	if postgres.IsUniqueViolation(err, "agencies_name_key") {
		return sentinel.ErrAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("upsert agency: %w", err)
	}
	return postgres.SyncSerial(ctx, s.db, "agencies")
}

const topicColumns = "id, name, sort_order, " + postgres.AuditColumns

func scanTopic(row interface{ Scan(...any) error }) (*models.Topic, error) {
	var t models.Topic
	aud := postgres.ScanAudit(&t.Audit)
	if err := row.Scan(append([]any{&t.ID, &t.Name, &t.SortOrder}, aud.Dest()...)...); err != nil {
		return nil, err
	}
	aud.Apply()
	return &t, nil
}

func (s *PostgresStore) ListTopics(ctx context.Context) ([]*models.Topic, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE NOT is_deleted ORDER BY sort_order, lower(name)`)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()
	out := []*models.Topic{}
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindTopic(ctx context.Context, id int64) (*models.Topic, error) {
	t, err := scanTopic(txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE id = $1 AND NOT is_deleted`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find topic: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) FindTopicByName(ctx context.Context, name string) (*models.Topic, error) {
	t, err := scanTopic(txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE lower(name) = lower($1) AND NOT is_deleted`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find topic by name: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) CreateTopic(ctx context.Context, t *models.Topic) error {
	args := append([]any{t.Name, t.SortOrder}, postgres.AuditArgs(t.Audit)...)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO topics (name, sort_order, `+postgres.AuditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`, args...).Scan(&t.ID)
	if postgres.IsUniqueViolation(err, "topics_name_key") {
		return sentinel.ErrAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("insert topic: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateTopic(ctx context.Context, t *models.Topic) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE topics
		SET name = $2, sort_order = $3, updated_date = $4, updated_by = $5, is_active = $6, is_deleted = $7
		WHERE id = $1`,
		t.ID, t.Name, t.SortOrder,
		postgres.NullTime(t.UpdatedDate), postgres.NullString(t.UpdatedBy), t.IsActive, t.IsDeleted,
	)
	if postgres.IsUniqueViolation(err, "topics_name_key") {
		return sentinel.ErrAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) UpsertTopic(ctx context.Context, t *models.Topic) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO topics (id, name, sort_order, created_date, created_by, is_active, is_deleted)
		VALUES ($1, $2, $3, $4, $5, true, false)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, sort_order = EXCLUDED.sort_order,
		    updated_date = EXCLUDED.created_date, updated_by = EXCLUDED.created_by`,
		t.ID, t.Name, t.SortOrder, t.CreatedDate, t.CreatedBy,
	)
	if postgres.IsUniqueViolation(err, "topics_name_key") {
		return sentinel.ErrAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("upsert topic: %w", err)
	}
	return postgres.SyncSerial(ctx, s.db, "topics")
}

func (s *PostgresStore) ListPositions(ctx context.Context) ([]*models.Position, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT id, name, description, sort_order, `+postgres.AuditColumns+`
		FROM positions WHERE NOT is_deleted ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()
	out := []*models.Position{}
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindPosition(ctx context.Context, id int64) (*models.Position, error) {
	p, err := scanPosition(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, name, description, sort_order, `+postgres.AuditColumns+`
		FROM positions WHERE id = $1 AND NOT is_deleted`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find position: %w", err)
	}
	return p, nil
}

func scanPosition(row interface{ Scan(...any) error }) (*models.Position, error) {
	var p models.Position
	var description sql.NullString
	aud := postgres.ScanAudit(&p.Audit)
	if err := row.Scan(append([]any{&p.ID, &p.Name, &description, &p.SortOrder}, aud.Dest()...)...); err != nil {
		return nil, err
	}
	aud.Apply()
	p.Description = description.String
	return &p, nil
}

func (s *PostgresStore) UpsertPosition(ctx context.Context, p *models.Position) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO positions (id, name, description, sort_order, created_date, created_by, is_active, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, true, false)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, sort_order = EXCLUDED.sort_order,
		    updated_date = EXCLUDED.created_date, updated_by = EXCLUDED.created_by`,
		p.ID, p.Name, postgres.NullString(p.Description), p.SortOrder, p.CreatedDate, p.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return postgres.SyncSerial(ctx, s.db, "positions")
}

func (s *PostgresStore) ListRequirementSources(ctx context.Context) ([]*models.RequirementSource, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT id, name, description, sort_order, `+postgres.AuditColumns+`
		FROM requirement_sources WHERE NOT is_deleted ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("query requirement sources: %w", err)
	}
	defer rows.Close()
	out := []*models.RequirementSource{}
	for rows.Next() {
		var rs models.RequirementSource
		var description sql.NullString
		aud := postgres.ScanAudit(&rs.Audit)
		if err := rows.Scan(append([]any{&rs.ID, &rs.Name, &description, &rs.SortOrder}, aud.Dest()...)...); err != nil {
			return nil, fmt.Errorf("scan requirement source: %w", err)
		}
		aud.Apply()
		rs.Description = description.String
		out = append(out, &rs)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertRequirementSource(ctx context.Context, rs *models.RequirementSource) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO requirement_sources (id, name, description, sort_order, created_date, created_by, is_active, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, true, false)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, sort_order = EXCLUDED.sort_order,
		    updated_date = EXCLUDED.created_date, updated_by = EXCLUDED.created_by`,
		rs.ID, rs.Name, postgres.NullString(rs.Description), rs.SortOrder, rs.CreatedDate, rs.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("upsert requirement source: %w", err)
	}
	return postgres.SyncSerial(ctx, s.db, "requirement_sources")
}

func (s *PostgresStore) ListOptions(ctx context.Context, kind models.OptionKind) ([]domain.Option, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT id, name, sort_order FROM options
		WHERE kind = $1 AND NOT is_deleted
		ORDER BY sort_order, id`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query %s options: %w", kind, err)
	}
	defer rows.Close()
	out := []domain.Option{}
	for rows.Next() {
		var o domain.Option
		if err := rows.Scan(&o.ID, &o.Name, &o.SortOrder); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertOption(ctx context.Context, o models.KindOption) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO options (kind, id, name, sort_order) VALUES ($1, $2, $3, $4)
		ON CONFLICT (kind, id) DO UPDATE SET name = EXCLUDED.name, sort_order = EXCLUDED.sort_order`,
		string(o.Kind), o.ID, o.Name, o.SortOrder,
	)
	if err != nil {
		return fmt.Errorf("upsert %s option: %w", o.Kind, err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
