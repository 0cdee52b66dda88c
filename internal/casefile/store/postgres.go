package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"compliance/internal/casefile/models"
	"compliance/internal/numbering"
	"compliance/internal/platform/postgres"
	"compliance/internal/reconcile"
	"compliance/pkg/platform/sentinel"
	txcontext "compliance/pkg/platform/tx"
)

var officersTable = reconcile.Table{Name: "case_file_officers", ParentColumn: "case_file_id", RefColumn: "officer_id"}

type PostgresStore struct {
	db       *sql.DB
	officers *reconcile.PostgresFamily
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, officers: reconcile.NewPostgresFamily(db, officersTable)}
}

const caseFileColumns = "id, case_file_number, project_id, date_created, lead_officer_id, initiation_id, case_file_status, " + postgres.AuditColumns

func scanCaseFile(row interface{ Scan(...any) error }) (*models.CaseFile, error) {
	var cf models.CaseFile
	var project, lead sql.NullInt64
	aud := postgres.ScanAudit(&cf.Audit)
	dest := append([]any{&cf.ID, &cf.CaseFileNumber, &project, &cf.DateCreated, &lead, &cf.InitiationID, &cf.Status}, aud.Dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	aud.Apply()
	cf.ProjectID = postgres.Int64Ptr(project)
	cf.LeadOfficerID = postgres.Int64Ptr(lead)
	return &cf, nil
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*models.CaseFile, error) {
	cf, err := scanCaseFile(txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+caseFileColumns+` FROM case_files WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find case file: %w", err)
	}
	return cf, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.CaseFile, error) {
	return s.findOne(ctx, `id = $1 AND NOT is_deleted`, id)
}

func (s *PostgresStore) FindAnyByID(ctx context.Context, id int64) (*models.CaseFile, error) {
	return s.findOne(ctx, `id = $1`, id)
}

func (s *PostgresStore) FindByNumber(ctx context.Context, number string) (*models.CaseFile, error) {
	return s.findOne(ctx, `case_file_number = $1 AND NOT is_deleted`, number)
}

func (s *PostgresStore) List(ctx context.Context, projectID *int64) ([]*models.CaseFile, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT `+caseFileColumns+` FROM case_files
		WHERE NOT is_deleted AND ($1::bigint IS NULL OR project_id = $1::bigint)
		ORDER BY case_file_number`, postgres.NullInt64(projectID))
	if err != nil {
		return nil, fmt.Errorf("query case files: %w", err)
	}
	defer rows.Close()
	out := []*models.CaseFile{}
	for rows.Next() {
		cf, err := scanCaseFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case file: %w", err)
		}
		out = append(out, cf)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, cf *models.CaseFile) error {
	args := append([]any{
		cf.CaseFileNumber, postgres.NullInt64(cf.ProjectID), cf.DateCreated,
		postgres.NullInt64(cf.LeadOfficerID), cf.InitiationID, string(cf.Status),
	}, postgres.AuditArgs(cf.Audit)...)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO case_files (case_file_number, project_id, date_created, lead_officer_id, initiation_id, case_file_status, `+postgres.AuditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`, args...).Scan(&cf.ID)
	if postgres.IsUniqueViolation(err, "case_files_case_file_number_key") {
		return sentinel.ErrAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("insert case file: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, cf *models.CaseFile) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE case_files
		SET project_id = $2, date_created = $3, lead_officer_id = $4, initiation_id = $5, case_file_status = $6,
		    updated_date = $7, updated_by = $8, is_active = $9, is_deleted = $10
		WHERE id = $1`,
		cf.ID, postgres.NullInt64(cf.ProjectID), cf.DateCreated, postgres.NullInt64(cf.LeadOfficerID),
		cf.InitiationID, string(cf.Status),
		postgres.NullTime(cf.UpdatedDate), postgres.NullString(cf.UpdatedBy), cf.IsActive, cf.IsDeleted,
	)
	if err != nil {
		return fmt.Errorf("update case file: %w", err)
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

func (s *PostgresStore) Officers() reconcile.Family[int64, int64] {
	return s.officers
}

func (s *PostgresStore) FindRef(ctx context.Context, id int64) (*numbering.CaseFileRef, error) {
	var ref numbering.CaseFileRef
	var project sql.NullInt64
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, project_id, case_file_number FROM case_files WHERE id = $1 AND NOT is_deleted`, id,
	).Scan(&ref.ID, &project, &ref.CaseFileNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find case file ref: %w", err)
	}
	ref.ProjectID = postgres.Int64Ptr(project)
	return &ref, nil
}

// MaxSequenceForYear strips non-digits from every case file number, deleted
// ones included, and returns the highest sequence following the year. Digit
// runs longer than numbering.MaxSequenceDigits are not sequences and are skipped.
func (s *PostgresStore) MaxSequenceForYear(ctx context.Context, year int) (int64, error) {
	prefix := strconv.Itoa(year)
	var highest int64
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT COALESCE(MAX(substring(digits FROM $2::int)::bigint), 0)
		FROM (SELECT regexp_replace(case_file_number, '\D', '', 'g') AS digits FROM case_files) n
		WHERE digits ~ $1`,
		fmt.Sprintf("^%s[0-9]{1,%d}$", prefix, numbering.MaxSequenceDigits), len(prefix)+1,
	).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("scan case file numbers: %w", err)
	}
	return highest, nil
}
