package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"compliance/internal/inspection/models"
	"compliance/internal/platform/postgres"
	"compliance/internal/reconcile"
	"compliance/pkg/platform/sentinel"
	txcontext "compliance/pkg/platform/tx"
)

var (
	officersTable     = reconcile.Table{Name: "inspection_officers", ParentColumn: "inspection_id", RefColumn: "officer_id"}
	agenciesTable     = reconcile.Table{Name: "inspection_agencies", ParentColumn: "inspection_id", RefColumn: "agency_id"}
	firstNationsTable = reconcile.Table{Name: "inspection_firstnations", ParentColumn: "inspection_id", RefColumn: "firstnation_id"}
	typesTable        = reconcile.Table{Name: "inspection_types", ParentColumn: "inspection_id", RefColumn: "type_id"}
	attendancesTable  = reconcile.Table{Name: "inspection_attendances", ParentColumn: "inspection_id", RefColumn: "attendance_option_id"}
)

type PostgresStore struct {
	db           *sql.DB
	officers     *reconcile.PostgresFamily
	agencies     *reconcile.PostgresFamily
	firstNations *reconcile.PostgresFamily
	types        *reconcile.PostgresFamily
	attendances  *reconcile.PostgresFamily
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:           db,
		officers:     reconcile.NewPostgresFamily(db, officersTable),
		agencies:     reconcile.NewPostgresFamily(db, agenciesTable),
		firstNations: reconcile.NewPostgresFamily(db, firstNationsTable),
		types:        reconcile.NewPostgresFamily(db, typesTable),
		attendances:  reconcile.NewPostgresFamily(db, attendancesTable),
	}
}

const inspectionColumns = "id, ir_number, case_file_id, project_id, project_description, location_description, utm, " +
	"lead_officer_id, start_date, end_date, initiation_id, ir_status_id, project_status_id, inspection_status, " +
	postgres.AuditColumns

func scanInspection(row interface{ Scan(...any) error }) (*models.Inspection, error) {
	var i models.Inspection
	var project, lead, irStatus, projectStatus sql.NullInt64
	var projectDesc, locationDesc, utm sql.NullString
	aud := postgres.ScanAudit(&i.Audit)
	dest := append([]any{
		&i.ID, &i.IRNumber, &i.CaseFileID, &project, &projectDesc, &locationDesc, &utm,
		&lead, &i.StartDate, &i.EndDate, &i.InitiationID, &irStatus, &projectStatus, &i.Status,
	}, aud.Dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	aud.Apply()
	i.ProjectID = postgres.Int64Ptr(project)
	i.LeadOfficerID = postgres.Int64Ptr(lead)
	i.IRStatusID = postgres.Int64Ptr(irStatus)
	i.ProjectStatusID = postgres.Int64Ptr(projectStatus)
	i.ProjectDescription = projectDesc.String
	i.LocationDescription = locationDesc.String
	i.UTM = utm.String
	return &i, nil
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*models.Inspection, error) {
	i, err := scanInspection(txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+inspectionColumns+` FROM inspections WHERE `+where+` AND NOT is_deleted`, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find inspection: %w", err)
	}
	return i, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Inspection, error) {
	return s.findOne(ctx, `id = $1`, id)
}

func (s *PostgresStore) FindByIRNumber(ctx context.Context, irNumber string) (*models.Inspection, error) {
	return s.findOne(ctx, `ir_number = $1`, irNumber)
}

func (s *PostgresStore) List(ctx context.Context, f models.ListFilter) ([]*models.Inspection, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT `+inspectionColumns+` FROM inspections
		WHERE NOT is_deleted AND ($1::bigint IS NULL OR case_file_id = $1::bigint)
		ORDER BY ir_number`, postgres.NullInt64(f.CaseFileID))
	if err != nil {
		return nil, fmt.Errorf("query inspections: %w", err)
	}
	defer rows.Close()
	out := []*models.Inspection{}
	for rows.Next() {
		i, err := scanInspection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inspection: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, i *models.Inspection) error {
	args := append([]any{
		i.IRNumber, i.CaseFileID, postgres.NullInt64(i.ProjectID),
		postgres.NullString(i.ProjectDescription), postgres.NullString(i.LocationDescription), postgres.NullString(i.UTM),
		postgres.NullInt64(i.LeadOfficerID), i.StartDate, i.EndDate, i.InitiationID,
		postgres.NullInt64(i.IRStatusID), postgres.NullInt64(i.ProjectStatusID), string(i.Status),
	}, postgres.AuditArgs(i.Audit)...)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO inspections (ir_number, case_file_id, project_id, project_description, location_description, utm,
			lead_officer_id, start_date, end_date, initiation_id, ir_status_id, project_status_id, inspection_status, `+postgres.AuditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id`, args...).Scan(&i.ID)
	if postgres.IsUniqueViolation(err, "inspections_ir_number_key") {
		return sentinel.ErrAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("insert inspection: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, i *models.Inspection) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE inspections
		SET project_description = $2, location_description = $3, utm = $4, lead_officer_id = $5,
		    start_date = $6, end_date = $7, initiation_id = $8, ir_status_id = $9, project_status_id = $10,
		    inspection_status = $11, updated_date = $12, updated_by = $13, is_active = $14, is_deleted = $15
		WHERE id = $1`,
		i.ID, postgres.NullString(i.ProjectDescription), postgres.NullString(i.LocationDescription), postgres.NullString(i.UTM),
		postgres.NullInt64(i.LeadOfficerID), i.StartDate, i.EndDate, i.InitiationID,
		postgres.NullInt64(i.IRStatusID), postgres.NullInt64(i.ProjectStatusID), string(i.Status),
		postgres.NullTime(i.UpdatedDate), postgres.NullString(i.UpdatedBy), i.IsActive, i.IsDeleted,
	)
	if err != nil {
		return fmt.Errorf("update inspection: %w", err)
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

func (s *PostgresStore) CountActive(ctx context.Context, projectID *int64, caseFileID int64) (int64, error) {
	var n int64
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT count(*) FROM inspections
		WHERE case_file_id = $1 AND project_id IS NOT DISTINCT FROM $2 AND NOT is_deleted`,
		caseFileID, postgres.NullInt64(projectID),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count inspections: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) FindUnapprovedProject(ctx context.Context, inspectionID int64) (*models.UnapprovedProject, error) {
	var p models.UnapprovedProject
	var desc, auth, typ, subType, party sql.NullString
	aud := postgres.ScanAudit(&p.Audit)
	dest := append([]any{&p.ID, &p.InspectionID, &p.Name, &desc, &auth, &typ, &subType, &party}, aud.Dest()...)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, inspection_id, name, description, "authorization", type, sub_type, regulated_party, `+postgres.AuditColumns+`
		FROM inspection_unapproved_projects WHERE inspection_id = $1 AND NOT is_deleted`, inspectionID,
	).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find unapproved project: %w", err)
	}
	aud.Apply()
	p.Description, p.Authorization, p.Type, p.SubType, p.RegulatedParty = desc.String, auth.String, typ.String, subType.String, party.String
	return &p, nil
}

// SaveUnapprovedProject inserts the detail row, or updates it in place.
func (s *PostgresStore) SaveUnapprovedProject(ctx context.Context, p *models.UnapprovedProject) error {
	args := append([]any{
		p.InspectionID, p.Name, postgres.NullString(p.Description), postgres.NullString(p.Authorization),
		postgres.NullString(p.Type), postgres.NullString(p.SubType), postgres.NullString(p.RegulatedParty),
	}, postgres.AuditArgs(p.Audit)...)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO inspection_unapproved_projects (inspection_id, name, description, "authorization", type, sub_type, regulated_party, `+postgres.AuditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (inspection_id) DO UPDATE
		SET description = EXCLUDED.description, "authorization" = EXCLUDED."authorization", type = EXCLUDED.type,
		    sub_type = EXCLUDED.sub_type, regulated_party = EXCLUDED.regulated_party,
		    updated_date = EXCLUDED.updated_date, updated_by = EXCLUDED.updated_by
		RETURNING id`, args...).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("save unapproved project: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindOtherAttendance(ctx context.Context, inspectionID int64) (*models.OtherAttendance, error) {
	var a models.OtherAttendance
	var municipal, other sql.NullString
	aud := postgres.ScanAudit(&a.Audit)
	dest := append([]any{&a.ID, &a.InspectionID, &municipal, &other}, aud.Dest()...)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, inspection_id, municipal, other, `+postgres.AuditColumns+`
		FROM inspection_other_attendances WHERE inspection_id = $1 AND NOT is_deleted`, inspectionID,
	).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find other attendance: %w", err)
	}
	aud.Apply()
	a.Municipal, a.Other = municipal.String, other.String
	return &a, nil
}

// SaveOtherAttendance inserts the attendee row, or updates it in place.
func (s *PostgresStore) SaveOtherAttendance(ctx context.Context, a *models.OtherAttendance) error {
	args := append([]any{a.InspectionID, postgres.NullString(a.Municipal), postgres.NullString(a.Other)},
		postgres.AuditArgs(a.Audit)...)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO inspection_other_attendances (inspection_id, municipal, other, `+postgres.AuditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (inspection_id) DO UPDATE
		SET municipal = EXCLUDED.municipal, other = EXCLUDED.other,
		    updated_date = EXCLUDED.updated_date, updated_by = EXCLUDED.updated_by
		RETURNING id`, args...).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("save other attendance: %w", err)
	}
	return nil
}

func (s *PostgresStore) Officers() reconcile.Family[int64, int64]     { return s.officers }
func (s *PostgresStore) Agencies() reconcile.Family[int64, int64]     { return s.agencies }
func (s *PostgresStore) FirstNations() reconcile.Family[int64, int64] { return s.firstNations }
func (s *PostgresStore) Types() reconcile.Family[int64, int64]        { return s.types }
func (s *PostgresStore) Attendances() reconcile.Family[int64, int64]  { return s.attendances }
