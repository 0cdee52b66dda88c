package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"compliance/internal/complaint/models"
	"compliance/internal/platform/postgres"
	"compliance/pkg/platform/sentinel"
	txcontext "compliance/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const complaintColumns = "id, complaint_number, case_file_id, project_id, project_description, concern_description, " +
	"location_description, lead_officer_id, date_received, requirement_source_id, source_type_id, source_agency_id, " +
	"source_first_nation_id, status, " + postgres.AuditColumns

func scanComplaint(row interface{ Scan(...any) error }) (*models.Complaint, error) {
	var c models.Complaint
	var project, lead, reqSource, agency, firstNation sql.NullInt64
	var projectDesc, locationDesc sql.NullString
	aud := postgres.ScanAudit(&c.Audit)
	dest := append([]any{
		&c.ID, &c.ComplaintNumber, &c.CaseFileID, &project, &projectDesc, &c.ConcernDescription,
		&locationDesc, &lead, &c.DateReceived, &reqSource, &c.SourceTypeID, &agency,
		&firstNation, &c.Status,
	}, aud.Dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	aud.Apply()
	c.ProjectID = postgres.Int64Ptr(project)
	c.LeadOfficerID = postgres.Int64Ptr(lead)
	c.RequirementSourceID = postgres.Int64Ptr(reqSource)
	c.SourceAgencyID = postgres.Int64Ptr(agency)
	c.SourceFirstNationID = postgres.Int64Ptr(firstNation)
	c.ProjectDescription = projectDesc.String
	c.LocationDescription = locationDesc.String
	return &c, nil
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*models.Complaint, error) {
	c, err := scanComplaint(txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+complaintColumns+` FROM complaints WHERE `+where+` AND NOT is_deleted`, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find complaint: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Complaint, error) {
	return s.findOne(ctx, `id = $1`, id)
}

func (s *PostgresStore) FindByNumber(ctx context.Context, number string) (*models.Complaint, error) {
	return s.findOne(ctx, `complaint_number = $1`, number)
}

func (s *PostgresStore) List(ctx context.Context, f models.ListFilter) ([]*models.Complaint, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT `+complaintColumns+` FROM complaints
		WHERE NOT is_deleted AND ($1::bigint IS NULL OR case_file_id = $1::bigint)
		ORDER BY complaint_number`, postgres.NullInt64(f.CaseFileID))
	if err != nil {
		return nil, fmt.Errorf("query complaints: %w", err)
	}
	defer rows.Close()
	out := []*models.Complaint{}
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, c *models.Complaint) error {
	args := append([]any{
		c.ComplaintNumber, c.CaseFileID, postgres.NullInt64(c.ProjectID), postgres.NullString(c.ProjectDescription),
		c.ConcernDescription, postgres.NullString(c.LocationDescription), postgres.NullInt64(c.LeadOfficerID),
		c.DateReceived, postgres.NullInt64(c.RequirementSourceID), c.SourceTypeID,
		postgres.NullInt64(c.SourceAgencyID), postgres.NullInt64(c.SourceFirstNationID), string(c.Status),
	}, postgres.AuditArgs(c.Audit)...)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO complaints (complaint_number, case_file_id, project_id, project_description, concern_description,
			location_description, lead_officer_id, date_received, requirement_source_id, source_type_id, source_agency_id,
			source_first_nation_id, status, `+postgres.AuditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id`, args...).Scan(&c.ID)
	if postgres.IsUniqueViolation(err, "complaints_complaint_number_key") {
		return sentinel.ErrAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("insert complaint: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, c *models.Complaint) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE complaints
		SET concern_description = $2, location_description = $3, lead_officer_id = $4, status = $5,
		    updated_date = $6, updated_by = $7, is_active = $8, is_deleted = $9
		WHERE id = $1`,
		c.ID, c.ConcernDescription, postgres.NullString(c.LocationDescription), postgres.NullInt64(c.LeadOfficerID),
		string(c.Status), postgres.NullTime(c.UpdatedDate), postgres.NullString(c.UpdatedBy), c.IsActive, c.IsDeleted,
	)
	if err != nil {
		return fmt.Errorf("update complaint: %w", err)
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
		SELECT count(*) FROM complaints
		WHERE case_file_id = $1 AND project_id IS NOT DISTINCT FROM $2 AND NOT is_deleted`,
		caseFileID, postgres.NullInt64(projectID),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count complaints: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) FindUnapprovedProject(ctx context.Context, complaintID int64) (*models.UnapprovedProject, error) {
	var p models.UnapprovedProject
	var desc, auth, typ, subType, party sql.NullString
	aud := postgres.ScanAudit(&p.Audit)
	dest := append([]any{&p.ID, &p.ComplaintID, &p.Name, &desc, &auth, &typ, &subType, &party}, aud.Dest()...)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, complaint_id, name, description, "authorization", type, sub_type, regulated_party, `+postgres.AuditColumns+`
		FROM complaint_unapproved_projects WHERE complaint_id = $1 AND NOT is_deleted`, complaintID,
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

func (s *PostgresStore) CreateUnapprovedProject(ctx context.Context, p *models.UnapprovedProject) error {
	args := append([]any{
		p.ComplaintID, p.Name, postgres.NullString(p.Description), postgres.NullString(p.Authorization),
		postgres.NullString(p.Type), postgres.NullString(p.SubType), postgres.NullString(p.RegulatedParty),
	}, postgres.AuditArgs(p.Audit)...)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO complaint_unapproved_projects (complaint_id, name, description, "authorization", type, sub_type, regulated_party, `+postgres.AuditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`, args...).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert unapproved project: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindContact(ctx context.Context, complaintID int64) (*models.ContactRow, error) {
	var c models.ContactRow
	var name, email, phone, comment, desc sql.NullString
	aud := postgres.ScanAudit(&c.Audit)
	dest := append([]any{&c.ID, &c.ComplaintID, &name, &email, &phone, &comment, &desc}, aud.Dest()...)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, complaint_id, full_name, email, phone, comment, description, `+postgres.AuditColumns+`
		FROM complaint_source_contacts WHERE complaint_id = $1 AND NOT is_deleted`, complaintID,
	).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find source contact: %w", err)
	}
	aud.Apply()
	c.FullName, c.Email, c.Phone, c.Comment, c.Description = name.String, email.String, phone.String, comment.String, desc.String
	return &c, nil
}

func (s *PostgresStore) CreateContact(ctx context.Context, c *models.ContactRow) error {
	args := append([]any{
		c.ComplaintID, postgres.NullString(c.FullName), postgres.NullString(c.Email),
		postgres.NullString(c.Phone), postgres.NullString(c.Comment), postgres.NullString(c.Description),
	}, postgres.AuditArgs(c.Audit)...)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO complaint_source_contacts (complaint_id, full_name, email, phone, comment, description, `+postgres.AuditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`, args...).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert source contact: %w", err)
	}
	return nil
}

// CreateRequirement inserts the detail and the one variant row its source calls for.
func (s *PostgresStore) CreateRequirement(ctx context.Context, d *models.RequirementDetail) error {
	if err := d.CheckVariant(); err != nil {
		return err
	}
	exec := txcontext.Exec(ctx, s.db)
	args := append([]any{d.ComplaintID, d.RequirementSourceID, postgres.NullInt64(d.TopicID), postgres.NullString(d.Description)},
		postgres.AuditArgs(d.Audit)...)
	if err := exec.QueryRowContext(ctx, `
		INSERT INTO complaint_requirement_details (complaint_id, requirement_source_id, topic_id, description, `+postgres.AuditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`, args...).Scan(&d.ID); err != nil {
		return fmt.Errorf("insert requirement detail: %w", err)
	}

	var (
		query  string
		values []any
	)
	switch v := d.Variant.(type) {
	case models.ScheduleB:
		query = `INSERT INTO complaint_req_schedule_b_details (req_id, condition_number, ` + postgres.AuditColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		values = []any{d.ID, v.ConditionNumber}
	case models.Order:
		query = `INSERT INTO complaint_req_order_details (req_id, order_number, ` + postgres.AuditColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		values = []any{d.ID, v.OrderNumber}
	case models.EACCertificate:
		query = `INSERT INTO complaint_req_eac_details (req_id, amendment_number, amendment_condition_number, ` + postgres.AuditColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		values = []any{d.ID, postgres.NullString(v.AmendmentNumber), postgres.NullString(v.AmendmentConditionNumber)}
	case nil:
		return nil
	default:
		return fmt.Errorf("unknown requirement variant %T: %w", v, models.ErrVariantMismatch)
	}
	if _, err := exec.ExecContext(ctx, query, append(values, postgres.AuditArgs(d.Audit)...)...); err != nil {
		return fmt.Errorf("insert requirement variant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindRequirement(ctx context.Context, complaintID int64) (*models.RequirementDetail, error) {
	var d models.RequirementDetail
	var topic sql.NullInt64
	var desc, condition, order, amendment, amendmentCondition sql.NullString
	var hasScheduleB, hasOrder, hasEAC bool
	aud := postgres.ScanAudit(&d.Audit)
	dest := append([]any{
		&d.ID, &d.ComplaintID, &d.RequirementSourceID, &topic, &desc,
		&hasScheduleB, &condition, &hasOrder, &order, &hasEAC, &amendment, &amendmentCondition,
	}, aud.Dest()...)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT d.id, d.complaint_id, d.requirement_source_id, d.topic_id, d.description,
		       b.id IS NOT NULL, b.condition_number,
		       o.id IS NOT NULL, o.order_number,
		       e.id IS NOT NULL, e.amendment_number, e.amendment_condition_number,
		       d.created_date, d.created_by, d.updated_date, d.updated_by, d.is_active, d.is_deleted
		FROM complaint_requirement_details d
		LEFT JOIN complaint_req_schedule_b_details b ON b.req_id = d.id AND NOT b.is_deleted
		LEFT JOIN complaint_req_order_details o ON o.req_id = d.id AND NOT o.is_deleted
		LEFT JOIN complaint_req_eac_details e ON e.req_id = d.id AND NOT e.is_deleted
		WHERE d.complaint_id = $1 AND NOT d.is_deleted`, complaintID,
	).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find requirement detail: %w", err)
	}
	aud.Apply()
	d.TopicID = postgres.Int64Ptr(topic)
	d.Description = desc.String
	switch {
	case hasScheduleB:
		d.Variant = models.ScheduleB{ConditionNumber: condition.String}
	case hasOrder:
		d.Variant = models.Order{OrderNumber: order.String}
	case hasEAC:
		d.Variant = models.EACCertificate{AmendmentNumber: amendment.String, AmendmentConditionNumber: amendmentCondition.String}
	}
	return &d, nil
}
