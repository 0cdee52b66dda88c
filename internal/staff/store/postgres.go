package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"compliance/internal/platform/postgres"
	"compliance/internal/staff/models"
	"compliance/pkg/platform/sentinel"
	txcontext "compliance/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const staffColumns = "id, first_name, last_name, position_id, deputy_director_id, supervisor_id, auth_user_guid, " + postgres.AuditColumns

func scanStaff(row interface{ Scan(...any) error }) (*models.StaffUser, error) {
	var u models.StaffUser
	var deputy, supervisor sql.NullInt64
	aud := postgres.ScanAudit(&u.Audit)
	dest := append([]any{&u.ID, &u.FirstName, &u.LastName, &u.PositionID, &deputy, &supervisor, &u.AuthUserGUID}, aud.Dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	aud.Apply()
	u.DeputyDirectorID = postgres.Int64Ptr(deputy)
	u.SupervisorID = postgres.Int64Ptr(supervisor)
	return &u, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.StaffUser, error) {
	u, err := scanStaff(txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+staffColumns+` FROM staff_users WHERE id = $1 AND NOT is_deleted`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find staff user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) FindByAuthGUID(ctx context.Context, guid string) (*models.StaffUser, error) {
	u, err := scanStaff(txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+staffColumns+` FROM staff_users WHERE auth_user_guid = $1 AND NOT is_deleted`, guid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find staff user by guid: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) FindByIDs(ctx context.Context, ids []int64) ([]*models.StaffUser, error) {
	return s.query(ctx, `SELECT `+staffColumns+` FROM staff_users WHERE id = ANY($1) AND NOT is_deleted ORDER BY id`, pq.Array(ids))
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.StaffUser, error) {
	return s.query(ctx, `SELECT `+staffColumns+` FROM staff_users WHERE NOT is_deleted ORDER BY last_name, first_name, id`)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.StaffUser, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query staff users: %w", err)
	}
	defer rows.Close()
	out := []*models.StaffUser{}
	for rows.Next() {
		u, err := scanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("scan staff user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, u *models.StaffUser) error {
	args := append([]any{
		u.FirstName, u.LastName, u.PositionID,
		postgres.NullInt64(u.DeputyDirectorID), postgres.NullInt64(u.SupervisorID), u.AuthUserGUID,
	}, postgres.AuditArgs(u.Audit)...)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO staff_users (first_name, last_name, position_id, deputy_director_id, supervisor_id, auth_user_guid, `+postgres.AuditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`, args...).Scan(&u.ID)
	if postgres.IsUniqueViolation(err, "staff_users_auth_user_guid_key") {
		return sentinel.ErrAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("insert staff user: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, u *models.StaffUser) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE staff_users
		SET position_id = $2, deputy_director_id = $3, supervisor_id = $4,
		    updated_date = $5, updated_by = $6, is_active = $7, is_deleted = $8
		WHERE id = $1`,
		u.ID, u.PositionID, postgres.NullInt64(u.DeputyDirectorID), postgres.NullInt64(u.SupervisorID),
		postgres.NullTime(u.UpdatedDate), postgres.NullString(u.UpdatedBy), u.IsActive, u.IsDeleted,
	)
	if err != nil {
		return fmt.Errorf("update staff user: %w", err)
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
