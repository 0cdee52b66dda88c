package models

import (
	"strings"

	"compliance/internal/platform/authz"
	"compliance/pkg/domain"
	dErrors "compliance/pkg/domain-errors"
)

// StaffUser is a compliance officer known to this application. Identity
// (names, groups) lives in the identity service; AuthUserGUID links the two.
type StaffUser struct {
	ID               int64            `json:"id"`
	FirstName        string           `json:"first_name"`
	LastName         string           `json:"last_name"`
	PositionID       int64            `json:"position_id"`
	DeputyDirectorID *int64           `json:"deputy_director_id,omitempty"`
	SupervisorID     *int64           `json:"supervisor_id,omitempty"`
	AuthUserGUID     string           `json:"auth_user_guid"`
	Permission       authz.Permission `json:"permission,omitempty"`
	domain.Audit
}

func (u *StaffUser) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Summary is the compact officer shape embedded in case files and inspections.
type Summary struct {
	ID        int64  `json:"id"`
	FullName  string `json:"full_name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (u *StaffUser) Summary() Summary {
	return Summary{ID: u.ID, FullName: u.FullName(), FirstName: u.FirstName, LastName: u.LastName}
}

type CreateRequest struct {
	AuthUserGUID     string           `json:"auth_user_guid"`
	PositionID       int64            `json:"position_id"`
	DeputyDirectorID *int64           `json:"deputy_director_id"`
	SupervisorID     *int64           `json:"supervisor_id"`
	Permission       authz.Permission `json:"permission"`
}

func (r *CreateRequest) Validate() error {
	r.AuthUserGUID = strings.TrimSpace(r.AuthUserGUID)
	if r.AuthUserGUID == "" {
		return dErrors.New(dErrors.CodeValidation, "auth_user_guid is required")
	}
	if r.PositionID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "position_id is required")
	}
	if !r.Permission.Valid() {
		return dErrors.New(dErrors.CodeValidation, "permission must be one of SUPERUSER, USER, VIEWER")
	}
	return nil
}

// UpdateRequest changes reporting lines and the permission level. The identity
// link (auth_user_guid) is fixed once created.
type UpdateRequest struct {
	PositionID       int64            `json:"position_id"`
	DeputyDirectorID *int64           `json:"deputy_director_id"`
	SupervisorID     *int64           `json:"supervisor_id"`
	Permission       authz.Permission `json:"permission"`
}

func (r *UpdateRequest) Validate() error {
	if r.PositionID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "position_id is required")
	}
	if r.Permission != "" && !r.Permission.Valid() {
		return dErrors.New(dErrors.CodeValidation, "permission must be one of SUPERUSER, USER, VIEWER")
	}
	return nil
}

// PermissionLevel is one entry of the permission level list.
type PermissionLevel struct {
	ID   authz.Permission `json:"id"`
	Name string           `json:"name"`
}
