package models

import (
	"strings"
	"time"

	"compliance/internal/numbering"
	"compliance/internal/registry"
	staffmodels "compliance/internal/staff/models"
	"compliance/pkg/domain"
	dErrors "compliance/pkg/domain-errors"
)

type Status string

const (
	StatusOpen   Status = "Open"
	StatusClosed Status = "Closed"
)

func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

// CaseFile groups the inspections and complaints raised for one project.
type CaseFile struct {
	ID             int64                `json:"id"`
	CaseFileNumber string               `json:"case_file_number"`
	ProjectID      *int64               `json:"project_id"`
	DateCreated    time.Time            `json:"date_created"`
	LeadOfficerID  *int64               `json:"lead_officer_id"`
	InitiationID   int64                `json:"initiation_id"`
	Status         Status               `json:"case_file_status"`
	LeadOfficer    *staffmodels.Summary `json:"lead_officer,omitempty"`
	Project        *registry.Project    `json:"project,omitempty"`
	domain.Audit
}

// CreateRequest creates a case file. An empty CaseFileNumber is generated.
type CreateRequest struct {
	ProjectID      *int64    `json:"project_id"`
	DateCreated    time.Time `json:"date_created"`
	LeadOfficerID  *int64    `json:"lead_officer_id"`
	InitiationID   int64     `json:"initiation_id"`
	CaseFileNumber string    `json:"case_file_number"`
	OfficerIDs     []int64   `json:"officer_ids"`
}

func (r *CreateRequest) Validate() error {
	r.CaseFileNumber = strings.TrimSpace(r.CaseFileNumber)
	if r.InitiationID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "initiation_id is required")
	}
	if len(r.CaseFileNumber) > 50 {
		return dErrors.New(dErrors.CodeValidation, "case_file_number must be at most 50 characters")
	}
	if digitCount(r.CaseFileNumber) > 4+numbering.MaxSequenceDigits {
		return dErrors.New(dErrors.CodeValidation, "case_file_number must contain at most 13 digits")
	}
	return validateIDs(r.ProjectID, r.LeadOfficerID, r.OfficerIDs)
}

// UpdateRequest patches a case file; nil fields are left unchanged.
// CaseFileNumber may be sent back but must match the stored number.
type UpdateRequest struct {
	ProjectID      *int64     `json:"project_id"`
	DateCreated    *time.Time `json:"date_created"`
	LeadOfficerID  *int64     `json:"lead_officer_id"`
	InitiationID   *int64     `json:"initiation_id"`
	CaseFileStatus *Status    `json:"case_file_status"`
	CaseFileNumber *string    `json:"case_file_number"`
	OfficerIDs     *[]int64   `json:"officer_ids"`
}

func (r *UpdateRequest) Validate() error {
	if r.InitiationID != nil && *r.InitiationID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "initiation_id must be positive")
	}
	if r.CaseFileStatus != nil && !r.CaseFileStatus.Valid() {
		return dErrors.New(dErrors.CodeValidation, "case_file_status must be Open or Closed")
	}
	var officers []int64
	if r.OfficerIDs != nil {
		officers = *r.OfficerIDs
	}
	return validateIDs(r.ProjectID, r.LeadOfficerID, officers)
}

func validateIDs(projectID, leadOfficerID *int64, officerIDs []int64) error {
	if projectID != nil && *projectID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "project_id must be positive")
	}
	if leadOfficerID != nil && *leadOfficerID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "lead_officer_id must be positive")
	}
	for _, id := range officerIDs {
		if id <= 0 {
			return dErrors.New(dErrors.CodeValidation, "officer_ids must be positive")
		}
	}
	return nil
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
