package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

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

// Complaint source option ids.
const (
	SourcePublic      int64 = 1
	SourceFirstNation int64 = 2
	SourceAgency      int64 = 3
	SourceOther       int64 = 4
)

// Requirement source ids with a variant detail row.
const (
	RequirementScheduleB      int64 = 1
	RequirementOrder          int64 = 2
	RequirementEACCertificate int64 = 3
)

const UnapprovedProjectName = "Unapproved Project"

type Named struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type CaseFileRef struct {
	ID             int64  `json:"id"`
	CaseFileNumber string `json:"case_file_number"`
}

type Complaint struct {
	ID                  int64     `json:"id"`
	ComplaintNumber     string    `json:"complaint_number"`
	CaseFileID          int64     `json:"case_file_id"`
	ProjectID           *int64    `json:"project_id"`
	ProjectDescription  string    `json:"project_description,omitempty"`
	ConcernDescription  string    `json:"concern_description"`
	LocationDescription string    `json:"location_description,omitempty"`
	LeadOfficerID       *int64    `json:"lead_officer_id"`
	DateReceived        time.Time `json:"date_received"`
	RequirementSourceID *int64    `json:"requirement_source_id"`
	SourceTypeID        int64     `json:"source_type_id"`
	SourceAgencyID      *int64    `json:"source_agency_id"`
	SourceFirstNationID *int64    `json:"source_first_nation_id"`
	Status              Status    `json:"status"`

	// Filled on single reads.
	CaseFile          *CaseFileRef         `json:"case_file,omitempty"`
	LeadOfficer       *staffmodels.Summary `json:"lead_officer,omitempty"`
	Source            *Named               `json:"source,omitempty"`
	Agency            *Named               `json:"agency,omitempty"`
	FirstNation       *Named               `json:"first_nation,omitempty"`
	SourceContact     *Contact             `json:"complaint_source_contact,omitempty"`
	RequirementDetail *RequirementDetail   `json:"requirement_source_details,omitempty"`
	Authorization     string               `json:"authorization,omitempty"`
	Type              string               `json:"type,omitempty"`
	SubType           string               `json:"sub_type,omitempty"`
	RegulatedParty    string               `json:"regulated_party,omitempty"`
	domain.Audit
}

type UnapprovedProject struct {
	ID             int64  `json:"id"`
	ComplaintID    int64  `json:"complaint_id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Authorization  string `json:"authorization"`
	Type           string `json:"type"`
	SubType        string `json:"sub_type"`
	RegulatedParty string `json:"regulated_party"`
	domain.Audit
}

// Contact is the person who raised the complaint. FullName, Email, Phone and
// Comment are stored sealed.
type Contact struct {
	FullName    string `json:"full_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Comment     string `json:"comment,omitempty"`
	Description string `json:"description,omitempty"`
}

type ContactRow struct {
	ID          int64
	ComplaintID int64
	Contact
	domain.Audit
}

// Variant is the source-specific part of a requirement detail.
type Variant interface {
	RequirementSource() int64
}

type ScheduleB struct {
	ConditionNumber string
}

type Order struct {
	OrderNumber string
}

type EACCertificate struct {
	AmendmentNumber          string
	AmendmentConditionNumber string
}

func (ScheduleB) RequirementSource() int64      { return RequirementScheduleB }
func (Order) RequirementSource() int64          { return RequirementOrder }
func (EACCertificate) RequirementSource() int64 { return RequirementEACCertificate }

// ErrVariantMismatch is returned by stores asked to persist a detail whose
// variant is not the one its requirement source calls for.
var ErrVariantMismatch = errors.New("requirement variant does not match its source")

// RequirementDetail describes the requirement a complaint is raised against.
// Variant is nil for sources without a detail row.
type RequirementDetail struct {
	ID                  int64   `json:"id"`
	ComplaintID         int64   `json:"complaint_id"`
	RequirementSourceID int64   `json:"requirement_source_id"`
	TopicID             *int64  `json:"topic_id"`
	Description         string  `json:"description,omitempty"`
	Variant             Variant `json:"-"`
	domain.Audit
}

// CheckVariant fails unless Variant is present exactly for the sources that
// carry a detail row, and belongs to RequirementSourceID.
func (d RequirementDetail) CheckVariant() error {
	wantsVariant := VariantFor(d.RequirementSourceID, RequirementInput{}) != nil
	switch {
	case d.Variant == nil && !wantsVariant:
		return nil
	case d.Variant == nil:
		return fmt.Errorf("requirement source %d without detail: %w", d.RequirementSourceID, ErrVariantMismatch)
	case d.Variant.RequirementSource() != d.RequirementSourceID:
		return fmt.Errorf("requirement source %d given detail of source %d: %w",
			d.RequirementSourceID, d.Variant.RequirementSource(), ErrVariantMismatch)
	}
	return nil
}

// MarshalJSON flattens the variant fields into the detail.
func (d RequirementDetail) MarshalJSON() ([]byte, error) {
	type plain RequirementDetail
	out := struct {
		plain
		ConditionNumber          string `json:"condition_number,omitempty"`
		OrderNumber              string `json:"order_number,omitempty"`
		AmendmentNumber          string `json:"amendment_number,omitempty"`
		AmendmentConditionNumber string `json:"amendment_condition_number,omitempty"`
	}{plain: plain(d)}
	switch v := d.Variant.(type) {
	case ScheduleB:
		out.ConditionNumber = v.ConditionNumber
	case Order:
		out.OrderNumber = v.OrderNumber
	case EACCertificate:
		out.AmendmentNumber = v.AmendmentNumber
		out.AmendmentConditionNumber = v.AmendmentConditionNumber
	}
	return json.Marshal(out)
}

// RequirementInput is the requirement_source_details part of a create.
type RequirementInput struct {
	TopicID                  *int64 `json:"topic_id"`
	Description              string `json:"description"`
	ConditionNumber          string `json:"condition_number"`
	OrderNumber              string `json:"order_number"`
	AmendmentNumber          string `json:"amendment_number"`
	AmendmentConditionNumber string `json:"amendment_condition_number"`
}

// VariantFor picks the detail row the requirement source calls for.
func VariantFor(requirementSourceID int64, in RequirementInput) Variant {
	switch requirementSourceID {
	case RequirementScheduleB:
		return ScheduleB{ConditionNumber: in.ConditionNumber}
	case RequirementOrder:
		return Order{OrderNumber: in.OrderNumber}
	case RequirementEACCertificate:
		return EACCertificate{AmendmentNumber: in.AmendmentNumber, AmendmentConditionNumber: in.AmendmentConditionNumber}
	default:
		return nil
	}
}

type CreateRequest struct {
	CaseFileID                      int64            `json:"case_file_id"`
	ProjectID                       *int64           `json:"project_id"`
	ProjectDescription              string           `json:"project_description"`
	ConcernDescription              string           `json:"concern_description"`
	LocationDescription             string           `json:"location_description"`
	LeadOfficerID                   *int64           `json:"lead_officer_id"`
	DateReceived                    time.Time        `json:"date_received"`
	SourceTypeID                    int64            `json:"source_type_id"`
	SourceAgencyID                  *int64           `json:"source_agency_id"`
	SourceFirstNationID             *int64           `json:"source_first_nation_id"`
	SourceContact                   Contact          `json:"complaint_source_contact"`
	RequirementSourceID             *int64           `json:"requirement_source_id"`
	RequirementDetails              RequirementInput `json:"requirement_source_details"`
	UnapprovedProjectAuthorization  string           `json:"unapproved_project_authorization"`
	UnapprovedProjectRegulatedParty string           `json:"unapproved_project_regulated_party"`
	UnapprovedProjectType           string           `json:"unapproved_project_type"`
	UnapprovedProjectSubType        string           `json:"unapproved_project_sub_type"`
}

func (r *CreateRequest) Validate() error {
	r.ConcernDescription = strings.TrimSpace(r.ConcernDescription)
	switch {
	case r.CaseFileID <= 0:
		return dErrors.New(dErrors.CodeValidation, "case_file_id is required")
	case r.ConcernDescription == "":
		return dErrors.New(dErrors.CodeValidation, "concern_description is required")
	case r.DateReceived.IsZero():
		return dErrors.New(dErrors.CodeValidation, "date_received is required")
	case r.SourceTypeID <= 0:
		return dErrors.New(dErrors.CodeValidation, "source_type_id is required")
	case r.SourceTypeID == SourceAgency && r.SourceAgencyID == nil:
		return dErrors.New(dErrors.CodeValidation, "source_agency_id is required when the source is an agency")
	case r.SourceTypeID == SourceFirstNation && r.SourceFirstNationID == nil:
		return dErrors.New(dErrors.CodeValidation, "source_first_nation_id is required when the source is a first nation")
	}
	if r.RequirementSourceID == nil {
		return nil
	}

	req := &r.RequirementDetails
	source := *r.RequirementSourceID
	if req.TopicID == nil {
		return dErrors.New(dErrors.CodeValidation, "requirement_source_details.topic_id is required when a requirement source is selected")
	}
	if strings.TrimSpace(req.Description) == "" && source != RequirementOrder && source != RequirementScheduleB {
		return dErrors.New(dErrors.CodeValidation, "requirement_source_details.description is required for this requirement source")
	}
	if source == RequirementOrder && strings.TrimSpace(req.OrderNumber) == "" {
		return dErrors.New(dErrors.CodeValidation, "requirement_source_details.order_number is required when the requirement source is ORDER")
	}
	if source == RequirementScheduleB && strings.TrimSpace(req.ConditionNumber) == "" {
		return dErrors.New(dErrors.CodeValidation, "requirement_source_details.condition_number is required when the requirement source is SCHEDULE_B")
	}
	return nil
}

// UpdateRequest patches a complaint; nil fields are left unchanged.
type UpdateRequest struct {
	ConcernDescription  *string `json:"concern_description"`
	LocationDescription *string `json:"location_description"`
	LeadOfficerID       *int64  `json:"lead_officer_id"`
	Status              *Status `json:"status"`
}

func (r *UpdateRequest) Validate() error {
	if r.ConcernDescription != nil && strings.TrimSpace(*r.ConcernDescription) == "" {
		return dErrors.New(dErrors.CodeValidation, "concern_description cannot be empty")
	}
	if r.Status != nil && !r.Status.Valid() {
		return dErrors.New(dErrors.CodeValidation, "status must be Open or Closed")
	}
	return nil
}

type ListFilter struct {
	CaseFileID *int64
}
