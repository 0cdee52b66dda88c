package models

import (
	"slices"
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

// Attendance option ids with a detail payload.
const (
	AttendanceAgencies          int64 = 1
	AttendanceFirstNations      int64 = 2
	AttendanceMunicipal         int64 = 3
	AttendanceOther             int64 = 7
	AttendanceAttendingOfficers int64 = 8
)

// UnapprovedProjectName names the detail row of inspections without a registry project.
const UnapprovedProjectName = "Unapproved Project"

// Named is an {id, name} reference in read models.
type Named struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type CaseFileRef struct {
	ID             int64  `json:"id"`
	CaseFileNumber string `json:"case_file_number"`
}

type Inspection struct {
	ID                  int64     `json:"id"`
	IRNumber            string    `json:"ir_number"`
	CaseFileID          int64     `json:"case_file_id"`
	ProjectID           *int64    `json:"project_id"`
	ProjectDescription  string    `json:"project_description,omitempty"`
	LocationDescription string    `json:"location_description,omitempty"`
	UTM                 string    `json:"utm,omitempty"`
	LeadOfficerID       *int64    `json:"lead_officer_id"`
	StartDate           time.Time `json:"start_date"`
	EndDate             time.Time `json:"end_date"`
	InitiationID        int64     `json:"initiation_id"`
	IRStatusID          *int64    `json:"ir_status_id"`
	ProjectStatusID     *int64    `json:"project_status_id"`
	Status              Status    `json:"inspection_status"`

	// Filled on single reads. The project parameters come from the registry,
	// or from the unapproved project row when there is no project.
	CaseFile       *CaseFileRef         `json:"case_file,omitempty"`
	LeadOfficer    *staffmodels.Summary `json:"lead_officer,omitempty"`
	Types          []Named              `json:"types,omitempty"`
	Authorization  string               `json:"authorization,omitempty"`
	Type           string               `json:"type,omitempty"`
	SubType        string               `json:"sub_type,omitempty"`
	RegulatedParty string               `json:"regulated_party,omitempty"`
	domain.Audit
}

// UnapprovedProject holds the free-form project detail of an inspection
// without a registry project.
type UnapprovedProject struct {
	ID             int64  `json:"id"`
	InspectionID   int64  `json:"inspection_id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Authorization  string `json:"authorization"`
	Type           string `json:"type"`
	SubType        string `json:"sub_type"`
	RegulatedParty string `json:"regulated_party"`
	domain.Audit
}

// OtherAttendance holds the free-text municipal and other attendees.
type OtherAttendance struct {
	ID           int64  `json:"id"`
	InspectionID int64  `json:"inspection_id"`
	Municipal    string `json:"municipal,omitempty"`
	Other        string `json:"other,omitempty"`
	domain.Audit
}

// Attendance is one selected attendance option. Data is a []Named for
// agencies, first nations and attending officers, the free text for municipal
// and other attendees, and "" otherwise.
type Attendance struct {
	AttendanceOptionID int64 `json:"attendance_option_id"`
	AttendanceOption   Named `json:"attendance_option"`
	Data               any   `json:"data"`
}

// AttendanceSelection is the attendance part of a write, checked as a whole.
type AttendanceSelection struct {
	OptionIDs      []int64
	AgencyIDs      []int64
	FirstNationIDs []int64
	OfficerIDs     []int64
	Municipal      string
	Other          string
}

// Check enforces the detail each selected option requires.
func (a AttendanceSelection) Check() error {
	selected := func(id int64) bool { return slices.Contains(a.OptionIDs, id) }
	switch {
	case selected(AttendanceAgencies) && len(a.AgencyIDs) == 0:
		return dErrors.New(dErrors.CodeValidation, "agency_attendance_ids are required when agencies are included in attendance_option_ids")
	case selected(AttendanceFirstNations) && len(a.FirstNationIDs) == 0:
		return dErrors.New(dErrors.CodeValidation, "firstnation_attendance_ids are required when first nations are included in attendance_option_ids")
	case selected(AttendanceAttendingOfficers) && len(a.OfficerIDs) == 0:
		return dErrors.New(dErrors.CodeValidation, "attending_officer_ids are required when attending officers are included in attendance_option_ids")
	case selected(AttendanceMunicipal) && strings.TrimSpace(a.Municipal) == "":
		return dErrors.New(dErrors.CodeValidation, "attendance_municipal is required when municipal is included in attendance_option_ids")
	case selected(AttendanceOther) && strings.TrimSpace(a.Other) == "":
		return dErrors.New(dErrors.CodeValidation, "attendance_other is required when other is included in attendance_option_ids")
	}
	return nil
}

// NeedsOtherAttendance reports whether the selection carries free-text attendees.
func (a AttendanceSelection) NeedsOtherAttendance() bool {
	return slices.Contains(a.OptionIDs, AttendanceMunicipal) || slices.Contains(a.OptionIDs, AttendanceOther)
}

type CreateRequest struct {
	CaseFileID                      int64     `json:"case_file_id"`
	ProjectID                       *int64    `json:"project_id"`
	ProjectDescription              string    `json:"project_description"`
	LocationDescription             string    `json:"location_description"`
	UTM                             string    `json:"utm"`
	LeadOfficerID                   *int64    `json:"lead_officer_id"`
	StartDate                       time.Time `json:"start_date"`
	EndDate                         time.Time `json:"end_date"`
	InitiationID                    int64     `json:"initiation_id"`
	IRStatusID                      *int64    `json:"ir_status_id"`
	ProjectStatusID                 *int64    `json:"project_status_id"`
	InspectionTypeIDs               []int64   `json:"inspection_type_ids"`
	AttendanceOptionIDs             []int64   `json:"attendance_option_ids"`
	AgencyAttendanceIDs             []int64   `json:"agency_attendance_ids"`
	FirstNationAttendanceIDs        []int64   `json:"firstnation_attendance_ids"`
	AttendingOfficerIDs             []int64   `json:"attending_officer_ids"`
	AttendanceMunicipal             string    `json:"attendance_municipal"`
	AttendanceOther                 string    `json:"attendance_other"`
	UnapprovedProjectAuthorization  string    `json:"unapproved_project_authorization"`
	UnapprovedProjectRegulatedParty string    `json:"unapproved_project_regulated_party"`
	UnapprovedProjectType           string    `json:"unapproved_project_type"`
	UnapprovedProjectSubType        string    `json:"unapproved_project_sub_type"`
}

func (r *CreateRequest) Validate() error {
	if r.CaseFileID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "case_file_id is required")
	}
	if r.InitiationID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "initiation_id is required")
	}
	if err := CheckDates(r.StartDate, r.EndDate); err != nil {
		return err
	}
	if len(r.InspectionTypeIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "inspection_type_ids are required")
	}
	if r.ProjectID == nil {
		r.UnapprovedProjectAuthorization = strings.TrimSpace(r.UnapprovedProjectAuthorization)
		r.UnapprovedProjectRegulatedParty = strings.TrimSpace(r.UnapprovedProjectRegulatedParty)
		r.UnapprovedProjectType = strings.TrimSpace(r.UnapprovedProjectType)
		r.UnapprovedProjectSubType = strings.TrimSpace(r.UnapprovedProjectSubType)
		if r.UnapprovedProjectAuthorization == "" || r.UnapprovedProjectRegulatedParty == "" ||
			r.UnapprovedProjectType == "" || r.UnapprovedProjectSubType == "" {
			return dErrors.New(dErrors.CodeValidation, "unapproved project authorization, regulated party, type and sub type are required without a project")
		}
	}
	return r.Attendance().Check()
}

func (r *CreateRequest) Attendance() AttendanceSelection {
	return AttendanceSelection{
		OptionIDs:      r.AttendanceOptionIDs,
		AgencyIDs:      r.AgencyAttendanceIDs,
		FirstNationIDs: r.FirstNationAttendanceIDs,
		OfficerIDs:     r.AttendingOfficerIDs,
		Municipal:      r.AttendanceMunicipal,
		Other:          r.AttendanceOther,
	}
}

// UpdateRequest patches an inspection. Nil fields are left unchanged; a
// given id list replaces that association set.
type UpdateRequest struct {
	ProjectDescription       *string    `json:"project_description"`
	LocationDescription      *string    `json:"location_description"`
	UTM                      *string    `json:"utm"`
	LeadOfficerID            *int64     `json:"lead_officer_id"`
	StartDate                *time.Time `json:"start_date"`
	EndDate                  *time.Time `json:"end_date"`
	InitiationID             *int64     `json:"initiation_id"`
	IRStatusID               *int64     `json:"ir_status_id"`
	ProjectStatusID          *int64     `json:"project_status_id"`
	InspectionStatus         *Status    `json:"inspection_status"`
	InspectionTypeIDs        *[]int64   `json:"inspection_type_ids"`
	AttendanceOptionIDs      *[]int64   `json:"attendance_option_ids"`
	AgencyAttendanceIDs      *[]int64   `json:"agency_attendance_ids"`
	FirstNationAttendanceIDs *[]int64   `json:"firstnation_attendance_ids"`
	AttendingOfficerIDs      *[]int64   `json:"attending_officer_ids"`
	AttendanceMunicipal      *string    `json:"attendance_municipal"`
	AttendanceOther          *string    `json:"attendance_other"`

	UnapprovedProjectAuthorization  *string `json:"unapproved_project_authorization"`
	UnapprovedProjectRegulatedParty *string `json:"unapproved_project_regulated_party"`
	UnapprovedProjectType           *string `json:"unapproved_project_type"`
	UnapprovedProjectSubType        *string `json:"unapproved_project_sub_type"`
}

func (r *UpdateRequest) Validate() error {
	if r.InitiationID != nil && *r.InitiationID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "initiation_id must be positive")
	}
	if r.InspectionStatus != nil && !r.InspectionStatus.Valid() {
		return dErrors.New(dErrors.CodeValidation, "inspection_status must be Open or Closed")
	}
	if r.InspectionTypeIDs != nil && len(*r.InspectionTypeIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "inspection_type_ids cannot be empty")
	}
	return nil
}

// ListFilter narrows a listing to one case file when CaseFileID is set.
type ListFilter struct {
	CaseFileID *int64
}

// CheckDates rejects missing dates and an end before the start.
func CheckDates(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "start_date and end_date are required")
	}
	if end.Before(start) {
		return dErrors.New(dErrors.CodeValidation, "end_date must not be before start_date")
	}
	return nil
}
