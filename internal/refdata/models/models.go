package models

import (
	"strings"

	"compliance/pkg/domain"
	dErrors "compliance/pkg/domain-errors"
	textutil "compliance/pkg/platform/strings"
)

// OptionKind names a read-only option list.
type OptionKind string

const (
	OptionCaseFileInitiation   OptionKind = "case_file_initiation"
	OptionInspectionAttendance OptionKind = "inspection_attendance"
	OptionInspectionType       OptionKind = "inspection_type"
	OptionInspectionInitiation OptionKind = "inspection_initiation"
	OptionIRStatus             OptionKind = "ir_status"
	OptionProjectStatus        OptionKind = "project_status"
	OptionComplaintSource      OptionKind = "complaint_source"
)

func OptionKinds() []OptionKind {
	return []OptionKind{
		OptionCaseFileInitiation,
		OptionInspectionAttendance,
		OptionInspectionType,
		OptionInspectionInitiation,
		OptionIRStatus,
		OptionProjectStatus,
		OptionComplaintSource,
	}
}

type Agency struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation,omitempty"`
	domain.Audit
}

type Topic struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
	domain.Audit
}

type Position struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	SortOrder   int    `json:"sort_order"`
	domain.Audit
}

type RequirementSource struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	SortOrder   int    `json:"sort_order"`
	domain.Audit
}

// KindOption is one row of an option list.
type KindOption struct {
	Kind OptionKind `json:"-"`
	domain.Option
}

// AgencyRequest is the create/update body of an agency.
type AgencyRequest struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}

func (r *AgencyRequest) Validate() error {
	r.Name = textutil.NormalizeName(r.Name)
	r.Abbreviation = strings.TrimSpace(r.Abbreviation)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > 150 {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 150 characters")
	}
	if len(r.Abbreviation) > 10 {
		return dErrors.New(dErrors.CodeValidation, "abbreviation must be at most 10 characters")
	}
	return nil
}

// TopicRequest is the create/update body of a topic.
type TopicRequest struct {
	Name string `json:"name"`
}

func (r *TopicRequest) Validate() error {
	r.Name = textutil.NormalizeName(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > 150 {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 150 characters")
	}
	return nil
}

// SeedFile is the YAML document loaded by the seed command.
type SeedFile struct {
	Positions          []SeedRow            `yaml:"positions"`
	Agencies           []SeedAgency         `yaml:"agencies"`
	Topics             []SeedRow            `yaml:"topics"`
	RequirementSources []SeedRow            `yaml:"requirement_sources"`
	Options            map[string][]SeedRow `yaml:"options"`
}

type SeedRow struct {
	ID          int64  `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	SortOrder   int    `yaml:"sort_order"`
}

type SeedAgency struct {
	ID           int64  `yaml:"id"`
	Name         string `yaml:"name"`
	Abbreviation string `yaml:"abbreviation"`
}

// SeedResult counts the rows written per section.
type SeedResult struct {
	Positions          int
	Agencies           int
	Topics             int
	RequirementSources int
	Options            int
}
