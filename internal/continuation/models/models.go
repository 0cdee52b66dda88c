package models

import (
	"fmt"
	"strings"

	"compliance/pkg/domain"
	dErrors "compliance/pkg/domain-errors"
)

// ContextType names the entity a report entry, or one of its keys, refers to.
type ContextType string

const (
	ContextInspection ContextType = "INSPECTION"
	ContextComplaint  ContextType = "COMPLAINT"
	ContextCaseFile   ContextType = "CASE_FILE"
	ContextOrder      ContextType = "ORDER"
)

func (c ContextType) Valid() bool {
	switch c {
	case ContextInspection, ContextComplaint, ContextCaseFile, ContextOrder:
		return true
	}
	return false
}

// Key is a substring of an entry's text rendered as a link to another record.
type Key struct {
	Key        string      `json:"key"`
	KeyContext ContextType `json:"key_context"`
}

// KeyRow is a persisted key.
type KeyRow struct {
	ID         int64       `json:"id"`
	ReportID   int64       `json:"report_id"`
	Key        string      `json:"key"`
	KeyContext ContextType `json:"key_context"`
	domain.Audit
}

// Report is one continuation report entry.
type Report struct {
	ID              int64       `json:"id"`
	CaseFileID      int64       `json:"case_file_id"`
	Text            string      `json:"text"`
	RichText        string      `json:"rich_text"`
	ContextType     ContextType `json:"context_type"`
	ContextID       int64       `json:"context_id"`
	SystemGenerated bool        `json:"system_generated"`
	Keys            []Key       `json:"keys"`
	domain.Audit
}

// SystemEntry is an entry written by a lifecycle event rather than a user.
type SystemEntry struct {
	CaseFileID  int64
	Text        string
	ContextType ContextType
	ContextID   int64
	Keys        []Key
}

type CreateRequest struct {
	CaseFileID  int64       `json:"case_file_id"`
	Text        string      `json:"text"`
	RichText    string      `json:"rich_text"`
	ContextType ContextType `json:"context_type"`
	ContextID   int64       `json:"context_id"`
	Keys        []Key       `json:"keys"`
}

func (r *CreateRequest) Validate() error {
	if r.CaseFileID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "case_file_id is required")
	}
	if !r.ContextType.Valid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown context_type %q", r.ContextType))
	}
	if r.ContextID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "context_id is required")
	}
	if strings.TrimSpace(r.Text) == "" {
		return dErrors.New(dErrors.CodeValidation, "text is required")
	}
	return validateKeys(r.Keys)
}

// UpdateRequest changes an entry. A nil Keys leaves the key set alone; an
// empty one clears it.
type UpdateRequest struct {
	Text     *string `json:"text"`
	RichText *string `json:"rich_text"`
	Keys     *[]Key  `json:"keys"`
}

func (r *UpdateRequest) Validate() error {
	if r.Text != nil && strings.TrimSpace(*r.Text) == "" {
		return dErrors.New(dErrors.CodeValidation, "text cannot be empty")
	}
	if r.Keys != nil {
		return validateKeys(*r.Keys)
	}
	return nil
}

func validateKeys(keys []Key) error {
	for i := range keys {
		keys[i].Key = strings.TrimSpace(keys[i].Key)
		if keys[i].Key == "" {
			return dErrors.New(dErrors.CodeValidation, "key cannot be empty")
		}
		if !keys[i].KeyContext.Valid() {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown key_context %q", keys[i].KeyContext))
		}
	}
	return nil
}

// ListFilter narrows a case file's entries to one context when ContextType is set.
type ListFilter struct {
	CaseFileID  int64
	ContextType ContextType
	ContextID   int64
}
