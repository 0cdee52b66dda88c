// Package domain holds the row shape shared by every persisted entity.
package domain

import (
	"context"
	"time"

	"compliance/pkg/requestcontext"
)

// Audit is the auditable, soft-deletable column set carried by every table.
type Audit struct {
	CreatedDate time.Time  `json:"created_date"`
	CreatedBy   string     `json:"created_by"`
	UpdatedDate *time.Time `json:"updated_date,omitempty"`
	UpdatedBy   string     `json:"updated_by,omitempty"`
	IsActive    bool       `json:"is_active"`
	IsDeleted   bool       `json:"is_deleted"`
}

// NewAudit stamps a fresh, active row with the acting user and request time.
func NewAudit(ctx context.Context) Audit {
	return Audit{
		CreatedDate: requestcontext.Now(ctx),
		CreatedBy:   requestcontext.Actor(ctx),
		IsActive:    true,
	}
}

// Touch records an update by the acting user.
func (a *Audit) Touch(ctx context.Context) {
	now := requestcontext.Now(ctx)
	a.UpdatedDate = &now
	a.UpdatedBy = requestcontext.Actor(ctx)
}

// MarkDeleted soft-deletes the row. Rows are never removed.
func (a *Audit) MarkDeleted(ctx context.Context) {
	a.Touch(ctx)
	a.IsActive = false
	a.IsDeleted = true
}

// Visible reports whether current-state reads may return the row.
func (a Audit) Visible() bool {
	return !a.IsDeleted
}

// Option is a read-only, sort-ordered lookup row.
type Option struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

// Int64 returns a pointer to v; handy for optional foreign keys.
func Int64(v int64) *int64 {
	return &v
}

// SameID compares two optional ids, treating nil as "no value".
func SameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
