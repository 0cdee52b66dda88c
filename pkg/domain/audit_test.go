package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"compliance/pkg/requestcontext"
)

func TestAuditLifecycle(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := requestcontext.WithActor(requestcontext.WithTime(context.Background(), created), "officer1")

	a := NewAudit(ctx)
	assert.Equal(t, created, a.CreatedDate)
	assert.Equal(t, "officer1", a.CreatedBy)
	assert.True(t, a.IsActive)
	assert.True(t, a.Visible())

	later := created.Add(time.Hour)
	a.MarkDeleted(requestcontext.WithTime(ctx, later))
	assert.False(t, a.IsActive)
	assert.True(t, a.IsDeleted)
	assert.False(t, a.Visible())
	assert.Equal(t, later, *a.UpdatedDate)
}

func TestSameID(t *testing.T) {
	assert.True(t, SameID(nil, nil))
	assert.True(t, SameID(Int64(4), Int64(4)))
	assert.False(t, SameID(Int64(4), nil))
	assert.False(t, SameID(Int64(4), Int64(5)))
}
