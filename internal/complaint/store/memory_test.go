package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"compliance/internal/complaint/models"
	"compliance/pkg/domain"
	"compliance/pkg/platform/sentinel"
	"compliance/pkg/requestcontext"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = requestcontext.WithTime(
		requestcontext.WithActor(context.Background(), "idir/jdoe"),
		time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC),
	)
}

func (s *InMemoryStoreSuite) detail(complaintID, source int64, v models.Variant) *models.RequirementDetail {
	return &models.RequirementDetail{
		ComplaintID:         complaintID,
		RequirementSourceID: source,
		Variant:             v,
		Audit:               domain.NewAudit(s.ctx),
	}
}

func (s *InMemoryStoreSuite) TestRequirementRoundTrip() {
	s.Require().NoError(s.store.CreateRequirement(s.ctx, s.detail(1, models.RequirementOrder, models.Order{OrderNumber: "ORD-9"})))

	got, err := s.store.FindRequirement(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(models.Order{OrderNumber: "ORD-9"}, got.Variant)
}

func (s *InMemoryStoreSuite) TestMismatchedVariantIsRejected() {
	err := s.store.CreateRequirement(s.ctx, s.detail(1, models.RequirementOrder, models.ScheduleB{ConditionNumber: "1"}))
	s.ErrorIs(err, models.ErrVariantMismatch)

	err = s.store.CreateRequirement(s.ctx, s.detail(2, models.RequirementScheduleB, nil))
	s.ErrorIs(err, models.ErrVariantMismatch)

	for _, id := range []int64{1, 2} {
		_, err := s.store.FindRequirement(s.ctx, id)
		s.ErrorIs(err, sentinel.ErrNotFound)
	}
}
