//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	cfmodels "compliance/internal/casefile/models"
	cfstore "compliance/internal/casefile/store"
	"compliance/internal/complaint/models"
	"compliance/internal/complaint/store"
	refmodels "compliance/internal/refdata/models"
	refstore "compliance/internal/refdata/store"
	"compliance/pkg/domain"
	"compliance/pkg/platform/sentinel"
	"compliance/pkg/requestcontext"
	"compliance/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	ctx      context.Context
	caseFile *cfmodels.CaseFile
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(
		requestcontext.WithActor(context.Background(), "idir/jdoe"),
		time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC),
	)
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "complaints", "case_files", "topics", "requirement_sources"))

	ref := refstore.NewPostgres(s.postgres.DB)
	s.Require().NoError(ref.UpsertTopic(s.ctx, &refmodels.Topic{ID: 2, Name: "Dust", Audit: domain.NewAudit(s.ctx)}))
	for id, name := range map[int64]string{1: "Schedule B", 2: "Order", 3: "EAC Certificate", 4: "Permit"} {
		s.Require().NoError(ref.UpsertRequirementSource(s.ctx, &refmodels.RequirementSource{
			ID: id, Name: name, SortOrder: int(id), Audit: domain.NewAudit(s.ctx),
		}))
	}

	s.caseFile = &cfmodels.CaseFile{
		CaseFileNumber: "20240001",
		ProjectID:      domain.Int64(7),
		DateCreated:    requestcontext.Now(s.ctx),
		InitiationID:   1,
		Status:         cfmodels.StatusOpen,
		Audit:          domain.NewAudit(s.ctx),
	}
	s.Require().NoError(cfstore.NewPostgres(s.postgres.DB).Create(s.ctx, s.caseFile))
}

func (s *PostgresStoreSuite) complaint(number string) *models.Complaint {
	c := &models.Complaint{
		ComplaintNumber:    number,
		CaseFileID:         s.caseFile.ID,
		ProjectID:          domain.Int64(7),
		ConcernDescription: "Dust from the haul road",
		DateReceived:       time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		SourceTypeID:       models.SourcePublic,
		Status:             models.StatusOpen,
		Audit:              domain.NewAudit(s.ctx),
	}
	s.Require().NoError(s.store.Create(s.ctx, c))
	return c
}

func (s *PostgresStoreSuite) TestDuplicateNumberIsAlreadyUsed() {
	s.complaint("CGL_20240001_CM001")

	dup := &models.Complaint{
		ComplaintNumber:    "CGL_20240001_CM001",
		CaseFileID:         s.caseFile.ID,
		ConcernDescription: "x",
		DateReceived:       time.Now(),
		SourceTypeID:       models.SourcePublic,
		Status:             models.StatusOpen,
		Audit:              domain.NewAudit(s.ctx),
	}
	s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestCountActiveSkipsDeleted() {
	first := s.complaint("CGL_20240001_CM001")
	s.complaint("CGL_20240001_CM002")

	first.MarkDeleted(s.ctx)
	s.Require().NoError(s.store.Update(s.ctx, first))

	n, err := s.store.CountActive(s.ctx, domain.Int64(7), s.caseFile.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	n, err = s.store.CountActive(s.ctx, nil, s.caseFile.ID)
	s.Require().NoError(err)
	s.Equal(int64(0), n)
}

func (s *PostgresStoreSuite) TestRequirementVariantRoundTrip() {
	cases := []struct {
		source  int64
		variant models.Variant
	}{
		{models.RequirementScheduleB, models.ScheduleB{ConditionNumber: "12.3"}},
		{models.RequirementOrder, models.Order{OrderNumber: "ORD-9"}},
		{models.RequirementEACCertificate, models.EACCertificate{AmendmentNumber: "A2", AmendmentConditionNumber: "4"}},
		{4, nil},
	}
	for i, tc := range cases {
		c := s.complaint("CGL_20240001_CM00" + string(rune('1'+i)))
		d := &models.RequirementDetail{
			ComplaintID:         c.ID,
			RequirementSourceID: tc.source,
			TopicID:             domain.Int64(2),
			Description:         "detail",
			Variant:             tc.variant,
			Audit:               domain.NewAudit(s.ctx),
		}
		s.Require().NoError(s.store.CreateRequirement(s.ctx, d))

		got, err := s.store.FindRequirement(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(tc.variant, got.Variant)
		s.Equal(tc.source, got.RequirementSourceID)
	}
}

func (s *PostgresStoreSuite) TestRequirementVariantMustMatchSource() {
	cases := []struct {
		source  int64
		variant models.Variant
	}{
		{models.RequirementScheduleB, nil},
		{models.RequirementOrder, models.ScheduleB{ConditionNumber: "12.3"}},
		{4, models.Order{OrderNumber: "ORD-9"}},
	}
	for i, tc := range cases {
		c := s.complaint("CGL_20240001_CM01" + string(rune('1'+i)))
		err := s.store.CreateRequirement(s.ctx, &models.RequirementDetail{
			ComplaintID:         c.ID,
			RequirementSourceID: tc.source,
			Variant:             tc.variant,
			Audit:               domain.NewAudit(s.ctx),
		})
		s.ErrorIs(err, models.ErrVariantMismatch)

		_, err = s.store.FindRequirement(s.ctx, c.ID)
		s.ErrorIs(err, sentinel.ErrNotFound, "no detail row is written")
	}
}

func (s *PostgresStoreSuite) TestContactAndUnapprovedProject() {
	c := s.complaint("UNPRVD_20240001_CM001")

	s.Require().NoError(s.store.CreateContact(s.ctx, &models.ContactRow{
		ComplaintID: c.ID,
		Contact:     models.Contact{FullName: "sealed-name", Description: "neighbour"},
		Audit:       domain.NewAudit(s.ctx),
	}))
	s.Require().NoError(s.store.CreateUnapprovedProject(s.ctx, &models.UnapprovedProject{
		ComplaintID: c.ID,
		Name:        models.UnapprovedProjectName,
		Type:        "Mines",
		Audit:       domain.NewAudit(s.ctx),
	}))

	contact, err := s.store.FindContact(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal("sealed-name", contact.Contact.FullName)
	s.Equal("neighbour", contact.Contact.Description)

	p, err := s.store.FindUnapprovedProject(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal("Mines", p.Type)
}
