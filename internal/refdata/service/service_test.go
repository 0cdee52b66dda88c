package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"compliance/internal/refdata/models"
	"compliance/internal/refdata/store"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/memtx"
	"compliance/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store   *store.InMemoryStore
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.service = New(s.store, memtx.NewRunner())
	s.ctx = requestcontext.WithActor(context.Background(), "idir/admin")
}

func (s *ServiceSuite) TestAgencyLifecycle() {
	created, err := s.service.CreateAgency(s.ctx, &models.AgencyRequest{Name: "Ministry of Forests", Abbreviation: "FOR"})
	s.Require().NoError(err)
	s.NotZero(created.ID)
	s.Equal("idir/admin", created.CreatedBy)
	s.True(created.IsActive)

	updated, err := s.service.UpdateAgency(s.ctx, created.ID, &models.AgencyRequest{Name: "Ministry of Forests", Abbreviation: "MOF"})
	s.Require().NoError(err)
	s.Equal("MOF", updated.Abbreviation)
	s.NotNil(updated.UpdatedDate)

	_, err = s.service.DeleteAgency(s.ctx, created.ID)
	s.Require().NoError(err)

	_, err = s.service.GetAgency(s.ctx, created.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	list, err := s.service.ListAgencies(s.ctx)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *ServiceSuite) TestAgencyNameIsUniqueAmongLiveRows() {
	first, err := s.service.CreateAgency(s.ctx, &models.AgencyRequest{Name: "Parks"})
	s.Require().NoError(err)

	_, err = s.service.CreateAgency(s.ctx, &models.AgencyRequest{Name: "parks"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	other, err := s.service.CreateAgency(s.ctx, &models.AgencyRequest{Name: "Fisheries"})
	s.Require().NoError(err)
	_, err = s.service.UpdateAgency(s.ctx, other.ID, &models.AgencyRequest{Name: "Parks"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	// renaming to its own name is not a conflict
	_, err = s.service.UpdateAgency(s.ctx, first.ID, &models.AgencyRequest{Name: "Parks", Abbreviation: "P"})
	s.NoError(err)

	_, err = s.service.DeleteAgency(s.ctx, first.ID)
	s.Require().NoError(err)
	_, err = s.service.CreateAgency(s.ctx, &models.AgencyRequest{Name: "Parks"})
	s.NoError(err)
}

func (s *ServiceSuite) TestUpdateMissingAgency() {
	_, err := s.service.UpdateAgency(s.ctx, 99, &models.AgencyRequest{Name: "X"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestTopics() {
	t, err := s.service.CreateTopic(s.ctx, &models.TopicRequest{Name: "Water"})
	s.Require().NoError(err)
	_, err = s.service.CreateTopic(s.ctx, &models.TopicRequest{Name: "WATER"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	renamed, err := s.service.UpdateTopic(s.ctx, t.ID, &models.TopicRequest{Name: "Water quality"})
	s.Require().NoError(err)
	s.Equal("Water quality", renamed.Name)

	_, err = s.service.DeleteTopic(s.ctx, t.ID)
	s.Require().NoError(err)
	_, err = s.service.DeleteTopic(s.ctx, t.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

const seedYAML = `
positions:
  - {id: 1, name: Compliance Officer, sort_order: 2}
  - {id: 2, name: Deputy Director, sort_order: 1}
agencies:
  - {id: 1, name: Ministry of Environment, abbreviation: ENV}
topics:
  - {id: 1, name: Wildlife}
requirement_sources:
  - {id: 2, name: Order, sort_order: 2}
  - {id: 1, name: Schedule B, sort_order: 1}
options:
  project_status:
    - {id: 2, name: Construction, sort_order: 2}
    - {id: 1, name: Pre-construction, sort_order: 1}
`

func (s *ServiceSuite) TestSeedIsIdempotent() {
	f, err := ParseSeed(strings.NewReader(seedYAML))
	s.Require().NoError(err)

	res, err := s.service.Seed(s.ctx, f)
	s.Require().NoError(err)
	s.Equal(models.SeedResult{Positions: 2, Agencies: 1, Topics: 1, RequirementSources: 2, Options: 2}, res)

	_, err = s.service.Seed(s.ctx, f)
	s.Require().NoError(err)

	positions, err := s.service.ListPositions(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(positions, 2)
	s.Equal("Deputy Director", positions[0].Name)

	sources, err := s.service.ListRequirementSources(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(sources, 2)
	s.Equal("Schedule B", sources[0].Name)

	opts, err := s.service.Options(s.ctx, models.OptionProjectStatus)
	s.Require().NoError(err)
	s.Require().Len(opts, 2)
	s.Equal("Pre-construction", opts[0].Name)

	// ids continue after seeded rows
	a, err := s.service.CreateAgency(s.ctx, &models.AgencyRequest{Name: "Ministry of Energy"})
	s.Require().NoError(err)
	s.Equal(int64(2), a.ID)
}

func (s *ServiceSuite) TestSeedRejectsUnknownKindAndMissingID() {
	_, err := ParseSeed(strings.NewReader("options:\n  colours:\n    - {id: 1, name: red}\n"))
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = ParseSeed(strings.NewReader("unknown_section: []\n"))
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	f, err := ParseSeed(strings.NewReader("topics:\n  - {name: Air}\n"))
	s.Require().NoError(err)
	_, err = s.service.Seed(s.ctx, f)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	topics, _ := s.service.ListTopics(s.ctx)
	s.Empty(topics)
}
