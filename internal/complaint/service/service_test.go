package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"compliance/internal/audit"
	cfmodels "compliance/internal/casefile/models"
	cfstore "compliance/internal/casefile/store"
	"compliance/internal/complaint/models"
	"compliance/internal/complaint/store"
	crmodels "compliance/internal/continuation/models"
	crservice "compliance/internal/continuation/service"
	crstore "compliance/internal/continuation/store"
	"compliance/internal/numbering"
	refmodels "compliance/internal/refdata/models"
	"compliance/internal/registry"
	staffmodels "compliance/internal/staff/models"
	"compliance/pkg/domain"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/fieldcrypt"
	"compliance/pkg/platform/memtx"
	"compliance/pkg/platform/sentinel"
	"compliance/pkg/requestcontext"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type staffDir map[int64]staffmodels.StaffUser

func (d staffDir) Summaries(_ context.Context, ids []int64) ([]staffmodels.Summary, error) {
	out := []staffmodels.Summary{}
	for _, id := range ids {
		if u, ok := d[id]; ok {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

func (d staffDir) EnsureExist(_ context.Context, ids ...int64) error {
	for _, id := range ids {
		if _, ok := d[id]; !ok {
			return dErrors.New(dErrors.CodeUnprocessable, "staff user doesn't exist")
		}
	}
	return nil
}

func (d staffDir) FindByAuthGUID(_ context.Context, guid string) (*staffmodels.StaffUser, error) {
	for _, u := range d {
		if u.AuthUserGUID == guid {
			return &u, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

type refdata struct{}

func (refdata) OptionName(_ context.Context, kind refmodels.OptionKind, id int64) (string, error) {
	if kind != refmodels.OptionComplaintSource {
		return "", nil
	}
	return map[int64]string{1: "Public", 2: "First Nation", 3: "Agency", 4: "Other"}[id], nil
}

func (refdata) AgencyName(_ context.Context, id int64) (string, error) {
	if id != 5 {
		return "", dErrors.New(dErrors.CodeNotFound, "agency not found")
	}
	return "BC Energy Regulator", nil
}

func (refdata) TopicExists(_ context.Context, id int64) (bool, error) {
	return id == 2, nil
}

func (refdata) ListRequirementSources(context.Context) ([]*refmodels.RequirementSource, error) {
	return []*refmodels.RequirementSource{
		{ID: 1, Name: "Schedule B"},
		{ID: 2, Name: "Order"},
		{ID: 3, Name: "EAC Certificate"},
		{ID: 4, Name: "Permit"},
	}, nil
}

type ComplaintSuite struct {
	suite.Suite
	store     *store.InMemoryStore
	caseFiles *cfstore.InMemoryStore
	reports   *crservice.Service
	versions  *audit.MemoryStore
	projects  *registry.Static
	runner    *memtx.Runner
	service   *Service
	ctx       context.Context

	approvedFile   *cfmodels.CaseFile
	unapprovedFile *cfmodels.CaseFile
}

func TestComplaintSuite(t *testing.T) {
	suite.Run(t, new(ComplaintSuite))
}

func (s *ComplaintSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(
		requestcontext.WithActor(context.Background(), "idir/jdoe"),
		time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC),
	)
	s.store = store.NewInMemoryStore()
	s.caseFiles = cfstore.NewInMemoryStore()
	s.versions = audit.NewMemoryStore()
	s.projects = registry.NewStatic()
	s.projects.AddProject(registry.Project{
		ID: 7, Name: "Coastal Pipeline", Abbreviation: "CGL", EACertificate: "E14-03",
		Type: registry.Named{Name: "Energy"}, SubType: registry.Named{Name: "Pipeline"},
		Proponent: registry.Named{Name: "Coastal Ltd"},
	})
	s.projects.AddFirstNation(registry.FirstNation{ID: 31, Name: "Wet'suwet'en"})
	s.runner = memtx.NewRunner()
	s.reports = crservice.New(crstore.NewInMemoryStore(), s.runner, s.caseFiles)

	cipher, err := fieldcrypt.New(testKey)
	s.Require().NoError(err)
	staff := staffDir{
		7: {ID: 7, FirstName: "Ana", LastName: "Ortiz", AuthUserGUID: "aortiz"},
		8: {ID: 8, FirstName: "Ben", LastName: "Hale", AuthUserGUID: "bhale"},
	}
	gen := numbering.New(s.projects, s.caseFiles, numbering.NewMemorySequencer())
	s.service = New(s.store, s.runner, gen, s.caseFiles, staff, refdata{}, s.projects, cipher,
		WithVersionRecorder(s.versions),
		WithJournal(s.reports),
	)

	s.approvedFile = s.caseFile("20240001", domain.Int64(7))
	s.unapprovedFile = s.caseFile("20240002", nil)
}

func (s *ComplaintSuite) caseFile(number string, projectID *int64) *cfmodels.CaseFile {
	cf := &cfmodels.CaseFile{
		CaseFileNumber: number,
		ProjectID:      projectID,
		DateCreated:    requestcontext.Now(s.ctx),
		InitiationID:   1,
		Status:         cfmodels.StatusOpen,
		Audit:          domain.NewAudit(s.ctx),
	}
	s.Require().NoError(s.caseFiles.Create(s.ctx, cf))
	return cf
}

func (s *ComplaintSuite) request() *models.CreateRequest {
	return &models.CreateRequest{
		CaseFileID:         s.approvedFile.ID,
		ProjectID:          domain.Int64(7),
		ConcernDescription: "Dust from the haul road",
		DateReceived:       time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		SourceTypeID:       models.SourcePublic,
		SourceContact: models.Contact{
			FullName: "Mary Chen",
			Email:    "mary@example.org",
			Phone:    "250-555-0101",
			Comment:  "Calls after 5pm",
		},
	}
}

func (s *ComplaintSuite) create(req *models.CreateRequest) *models.Complaint {
	s.Require().NoError(req.Validate())
	c, err := s.service.Create(s.ctx, req)
	s.Require().NoError(err)
	return c
}

func (s *ComplaintSuite) TestCreateNumbersPerCaseFile() {
	first := s.create(s.request())
	second := s.create(s.request())

	s.Equal("CGL_20240001_CM001", first.ComplaintNumber)
	s.Equal("CGL_20240001_CM002", second.ComplaintNumber)
	s.Equal(models.StatusOpen, first.Status)
}

func (s *ComplaintSuite) TestContactSealedAtRest() {
	c := s.create(s.request())

	row, err := s.store.FindContact(s.ctx, c.ID)
	s.Require().NoError(err)
	s.NotEqual("Mary Chen", row.Contact.FullName)
	s.NotEqual("mary@example.org", row.Contact.Email)
	s.NotEmpty(row.Contact.Phone)

	got, err := s.service.Get(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.SourceContact)
	s.Equal("Mary Chen", got.SourceContact.FullName)
	s.Equal("mary@example.org", got.SourceContact.Email)
	s.Equal("250-555-0101", got.SourceContact.Phone)
	s.Equal("Calls after 5pm", got.SourceContact.Comment)
	s.Require().NotNil(got.Source)
	s.Equal("Public", got.Source.Name)
}

func (s *ComplaintSuite) TestRequirementWritesOneVariantRow() {
	cases := []struct {
		name     string
		source   int64
		input    models.RequirementInput
		expected [3]int
		variant  models.Variant
	}{
		{
			name:     "schedule b",
			source:   models.RequirementScheduleB,
			input:    models.RequirementInput{TopicID: domain.Int64(2), ConditionNumber: "12.3"},
			expected: [3]int{1, 0, 0},
			variant:  models.ScheduleB{ConditionNumber: "12.3"},
		},
		{
			name:     "order",
			source:   models.RequirementOrder,
			input:    models.RequirementInput{TopicID: domain.Int64(2), OrderNumber: "ORD-9"},
			expected: [3]int{0, 1, 0},
			variant:  models.Order{OrderNumber: "ORD-9"},
		},
		{
			name:     "eac certificate",
			source:   models.RequirementEACCertificate,
			input:    models.RequirementInput{TopicID: domain.Int64(2), Description: "Condition 4", AmendmentNumber: "A2"},
			expected: [3]int{0, 0, 1},
			variant:  models.EACCertificate{AmendmentNumber: "A2"},
		},
		{
			name:     "other source",
			source:   4,
			input:    models.RequirementInput{TopicID: domain.Int64(2), Description: "Permit clause"},
			expected: [3]int{0, 0, 0},
		},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			req := s.request()
			req.RequirementSourceID = domain.Int64(tc.source)
			req.RequirementDetails = tc.input
			c := s.create(req)

			got, err := s.service.Get(s.ctx, c.ID)
			s.Require().NoError(err)
			s.Require().NotNil(got.RequirementDetail)
			s.Equal(tc.variant, got.RequirementDetail.Variant)

			b, o, e := s.store.VariantRows(got.RequirementDetail.ID)
			s.Equal(tc.expected, [3]int{b, o, e})
		})
	}
}

func (s *ComplaintSuite) TestNoRequirementSourceWritesNoDetail() {
	c := s.create(s.request())

	got, err := s.service.Get(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Nil(got.RequirementDetail)
}

func (s *ComplaintSuite) TestUnknownReferencesRejected() {
	cases := []struct {
		name   string
		modify func(*models.CreateRequest)
	}{
		{"agency", func(r *models.CreateRequest) {
			r.SourceTypeID = models.SourceAgency
			r.SourceAgencyID = domain.Int64(99)
		}},
		{"source type", func(r *models.CreateRequest) { r.SourceTypeID = 9 }},
		{"topic", func(r *models.CreateRequest) {
			r.RequirementSourceID = domain.Int64(models.RequirementOrder)
			r.RequirementDetails = models.RequirementInput{TopicID: domain.Int64(77), OrderNumber: "X"}
		}},
		{"requirement source", func(r *models.CreateRequest) {
			r.RequirementSourceID = domain.Int64(12)
			r.RequirementDetails = models.RequirementInput{TopicID: domain.Int64(2), Description: "x"}
		}},
		{"lead officer", func(r *models.CreateRequest) { r.LeadOfficerID = domain.Int64(40) }},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			req := s.request()
			tc.modify(req)
			s.Require().NoError(req.Validate())
			_, err := s.service.Create(s.ctx, req)
			s.True(dErrors.HasCode(err, dErrors.CodeUnprocessable), "got %v", err)
		})
	}
	s.Equal(0, s.store.Len())
}

func (s *ComplaintSuite) TestUnapprovedProject() {
	req := s.request()
	req.CaseFileID = s.unapprovedFile.ID
	req.ProjectID = nil
	req.ProjectDescription = "Gravel pit"
	req.UnapprovedProjectAuthorization = "Permit 12"
	req.UnapprovedProjectType = "Mines"
	c := s.create(req)
	s.Equal("UNPRVD_20240002_CM001", c.ComplaintNumber)

	got, err := s.service.GetByNumber(s.ctx, c.ComplaintNumber)
	s.Require().NoError(err)
	s.Equal("Permit 12", got.Authorization)
	s.Equal("Mines", got.Type)
	s.Require().NotNil(got.CaseFile)
	s.Equal("20240002", got.CaseFile.CaseFileNumber)
}

func (s *ComplaintSuite) TestFirstNationSource() {
	req := s.request()
	req.SourceTypeID = models.SourceFirstNation
	req.SourceFirstNationID = domain.Int64(31)
	c := s.create(req)

	got, err := s.service.Get(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(&models.Named{ID: 31, Name: "Wet'suwet'en"}, got.FirstNation)
	s.Equal(&models.CaseFileRef{ID: s.approvedFile.ID, CaseFileNumber: "20240001"}, got.CaseFile)
}

func (s *ComplaintSuite) TestCreateWritesSystemEntry() {
	c := s.create(s.request())

	entries, err := s.reports.List(s.ctx, crmodels.ListFilter{CaseFileID: s.approvedFile.ID})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("Complaint CGL_20240001_CM001 created", entries[0].Text)
	s.Equal(crmodels.ContextComplaint, entries[0].ContextType)
	s.Equal(c.ID, entries[0].ContextID)
}

func (s *ComplaintSuite) TestUpdateAndDelete() {
	c := s.create(s.request())

	status := models.StatusClosed
	updated, err := s.service.Update(s.ctx, c.ID, &models.UpdateRequest{
		LeadOfficerID: domain.Int64(8),
		Status:        &status,
	})
	s.Require().NoError(err)
	s.Equal(models.StatusClosed, updated.Status)
	s.Equal("CGL_20240001_CM001", updated.ComplaintNumber)

	_, err = s.service.Update(s.ctx, c.ID, &models.UpdateRequest{LeadOfficerID: domain.Int64(99)})
	s.True(dErrors.HasCode(err, dErrors.CodeUnprocessable))

	_, err = s.service.Delete(s.ctx, c.ID)
	s.Require().NoError(err)
	_, err = s.service.Get(s.ctx, c.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	next := s.create(s.request())
	s.Equal("CGL_20240001_CM002", next.ComplaintNumber)

	s.Len(s.versions.Versions(entityName, c.ID), 3)
}

func (s *ComplaintSuite) TestIsAssignedUser() {
	req := s.request()
	req.LeadOfficerID = domain.Int64(7)
	c := s.create(req)

	ok, err := s.service.IsAssignedUser(s.ctx, c.ID, "aortiz")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.service.IsAssignedUser(s.ctx, c.ID, "bhale")
	s.Require().NoError(err)
	s.False(ok)

	ok, err = s.service.IsAssignedUser(s.ctx, 404, "aortiz")
	s.Require().NoError(err)
	s.False(ok)
}
