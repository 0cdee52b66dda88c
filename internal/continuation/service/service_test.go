package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"compliance/internal/audit"
	"compliance/internal/continuation/models"
	"compliance/internal/continuation/store"
	"compliance/internal/numbering"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/memtx"
	"compliance/pkg/platform/sentinel"
	"compliance/pkg/requestcontext"
)

type caseFileSet map[int64]bool

func (c caseFileSet) FindRef(_ context.Context, id int64) (*numbering.CaseFileRef, error) {
	if !c[id] {
		return nil, sentinel.ErrNotFound
	}
	return &numbering.CaseFileRef{ID: id, CaseFileNumber: "20240001"}, nil
}

type ContinuationSuite struct {
	suite.Suite
	store    *store.InMemoryStore
	versions *audit.MemoryStore
	runner   *memtx.Runner
	service  *Service
	ctx      context.Context
}

func TestContinuationSuite(t *testing.T) {
	suite.Run(t, new(ContinuationSuite))
}

func (s *ContinuationSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.versions = audit.NewMemoryStore()
	s.runner = memtx.NewRunner()
	s.service = New(s.store, s.runner, caseFileSet{1: true}, WithVersionRecorder(s.versions))
	s.ctx = requestcontext.WithActor(context.Background(), "idir/jdoe")
}

func (s *ContinuationSuite) create(keys ...models.Key) *models.Report {
	r, err := s.service.Create(s.ctx, &models.CreateRequest{
		CaseFileID:  1,
		Text:        "Visited site with IR001",
		RichText:    "<p>Visited site with <a>IR001</a></p>",
		ContextType: models.ContextInspection,
		ContextID:   4,
		Keys:        keys,
	})
	s.Require().NoError(err)
	return r
}

func (s *ContinuationSuite) TestCreateUserEntry() {
	r := s.create(models.Key{Key: "IR001", KeyContext: models.ContextInspection})
	s.False(r.SystemGenerated)
	s.Equal("<p>Visited site with <a>IR001</a></p>", r.RichText)
	s.Equal([]models.Key{{Key: "IR001", KeyContext: models.ContextInspection}}, r.Keys)
	s.Len(s.versions.Versions(entityName, r.ID), 1)
}

func (s *ContinuationSuite) TestSystemEntryWrapsText() {
	r, err := s.service.AppendSystemEntry(s.ctx, models.SystemEntry{
		CaseFileID:  1,
		Text:        "Inspection X_20240001_IR001 created",
		ContextType: models.ContextInspection,
		ContextID:   3,
		Keys:        []models.Key{{Key: "X_20240001_IR001", KeyContext: models.ContextInspection}},
	})
	s.Require().NoError(err)
	s.True(r.SystemGenerated)
	s.Equal("<p>Inspection X_20240001_IR001 created</p>", r.RichText)
	s.Len(r.Keys, 1)
}

func (s *ContinuationSuite) TestCreateUnknownCaseFile() {
	_, err := s.service.Create(s.ctx, &models.CreateRequest{CaseFileID: 9, Text: "x", ContextType: models.ContextCaseFile, ContextID: 9})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Empty(s.versions.Versions(entityName, 1))
}

func (s *ContinuationSuite) TestUpdateReconcilesKeysByText() {
	r := s.create(
		models.Key{Key: "IR001", KeyContext: models.ContextInspection},
		models.Key{Key: "CM001", KeyContext: models.ContextComplaint},
	)

	keys := []models.Key{
		{Key: "CM001", KeyContext: models.ContextComplaint},
		{Key: "ORD-7", KeyContext: models.ContextOrder},
	}
	text := "Follow up on CM001 and ORD-7"
	updated, err := s.service.Update(s.ctx, r.ID, &models.UpdateRequest{Text: &text, Keys: &keys})
	s.Require().NoError(err)
	s.Equal(text, updated.Text)
	s.Equal([]models.Key{
		{Key: "CM001", KeyContext: models.ContextComplaint},
		{Key: "ORD-7", KeyContext: models.ContextOrder},
	}, updated.Keys)

	// CM001 was kept, not re-inserted; IR001 is soft-deleted
	rows := s.store.KeyRows(r.ID)
	s.Len(rows, 3)
	for _, row := range rows {
		if row.Key == "IR001" {
			s.True(row.IsDeleted)
		}
	}
}

func (s *ContinuationSuite) TestUpdateWithoutKeysLeavesThem() {
	r := s.create(models.Key{Key: "IR001", KeyContext: models.ContextInspection})
	rich := "<p>edited</p>"
	updated, err := s.service.Update(s.ctx, r.ID, &models.UpdateRequest{RichText: &rich})
	s.Require().NoError(err)
	s.Len(updated.Keys, 1)

	versions := s.versions.Versions(entityName, r.ID)
	s.Require().Len(versions, 2)
	s.Contains(versions[1].Changed, "rich_text")
}

func (s *ContinuationSuite) TestListFiltersByContext() {
	s.create()
	_, err := s.service.AppendSystemEntry(s.ctx, models.SystemEntry{CaseFileID: 1, Text: "Case file created", ContextType: models.ContextCaseFile, ContextID: 1})
	s.Require().NoError(err)

	all, err := s.service.List(s.ctx, models.ListFilter{CaseFileID: 1})
	s.Require().NoError(err)
	s.Len(all, 2)

	inspections, err := s.service.List(s.ctx, models.ListFilter{CaseFileID: 1, ContextType: models.ContextInspection})
	s.Require().NoError(err)
	s.Require().Len(inspections, 1)
	s.NotNil(inspections[0].Keys)

	_, err = s.service.List(s.ctx, models.ListFilter{CaseFileID: 1, ContextType: "MEMO"})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ContinuationSuite) TestDeleteHidesEntry() {
	r := s.create()
	_, err := s.service.Delete(s.ctx, r.ID)
	s.Require().NoError(err)

	_, err = s.service.Get(s.ctx, r.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	list, err := s.service.List(s.ctx, models.ListFilter{CaseFileID: 1})
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *ContinuationSuite) TestSystemEntryJoinsCallerTransaction() {
	err := s.runner.RunInTx(s.ctx, func(ctx context.Context) error {
		if _, err := s.service.AppendSystemEntry(ctx, models.SystemEntry{CaseFileID: 1, Text: "x", ContextType: models.ContextCaseFile, ContextID: 1}); err != nil {
			return err
		}
		return dErrors.New(dErrors.CodeConflict, "number taken")
	})
	s.Require().Error(err)

	list, err := s.service.List(s.ctx, models.ListFilter{CaseFileID: 1})
	s.Require().NoError(err)
	s.Empty(list)
}
