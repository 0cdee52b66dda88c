package numbering

//go:generate mockgen -source=../registry/registry.go -destination=../registry/mocks/mocks.go -package=mocks Registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"compliance/internal/registry"
	"compliance/internal/registry/mocks"
	"compliance/pkg/domain"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/memtx"
	"compliance/pkg/platform/sentinel"
)

type stubCaseFiles map[int64]CaseFileRef

func (s stubCaseFiles) FindRef(_ context.Context, id int64) (*CaseFileRef, error) {
	cf, ok := s[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &cf, nil
}

type stubCounter int64

func (c stubCounter) CountActive(context.Context, *int64, int64) (int64, error) {
	return int64(c), nil
}

type stubScanner int64

func (s stubScanner) MaxSequenceForYear(context.Context, int) (int64, error) {
	return int64(s), nil
}

type GeneratorSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	projects  *mocks.MockRegistry
	caseFiles stubCaseFiles
	seq       *MemorySequencer
	gen       *Generator
	ctx       context.Context
}

func TestGeneratorSuite(t *testing.T) {
	suite.Run(t, new(GeneratorSuite))
}

func (s *GeneratorSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.projects = mocks.NewMockRegistry(s.ctrl)
	s.caseFiles = stubCaseFiles{
		1: {ID: 1, ProjectID: domain.Int64(7), CaseFileNumber: "20240007"},
		2: {ID: 2, CaseFileNumber: "20240008"},
	}
	s.seq = NewMemorySequencer()
	s.gen = New(s.projects, s.caseFiles, s.seq)
	s.ctx = context.Background()
}

func (s *GeneratorSuite) TestCaseFileNumber() {
	s.Run("first of the year", func() {
		n, err := s.gen.CaseFileNumber(s.ctx, 2024, stubScanner(0))
		s.Require().NoError(err)
		s.Equal("20240001", n)
	})

	s.Run("second of the year", func() {
		n, err := s.gen.CaseFileNumber(s.ctx, 2024, stubScanner(1))
		s.Require().NoError(err)
		s.Equal("20240002", n)
	})

	s.Run("floor above counter wins", func() {
		n, err := s.gen.CaseFileNumber(s.ctx, 2025, stubScanner(41))
		s.Require().NoError(err)
		s.Equal("20250042", n)
	})
}

func (s *GeneratorSuite) TestRecordNumberForApprovedProject() {
	s.projects.EXPECT().GetProject(gomock.Any(), int64(7)).
		Return(&registry.Project{ID: 7, Abbreviation: "ABCD"}, nil)

	n, err := s.gen.RecordNumber(s.ctx, KindInspection, domain.Int64(7), 1, stubCounter(2))
	s.Require().NoError(err)
	s.Equal("ABCD_20240007_IR003", n)
}

func (s *GeneratorSuite) TestRecordNumberForUnapprovedProject() {
	n, err := s.gen.RecordNumber(s.ctx, KindComplaint, nil, 2, stubCounter(0))
	s.Require().NoError(err)
	s.Equal("UNPRVD_20240008_CM001", n)
}

func (s *GeneratorSuite) TestRecordNumberFailures() {
	s.Run("missing case file", func() {
		_, err := s.gen.RecordNumber(s.ctx, KindComplaint, nil, 99, stubCounter(0))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("project mismatch", func() {
		s.projects.EXPECT().GetProject(gomock.Any(), int64(8)).
			Return(&registry.Project{ID: 8, Abbreviation: "XY"}, nil)
		_, err := s.gen.RecordNumber(s.ctx, KindInspection, domain.Int64(8), 1, stubCounter(0))
		s.True(dErrors.HasCode(err, dErrors.CodeUnprocessable))
	})

	s.Run("case file with project but none supplied", func() {
		_, err := s.gen.RecordNumber(s.ctx, KindInspection, nil, 1, stubCounter(0))
		s.True(dErrors.HasCode(err, dErrors.CodeUnprocessable))
	})

	s.Run("registry failure propagates", func() {
		upstream := dErrors.Wrap(errors.New("503"), dErrors.CodeUpstream, "project_registry lookup failed")
		s.projects.EXPECT().GetProject(gomock.Any(), int64(7)).Return(nil, upstream)
		_, err := s.gen.RecordNumber(s.ctx, KindInspection, domain.Int64(7), 1, stubCounter(0))
		s.True(dErrors.HasCode(err, dErrors.CodeUpstream))
	})
}

// Concurrent creators that observe the same count still receive distinct numbers.
func (s *GeneratorSuite) TestConcurrentAllocationIsUnique() {
	const writers = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]int)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.gen.RecordNumber(s.ctx, KindComplaint, nil, 2, stubCounter(0))
			s.NoError(err)
			mu.Lock()
			seen[n]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Len(seen, writers)
	for n, c := range seen {
		s.Equal(1, c, "number %s handed out twice", n)
	}
}

func (s *GeneratorSuite) TestRolledBackAllocationIsReused() {
	runner := memtx.NewRunner()
	boom := errors.New("insert failed")

	err := runner.RunInTx(s.ctx, func(ctx context.Context) error {
		n, err := s.gen.RecordNumber(ctx, KindComplaint, nil, 2, stubCounter(0))
		s.Require().NoError(err)
		s.Equal("UNPRVD_20240008_CM001", n)
		return boom
	})
	s.Require().ErrorIs(err, boom)

	n, err := s.gen.RecordNumber(s.ctx, KindComplaint, nil, 2, stubCounter(0))
	s.Require().NoError(err)
	s.Equal("UNPRVD_20240008_CM001", n)
}
