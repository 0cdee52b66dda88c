//go:build integration

package numbering_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	cfmodels "compliance/internal/casefile/models"
	cfstore "compliance/internal/casefile/store"
	"compliance/internal/numbering"
	"compliance/internal/platform/postgres"
	"compliance/internal/registry"
	"compliance/pkg/domain"
	"compliance/pkg/requestcontext"
	"compliance/pkg/testutil/containers"
)

type noActiveRecords struct{}

func (noActiveRecords) CountActive(context.Context, *int64, int64) (int64, error) {
	return 0, nil
}

type PostgresSequencerSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	seq       *numbering.PostgresSequencer
	caseFiles *cfstore.PostgresStore
	gen       *numbering.Generator
	tx        *postgres.TxRunner
	ctx       context.Context
}

func TestPostgresSequencerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresSequencerSuite))
}

func (s *PostgresSequencerSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.seq = numbering.NewPostgresSequencer(s.postgres.DB)
	s.caseFiles = cfstore.NewPostgres(s.postgres.DB)
	s.gen = numbering.New(registry.NewStatic(), s.caseFiles, s.seq)
	s.tx = postgres.NewTxRunner(s.postgres.DB, 10*time.Second)
}

func (s *PostgresSequencerSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(
		requestcontext.WithActor(context.Background(), "idir/jdoe"),
		time.Date(2024, 8, 19, 14, 0, 0, 0, time.UTC),
	)
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "record_sequences", "case_files"))
}

func (s *PostgresSequencerSuite) caseFile(number string) int64 {
	cf := &cfmodels.CaseFile{
		CaseFileNumber: number,
		DateCreated:    requestcontext.Now(s.ctx),
		InitiationID:   1,
		Status:         cfmodels.StatusOpen,
		Audit:          domain.NewAudit(s.ctx),
	}
	s.Require().NoError(s.caseFiles.Create(s.ctx, cf))
	return cf.ID
}

func (s *PostgresSequencerSuite) next(scope string, floor int64) int64 {
	v, err := s.seq.Next(s.ctx, scope, floor)
	s.Require().NoError(err)
	return v
}

func (s *PostgresSequencerSuite) TestFloorRaisesTheCounter() {
	s.Equal(int64(1), s.next("CM:7:1", 0))
	s.Equal(int64(41), s.next("CM:7:1", 40))
	s.Equal(int64(42), s.next("CM:7:1", 5), "a lower floor never rewinds")
	s.Equal(int64(1), s.next("IR:7:1", 0), "scopes are independent")
}

func (s *PostgresSequencerSuite) TestRolledBackAllocationIsReleased() {
	s.Equal(int64(1), s.next("CM:7:1", 0))

	boom := errors.New("boom")
	err := s.tx.RunInTx(s.ctx, func(ctx context.Context) error {
		v, err := s.seq.Next(ctx, "CM:7:1", 0)
		s.Require().NoError(err)
		s.Equal(int64(2), v)
		return boom
	})
	s.ErrorIs(err, boom)

	s.Equal(int64(2), s.next("CM:7:1", 0))
}

func (s *PostgresSequencerSuite) TestConcurrentRecordNumbersAreDistinct() {
	cfID := s.caseFile("20240007")
	const workers = 12

	var wg sync.WaitGroup
	numbers := make(chan string, workers)
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.tx.RunInTx(s.ctx, func(ctx context.Context) error {
				n, err := s.gen.RecordNumber(ctx, numbering.KindComplaint, nil, cfID, noActiveRecords{})
				if err != nil {
					return err
				}
				numbers <- n
				return nil
			})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)

	for err := range errs {
		s.Require().NoError(err)
	}
	seen := make(map[string]bool, workers)
	for n := range numbers {
		s.False(seen[n], "duplicate number %s", n)
		seen[n] = true
	}
	s.Len(seen, workers)
	for i := 1; i <= workers; i++ {
		s.True(seen[fmt.Sprintf("UNPRVD_20240007_CM%03d", i)])
	}
}

func (s *PostgresSequencerSuite) TestCaseFileNumberContinuesFromStoredNumbers() {
	s.caseFile("2024-0041")
	s.caseFile("EAO-1")
	s.caseFile("20249223372036854775807")
	s.caseFile("20230099")

	n, err := s.gen.CaseFileNumber(s.ctx, 2024, s.caseFiles)
	s.Require().NoError(err)
	s.Equal("20240042", n)

	n, err = s.gen.CaseFileNumber(s.ctx, 2023, s.caseFiles)
	s.Require().NoError(err)
	s.Equal("20230100", n)
}
