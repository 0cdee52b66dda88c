//go:build integration

package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	cfmodels "compliance/internal/casefile/models"
	cfstore "compliance/internal/casefile/store"
	"compliance/internal/reconcile"
	refmodels "compliance/internal/refdata/models"
	refstore "compliance/internal/refdata/store"
	staffmodels "compliance/internal/staff/models"
	staffstore "compliance/internal/staff/store"
	"compliance/pkg/domain"
	"compliance/pkg/requestcontext"
	"compliance/pkg/testutil/containers"
)

type PostgresFamilySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	family   *reconcile.PostgresFamily
	ctx      context.Context
	caseFile int64
	officers []int64
}

func TestPostgresFamilySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresFamilySuite))
}

func (s *PostgresFamilySuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.family = reconcile.NewPostgresFamily(s.postgres.DB, reconcile.Table{
		Name:         "case_file_officers",
		ParentColumn: "case_file_id",
		RefColumn:    "officer_id",
	})
}

func (s *PostgresFamilySuite) SetupTest() {
	s.ctx = requestcontext.WithTime(
		requestcontext.WithActor(context.Background(), "idir/jdoe"),
		time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC),
	)
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "case_file_officers", "case_files", "staff_users", "positions"))

	s.Require().NoError(refstore.NewPostgres(s.postgres.DB).UpsertPosition(s.ctx, &refmodels.Position{
		ID: 1, Name: "Officer", SortOrder: 1, Audit: domain.NewAudit(s.ctx),
	}))
	staff := staffstore.NewPostgres(s.postgres.DB)
	s.officers = nil
	for _, guid := range []string{"g1", "g2", "g3", "g4"} {
		u := &staffmodels.StaffUser{FirstName: "Pat", LastName: guid, PositionID: 1, AuthUserGUID: guid, Audit: domain.NewAudit(s.ctx)}
		s.Require().NoError(staff.Create(s.ctx, u))
		s.officers = append(s.officers, u.ID)
	}

	cf := &cfmodels.CaseFile{
		CaseFileNumber: "20240001",
		DateCreated:    requestcontext.Now(s.ctx),
		InitiationID:   1,
		Status:         cfmodels.StatusOpen,
		Audit:          domain.NewAudit(s.ctx),
	}
	s.Require().NoError(cfstore.NewPostgres(s.postgres.DB).Create(s.ctx, cf))
	s.caseFile = cf.ID
}

func (s *PostgresFamilySuite) TestDiffWritesOnlyTheChangedRows() {
	o := s.officers
	_, err := reconcile.Reconcile(s.ctx, s.family, s.caseFile, []int64{o[0], o[1], o[2]})
	s.Require().NoError(err)

	res, err := reconcile.Reconcile(s.ctx, s.family, s.caseFile, []int64{o[1], o[2], o[3]})
	s.Require().NoError(err)
	s.Equal([]int64{o[3]}, res.Added)
	s.Equal([]int64{o[0]}, res.Removed)

	active, err := s.family.ActiveKeys(s.ctx, s.caseFile)
	s.Require().NoError(err)
	s.ElementsMatch([]int64{o[1], o[2], o[3]}, active)

	var rows, deleted int
	s.Require().NoError(s.postgres.DB.QueryRowContext(s.ctx, `
		SELECT count(*), count(*) FILTER (WHERE is_deleted AND NOT is_active AND updated_by = 'idir/jdoe')
		FROM case_file_officers WHERE case_file_id = $1`, s.caseFile).Scan(&rows, &deleted))
	s.Equal(4, rows, "kept rows are not rewritten")
	s.Equal(1, deleted)
}

func (s *PostgresFamilySuite) TestSecondCallIsEmpty() {
	desired := []int64{s.officers[0], s.officers[2]}
	_, err := reconcile.Reconcile(s.ctx, s.family, s.caseFile, desired)
	s.Require().NoError(err)

	res, err := reconcile.Reconcile(s.ctx, s.family, s.caseFile, desired)
	s.Require().NoError(err)
	s.True(res.Empty())
}

func (s *PostgresFamilySuite) TestEmptyDesiredDeactivatesAll() {
	_, err := reconcile.Reconcile(s.ctx, s.family, s.caseFile, s.officers)
	s.Require().NoError(err)

	res, err := reconcile.Reconcile(s.ctx, s.family, s.caseFile, nil)
	s.Require().NoError(err)
	s.Len(res.Removed, len(s.officers))

	active, err := s.family.ActiveKeys(s.ctx, s.caseFile)
	s.Require().NoError(err)
	s.Empty(active)
}

func (s *PostgresFamilySuite) TestReaddingARemovedKeyInsertsAFreshRow() {
	o := s.officers
	for _, desired := range [][]int64{{o[0]}, {}, {o[0]}} {
		_, err := reconcile.Reconcile(s.ctx, s.family, s.caseFile, desired)
		s.Require().NoError(err)
	}

	var rows, active int
	s.Require().NoError(s.postgres.DB.QueryRowContext(s.ctx, `
		SELECT count(*), count(*) FILTER (WHERE is_active)
		FROM case_file_officers WHERE case_file_id = $1 AND officer_id = $2`, s.caseFile, o[0]).Scan(&rows, &active))
	s.Equal(2, rows)
	s.Equal(1, active)
}
