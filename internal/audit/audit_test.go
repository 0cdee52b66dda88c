package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"compliance/pkg/requestcontext"
)

type fakePublisher struct {
	published []Version
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, versions []Version) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, versions...)
	return nil
}

type snapshot struct {
	Number string `json:"number"`
	Status string `json:"status"`
}

type AuditSuite struct {
	suite.Suite
	store *MemoryStore
	ctx   context.Context
}

func TestAuditSuite(t *testing.T) {
	suite.Run(t, new(AuditSuite))
}

func (s *AuditSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.ctx = requestcontext.WithActor(context.Background(), "officer1")
}

func (s *AuditSuite) TestChangedFields() {
	s.Run("insert marks every field", func() {
		s.Equal([]string{"number", "status"}, ChangedFields(nil, snapshot{Number: "1", Status: "Open"}))
	})
	s.Run("update marks differing fields", func() {
		s.Equal([]string{"status"}, ChangedFields(
			snapshot{Number: "1", Status: "Open"},
			snapshot{Number: "1", Status: "Closed"},
		))
	})
}

func (s *AuditSuite) TestRecordIsNilSafe() {
	s.NoError(Record(s.ctx, nil, "case_files", 1, OperationInsert, nil, snapshot{}))
}

func (s *AuditSuite) TestRecordStampsActor() {
	s.Require().NoError(Record(s.ctx, s.store, "case_files", 1, OperationInsert, nil, snapshot{Number: "20240001"}))
	versions := s.store.Versions("case_files", 1)
	s.Require().Len(versions, 1)
	s.Equal("officer1", versions[0].Actor)
	s.Equal(OperationInsert, versions[0].Operation)
	s.JSONEq(`{"number":"20240001","status":""}`, string(versions[0].Snapshot))
}

func (s *AuditSuite) TestWorkerDrainsInBatches() {
	for i := int64(1); i <= 5; i++ {
		s.Require().NoError(Record(s.ctx, s.store, "complaints", i, OperationInsert, nil, snapshot{}))
	}
	pub := &fakePublisher{}
	w := NewWorker(s.store, pub, 0, 2)

	n, err := w.Drain(s.ctx)
	s.Require().NoError(err)
	s.Equal(5, n)
	s.Len(pub.published, 5)

	n, err = w.Drain(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *AuditSuite) TestWorkerLeavesBatchOnPublishFailure() {
	s.Require().NoError(Record(s.ctx, s.store, "complaints", 1, OperationInsert, nil, snapshot{}))
	pub := &fakePublisher{err: errors.New("broker down")}
	w := NewWorker(s.store, pub, 0, 10)

	_, err := w.Drain(s.ctx)
	s.Require().Error(err)

	pending, err := s.store.FetchUnpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Len(pending, 1)
}
