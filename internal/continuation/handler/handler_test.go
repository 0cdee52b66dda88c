package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"compliance/internal/continuation/models"
	"compliance/internal/continuation/service"
	"compliance/internal/continuation/store"
	"compliance/internal/numbering"
	"compliance/internal/platform/authz"
	"compliance/pkg/platform/memtx"
	"compliance/pkg/testutil"
)

type oneCaseFile struct{}

func (oneCaseFile) FindRef(_ context.Context, id int64) (*numbering.CaseFileRef, error) {
	return &numbering.CaseFileRef{ID: id, CaseFileNumber: "20240001"}, nil
}

type HandlerSuite struct {
	suite.Suite
	router func(perms ...authz.Permission) http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(store.NewInMemoryStore(), memtx.NewRunner(), oneCaseFile{}, service.WithLogger(logger))
	h := New(svc, logger)
	s.router = func(perms ...authz.Permission) http.Handler {
		r := chi.NewRouter()
		r.Use(testutil.AsUser("idir/jdoe", perms...))
		h.Register(r)
		return r
	}
}

func entry() map[string]any {
	return map[string]any{
		"case_file_id": 1,
		"text":         "Met proponent about CM001",
		"rich_text":    "<p>Met proponent about CM001</p>",
		"context_type": "COMPLAINT",
		"context_id":   2,
		"keys":         []map[string]any{{"key": "CM001", "key_context": "COMPLAINT"}},
	}
}

func (s *HandlerSuite) TestCreateAndList() {
	rr := testutil.DoRequest(s.router(authz.PermissionUser), testutil.NewJSONRequest(s.T(), http.MethodPost, "/continuation-reports", entry()))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)

	rr = testutil.DoRequest(s.router(authz.PermissionViewer), testutil.NewRequest(s.T(), http.MethodGet, "/continuation-reports?case_file_id=1&context_type=COMPLAINT"))
	testutil.AssertStatusOK(s.T(), rr)
	list := testutil.UnmarshalResponse[[]models.Report](s.T(), rr)
	s.Require().Len(*list, 1)
	s.Equal([]models.Key{{Key: "CM001", KeyContext: models.ContextComplaint}}, (*list)[0].Keys)
}

func (s *HandlerSuite) TestListNeedsCaseFile() {
	rr := testutil.DoRequest(s.router(authz.PermissionViewer), testutil.NewRequest(s.T(), http.MethodGet, "/continuation-reports"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}

func (s *HandlerSuite) TestViewerCannotWrite() {
	rr := testutil.DoRequest(s.router(authz.PermissionViewer), testutil.NewJSONRequest(s.T(), http.MethodPost, "/continuation-reports", entry()))
	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
}

func (s *HandlerSuite) TestCreateRejectsUnknownKeyContext() {
	body := entry()
	body["keys"] = []map[string]any{{"key": "X", "key_context": "MEMO"}}
	rr := testutil.DoRequest(s.router(authz.PermissionSuperuser), testutil.NewJSONRequest(s.T(), http.MethodPost, "/continuation-reports", body))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
}
