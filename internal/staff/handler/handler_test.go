package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"compliance/internal/identity"
	"compliance/internal/platform/authz"
	"compliance/internal/staff/models"
	"compliance/internal/staff/service"
	"compliance/internal/staff/store"
	"compliance/pkg/platform/memtx"
	"compliance/pkg/testutil"
)

type anyPosition struct{}

func (anyPosition) PositionExists(context.Context, int64) (bool, error) { return true, nil }

type HandlerSuite struct {
	suite.Suite
	idp    *identity.Static
	router func(perms ...authz.Permission) http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.idp = identity.NewStatic(identity.User{FirstName: "Jane", LastName: "Doe", Username: "jdoe"})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(store.NewInMemoryStore(), memtx.NewRunner(), s.idp, anyPosition{}, service.WithLogger(logger))
	h := New(svc, logger)
	s.router = func(perms ...authz.Permission) http.Handler {
		r := chi.NewRouter()
		r.Use(testutil.AsUser("idir/admin", perms...))
		h.Register(r)
		return r
	}
}

func (s *HandlerSuite) TestCreateThenGet() {
	body := map[string]any{"auth_user_guid": "jdoe", "position_id": 1, "permission": "USER"}
	rr := testutil.DoRequest(s.router(authz.PermissionSuperuser), testutil.NewJSONRequest(s.T(), http.MethodPost, "/staff-users", body))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	s.Equal([]identity.GroupUpdate{{AppName: "COMPLIANCE", GroupName: "USER"}}, s.idp.Updates())

	rr = testutil.DoRequest(s.router(authz.PermissionViewer), testutil.NewRequest(s.T(), http.MethodGet, "/staff-users/1"))
	testutil.AssertStatusOK(s.T(), rr)
	got := testutil.UnmarshalResponse[models.StaffUser](s.T(), rr)
	s.Equal("Jane", got.FirstName)
	s.Equal(authz.PermissionUser, got.Permission)
}

func (s *HandlerSuite) TestCreateValidation() {
	body := map[string]any{"auth_user_guid": "jdoe", "position_id": 1, "permission": "ADMIN"}
	rr := testutil.DoRequest(s.router(authz.PermissionSuperuser), testutil.NewJSONRequest(s.T(), http.MethodPost, "/staff-users", body))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
}

func (s *HandlerSuite) TestCreateUnknownIdentity() {
	body := map[string]any{"auth_user_guid": "nobody", "position_id": 1, "permission": "USER"}
	rr := testutil.DoRequest(s.router(authz.PermissionSuperuser), testutil.NewJSONRequest(s.T(), http.MethodPost, "/staff-users", body))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "unprocessable_entity")
}

func (s *HandlerSuite) TestWritesNeedSuperuser() {
	body := map[string]any{"auth_user_guid": "jdoe", "position_id": 1, "permission": "USER"}
	rr := testutil.DoRequest(s.router(authz.PermissionUser), testutil.NewJSONRequest(s.T(), http.MethodPost, "/staff-users", body))
	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
}

func (s *HandlerSuite) TestPermissions() {
	rr := testutil.DoRequest(s.router(authz.PermissionViewer), testutil.NewRequest(s.T(), http.MethodGet, "/staff-users/permissions"))
	testutil.AssertStatusOK(s.T(), rr)
	levels := testutil.UnmarshalResponse[[]models.PermissionLevel](s.T(), rr)
	s.Len(*levels, 3)
}
