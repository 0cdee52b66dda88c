package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"compliance/internal/inspection/handler/mocks"
	"compliance/internal/inspection/models"
	"compliance/internal/platform/authz"
	"compliance/pkg/domain"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	handler *Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.handler = New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *HandlerSuite) router(username string, perms ...authz.Permission) http.Handler {
	r := chi.NewRouter()
	r.Use(testutil.AsUser(username, perms...))
	s.handler.Register(r)
	return r
}

func validCreateBody() map[string]any {
	return map[string]any{
		"case_file_id":        1,
		"project_id":          7,
		"start_date":          "2024-03-12T08:00:00Z",
		"end_date":            "2024-03-12T14:00:00Z",
		"initiation_id":       1,
		"inspection_type_ids": []int64{1},
	}
}

func (s *HandlerSuite) TestCreate() {
	s.service.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, req *models.CreateRequest) (*models.Inspection, error) {
			s.Equal(int64(1), req.CaseFileID)
			s.Equal([]int64{1}, req.InspectionTypeIDs)
			return &models.Inspection{ID: 3, IRNumber: "CGL_20240001_IR001", Status: models.StatusOpen}, nil
		})

	rr := testutil.DoRequest(s.router("idir/jdoe", authz.PermissionUser),
		testutil.NewJSONRequest(s.T(), http.MethodPost, "/inspections", validCreateBody()))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	testutil.AssertJSONContains(s.T(), rr, "ir_number", "CGL_20240001_IR001")
	testutil.AssertJSONContains(s.T(), rr, "inspection_status", "Open")
}

func (s *HandlerSuite) TestCreateRejectsMissingAttendanceDetail() {
	cases := map[string]map[string]any{
		"municipal without text":   {"attendance_option_ids": []int64{models.AttendanceMunicipal}},
		"other without text":       {"attendance_option_ids": []int64{models.AttendanceOther}},
		"agencies without ids":     {"attendance_option_ids": []int64{models.AttendanceAgencies}},
		"first nations with none":  {"attendance_option_ids": []int64{models.AttendanceFirstNations}},
		"officers without ids":     {"attendance_option_ids": []int64{models.AttendanceAttendingOfficers}},
		"end before start":         {"end_date": "2024-03-11T08:00:00Z"},
		"no project and no detail": {"project_id": nil},
	}
	for name, overrides := range cases {
		s.Run(name, func() {
			body := validCreateBody()
			for k, v := range overrides {
				body[k] = v
			}
			rr := testutil.DoRequest(s.router("idir/jdoe", authz.PermissionUser),
				testutil.NewJSONRequest(s.T(), http.MethodPost, "/inspections", body))
			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
		})
	}
}

func (s *HandlerSuite) TestViewerCannotCreate() {
	rr := testutil.DoRequest(s.router("viewer", authz.PermissionViewer),
		testutil.NewJSONRequest(s.T(), http.MethodPost, "/inspections", validCreateBody()))
	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
}

func (s *HandlerSuite) TestUpdateRequiresAssignment() {
	status := map[string]any{"inspection_status": "Closed"}

	s.service.EXPECT().IsAssignedUser(gomock.Any(), int64(3), "aortiz").Return(true, nil)
	s.service.EXPECT().Update(gomock.Any(), int64(3), gomock.Any()).
		Return(&models.Inspection{ID: 3, Status: models.StatusClosed}, nil)
	rr := testutil.DoRequest(s.router("aortiz", authz.PermissionViewer),
		testutil.NewJSONRequest(s.T(), http.MethodPatch, "/inspections/3", status))
	testutil.AssertStatusOK(s.T(), rr)

	s.service.EXPECT().IsAssignedUser(gomock.Any(), int64(3), "stranger").Return(false, nil)
	rr = testutil.DoRequest(s.router("stranger", authz.PermissionUser),
		testutil.NewJSONRequest(s.T(), http.MethodPatch, "/inspections/3", status))
	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
}

func (s *HandlerSuite) TestList() {
	s.service.EXPECT().List(gomock.Any(), models.ListFilter{CaseFileID: domain.Int64(4)}).
		Return([]*models.Inspection{{ID: 1}, {ID: 2}}, nil)

	rr := testutil.DoRequest(s.router("viewer", authz.PermissionViewer),
		testutil.NewRequest(s.T(), http.MethodGet, "/inspections?case_file_id=4"))
	testutil.AssertStatusOK(s.T(), rr)
	s.Len(*testutil.UnmarshalResponse[[]models.Inspection](s.T(), rr), 2)

	rr = testutil.DoRequest(s.router("viewer", authz.PermissionViewer),
		testutil.NewRequest(s.T(), http.MethodGet, "/inspections?case_file_id=abc"))
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *HandlerSuite) TestGetByIRNumberNotFound() {
	s.service.EXPECT().GetByIRNumber(gomock.Any(), "CGL_20240001_IR009").
		Return(nil, dErrors.New(dErrors.CodeNotFound, "inspection with ir number CGL_20240001_IR009 doesn't exist"))

	rr := testutil.DoRequest(s.router("viewer", authz.PermissionViewer),
		testutil.NewRequest(s.T(), http.MethodGet, "/inspections/ir-numbers/CGL_20240001_IR009"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *HandlerSuite) TestAttendances() {
	s.service.EXPECT().AttendanceOptions(gomock.Any(), int64(3)).Return([]models.Attendance{
		{AttendanceOptionID: 3, AttendanceOption: models.Named{ID: 3, Name: "Municipal"}, Data: "City of Terrace"},
	}, nil)

	rr := testutil.DoRequest(s.router("viewer", authz.PermissionViewer),
		testutil.NewRequest(s.T(), http.MethodGet, "/inspections/3/attendances"))
	testutil.AssertStatusOK(s.T(), rr)
	got := *testutil.UnmarshalResponse[[]map[string]any](s.T(), rr)
	s.Require().Len(got, 1)
	s.Equal("City of Terrace", got[0]["data"])
}

func (s *HandlerSuite) TestDeleteIsSuperuserOnly() {
	rr := testutil.DoRequest(s.router("user", authz.PermissionUser),
		testutil.NewRequest(s.T(), http.MethodDelete, "/inspections/3"))
	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)

	s.service.EXPECT().Delete(gomock.Any(), int64(3)).
		Return(&models.Inspection{ID: 3, Audit: domain.Audit{IsDeleted: true}}, nil)
	rr = testutil.DoRequest(s.router("admin", authz.PermissionSuperuser),
		testutil.NewRequest(s.T(), http.MethodDelete, "/inspections/3"))
	testutil.AssertStatusOK(s.T(), rr)
}
