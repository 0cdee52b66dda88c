package registry

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"compliance/internal/platform/authz"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	static := NewStatic()
	static.AddProject(Project{ID: 7, Name: "Coastal Pipeline", Abbreviation: "CGL", EACertificate: "E14-03"})
	static.AddProject(Project{ID: 3, Name: "Brucejack Mine", Abbreviation: "BJM"})
	static.AddFirstNation(FirstNation{ID: 31, Name: "Haisla"})

	r := chi.NewRouter()
	r.Use(testutil.AsUser("viewer", authz.PermissionViewer))
	NewHandler(static, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.router = r
}

func (s *HandlerSuite) TestGetProject() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/projects/7"))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "abbreviation", "CGL")
	testutil.AssertJSONContains(s.T(), rr, "ea_certificate", "E14-03")
}

func (s *HandlerSuite) TestListProjects() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/projects"))
	testutil.AssertStatusOK(s.T(), rr)

	projects := *testutil.UnmarshalResponse[[]Project](s.T(), rr)
	s.Require().Len(projects, 2)
	s.Equal(int64(3), projects[0].ID)
	s.Equal("CGL", projects[1].Abbreviation)
}

func (s *HandlerSuite) TestMissingProjectIsUpstreamError() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/projects/8"))
	testutil.AssertStatusAndError(s.T(), rr, dErrors.ToHTTPStatus(dErrors.CodeUpstream), string(dErrors.CodeUpstream))
}

func (s *HandlerSuite) TestGetFirstNation() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/first-nations/31"))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "name", "Haisla")
}

func (s *HandlerSuite) TestBadID() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/projects/abc"))
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}
