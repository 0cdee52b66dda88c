package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/requestcontext"
)

type ClientSuite struct {
	suite.Suite
	server   *httptest.Server
	lastBody GroupUpdate
	ctx      context.Context
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/jdoe", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"first_name":"Jane","last_name":"Doe","username":"jdoe",
			"groups":[{"name":"VIEWER","level":"1"},{"name":"SUPERUSER","level":3},{"name":"USER","level":"2"}]}`))
	})
	mux.HandleFunc("PUT /api/users/jdoe/groups", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&s.lastBody)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("PUT /api/users/broken/groups", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.server = httptest.NewServer(mux)
	s.ctx = requestcontext.WithAccessToken(context.Background(), "tok")
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) TestGetUser() {
	u, err := NewClient(s.server.URL).GetUserByIdentity(s.ctx, "jdoe")
	s.Require().NoError(err)
	s.Equal("Jane", u.FirstName)
	s.Equal("SUPERUSER", u.HighestGroup())
}

func (s *ClientSuite) TestUnknownUser() {
	_, err := NewClient(s.server.URL).GetUserByIdentity(s.ctx, "ghost")
	s.ErrorIs(err, ErrUserNotFound)
}

func (s *ClientSuite) TestUpdateGroup() {
	err := NewClient(s.server.URL).UpdateUserGroup(s.ctx, "jdoe", GroupUpdate{AppName: "COMPLIANCE", GroupName: "USER"})
	s.Require().NoError(err)
	s.Equal("USER", s.lastBody.GroupName)
	s.Equal("COMPLIANCE", s.lastBody.AppName)
}

func (s *ClientSuite) TestUpdateGroupRequiresNoContent() {
	err := NewClient(s.server.URL).UpdateUserGroup(s.ctx, "broken", GroupUpdate{})
	s.True(dErrors.HasCode(err, dErrors.CodeUpstream))
}

func (s *ClientSuite) TestRequiresToken() {
	_, err := NewClient(s.server.URL).GetUserByIdentity(context.Background(), "jdoe")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ClientSuite) TestHighestGroupEmpty() {
	var u *User
	s.Empty(u.HighestGroup())
	s.Empty((&User{}).HighestGroup())
}
