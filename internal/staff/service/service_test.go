package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"compliance/internal/audit"
	"compliance/internal/identity"
	idmocks "compliance/internal/identity/mocks"
	"compliance/internal/platform/authz"
	"compliance/internal/staff/models"
	"compliance/internal/staff/store"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/memtx"
	"compliance/pkg/requestcontext"
)

type positionSet map[int64]bool

func (p positionSet) PositionExists(_ context.Context, id int64) (bool, error) {
	return p[id], nil
}

type StaffSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	idp      *idmocks.MockService
	store    *store.InMemoryStore
	versions *audit.MemoryStore
	service  *Service
	ctx      context.Context
}

func TestStaffSuite(t *testing.T) {
	suite.Run(t, new(StaffSuite))
}

func (s *StaffSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.idp = idmocks.NewMockService(s.ctrl)
	s.store = store.NewInMemoryStore()
	s.versions = audit.NewMemoryStore()
	s.service = New(s.store, memtx.NewRunner(), s.idp, positionSet{1: true},
		WithVersionRecorder(s.versions))
	s.ctx = requestcontext.WithActor(context.Background(), "idir/admin")
}

func (s *StaffSuite) TearDownTest() {
	s.ctrl.Finish()
}

func jane() *identity.User {
	return &identity.User{FirstName: "Jane", LastName: "Doe", Username: "jdoe@idir", Groups: []identity.Group{{Name: "VIEWER", Level: 1}}}
}

func (s *StaffSuite) create() *models.StaffUser {
	s.idp.EXPECT().GetUserByIdentity(gomock.Any(), "jdoe@idir").Return(jane(), nil)
	s.idp.EXPECT().UpdateUserGroup(gomock.Any(), "jdoe@idir", identity.GroupUpdate{AppName: "COMPLIANCE", GroupName: "USER"}).Return(nil)
	u, err := s.service.Create(s.ctx, &models.CreateRequest{AuthUserGUID: "jdoe@idir", PositionID: 1, Permission: authz.PermissionUser})
	s.Require().NoError(err)
	return u
}

func (s *StaffSuite) TestCreate() {
	u := s.create()
	s.Equal("Jane", u.FirstName)
	s.Equal("Jane Doe", u.FullName())
	s.Equal(authz.PermissionUser, u.Permission)
	s.Len(s.versions.Versions(entityName, u.ID), 1)
}

func (s *StaffSuite) TestCreateDuplicateGUID() {
	s.create()
	_, err := s.service.Create(s.ctx, &models.CreateRequest{AuthUserGUID: "jdoe@idir", PositionID: 1, Permission: authz.PermissionUser})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *StaffSuite) TestCreateUnknownIdentity() {
	s.idp.EXPECT().GetUserByIdentity(gomock.Any(), "ghost").Return(nil, identity.ErrUserNotFound)
	_, err := s.service.Create(s.ctx, &models.CreateRequest{AuthUserGUID: "ghost", PositionID: 1, Permission: authz.PermissionUser})
	s.True(dErrors.HasCode(err, dErrors.CodeUnprocessable))
}

func (s *StaffSuite) TestCreateUnknownPosition() {
	s.idp.EXPECT().GetUserByIdentity(gomock.Any(), "jdoe@idir").Return(jane(), nil)
	_, err := s.service.Create(s.ctx, &models.CreateRequest{AuthUserGUID: "jdoe@idir", PositionID: 9, Permission: authz.PermissionUser})
	s.True(dErrors.HasCode(err, dErrors.CodeUnprocessable))
}

func (s *StaffSuite) TestFailedGroupUpdateRollsBackInsert() {
	s.idp.EXPECT().GetUserByIdentity(gomock.Any(), "jdoe@idir").Return(jane(), nil)
	s.idp.EXPECT().UpdateUserGroup(gomock.Any(), "jdoe@idir", gomock.Any()).
		Return(dErrors.New(dErrors.CodeUpstream, "identity_service update_group failed with status 500"))

	_, err := s.service.Create(s.ctx, &models.CreateRequest{AuthUserGUID: "jdoe@idir", PositionID: 1, Permission: authz.PermissionUser})
	s.True(dErrors.HasCode(err, dErrors.CodeUpstream))

	users, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Empty(users)
	s.Empty(s.versions.Versions(entityName, 1))
}

func (s *StaffSuite) TestUpdateChangesPermissionAndReportingLine() {
	boss := s.create()

	s.idp.EXPECT().GetUserByIdentity(gomock.Any(), "kim@idir").Return(&identity.User{FirstName: "Kim", LastName: "Lee", Username: "kim@idir"}, nil)
	s.idp.EXPECT().UpdateUserGroup(gomock.Any(), "kim@idir", gomock.Any()).Return(nil)
	kim, err := s.service.Create(s.ctx, &models.CreateRequest{AuthUserGUID: "kim@idir", PositionID: 1, Permission: authz.PermissionViewer})
	s.Require().NoError(err)

	s.idp.EXPECT().GetUserByIdentity(gomock.Any(), "kim@idir").Return(&identity.User{Username: "kim@idir"}, nil)
	s.idp.EXPECT().UpdateUserGroup(gomock.Any(), "kim@idir", identity.GroupUpdate{AppName: "COMPLIANCE", GroupName: "SUPERUSER"}).Return(nil)
	updated, err := s.service.Update(s.ctx, kim.ID, &models.UpdateRequest{PositionID: 1, SupervisorID: &boss.ID, Permission: authz.PermissionSuperuser})
	s.Require().NoError(err)
	s.Equal(boss.ID, *updated.SupervisorID)
	s.Equal(authz.PermissionSuperuser, updated.Permission)
	s.Len(s.versions.Versions(entityName, kim.ID), 2)
}

func (s *StaffSuite) TestUpdateMissing() {
	_, err := s.service.Update(s.ctx, 42, &models.UpdateRequest{PositionID: 1})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *StaffSuite) TestGetUsesHighestGroup() {
	u := s.create()
	s.idp.EXPECT().GetUserByIdentity(gomock.Any(), "jdoe@idir").Return(&identity.User{
		Username: "jdoe@idir",
		Groups:   []identity.Group{{Name: "SUPERUSER", Level: 3}, {Name: "VIEWER", Level: 1}},
	}, nil)
	got, err := s.service.Get(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(authz.PermissionSuperuser, got.Permission)
}

func (s *StaffSuite) TestListToleratesIdentityFailure() {
	s.create()
	s.idp.EXPECT().GetUserByIdentity(gomock.Any(), "jdoe@idir").Return(nil, errors.New("connection refused"))
	users, err := s.service.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(users, 1)
	s.Empty(users[0].Permission)
}

func (s *StaffSuite) TestDeleteAndEnsureExist() {
	u := s.create()
	s.NoError(s.service.EnsureExist(s.ctx, u.ID))

	_, err := s.service.Delete(s.ctx, u.ID)
	s.Require().NoError(err)
	err = s.service.EnsureExist(s.ctx, u.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeUnprocessable))

	_, err = s.service.Delete(s.ctx, u.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *StaffSuite) TestPermissionLevels() {
	levels := s.service.PermissionLevels()
	s.Require().Len(levels, 3)
	s.Equal(authz.PermissionSuperuser, levels[0].ID)
	s.Equal("Superuser", levels[0].Name)
}
