// Package service manages staff users: the local officer records and their
// group membership in the identity service.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"compliance/internal/audit"
	"compliance/internal/identity"
	"compliance/internal/platform/authz"
	"compliance/internal/staff/models"
	"compliance/pkg/domain"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/sentinel"
	"compliance/pkg/requestcontext"
)

const entityName = "staff_users"

// identityFanOut bounds concurrent identity lookups when listing.
const identityFanOut = 8

type Store interface {
	FindByID(ctx context.Context, id int64) (*models.StaffUser, error)
	FindByAuthGUID(ctx context.Context, guid string) (*models.StaffUser, error)
	FindByIDs(ctx context.Context, ids []int64) ([]*models.StaffUser, error)
	List(ctx context.Context) ([]*models.StaffUser, error)
	Create(ctx context.Context, u *models.StaffUser) error
	Update(ctx context.Context, u *models.StaffUser) error
}

// Positions checks that a position exists.
type Positions interface {
	PositionExists(ctx context.Context, id int64) (bool, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	store     Store
	tx        TxRunner
	identity  identity.Service
	positions Positions
	versions  audit.Recorder
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithVersionRecorder(r audit.Recorder) Option {
	return func(s *Service) {
		s.versions = r
	}
}

func New(store Store, tx TxRunner, idp identity.Service, positions Positions, opts ...Option) *Service {
	s := &Service{store: store, tx: tx, identity: idp, positions: positions, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a staff user. The identity-service group update is the last
// step inside the transaction, so its failure rolls back the insert.
func (s *Service) Create(ctx context.Context, req *models.CreateRequest) (*models.StaffUser, error) {
	var u *models.StaffUser
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.ensureGUIDFree(ctx, req.AuthUserGUID, 0); err != nil {
			return err
		}
		idpUser, err := s.lookupIdentity(ctx, req.AuthUserGUID)
		if err != nil {
			return err
		}
		if err := s.checkReferences(ctx, req.PositionID, req.SupervisorID, req.DeputyDirectorID); err != nil {
			return err
		}

		u = &models.StaffUser{
			FirstName:        idpUser.FirstName,
			LastName:         idpUser.LastName,
			PositionID:       req.PositionID,
			DeputyDirectorID: req.DeputyDirectorID,
			SupervisorID:     req.SupervisorID,
			AuthUserGUID:     idpUser.Username,
			Audit:            domain.NewAudit(ctx),
		}
		if err := s.store.Create(ctx, u); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "staff user with the guid "+req.AuthUserGUID+" exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create staff user")
		}
		if err := audit.Record(ctx, s.versions, entityName, u.ID, audit.OperationInsert, nil, u); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record staff user version")
		}
		if err := s.identity.UpdateUserGroup(ctx, req.AuthUserGUID, identity.GroupUpdate{
			AppName:   authz.AppName,
			GroupName: string(req.Permission),
		}); err != nil {
			return s.upstream(err, "failed to update user group")
		}
		u.Permission = req.Permission
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "staff user created",
		"staff_user_id", u.ID,
		"permission", string(u.Permission),
		"request_id", requestcontext.RequestID(ctx),
	)
	return u, nil
}

func (s *Service) Update(ctx context.Context, id int64, req *models.UpdateRequest) (*models.StaffUser, error) {
	var u *models.StaffUser
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.store.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "staff with given id doesn't exist", "failed to load staff user")
		}
		before := *u
		if err := s.ensureGUIDFree(ctx, u.AuthUserGUID, id); err != nil {
			return err
		}
		idpUser, err := s.lookupIdentity(ctx, u.AuthUserGUID)
		if err != nil {
			return err
		}
		if err := s.checkReferences(ctx, req.PositionID, req.SupervisorID, req.DeputyDirectorID); err != nil {
			return err
		}
		if domain.SameID(req.SupervisorID, &u.ID) || domain.SameID(req.DeputyDirectorID, &u.ID) {
			return dErrors.New(dErrors.CodeValidation, "staff user cannot report to themselves")
		}

		u.PositionID = req.PositionID
		u.SupervisorID = req.SupervisorID
		u.DeputyDirectorID = req.DeputyDirectorID
		u.Touch(ctx)
		if err := s.store.Update(ctx, u); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update staff user")
		}
		if err := audit.Record(ctx, s.versions, entityName, u.ID, audit.OperationUpdate, before, u); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record staff user version")
		}

		u.Permission = authz.Permission(idpUser.HighestGroup())
		if req.Permission != "" {
			if err := s.identity.UpdateUserGroup(ctx, u.AuthUserGUID, identity.GroupUpdate{
				AppName:   authz.AppName,
				GroupName: string(req.Permission),
			}); err != nil {
				return s.upstream(err, "failed to update user group")
			}
			u.Permission = req.Permission
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Get returns the staff user with their current permission level.
func (s *Service) Get(ctx context.Context, id int64) (*models.StaffUser, error) {
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "staff with given id doesn't exist", "failed to load staff user")
	}
	idpUser, err := s.identity.GetUserByIdentity(ctx, u.AuthUserGUID)
	if err != nil && !errors.Is(err, identity.ErrUserNotFound) {
		return nil, s.upstream(err, "failed to load user from identity service")
	}
	u.Permission = authz.Permission(idpUser.HighestGroup())
	return u, nil
}

// List returns every live staff user. Permission levels are filled in
// concurrently; a failed lookup leaves that user's permission empty.
func (s *Service) List(ctx context.Context) ([]*models.StaffUser, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list staff users")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(identityFanOut)
	var mu sync.Mutex
	failed := 0
	for _, u := range users {
		g.Go(func() error {
			idpUser, err := s.identity.GetUserByIdentity(gctx, u.AuthUserGUID)
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			u.Permission = authz.Permission(idpUser.HighestGroup())
			return nil
		})
	}
	_ = g.Wait()
	if failed > 0 {
		s.logger.WarnContext(ctx, "permission lookup failed for some staff users",
			"failed", failed,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return users, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (*models.StaffUser, error) {
	var u *models.StaffUser
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.store.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "staff with given id doesn't exist", "failed to load staff user")
		}
		before := *u
		u.MarkDeleted(ctx)
		if err := s.store.Update(ctx, u); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete staff user")
		}
		return audit.Record(ctx, s.versions, entityName, u.ID, audit.OperationDelete, before, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) PermissionLevels() []models.PermissionLevel {
	out := make([]models.PermissionLevel, 0, len(authz.Permissions()))
	for _, p := range authz.Permissions() {
		out = append(out, models.PermissionLevel{ID: p, Name: p.Label()})
	}
	return out
}

// FindByAuthGUID resolves the live staff user behind an identity.
func (s *Service) FindByAuthGUID(ctx context.Context, guid string) (*models.StaffUser, error) {
	return s.store.FindByAuthGUID(ctx, guid)
}

// Summaries returns live officers for ids, in id order. Unknown ids are skipped.
func (s *Service) Summaries(ctx context.Context, ids []int64) ([]models.Summary, error) {
	users, err := s.store.FindByIDs(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load officers")
	}
	out := make([]models.Summary, 0, len(users))
	for _, u := range users {
		out = append(out, u.Summary())
	}
	return out, nil
}

// EnsureExist returns unprocessable_entity naming the first id that is not a
// live staff user.
func (s *Service) EnsureExist(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	users, err := s.store.FindByIDs(ctx, ids)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load officers")
	}
	found := make(map[int64]struct{}, len(users))
	for _, u := range users {
		found[u.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return dErrors.New(dErrors.CodeUnprocessable, fmt.Sprintf("staff user %d doesn't exist", id))
		}
	}
	return nil
}

func (s *Service) ensureGUIDFree(ctx context.Context, guid string, selfID int64) error {
	existing, err := s.store.FindByAuthGUID(ctx, guid)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check staff user")
	}
	if selfID == 0 || existing.ID != selfID {
		return dErrors.New(dErrors.CodeConflict, "staff user with the guid "+guid+" exists")
	}
	return nil
}

func (s *Service) lookupIdentity(ctx context.Context, guid string) (*identity.User, error) {
	u, err := s.identity.GetUserByIdentity(ctx, guid)
	if errors.Is(err, identity.ErrUserNotFound) {
		return nil, dErrors.New(dErrors.CodeUnprocessable, "no user found in the identity service for "+guid)
	}
	if err != nil {
		return nil, s.upstream(err, "failed to load user from identity service")
	}
	return u, nil
}

func (s *Service) checkReferences(ctx context.Context, positionID int64, reports ...*int64) error {
	ok, err := s.positions.PositionExists(ctx, positionID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check position")
	}
	if !ok {
		return dErrors.New(dErrors.CodeUnprocessable, fmt.Sprintf("position %d doesn't exist", positionID))
	}
	var ids []int64
	for _, id := range reports {
		if id != nil {
			ids = append(ids, *id)
		}
	}
	return s.EnsureExist(ctx, ids...)
}

// upstream keeps coded errors from the identity client and wraps anything else.
func (s *Service) upstream(err error, msg string) error {
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeUpstream, msg)
}

func notFoundOr(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
}
