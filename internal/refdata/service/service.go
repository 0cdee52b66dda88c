// Package service manages the reference data shared by the lifecycle
// components: agencies, topics, positions, requirement sources and the
// read-only option lists.
package service

import (
	"context"
	"errors"
	"log/slog"

	"compliance/internal/refdata/models"
	"compliance/pkg/domain"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/sentinel"
	"compliance/pkg/requestcontext"
)

// Store persists reference data. Find methods return sentinel.ErrNotFound for
// missing or deleted rows; creates and updates return sentinel.ErrAlreadyUsed
// when the unique name index rejects the write.
type Store interface {
	ListAgencies(ctx context.Context) ([]*models.Agency, error)
	FindAgency(ctx context.Context, id int64) (*models.Agency, error)
	FindAgencyByName(ctx context.Context, name string) (*models.Agency, error)
	CreateAgency(ctx context.Context, a *models.Agency) error
	UpdateAgency(ctx context.Context, a *models.Agency) error

	ListTopics(ctx context.Context) ([]*models.Topic, error)
	FindTopic(ctx context.Context, id int64) (*models.Topic, error)
	FindTopicByName(ctx context.Context, name string) (*models.Topic, error)
	CreateTopic(ctx context.Context, t *models.Topic) error
	UpdateTopic(ctx context.Context, t *models.Topic) error

	ListPositions(ctx context.Context) ([]*models.Position, error)
	FindPosition(ctx context.Context, id int64) (*models.Position, error)
	ListRequirementSources(ctx context.Context) ([]*models.RequirementSource, error)
	ListOptions(ctx context.Context, kind models.OptionKind) ([]domain.Option, error)

	UpsertPosition(ctx context.Context, p *models.Position) error
	UpsertAgency(ctx context.Context, a *models.Agency) error
	UpsertTopic(ctx context.Context, t *models.Topic) error
	UpsertRequirementSource(ctx context.Context, rs *models.RequirementSource) error
	UpsertOption(ctx context.Context, o models.KindOption) error
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	store  Store
	tx     TxRunner
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, tx TxRunner, opts ...Option) *Service {
	s := &Service{store: store, tx: tx, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ListAgencies(ctx context.Context) ([]*models.Agency, error) {
	out, err := s.store.ListAgencies(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list agencies")
	}
	return out, nil
}

func (s *Service) GetAgency(ctx context.Context, id int64) (*models.Agency, error) {
	a, err := s.store.FindAgency(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "agency not found", "failed to load agency")
	}
	return a, nil
}

func (s *Service) CreateAgency(ctx context.Context, req *models.AgencyRequest) (*models.Agency, error) {
	a := &models.Agency{Name: req.Name, Abbreviation: req.Abbreviation, Audit: domain.NewAudit(ctx)}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.ensureAgencyNameFree(ctx, req.Name, 0); err != nil {
			return err
		}
		if err := s.store.CreateAgency(ctx, a); err != nil {
			return conflictOr(err, "agency with the name "+req.Name+" exists", "failed to create agency")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "agency created",
		"agency_id", a.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return a, nil
}

func (s *Service) UpdateAgency(ctx context.Context, id int64, req *models.AgencyRequest) (*models.Agency, error) {
	var a *models.Agency
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.store.FindAgency(ctx, id)
		if err != nil {
			return notFoundOr(err, "agency not found", "failed to load agency")
		}
		if err := s.ensureAgencyNameFree(ctx, req.Name, id); err != nil {
			return err
		}
		a.Name = req.Name
		a.Abbreviation = req.Abbreviation
		a.Touch(ctx)
		if err := s.store.UpdateAgency(ctx, a); err != nil {
			return conflictOr(err, "agency with the name "+req.Name+" exists", "failed to update agency")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) DeleteAgency(ctx context.Context, id int64) (*models.Agency, error) {
	var a *models.Agency
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.store.FindAgency(ctx, id)
		if err != nil {
			return notFoundOr(err, "agency not found", "failed to load agency")
		}
		a.MarkDeleted(ctx)
		if err := s.store.UpdateAgency(ctx, a); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete agency")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ensureAgencyNameFree(ctx context.Context, name string, selfID int64) error {
	existing, err := s.store.FindAgencyByName(ctx, name)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check agency name")
	}
	if existing.ID != selfID {
		return dErrors.New(dErrors.CodeConflict, "agency with the name "+name+" exists")
	}
	return nil
}

func (s *Service) ListTopics(ctx context.Context) ([]*models.Topic, error) {
	out, err := s.store.ListTopics(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list topics")
	}
	return out, nil
}

func (s *Service) GetTopic(ctx context.Context, id int64) (*models.Topic, error) {
	t, err := s.store.FindTopic(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "topic not found", "failed to load topic")
	}
	return t, nil
}

func (s *Service) CreateTopic(ctx context.Context, req *models.TopicRequest) (*models.Topic, error) {
	t := &models.Topic{Name: req.Name, Audit: domain.NewAudit(ctx)}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.ensureTopicNameFree(ctx, req.Name, 0); err != nil {
			return err
		}
		if err := s.store.CreateTopic(ctx, t); err != nil {
			return conflictOr(err, "topic with the name "+req.Name+" exists", "failed to create topic")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "topic created",
		"topic_id", t.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return t, nil
}

func (s *Service) UpdateTopic(ctx context.Context, id int64, req *models.TopicRequest) (*models.Topic, error) {
	var t *models.Topic
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.store.FindTopic(ctx, id)
		if err != nil {
			return notFoundOr(err, "topic not found", "failed to load topic")
		}
		if err := s.ensureTopicNameFree(ctx, req.Name, id); err != nil {
			return err
		}
		t.Name = req.Name
		t.Touch(ctx)
		if err := s.store.UpdateTopic(ctx, t); err != nil {
			return conflictOr(err, "topic with the name "+req.Name+" exists", "failed to update topic")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) DeleteTopic(ctx context.Context, id int64) (*models.Topic, error) {
	var t *models.Topic
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.store.FindTopic(ctx, id)
		if err != nil {
			return notFoundOr(err, "topic not found", "failed to load topic")
		}
		t.MarkDeleted(ctx)
		if err := s.store.UpdateTopic(ctx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete topic")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) ensureTopicNameFree(ctx context.Context, name string, selfID int64) error {
	existing, err := s.store.FindTopicByName(ctx, name)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check topic name")
	}
	if existing.ID != selfID {
		return dErrors.New(dErrors.CodeConflict, "topic with the name "+name+" exists")
	}
	return nil
}

func (s *Service) ListPositions(ctx context.Context) ([]*models.Position, error) {
	out, err := s.store.ListPositions(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list positions")
	}
	return out, nil
}

func (s *Service) GetPosition(ctx context.Context, id int64) (*models.Position, error) {
	p, err := s.store.FindPosition(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "position not found", "failed to load position")
	}
	return p, nil
}

func (s *Service) ListRequirementSources(ctx context.Context) ([]*models.RequirementSource, error) {
	out, err := s.store.ListRequirementSources(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requirement sources")
	}
	return out, nil
}

// Options returns an option list sorted by sort order.
func (s *Service) Options(ctx context.Context, kind models.OptionKind) ([]domain.Option, error) {
	out, err := s.store.ListOptions(ctx, kind)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list "+string(kind)+" options")
	}
	return out, nil
}

func notFoundOr(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
}

func conflictOr(err error, conflictMsg, internalMsg string) error {
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return dErrors.New(dErrors.CodeConflict, conflictMsg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
}

// PositionExists reports whether a live position has id.
func (s *Service) PositionExists(ctx context.Context, id int64) (bool, error) {
	_, err := s.store.FindPosition(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AgencyName returns the name of a live agency.
func (s *Service) AgencyName(ctx context.Context, id int64) (string, error) {
	a, err := s.store.FindAgency(ctx, id)
	if err != nil {
		return "", notFoundOr(err, "agency not found", "failed to load agency")
	}
	return a.Name, nil
}

// TopicExists reports whether a live topic has id.
func (s *Service) TopicExists(ctx context.Context, id int64) (bool, error) {
	_, err := s.store.FindTopic(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// OptionName returns the display name of one option, or "" when unknown.
func (s *Service) OptionName(ctx context.Context, kind models.OptionKind, id int64) (string, error) {
	opts, err := s.Options(ctx, kind)
	if err != nil {
		return "", err
	}
	for _, o := range opts {
		if o.ID == id {
			return o.Name, nil
		}
	}
	return "", nil
}
