// Package service runs the case file lifecycle: numbering, officer
// reconciliation and the system entry written to the continuation report.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"compliance/internal/audit"
	"compliance/internal/casefile/models"
	crmodels "compliance/internal/continuation/models"
	"compliance/internal/numbering"
	"compliance/internal/platform/metrics"
	"compliance/internal/reconcile"
	refmodels "compliance/internal/refdata/models"
	"compliance/internal/registry"
	staffmodels "compliance/internal/staff/models"
	"compliance/pkg/domain"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/sentinel"
	"compliance/pkg/requestcontext"
)

const (
	entityName = "case_files"
	kindName   = "case_file"
)

type Store interface {
	FindByID(ctx context.Context, id int64) (*models.CaseFile, error)
	// FindAnyByID also returns soft-deleted case files.
	FindAnyByID(ctx context.Context, id int64) (*models.CaseFile, error)
	FindByNumber(ctx context.Context, number string) (*models.CaseFile, error)
	List(ctx context.Context, projectID *int64) ([]*models.CaseFile, error)
	Create(ctx context.Context, cf *models.CaseFile) error
	Update(ctx context.Context, cf *models.CaseFile) error
	Officers() reconcile.Family[int64, int64]
	numbering.YearScanner
}

// Staff resolves officers.
type Staff interface {
	Summaries(ctx context.Context, ids []int64) ([]staffmodels.Summary, error)
	EnsureExist(ctx context.Context, ids ...int64) error
	FindByAuthGUID(ctx context.Context, guid string) (*staffmodels.StaffUser, error)
}

// Options resolves option list entries.
type Options interface {
	OptionName(ctx context.Context, kind refmodels.OptionKind, id int64) (string, error)
}

// Journal writes system entries to the continuation report.
type Journal interface {
	AppendSystemEntry(ctx context.Context, e crmodels.SystemEntry) (*crmodels.Report, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	store         Store
	tx            TxRunner
	numbers       *numbering.Generator
	staff         Staff
	options       Options
	projects      registry.Registry
	journal       Journal
	versions      audit.Recorder
	metrics       *metrics.Metrics
	retryAttempts int
	logger        *slog.Logger
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithJournal(j Journal) Option {
	return func(s *Service) {
		s.journal = j
	}
}

// WithNumberRetryAttempts bounds how often a create is retried after a
// generated number collides with a concurrent create.
func WithNumberRetryAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.retryAttempts = n
		}
	}
}

func New(store Store, tx TxRunner, numbers *numbering.Generator, staff Staff, options Options, projects registry.Registry, opts ...Option) *Service {
	s := &Service{
		store:         store,
		tx:            tx,
		numbers:       numbers,
		staff:         staff,
		options:       options,
		projects:      projects,
		retryAttempts: 3,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var errNumberTaken = errors.New("case file number taken")

// Create inserts a case file with status Open and attaches its officers. A
// generated number that loses a race is regenerated; a caller-given number
// that is already used is a conflict.
func (s *Service) Create(ctx context.Context, req *models.CreateRequest) (*models.CaseFile, error) {
	var (
		cf  *models.CaseFile
		err error
	)
	for attempt := 1; ; attempt++ {
		cf, err = s.createOnce(ctx, req)
		if !errors.Is(err, errNumberTaken) || req.CaseFileNumber != "" || attempt >= s.retryAttempts {
			break
		}
		s.metrics.IncrementNumberRetries(kindName)
		s.logger.WarnContext(ctx, "case file number collided, retrying",
			"attempt", attempt,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementRecordsCreated(kindName)
	s.logger.InfoContext(ctx, "case file created",
		"case_file_id", cf.ID,
		"case_file_number", cf.CaseFileNumber,
		"request_id", requestcontext.RequestID(ctx),
	)
	return cf, nil
}

func (s *Service) createOnce(ctx context.Context, req *models.CreateRequest) (*models.CaseFile, error) {
	var cf *models.CaseFile
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.checkReferences(ctx, req.ProjectID, &req.InitiationID, req.LeadOfficerID, req.OfficerIDs); err != nil {
			return err
		}

		number := req.CaseFileNumber
		if number == "" {
			var err error
			number, err = s.numbers.CaseFileNumber(ctx, requestcontext.Now(ctx).Year(), s.store)
			if err != nil {
				return err
			}
		} else if err := s.ensureNumberFree(ctx, number); err != nil {
			return err
		}

		created := req.DateCreated
		if created.IsZero() {
			created = requestcontext.Now(ctx)
		}
		cf = &models.CaseFile{
			CaseFileNumber: number,
			ProjectID:      req.ProjectID,
			DateCreated:    created,
			LeadOfficerID:  req.LeadOfficerID,
			InitiationID:   req.InitiationID,
			Status:         models.StatusOpen,
			Audit:          domain.NewAudit(ctx),
		}
		if err := s.store.Create(ctx, cf); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.Wrap(errNumberTaken, dErrors.CodeConflict, "case file with the number "+number+" exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create case file")
		}
		if err := s.reconcileOfficers(ctx, cf.ID, req.OfficerIDs); err != nil {
			return err
		}
		if err := audit.Record(ctx, s.versions, entityName, cf.ID, audit.OperationInsert, nil, cf); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record case file version")
		}
		return s.appendEntry(ctx, cf)
	})
	if err != nil {
		return nil, err
	}
	return cf, nil
}

// Update patches a case file and re-reconciles its officers when officer_ids
// is given. The case file number cannot change.
func (s *Service) Update(ctx context.Context, id int64, req *models.UpdateRequest) (*models.CaseFile, error) {
	var cf *models.CaseFile
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cf, err = s.store.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "case file doesn't exist", "failed to load case file")
		}
		before := *cf

		if req.CaseFileNumber != nil && *req.CaseFileNumber != cf.CaseFileNumber {
			return dErrors.New(dErrors.CodeValidation, "case_file_number cannot be changed")
		}
		var officers []int64
		if req.OfficerIDs != nil {
			officers = *req.OfficerIDs
		}
		if err := s.checkReferences(ctx, req.ProjectID, req.InitiationID, req.LeadOfficerID, officers); err != nil {
			return err
		}

		if req.ProjectID != nil {
			cf.ProjectID = req.ProjectID
		}
		if req.DateCreated != nil {
			cf.DateCreated = *req.DateCreated
		}
		if req.LeadOfficerID != nil {
			cf.LeadOfficerID = req.LeadOfficerID
		}
		if req.InitiationID != nil {
			cf.InitiationID = *req.InitiationID
		}
		if req.CaseFileStatus != nil {
			cf.Status = *req.CaseFileStatus
		}
		cf.Touch(ctx)
		if err := s.store.Update(ctx, cf); err != nil {
			return notFoundOr(err, "case file doesn't exist", "failed to update case file")
		}
		if req.OfficerIDs != nil {
			if err := s.reconcileOfficers(ctx, cf.ID, *req.OfficerIDs); err != nil {
				return err
			}
		}
		return audit.Record(ctx, s.versions, entityName, cf.ID, audit.OperationUpdate, before, cf)
	})
	if err != nil {
		return nil, err
	}
	return cf, nil
}

// Get returns the case file with its lead officer and registry project.
func (s *Service) Get(ctx context.Context, id int64) (*models.CaseFile, error) {
	cf, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "case file doesn't exist", "failed to load case file")
	}
	return s.expand(ctx, cf)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*models.CaseFile, error) {
	cf, err := s.store.FindByNumber(ctx, number)
	if err != nil {
		return nil, notFoundOr(err, "case file with number "+number+" doesn't exist", "failed to load case file")
	}
	return s.expand(ctx, cf)
}

// List returns live case files, optionally only those of one project.
func (s *Service) List(ctx context.Context, projectID *int64) ([]*models.CaseFile, error) {
	files, err := s.store.List(ctx, projectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list case files")
	}
	return files, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (*models.CaseFile, error) {
	var cf *models.CaseFile
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cf, err = s.store.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "case file doesn't exist", "failed to load case file")
		}
		before := *cf
		cf.MarkDeleted(ctx)
		if err := s.store.Update(ctx, cf); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete case file")
		}
		return audit.Record(ctx, s.versions, entityName, cf.ID, audit.OperationDelete, before, cf)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "case file deleted",
		"case_file_id", id,
		"request_id", requestcontext.RequestID(ctx),
	)
	return cf, nil
}

// Officers returns the active officers of a case file.
func (s *Service) Officers(ctx context.Context, id int64) ([]staffmodels.Summary, error) {
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return nil, notFoundOr(err, "case file doesn't exist", "failed to load case file")
	}
	ids, err := s.store.Officers().ActiveKeys(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load case file officers")
	}
	if len(ids) == 0 {
		return []staffmodels.Summary{}, nil
	}
	return s.staff.Summaries(ctx, ids)
}

// IsAssignedUser reports whether the staff user behind authUserGUID leads the
// case file or is one of its active officers.
func (s *Service) IsAssignedUser(ctx context.Context, id int64, authUserGUID string) (bool, error) {
	cf, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	user, err := s.staff.FindByAuthGUID(ctx, authUserGUID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if domain.SameID(cf.LeadOfficerID, &user.ID) {
		return true, nil
	}
	officers, err := s.store.Officers().ActiveKeys(ctx, id)
	if err != nil {
		return false, err
	}
	for _, o := range officers {
		if o == user.ID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) expand(ctx context.Context, cf *models.CaseFile) (*models.CaseFile, error) {
	if cf.LeadOfficerID != nil {
		lead, err := s.staff.Summaries(ctx, []int64{*cf.LeadOfficerID})
		if err != nil {
			return nil, err
		}
		if len(lead) == 1 {
			cf.LeadOfficer = &lead[0]
		}
	}
	if cf.ProjectID != nil {
		project, err := s.projects.GetProject(ctx, *cf.ProjectID)
		if err != nil {
			return nil, err
		}
		cf.Project = project
	}
	return cf, nil
}

func (s *Service) checkReferences(ctx context.Context, projectID, initiationID, leadOfficerID *int64, officerIDs []int64) error {
	if projectID != nil {
		if _, err := s.projects.GetProject(ctx, *projectID); err != nil {
			return err
		}
	}
	if initiationID != nil {
		name, err := s.options.OptionName(ctx, refmodels.OptionCaseFileInitiation, *initiationID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load initiation options")
		}
		if name == "" {
			return dErrors.New(dErrors.CodeUnprocessable, fmt.Sprintf("initiation %d doesn't exist", *initiationID))
		}
	}
	ids := append([]int64{}, officerIDs...)
	if leadOfficerID != nil {
		ids = append(ids, *leadOfficerID)
	}
	return s.staff.EnsureExist(ctx, ids...)
}

func (s *Service) ensureNumberFree(ctx context.Context, number string) error {
	_, err := s.store.FindByNumber(ctx, number)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check case file number")
	}
	return dErrors.Wrap(errNumberTaken, dErrors.CodeConflict, "case file with the number "+number+" exists")
}

func (s *Service) reconcileOfficers(ctx context.Context, id int64, officerIDs []int64) error {
	res, err := reconcile.Reconcile(ctx, s.store.Officers(), id, officerIDs)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reconcile case file officers")
	}
	s.metrics.ObserveReconcile(res.Family, len(res.Added), len(res.Removed))
	return nil
}

func (s *Service) appendEntry(ctx context.Context, cf *models.CaseFile) error {
	if s.journal == nil {
		return nil
	}
	_, err := s.journal.AppendSystemEntry(ctx, crmodels.SystemEntry{
		CaseFileID:  cf.ID,
		Text:        "Case File " + cf.CaseFileNumber + " created",
		ContextType: crmodels.ContextCaseFile,
		ContextID:   cf.ID,
		Keys:        []crmodels.Key{{Key: cf.CaseFileNumber, KeyContext: crmodels.ContextCaseFile}},
	})
	return err
}

func notFoundOr(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
}
