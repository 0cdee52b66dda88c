// Package service keeps the continuation report: the journal of free-text
// entries attached to a case file, each with a reconciled set of link keys.
package service

import (
	"context"
	"errors"
	"html"
	"log/slog"

	"compliance/internal/audit"
	"compliance/internal/continuation/models"
	"compliance/internal/numbering"
	"compliance/internal/platform/metrics"
	"compliance/internal/reconcile"
	"compliance/pkg/domain"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/sentinel"
	"compliance/pkg/requestcontext"
)

const entityName = "continuation_reports"

type Store interface {
	FindByID(ctx context.Context, id int64) (*models.Report, error)
	ListByCaseFile(ctx context.Context, filter models.ListFilter) ([]*models.Report, error)
	Create(ctx context.Context, r *models.Report) error
	Update(ctx context.Context, r *models.Report) error
	// KeysFor returns the active keys of each report.
	KeysFor(ctx context.Context, reportIDs []int64) (map[int64][]models.Key, error)
	// KeyFamily returns the key association table; inserted keys take their
	// context from contexts.
	KeyFamily(contexts map[string]models.ContextType) reconcile.Family[int64, string]
}

// CaseFiles resolves live case files.
type CaseFiles interface {
	FindRef(ctx context.Context, id int64) (*numbering.CaseFileRef, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	store     Store
	tx        TxRunner
	caseFiles CaseFiles
	versions  audit.Recorder
	metrics   *metrics.Metrics
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, tx TxRunner, caseFiles CaseFiles, opts ...Option) *Service {
	s := &Service{store: store, tx: tx, caseFiles: caseFiles, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds a user-authored entry.
func (s *Service) Create(ctx context.Context, req *models.CreateRequest) (*models.Report, error) {
	return s.create(ctx, &models.Report{
		CaseFileID:  req.CaseFileID,
		Text:        req.Text,
		RichText:    req.RichText,
		ContextType: req.ContextType,
		ContextID:   req.ContextID,
	}, req.Keys)
}

// AppendSystemEntry adds an entry on behalf of a lifecycle event. The rich
// text is the plain text wrapped in a paragraph. It joins the caller's
// transaction when there is one.
func (s *Service) AppendSystemEntry(ctx context.Context, e models.SystemEntry) (*models.Report, error) {
	return s.create(ctx, &models.Report{
		CaseFileID:      e.CaseFileID,
		Text:            e.Text,
		RichText:        "<p>" + html.EscapeString(e.Text) + "</p>",
		ContextType:     e.ContextType,
		ContextID:       e.ContextID,
		SystemGenerated: true,
	}, e.Keys)
}

func (s *Service) create(ctx context.Context, r *models.Report, keys []models.Key) (*models.Report, error) {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.caseFiles.FindRef(ctx, r.CaseFileID); err != nil {
			return notFoundOr(err, "given case file doesn't exist", "failed to load case file")
		}
		r.Audit = domain.NewAudit(ctx)
		if err := s.store.Create(ctx, r); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create continuation report entry")
		}
		if err := s.reconcileKeys(ctx, r, keys); err != nil {
			return err
		}
		return audit.Record(ctx, s.versions, entityName, r.ID, audit.OperationInsert, nil, r)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementRecordsCreated("continuation_report")
	s.logger.InfoContext(ctx, "continuation report entry created",
		"report_id", r.ID,
		"case_file_id", r.CaseFileID,
		"context_type", string(r.ContextType),
		"system_generated", r.SystemGenerated,
		"request_id", requestcontext.RequestID(ctx),
	)
	return r, nil
}

func (s *Service) Update(ctx context.Context, id int64, req *models.UpdateRequest) (*models.Report, error) {
	var r *models.Report
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.load(ctx, id)
		if err != nil {
			return err
		}
		before := *r
		if req.Text != nil {
			r.Text = *req.Text
		}
		if req.RichText != nil {
			r.RichText = *req.RichText
		}
		r.Touch(ctx)
		if err := s.store.Update(ctx, r); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update continuation report entry")
		}
		if req.Keys != nil {
			if err := s.reconcileKeys(ctx, r, *req.Keys); err != nil {
				return err
			}
		}
		return audit.Record(ctx, s.versions, entityName, r.ID, audit.OperationUpdate, before, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Report, error) {
	return s.load(ctx, id)
}

// List returns a case file's entries oldest first, with their keys.
func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.Report, error) {
	if filter.ContextType != "" && !filter.ContextType.Valid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown context_type "+string(filter.ContextType))
	}
	reports, err := s.store.ListByCaseFile(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list continuation report")
	}
	ids := make([]int64, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, r.ID)
	}
	keys, err := s.store.KeysFor(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load report keys")
	}
	for _, r := range reports {
		r.Keys = nonNil(keys[r.ID])
	}
	return reports, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (*models.Report, error) {
	var r *models.Report
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.load(ctx, id)
		if err != nil {
			return err
		}
		before := *r
		r.MarkDeleted(ctx)
		if err := s.store.Update(ctx, r); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete continuation report entry")
		}
		return audit.Record(ctx, s.versions, entityName, r.ID, audit.OperationDelete, before, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) load(ctx context.Context, id int64) (*models.Report, error) {
	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "continuation report entry doesn't exist", "failed to load continuation report entry")
	}
	keys, err := s.store.KeysFor(ctx, []int64{id})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load report keys")
	}
	r.Keys = nonNil(keys[id])
	return r, nil
}

// reconcileKeys aligns the entry's active keys with keys, matching by key text.
// A key repeated in the input keeps its last context.
func (s *Service) reconcileKeys(ctx context.Context, r *models.Report, keys []models.Key) error {
	contexts := make(map[string]models.ContextType, len(keys))
	desired := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, seen := contexts[k.Key]; !seen {
			desired = append(desired, k.Key)
		}
		contexts[k.Key] = k.KeyContext
	}

	res, err := reconcile.Reconcile(ctx, s.store.KeyFamily(contexts), r.ID, desired)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reconcile report keys")
	}
	s.metrics.ObserveReconcile(res.Family, len(res.Added), len(res.Removed))

	all, err := s.store.KeysFor(ctx, []int64{r.ID})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load report keys")
	}
	r.Keys = nonNil(all[r.ID])
	return nil
}

func nonNil(keys []models.Key) []models.Key {
	if keys == nil {
		return []models.Key{}
	}
	return keys
}

func notFoundOr(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
}
