// Package service runs the complaint lifecycle. The source contact is sealed
// before it reaches the store, and the requirement detail is written as a
// tagged union keyed by the requirement source.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"compliance/internal/audit"
	"compliance/internal/complaint/models"
	crmodels "compliance/internal/continuation/models"
	"compliance/internal/numbering"
	"compliance/internal/platform/metrics"
	refmodels "compliance/internal/refdata/models"
	"compliance/internal/registry"
	staffmodels "compliance/internal/staff/models"
	"compliance/pkg/domain"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/sentinel"
	"compliance/pkg/requestcontext"
)

const (
	entityName = "complaints"
	kindName   = "complaint"
)

type Store interface {
	FindByID(ctx context.Context, id int64) (*models.Complaint, error)
	FindByNumber(ctx context.Context, number string) (*models.Complaint, error)
	List(ctx context.Context, f models.ListFilter) ([]*models.Complaint, error)
	Create(ctx context.Context, c *models.Complaint) error
	Update(ctx context.Context, c *models.Complaint) error
	FindUnapprovedProject(ctx context.Context, complaintID int64) (*models.UnapprovedProject, error)
	CreateUnapprovedProject(ctx context.Context, p *models.UnapprovedProject) error
	FindContact(ctx context.Context, complaintID int64) (*models.ContactRow, error)
	CreateContact(ctx context.Context, c *models.ContactRow) error
	CreateRequirement(ctx context.Context, d *models.RequirementDetail) error
	FindRequirement(ctx context.Context, complaintID int64) (*models.RequirementDetail, error)
	numbering.RecordCounter
}

type Staff interface {
	Summaries(ctx context.Context, ids []int64) ([]staffmodels.Summary, error)
	EnsureExist(ctx context.Context, ids ...int64) error
	FindByAuthGUID(ctx context.Context, guid string) (*staffmodels.StaffUser, error)
}

type Refdata interface {
	OptionName(ctx context.Context, kind refmodels.OptionKind, id int64) (string, error)
	AgencyName(ctx context.Context, id int64) (string, error)
	TopicExists(ctx context.Context, id int64) (bool, error)
	ListRequirementSources(ctx context.Context) ([]*refmodels.RequirementSource, error)
}

// Sealer encrypts contact columns at rest.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

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
	caseFiles     numbering.CaseFiles
	staff         Staff
	refdata       Refdata
	projects      registry.Registry
	sealer        Sealer
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

func WithNumberRetryAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.retryAttempts = n
		}
	}
}

func New(store Store, tx TxRunner, numbers *numbering.Generator, caseFiles numbering.CaseFiles, staff Staff, refdata Refdata, projects registry.Registry, sealer Sealer, opts ...Option) *Service {
	s := &Service{
		store:         store,
		tx:            tx,
		numbers:       numbers,
		caseFiles:     caseFiles,
		staff:         staff,
		refdata:       refdata,
		projects:      projects,
		sealer:        sealer,
		retryAttempts: 3,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var errNumberTaken = errors.New("complaint number taken")

// Create inserts an Open complaint with its contact, unapproved project and
// requirement detail rows, then journals it.
func (s *Service) Create(ctx context.Context, req *models.CreateRequest) (*models.Complaint, error) {
	var (
		c   *models.Complaint
		err error
	)
	for attempt := 1; ; attempt++ {
		c, err = s.createOnce(ctx, req)
		if !errors.Is(err, errNumberTaken) || attempt >= s.retryAttempts {
			break
		}
		s.metrics.IncrementNumberRetries(kindName)
		s.logger.WarnContext(ctx, "complaint number collided, retrying",
			"attempt", attempt,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementRecordsCreated(kindName)
	s.logger.InfoContext(ctx, "complaint created",
		"complaint_id", c.ID,
		"complaint_number", c.ComplaintNumber,
		"request_id", requestcontext.RequestID(ctx),
	)
	return c, nil
}

func (s *Service) createOnce(ctx context.Context, req *models.CreateRequest) (*models.Complaint, error) {
	var c *models.Complaint
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.checkReferences(ctx, req); err != nil {
			return err
		}
		number, err := s.numbers.RecordNumber(ctx, numbering.KindComplaint, req.ProjectID, req.CaseFileID, s.store)
		if err != nil {
			return err
		}

		c = &models.Complaint{
			ComplaintNumber:     number,
			CaseFileID:          req.CaseFileID,
			ProjectID:           req.ProjectID,
			ProjectDescription:  req.ProjectDescription,
			ConcernDescription:  req.ConcernDescription,
			LocationDescription: req.LocationDescription,
			LeadOfficerID:       req.LeadOfficerID,
			DateReceived:        req.DateReceived,
			RequirementSourceID: req.RequirementSourceID,
			SourceTypeID:        req.SourceTypeID,
			SourceAgencyID:      req.SourceAgencyID,
			SourceFirstNationID: req.SourceFirstNationID,
			Status:              models.StatusOpen,
			Audit:               domain.NewAudit(ctx),
		}
		if err := s.store.Create(ctx, c); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.Wrap(errNumberTaken, dErrors.CodeConflict, "complaint with the number "+number+" exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create complaint")
		}

		if req.ProjectID == nil {
			p := &models.UnapprovedProject{
				ComplaintID:    c.ID,
				Name:           models.UnapprovedProjectName,
				Description:    req.ProjectDescription,
				Authorization:  req.UnapprovedProjectAuthorization,
				Type:           req.UnapprovedProjectType,
				SubType:        req.UnapprovedProjectSubType,
				RegulatedParty: req.UnapprovedProjectRegulatedParty,
				Audit:          domain.NewAudit(ctx),
			}
			if err := s.store.CreateUnapprovedProject(ctx, p); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save unapproved project")
			}
		}

		sealed, err := s.seal(req.SourceContact)
		if err != nil {
			return err
		}
		contact := &models.ContactRow{ComplaintID: c.ID, Contact: sealed, Audit: domain.NewAudit(ctx)}
		if err := s.store.CreateContact(ctx, contact); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save source contact")
		}

		if req.RequirementSourceID != nil {
			in := req.RequirementDetails
			d := &models.RequirementDetail{
				ComplaintID:         c.ID,
				RequirementSourceID: *req.RequirementSourceID,
				TopicID:             in.TopicID,
				Description:         in.Description,
				Variant:             models.VariantFor(*req.RequirementSourceID, in),
				Audit:               domain.NewAudit(ctx),
			}
			if err := s.store.CreateRequirement(ctx, d); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save requirement detail")
			}
		}

		if err := audit.Record(ctx, s.versions, entityName, c.ID, audit.OperationInsert, nil, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record complaint version")
		}
		return s.appendEntry(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Update(ctx context.Context, id int64, req *models.UpdateRequest) (*models.Complaint, error) {
	var c *models.Complaint
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.store.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "complaint doesn't exist", "failed to load complaint")
		}
		before := *c
		if req.LeadOfficerID != nil {
			if err := s.staff.EnsureExist(ctx, *req.LeadOfficerID); err != nil {
				return err
			}
			c.LeadOfficerID = req.LeadOfficerID
		}
		if req.ConcernDescription != nil {
			c.ConcernDescription = *req.ConcernDescription
		}
		if req.LocationDescription != nil {
			c.LocationDescription = *req.LocationDescription
		}
		if req.Status != nil {
			c.Status = *req.Status
		}
		c.Touch(ctx)
		if err := s.store.Update(ctx, c); err != nil {
			return notFoundOr(err, "complaint doesn't exist", "failed to update complaint")
		}
		return audit.Record(ctx, s.versions, entityName, c.ID, audit.OperationUpdate, before, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the complaint with its contact opened and its requirement detail.
func (s *Service) Get(ctx context.Context, id int64) (*models.Complaint, error) {
	c, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "complaint doesn't exist", "failed to load complaint")
	}
	return s.expand(ctx, c)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*models.Complaint, error) {
	c, err := s.store.FindByNumber(ctx, number)
	if err != nil {
		return nil, notFoundOr(err, "complaint with number "+number+" doesn't exist", "failed to load complaint")
	}
	return s.expand(ctx, c)
}

func (s *Service) List(ctx context.Context, f models.ListFilter) ([]*models.Complaint, error) {
	list, err := s.store.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list complaints")
	}
	return list, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (*models.Complaint, error) {
	var c *models.Complaint
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.store.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "complaint doesn't exist", "failed to load complaint")
		}
		before := *c
		c.MarkDeleted(ctx)
		if err := s.store.Update(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete complaint")
		}
		return audit.Record(ctx, s.versions, entityName, c.ID, audit.OperationDelete, before, c)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "complaint deleted",
		"complaint_id", id,
		"request_id", requestcontext.RequestID(ctx),
	)
	return c, nil
}

// IsAssignedUser reports whether the staff user behind authUserGUID is the
// complaint's primary officer.
func (s *Service) IsAssignedUser(ctx context.Context, id int64, authUserGUID string) (bool, error) {
	c, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if c.LeadOfficerID == nil {
		return false, nil
	}
	user, err := s.staff.FindByAuthGUID(ctx, authUserGUID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return *c.LeadOfficerID == user.ID, nil
}

func (s *Service) checkReferences(ctx context.Context, req *models.CreateRequest) error {
	name, err := s.refdata.OptionName(ctx, refmodels.OptionComplaintSource, req.SourceTypeID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load complaint sources")
	}
	if name == "" {
		return dErrors.New(dErrors.CodeUnprocessable, fmt.Sprintf("complaint source %d doesn't exist", req.SourceTypeID))
	}
	if req.SourceAgencyID != nil {
		if _, err := s.refdata.AgencyName(ctx, *req.SourceAgencyID); err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return dErrors.New(dErrors.CodeUnprocessable, fmt.Sprintf("agency %d doesn't exist", *req.SourceAgencyID))
			}
			return err
		}
	}
	if req.SourceFirstNationID != nil {
		if _, err := s.projects.GetFirstNation(ctx, *req.SourceFirstNationID); err != nil {
			return err
		}
	}
	if req.RequirementSourceID != nil {
		if err := s.checkRequirementSource(ctx, *req.RequirementSourceID); err != nil {
			return err
		}
		if topic := req.RequirementDetails.TopicID; topic != nil {
			ok, err := s.refdata.TopicExists(ctx, *topic)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load topic")
			}
			if !ok {
				return dErrors.New(dErrors.CodeUnprocessable, fmt.Sprintf("topic %d doesn't exist", *topic))
			}
		}
	}
	if req.LeadOfficerID != nil {
		return s.staff.EnsureExist(ctx, *req.LeadOfficerID)
	}
	return nil
}

func (s *Service) checkRequirementSource(ctx context.Context, id int64) error {
	sources, err := s.refdata.ListRequirementSources(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load requirement sources")
	}
	for _, src := range sources {
		if src.ID == id {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeUnprocessable, fmt.Sprintf("requirement source %d doesn't exist", id))
}

func (s *Service) seal(c models.Contact) (models.Contact, error) {
	out := models.Contact{Description: c.Description}
	for _, f := range []struct{ dst, src *string }{
		{&out.FullName, &c.FullName},
		{&out.Email, &c.Email},
		{&out.Phone, &c.Phone},
		{&out.Comment, &c.Comment},
	} {
		v, err := s.sealer.Encrypt(*f.src)
		if err != nil {
			return out, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seal source contact")
		}
		*f.dst = v
	}
	return out, nil
}

func (s *Service) open(c models.Contact) (models.Contact, error) {
	out := models.Contact{Description: c.Description}
	for _, f := range []struct{ dst, src *string }{
		{&out.FullName, &c.FullName},
		{&out.Email, &c.Email},
		{&out.Phone, &c.Phone},
		{&out.Comment, &c.Comment},
	} {
		v, err := s.sealer.Decrypt(*f.src)
		if err != nil {
			return out, dErrors.Wrap(err, dErrors.CodeInternal, "failed to open source contact")
		}
		*f.dst = v
	}
	return out, nil
}

func (s *Service) expand(ctx context.Context, c *models.Complaint) (*models.Complaint, error) {
	cf, err := s.caseFiles.FindRef(ctx, c.CaseFileID)
	switch {
	case err == nil:
		c.CaseFile = &models.CaseFileRef{ID: cf.ID, CaseFileNumber: cf.CaseFileNumber}
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load case file")
	}

	if c.LeadOfficerID != nil {
		lead, err := s.staff.Summaries(ctx, []int64{*c.LeadOfficerID})
		if err != nil {
			return nil, err
		}
		if len(lead) == 1 {
			c.LeadOfficer = &lead[0]
		}
	}
	if name, err := s.refdata.OptionName(ctx, refmodels.OptionComplaintSource, c.SourceTypeID); err == nil && name != "" {
		c.Source = &models.Named{ID: c.SourceTypeID, Name: name}
	}
	if c.SourceAgencyID != nil {
		name, err := s.refdata.AgencyName(ctx, *c.SourceAgencyID)
		if err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, err
		}
		c.Agency = &models.Named{ID: *c.SourceAgencyID, Name: name}
	}
	if c.SourceFirstNationID != nil {
		fn, err := s.projects.GetFirstNation(ctx, *c.SourceFirstNationID)
		if err != nil {
			return nil, err
		}
		c.FirstNation = &models.Named{ID: fn.ID, Name: fn.Name}
	}

	row, err := s.store.FindContact(ctx, c.ID)
	switch {
	case err == nil:
		opened, err := s.open(row.Contact)
		if err != nil {
			return nil, err
		}
		c.SourceContact = &opened
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load source contact")
	}

	d, err := s.store.FindRequirement(ctx, c.ID)
	switch {
	case err == nil:
		c.RequirementDetail = d
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load requirement detail")
	}

	if c.ProjectID != nil {
		project, err := s.projects.GetProject(ctx, *c.ProjectID)
		if err != nil {
			return nil, err
		}
		c.Authorization = project.EACertificate
		c.Type = project.Type.Name
		c.SubType = project.SubType.Name
		c.RegulatedParty = project.Proponent.Name
		return c, nil
	}
	p, err := s.store.FindUnapprovedProject(ctx, c.ID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return c, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load unapproved project")
	}
	c.Authorization, c.Type, c.SubType, c.RegulatedParty = p.Authorization, p.Type, p.SubType, p.RegulatedParty
	return c, nil
}

func (s *Service) appendEntry(ctx context.Context, c *models.Complaint) error {
	if s.journal == nil {
		return nil
	}
	_, err := s.journal.AppendSystemEntry(ctx, crmodels.SystemEntry{
		CaseFileID:  c.CaseFileID,
		Text:        "Complaint " + c.ComplaintNumber + " created",
		ContextType: crmodels.ContextComplaint,
		ContextID:   c.ID,
		Keys:        []crmodels.Key{{Key: c.ComplaintNumber, KeyContext: crmodels.ContextComplaint}},
	})
	return err
}

func notFoundOr(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
}
