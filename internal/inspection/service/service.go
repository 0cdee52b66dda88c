// Package service runs the inspection lifecycle: IR numbering, the five
// association families, the free-text attendance and unapproved project rows,
// and the read-side attendance denormalisation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"compliance/internal/audit"
	crmodels "compliance/internal/continuation/models"
	"compliance/internal/inspection/models"
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
	entityName = "inspections"
	kindName   = "inspection"
)

type Store interface {
	FindByID(ctx context.Context, id int64) (*models.Inspection, error)
	FindByIRNumber(ctx context.Context, irNumber string) (*models.Inspection, error)
	List(ctx context.Context, f models.ListFilter) ([]*models.Inspection, error)
	Create(ctx context.Context, i *models.Inspection) error
	Update(ctx context.Context, i *models.Inspection) error
	FindUnapprovedProject(ctx context.Context, inspectionID int64) (*models.UnapprovedProject, error)
	SaveUnapprovedProject(ctx context.Context, p *models.UnapprovedProject) error
	FindOtherAttendance(ctx context.Context, inspectionID int64) (*models.OtherAttendance, error)
	SaveOtherAttendance(ctx context.Context, a *models.OtherAttendance) error
	Officers() reconcile.Family[int64, int64]
	Agencies() reconcile.Family[int64, int64]
	FirstNations() reconcile.Family[int64, int64]
	Types() reconcile.Family[int64, int64]
	Attendances() reconcile.Family[int64, int64]
	numbering.RecordCounter
}

// Staff resolves officers.
type Staff interface {
	Summaries(ctx context.Context, ids []int64) ([]staffmodels.Summary, error)
	EnsureExist(ctx context.Context, ids ...int64) error
	FindByAuthGUID(ctx context.Context, guid string) (*staffmodels.StaffUser, error)
}

// Refdata resolves option lists and agencies.
type Refdata interface {
	OptionName(ctx context.Context, kind refmodels.OptionKind, id int64) (string, error)
	AgencyName(ctx context.Context, id int64) (string, error)
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
	caseFiles     numbering.CaseFiles
	staff         Staff
	refdata       Refdata
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

func WithNumberRetryAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.retryAttempts = n
		}
	}
}

func New(store Store, tx TxRunner, numbers *numbering.Generator, caseFiles numbering.CaseFiles, staff Staff, refdata Refdata, projects registry.Registry, opts ...Option) *Service {
	s := &Service{
		store:         store,
		tx:            tx,
		numbers:       numbers,
		caseFiles:     caseFiles,
		staff:         staff,
		refdata:       refdata,
		projects:      projects,
		retryAttempts: 3,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var errNumberTaken = errors.New("ir number taken")

// Create inserts an Open inspection with its associations, then journals it.
// Every row is written in one transaction; an IR number lost to a concurrent
// create is regenerated.
func (s *Service) Create(ctx context.Context, req *models.CreateRequest) (*models.Inspection, error) {
	var (
		i   *models.Inspection
		err error
	)
	for attempt := 1; ; attempt++ {
		i, err = s.createOnce(ctx, req)
		if !errors.Is(err, errNumberTaken) || attempt >= s.retryAttempts {
			break
		}
		s.metrics.IncrementNumberRetries(kindName)
		s.logger.WarnContext(ctx, "ir number collided, retrying",
			"attempt", attempt,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementRecordsCreated(kindName)
	s.logger.InfoContext(ctx, "inspection created",
		"inspection_id", i.ID,
		"ir_number", i.IRNumber,
		"request_id", requestcontext.RequestID(ctx),
	)
	return i, nil
}

func (s *Service) createOnce(ctx context.Context, req *models.CreateRequest) (*models.Inspection, error) {
	var i *models.Inspection
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		refs := references{
			initiationID:    &req.InitiationID,
			irStatusID:      req.IRStatusID,
			projectStatusID: req.ProjectStatusID,
			leadOfficerID:   req.LeadOfficerID,
			typeIDs:         req.InspectionTypeIDs,
			attendance:      req.Attendance(),
		}
		if err := s.checkReferences(ctx, refs); err != nil {
			return err
		}

		number, err := s.numbers.RecordNumber(ctx, numbering.KindInspection, req.ProjectID, req.CaseFileID, s.store)
		if err != nil {
			return err
		}
		i = &models.Inspection{
			IRNumber:            number,
			CaseFileID:          req.CaseFileID,
			ProjectID:           req.ProjectID,
			ProjectDescription:  req.ProjectDescription,
			LocationDescription: req.LocationDescription,
			UTM:                 req.UTM,
			LeadOfficerID:       req.LeadOfficerID,
			StartDate:           req.StartDate,
			EndDate:             req.EndDate,
			InitiationID:        req.InitiationID,
			IRStatusID:          req.IRStatusID,
			ProjectStatusID:     req.ProjectStatusID,
			Status:              models.StatusOpen,
			Audit:               domain.NewAudit(ctx),
		}
		if err := s.store.Create(ctx, i); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.Wrap(errNumberTaken, dErrors.CodeConflict, "inspection with the ir number "+number+" exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create inspection")
		}

		if req.ProjectID == nil {
			p := &models.UnapprovedProject{
				InspectionID:   i.ID,
				Name:           models.UnapprovedProjectName,
				Description:    req.ProjectDescription,
				Authorization:  req.UnapprovedProjectAuthorization,
				Type:           req.UnapprovedProjectType,
				SubType:        req.UnapprovedProjectSubType,
				RegulatedParty: req.UnapprovedProjectRegulatedParty,
				Audit:          domain.NewAudit(ctx),
			}
			if err := s.store.SaveUnapprovedProject(ctx, p); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save unapproved project")
			}
		}

		att := req.Attendance()
		if err := s.reconcileAll(ctx, i.ID, families{
			officers:     &att.OfficerIDs,
			agencies:     &att.AgencyIDs,
			firstNations: &att.FirstNationIDs,
			types:        &req.InspectionTypeIDs,
			attendances:  &att.OptionIDs,
		}); err != nil {
			return err
		}
		if att.NeedsOtherAttendance() {
			if err := s.saveOtherAttendance(ctx, i.ID, att); err != nil {
				return err
			}
		}

		if err := audit.Record(ctx, s.versions, entityName, i.ID, audit.OperationInsert, nil, i); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record inspection version")
		}
		return s.appendEntry(ctx, i)
	})
	if err != nil {
		return nil, err
	}
	return i, nil
}

// Update patches an inspection. Submitted id lists replace their family; the
// attendance rules are checked against the selection that results.
func (s *Service) Update(ctx context.Context, id int64, req *models.UpdateRequest) (*models.Inspection, error) {
	var i *models.Inspection
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		i, err = s.store.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "inspection doesn't exist", "failed to load inspection")
		}
		before := *i

		att, err := s.effectiveAttendance(ctx, id, req)
		if err != nil {
			return err
		}
		if err := att.Check(); err != nil {
			return err
		}
		start, end := i.StartDate, i.EndDate
		if req.StartDate != nil {
			start = *req.StartDate
		}
		if req.EndDate != nil {
			end = *req.EndDate
		}
		if err := models.CheckDates(start, end); err != nil {
			return err
		}

		refs := references{
			initiationID:    req.InitiationID,
			irStatusID:      req.IRStatusID,
			projectStatusID: req.ProjectStatusID,
			leadOfficerID:   req.LeadOfficerID,
			attendance:      submitted(req),
		}
		if req.InspectionTypeIDs != nil {
			refs.typeIDs = *req.InspectionTypeIDs
		}
		if err := s.checkReferences(ctx, refs); err != nil {
			return err
		}

		if req.ProjectDescription != nil {
			i.ProjectDescription = *req.ProjectDescription
		}
		if req.LocationDescription != nil {
			i.LocationDescription = *req.LocationDescription
		}
		if req.UTM != nil {
			i.UTM = *req.UTM
		}
		if req.LeadOfficerID != nil {
			i.LeadOfficerID = req.LeadOfficerID
		}
		if req.InitiationID != nil {
			i.InitiationID = *req.InitiationID
		}
		if req.IRStatusID != nil {
			i.IRStatusID = req.IRStatusID
		}
		if req.ProjectStatusID != nil {
			i.ProjectStatusID = req.ProjectStatusID
		}
		if req.InspectionStatus != nil {
			i.Status = *req.InspectionStatus
		}
		i.StartDate, i.EndDate = start, end
		i.Touch(ctx)
		if err := s.store.Update(ctx, i); err != nil {
			return notFoundOr(err, "inspection doesn't exist", "failed to update inspection")
		}

		if err := s.reconcileAll(ctx, id, families{
			officers:     req.AttendingOfficerIDs,
			agencies:     req.AgencyAttendanceIDs,
			firstNations: req.FirstNationAttendanceIDs,
			types:        req.InspectionTypeIDs,
			attendances:  req.AttendanceOptionIDs,
		}); err != nil {
			return err
		}
		if req.AttendanceMunicipal != nil || req.AttendanceOther != nil {
			if err := s.saveOtherAttendance(ctx, id, att); err != nil {
				return err
			}
		}
		if i.ProjectID == nil {
			if err := s.updateUnapprovedProject(ctx, i, req); err != nil {
				return err
			}
		}
		return audit.Record(ctx, s.versions, entityName, i.ID, audit.OperationUpdate, before, i)
	})
	if err != nil {
		return nil, err
	}
	return i, nil
}

// Get returns the inspection with its case file, lead officer, types and
// project parameters.
func (s *Service) Get(ctx context.Context, id int64) (*models.Inspection, error) {
	i, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "inspection doesn't exist", "failed to load inspection")
	}
	return s.expand(ctx, i)
}

func (s *Service) GetByIRNumber(ctx context.Context, irNumber string) (*models.Inspection, error) {
	i, err := s.store.FindByIRNumber(ctx, irNumber)
	if err != nil {
		return nil, notFoundOr(err, "inspection with ir number "+irNumber+" doesn't exist", "failed to load inspection")
	}
	return s.expand(ctx, i)
}

func (s *Service) List(ctx context.Context, f models.ListFilter) ([]*models.Inspection, error) {
	list, err := s.store.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list inspections")
	}
	return list, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (*models.Inspection, error) {
	var i *models.Inspection
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		i, err = s.store.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "inspection doesn't exist", "failed to load inspection")
		}
		before := *i
		i.MarkDeleted(ctx)
		if err := s.store.Update(ctx, i); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete inspection")
		}
		return audit.Record(ctx, s.versions, entityName, i.ID, audit.OperationDelete, before, i)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "inspection deleted",
		"inspection_id", id,
		"request_id", requestcontext.RequestID(ctx),
	)
	return i, nil
}

// Officers returns the active attending officers of an inspection.
func (s *Service) Officers(ctx context.Context, id int64) ([]staffmodels.Summary, error) {
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return nil, notFoundOr(err, "inspection doesn't exist", "failed to load inspection")
	}
	ids, err := s.store.Officers().ActiveKeys(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load inspection officers")
	}
	if len(ids) == 0 {
		return []staffmodels.Summary{}, nil
	}
	return s.staff.Summaries(ctx, ids)
}

// AttendanceOptions returns the selected attendance options with their detail.
func (s *Service) AttendanceOptions(ctx context.Context, id int64) ([]models.Attendance, error) {
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return nil, notFoundOr(err, "inspection doesn't exist", "failed to load inspection")
	}
	optionIDs, err := s.store.Attendances().ActiveKeys(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance options")
	}

	out := make([]models.Attendance, 0, len(optionIDs))
	var other *models.OtherAttendance
	for _, optionID := range optionIDs {
		name, err := s.refdata.OptionName(ctx, refmodels.OptionInspectionAttendance, optionID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance options")
		}
		a := models.Attendance{
			AttendanceOptionID: optionID,
			AttendanceOption:   models.Named{ID: optionID, Name: name},
			Data:               "",
		}
		switch optionID {
		case models.AttendanceAgencies:
			a.Data, err = s.agencyAttendance(ctx, id)
		case models.AttendanceFirstNations:
			a.Data, err = s.firstNationAttendance(ctx, id)
		case models.AttendanceAttendingOfficers:
			a.Data, err = s.officerAttendance(ctx, id)
		case models.AttendanceMunicipal, models.AttendanceOther:
			if other == nil {
				other, err = s.otherAttendance(ctx, id)
			}
			if err == nil && optionID == models.AttendanceMunicipal {
				a.Data = other.Municipal
			} else if err == nil {
				a.Data = other.Other
			}
		}
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// IsAssignedUser reports whether the staff user behind authUserGUID leads the
// inspection or is one of its active attending officers.
func (s *Service) IsAssignedUser(ctx context.Context, id int64, authUserGUID string) (bool, error) {
	i, err := s.store.FindByID(ctx, id)
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
	if domain.SameID(i.LeadOfficerID, &user.ID) {
		return true, nil
	}
	officers, err := s.store.Officers().ActiveKeys(ctx, id)
	if err != nil {
		return false, err
	}
	return slices.Contains(officers, user.ID), nil
}

func (s *Service) agencyAttendance(ctx context.Context, id int64) ([]models.Named, error) {
	ids, err := s.store.Agencies().ActiveKeys(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attending agencies")
	}
	out := make([]models.Named, 0, len(ids))
	for _, agencyID := range ids {
		name, err := s.refdata.AgencyName(ctx, agencyID)
		if err != nil {
			return nil, err
		}
		out = append(out, models.Named{ID: agencyID, Name: name})
	}
	return out, nil
}

// firstNationAttendance resolves each first nation with its own registry call.
func (s *Service) firstNationAttendance(ctx context.Context, id int64) ([]models.Named, error) {
	ids, err := s.store.FirstNations().ActiveKeys(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attending first nations")
	}
	out := make([]models.Named, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for idx, fnID := range ids {
		g.Go(func() error {
			fn, err := s.projects.GetFirstNation(gctx, fnID)
			if err != nil {
				return err
			}
			out[idx] = models.Named{ID: fn.ID, Name: fn.Name}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) officerAttendance(ctx context.Context, id int64) ([]models.Named, error) {
	ids, err := s.store.Officers().ActiveKeys(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attending officers")
	}
	if len(ids) == 0 {
		return []models.Named{}, nil
	}
	summaries, err := s.staff.Summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.Named, 0, len(summaries))
	for _, o := range summaries {
		out = append(out, models.Named{ID: o.ID, Name: o.FullName})
	}
	return out, nil
}

func (s *Service) otherAttendance(ctx context.Context, id int64) (*models.OtherAttendance, error) {
	a, err := s.store.FindOtherAttendance(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return &models.OtherAttendance{InspectionID: id}, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load other attendance")
	}
	return a, nil
}

// effectiveAttendance merges the submitted attendance fields over the
// inspection's current selection.
func (s *Service) effectiveAttendance(ctx context.Context, id int64, req *models.UpdateRequest) (models.AttendanceSelection, error) {
	var att models.AttendanceSelection
	load := func(f reconcile.Family[int64, int64], given *[]int64, dst *[]int64) error {
		if given != nil {
			*dst = *given
			return nil
		}
		keys, err := f.ActiveKeys(ctx, id)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load "+f.Name())
		}
		*dst = keys
		return nil
	}
	if err := load(s.store.Attendances(), req.AttendanceOptionIDs, &att.OptionIDs); err != nil {
		return att, err
	}
	if err := load(s.store.Agencies(), req.AgencyAttendanceIDs, &att.AgencyIDs); err != nil {
		return att, err
	}
	if err := load(s.store.FirstNations(), req.FirstNationAttendanceIDs, &att.FirstNationIDs); err != nil {
		return att, err
	}
	if err := load(s.store.Officers(), req.AttendingOfficerIDs, &att.OfficerIDs); err != nil {
		return att, err
	}

	other, err := s.otherAttendance(ctx, id)
	if err != nil {
		return att, err
	}
	att.Municipal, att.Other = other.Municipal, other.Other
	if req.AttendanceMunicipal != nil {
		att.Municipal = *req.AttendanceMunicipal
	}
	if req.AttendanceOther != nil {
		att.Other = *req.AttendanceOther
	}
	return att, nil
}

func submitted(req *models.UpdateRequest) models.AttendanceSelection {
	var att models.AttendanceSelection
	if req.AttendanceOptionIDs != nil {
		att.OptionIDs = *req.AttendanceOptionIDs
	}
	if req.AgencyAttendanceIDs != nil {
		att.AgencyIDs = *req.AgencyAttendanceIDs
	}
	if req.FirstNationAttendanceIDs != nil {
		att.FirstNationIDs = *req.FirstNationAttendanceIDs
	}
	if req.AttendingOfficerIDs != nil {
		att.OfficerIDs = *req.AttendingOfficerIDs
	}
	return att
}

func (s *Service) saveOtherAttendance(ctx context.Context, id int64, att models.AttendanceSelection) error {
	a, err := s.otherAttendance(ctx, id)
	if err != nil {
		return err
	}
	if a.ID == 0 {
		a.Audit = domain.NewAudit(ctx)
	} else {
		a.Touch(ctx)
	}
	a.Municipal, a.Other = att.Municipal, att.Other
	if err := s.store.SaveOtherAttendance(ctx, a); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save other attendance")
	}
	return nil
}

func (s *Service) updateUnapprovedProject(ctx context.Context, i *models.Inspection, req *models.UpdateRequest) error {
	if req.UnapprovedProjectAuthorization == nil && req.UnapprovedProjectType == nil &&
		req.UnapprovedProjectSubType == nil && req.UnapprovedProjectRegulatedParty == nil &&
		req.ProjectDescription == nil {
		return nil
	}
	p, err := s.store.FindUnapprovedProject(ctx, i.ID)
	if errors.Is(err, sentinel.ErrNotFound) {
		p = &models.UnapprovedProject{InspectionID: i.ID, Name: models.UnapprovedProjectName, Audit: domain.NewAudit(ctx)}
	} else if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load unapproved project")
	} else {
		p.Touch(ctx)
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.Description, req.ProjectDescription)
	set(&p.Authorization, req.UnapprovedProjectAuthorization)
	set(&p.Type, req.UnapprovedProjectType)
	set(&p.SubType, req.UnapprovedProjectSubType)
	set(&p.RegulatedParty, req.UnapprovedProjectRegulatedParty)
	if err := s.store.SaveUnapprovedProject(ctx, p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save unapproved project")
	}
	return nil
}

// families holds the submitted id lists; a nil list leaves its family alone.
type families struct {
	officers     *[]int64
	agencies     *[]int64
	firstNations *[]int64
	types        *[]int64
	attendances  *[]int64
}

func (s *Service) reconcileAll(ctx context.Context, id int64, f families) error {
	for _, step := range []struct {
		family reconcile.Family[int64, int64]
		ids    *[]int64
	}{
		{s.store.Officers(), f.officers},
		{s.store.Agencies(), f.agencies},
		{s.store.FirstNations(), f.firstNations},
		{s.store.Types(), f.types},
		{s.store.Attendances(), f.attendances},
	} {
		if step.ids == nil {
			continue
		}
		res, err := reconcile.Reconcile(ctx, step.family, id, *step.ids)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reconcile "+step.family.Name())
		}
		s.metrics.ObserveReconcile(res.Family, len(res.Added), len(res.Removed))
	}
	return nil
}

type references struct {
	initiationID    *int64
	irStatusID      *int64
	projectStatusID *int64
	leadOfficerID   *int64
	typeIDs         []int64
	attendance      models.AttendanceSelection
}

func (s *Service) checkReferences(ctx context.Context, r references) error {
	option := func(kind refmodels.OptionKind, field string, id int64) error {
		name, err := s.refdata.OptionName(ctx, kind, id)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load "+string(kind)+" options")
		}
		if name == "" {
			return dErrors.New(dErrors.CodeUnprocessable, fmt.Sprintf("%s %d doesn't exist", field, id))
		}
		return nil
	}
	if r.initiationID != nil {
		if err := option(refmodels.OptionInspectionInitiation, "initiation", *r.initiationID); err != nil {
			return err
		}
	}
	if r.irStatusID != nil {
		if err := option(refmodels.OptionIRStatus, "ir status", *r.irStatusID); err != nil {
			return err
		}
	}
	if r.projectStatusID != nil {
		if err := option(refmodels.OptionProjectStatus, "project status", *r.projectStatusID); err != nil {
			return err
		}
	}
	for _, id := range r.typeIDs {
		if err := option(refmodels.OptionInspectionType, "inspection type", id); err != nil {
			return err
		}
	}
	for _, id := range r.attendance.OptionIDs {
		if err := option(refmodels.OptionInspectionAttendance, "attendance option", id); err != nil {
			return err
		}
	}
	for _, id := range r.attendance.AgencyIDs {
		if _, err := s.refdata.AgencyName(ctx, id); err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return dErrors.New(dErrors.CodeUnprocessable, fmt.Sprintf("agency %d doesn't exist", id))
			}
			return err
		}
	}
	for _, id := range r.attendance.FirstNationIDs {
		if _, err := s.projects.GetFirstNation(ctx, id); err != nil {
			return err
		}
	}
	ids := append([]int64{}, r.attendance.OfficerIDs...)
	if r.leadOfficerID != nil {
		ids = append(ids, *r.leadOfficerID)
	}
	return s.staff.EnsureExist(ctx, ids...)
}

func (s *Service) expand(ctx context.Context, i *models.Inspection) (*models.Inspection, error) {
	cf, err := s.caseFiles.FindRef(ctx, i.CaseFileID)
	switch {
	case err == nil:
		i.CaseFile = &models.CaseFileRef{ID: cf.ID, CaseFileNumber: cf.CaseFileNumber}
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load case file")
	}

	if i.LeadOfficerID != nil {
		lead, err := s.staff.Summaries(ctx, []int64{*i.LeadOfficerID})
		if err != nil {
			return nil, err
		}
		if len(lead) == 1 {
			i.LeadOfficer = &lead[0]
		}
	}

	typeIDs, err := s.store.Types().ActiveKeys(ctx, i.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load inspection types")
	}
	i.Types = make([]models.Named, 0, len(typeIDs))
	for _, id := range typeIDs {
		name, err := s.refdata.OptionName(ctx, refmodels.OptionInspectionType, id)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load inspection types")
		}
		i.Types = append(i.Types, models.Named{ID: id, Name: name})
	}

	if i.ProjectID != nil {
		project, err := s.projects.GetProject(ctx, *i.ProjectID)
		if err != nil {
			return nil, err
		}
		i.Authorization = project.EACertificate
		i.Type = project.Type.Name
		i.SubType = project.SubType.Name
		i.RegulatedParty = project.Proponent.Name
		return i, nil
	}
	p, err := s.store.FindUnapprovedProject(ctx, i.ID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return i, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load unapproved project")
	}
	i.Authorization, i.Type, i.SubType, i.RegulatedParty = p.Authorization, p.Type, p.SubType, p.RegulatedParty
	return i, nil
}

func (s *Service) appendEntry(ctx context.Context, i *models.Inspection) error {
	if s.journal == nil {
		return nil
	}
	_, err := s.journal.AppendSystemEntry(ctx, crmodels.SystemEntry{
		CaseFileID:  i.CaseFileID,
		Text:        "Inspection " + i.IRNumber + " created",
		ContextType: crmodels.ContextInspection,
		ContextID:   i.ID,
		Keys:        []crmodels.Key{{Key: i.IRNumber, KeyContext: crmodels.ContextInspection}},
	})
	return err
}

func notFoundOr(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
}
