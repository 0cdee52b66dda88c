package store

import (
	"context"

	"compliance/internal/inspection/models"
	"compliance/internal/reconcile"
	"compliance/pkg/domain"
	"compliance/pkg/platform/memtx"
	"compliance/pkg/platform/sentinel"
)

type InMemoryStore struct {
	inspections  *memtx.Table[models.Inspection]
	unapproved   *memtx.Table[models.UnapprovedProject]
	attendees    *memtx.Table[models.OtherAttendance]
	officers     *reconcile.MemoryFamily
	agencies     *reconcile.MemoryFamily
	firstNations *reconcile.MemoryFamily
	types        *reconcile.MemoryFamily
	attendances  *reconcile.MemoryFamily
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		inspections:  memtx.NewTable[models.Inspection](),
		unapproved:   memtx.NewTable[models.UnapprovedProject](),
		attendees:    memtx.NewTable[models.OtherAttendance](),
		officers:     reconcile.NewMemoryFamily(officersTable.Name),
		agencies:     reconcile.NewMemoryFamily(agenciesTable.Name),
		firstNations: reconcile.NewMemoryFamily(firstNationsTable.Name),
		types:        reconcile.NewMemoryFamily(typesTable.Name),
		attendances:  reconcile.NewMemoryFamily(attendancesTable.Name),
	}
}

func (s *InMemoryStore) FindByID(_ context.Context, id int64) (*models.Inspection, error) {
	i, ok := s.inspections.Get(id)
	if !ok || !i.Visible() {
		return nil, sentinel.ErrNotFound
	}
	return &i, nil
}

func (s *InMemoryStore) FindByIRNumber(_ context.Context, irNumber string) (*models.Inspection, error) {
	rows := s.inspections.Select(func(i models.Inspection) bool { return i.Visible() && i.IRNumber == irNumber })
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return &rows[0], nil
}

func (s *InMemoryStore) List(_ context.Context, f models.ListFilter) ([]*models.Inspection, error) {
	rows := s.inspections.Select(func(i models.Inspection) bool {
		return i.Visible() && (f.CaseFileID == nil || i.CaseFileID == *f.CaseFileID)
	})
	out := make([]*models.Inspection, 0, len(rows))
	for i := range rows {
		out = append(out, &rows[i])
	}
	return out, nil
}

func (s *InMemoryStore) Create(ctx context.Context, i *models.Inspection) error {
	if _, err := s.FindByIRNumber(ctx, i.IRNumber); err == nil {
		return sentinel.ErrAlreadyUsed
	}
	*i = s.inspections.Insert(ctx, func(id int64) models.Inspection {
		row := *i
		row.ID = id
		return row
	})
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, i *models.Inspection) error {
	return s.inspections.Put(ctx, i.ID, *i)
}

func (s *InMemoryStore) CountActive(_ context.Context, projectID *int64, caseFileID int64) (int64, error) {
	rows := s.inspections.Select(func(i models.Inspection) bool {
		return i.Visible() && i.CaseFileID == caseFileID && domain.SameID(i.ProjectID, projectID)
	})
	return int64(len(rows)), nil
}

func (s *InMemoryStore) FindUnapprovedProject(_ context.Context, inspectionID int64) (*models.UnapprovedProject, error) {
	rows := s.unapproved.Select(func(p models.UnapprovedProject) bool { return p.InspectionID == inspectionID && p.Visible() })
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return &rows[0], nil
}

func (s *InMemoryStore) SaveUnapprovedProject(ctx context.Context, p *models.UnapprovedProject) error {
	if p.ID != 0 {
		return s.unapproved.Put(ctx, p.ID, *p)
	}
	*p = s.unapproved.Insert(ctx, func(id int64) models.UnapprovedProject {
		row := *p
		row.ID = id
		return row
	})
	return nil
}

func (s *InMemoryStore) FindOtherAttendance(_ context.Context, inspectionID int64) (*models.OtherAttendance, error) {
	rows := s.attendees.Select(func(a models.OtherAttendance) bool { return a.InspectionID == inspectionID && a.Visible() })
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return &rows[0], nil
}

func (s *InMemoryStore) SaveOtherAttendance(ctx context.Context, a *models.OtherAttendance) error {
	if a.ID != 0 {
		return s.attendees.Put(ctx, a.ID, *a)
	}
	*a = s.attendees.Insert(ctx, func(id int64) models.OtherAttendance {
		row := *a
		row.ID = id
		return row
	})
	return nil
}

func (s *InMemoryStore) Officers() reconcile.Family[int64, int64]     { return s.officers }
func (s *InMemoryStore) Agencies() reconcile.Family[int64, int64]     { return s.agencies }
func (s *InMemoryStore) FirstNations() reconcile.Family[int64, int64] { return s.firstNations }
func (s *InMemoryStore) Types() reconcile.Family[int64, int64]        { return s.types }
func (s *InMemoryStore) Attendances() reconcile.Family[int64, int64]  { return s.attendances }

// UnapprovedProjectCount counts detail rows of an inspection, deleted ones included.
func (s *InMemoryStore) UnapprovedProjectCount(inspectionID int64) int {
	return len(s.unapproved.Select(func(p models.UnapprovedProject) bool { return p.InspectionID == inspectionID }))
}

// Len counts every inspection row, deleted ones included.
func (s *InMemoryStore) Len() int {
	return s.inspections.Len()
}
