package store

import (
	"context"
	"fmt"

	"compliance/internal/complaint/models"
	"compliance/pkg/domain"
	"compliance/pkg/platform/memtx"
	"compliance/pkg/platform/sentinel"
)

type variantRow struct {
	ID    int64
	ReqID int64
	Value models.Variant
	domain.Audit
}

type InMemoryStore struct {
	complaints   *memtx.Table[models.Complaint]
	unapproved   *memtx.Table[models.UnapprovedProject]
	contacts     *memtx.Table[models.ContactRow]
	requirements *memtx.Table[models.RequirementDetail]
	scheduleB    *memtx.Table[variantRow]
	orders       *memtx.Table[variantRow]
	eac          *memtx.Table[variantRow]
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		complaints:   memtx.NewTable[models.Complaint](),
		unapproved:   memtx.NewTable[models.UnapprovedProject](),
		contacts:     memtx.NewTable[models.ContactRow](),
		requirements: memtx.NewTable[models.RequirementDetail](),
		scheduleB:    memtx.NewTable[variantRow](),
		orders:       memtx.NewTable[variantRow](),
		eac:          memtx.NewTable[variantRow](),
	}
}

func (s *InMemoryStore) FindByID(_ context.Context, id int64) (*models.Complaint, error) {
	c, ok := s.complaints.Get(id)
	if !ok || !c.Visible() {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

func (s *InMemoryStore) FindByNumber(_ context.Context, number string) (*models.Complaint, error) {
	rows := s.complaints.Select(func(c models.Complaint) bool { return c.Visible() && c.ComplaintNumber == number })
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return &rows[0], nil
}

func (s *InMemoryStore) List(_ context.Context, f models.ListFilter) ([]*models.Complaint, error) {
	rows := s.complaints.Select(func(c models.Complaint) bool {
		return c.Visible() && (f.CaseFileID == nil || c.CaseFileID == *f.CaseFileID)
	})
	out := make([]*models.Complaint, 0, len(rows))
	for i := range rows {
		out = append(out, &rows[i])
	}
	return out, nil
}

func (s *InMemoryStore) Create(ctx context.Context, c *models.Complaint) error {
	if _, err := s.FindByNumber(ctx, c.ComplaintNumber); err == nil {
		return sentinel.ErrAlreadyUsed
	}
	*c = s.complaints.Insert(ctx, func(id int64) models.Complaint {
		row := *c
		row.ID = id
		return row
	})
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, c *models.Complaint) error {
	row := *c
	row.CaseFile, row.LeadOfficer, row.Source, row.Agency, row.FirstNation = nil, nil, nil, nil, nil
	row.SourceContact, row.RequirementDetail = nil, nil
	return s.complaints.Put(ctx, c.ID, row)
}

func (s *InMemoryStore) CountActive(_ context.Context, projectID *int64, caseFileID int64) (int64, error) {
	rows := s.complaints.Select(func(c models.Complaint) bool {
		return c.Visible() && c.CaseFileID == caseFileID && domain.SameID(c.ProjectID, projectID)
	})
	return int64(len(rows)), nil
}

func (s *InMemoryStore) FindUnapprovedProject(_ context.Context, complaintID int64) (*models.UnapprovedProject, error) {
	rows := s.unapproved.Select(func(p models.UnapprovedProject) bool { return p.ComplaintID == complaintID && p.Visible() })
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return &rows[0], nil
}

func (s *InMemoryStore) CreateUnapprovedProject(ctx context.Context, p *models.UnapprovedProject) error {
	*p = s.unapproved.Insert(ctx, func(id int64) models.UnapprovedProject {
		row := *p
		row.ID = id
		return row
	})
	return nil
}

func (s *InMemoryStore) FindContact(_ context.Context, complaintID int64) (*models.ContactRow, error) {
	rows := s.contacts.Select(func(c models.ContactRow) bool { return c.ComplaintID == complaintID && c.Visible() })
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return &rows[0], nil
}

func (s *InMemoryStore) CreateContact(ctx context.Context, c *models.ContactRow) error {
	*c = s.contacts.Insert(ctx, func(id int64) models.ContactRow {
		row := *c
		row.ID = id
		return row
	})
	return nil
}

// CreateRequirement inserts the detail and the one variant row its source calls for.
func (s *InMemoryStore) CreateRequirement(ctx context.Context, d *models.RequirementDetail) error {
	if err := d.CheckVariant(); err != nil {
		return err
	}
	*d = s.requirements.Insert(ctx, func(id int64) models.RequirementDetail {
		row := *d
		row.ID = id
		return row
	})
	var table *memtx.Table[variantRow]
	switch d.Variant.(type) {
	case models.ScheduleB:
		table = s.scheduleB
	case models.Order:
		table = s.orders
	case models.EACCertificate:
		table = s.eac
	case nil:
		return nil
	default:
		return fmt.Errorf("unknown requirement variant %T: %w", d.Variant, models.ErrVariantMismatch)
	}
	table.Insert(ctx, func(id int64) variantRow {
		return variantRow{ID: id, ReqID: d.ID, Value: d.Variant, Audit: d.Audit}
	})
	return nil
}

func (s *InMemoryStore) FindRequirement(_ context.Context, complaintID int64) (*models.RequirementDetail, error) {
	rows := s.requirements.Select(func(d models.RequirementDetail) bool { return d.ComplaintID == complaintID && d.Visible() })
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	d := rows[0]
	d.Variant = nil
	for _, t := range []*memtx.Table[variantRow]{s.scheduleB, s.orders, s.eac} {
		if v := t.Select(func(r variantRow) bool { return r.ReqID == d.ID && r.Visible() }); len(v) > 0 {
			d.Variant = v[0].Value
		}
	}
	return &d, nil
}

// VariantRows counts the schedule B, order and EAC rows of a requirement detail.
func (s *InMemoryStore) VariantRows(reqID int64) (scheduleB, orders, eac int) {
	count := func(t *memtx.Table[variantRow]) int {
		return len(t.Select(func(r variantRow) bool { return r.ReqID == reqID }))
	}
	return count(s.scheduleB), count(s.orders), count(s.eac)
}

func (s *InMemoryStore) Len() int {
	return s.complaints.Len()
}
