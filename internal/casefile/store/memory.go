package store

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"compliance/internal/casefile/models"
	"compliance/internal/numbering"
	"compliance/internal/reconcile"
	"compliance/pkg/domain"
	"compliance/pkg/platform/memtx"
	"compliance/pkg/platform/sentinel"
)

var nonDigits = regexp.MustCompile(`\D`)

type InMemoryStore struct {
	files    *memtx.Table[models.CaseFile]
	officers *reconcile.MemoryFamily
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		files:    memtx.NewTable[models.CaseFile](),
		officers: reconcile.NewMemoryFamily(officersTable.Name),
	}
}

func (s *InMemoryStore) FindByID(_ context.Context, id int64) (*models.CaseFile, error) {
	cf, ok := s.files.Get(id)
	if !ok || !cf.Visible() {
		return nil, sentinel.ErrNotFound
	}
	return &cf, nil
}

func (s *InMemoryStore) FindAnyByID(_ context.Context, id int64) (*models.CaseFile, error) {
	cf, ok := s.files.Get(id)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &cf, nil
}

func (s *InMemoryStore) FindByNumber(_ context.Context, number string) (*models.CaseFile, error) {
	rows := s.files.Select(func(cf models.CaseFile) bool { return cf.Visible() && cf.CaseFileNumber == number })
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return &rows[0], nil
}

func (s *InMemoryStore) List(_ context.Context, projectID *int64) ([]*models.CaseFile, error) {
	rows := s.files.Select(func(cf models.CaseFile) bool {
		return cf.Visible() && (projectID == nil || domain.SameID(cf.ProjectID, projectID))
	})
	out := make([]*models.CaseFile, 0, len(rows))
	for i := range rows {
		out = append(out, &rows[i])
	}
	return out, nil
}

func (s *InMemoryStore) Create(ctx context.Context, cf *models.CaseFile) error {
	if _, err := s.FindByNumber(ctx, cf.CaseFileNumber); err == nil {
		return sentinel.ErrAlreadyUsed
	}
	*cf = s.files.Insert(ctx, func(id int64) models.CaseFile {
		row := *cf
		row.ID = id
		row.LeadOfficer = nil
		row.Project = nil
		return row
	})
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, cf *models.CaseFile) error {
	row := *cf
	row.LeadOfficer = nil
	row.Project = nil
	return s.files.Put(ctx, cf.ID, row)
}

func (s *InMemoryStore) Officers() reconcile.Family[int64, int64] {
	return s.officers
}

// OfficerRows exposes every officer row of a case file, deleted ones included.
func (s *InMemoryStore) OfficerRows(caseFileID int64) []reconcile.Row {
	return s.officers.Rows(caseFileID)
}

func (s *InMemoryStore) FindRef(ctx context.Context, id int64) (*numbering.CaseFileRef, error) {
	cf, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &numbering.CaseFileRef{ID: cf.ID, ProjectID: cf.ProjectID, CaseFileNumber: cf.CaseFileNumber}, nil
}

// MaxSequenceForYear scans every case file number, deleted ones included.
// Digit runs longer than a sequence are skipped, as in Postgres.
func (s *InMemoryStore) MaxSequenceForYear(_ context.Context, year int) (int64, error) {
	prefix := strconv.Itoa(year)
	var highest int64
	for _, cf := range s.files.Select(func(models.CaseFile) bool { return true }) {
		digits := nonDigits.ReplaceAllString(cf.CaseFileNumber, "")
		suffix := len(digits) - len(prefix)
		if suffix <= 0 || suffix > numbering.MaxSequenceDigits || !strings.HasPrefix(digits, prefix) {
			continue
		}
		seq, err := strconv.ParseInt(digits[len(prefix):], 10, 64)
		if err != nil {
			continue
		}
		highest = max(highest, seq)
	}
	return highest, nil
}
