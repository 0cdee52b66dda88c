package store

import (
	"context"
	"slices"
	"sort"

	"compliance/internal/continuation/models"
	"compliance/internal/reconcile"
	"compliance/pkg/domain"
	"compliance/pkg/platform/memtx"
	"compliance/pkg/platform/sentinel"
)

type InMemoryStore struct {
	reports *memtx.Table[models.Report]
	keys    *memtx.Table[models.KeyRow]
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		reports: memtx.NewTable[models.Report](),
		keys:    memtx.NewTable[models.KeyRow](),
	}
}

func (s *InMemoryStore) FindByID(_ context.Context, id int64) (*models.Report, error) {
	r, ok := s.reports.Get(id)
	if !ok || !r.Visible() {
		return nil, sentinel.ErrNotFound
	}
	return &r, nil
}

func (s *InMemoryStore) ListByCaseFile(_ context.Context, f models.ListFilter) ([]*models.Report, error) {
	rows := s.reports.Select(func(r models.Report) bool {
		if !r.Visible() || r.CaseFileID != f.CaseFileID {
			return false
		}
		if f.ContextType != "" && r.ContextType != f.ContextType {
			return false
		}
		return f.ContextID == 0 || r.ContextID == f.ContextID
	})
	out := make([]*models.Report, 0, len(rows))
	for i := range rows {
		out = append(out, &rows[i])
	}
	return out, nil
}

func (s *InMemoryStore) Create(ctx context.Context, r *models.Report) error {
	*r = s.reports.Insert(ctx, func(id int64) models.Report {
		row := *r
		row.ID = id
		row.Keys = nil
		return row
	})
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, r *models.Report) error {
	row := *r
	row.Keys = nil
	return s.reports.Put(ctx, r.ID, row)
}

func (s *InMemoryStore) KeysFor(_ context.Context, reportIDs []int64) (map[int64][]models.Key, error) {
	rows := s.keys.Select(func(k models.KeyRow) bool {
		return k.IsActive && slices.Contains(reportIDs, k.ReportID)
	})
	out := make(map[int64][]models.Key, len(reportIDs))
	for _, k := range rows {
		out[k.ReportID] = append(out[k.ReportID], models.Key{Key: k.Key, KeyContext: k.KeyContext})
	}
	for id := range out {
		sort.Slice(out[id], func(i, j int) bool { return out[id][i].Key < out[id][j].Key })
	}
	return out, nil
}

func (s *InMemoryStore) KeyFamily(contexts map[string]models.ContextType) reconcile.Family[int64, string] {
	return &memoryKeys{table: s.keys, contexts: contexts}
}

// KeyRows returns every key row of a report, deleted ones included.
func (s *InMemoryStore) KeyRows(reportID int64) []models.KeyRow {
	return s.keys.Select(func(k models.KeyRow) bool { return k.ReportID == reportID })
}

type memoryKeys struct {
	table    *memtx.Table[models.KeyRow]
	contexts map[string]models.ContextType
}

func (f *memoryKeys) Name() string { return keysTable }

func (f *memoryKeys) ActiveKeys(_ context.Context, parent int64) ([]string, error) {
	rows := f.table.Select(func(k models.KeyRow) bool { return k.ReportID == parent && k.IsActive })
	keys := make([]string, 0, len(rows))
	for _, k := range rows {
		keys = append(keys, k.Key)
	}
	return keys, nil
}

func (f *memoryKeys) Deactivate(ctx context.Context, parent int64, keys []string) error {
	f.table.UpdateWhere(ctx, func(k models.KeyRow) bool {
		return k.ReportID == parent && k.IsActive && slices.Contains(keys, k.Key)
	}, func(k models.KeyRow) models.KeyRow {
		k.MarkDeleted(ctx)
		return k
	})
	return nil
}

func (f *memoryKeys) Insert(ctx context.Context, parent int64, keys []string) error {
	for _, key := range keys {
		f.table.Insert(ctx, func(id int64) models.KeyRow {
			return models.KeyRow{ID: id, ReportID: parent, Key: key, KeyContext: f.contexts[key], Audit: domain.NewAudit(ctx)}
		})
	}
	return nil
}
