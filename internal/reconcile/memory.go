package reconcile

import (
	"context"

	"compliance/pkg/domain"
	"compliance/pkg/platform/memtx"
)

// Row is one in-memory association row.
type Row struct {
	ID       int64
	ParentID int64
	RefID    int64
	domain.Audit
}

// MemoryFamily is an int64-keyed association table kept in memory. Writes are
// journalled so they roll back with the enclosing memtx scope.
type MemoryFamily struct {
	name  string
	table *memtx.Table[Row]
}

func NewMemoryFamily(name string) *MemoryFamily {
	return &MemoryFamily{name: name, table: memtx.NewTable[Row]()}
}

func (f *MemoryFamily) Name() string { return f.name }

func (f *MemoryFamily) ActiveKeys(_ context.Context, parent int64) ([]int64, error) {
	rows := f.table.Select(func(r Row) bool {
		return r.ParentID == parent && r.IsActive
	})
	keys := make([]int64, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.RefID)
	}
	return keys, nil
}

func (f *MemoryFamily) Deactivate(ctx context.Context, parent int64, keys []int64) error {
	drop := toSet(keys)
	f.table.UpdateWhere(ctx, func(r Row) bool {
		_, hit := drop[r.RefID]
		return r.ParentID == parent && r.IsActive && hit
	}, func(r Row) Row {
		r.MarkDeleted(ctx)
		return r
	})
	return nil
}

func (f *MemoryFamily) Insert(ctx context.Context, parent int64, keys []int64) error {
	for _, k := range keys {
		f.table.Insert(ctx, func(id int64) Row {
			return Row{ID: id, ParentID: parent, RefID: k, Audit: domain.NewAudit(ctx)}
		})
	}
	return nil
}

// Rows returns every row of the parent, deleted ones included.
func (f *MemoryFamily) Rows(parent int64) []Row {
	return f.table.Select(func(r Row) bool { return r.ParentID == parent })
}

// Parents returns the parents that hold an active row for ref.
func (f *MemoryFamily) Parents(ref int64) []int64 {
	rows := f.table.Select(func(r Row) bool { return r.RefID == ref && r.IsActive })
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ParentID)
	}
	return out
}
