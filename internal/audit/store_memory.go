package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"compliance/pkg/platform/memtx"
	"compliance/pkg/requestcontext"
)

// MemoryStore keeps versions in memory; they roll back with the memtx scope.
type MemoryStore struct {
	table *memtx.Table[Version]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{table: memtx.NewTable[Version]()}
}

func (s *MemoryStore) RecordVersion(ctx context.Context, v Version) error {
	if v.EventID == uuid.Nil {
		v.EventID = uuid.New()
	}
	v.Actor = requestcontext.Actor(ctx)
	v.RecordedAt = requestcontext.Now(ctx)
	s.table.Insert(ctx, func(id int64) Version {
		v.ID = id
		return v
	})
	return nil
}

func (s *MemoryStore) FetchUnpublished(_ context.Context, limit int) ([]Version, error) {
	rows := s.table.Select(func(v Version) bool { return v.PublishedAt == nil })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *MemoryStore) MarkPublished(ctx context.Context, ids []int64, at time.Time) error {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	s.table.UpdateWhere(ctx, func(v Version) bool {
		_, ok := set[v.ID]
		return ok
	}, func(v Version) Version {
		v.PublishedAt = &at
		return v
	})
	return nil
}

// Versions returns every stored version of an entity, oldest first.
func (s *MemoryStore) Versions(entity string, id int64) []Version {
	return s.table.Select(func(v Version) bool { return v.Entity == entity && v.EntityID == id })
}
