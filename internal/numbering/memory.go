package numbering

import (
	"context"
	"sync"

	"compliance/pkg/platform/memtx"
)

// MemorySequencer is the in-memory Sequencer. Allocations roll back with the
// enclosing memtx scope, like the counter row in Postgres.
type MemorySequencer struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{values: make(map[string]int64)}
}

func (s *MemorySequencer) Next(ctx context.Context, scope string, floor int64) (int64, error) {
	s.mu.Lock()
	prev, existed := s.values[scope]
	next := max(prev, floor) + 1
	s.values[scope] = next
	s.mu.Unlock()

	memtx.Record(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			s.values[scope] = prev
		} else {
			delete(s.values, scope)
		}
	})
	return next, nil
}
