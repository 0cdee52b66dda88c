// Package memtx gives in-memory stores the commit/rollback behaviour of a SQL
// transaction. Writers are serialised by the Runner; every mutation made
// through a Table inside RunInTx is journalled and undone if fn fails.
package memtx

import (
	"context"
	"sort"
	"sync"

	"compliance/pkg/platform/sentinel"
)

type journalKey struct{}

type journal struct {
	undo []func()
}

// Runner is the in-memory counterpart of the Postgres transaction runner.
type Runner struct {
	mu sync.Mutex
}

func NewRunner() *Runner {
	return &Runner{}
}

// RunInTx runs fn in a journalled scope. Nested calls join the outer scope.
func (r *Runner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		return err
	}
	return nil
}

// Record registers an undo step with the scope bound to ctx, if any.
func Record(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

// Table is an id-keyed row set with journalled writes.
type Table[T any] struct {
	mu     sync.RWMutex
	rows   map[int64]T
	nextID int64
}

func NewTable[T any]() *Table[T] {
	return &Table[T]{rows: make(map[int64]T)}
}

// Insert assigns the next id, builds the row with it and stores it.
// Ids are never reused, even after rollback.
func (t *Table[T]) Insert(ctx context.Context, build func(id int64) T) T {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	row := build(id)
	t.rows[id] = row
	t.mu.Unlock()

	Record(ctx, func() {
		t.mu.Lock()
		delete(t.rows, id)
		t.mu.Unlock()
	})
	return row
}

// Put replaces an existing row.
func (t *Table[T]) Put(ctx context.Context, id int64, row T) error {
	t.mu.Lock()
	prev, ok := t.rows[id]
	if !ok {
		t.mu.Unlock()
		return sentinel.ErrNotFound
	}
	t.rows[id] = row
	t.mu.Unlock()

	Record(ctx, func() {
		t.mu.Lock()
		t.rows[id] = prev
		t.mu.Unlock()
	})
	return nil
}

// Upsert stores row under a caller-chosen id, inserting or replacing it.
// Later Inserts continue after the highest id seen.
func (t *Table[T]) Upsert(ctx context.Context, id int64, row T) {
	t.mu.Lock()
	prev, existed := t.rows[id]
	t.rows[id] = row
	if id > t.nextID {
		t.nextID = id
	}
	t.mu.Unlock()

	Record(ctx, func() {
		t.mu.Lock()
		if existed {
			t.rows[id] = prev
		} else {
			delete(t.rows, id)
		}
		t.mu.Unlock()
	})
}

// Get returns the row with id regardless of its flags.
func (t *Table[T]) Get(id int64) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.rows[id]
	return row, ok
}

// Select returns matching rows ordered by id.
func (t *Table[T]) Select(match func(T) bool) []T {
	t.mu.RLock()
	ids := make([]int64, 0, len(t.rows))
	for id, row := range t.rows {
		if match == nil || match(row) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.rows[id])
	}
	t.mu.RUnlock()
	return out
}

// UpdateWhere applies mutate to every matching row and returns how many changed.
func (t *Table[T]) UpdateWhere(ctx context.Context, match func(T) bool, mutate func(T) T) int {
	t.mu.Lock()
	changed := make(map[int64]T)
	for id, row := range t.rows {
		if match(row) {
			changed[id] = row
			t.rows[id] = mutate(row)
		}
	}
	t.mu.Unlock()

	if len(changed) > 0 {
		Record(ctx, func() {
			t.mu.Lock()
			for id, row := range changed {
				t.rows[id] = row
			}
			t.mu.Unlock()
		})
	}
	return len(changed)
}

// Len reports the number of stored rows, deleted or not.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}
