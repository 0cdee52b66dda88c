// Package reconcile aligns a parent's active many-to-many rows with a desired
// set using a minimal soft-delete/insert diff instead of a full replace.
//
// Every association family (case file officers, inspection agencies, report
// keys, ...) plugs in through Family; the diff logic lives here once.
package reconcile

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// Family is one association table seen from its parent.
type Family[P any, K cmp.Ordered] interface {
	// Name identifies the family in logs, metrics and errors.
	Name() string
	// ActiveKeys returns the reference keys of the parent's active rows.
	ActiveKeys(ctx context.Context, parent P) ([]K, error)
	// Deactivate soft-deletes the parent's active rows holding keys, in one statement.
	Deactivate(ctx context.Context, parent P, keys []K) error
	// Insert adds one active row per key, in one statement.
	Insert(ctx context.Context, parent P, keys []K) error
}

// Result describes the writes a reconcile performed.
type Result[K cmp.Ordered] struct {
	Family  string
	Added   []K
	Removed []K
}

// Empty reports whether nothing was written.
func (r Result[K]) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0
}

// Diff returns desired−existing and existing−desired, each sorted and free of duplicates.
func Diff[K cmp.Ordered](existing, desired []K) (toAdd, toRemove []K) {
	have := toSet(existing)
	want := toSet(desired)
	for k := range want {
		if _, ok := have[k]; !ok {
			toAdd = append(toAdd, k)
		}
	}
	for k := range have {
		if _, ok := want[k]; !ok {
			toRemove = append(toRemove, k)
		}
	}
	slices.Sort(toAdd)
	slices.Sort(toRemove)
	return toAdd, toRemove
}

// Reconcile makes the parent's active key set equal desired. It must run inside
// the caller's transaction; a second call with the same desired set writes nothing.
func Reconcile[P any, K cmp.Ordered](ctx context.Context, f Family[P, K], parent P, desired []K) (Result[K], error) {
	res := Result[K]{Family: f.Name()}

	existing, err := f.ActiveKeys(ctx, parent)
	if err != nil {
		return res, fmt.Errorf("load active %s: %w", f.Name(), err)
	}

	toAdd, toRemove := Diff(existing, desired)
	if len(toRemove) > 0 {
		if err := f.Deactivate(ctx, parent, toRemove); err != nil {
			return res, fmt.Errorf("deactivate %s: %w", f.Name(), err)
		}
		res.Removed = toRemove
	}
	if len(toAdd) > 0 {
		if err := f.Insert(ctx, parent, toAdd); err != nil {
			return res, fmt.Errorf("insert %s: %w", f.Name(), err)
		}
		res.Added = toAdd
	}
	return res, nil
}

func toSet[K comparable](keys []K) map[K]struct{} {
	set := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
