// Package audit keeps the append-only version history of lifecycle entities and
// relays it to Kafka through a transactional outbox. Business logic only calls
// Recorder.RecordVersion and works unchanged with a nil recorder.
package audit

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Operation is the kind of write a version captures.
type Operation string

const (
	OperationInsert Operation = "INSERT"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// Version is one immutable history row.
type Version struct {
	ID            int64           `json:"-"`
	EventID       uuid.UUID       `json:"event_id"`
	Entity        string          `json:"entity"`
	EntityID      int64           `json:"entity_id"`
	Operation     Operation       `json:"operation"`
	Changed       []string        `json:"changed"`
	Snapshot      json.RawMessage `json:"snapshot"`
	TransactionID int64           `json:"transaction_id"`
	Actor         string          `json:"actor"`
	RecordedAt    time.Time       `json:"recorded_at"`
	PublishedAt   *time.Time      `json:"-"`
}

// Recorder appends versions inside the caller's transaction.
type Recorder interface {
	RecordVersion(ctx context.Context, v Version) error
}

// Record is the nil-safe entry point used by services.
func Record(ctx context.Context, r Recorder, entity string, id int64, op Operation, before, after any) error {
	if r == nil {
		return nil
	}
	snapshot, err := json.Marshal(after)
	if err != nil {
		return err
	}
	return r.RecordVersion(ctx, Version{
		Entity:    entity,
		EntityID:  id,
		Operation: op,
		Changed:   ChangedFields(before, after),
		Snapshot:  snapshot,
	})
}

// ChangedFields lists the top-level JSON fields whose values differ. With a nil
// before, every field of after counts as changed.
func ChangedFields(before, after any) []string {
	prev := flatten(before)
	next := flatten(after)
	var changed []string
	for k, v := range next {
		if old, ok := prev[k]; !ok || string(old) != string(v) {
			changed = append(changed, k)
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

func flatten(v any) map[string]json.RawMessage {
	out := map[string]json.RawMessage{}
	if v == nil {
		return out
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}
