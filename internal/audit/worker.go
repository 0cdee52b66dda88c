package audit

import (
	"context"
	"log/slog"
	"time"

	"compliance/internal/platform/metrics"
)

// OutboxStore is the read side of the version outbox.
type OutboxStore interface {
	FetchUnpublished(ctx context.Context, limit int) ([]Version, error)
	MarkPublished(ctx context.Context, ids []int64, at time.Time) error
}

// Publisher delivers versions downstream.
type Publisher interface {
	Publish(ctx context.Context, versions []Version) error
}

// Worker relays unpublished versions to the publisher. Delivery is at least
// once: a crash between publish and mark republishes the batch, and consumers
// dedupe on event_id.
type Worker struct {
	store     OutboxStore
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type WorkerOption func(*Worker)

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithWorkerMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

func NewWorker(store OutboxStore, publisher Publisher, interval time.Duration, batchSize int, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the outbox every interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.Drain(ctx); err != nil {
			w.logger.ErrorContext(ctx, "version outbox relay failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain publishes batches until the outbox is empty and returns how many
// versions were relayed.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		batch, err := w.store.FetchUnpublished(ctx, w.batchSize)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			return total, nil
		}
		if err := w.publisher.Publish(ctx, batch); err != nil {
			return total, err
		}
		ids := make([]int64, 0, len(batch))
		for _, v := range batch {
			ids = append(ids, v.ID)
		}
		if err := w.store.MarkPublished(ctx, ids, time.Now()); err != nil {
			return total, err
		}
		total += len(batch)
		w.metrics.AddVersionsPublished(len(batch))
		w.logger.DebugContext(ctx, "relayed record versions", "count", len(batch))
	}
}
