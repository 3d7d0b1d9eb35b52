package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"findash/internal/amqp"
	"findash/internal/cache"
	"findash/internal/pipeline"
	"findash/internal/storage"
)

// Snapshotter is the part of the loader a refresh touches.
type Snapshotter interface {
	Invalidate()
	Refresh(ctx context.Context) (*pipeline.Dataset, error)
}

// Forgetter drops memoized derived results after a refresh.
type Forgetter interface {
	Forget()
}

// RefreshLog records processed requests. RecordRefresh reports false for an
// ID that was already recorded.
type RefreshLog interface {
	SeenRefresh(ctx context.Context, id string) (bool, error)
	RecordRefresh(ctx context.Context, rec storage.RefreshRecord) (bool, error)
}

const seenTTL = 15 * time.Minute

// RefreshWorker applies refresh requests from the bus to the local snapshot.
type RefreshWorker struct {
	loader    Snapshotter
	forgetter Forgetter
	log       RefreshLog
	seen      *cache.LRUCache[time.Time]
	now       func() time.Time
}

// NewRefreshWorker returns a worker. forgetter and log may be nil.
func NewRefreshWorker(loader Snapshotter, forgetter Forgetter, log RefreshLog) *RefreshWorker {
	return &RefreshWorker{
		loader:    loader,
		forgetter: forgetter,
		log:       log,
		seen:      cache.NewLRUCache[time.Time](256, seenTTL),
		now:       time.Now,
	}
}

// Seen exposes the redelivery filter for periodic cleanup.
func (w *RefreshWorker) Seen() *cache.LRUCache[time.Time] { return w.seen }

// HandleRefresh invalidates the snapshot and reloads it. Redelivered
// requests are acknowledged without reloading. A failed reload is logged and
// recorded but not retried: the next read reloads anyway.
func (w *RefreshWorker) HandleRefresh(ctx context.Context, msg *amqp.RefreshRequest) error {
	if dup, err := w.duplicate(ctx, msg.ID); err != nil {
		return err
	} else if dup {
		slog.InfoContext(ctx, "Skipping duplicate refresh request", "id", msg.ID)
		return nil
	}

	slog.InfoContext(ctx, "Processing refresh request",
		"id", msg.ID,
		"reason", msg.Reason,
		"requested_at", msg.RequestedAt)

	w.loader.Invalidate()
	if w.forgetter != nil {
		w.forgetter.Forget()
	}

	rec := storage.RefreshRecord{
		RequestID:   msg.ID,
		Reason:      msg.Reason,
		RequestedAt: msg.RequestedAt,
	}
	ds, err := w.loader.Refresh(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Reload after refresh request failed", "id", msg.ID, "error", err)
		rec.Error = err.Error()
	} else {
		rec.DatasetID = ds.ID
	}
	rec.ProcessedAt = w.now()
	w.seen.Set(msg.ID, rec.ProcessedAt)

	if w.log != nil {
		if _, err := w.log.RecordRefresh(ctx, rec); err != nil {
			return fmt.Errorf("record refresh: %w", err)
		}
	}
	return nil
}

func (w *RefreshWorker) duplicate(ctx context.Context, id string) (bool, error) {
	if _, ok := w.seen.Get(id); ok {
		return true, nil
	}
	if w.log == nil {
		return false, nil
	}
	seen, err := w.log.SeenRefresh(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check refresh log: %w", err)
	}
	return seen, nil
}
