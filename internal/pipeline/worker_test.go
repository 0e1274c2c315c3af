package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"pressbot/internal/model"
	"pressbot/internal/queue"
)

type countingProcessor struct {
	batches [][]queue.Item
	stopAt  int
	cancel  context.CancelFunc
}

func (c *countingProcessor) ProcessBatch(_ context.Context, items []queue.Item) {
	c.batches = append(c.batches, items)
	if len(c.batches) >= c.stopAt {
		c.cancel()
	}
}

func TestWorkerProcessesBatches(t *testing.T) {
	q := queue.New(8)
	ctx, cancel := context.WithCancel(context.Background())
	proc := &countingProcessor{stopAt: 2, cancel: cancel}
	w := NewWorker(q, proc, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	w.wait = 10 * time.Millisecond
	w.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	for i := int64(1); i <= 3; i++ {
		q.TryPush(queue.Item{Article: model.SeenArticle{ID: i}})
	}

	err := w.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}

	// Two items share the first batch; the third arrives alone.
	if len(proc.batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(proc.batches))
	}
	if len(proc.batches[0]) != 2 || len(proc.batches[1]) != 1 {
		t.Errorf("batch sizes = %d,%d want 2,1", len(proc.batches[0]), len(proc.batches[1]))
	}
	if proc.batches[0][0].Article.ID != 1 {
		t.Errorf("first item ID = %d, want 1", proc.batches[0][0].Article.ID)
	}
}

func TestWorkerPausesOnRequestBudget(t *testing.T) {
	q := queue.New(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proc := &countingProcessor{stopAt: 1000, cancel: cancel}
	w := NewWorker(q, proc, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	w.requests = maxRequestsPerCycle

	var paused time.Duration
	w.sleep = func(_ context.Context, d time.Duration) error {
		paused = d
		return context.Canceled
	}
	w.now = func() time.Time { return time.Unix(0, 0) }

	err := w.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
	if paused != pauseOnLimit {
		t.Errorf("pause = %v, want %v", paused, pauseOnLimit)
	}
	if len(proc.batches) != 0 {
		t.Errorf("no batch should run before the pause, got %d", len(proc.batches))
	}
}

func TestWorkerBudgetCountsItems(t *testing.T) {
	q := queue.New(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proc := &countingProcessor{stopAt: 1000, cancel: cancel}
	w := NewWorker(q, proc, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	w.wait = 10 * time.Millisecond
	w.requests = maxRequestsPerCycle - 2
	w.now = func() time.Time { return time.Unix(0, 0) }

	var paused time.Duration
	w.sleep = func(_ context.Context, d time.Duration) error {
		if d == pauseOnLimit {
			paused = d
			return context.Canceled
		}
		return nil
	}

	q.TryPush(queue.Item{Article: model.SeenArticle{ID: 1}})
	q.TryPush(queue.Item{Article: model.SeenArticle{ID: 2}})

	err := w.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}

	// A two item batch spends the last two slots of the budget.
	if len(proc.batches) != 1 || len(proc.batches[0]) != 2 {
		t.Fatalf("batches = %d, want one batch of two items", len(proc.batches))
	}
	if paused != pauseOnLimit {
		t.Errorf("pause = %v, want %v", paused, pauseOnLimit)
	}
	if w.requests != maxRequestsPerCycle {
		t.Errorf("requests = %d, want %d", w.requests, maxRequestsPerCycle)
	}
}
