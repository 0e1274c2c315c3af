package pipeline

import (
	"context"
	"log/slog"
	"time"

	"pressbot/internal/queue"
)

const (
	// batchSize is how many items share one model call.
	batchSize = 2
	// batchWait is how long the worker gathers a batch after the first
	// item arrives.
	batchWait = 3 * time.Minute
	// maxRequestsPerCycle caps processed items before a forced pause.
	maxRequestsPerCycle = 10
	// pauseOnLimit is the forced pause once the request budget is spent.
	pauseOnLimit = 5 * time.Minute
	// idleReset clears the request budget after a quiet stretch.
	idleReset = time.Minute
)

// BatchProcessor consumes one popped batch; satisfied by *Processor.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, items []queue.Item)
}

// Worker is the single queue consumer. It batches items, enforces the
// request budget, and spaces batches out.
type Worker struct {
	queue    *queue.Queue
	proc     BatchProcessor
	log      *slog.Logger
	between  time.Duration
	wait     time.Duration
	requests int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewWorker(q *queue.Queue, proc BatchProcessor, log *slog.Logger, betweenBatchDelay time.Duration) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		queue:   q,
		proc:    proc,
		log:     log,
		between: betweenBatchDelay,
		wait:    batchWait,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Run consumes the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	lastBatch := w.now()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if w.requests >= maxRequestsPerCycle {
			w.log.Info("request budget spent, pausing", "requests", w.requests, "pause", pauseOnLimit)
			if err := w.sleep(ctx, pauseOnLimit); err != nil {
				return err
			}
			w.requests = 0
		}

		batch := w.queue.PopBatch(ctx, batchSize, w.wait)
		if len(batch) == 0 {
			continue
		}
		if w.now().Sub(lastBatch) > idleReset {
			w.requests = 0
		}
		lastBatch = w.now()

		w.requests += len(batch)
		w.log.Info("processing batch", "size", len(batch), "requests_this_cycle", w.requests)
		w.proc.ProcessBatch(ctx, batch)

		if err := w.sleep(ctx, w.between); err != nil {
			return err
		}
	}
}
