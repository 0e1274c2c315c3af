package pipeline

import (
	"context"
	"log/slog"
	"time"

	"pressbot/internal/feeds"
	"pressbot/internal/model"
	"pressbot/internal/queue"
	"pressbot/internal/storage"
)

// maxFeedFailures opens the per-source circuit: the source is skipped
// for one cycle and its counter reset.
const maxFeedFailures = 3

// FeedReader is the ingestion contract; satisfied by *feeds.Fetcher.
type FeedReader interface {
	FetchAll(ctx context.Context, source model.FeedSource) ([]model.FeedItem, error)
}

// IngestorConfig configures one ingestion pass.
type IngestorConfig struct {
	Fetcher     FeedReader
	Store       storage.Storage
	Queue       *queue.Queue
	Log         *slog.Logger
	Sources     []model.FeedSource
	MaxPerCycle int
	MaxPerFeed  int
	FeedStagger time.Duration
}

// Ingestor polls all sources, persists unseen items, and feeds the
// queue. One Ingestor runs per process; cycles never overlap.
type Ingestor struct {
	fetcher     FeedReader
	store       storage.Storage
	queue       *queue.Queue
	log         *slog.Logger
	sources     []model.FeedSource
	maxPerCycle int
	maxPerFeed  int
	stagger     time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func NewIngestor(cfg IngestorConfig) *Ingestor {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	sources := cfg.Sources
	if sources == nil {
		sources = feeds.Sources()
	}
	return &Ingestor{
		fetcher:     cfg.Fetcher,
		store:       cfg.Store,
		queue:       cfg.Queue,
		log:         log,
		sources:     sources,
		maxPerCycle: cfg.MaxPerCycle,
		maxPerFeed:  cfg.MaxPerFeed,
		stagger:     cfg.FeedStagger,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RunCycle executes one ingestion pass: requeue leftovers, then poll
// every source in fixed order under the per-feed and per-cycle caps.
func (in *Ingestor) RunCycle(ctx context.Context) error {
	total := in.requeueLeftovers(ctx)

	for i, source := range in.sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if total >= in.maxPerCycle {
			in.log.Info("cycle cap reached", "admitted", total)
			break
		}
		if i > 0 {
			if err := in.sleep(ctx, in.stagger); err != nil {
				return err
			}
		}
		total += in.pollSource(ctx, source, in.maxPerCycle-total)
	}

	in.log.Info("ingestion cycle finished", "admitted", total, "queued", in.queue.Len())
	return nil
}

// requeueLeftovers re-admits articles stuck in QUEUED or NEW from a
// previous run. It only acts on an empty queue so live items are never
// duplicated.
func (in *Ingestor) requeueLeftovers(ctx context.Context) int {
	if in.queue.Len() > 0 {
		return 0
	}

	admitted := 0
	for _, status := range []model.Status{model.StatusQueued, model.StatusNew} {
		if admitted >= in.maxPerCycle {
			break
		}
		leftovers, err := in.store.ListByStatus(ctx, status, in.maxPerCycle-admitted)
		if err != nil {
			in.log.Warn("listing leftover articles failed", "status", status, "error", err)
			return admitted
		}
		for _, article := range leftovers {
			source, ok := feeds.SourceByID(article.SourceID)
			if !ok {
				in.log.Warn("leftover article from unknown source", "source_id", article.SourceID, "id", article.ID)
				continue
			}
			if !in.queue.TryPush(queue.Item{Article: article, Source: source}) {
				return admitted
			}
			if article.Status != model.StatusQueued {
				if err := in.store.SetStatus(ctx, article.ID, model.StatusQueued, ""); err != nil {
					in.log.Warn("marking article queued failed", "id", article.ID, "error", err)
				}
			}
			admitted++
		}
	}
	if admitted > 0 {
		in.log.Info("requeued leftover articles", "count", admitted)
	}
	return admitted
}

// pollSource fetches one source and admits up to budget new items,
// bounded by the per-feed cap. Returns the number admitted.
func (in *Ingestor) pollSource(ctx context.Context, source model.FeedSource, budget int) int {
	failures, err := in.store.FeedFailures(ctx, source.ID)
	if err != nil {
		in.log.Warn("reading feed failure counter failed", "source", source.ID, "error", err)
	}
	if failures >= maxFeedFailures {
		in.log.Warn("feed circuit open, skipping source this cycle",
			"source", source.ID, "consecutive_failures", failures)
		if err := in.store.ResetFeedFailures(ctx, source.ID); err != nil {
			in.log.Warn("resetting feed failure counter failed", "source", source.ID, "error", err)
		}
		return 0
	}

	items, err := in.fetcher.FetchAll(ctx, source)
	if err != nil {
		count, incErr := in.store.IncrementFeedFailures(ctx, source.ID)
		if incErr != nil {
			in.log.Warn("incrementing feed failure counter failed", "source", source.ID, "error", incErr)
		}
		in.log.Warn("feed fetch failed", "source", source.ID, "consecutive_failures", count, "error", err)
		return 0
	}
	if err := in.store.ResetFeedFailures(ctx, source.ID); err != nil {
		in.log.Warn("resetting feed failure counter failed", "source", source.ID, "error", err)
	}

	if budget > in.maxPerFeed {
		budget = in.maxPerFeed
	}
	admitted := 0
	for _, item := range items {
		article, inserted, err := in.store.InsertSeen(ctx, item)
		if err != nil {
			in.log.Warn("persisting feed item failed", "source", source.ID, "external_id", item.ExternalID, "error", err)
			continue
		}
		if !inserted {
			continue
		}
		// Rows over the cap, or facing a full queue, stay NEW and are
		// requeued by a later cycle.
		if admitted >= budget {
			continue
		}
		if !in.queue.TryPush(queue.Item{Article: *article, Source: source}) {
			continue
		}
		if err := in.store.SetStatus(ctx, article.ID, model.StatusQueued, ""); err != nil {
			in.log.Warn("marking article queued failed", "id", article.ID, "error", err)
		}
		admitted++
	}
	in.log.Info("source polled", "source", source.ID, "items", len(items), "admitted", admitted)
	return admitted
}
