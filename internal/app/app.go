// Package app wires the pipeline together and runs it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pressbot/internal/ai"
	"pressbot/internal/config"
	"pressbot/internal/feeds"
	"pressbot/internal/keypool"
	"pressbot/internal/model"
	"pressbot/internal/pipeline"
	"pressbot/internal/queue"
	"pressbot/internal/ratelimit"
	"pressbot/internal/schedule"
	"pressbot/internal/storage"
	"pressbot/internal/tokenlog"
	"pressbot/internal/wordpress"
)

// queueCapacityFactor sizes the ingestion-to-worker buffer as a
// multiple of the per-cycle admission cap.
const queueCapacityFactor = 4

// App owns every long-lived component of the pipeline.
type App struct {
	cfg   *config.Config
	log   *slog.Logger
	store storage.Storage
	queue *queue.Queue

	ingestor  *pipeline.Ingestor
	processor *pipeline.Processor
	worker    *pipeline.Worker
	scheduler *schedule.Scheduler
}

// New builds the full pipeline from configuration. The caller owns
// Close.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	template, err := ai.LoadTemplate(cfg.PromptTemplatePath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load prompt template: %w", err)
	}

	generator := ai.NewClient(ai.ClientConfig{
		Pool:        keypool.New(cfg.GeminiKeys),
		Limiter:     ratelimit.New(cfg.AIMinInterval, cfg.AIJitterMax),
		Log:         log,
		Model:       cfg.ModelID,
		BackoffBase: cfg.BackoffBase,
		BackoffMax:  cfg.BackoffMax,
	})
	tracker := tokenlog.New(cfg.TokenLogDir, log)
	orchestrator := ai.NewOrchestrator(generator, template, tracker, log, cfg.ModelID, cfg.DebugDir)

	publisher := wordpress.NewClient(wordpress.ClientConfig{
		BaseURL:  cfg.WordPressURL,
		Username: cfg.WordPressUser,
		Password: cfg.WordPressPassword,
		Log:      log,
	})

	q := queue.New(queueCapacityFactor * cfg.MaxPerCycle)
	processor := pipeline.NewProcessor(pipeline.ProcessorConfig{
		Store:               store,
		Pages:               pipeline.NewPageFetcher(nil),
		Rewriter:            orchestrator,
		Publisher:           publisher,
		Queue:               q,
		Log:                 log,
		LinkMap:             pipeline.LoadLinkMap(cfg.LinkMapPath),
		ArticleSleep:        cfg.ArticleSleep,
		BetweenPublishDelay: cfg.BetweenPublishDelay,
	})

	ingestor := pipeline.NewIngestor(pipeline.IngestorConfig{
		Fetcher:     feeds.New(nil),
		Store:       store,
		Queue:       q,
		Log:         log,
		MaxPerCycle: cfg.MaxPerCycle,
		MaxPerFeed:  cfg.MaxPerFeedCycle,
		FeedStagger: cfg.FeedStagger,
	})

	app := &App{
		cfg:       cfg,
		log:       log,
		store:     store,
		queue:     q,
		ingestor:  ingestor,
		processor: processor,
		worker:    pipeline.NewWorker(q, processor, log, cfg.BetweenBatchDelay),
	}

	app.scheduler, err = schedule.New(cfg.CheckInterval, func(ctx context.Context) {
		if err := ingestor.RunCycle(ctx); err != nil && ctx.Err() == nil {
			log.Error("ingestion cycle failed", "error", err)
		}
	}, log)
	if err != nil {
		store.Close()
		return nil, err
	}
	return app, nil
}

// Run operates the pipeline until ctx is cancelled: the scheduler
// polls feeds, the worker drains the queue.
func (a *App) Run(ctx context.Context) error {
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- a.worker.Run(ctx)
	}()

	err := a.scheduler.Run(ctx)
	<-workerDone
	a.logSummary(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// RunOnce executes a single ingestion cycle, drains whatever it
// queued, and exits. Used by the --once flag.
func (a *App) RunOnce(ctx context.Context) error {
	if err := a.ingestor.RunCycle(ctx); err != nil {
		return err
	}

	// Bound the drain so items requeued by empty model slots cannot
	// spin the single pass forever.
	maxBatches := queueCapacityFactor * a.cfg.MaxPerCycle
	for drained := 0; a.queue.Len() > 0 && ctx.Err() == nil && drained < maxBatches; drained++ {
		batch := a.queue.PopBatch(ctx, 2, time.Second)
		if len(batch) == 0 {
			break
		}
		a.processor.ProcessBatch(ctx, batch)
	}
	a.logSummary(ctx)
	return ctx.Err()
}

func (a *App) logSummary(ctx context.Context) {
	counts, err := a.store.CountByStatus(context.WithoutCancel(ctx))
	if err != nil {
		a.log.Warn("reading status summary failed", "error", err)
		return
	}
	a.log.Info("pipeline summary",
		"new", counts[model.StatusNew],
		"queued", counts[model.StatusQueued],
		"processing", counts[model.StatusProcessing],
		"published", counts[model.StatusPublished],
		"failed", counts[model.StatusFailed],
	)
}

// Close releases held resources.
func (a *App) Close() error {
	return a.store.Close()
}
