// Package schedule runs the ingestion cycle on a cron cadence.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

// Publication window, in the site's local time.
const (
	timezone  = "America/Sao_Paulo"
	firstHour = 9
	lastHour  = 18
)

// Job is one ingestion pass. Overlapping runs are skipped.
type Job func(ctx context.Context)

// Scheduler triggers the job immediately and then on a cron cadence
// inside the publication window.
type Scheduler struct {
	cron *cron.Cron
	spec string
	job  Job
	log  *slog.Logger
}

func New(interval time.Duration, job Job, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", timezone, err)
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		spec: Spec(interval),
		job:  job,
		log:  log,
	}, nil
}

// Spec renders the cron expression for the given polling interval,
// clamped to a whole number of minutes inside the hour.
func Spec(interval time.Duration) string {
	minutes := int(interval.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	if minutes > 59 {
		minutes = 59
	}
	return fmt.Sprintf("*/%d %d-%d * * *", minutes, firstHour, lastHour)
}

// Run executes one immediate pass, then follows the cron cadence until
// ctx is cancelled. A running pass finishes before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler starting", "spec", s.spec, "timezone", timezone)
	s.job(ctx)

	if _, err := s.cron.AddFunc(s.spec, func() {
		if ctx.Err() != nil {
			return
		}
		s.job(ctx)
	}); err != nil {
		return fmt.Errorf("register cron job %q: %w", s.spec, err)
	}
	s.cron.Start()

	<-ctx.Done()
	<-s.cron.Stop().Done()
	return ctx.Err()
}
