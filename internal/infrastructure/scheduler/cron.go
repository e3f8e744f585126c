package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"LearningCurator/internal/ports"
	"LearningCurator/pkg/logger"
)

// CronScheduler fires jobs on a standard five-field cron expression.
type CronScheduler struct {
	spec     string
	location *time.Location
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler validates the expression up front so a typo fails startup
// instead of silently never firing.
func NewCronScheduler(spec string, loc *time.Location, log *slog.Logger) (*CronScheduler, error) {
	if _, err := parser().Parse(spec); err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{spec: spec, location: loc, logger: log}, nil
}

// Start registers job and starts the cron loop. Overlapping firings are
// skipped while a previous one is still running.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	cronLog := logger.NewCron(c.logger)
	cr := cron.New(
		cron.WithParser(parser()),
		cron.WithLocation(c.location),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	loc := c.location
	if _, err := cr.AddFunc(c.spec, func() { job(time.Now().In(loc)) }); err != nil {
		return fmt.Errorf("schedule %q: %w", c.spec, err)
	}

	cr.Start()
	c.cron = cr
	c.debug("cron scheduler started", "spec", c.spec, "next", c.nextLocked())

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			_ = c.Stop(context.Background())
		}()
	}

	return nil
}

// Stop halts the cron loop and waits for a running job, bounded by ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	cr := c.cron
	c.cron = nil
	c.mu.Unlock()

	if cr == nil {
		return nil
	}

	done := cr.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next reports the upcoming firing time, or zero when not started.
func (c *CronScheduler) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextLocked()
}

func (c *CronScheduler) nextLocked() time.Time {
	if c.cron == nil {
		return time.Time{}
	}
	entries := c.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (c *CronScheduler) debug(msg string, args ...interface{}) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, args...)
}

func parser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}
