package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Flugers27/Memory-book/cmd/internal/telemetry"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the expiry sweep hourly.
const DefaultSweepSchedule = "@every 1h"

// Expirer deletes expired sessions. *Service implements it.
type Expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Sweeper runs DeleteExpired on a cron schedule. Missing a run only leaves
// dead rows behind; refresh already rejects expired sessions.
type Sweeper struct {
	target   Expirer
	schedule string
	timeout  time.Duration
	log      *slog.Logger
	metrics  *telemetry.Metrics
}

// NewSweeper validates schedule and returns a Sweeper.
func NewSweeper(target Expirer, schedule string, log *slog.Logger, m *telemetry.Metrics) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("session: sweep schedule %q: %w", schedule, err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{target: target, schedule: schedule, timeout: time.Minute, log: log, metrics: m}, nil
}

// SweepOnce runs one sweep.
func (w *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	n, err := w.target.DeleteExpired(ctx)
	if err != nil {
		w.log.Error("session.sweep.fail", "err", err)
		return 0, err
	}
	w.metrics.Swept(n)
	w.log.Info("session.sweep.ok", "deleted", n)
	return n, nil
}

// Run schedules sweeps until ctx is done, then waits for a running sweep to finish.
func (w *Sweeper) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(w.schedule, func() { _, _ = w.SweepOnce(ctx) }); err != nil {
		return err
	}

	c.Start()
	w.log.Info("session.sweep.scheduled", "schedule", w.schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
