// Package reaper fails jobs that stopped making progress and purges old
// terminal records.
package reaper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	applog "pinksync/internal/logger"
	"pinksync/internal/messaging"
	"pinksync/internal/models"
	"pinksync/internal/repository"
)

// Config selects which sweeps run. A zero duration disables its sweep.
type Config struct {
	Interval             time.Duration
	StaleJobTimeout      time.Duration
	OrphanPendingTimeout time.Duration
	JobRetention         time.Duration
}

// Enabled reports whether any sweep is configured.
func (c Config) Enabled() bool {
	return c.StaleJobTimeout > 0 || c.OrphanPendingTimeout > 0 || c.JobRetention > 0
}

// Result counts what one sweep changed.
type Result struct {
	Stale    int
	Orphaned int
	Purged   int64
}

type Reaper struct {
	cfg    Config
	store  repository.JobStatusRepository
	events messaging.JobEventPublisher
	logger *zap.Logger
	now    func() time.Time
}

func New(cfg Config, store repository.JobStatusRepository, events messaging.JobEventPublisher, logger *zap.Logger) *Reaper {
	if events == nil {
		events = messaging.NoopPublisher{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Reaper{
		cfg:    cfg,
		store:  store,
		events: events,
		logger: logger.Named("Reaper"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps every Interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	if !r.cfg.Enabled() {
		r.logger.Info("Reaper disabled")
		return
	}
	r.logger.Info("Reaper started",
		zap.Duration("interval", r.cfg.Interval),
		zap.Duration("stale_job_timeout", r.cfg.StaleJobTimeout),
		zap.Duration("orphan_pending_timeout", r.cfg.OrphanPendingTimeout),
		zap.Duration("job_retention", r.cfg.JobRetention),
	)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reaper stopped")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error("Sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs every enabled sweep once. It stops at the first store error.
func (r *Reaper) Sweep(ctx context.Context) (Result, error) {
	var res Result
	now := r.now()

	if r.cfg.StaleJobTimeout > 0 {
		failed, err := r.store.FailStale(ctx, models.StateProcessing, now.Add(-r.cfg.StaleJobTimeout),
			fmt.Sprintf("stale: no progress for %s", r.cfg.StaleJobTimeout))
		if err != nil {
			return res, fmt.Errorf("failed to fail stale jobs: %w", err)
		}
		res.Stale = len(failed)
		r.announce(ctx, failed)
	}

	if r.cfg.OrphanPendingTimeout > 0 {
		failed, err := r.store.FailStale(ctx, models.StatePending, now.Add(-r.cfg.OrphanPendingTimeout),
			fmt.Sprintf("stale: not claimed within %s", r.cfg.OrphanPendingTimeout))
		if err != nil {
			return res, fmt.Errorf("failed to fail orphaned jobs: %w", err)
		}
		res.Orphaned = len(failed)
		r.announce(ctx, failed)
	}

	if r.cfg.JobRetention > 0 {
		n, err := r.store.DeleteTerminalBefore(ctx, now.Add(-r.cfg.JobRetention))
		if err != nil {
			return res, fmt.Errorf("failed to purge old jobs: %w", err)
		}
		res.Purged = n
	}

	if res.Stale > 0 || res.Orphaned > 0 || res.Purged > 0 {
		r.logger.Info("Sweep finished",
			zap.Int("stale", res.Stale),
			zap.Int("orphaned", res.Orphaned),
			zap.Int64("purged", res.Purged),
		)
	}
	return res, nil
}

func (r *Reaper) announce(ctx context.Context, recs []*models.JobStatusRecord) {
	for _, rec := range recs {
		log := applog.ForJob(r.logger, rec.JobID, rec.Fingerprint)
		log.Warn("Job failed by reaper", zap.String("error_detail", rec.ErrorDetail))
		if err := r.events.PublishJobEvent(ctx, models.EventFromRecord(rec, r.now())); err != nil {
			log.Warn("Failed to publish job event", zap.Error(err))
		}
	}
}
