package worker

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PoolConfig sizes the pool and its idle backoff.
type PoolConfig struct {
	Concurrency  int
	PollInterval time.Duration
	MaxBackoff   time.Duration
}

// Pool runs a fixed number of workers over shared dependencies.
type Pool struct {
	cfg     PoolConfig
	workers []*Worker
	logger  *zap.Logger
}

func NewPool(cfg PoolConfig, deps Deps, logger *zap.Logger) *Pool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.PollInterval {
		cfg.MaxBackoff = cfg.PollInterval
	}
	p := &Pool{cfg: cfg, logger: logger.Named("WorkerPool")}
	for i := range cfg.Concurrency {
		p.workers = append(p.workers, NewWorker(i+1, deps, logger))
	}
	return p
}

// Run blocks until ctx is done. Jobs already running are finished first.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("Starting worker pool", zap.Int("concurrency", len(p.workers)))
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error {
			return w.Run(gctx, p.cfg.PollInterval, p.cfg.MaxBackoff)
		})
	}
	err := g.Wait()
	p.logger.Info("Worker pool stopped")
	return err
}

// BatchResult summarizes one ProcessBatch call.
type BatchResult struct {
	Processed  int   `json:"processed"`
	Completed  int   `json:"completed"`
	Failed     int   `json:"failed"`
	Abandoned  int   `json:"abandoned"`
	DurationMs int64 `json:"durationMs"`
	QueueEmpty bool  `json:"queueEmpty"`
}

// ProcessBatch drains the queue with every worker in the pool until maxJobs
// entries were processed, the queue is empty or maxDuration has elapsed. The
// deadline is only checked before a claim, so a running job is never cut
// short and the call can overrun maxDuration by one job. An infrastructure
// error from any worker stops the batch and is returned with the partial
// result.
func (p *Pool) ProcessBatch(ctx context.Context, maxJobs int, maxDuration time.Duration) (BatchResult, error) {
	start := time.Now()
	deadline := start.Add(maxDuration)
	log := p.logger.With(zap.Int("max_jobs", maxJobs), zap.Duration("max_duration", maxDuration))
	log.Info("Batch started")

	var (
		slots      atomic.Int64
		stop       atomic.Bool
		queueEmpty atomic.Bool
		completed  atomic.Int64
		failed     atomic.Int64
		abandoned  atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error {
			for !stop.Load() && gctx.Err() == nil {
				if !time.Now().Before(deadline) {
					stop.Store(true)
					return nil
				}
				if slots.Add(1) > int64(maxJobs) {
					stop.Store(true)
					return nil
				}
				outcome, err := w.ProcessNext(context.WithoutCancel(gctx))
				if err != nil {
					// The entry, if any, went back to the queue unprocessed.
					slots.Add(-1)
					stop.Store(true)
					return err
				}
				switch outcome {
				case OutcomeIdle:
					slots.Add(-1)
					queueEmpty.Store(true)
					stop.Store(true)
				case OutcomeCompleted:
					completed.Add(1)
				case OutcomeFailed:
					failed.Add(1)
				case OutcomeAbandoned:
					abandoned.Add(1)
				}
			}
			return nil
		})
	}
	err := g.Wait()

	res := BatchResult{
		Completed:  int(completed.Load()),
		Failed:     int(failed.Load()),
		Abandoned:  int(abandoned.Load()),
		DurationMs: time.Since(start).Milliseconds(),
		QueueEmpty: queueEmpty.Load(),
	}
	res.Processed = res.Completed + res.Failed + res.Abandoned
	batchRunsTotal.Inc()
	batchJobsProcessed.Observe(float64(res.Processed))

	if err != nil {
		log.Error("Batch stopped on error", zap.Int("processed", res.Processed), zap.Error(err))
		return res, err
	}
	log.Info("Batch finished",
		zap.Int("processed", res.Processed),
		zap.Int("completed", res.Completed),
		zap.Int("failed", res.Failed),
		zap.Int("abandoned", res.Abandoned),
		zap.Bool("queue_empty", res.QueueEmpty),
		zap.Int64("duration_ms", res.DurationMs),
	)
	return res, nil
}
