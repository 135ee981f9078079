// Package worker claims queued jobs and drives them through the pipeline.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pinksync/internal/cache"
	applog "pinksync/internal/logger"
	"pinksync/internal/messaging"
	"pinksync/internal/models"
	"pinksync/internal/pipeline"
	"pinksync/internal/queue"
	"pinksync/internal/repository"
	"pinksync/internal/retry"
)

// Outcome is what happened on one ProcessNext call.
type Outcome int

const (
	// OutcomeIdle means nothing was claimed.
	OutcomeIdle Outcome = iota
	// OutcomeAbandoned means an entry was claimed but its record could not be
	// taken over, or was taken over by someone else before completion.
	OutcomeAbandoned
	OutcomeCompleted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeAbandoned:
		return "abandoned"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Runner executes the generation stages for a job.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job, onProgress pipeline.ProgressFunc) (*models.Artifact, error)
}

// Deps are the collaborators shared by every worker in a pool.
type Deps struct {
	Queue    queue.Queue
	Store    repository.JobStatusRepository
	Cache    cache.FingerprintCache
	InFlight cache.InFlightRegistry // optional
	Pipeline Runner
	Events   messaging.JobEventPublisher // optional
}

// Worker processes one job at a time.
type Worker struct {
	id     int
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
}

func NewWorker(id int, deps Deps, logger *zap.Logger) *Worker {
	if deps.Events == nil {
		deps.Events = messaging.NoopPublisher{}
	}
	return &Worker{
		id:     id,
		deps:   deps,
		logger: logger.Named("Worker").With(zap.Int(applog.FieldWorkerID, id)),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ProcessNext claims the head of the queue and runs it to a terminal state.
// The returned error is only set for infrastructure problems; stage failures
// are reported as OutcomeFailed with a nil error.
func (w *Worker) ProcessNext(ctx context.Context) (Outcome, error) {
	entry, err := w.deps.Queue.ClaimNext(ctx)
	if err != nil {
		if errors.Is(err, models.ErrQueueEmpty) {
			return OutcomeIdle, nil
		}
		return OutcomeIdle, fmt.Errorf("failed to claim from queue: %w", err)
	}
	claimsTotal.Inc()

	log := applog.ForJob(w.logger, entry.JobID, entry.Fingerprint)

	rec, err := w.deps.Store.MarkProcessing(ctx, entry.JobID)
	switch {
	case errors.Is(err, models.ErrClaimConflict):
		log.Info("Job already taken over, abandoning entry", zap.Error(err))
		return w.finish(OutcomeAbandoned), nil
	case errors.Is(err, models.ErrNotFound):
		log.Warn("Queued job has no record, abandoning entry")
		return w.finish(OutcomeAbandoned), nil
	case err != nil:
		log.Error("Failed to mark job processing, returning entry to queue", zap.Error(err))
		if pushErr := w.deps.Queue.Requeue(ctx, *entry); pushErr != nil {
			log.Error("Failed to return entry to queue", zap.Error(pushErr))
		}
		return w.finish(OutcomeAbandoned), fmt.Errorf("failed to mark job %s processing: %w", entry.JobID, err)
	}
	w.publish(ctx, rec, log)

	activeJobs.Inc()
	defer activeJobs.Dec()

	job := pipeline.Job{ID: entry.JobID, Fingerprint: entry.Fingerprint, Request: entry.Request}
	artifact, runErr := w.deps.Pipeline.Run(ctx, job, w.progressReporter(rec, log))
	if runErr != nil {
		return w.fail(ctx, entry.JobID, entry.Fingerprint, runErr, log), nil
	}
	return w.complete(ctx, entry.JobID, entry.Fingerprint, *artifact, log), nil
}

func (w *Worker) progressReporter(rec *models.JobStatusRecord, log *zap.Logger) pipeline.ProgressFunc {
	snapshot := *rec
	return func(ctx context.Context, stage string, progress int) {
		if err := w.deps.Store.UpdateProgress(ctx, snapshot.JobID, progress, stage); err != nil {
			log.Warn("Failed to write progress", zap.String(applog.FieldStage, stage), zap.Int("progress", progress), zap.Error(err))
			return
		}
		snapshot.Progress = progress
		snapshot.Stage = stage
		w.publish(ctx, &snapshot, log)
	}
}

func (w *Worker) complete(ctx context.Context, jobID, fp string, artifact models.Artifact, log *zap.Logger) Outcome {
	rec, err := w.deps.Store.Complete(ctx, jobID, artifact)
	if err != nil {
		w.release(ctx, fp, jobID, log)
		if errors.Is(err, models.ErrInvalidTransition) || errors.Is(err, models.ErrNotFound) {
			log.Warn("Job was finalized elsewhere before completion, discarding artifact", zap.Error(err))
		} else {
			log.Error("Failed to complete job", zap.Error(err))
		}
		return w.finish(OutcomeAbandoned)
	}

	if err := w.deps.Cache.Put(ctx, fp, artifact); err != nil {
		log.Warn("Failed to cache artifact", zap.Error(err))
	}
	w.release(ctx, fp, jobID, log)
	log.Info("Job completed", zap.String("artifact_ref", artifact.ArtifactRef))
	w.publish(ctx, rec, log)
	return w.finish(OutcomeCompleted)
}

func (w *Worker) fail(ctx context.Context, jobID, fp string, runErr error, log *zap.Logger) Outcome {
	stage := "pipeline"
	var stageErr *models.StageError
	if errors.As(runErr, &stageErr) {
		stage = stageErr.Stage
	}
	stageFailures.WithLabelValues(stage).Inc()

	rec, err := w.deps.Store.Fail(ctx, jobID, runErr.Error())
	w.release(ctx, fp, jobID, log)
	if err != nil {
		log.Error("Failed to mark job failed", zap.NamedError("run_error", runErr), zap.Error(err))
		return w.finish(OutcomeAbandoned)
	}
	log.Warn("Job failed", zap.String(applog.FieldStage, stage), zap.Error(runErr))
	w.publish(ctx, rec, log)
	return w.finish(OutcomeFailed)
}

func (w *Worker) release(ctx context.Context, fp, jobID string, log *zap.Logger) {
	if w.deps.InFlight == nil {
		return
	}
	if err := w.deps.InFlight.Release(ctx, fp, jobID); err != nil {
		log.Warn("Failed to release in-flight slot", zap.Error(err))
	}
}

func (w *Worker) publish(ctx context.Context, rec *models.JobStatusRecord, log *zap.Logger) {
	if err := w.deps.Events.PublishJobEvent(ctx, models.EventFromRecord(rec, w.now())); err != nil {
		log.Warn("Failed to publish job event", zap.String("state", string(rec.State)), zap.Error(err))
	}
}

func (w *Worker) finish(o Outcome) Outcome {
	jobsTotal.WithLabelValues(o.String()).Inc()
	return o
}

// Run processes jobs until ctx is done. An empty queue or an infrastructure
// error backs off from pollInterval up to maxBackoff; any claimed job resets
// the backoff. A job in progress when ctx ends still runs to completion.
func (w *Worker) Run(ctx context.Context, pollInterval, maxBackoff time.Duration) error {
	w.logger.Info("Worker started")
	defer w.logger.Info("Worker stopped")

	idle := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		outcome, err := w.ProcessNext(context.WithoutCancel(ctx))
		if err != nil {
			w.logger.Error("Worker iteration failed", zap.Error(err))
		}
		if outcome != OutcomeIdle && err == nil {
			idle = 0
			continue
		}
		idle++
		if err := retry.Sleep(ctx, retry.Backoff(pollInterval, maxBackoff, idle)); err != nil {
			return nil
		}
	}
}
