// Package service implements the submission side of the job system.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"pinksync/internal/cache"
	"pinksync/internal/fingerprint"
	applog "pinksync/internal/logger"
	"pinksync/internal/messaging"
	"pinksync/internal/models"
	"pinksync/internal/queue"
	"pinksync/internal/repository"
)

// DispatcherConfig holds request policy.
type DispatcherConfig struct {
	// SupportedVariants restricts TargetVariant when non-empty.
	SupportedVariants []string
}

// Dispatcher validates submissions, answers them from the cache when it can
// and otherwise records and enqueues a new job.
type Dispatcher struct {
	cfg      DispatcherConfig
	store    repository.JobStatusRepository
	queue    queue.Queue
	cache    cache.FingerprintCache
	inflight cache.InFlightRegistry
	events   messaging.JobEventPublisher
	prefs    repository.RequesterPreferencesRepository
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// DispatcherOption configures optional Dispatcher collaborators.
type DispatcherOption func(*Dispatcher)

// WithPreferences makes Submit fill blank request fields from the
// requester's stored preferences.
func WithPreferences(repo repository.RequesterPreferencesRepository) DispatcherOption {
	return func(d *Dispatcher) {
		d.prefs = repo
	}
}

// NewDispatcher builds a Dispatcher. inflight and events may be nil.
func NewDispatcher(
	cfg DispatcherConfig,
	store repository.JobStatusRepository,
	q queue.Queue,
	c cache.FingerprintCache,
	inflight cache.InFlightRegistry,
	events messaging.JobEventPublisher,
	logger *zap.Logger,
	opts ...DispatcherOption,
) *Dispatcher {
	if events == nil {
		events = messaging.NoopPublisher{}
	}
	d := &Dispatcher{
		cfg:      cfg,
		store:    store,
		queue:    q,
		cache:    c,
		inflight: inflight,
		events:   events,
		logger:   logger.Named("Dispatcher"),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// maxAcquireAttempts bounds how often a stale in-flight slot is replaced
// during one submission.
const maxAcquireAttempts = 3

// Submit accepts a generation request. A cache hit returns the artifact
// without creating a job. Otherwise a Pending record is stored and an entry
// pushed onto the queue; if the push fails the record is removed again.
// Fields the request leaves blank come from the requester's preferences
// first and service defaults second.
func (d *Dispatcher) Submit(ctx context.Context, raw models.GenerationRequest) (*models.SubmitResult, error) {
	req := d.resolvePreferences(ctx, raw).Normalize()
	if err := req.Validate(d.cfg.SupportedVariants); err != nil {
		submissionsTotal.WithLabelValues(outcomeInvalid).Inc()
		return nil, err
	}

	fp := fingerprint.Of(req)
	log := applog.ForJob(d.logger, "", fp).With(zap.String("requester_id", req.RequesterID))

	artifact, hit, err := d.cache.Get(ctx, fp)
	if err != nil {
		log.Warn("Cache lookup failed, treating as miss", zap.Error(err))
	} else if hit {
		submissionsTotal.WithLabelValues(outcomeCacheHit).Inc()
		log.Info("Submission served from cache", zap.String("artifact_ref", artifact.ArtifactRef))
		return &models.SubmitResult{
			State:        models.StateCompleted,
			Progress:     100,
			ArtifactRef:  artifact.ArtifactRef,
			ThumbnailRef: artifact.ThumbnailRef,
			Cached:       true,
		}, nil
	}

	jobID := d.newID()
	rec := models.NewPendingRecord(jobID, fp, req, d.now())
	if err := d.store.Create(ctx, rec); err != nil {
		submissionsTotal.WithLabelValues(outcomeError).Inc()
		log.Error("Failed to create job record", zap.String("job_id", jobID), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to create job record: %w", models.ErrTransientInfra, err)
	}

	// The slot is taken only once the record exists, so a holder without a
	// record is always stale.
	if d.inflight != nil {
		existing, err := d.joinInFlight(ctx, fp, jobID, log)
		if err != nil || existing != nil {
			d.discard(ctx, jobID, log)
		}
		if err != nil {
			submissionsTotal.WithLabelValues(outcomeError).Inc()
			return nil, err
		}
		if existing != nil {
			submissionsTotal.WithLabelValues(outcomeDeduplicated).Inc()
			log.Info("Submission joined in-flight job", zap.String("job_id", existing.JobID))
			return &models.SubmitResult{
				JobID:            existing.JobID,
				State:            existing.State,
				Progress:         existing.Progress,
				EstimatedSeconds: existing.EstimatedSeconds,
				Deduplicated:     true,
			}, nil
		}
	}

	entry := models.QueueEntry{
		JobID:        jobID,
		Fingerprint:  fp,
		Request:      req,
		PriorityTier: req.QualityTier.PriorityTier(),
		EnqueuedAt:   rec.CreatedAt,
	}
	if err := d.queue.Push(ctx, entry); err != nil {
		submissionsTotal.WithLabelValues(outcomeError).Inc()
		return nil, d.rollback(ctx, rec, err, log)
	}

	submissionsTotal.WithLabelValues(outcomeQueued).Inc()
	log.Info("Job queued",
		zap.String("job_id", jobID),
		zap.Int("priority_tier", int(entry.PriorityTier)),
		zap.Int("estimated_seconds", rec.EstimatedSeconds),
	)
	if err := d.events.PublishJobEvent(ctx, models.EventFromRecord(rec, d.now())); err != nil {
		log.Warn("Failed to publish job event", zap.String("job_id", jobID), zap.Error(err))
	}

	return &models.SubmitResult{
		JobID:            jobID,
		State:            rec.State,
		Progress:         rec.Progress,
		EstimatedSeconds: rec.EstimatedSeconds,
	}, nil
}

// joinInFlight claims fp for jobID. It returns the record of a live job that
// already produces fp, or nil when jobID now holds the slot.
func (d *Dispatcher) joinInFlight(ctx context.Context, fp, jobID string, log *zap.Logger) (*models.JobStatusRecord, error) {
	for range maxAcquireAttempts {
		holder, acquired, err := d.inflight.Acquire(ctx, fp, jobID)
		if err != nil {
			// Dedupe is best effort; fall through to a normal submission.
			log.Warn("In-flight registry unavailable", zap.Error(err))
			return nil, nil
		}
		if acquired {
			return nil, nil
		}

		rec, err := d.store.Get(ctx, holder)
		switch {
		case err == nil && !rec.State.IsTerminal():
			return rec, nil
		case err != nil && !errors.Is(err, models.ErrNotFound):
			return nil, fmt.Errorf("%w: failed to read in-flight job: %w", models.ErrTransientInfra, err)
		}
		log.Debug("Replacing stale in-flight slot", zap.String("stale_job_id", holder))
		if err := d.inflight.Release(ctx, fp, holder); err != nil {
			log.Warn("Failed to release stale in-flight slot", zap.String("stale_job_id", holder), zap.Error(err))
			return nil, nil
		}
	}
	return nil, nil
}

// discard deletes the record of a submission that will not be queued. A
// leftover record stays Pending until the reaper fails it.
func (d *Dispatcher) discard(ctx context.Context, jobID string, log *zap.Logger) {
	if err := d.store.Delete(ctx, jobID); err != nil {
		log.Warn("Failed to delete unqueued job record", zap.String("job_id", jobID), zap.Error(err))
	}
}

// resolvePreferences fills blank fields of raw from the requester's stored
// preferences. Lookup failures leave raw unchanged.
func (d *Dispatcher) resolvePreferences(ctx context.Context, raw models.GenerationRequest) models.GenerationRequest {
	requesterID := strings.TrimSpace(raw.RequesterID)
	if d.prefs == nil || requesterID == "" {
		return raw
	}
	prefs, err := d.prefs.Get(ctx, requesterID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			d.logger.Warn("Failed to load requester preferences, using defaults",
				zap.String("requester_id", requesterID), zap.Error(err))
		}
		return raw
	}
	return raw.WithPreferences(prefs)
}

func (d *Dispatcher) releaseInFlight(ctx context.Context, fp, jobID string, log *zap.Logger) {
	if d.inflight == nil {
		return
	}
	if err := d.inflight.Release(ctx, fp, jobID); err != nil {
		log.Warn("Failed to release in-flight slot", zap.String("job_id", jobID), zap.Error(err))
	}
}

// rollback removes the record of a job whose queue push failed.
func (d *Dispatcher) rollback(ctx context.Context, rec *models.JobStatusRecord, pushErr error, log *zap.Logger) error {
	log = applog.ForJob(log, rec.JobID, "")
	d.releaseInFlight(ctx, rec.Fingerprint, rec.JobID, log)

	var result *multierror.Error
	result = multierror.Append(result, fmt.Errorf("failed to enqueue job: %w", pushErr))
	if err := d.store.Delete(ctx, rec.JobID); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to roll back job record: %w", err))
		log.Error("Queue push failed and rollback failed, record left orphaned",
			zap.NamedError("push_error", pushErr),
			zap.NamedError("rollback_error", err),
		)
	} else {
		log.Error("Queue push failed, job record rolled back", zap.Error(pushErr))
	}
	return fmt.Errorf("%w: %w", models.ErrTransientInfra, result.ErrorOrNil())
}

// GetStatus returns the current record of jobID.
func (d *Dispatcher) GetStatus(ctx context.Context, jobID string) (*models.JobStatusRecord, error) {
	rec, err := d.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		d.logger.Error("Failed to read job status", zap.String("job_id", jobID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", models.ErrTransientInfra, err)
	}
	return rec, nil
}

// ListByRequester returns the requester's jobs, newest first.
func (d *Dispatcher) ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]*models.JobStatusRecord, error) {
	if requesterID == "" {
		return nil, models.NewValidationError("requesterId", "requesterId is required")
	}
	limit, offset = repository.ClampListWindow(limit, offset)
	recs, err := d.store.ListByRequester(ctx, requesterID, limit, offset)
	if err != nil {
		d.logger.Error("Failed to list jobs", zap.String("requester_id", requesterID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", models.ErrTransientInfra, err)
	}
	return recs, nil
}

// GetPreferences returns the stored preferences of requesterID.
func (d *Dispatcher) GetPreferences(ctx context.Context, requesterID string) (*models.RequesterPreferences, error) {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return nil, models.NewValidationError("requesterId", "requesterId is required")
	}
	if d.prefs == nil {
		return nil, models.ErrNotFound
	}
	prefs, err := d.prefs.Get(ctx, requesterID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		d.logger.Error("Failed to read requester preferences", zap.String("requester_id", requesterID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", models.ErrTransientInfra, err)
	}
	return prefs, nil
}

// SavePreferences validates and stores prefs, replacing earlier ones.
func (d *Dispatcher) SavePreferences(ctx context.Context, prefs models.RequesterPreferences) (*models.RequesterPreferences, error) {
	prefs = prefs.Normalize()
	if err := prefs.Validate(d.cfg.SupportedVariants); err != nil {
		return nil, err
	}
	if d.prefs == nil {
		return nil, models.ErrNotFound
	}
	saved, err := d.prefs.Upsert(ctx, prefs)
	if err != nil {
		d.logger.Error("Failed to save requester preferences", zap.String("requester_id", prefs.RequesterID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", models.ErrTransientInfra, err)
	}
	return saved, nil
}
