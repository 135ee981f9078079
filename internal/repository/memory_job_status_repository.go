package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pinksync/internal/models"
)

var _ JobStatusRepository = (*MemoryJobStatusRepository)(nil)

// MemoryJobStatusRepository keeps records in a map guarded by a single lock,
// which makes every conditional transition atomic.
type MemoryJobStatusRepository struct {
	mu      sync.RWMutex
	records map[string]*models.JobStatusRecord
	now     func() time.Time
}

func NewMemoryJobStatusRepository() *MemoryJobStatusRepository {
	return &MemoryJobStatusRepository{
		records: make(map[string]*models.JobStatusRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryJobStatusRepository) Create(_ context.Context, rec *models.JobStatusRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.JobID]; exists {
		return fmt.Errorf("job %s already exists", rec.JobID)
	}
	stored := *rec
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.now()
	}
	stored.UpdatedAt = stored.CreatedAt
	r.records[rec.JobID] = &stored
	return nil
}

func (r *MemoryJobStatusRepository) Get(_ context.Context, jobID string) (*models.JobStatusRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[jobID]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (r *MemoryJobStatusRepository) ListByRequester(_ context.Context, requesterID string, limit, offset int) ([]*models.JobStatusRecord, error) {
	limit, offset = ClampListWindow(limit, offset)

	r.mu.RLock()
	var matched []*models.JobStatusRecord
	for _, rec := range r.records {
		if rec.RequesterID == requesterID {
			out := *rec
			matched = append(matched, &out)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].JobID > matched[j].JobID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if offset >= len(matched) {
		return []*models.JobStatusRecord{}, nil
	}
	end := min(offset+limit, len(matched))
	return matched[offset:end], nil
}

func (r *MemoryJobStatusRepository) MarkProcessing(_ context.Context, jobID string) (*models.JobStatusRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[jobID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if rec.State != models.StatePending {
		return nil, fmt.Errorf("%w: job %s is %s", models.ErrClaimConflict, jobID, rec.State)
	}
	rec.State = models.StateProcessing
	rec.UpdatedAt = r.now()
	out := *rec
	return &out, nil
}

func (r *MemoryJobStatusRepository) UpdateProgress(_ context.Context, jobID string, progress int, stage string) error {
	if !validProgress(progress) {
		return fmt.Errorf("%w: progress %d out of range", models.ErrInvalidTransition, progress)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[jobID]
	if !ok {
		return models.ErrNotFound
	}
	if rec.State != models.StateProcessing {
		return fmt.Errorf("%w: job %s is %s", models.ErrInvalidTransition, jobID, rec.State)
	}
	if progress < rec.Progress {
		return fmt.Errorf("%w: progress %d below current %d", models.ErrInvalidTransition, progress, rec.Progress)
	}
	rec.Progress = progress
	rec.Stage = stage
	rec.UpdatedAt = r.now()
	return nil
}

func (r *MemoryJobStatusRepository) Complete(_ context.Context, jobID string, artifact models.Artifact) (*models.JobStatusRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.processingLocked(jobID)
	if err != nil {
		return nil, err
	}
	rec.State = models.StateCompleted
	rec.Progress = 100
	rec.ArtifactRef = artifact.ArtifactRef
	rec.ThumbnailRef = artifact.ThumbnailRef
	rec.UpdatedAt = r.now()
	out := *rec
	return &out, nil
}

func (r *MemoryJobStatusRepository) Fail(_ context.Context, jobID, detail string) (*models.JobStatusRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.processingLocked(jobID)
	if err != nil {
		return nil, err
	}
	rec.State = models.StateFailed
	rec.ErrorDetail = detail
	rec.UpdatedAt = r.now()
	out := *rec
	return &out, nil
}

func (r *MemoryJobStatusRepository) processingLocked(jobID string) (*models.JobStatusRecord, error) {
	rec, ok := r.records[jobID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if rec.State != models.StateProcessing {
		return nil, fmt.Errorf("%w: job %s is %s", models.ErrInvalidTransition, jobID, rec.State)
	}
	return rec, nil
}

func (r *MemoryJobStatusRepository) Delete(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[jobID]
	if !ok {
		return models.ErrNotFound
	}
	if rec.State != models.StatePending {
		return fmt.Errorf("%w: only pending jobs can be deleted, job %s is %s", models.ErrInvalidTransition, jobID, rec.State)
	}
	delete(r.records, jobID)
	return nil
}

func (r *MemoryJobStatusRepository) FailStale(_ context.Context, state models.JobState, before time.Time, detail string) ([]*models.JobStatusRecord, error) {
	if state != models.StatePending && state != models.StateProcessing {
		return nil, fmt.Errorf("%w: cannot expire %s jobs", models.ErrInvalidTransition, state)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var failed []*models.JobStatusRecord
	now := r.now()
	for _, rec := range r.records {
		if rec.State != state || !rec.UpdatedAt.Before(before) {
			continue
		}
		rec.State = models.StateFailed
		rec.ErrorDetail = detail
		rec.UpdatedAt = now
		out := *rec
		failed = append(failed, &out)
	}
	return failed, nil
}

func (r *MemoryJobStatusRepository) DeleteTerminalBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, rec := range r.records {
		if rec.State.IsTerminal() && rec.UpdatedAt.Before(before) {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}
