package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"pinksync/internal/models"
)

const jobColumns = `
	id::text AS id, fingerprint, requester_id, target_variant, render_style, quality_tier,
	state, progress, current_stage, artifact_ref, thumbnail_ref, error_detail,
	estimated_seconds, created_at, updated_at`

const (
	createJobQuery = `
		INSERT INTO generation_jobs (
			id, fingerprint, requester_id, target_variant, render_style, quality_tier,
			state, progress, estimated_seconds, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`
	getJobQuery = `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1`

	listJobsByRequesterQuery = `
		SELECT ` + jobColumns + `
		FROM generation_jobs
		WHERE requester_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	markProcessingQuery = `
		UPDATE generation_jobs
		SET state = 'Processing', updated_at = NOW()
		WHERE id = $1 AND state = 'Pending'
		RETURNING ` + jobColumns
	updateProgressQuery = `
		UPDATE generation_jobs
		SET progress = $2, current_stage = $3, updated_at = NOW()
		WHERE id = $1 AND state = 'Processing' AND progress <= $2
	`
	completeJobQuery = `
		UPDATE generation_jobs
		SET state = 'Completed', progress = 100, artifact_ref = $2, thumbnail_ref = $3, updated_at = NOW()
		WHERE id = $1 AND state = 'Processing'
		RETURNING ` + jobColumns
	failJobQuery = `
		UPDATE generation_jobs
		SET state = 'Failed', error_detail = $2, updated_at = NOW()
		WHERE id = $1 AND state = 'Processing'
		RETURNING ` + jobColumns
	deletePendingJobQuery = `DELETE FROM generation_jobs WHERE id = $1 AND state = 'Pending'`
	failStaleJobsQuery    = `
		UPDATE generation_jobs
		SET state = 'Failed', error_detail = $3, updated_at = NOW()
		WHERE state = $1 AND updated_at < $2
		RETURNING ` + jobColumns
	deleteTerminalJobsQuery = `
		DELETE FROM generation_jobs
		WHERE state IN ('Completed', 'Failed') AND updated_at < $1
	`
	getJobStateQuery = `SELECT state FROM generation_jobs WHERE id = $1`
)

var _ JobStatusRepository = (*PgJobStatusRepository)(nil)

type PgJobStatusRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPgJobStatusRepository(pool *pgxpool.Pool, logger *zap.Logger) *PgJobStatusRepository {
	return &PgJobStatusRepository{
		pool:   pool,
		logger: logger.Named("PgJobStatusRepo"),
	}
}

func (r *PgJobStatusRepository) Create(ctx context.Context, rec *models.JobStatusRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, createJobQuery,
		rec.JobID,
		rec.Fingerprint,
		rec.RequesterID,
		rec.TargetVariant,
		string(rec.RenderStyle),
		string(rec.QualityTier),
		string(rec.State),
		rec.Progress,
		rec.EstimatedSeconds,
		createdAt,
	)
	if err != nil {
		r.logger.Error("Failed to create job record", zap.String("job_id", rec.JobID), zap.Error(err))
		return fmt.Errorf("error creating job %s: %w", rec.JobID, err)
	}
	return nil
}

func (r *PgJobStatusRepository) Get(ctx context.Context, jobID string) (*models.JobStatusRecord, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, models.ErrNotFound
	}
	var rec models.JobStatusRecord
	if err := pgxscan.Get(ctx, r.pool, &rec, getJobQuery, jobID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get job record", zap.String("job_id", jobID), zap.Error(err))
		return nil, fmt.Errorf("error getting job %s: %w", jobID, err)
	}
	return &rec, nil
}

func (r *PgJobStatusRepository) ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]*models.JobStatusRecord, error) {
	limit, offset = ClampListWindow(limit, offset)
	records := make([]*models.JobStatusRecord, 0, limit)
	if err := pgxscan.Select(ctx, r.pool, &records, listJobsByRequesterQuery, requesterID, limit, offset); err != nil {
		r.logger.Error("Failed to list jobs", zap.String("requester_id", requesterID), zap.Error(err))
		return nil, fmt.Errorf("error listing jobs for requester %s: %w", requesterID, err)
	}
	return records, nil
}

func (r *PgJobStatusRepository) MarkProcessing(ctx context.Context, jobID string) (*models.JobStatusRecord, error) {
	rec, err := r.transition(ctx, markProcessingQuery, jobID)
	if err == nil {
		return rec, nil
	}
	if errors.Is(err, errNoRowsAffected) {
		return nil, r.explainMiss(ctx, jobID, models.ErrClaimConflict)
	}
	return nil, err
}

func (r *PgJobStatusRepository) UpdateProgress(ctx context.Context, jobID string, progress int, stage string) error {
	if !validProgress(progress) {
		return fmt.Errorf("%w: progress %d out of range", models.ErrInvalidTransition, progress)
	}
	if _, err := uuid.Parse(jobID); err != nil {
		return models.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, updateProgressQuery, jobID, progress, stage)
	if err != nil {
		r.logger.Error("Failed to update progress", zap.String("job_id", jobID), zap.Int("progress", progress), zap.Error(err))
		return fmt.Errorf("error updating progress for job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return r.explainMiss(ctx, jobID, models.ErrInvalidTransition)
	}
	return nil
}

func (r *PgJobStatusRepository) Complete(ctx context.Context, jobID string, artifact models.Artifact) (*models.JobStatusRecord, error) {
	rec, err := r.transition(ctx, completeJobQuery, jobID, artifact.ArtifactRef, artifact.ThumbnailRef)
	if errors.Is(err, errNoRowsAffected) {
		return nil, r.explainMiss(ctx, jobID, models.ErrInvalidTransition)
	}
	return rec, err
}

func (r *PgJobStatusRepository) Fail(ctx context.Context, jobID, detail string) (*models.JobStatusRecord, error) {
	rec, err := r.transition(ctx, failJobQuery, jobID, detail)
	if errors.Is(err, errNoRowsAffected) {
		return nil, r.explainMiss(ctx, jobID, models.ErrInvalidTransition)
	}
	return rec, err
}

func (r *PgJobStatusRepository) Delete(ctx context.Context, jobID string) error {
	if _, err := uuid.Parse(jobID); err != nil {
		return models.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, deletePendingJobQuery, jobID)
	if err != nil {
		r.logger.Error("Failed to delete job record", zap.String("job_id", jobID), zap.Error(err))
		return fmt.Errorf("error deleting job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return r.explainMiss(ctx, jobID, models.ErrInvalidTransition)
	}
	return nil
}

func (r *PgJobStatusRepository) FailStale(ctx context.Context, state models.JobState, before time.Time, detail string) ([]*models.JobStatusRecord, error) {
	if state != models.StatePending && state != models.StateProcessing {
		return nil, fmt.Errorf("%w: cannot expire %s jobs", models.ErrInvalidTransition, state)
	}
	var failed []*models.JobStatusRecord
	if err := pgxscan.Select(ctx, r.pool, &failed, failStaleJobsQuery, string(state), before, detail); err != nil {
		r.logger.Error("Failed to expire stale jobs", zap.String("state", string(state)), zap.Error(err))
		return nil, fmt.Errorf("error expiring stale %s jobs: %w", state, err)
	}
	return failed, nil
}

func (r *PgJobStatusRepository) DeleteTerminalBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, deleteTerminalJobsQuery, before)
	if err != nil {
		r.logger.Error("Failed to delete old terminal jobs", zap.Time("before", before), zap.Error(err))
		return 0, fmt.Errorf("error deleting terminal jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

var errNoRowsAffected = errors.New("no rows affected")

// transition runs a conditional UPDATE ... RETURNING and scans the row.
func (r *PgJobStatusRepository) transition(ctx context.Context, query, jobID string, args ...any) (*models.JobStatusRecord, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, models.ErrNotFound
	}
	var rec models.JobStatusRecord
	err := pgxscan.Get(ctx, r.pool, &rec, query, append([]any{jobID}, args...)...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, errNoRowsAffected
		}
		r.logger.Error("Failed to transition job", zap.String("job_id", jobID), zap.Error(err))
		return nil, fmt.Errorf("error updating job %s: %w", jobID, err)
	}
	return &rec, nil
}

// explainMiss tells a missing record apart from one in the wrong state.
func (r *PgJobStatusRepository) explainMiss(ctx context.Context, jobID string, conflict error) error {
	if _, err := uuid.Parse(jobID); err != nil {
		return models.ErrNotFound
	}
	var state string
	if err := r.pool.QueryRow(ctx, getJobStateQuery, jobID).Scan(&state); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		return fmt.Errorf("error reading state of job %s: %w", jobID, err)
	}
	return fmt.Errorf("%w: job %s is %s", conflict, jobID, state)
}
