// Package repository holds the durable job status store.
package repository

import (
	"context"
	"time"

	"pinksync/internal/models"
)

// JobStatusRepository persists JobStatusRecords. Every state change is a
// conditional write: callers never read-modify-write.
type JobStatusRepository interface {
	// Create inserts a new Pending record.
	Create(ctx context.Context, rec *models.JobStatusRecord) error
	// Get returns models.ErrNotFound for unknown or malformed ids.
	Get(ctx context.Context, jobID string) (*models.JobStatusRecord, error)
	// ListByRequester returns the requester's jobs, newest first.
	ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]*models.JobStatusRecord, error)

	// MarkProcessing moves Pending to Processing. A record in any other
	// state yields models.ErrClaimConflict.
	MarkProcessing(ctx context.Context, jobID string) (*models.JobStatusRecord, error)
	// UpdateProgress writes progress for a Processing job. Lower progress
	// than already stored yields models.ErrInvalidTransition.
	UpdateProgress(ctx context.Context, jobID string, progress int, stage string) error
	// Complete moves Processing to Completed with progress 100.
	Complete(ctx context.Context, jobID string, artifact models.Artifact) (*models.JobStatusRecord, error)
	// Fail moves Processing to Failed.
	Fail(ctx context.Context, jobID, detail string) (*models.JobStatusRecord, error)
	// Delete removes a Pending record. Used to roll back a submission whose
	// queue push failed.
	Delete(ctx context.Context, jobID string) error

	// FailStale fails every record in state that has not been updated since
	// before. Only Pending and Processing are accepted.
	FailStale(ctx context.Context, state models.JobState, before time.Time, detail string) ([]*models.JobStatusRecord, error)
	// DeleteTerminalBefore removes Completed and Failed records last updated
	// before the given time.
	DeleteTerminalBefore(ctx context.Context, before time.Time) (int64, error)
}

// Listing bounds.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ClampListWindow normalizes a requested page.
func ClampListWindow(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func validProgress(p int) bool {
	return p >= 0 && p <= 100
}
