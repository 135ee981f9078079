// Package queue holds the priority work queue that sits between the
// dispatcher and the worker pool.
package queue

import (
	"context"

	"pinksync/internal/models"
)

// Queue orders entries by priority tier, then by enqueue sequence. ClaimNext
// is an atomic pop: an entry is handed to at most one caller.
type Queue interface {
	// Push appends entry to the tail of its tier. The queue assigns
	// EnqueueSeq.
	Push(ctx context.Context, entry models.QueueEntry) error
	// Requeue returns a claimed entry with its EnqueueSeq unchanged, so it
	// goes back ahead of entries pushed after it.
	Requeue(ctx context.Context, entry models.QueueEntry) error
	// ClaimNext removes and returns the head entry, or models.ErrQueueEmpty.
	// It never blocks waiting for work.
	ClaimNext(ctx context.Context) (*models.QueueEntry, error)
	// Len returns the number of queued entries.
	Len(ctx context.Context) (int64, error)
}

func clampTier(t models.PriorityTier) models.PriorityTier {
	if t < 0 {
		return 0
	}
	if t > models.MaxPriorityTier {
		return models.MaxPriorityTier
	}
	return t
}
