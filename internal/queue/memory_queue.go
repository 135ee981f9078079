package queue

import (
	"context"
	"slices"
	"sync"
	"time"

	"pinksync/internal/models"
)

var _ Queue = (*MemoryQueue)(nil)

// MemoryQueue is a process-local Queue. Useful for tests and for a server
// running with embedded workers.
type MemoryQueue struct {
	mu    sync.Mutex
	tiers [models.MaxPriorityTier + 1][]models.QueueEntry
	seq   int64
	now   func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{now: time.Now}
}

func (q *MemoryQueue) Push(ctx context.Context, entry models.QueueEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	entry.EnqueueSeq = q.seq
	entry.PriorityTier = clampTier(entry.PriorityTier)
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = q.now()
	}
	q.tiers[entry.PriorityTier] = append(q.tiers[entry.PriorityTier], entry)
	return nil
}

func (q *MemoryQueue) Requeue(ctx context.Context, entry models.QueueEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if entry.EnqueueSeq == 0 {
		q.seq++
		entry.EnqueueSeq = q.seq
	}
	entry.PriorityTier = clampTier(entry.PriorityTier)
	tier := q.tiers[entry.PriorityTier]
	i, _ := slices.BinarySearchFunc(tier, entry.EnqueueSeq, func(e models.QueueEntry, seq int64) int {
		switch {
		case e.EnqueueSeq < seq:
			return -1
		case e.EnqueueSeq > seq:
			return 1
		}
		return 0
	})
	q.tiers[entry.PriorityTier] = slices.Insert(tier, i, entry)
	return nil
}

func (q *MemoryQueue) ClaimNext(ctx context.Context) (*models.QueueEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.tiers {
		if len(q.tiers[i]) == 0 {
			continue
		}
		entry := q.tiers[i][0]
		q.tiers[i][0] = models.QueueEntry{}
		q.tiers[i] = q.tiers[i][1:]
		return &entry, nil
	}
	return nil, models.ErrQueueEmpty
}

func (q *MemoryQueue) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var n int64
	for i := range q.tiers {
		n += int64(len(q.tiers[i]))
	}
	return n, nil
}
