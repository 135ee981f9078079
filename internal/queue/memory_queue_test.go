package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinksync/internal/models"
)

func entry(id string, tier models.PriorityTier) models.QueueEntry {
	return models.QueueEntry{JobID: id, PriorityTier: tier}
}

func TestMemoryQueue_ClaimOrder(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	require.NoError(t, q.Push(ctx, entry("A", 2)))
	require.NoError(t, q.Push(ctx, entry("B", 1)))
	require.NoError(t, q.Push(ctx, entry("C", 1)))
	require.NoError(t, q.Push(ctx, entry("D", 2)))

	var got []string
	for {
		e, err := q.ClaimNext(ctx)
		if errors.Is(err, models.ErrQueueEmpty) {
			break
		}
		require.NoError(t, err)
		got = append(got, e.JobID)
	}
	assert.Equal(t, []string{"B", "C", "A", "D"}, got)
}

func TestMemoryQueue_AssignsSequence(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	require.NoError(t, q.Push(ctx, entry("A", models.TierStandard)))
	require.NoError(t, q.Push(ctx, entry("B", models.TierStandard)))

	first, err := q.ClaimNext(ctx)
	require.NoError(t, err)
	second, err := q.ClaimNext(ctx)
	require.NoError(t, err)

	assert.Less(t, first.EnqueueSeq, second.EnqueueSeq)
	assert.False(t, first.EnqueuedAt.IsZero())
}

func TestMemoryQueue_RequeueKeepsPosition(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	require.NoError(t, q.Push(ctx, entry("A", models.TierStandard)))
	require.NoError(t, q.Push(ctx, entry("B", models.TierStandard)))
	require.NoError(t, q.Push(ctx, entry("X", models.TierPremium)))

	claimed, err := q.ClaimNext(ctx)
	require.NoError(t, err)
	require.Equal(t, "X", claimed.JobID)
	claimedA, err := q.ClaimNext(ctx)
	require.NoError(t, err)
	require.Equal(t, "A", claimedA.JobID)

	require.NoError(t, q.Push(ctx, entry("C", models.TierStandard)))
	require.NoError(t, q.Requeue(ctx, *claimedA))

	var got []string
	for {
		e, err := q.ClaimNext(ctx)
		if errors.Is(err, models.ErrQueueEmpty) {
			break
		}
		require.NoError(t, err)
		got = append(got, e.JobID)
	}
	assert.Equal(t, []string{"A", "B", "C"}, got)
}

func TestMemoryQueue_ClampsTier(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	require.NoError(t, q.Push(ctx, entry("low", 9)))
	require.NoError(t, q.Push(ctx, entry("top", -1)))

	e, err := q.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "top", e.JobID)
	assert.Equal(t, models.TierPremium, e.PriorityTier)

	e, err = q.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.MaxPriorityTier, e.PriorityTier)
}

func TestMemoryQueue_EmptyAndLen(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	_, err := q.ClaimNext(ctx)
	assert.ErrorIs(t, err, models.ErrQueueEmpty)

	require.NoError(t, q.Push(ctx, entry("A", 0)))
	require.NoError(t, q.Push(ctx, entry("B", 2)))
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMemoryQueue_ConcurrentClaimsAreExclusive(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	const entries = 500
	const workers = 16
	for i := 0; i < entries; i++ {
		require.NoError(t, q.Push(ctx, entry(fmt.Sprintf("job-%d", i), models.PriorityTier(i%3))))
	}

	var (
		mu      sync.Mutex
		claimed = make(map[string]int)
		wg      sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				e, err := q.ClaimNext(ctx)
				if errors.Is(err, models.ErrQueueEmpty) {
					return
				}
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				claimed[e.JobID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, entries)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "job %s claimed %d times", id, n)
	}
}
