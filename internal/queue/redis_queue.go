package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pinksync/internal/models"
)

const (
	// DefaultRedisQueueKey is the sorted set holding queued entries.
	DefaultRedisQueueKey = "pinksync:sign_language_queue"

	// tierStride separates tiers in the score space; sequences stay below it.
	tierStride = 1e12
)

var _ Queue = (*RedisQueue)(nil)

// RedisQueue stores entries in a sorted set scored by tier*1e12+seq. The
// sequence comes from INCR on a shared key, so FIFO holds across every
// dispatcher instance. ZPOPMIN gives the atomic claim.
type RedisQueue struct {
	client *redis.Client
	key    string
	seqKey string
	logger *zap.Logger
}

func NewRedisQueue(client *redis.Client, key string, logger *zap.Logger) *RedisQueue {
	if key == "" {
		key = DefaultRedisQueueKey
	}
	return &RedisQueue{
		client: client,
		key:    key,
		seqKey: key + ":seq",
		logger: logger.Named("RedisQueue"),
	}
}

func (q *RedisQueue) Push(ctx context.Context, entry models.QueueEntry) error {
	seq, err := q.client.Incr(ctx, q.seqKey).Result()
	if err != nil {
		q.logger.Error("Failed to allocate enqueue sequence", zap.String("job_id", entry.JobID), zap.Error(err))
		return fmt.Errorf("failed to allocate enqueue sequence: %w", err)
	}

	entry.EnqueueSeq = seq
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now().UTC()
	}
	if err := q.add(ctx, entry); err != nil {
		return err
	}

	q.logger.Debug("Queue entry pushed",
		zap.String("job_id", entry.JobID),
		zap.Int("tier", int(entry.PriorityTier)),
		zap.Int64("seq", seq),
	)
	return nil
}

// Requeue re-adds entry under its original score. Entries without a
// sequence get a fresh one.
func (q *RedisQueue) Requeue(ctx context.Context, entry models.QueueEntry) error {
	if entry.EnqueueSeq == 0 {
		return q.Push(ctx, entry)
	}
	if err := q.add(ctx, entry); err != nil {
		return err
	}
	q.logger.Debug("Queue entry requeued",
		zap.String("job_id", entry.JobID),
		zap.Int64("seq", entry.EnqueueSeq),
	)
	return nil
}

func (q *RedisQueue) add(ctx context.Context, entry models.QueueEntry) error {
	entry.PriorityTier = clampTier(entry.PriorityTier)
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry %s: %w", entry.JobID, err)
	}

	score := float64(entry.PriorityTier)*tierStride + float64(entry.EnqueueSeq)
	if err := q.client.ZAdd(ctx, q.key, redis.Z{Score: score, Member: payload}).Err(); err != nil {
		q.logger.Error("Failed to push queue entry", zap.String("job_id", entry.JobID), zap.Error(err))
		return fmt.Errorf("failed to push queue entry %s: %w", entry.JobID, err)
	}
	return nil
}

func (q *RedisQueue) ClaimNext(ctx context.Context) (*models.QueueEntry, error) {
	popped, err := q.client.ZPopMin(ctx, q.key, 1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to pop queue entry: %w", err)
	}
	if len(popped) == 0 {
		return nil, models.ErrQueueEmpty
	}

	raw, ok := popped[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected queue member type %T", popped[0].Member)
	}
	var entry models.QueueEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		// The member is already gone from the set; it cannot be retried.
		q.logger.Error("Dropping undecodable queue entry", zap.String("payload", raw), zap.Error(err))
		return nil, fmt.Errorf("failed to decode queue entry: %w", err)
	}
	return &entry, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.ZCard(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return n, nil
}
