package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"pinksync/internal/models"
)

// maxMessagePriority is declared as x-max-priority; premium maps to it.
const maxMessagePriority = uint8(models.MaxPriorityTier)

var _ Queue = (*RabbitMQQueue)(nil)

// RabbitMQQueue uses a durable priority queue. ClaimNext is a basic.get with
// auto-ack, so the broker hands each message to exactly one consumer.
type RabbitMQQueue struct {
	mu     sync.Mutex
	ch     *amqp091.Channel
	name   string
	logger *zap.Logger
}

// NewRabbitMQQueue opens a channel on conn and declares the queue.
func NewRabbitMQQueue(conn *amqp091.Connection, name string, logger *zap.Logger) (*RabbitMQQueue, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	log := logger.Named("RabbitMQQueue").With(zap.String("queue", name))

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp091.Table{"x-max-priority": int32(maxMessagePriority)},
	)
	if err != nil {
		_ = ch.Close()
		log.Error("Failed to declare queue", zap.Error(err))
		return nil, fmt.Errorf("failed to declare queue '%s': %w", name, err)
	}
	log.Info("Priority queue declared")

	return &RabbitMQQueue{ch: ch, name: name, logger: log}, nil
}

func (q *RabbitMQQueue) Push(ctx context.Context, entry models.QueueEntry) error {
	entry.PriorityTier = clampTier(entry.PriorityTier)
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now().UTC()
	}
	// The broker keeps FIFO within a priority level; the sequence is
	// informational here.
	entry.EnqueueSeq = entry.EnqueuedAt.UnixNano()

	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry %s: %w", entry.JobID, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	err = q.ch.PublishWithContext(ctx,
		"",     // default exchange
		q.name, // routing key
		false,  // mandatory
		false,  // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Priority:     maxMessagePriority - uint8(entry.PriorityTier),
			MessageId:    entry.JobID,
			Timestamp:    entry.EnqueuedAt,
			Body:         body,
		},
	)
	if err != nil {
		q.logger.Error("Failed to publish queue entry", zap.String("job_id", entry.JobID), zap.Error(err))
		return fmt.Errorf("failed to publish queue entry %s: %w", entry.JobID, err)
	}
	return nil
}

// Requeue publishes entry again. The broker has no way to insert behind
// older messages, so the entry joins the tail of its priority level.
func (q *RabbitMQQueue) Requeue(ctx context.Context, entry models.QueueEntry) error {
	return q.Push(ctx, entry)
}

func (q *RabbitMQQueue) ClaimNext(ctx context.Context) (*models.QueueEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	msg, ok, err := q.ch.Get(q.name, true)
	q.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to get message from '%s': %w", q.name, err)
	}
	if !ok {
		return nil, models.ErrQueueEmpty
	}

	var entry models.QueueEntry
	if err := json.Unmarshal(msg.Body, &entry); err != nil {
		q.logger.Error("Dropping undecodable queue message",
			zap.String("message_id", msg.MessageId),
			zap.ByteString("body", msg.Body),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to decode queue entry: %w", err)
	}
	return &entry, nil
}

func (q *RabbitMQQueue) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	state, err := q.ch.QueueDeclarePassive(q.name, true, false, false, false,
		amqp091.Table{"x-max-priority": int32(maxMessagePriority)})
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue '%s': %w", q.name, err)
	}
	return int64(state.Messages), nil
}

// Close closes the channel. The connection belongs to the caller.
func (q *RabbitMQQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ch != nil {
		return q.ch.Close()
	}
	return nil
}
