// Package messaging publishes job status events.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"pinksync/internal/models"
)

// JobEventPublisher announces job state changes. Publishing is best effort:
// callers log failures and carry on.
type JobEventPublisher interface {
	PublishJobEvent(ctx context.Context, event models.JobEvent) error
}

const eventsExchangeType = "fanout"

var _ JobEventPublisher = (*RabbitMQJobEventPublisher)(nil)

// RabbitMQJobEventPublisher publishes events to a durable fanout exchange.
type RabbitMQJobEventPublisher struct {
	mu           sync.Mutex
	ch           *amqp.Channel
	logger       *zap.Logger
	exchangeName string
}

func NewRabbitMQJobEventPublisher(conn *amqp.Connection, exchangeName string, logger *zap.Logger) (*RabbitMQJobEventPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchangeName,
		eventsExchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchangeName, err)
	}
	logger.Info("Job events exchange declared", zap.String("exchange", exchangeName))

	return &RabbitMQJobEventPublisher{
		ch:           ch,
		logger:       logger.Named("JobEventPublisher"),
		exchangeName: exchangeName,
	}, nil
}

func (p *RabbitMQJobEventPublisher) PublishJobEvent(ctx context.Context, event models.JobEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal job event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx,
		p.exchangeName,
		"", // routing key is ignored by fanout
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.JobID,
			Type:         string(event.State),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish job event: %w", err)
	}
	p.logger.Debug("Job event published",
		zap.String("job_id", event.JobID),
		zap.String("state", string(event.State)),
		zap.Int("progress", event.Progress),
	)
	return nil
}

func (p *RabbitMQJobEventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishJobEvent(context.Context, models.JobEvent) error { return nil }
