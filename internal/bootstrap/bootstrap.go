// Package bootstrap builds the job system's components from configuration.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pinksync/internal/cache"
	"pinksync/internal/config"
	"pinksync/internal/database"
	"pinksync/internal/messaging"
	"pinksync/internal/pipeline"
	"pinksync/internal/queue"
	"pinksync/internal/reaper"
	"pinksync/internal/repository"
	"pinksync/internal/service"
	"pinksync/internal/worker"
)

// Components are the long-lived pieces shared by the server and worker
// binaries.
type Components struct {
	Store       repository.JobStatusRepository
	Preferences repository.RequesterPreferencesRepository
	Queue       queue.Queue
	Cache       cache.FingerprintCache
	InFlight    cache.InFlightRegistry
	Events      messaging.JobEventPublisher
	Pipeline    *pipeline.Pipeline
	Dispatcher  *service.Dispatcher

	cfg     *config.Config
	logger  *zap.Logger
	closers []func() error
}

// Build connects to every backend cfg selects. On error, whatever was
// already opened is closed again.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Components, err error) {
	c := &Components{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			if closeErr := c.Close(); closeErr != nil {
				logger.Warn("Failed to close partially built components", zap.Error(closeErr))
			}
		}
	}()

	if err := c.buildStore(ctx); err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient, err = ConnectRedis(ctx, RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}, logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, redisClient.Close)
	}

	var amqpConn *amqp.Connection
	if cfg.UsesRabbitMQ() {
		amqpConn, err = messaging.Connect(ctx, cfg.RabbitMQURL, rabbitMQConnectAttempts, rabbitMQRetryDelay, logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, amqpConn.Close)
	}

	if err := c.buildQueue(redisClient, amqpConn); err != nil {
		return nil, err
	}
	c.buildCache(redisClient)
	if err := c.buildEvents(amqpConn); err != nil {
		return nil, err
	}
	c.buildPipeline()

	c.Dispatcher = service.NewDispatcher(
		service.DispatcherConfig{SupportedVariants: cfg.SupportedVariants},
		c.Store, c.Queue, c.Cache, c.InFlight, c.Events, logger,
		service.WithPreferences(c.Preferences),
	)
	logger.Info("Components built", cfg.LogFields()...)
	return c, nil
}

func (c *Components) buildStore(ctx context.Context) error {
	switch c.cfg.StoreBackend {
	case config.BackendMemory:
		c.Store = repository.NewMemoryJobStatusRepository()
		c.Preferences = repository.NewMemoryRequesterPreferencesRepository()
		return nil
	case config.BackendPostgres:
		dsn := c.cfg.GetDSN()
		c.logger.Info("Connecting to PostgreSQL", zap.String("dsn", c.cfg.MaskedDSN()))
		pool, err := database.Connect(ctx, database.PoolConfig{
			DSN:            dsn,
			MaxConns:       c.cfg.DBMaxConns,
			IdleTimeout:    c.cfg.DBIdleTimeout,
			ConnectTimeout: c.cfg.DBConnectWait,
		}, c.logger)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, func() error { pool.Close(); return nil })
		if err := database.ApplyMigrations(dsn, c.logger); err != nil {
			return err
		}
		c.Store = repository.NewPgJobStatusRepository(pool, c.logger)
		c.Preferences = repository.NewPgRequesterPreferencesRepository(pool, c.logger)
		return nil
	default:
		return fmt.Errorf("unsupported store backend %q", c.cfg.StoreBackend)
	}
}

func (c *Components) buildQueue(redisClient *redis.Client, amqpConn *amqp.Connection) error {
	switch c.cfg.QueueBackend {
	case config.BackendMemory:
		c.Queue = queue.NewMemoryQueue()
	case config.BackendRedis:
		c.Queue = queue.NewRedisQueue(redisClient, queue.DefaultRedisQueueKey, c.logger)
	case config.BackendRabbitMQ:
		q, err := queue.NewRabbitMQQueue(amqpConn, c.cfg.QueueName, c.logger)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, q.Close)
		c.Queue = q
	default:
		return fmt.Errorf("unsupported queue backend %q", c.cfg.QueueBackend)
	}
	return nil
}

func (c *Components) buildCache(redisClient *redis.Client) {
	if c.cfg.CacheBackend == config.BackendRedis {
		c.Cache = cache.NewRedisCache(redisClient, c.cfg.CacheTTL, c.logger)
	} else {
		mc := cache.NewMemoryCache(c.cfg.CacheTTL)
		c.closers = append(c.closers, func() error { mc.Close(); return nil })
		c.Cache = mc
	}

	if !c.cfg.DedupeInFlight {
		return
	}
	if redisClient != nil {
		c.InFlight = cache.NewRedisInFlight(redisClient, c.cfg.InFlightTTL, c.logger)
	} else {
		c.InFlight = cache.NewMemoryInFlight(c.cfg.InFlightTTL)
	}
}

func (c *Components) buildEvents(amqpConn *amqp.Connection) error {
	if !c.cfg.PublishEvents {
		c.Events = messaging.NoopPublisher{}
		return nil
	}
	pub, err := messaging.NewRabbitMQJobEventPublisher(amqpConn, c.cfg.EventsExchange, c.logger)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, pub.Close)
	c.Events = pub
	return nil
}

func (c *Components) buildPipeline() {
	var opts []pipeline.Option
	if c.cfg.RenderServiceURL != "" {
		opts = append(opts, pipeline.WithRenderer(pipeline.NewRemoteRenderer(pipeline.RemoteRendererConfig{
			BaseURL:        c.cfg.RenderServiceURL,
			Timeout:        c.cfg.RenderTimeout,
			MaxAttempts:    c.cfg.RenderMaxAttempts,
			BaseRetryDelay: c.cfg.RenderBaseRetryDelay,
		}, c.logger)))
	}
	c.Pipeline = pipeline.New(pipeline.NewLocalBackend(c.cfg.ArtifactBaseURL), c.logger, opts...)
}

// NewPool returns a worker pool of the given size over the components.
func (c *Components) NewPool(concurrency int) *worker.Pool {
	return worker.NewPool(worker.PoolConfig{
		Concurrency:  concurrency,
		PollInterval: c.cfg.PollInterval,
		MaxBackoff:   c.cfg.MaxPollBackoff,
	}, worker.Deps{
		Queue:    c.Queue,
		Store:    c.Store,
		Cache:    c.Cache,
		InFlight: c.InFlight,
		Pipeline: c.Pipeline,
		Events:   c.Events,
	}, c.logger)
}

func (c *Components) NewReaper() *reaper.Reaper {
	return reaper.New(reaper.Config{
		Interval:             c.cfg.ReaperInterval,
		StaleJobTimeout:      c.cfg.StaleJobTimeout,
		OrphanPendingTimeout: c.cfg.OrphanPendingTimeout,
		JobRetention:         c.cfg.JobRetention,
	}, c.Store, c.Events, c.logger)
}

// Close releases connections in reverse order of creation.
func (c *Components) Close() error {
	var result *multierror.Error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	c.closers = nil
	return result.ErrorOrNil()
}
