package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PoolConfig configures Connect.
type PoolConfig struct {
	DSN         string
	MaxConns    int
	IdleTimeout time.Duration
	// ConnectTimeout bounds the whole retry loop.
	ConnectTimeout time.Duration
	RetryDelay     time.Duration
}

// Connect opens a pgx pool, retrying until the database answers a ping or
// ConnectTimeout elapses.
func Connect(ctx context.Context, cfg PoolConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.IdleTimeout > 0 {
		poolConfig.MaxConnIdleTime = cfg.IdleTimeout
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 3 * time.Second
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = time.Minute
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		pool, lastErr := tryConnect(deadlineCtx, poolConfig)
		if lastErr == nil {
			logger.Info("Connected to PostgreSQL", zap.Int("attempt", attempt))
			return pool, nil
		}
		logger.Warn("PostgreSQL not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(lastErr),
		)

		select {
		case <-deadlineCtx.Done():
			return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempt, lastErr)
		case <-time.After(retryDelay):
		}
	}
}

func tryConnect(ctx context.Context, poolConfig *pgxpool.Config) (*pgxpool.Pool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(attemptCtx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(attemptCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
