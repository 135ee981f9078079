package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pinksync/internal/models"
)

const (
	cacheKeyPrefix    = "pinksync:sign_language:cache:"
	inFlightKeyPrefix = "pinksync:sign_language:inflight:"
)

var (
	_ FingerprintCache = (*RedisCache)(nil)
	_ InFlightRegistry = (*RedisInFlight)(nil)
)

// RedisCache keeps artifacts as JSON strings. A zero ttl keeps them forever.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisFingerprintCache"),
	}
}

func (c *RedisCache) Get(ctx context.Context, fingerprint string) (*models.Artifact, bool, error) {
	raw, err := c.client.Get(ctx, cacheKeyPrefix+fingerprint).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var artifact models.Artifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		c.logger.Warn("Ignoring undecodable cache entry", zap.String("fingerprint", fingerprint), zap.Error(err))
		return nil, false, nil
	}
	return &artifact, true, nil
}

func (c *RedisCache) Put(ctx context.Context, fingerprint string, artifact models.Artifact) error {
	payload, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+fingerprint, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	c.logger.Debug("Cache entry written", zap.String("fingerprint", fingerprint), zap.String("artifact_ref", artifact.ArtifactRef))
	return nil
}

// releaseScript deletes the slot only when it still names the releasing job.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisInFlight holds one SET NX key per fingerprint with an expiry.
type RedisInFlight struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisInFlight(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisInFlight {
	return &RedisInFlight{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisInFlight"),
	}
}

func (r *RedisInFlight) Acquire(ctx context.Context, fingerprint, jobID string) (string, bool, error) {
	key := inFlightKeyPrefix + fingerprint
	ok, err := r.client.SetNX(ctx, key, jobID, r.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire in-flight slot: %w", err)
	}
	if ok {
		return jobID, true, nil
	}

	holder, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		ok, err = r.client.SetNX(ctx, key, jobID, r.ttl).Result()
		if err != nil {
			return "", false, fmt.Errorf("failed to acquire in-flight slot: %w", err)
		}
		if ok {
			return jobID, true, nil
		}
		holder, err = r.client.Get(ctx, key).Result()
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read in-flight slot: %w", err)
	}
	return holder, holder == jobID, nil
}

func (r *RedisInFlight) Release(ctx context.Context, fingerprint, jobID string) error {
	if err := releaseScript.Run(ctx, r.client, []string{inFlightKeyPrefix + fingerprint}, jobID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release in-flight slot: %w", err)
	}
	return nil
}
