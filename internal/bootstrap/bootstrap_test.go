package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pinksync/internal/cache"
	"pinksync/internal/config"
	"pinksync/internal/messaging"
	"pinksync/internal/models"
	"pinksync/internal/queue"
	"pinksync/internal/repository"
)

func memoryConfig() *config.Config {
	return &config.Config{
		StoreBackend:      config.BackendMemory,
		QueueBackend:      config.BackendMemory,
		CacheBackend:      config.BackendMemory,
		WorkerMode:        config.WorkerModeLoop,
		WorkerConcurrency: 2,
		PollInterval:      time.Millisecond,
		MaxPollBackoff:    5 * time.Millisecond,
		BatchMaxJobs:      10,
		BatchMaxDuration:  time.Minute,
		RenderMaxAttempts: 1,
		ArtifactBaseURL:   "https://cdn.example",
	}
}

func TestBuild_MemoryBackends(t *testing.T) {
	ctx := context.Background()
	c, err := Build(ctx, memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer func() { assert.NoError(t, c.Close()) }()

	assert.IsType(t, &repository.MemoryJobStatusRepository{}, c.Store)
	assert.IsType(t, &repository.MemoryRequesterPreferencesRepository{}, c.Preferences)
	assert.IsType(t, &queue.MemoryQueue{}, c.Queue)
	assert.IsType(t, &cache.MemoryCache{}, c.Cache)
	assert.Nil(t, c.InFlight)
	assert.IsType(t, messaging.NoopPublisher{}, c.Events)

	res, err := c.Dispatcher.Submit(ctx, models.GenerationRequest{Text: "Hello"})
	require.NoError(t, err)

	batch, err := c.NewPool(2).ProcessBatch(ctx, 10, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Completed)

	rec, err := c.Dispatcher.GetStatus(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, rec.State)
	assert.Contains(t, rec.ArtifactRef, "https://cdn.example/")
}

func TestBuild_InFlightDedupeInMemory(t *testing.T) {
	cfg := memoryConfig()
	cfg.DedupeInFlight = true
	c, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	assert.IsType(t, &cache.MemoryInFlight{}, c.InFlight)
}

func TestBuild_UnsupportedBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.StoreBackend = "sqlite"
	_, err := Build(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewReaper(t *testing.T) {
	c, err := Build(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	res, err := c.NewReaper().Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Stale)
}
