package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pinksync/internal/cache"
	"pinksync/internal/models"
	"pinksync/internal/pipeline"
	"pinksync/internal/queue"
	"pinksync/internal/repository"
	"pinksync/internal/service"
)

const testArtifactBase = "https://storage.example/sign-language-videos"

// recordingStore records progress writes and can inject failures.
type recordingStore struct {
	*repository.MemoryJobStatusRepository
	mu            sync.Mutex
	progress      []int
	failProgress  bool
	completeError error
	markError     error
}

func (s *recordingStore) MarkProcessing(ctx context.Context, jobID string) (*models.JobStatusRecord, error) {
	if s.markError != nil {
		return nil, s.markError
	}
	return s.MemoryJobStatusRepository.MarkProcessing(ctx, jobID)
}

func (s *recordingStore) UpdateProgress(ctx context.Context, jobID string, progress int, stage string) error {
	s.mu.Lock()
	s.progress = append(s.progress, progress)
	fail := s.failProgress
	s.mu.Unlock()
	if fail {
		return errors.New("progress write timed out")
	}
	return s.MemoryJobStatusRepository.UpdateProgress(ctx, jobID, progress, stage)
}

func (s *recordingStore) Complete(ctx context.Context, jobID string, artifact models.Artifact) (*models.JobStatusRecord, error) {
	if s.completeError != nil {
		return nil, s.completeError
	}
	return s.MemoryJobStatusRepository.Complete(ctx, jobID, artifact)
}

// runnerFunc adapts a function to Runner.
type runnerFunc func(ctx context.Context, job pipeline.Job, onProgress pipeline.ProgressFunc) (*models.Artifact, error)

func (f runnerFunc) Run(ctx context.Context, job pipeline.Job, onProgress pipeline.ProgressFunc) (*models.Artifact, error) {
	return f(ctx, job, onProgress)
}

type harness struct {
	store      *recordingStore
	queue      *queue.MemoryQueue
	cache      *cache.MemoryCache
	inflight   *cache.MemoryInFlight
	dispatcher *service.Dispatcher
	deps       Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    &recordingStore{MemoryJobStatusRepository: repository.NewMemoryJobStatusRepository()},
		queue:    queue.NewMemoryQueue(),
		cache:    cache.NewMemoryCache(0),
		inflight: cache.NewMemoryInFlight(0),
	}
	h.dispatcher = service.NewDispatcher(service.DispatcherConfig{}, h.store, h.queue, h.cache, h.inflight, nil, zap.NewNop())
	h.deps = Deps{
		Queue:    h.queue,
		Store:    h.store,
		Cache:    h.cache,
		InFlight: h.inflight,
		Pipeline: pipeline.New(pipeline.NewLocalBackend(testArtifactBase), zap.NewNop()),
	}
	return h
}

func (h *harness) submit(t *testing.T, req models.GenerationRequest) *models.SubmitResult {
	t.Helper()
	res, err := h.dispatcher.Submit(context.Background(), req)
	require.NoError(t, err)
	return res
}

func TestHelloScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	req := models.GenerationRequest{Text: "Hello", TargetVariant: "A", RenderStyle: "realistic", QualityTier: "standard"}

	first := h.submit(t, req)
	require.NotEmpty(t, first.JobID)
	assert.Equal(t, models.StatePending, first.State)
	assert.Equal(t, 0, first.Progress)

	outcome, err := NewWorker(1, h.deps, zap.NewNop()).ProcessNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	rec, err := h.dispatcher.GetStatus(ctx, first.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, rec.State)
	assert.Equal(t, 100, rec.Progress)
	assert.NotEmpty(t, rec.ArtifactRef)
	assert.NotEmpty(t, rec.ThumbnailRef)
	assert.Empty(t, rec.ErrorDetail)

	second := h.submit(t, req)
	assert.True(t, second.Cached)
	assert.Empty(t, second.JobID)
	assert.Equal(t, models.StateCompleted, second.State)
	assert.Equal(t, rec.ArtifactRef, second.ArtifactRef)

	n, err := h.queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProgressIsMonotonic(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res := h.submit(t, models.GenerationRequest{Text: "How are you today?"})

	outcome, err := NewWorker(1, h.deps, zap.NewNop()).ProcessNext(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome)

	assert.Equal(t, []int{25, 50, 75, 90}, h.store.progress)
	rec, err := h.store.Get(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, 100, rec.Progress)
	assert.Equal(t, models.StageRender, rec.Stage)
}

func TestStageFailureMarksJobFailed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.deps.Pipeline = runnerFunc(func(ctx context.Context, job pipeline.Job, onProgress pipeline.ProgressFunc) (*models.Artifact, error) {
		onProgress(ctx, models.StageAnalyze, pipeline.ProgressAnalyzed)
		return nil, &models.StageError{Stage: models.StageTransform, Err: errors.New("gloss dictionary unavailable")}
	})
	req := models.GenerationRequest{Text: "Hello"}
	res := h.submit(t, req)

	outcome, err := NewWorker(1, h.deps, zap.NewNop()).ProcessNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	rec, err := h.store.Get(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, rec.State)
	assert.Equal(t, "transform: gloss dictionary unavailable", rec.ErrorDetail)
	assert.Equal(t, 25, rec.Progress)
	assert.Empty(t, rec.ArtifactRef)

	// No cache entry: resubmitting queues a fresh job.
	again := h.submit(t, req)
	assert.False(t, again.Cached)
	assert.NotEqual(t, res.JobID, again.JobID)
}

func TestLocalBackendFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res := h.submit(t, models.GenerationRequest{Text: "?!"})

	outcome, err := NewWorker(1, h.deps, zap.NewNop()).ProcessNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	rec, err := h.store.Get(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, "analyze: "+pipeline.ErrNoSignableContent.Error(), rec.ErrorDetail)
}

func TestClaimConflictIsAbandoned(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res := h.submit(t, models.GenerationRequest{Text: "Hello"})
	_, err := h.store.MarkProcessing(ctx, res.JobID)
	require.NoError(t, err)

	ran := false
	h.deps.Pipeline = runnerFunc(func(context.Context, pipeline.Job, pipeline.ProgressFunc) (*models.Artifact, error) {
		ran = true
		return nil, errors.New("unreachable")
	})

	outcome, err := NewWorker(1, h.deps, zap.NewNop()).ProcessNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAbandoned, outcome)
	assert.False(t, ran)

	rec, err := h.store.Get(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StateProcessing, rec.State)
}

func TestMissingRecordIsAbandoned(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.queue.Push(ctx, models.QueueEntry{JobID: "ghost", Fingerprint: "fp"}))

	outcome, err := NewWorker(1, h.deps, zap.NewNop()).ProcessNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAbandoned, outcome)
}

func TestEmptyQueueIsIdle(t *testing.T) {
	outcome, err := NewWorker(1, newHarness(t).deps, zap.NewNop()).ProcessNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, outcome)
}

func TestProgressWriteFailureDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.store.failProgress = true
	res := h.submit(t, models.GenerationRequest{Text: "Hello"})

	outcome, err := NewWorker(1, h.deps, zap.NewNop()).ProcessNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	rec, err := h.store.Get(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, rec.State)
	assert.Equal(t, 100, rec.Progress)
}

func TestReapedJobIsNotCached(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.store.completeError = fmt.Errorf("%w: job is Failed", models.ErrInvalidTransition)
	req := models.GenerationRequest{Text: "Hello"}
	h.submit(t, req)

	outcome, err := NewWorker(1, h.deps, zap.NewNop()).ProcessNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAbandoned, outcome)

	again := h.submit(t, req)
	assert.False(t, again.Cached)
}

func TestCompletionReleasesInFlightSlot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res := h.submit(t, models.GenerationRequest{Text: "Hello"})

	_, err := NewWorker(1, h.deps, zap.NewNop()).ProcessNext(ctx)
	require.NoError(t, err)

	rec, err := h.store.Get(ctx, res.JobID)
	require.NoError(t, err)
	holder, acquired, err := h.inflight.Acquire(ctx, rec.Fingerprint, "next-job")
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.Equal(t, "next-job", holder)
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	for i := range 3 {
		h.submit(t, models.GenerationRequest{Text: fmt.Sprintf("sentence %d", i)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewWorker(1, h.deps, zap.NewNop()).Run(ctx, time.Millisecond, 5*time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		n, _ := h.queue.Len(context.Background())
		return n == 0
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestMarkProcessingFailureRequeuesInPlace(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	ids := fillQueue(t, h, 2)
	h.store.markError = errors.New("connection refused")

	w := NewWorker(1, h.deps, zap.NewNop())
	outcome, err := w.ProcessNext(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, OutcomeAbandoned, outcome)

	head, err := h.queue.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids[0], head.JobID)

	rec, err := h.store.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, rec.State)
}
