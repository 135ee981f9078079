package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinksync/internal/models"
	"pinksync/internal/repository"
)

// runRepositoryContract exercises the transition rules every
// JobStatusRepository must honor.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) repository.JobStatusRepository) {
	ctx := context.Background()

	newPending := func(t *testing.T, repo repository.JobStatusRepository, requester string) *models.JobStatusRecord {
		t.Helper()
		req := models.GenerationRequest{Text: "Hello", TargetVariant: "asl", RenderStyle: models.RenderStyleRealistic, QualityTier: models.QualityStandard, RequesterID: requester}
		rec := models.NewPendingRecord(uuid.NewString(), "fp-"+uuid.NewString(), req, time.Now().UTC().Truncate(time.Microsecond))
		require.NoError(t, repo.Create(ctx, rec))
		return rec
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		repo := newRepo(t)
		rec := newPending(t, repo, "user-1")

		got, err := repo.Get(ctx, rec.JobID)
		require.NoError(t, err)
		assert.Equal(t, rec.JobID, got.JobID)
		assert.Equal(t, models.StatePending, got.State)
		assert.Equal(t, 0, got.Progress)
		assert.Equal(t, rec.Fingerprint, got.Fingerprint)
		assert.Equal(t, "user-1", got.RequesterID)
		assert.Equal(t, models.RenderStyleRealistic, got.RenderStyle)
		assert.Equal(t, 30, got.EstimatedSeconds)
	})

	t.Run("GetUnknown", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = repo.Get(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("HappyPath", func(t *testing.T) {
		repo := newRepo(t)
		rec := newPending(t, repo, "")

		claimed, err := repo.MarkProcessing(ctx, rec.JobID)
		require.NoError(t, err)
		assert.Equal(t, models.StateProcessing, claimed.State)

		require.NoError(t, repo.UpdateProgress(ctx, rec.JobID, 25, models.StageAnalyze))
		require.NoError(t, repo.UpdateProgress(ctx, rec.JobID, 25, models.StageAnalyze))
		require.NoError(t, repo.UpdateProgress(ctx, rec.JobID, 50, models.StageTransform))

		done, err := repo.Complete(ctx, rec.JobID, models.Artifact{ArtifactRef: "video.mp4", ThumbnailRef: "thumb.jpg"})
		require.NoError(t, err)
		assert.Equal(t, models.StateCompleted, done.State)
		assert.Equal(t, 100, done.Progress)
		assert.Equal(t, "video.mp4", done.ArtifactRef)
		assert.Equal(t, "thumb.jpg", done.ThumbnailRef)
		assert.Equal(t, models.StageTransform, done.Stage)
	})

	t.Run("ClaimConflict", func(t *testing.T) {
		repo := newRepo(t)
		rec := newPending(t, repo, "")

		_, err := repo.MarkProcessing(ctx, rec.JobID)
		require.NoError(t, err)
		_, err = repo.MarkProcessing(ctx, rec.JobID)
		assert.ErrorIs(t, err, models.ErrClaimConflict)

		_, err = repo.MarkProcessing(ctx, uuid.NewString())
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("ProgressIsMonotonic", func(t *testing.T) {
		repo := newRepo(t)
		rec := newPending(t, repo, "")

		err := repo.UpdateProgress(ctx, rec.JobID, 10, models.StageAnalyze)
		assert.ErrorIs(t, err, models.ErrInvalidTransition, "pending jobs take no progress")

		_, err = repo.MarkProcessing(ctx, rec.JobID)
		require.NoError(t, err)
		require.NoError(t, repo.UpdateProgress(ctx, rec.JobID, 50, models.StageTransform))

		err = repo.UpdateProgress(ctx, rec.JobID, 25, models.StageAnalyze)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		err = repo.UpdateProgress(ctx, rec.JobID, 101, models.StageRender)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)

		got, err := repo.Get(ctx, rec.JobID)
		require.NoError(t, err)
		assert.Equal(t, 50, got.Progress)
		assert.Equal(t, models.StageTransform, got.Stage)
	})

	t.Run("TerminalRecordsAreImmutable", func(t *testing.T) {
		repo := newRepo(t)
		completed := newPending(t, repo, "")
		failed := newPending(t, repo, "")

		for _, rec := range []*models.JobStatusRecord{completed, failed} {
			_, err := repo.MarkProcessing(ctx, rec.JobID)
			require.NoError(t, err)
		}
		_, err := repo.Complete(ctx, completed.JobID, models.Artifact{ArtifactRef: "a"})
		require.NoError(t, err)
		_, err = repo.Fail(ctx, failed.JobID, "render: boom")
		require.NoError(t, err)

		for _, rec := range []*models.JobStatusRecord{completed, failed} {
			before, err := repo.Get(ctx, rec.JobID)
			require.NoError(t, err)

			_, err = repo.MarkProcessing(ctx, rec.JobID)
			assert.ErrorIs(t, err, models.ErrClaimConflict)
			assert.ErrorIs(t, repo.UpdateProgress(ctx, rec.JobID, 100, models.StageRender), models.ErrInvalidTransition)
			_, err = repo.Complete(ctx, rec.JobID, models.Artifact{ArtifactRef: "other"})
			assert.ErrorIs(t, err, models.ErrInvalidTransition)
			_, err = repo.Fail(ctx, rec.JobID, "late failure")
			assert.ErrorIs(t, err, models.ErrInvalidTransition)
			assert.ErrorIs(t, repo.Delete(ctx, rec.JobID), models.ErrInvalidTransition)

			after, err := repo.Get(ctx, rec.JobID)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		}
	})

	t.Run("DeleteOnlyPending", func(t *testing.T) {
		repo := newRepo(t)
		rec := newPending(t, repo, "")

		require.NoError(t, repo.Delete(ctx, rec.JobID))
		_, err := repo.Get(ctx, rec.JobID)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, rec.JobID), models.ErrNotFound)
	})

	t.Run("ListByRequester", func(t *testing.T) {
		repo := newRepo(t)
		owner := "owner-" + uuid.NewString()
		var ids []string
		for i := 0; i < 3; i++ {
			rec := newPending(t, repo, owner)
			ids = append(ids, rec.JobID)
			time.Sleep(2 * time.Millisecond)
		}
		newPending(t, repo, "someone-else")

		page, err := repo.ListByRequester(ctx, owner, 2, 0)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, ids[2], page[0].JobID)
		assert.Equal(t, ids[1], page[1].JobID)

		rest, err := repo.ListByRequester(ctx, owner, 2, 2)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, ids[0], rest[0].JobID)

		none, err := repo.ListByRequester(ctx, "nobody", 10, 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("FailStaleAndRetention", func(t *testing.T) {
		repo := newRepo(t)
		stuck := newPending(t, repo, "")
		_, err := repo.MarkProcessing(ctx, stuck.JobID)
		require.NoError(t, err)
		orphan := newPending(t, repo, "")

		cutoff := time.Now().UTC().Add(time.Second)

		failed, err := repo.FailStale(ctx, models.StateProcessing, cutoff, "stale: no progress")
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, stuck.JobID, failed[0].JobID)
		assert.Equal(t, models.StateFailed, failed[0].State)

		failed, err = repo.FailStale(ctx, models.StatePending, cutoff, "orphaned")
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, orphan.JobID, failed[0].JobID)

		_, err = repo.FailStale(ctx, models.StateCompleted, cutoff, "nope")
		assert.True(t, errors.Is(err, models.ErrInvalidTransition))

		n, err := repo.DeleteTerminalBefore(ctx, time.Now().UTC().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		_, err = repo.Get(ctx, stuck.JobID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
