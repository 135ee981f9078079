package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinksync/internal/models"
	"pinksync/internal/repository"
)

func runPreferencesContract(t *testing.T, newRepo func(t *testing.T) repository.RequesterPreferencesRepository) {
	ctx := context.Background()

	t.Run("GetUnknown", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, "nobody")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("UpsertReplaces", func(t *testing.T) {
		repo := newRepo(t)
		first, err := repo.Upsert(ctx, models.RequesterPreferences{RequesterID: "alice", TargetVariant: "bsl", RenderStyle: models.RenderStyleCartoon})
		require.NoError(t, err)
		assert.False(t, first.UpdatedAt.IsZero())

		_, err = repo.Upsert(ctx, models.RequesterPreferences{RequesterID: "alice", QualityTier: models.QualityPremium})
		require.NoError(t, err)

		got, err := repo.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.RequesterID)
		assert.Empty(t, got.TargetVariant)
		assert.Empty(t, got.RenderStyle)
		assert.Equal(t, models.QualityPremium, got.QualityTier)
	})
}
