//go:build integration

package repository_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pinksync/internal/database"
	"pinksync/internal/repository"
	"pinksync/internal/testutil"
)

func TestPgJobStatusRepository(t *testing.T) {
	testutil.RequireDocker(t)
	ctx := context.Background()
	logger := zap.NewNop()

	dsn := testutil.StartPostgres(ctx, t)
	require.NoError(t, database.ApplyMigrations(dsn, logger))
	// Applying twice is a no-op.
	require.NoError(t, database.ApplyMigrations(dsn, logger))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	runRepositoryContract(t, func(t *testing.T) repository.JobStatusRepository {
		_, err := pool.Exec(ctx, "TRUNCATE TABLE generation_jobs")
		require.NoError(t, err)
		return repository.NewPgJobStatusRepository(pool, logger)
	})

	runPreferencesContract(t, func(t *testing.T) repository.RequesterPreferencesRepository {
		_, err := pool.Exec(ctx, "TRUNCATE TABLE requester_preferences")
		require.NoError(t, err)
		return repository.NewPgRequesterPreferencesRepository(pool, logger)
	})
}
