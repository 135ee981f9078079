package repository_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pinksync/internal/repository"
)

func TestMemoryJobStatusRepository(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) repository.JobStatusRepository {
		return repository.NewMemoryJobStatusRepository()
	})
}

func TestMemoryRequesterPreferencesRepository(t *testing.T) {
	runPreferencesContract(t, func(t *testing.T) repository.RequesterPreferencesRepository {
		return repository.NewMemoryRequesterPreferencesRepository()
	})
}

func TestClampListWindow(t *testing.T) {
	limit, offset := repository.ClampListWindow(0, -5)
	assert.Equal(t, repository.DefaultListLimit, limit)
	assert.Equal(t, 0, offset)

	limit, offset = repository.ClampListWindow(1000, 3)
	assert.Equal(t, repository.MaxListLimit, limit)
	assert.Equal(t, 3, offset)
}
