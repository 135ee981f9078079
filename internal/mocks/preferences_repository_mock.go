package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"pinksync/internal/models"
	"pinksync/internal/repository"
)

// MockRequesterPreferencesRepository is a mock type for the RequesterPreferencesRepository type
type MockRequesterPreferencesRepository struct {
	mock.Mock
}

func preferencesResult(ret mock.Arguments) (*models.RequesterPreferences, error) {
	var r0 *models.RequesterPreferences
	if v := ret.Get(0); v != nil {
		r0 = v.(*models.RequesterPreferences)
	}
	return r0, ret.Error(1)
}

// Get provides a mock function with given fields: ctx, requesterID
func (_m *MockRequesterPreferencesRepository) Get(ctx context.Context, requesterID string) (*models.RequesterPreferences, error) {
	return preferencesResult(_m.Called(ctx, requesterID))
}

// Upsert provides a mock function with given fields: ctx, prefs
func (_m *MockRequesterPreferencesRepository) Upsert(ctx context.Context, prefs models.RequesterPreferences) (*models.RequesterPreferences, error) {
	return preferencesResult(_m.Called(ctx, prefs))
}

// NewMockRequesterPreferencesRepository creates a new instance of MockRequesterPreferencesRepository. It also registers a testing interface on the mock.
func NewMockRequesterPreferencesRepository(t interface {
	mock.TestingT
	Helper()
}) *MockRequesterPreferencesRepository {
	m := &MockRequesterPreferencesRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.RequesterPreferencesRepository = (*MockRequesterPreferencesRepository)(nil)
