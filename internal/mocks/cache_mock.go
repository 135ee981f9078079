package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"pinksync/internal/cache"
	"pinksync/internal/models"
)

// MockFingerprintCache is a mock type for the FingerprintCache type
type MockFingerprintCache struct {
	mock.Mock
}

// Get provides a mock function with given fields: ctx, fingerprint
func (_m *MockFingerprintCache) Get(ctx context.Context, fingerprint string) (*models.Artifact, bool, error) {
	ret := _m.Called(ctx, fingerprint)
	var r0 *models.Artifact
	if v := ret.Get(0); v != nil {
		r0 = v.(*models.Artifact)
	}
	return r0, ret.Bool(1), ret.Error(2)
}

// Put provides a mock function with given fields: ctx, fingerprint, artifact
func (_m *MockFingerprintCache) Put(ctx context.Context, fingerprint string, artifact models.Artifact) error {
	ret := _m.Called(ctx, fingerprint, artifact)
	return ret.Error(0)
}

// NewMockFingerprintCache creates a new instance of MockFingerprintCache. It also registers a testing interface on the mock.
func NewMockFingerprintCache(t interface {
	mock.TestingT
	Helper()
}) *MockFingerprintCache {
	m := &MockFingerprintCache{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ cache.FingerprintCache = (*MockFingerprintCache)(nil)
