package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"pinksync/internal/models"
	"pinksync/internal/queue"
)

// MockQueue is a mock type for the Queue type
type MockQueue struct {
	mock.Mock
}

// Push provides a mock function with given fields: ctx, entry
func (_m *MockQueue) Push(ctx context.Context, entry models.QueueEntry) error {
	ret := _m.Called(ctx, entry)
	return ret.Error(0)
}

// Requeue provides a mock function with given fields: ctx, entry
func (_m *MockQueue) Requeue(ctx context.Context, entry models.QueueEntry) error {
	ret := _m.Called(ctx, entry)
	return ret.Error(0)
}

// ClaimNext provides a mock function with given fields: ctx
func (_m *MockQueue) ClaimNext(ctx context.Context) (*models.QueueEntry, error) {
	ret := _m.Called(ctx)
	var r0 *models.QueueEntry
	if v := ret.Get(0); v != nil {
		r0 = v.(*models.QueueEntry)
	}
	return r0, ret.Error(1)
}

// Len provides a mock function with given fields: ctx
func (_m *MockQueue) Len(ctx context.Context) (int64, error) {
	ret := _m.Called(ctx)
	return ret.Get(0).(int64), ret.Error(1)
}

// NewMockQueue creates a new instance of MockQueue. It also registers a testing interface on the mock.
func NewMockQueue(t interface {
	mock.TestingT
	Helper()
}) *MockQueue {
	m := &MockQueue{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ queue.Queue = (*MockQueue)(nil)
