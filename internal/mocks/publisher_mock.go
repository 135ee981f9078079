package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"pinksync/internal/messaging"
	"pinksync/internal/models"
)

// MockJobEventPublisher is a mock type for the JobEventPublisher type
type MockJobEventPublisher struct {
	mock.Mock
}

// PublishJobEvent provides a mock function with given fields: ctx, event
func (_m *MockJobEventPublisher) PublishJobEvent(ctx context.Context, event models.JobEvent) error {
	ret := _m.Called(ctx, event)
	return ret.Error(0)
}

// NewMockJobEventPublisher creates a new instance of MockJobEventPublisher. It also registers a testing interface on the mock.
func NewMockJobEventPublisher(t interface {
	mock.TestingT
	Helper()
}) *MockJobEventPublisher {
	m := &MockJobEventPublisher{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ messaging.JobEventPublisher = (*MockJobEventPublisher)(nil)
