package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"pinksync/internal/models"
	"pinksync/internal/repository"
)

// MockJobStatusRepository is a mock type for the JobStatusRepository type
type MockJobStatusRepository struct {
	mock.Mock
}

func recordResult(ret mock.Arguments) (*models.JobStatusRecord, error) {
	var r0 *models.JobStatusRecord
	if v := ret.Get(0); v != nil {
		r0 = v.(*models.JobStatusRecord)
	}
	return r0, ret.Error(1)
}

// Create provides a mock function with given fields: ctx, rec
func (_m *MockJobStatusRepository) Create(ctx context.Context, rec *models.JobStatusRecord) error {
	ret := _m.Called(ctx, rec)
	return ret.Error(0)
}

// Get provides a mock function with given fields: ctx, jobID
func (_m *MockJobStatusRepository) Get(ctx context.Context, jobID string) (*models.JobStatusRecord, error) {
	return recordResult(_m.Called(ctx, jobID))
}

// ListByRequester provides a mock function with given fields: ctx, requesterID, limit, offset
func (_m *MockJobStatusRepository) ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]*models.JobStatusRecord, error) {
	ret := _m.Called(ctx, requesterID, limit, offset)
	var r0 []*models.JobStatusRecord
	if v := ret.Get(0); v != nil {
		r0 = v.([]*models.JobStatusRecord)
	}
	return r0, ret.Error(1)
}

// MarkProcessing provides a mock function with given fields: ctx, jobID
func (_m *MockJobStatusRepository) MarkProcessing(ctx context.Context, jobID string) (*models.JobStatusRecord, error) {
	return recordResult(_m.Called(ctx, jobID))
}

// UpdateProgress provides a mock function with given fields: ctx, jobID, progress, stage
func (_m *MockJobStatusRepository) UpdateProgress(ctx context.Context, jobID string, progress int, stage string) error {
	ret := _m.Called(ctx, jobID, progress, stage)
	return ret.Error(0)
}

// Complete provides a mock function with given fields: ctx, jobID, artifact
func (_m *MockJobStatusRepository) Complete(ctx context.Context, jobID string, artifact models.Artifact) (*models.JobStatusRecord, error) {
	return recordResult(_m.Called(ctx, jobID, artifact))
}

// Fail provides a mock function with given fields: ctx, jobID, detail
func (_m *MockJobStatusRepository) Fail(ctx context.Context, jobID, detail string) (*models.JobStatusRecord, error) {
	return recordResult(_m.Called(ctx, jobID, detail))
}

// Delete provides a mock function with given fields: ctx, jobID
func (_m *MockJobStatusRepository) Delete(ctx context.Context, jobID string) error {
	ret := _m.Called(ctx, jobID)
	return ret.Error(0)
}

// FailStale provides a mock function with given fields: ctx, state, before, detail
func (_m *MockJobStatusRepository) FailStale(ctx context.Context, state models.JobState, before time.Time, detail string) ([]*models.JobStatusRecord, error) {
	ret := _m.Called(ctx, state, before, detail)
	var r0 []*models.JobStatusRecord
	if v := ret.Get(0); v != nil {
		r0 = v.([]*models.JobStatusRecord)
	}
	return r0, ret.Error(1)
}

// DeleteTerminalBefore provides a mock function with given fields: ctx, before
func (_m *MockJobStatusRepository) DeleteTerminalBefore(ctx context.Context, before time.Time) (int64, error) {
	ret := _m.Called(ctx, before)
	return ret.Get(0).(int64), ret.Error(1)
}

// NewMockJobStatusRepository creates a new instance of MockJobStatusRepository. It also registers a testing interface on the mock.
func NewMockJobStatusRepository(t interface {
	mock.TestingT
	Helper()
}) *MockJobStatusRepository {
	m := &MockJobStatusRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.JobStatusRepository = (*MockJobStatusRepository)(nil)
