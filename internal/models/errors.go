package models

import (
	"errors"
	"fmt"
)

// Application-wide errors.
var (
	ErrNotFound = errors.New("resource not found")

	// ErrValidation marks a request rejected before anything was persisted.
	ErrValidation = errors.New("validation failed")

	// ErrTransientInfra marks a storage or queue failure the caller may retry.
	ErrTransientInfra = errors.New("temporarily unavailable")

	// ErrClaimConflict is returned when a worker claims a job whose record is
	// no longer Pending.
	ErrClaimConflict = errors.New("job already claimed")

	// ErrInvalidTransition is returned for a status write that would move a
	// record backwards or mutate a terminal record.
	ErrInvalidTransition = errors.New("invalid job state transition")

	ErrStageExecution = errors.New("stage execution failed")

	// ErrQueueEmpty is returned by a non-blocking claim on an empty queue.
	ErrQueueEmpty = errors.New("queue is empty")

	ErrUnauthorized   = errors.New("unauthorized")
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")
)

// ValidationError describes which request field was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StageError reports which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error { return []error{ErrStageExecution, e.Err} }
