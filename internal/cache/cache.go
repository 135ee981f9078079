// Package cache maps request fingerprints to finished artifacts and tracks
// which fingerprints currently have a job in flight.
package cache

import (
	"context"

	"pinksync/internal/models"
)

// FingerprintCache stores one artifact per fingerprint. Put is
// last-write-wins; equivalent computations produce identical artifacts.
type FingerprintCache interface {
	Get(ctx context.Context, fingerprint string) (*models.Artifact, bool, error)
	Put(ctx context.Context, fingerprint string, artifact models.Artifact) error
}

// InFlightRegistry remembers the job currently producing a fingerprint.
type InFlightRegistry interface {
	// Acquire records jobID as the producer of fingerprint. If another job
	// already holds it, that job's id is returned with acquired false.
	Acquire(ctx context.Context, fingerprint, jobID string) (holder string, acquired bool, err error)
	// Release frees fingerprint if jobID still holds it.
	Release(ctx context.Context, fingerprint, jobID string) error
}
