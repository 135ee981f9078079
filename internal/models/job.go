package models

import (
	"time"
)

// JobState is the lifecycle state of a generation job.
type JobState string

const (
	StatePending    JobState = "Pending"
	StateProcessing JobState = "Processing"
	StateCompleted  JobState = "Completed"
	StateFailed     JobState = "Failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransitionTo reports whether s -> next is a legal move.
func (s JobState) CanTransitionTo(next JobState) bool {
	switch s {
	case StatePending:
		// Pending -> Failed is only used by the orphan reaper.
		return next == StateProcessing || next == StateFailed
	case StateProcessing:
		return next == StateCompleted || next == StateFailed
	default:
		return false
	}
}

// Pipeline stage names, in execution order.
const (
	StageAnalyze    = "analyze"
	StageTransform  = "transform"
	StageSynthesize = "synthesize"
	StageRender     = "render"
)

// JobStatusRecord is the durable state of one job.
type JobStatusRecord struct {
	JobID            string      `json:"jobId" db:"id"`
	Fingerprint      string      `json:"fingerprint" db:"fingerprint"`
	RequesterID      string      `json:"requesterId,omitempty" db:"requester_id"`
	TargetVariant    string      `json:"targetVariant" db:"target_variant"`
	RenderStyle      RenderStyle `json:"renderStyle" db:"render_style"`
	QualityTier      QualityTier `json:"qualityTier" db:"quality_tier"`
	State            JobState    `json:"state" db:"state"`
	Progress         int         `json:"progress" db:"progress"`
	Stage            string      `json:"stage,omitempty" db:"current_stage"`
	ArtifactRef      string      `json:"artifactRef,omitempty" db:"artifact_ref"`
	ThumbnailRef     string      `json:"thumbnailRef,omitempty" db:"thumbnail_ref"`
	ErrorDetail      string      `json:"errorDetail,omitempty" db:"error_detail"`
	EstimatedSeconds int         `json:"estimatedSeconds" db:"estimated_seconds"`
	CreatedAt        time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time   `json:"updatedAt" db:"updated_at"`
}

// NewPendingRecord builds the initial record for a queued job.
func NewPendingRecord(jobID, fingerprint string, req GenerationRequest, now time.Time) *JobStatusRecord {
	return &JobStatusRecord{
		JobID:            jobID,
		Fingerprint:      fingerprint,
		RequesterID:      req.RequesterID,
		TargetVariant:    req.TargetVariant,
		RenderStyle:      req.RenderStyle,
		QualityTier:      req.QualityTier,
		State:            StatePending,
		Progress:         0,
		EstimatedSeconds: EstimateSeconds(req.Text),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// QueueEntry is a unit of queued work.
type QueueEntry struct {
	JobID        string            `json:"jobId"`
	Fingerprint  string            `json:"fingerprint"`
	Request      GenerationRequest `json:"request"`
	PriorityTier PriorityTier      `json:"priorityTier"`
	EnqueueSeq   int64             `json:"enqueueSeq"`
	EnqueuedAt   time.Time         `json:"enqueuedAt"`
}

// Artifact is the output of a completed generation, shared by every job with
// the same fingerprint.
type Artifact struct {
	ArtifactRef  string    `json:"artifactRef"`
	ThumbnailRef string    `json:"thumbnailRef,omitempty"`
	DurationMs   int64     `json:"durationMs,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SubmitResult is returned to the client on submission. JobID is empty when
// the result came straight from the cache.
type SubmitResult struct {
	JobID            string   `json:"jobId,omitempty"`
	State            JobState `json:"state"`
	Progress         int      `json:"progress"`
	EstimatedSeconds int      `json:"estimatedSeconds,omitempty"`
	ArtifactRef      string   `json:"artifactRef,omitempty"`
	ThumbnailRef     string   `json:"thumbnailRef,omitempty"`
	Cached           bool     `json:"cached"`
	Deduplicated     bool     `json:"deduplicated,omitempty"`
}

// JobEvent is published on every status change.
type JobEvent struct {
	JobID        string    `json:"jobId"`
	RequesterID  string    `json:"requesterId,omitempty"`
	Fingerprint  string    `json:"fingerprint"`
	State        JobState  `json:"state"`
	Progress     int       `json:"progress"`
	Stage        string    `json:"stage,omitempty"`
	ArtifactRef  string    `json:"artifactRef,omitempty"`
	ThumbnailRef string    `json:"thumbnailRef,omitempty"`
	ErrorDetail  string    `json:"errorDetail,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// EventFromRecord builds the event describing rec's current state.
func EventFromRecord(rec *JobStatusRecord, now time.Time) JobEvent {
	return JobEvent{
		JobID:        rec.JobID,
		RequesterID:  rec.RequesterID,
		Fingerprint:  rec.Fingerprint,
		State:        rec.State,
		Progress:     rec.Progress,
		Stage:        rec.Stage,
		ArtifactRef:  rec.ArtifactRef,
		ThumbnailRef: rec.ThumbnailRef,
		ErrorDetail:  rec.ErrorDetail,
		OccurredAt:   now,
	}
}
