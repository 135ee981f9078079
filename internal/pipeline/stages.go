// Package pipeline runs the four generation stages for a job and reports
// progress as each one finishes.
package pipeline

import (
	"context"

	"pinksync/internal/models"
)

// Job is what the stages see of a claimed queue entry.
type Job struct {
	ID          string
	Fingerprint string
	Request     models.GenerationRequest
}

// SentenceKind classifies a sentence by its terminator.
type SentenceKind string

const (
	SentenceStatement   SentenceKind = "statement"
	SentenceQuestion    SentenceKind = "question"
	SentenceExclamation SentenceKind = "exclamation"
)

type Sentence struct {
	Text  string       `json:"text"`
	Kind  SentenceKind `json:"kind"`
	Words []string     `json:"words"`
}

// Analysis is the output of the analyze stage.
type Analysis struct {
	Sentences []Sentence `json:"sentences"`
	WordCount int        `json:"wordCount"`
}

// Gloss is one sign in the sequence.
type Gloss struct {
	Sign           string `json:"sign"`
	StartMs        int64  `json:"startMs"`
	DurationMs     int64  `json:"durationMs"`
	FacialMarker   string `json:"facialMarker"`
	HeadMovement   string `json:"headMovement"`
	SentenceNumber int    `json:"sentenceNumber"`
}

// SignSequence is the output of the transform stage.
type SignSequence struct {
	Variant    string  `json:"variant"`
	Glosses    []Gloss `json:"glosses"`
	DurationMs int64   `json:"durationMs"`
}

// Animation is the output of the synthesize stage.
type Animation struct {
	Style      models.RenderStyle `json:"style"`
	FPS        int                `json:"fps"`
	Frames     int                `json:"frames"`
	Keyframes  []int              `json:"keyframes"`
	DurationMs int64              `json:"durationMs"`
}

// RenderResult is the output of the render stage.
type RenderResult struct {
	ArtifactRef  string `json:"artifactRef"`
	ThumbnailRef string `json:"thumbnailRef"`
	Resolution   string `json:"resolution"`
	FPS          int    `json:"fps"`
	DurationMs   int64  `json:"durationMs"`
	FileSizeKB   int64  `json:"fileSizeKb"`
}

// Backend performs the stages. Each stage is a function of the previous
// stage's output and the job.
type Backend interface {
	Analyze(ctx context.Context, job Job) (*Analysis, error)
	Transform(ctx context.Context, job Job, analysis *Analysis) (*SignSequence, error)
	Synthesize(ctx context.Context, job Job, seq *SignSequence) (*Animation, error)
	Renderer
}

// Renderer performs only the render stage; it can replace the backend's own.
type Renderer interface {
	Render(ctx context.Context, job Job, anim *Animation) (*RenderResult, error)
}
