package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	applog "pinksync/internal/logger"
	"pinksync/internal/models"
)

// Progress written after each stage completes. Completion itself sets 100.
const (
	ProgressAnalyzed    = 25
	ProgressTransformed = 50
	ProgressSynthesized = 75
	ProgressRendered    = 90
)

// ProgressFunc receives the stage that just finished and the new progress.
type ProgressFunc func(ctx context.Context, stage string, progress int)

// Pipeline executes Analyze, Transform, Synthesize and Render in strict order.
type Pipeline struct {
	backend  Backend
	renderer Renderer
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Pipeline)

// WithRenderer replaces the backend's render stage.
func WithRenderer(r Renderer) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.renderer = r
		}
	}
}

func New(backend Backend, logger *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		backend:  backend,
		renderer: backend,
		logger:   logger.Named("Pipeline"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes every stage. A stage failure aborts the run and is returned as
// *models.StageError; later stages do not run. onProgress may be nil.
func (p *Pipeline) Run(ctx context.Context, job Job, onProgress ProgressFunc) (*models.Artifact, error) {
	log := p.logger.With(zap.String("job_id", job.ID), zap.String("fingerprint", job.Fingerprint))

	analysis, err := runStage(ctx, log, models.StageAnalyze, ProgressAnalyzed, onProgress, func(ctx context.Context) (*Analysis, error) {
		return p.backend.Analyze(ctx, job)
	})
	if err != nil {
		return nil, err
	}
	seq, err := runStage(ctx, log, models.StageTransform, ProgressTransformed, onProgress, func(ctx context.Context) (*SignSequence, error) {
		return p.backend.Transform(ctx, job, analysis)
	})
	if err != nil {
		return nil, err
	}
	anim, err := runStage(ctx, log, models.StageSynthesize, ProgressSynthesized, onProgress, func(ctx context.Context) (*Animation, error) {
		return p.backend.Synthesize(ctx, job, seq)
	})
	if err != nil {
		return nil, err
	}
	rendered, err := runStage(ctx, log, models.StageRender, ProgressRendered, onProgress, func(ctx context.Context) (*RenderResult, error) {
		return p.renderer.Render(ctx, job, anim)
	})
	if err != nil {
		return nil, err
	}
	if rendered.ArtifactRef == "" {
		return nil, &models.StageError{Stage: models.StageRender, Err: fmt.Errorf("renderer returned an empty artifact ref")}
	}

	log.Info("Pipeline finished",
		zap.String("artifact_ref", rendered.ArtifactRef),
		zap.String("resolution", rendered.Resolution),
		zap.Int64("duration_ms", rendered.DurationMs),
	)
	return &models.Artifact{
		ArtifactRef:  rendered.ArtifactRef,
		ThumbnailRef: rendered.ThumbnailRef,
		DurationMs:   rendered.DurationMs,
		CreatedAt:    p.now(),
	}, nil
}

func runStage[T any](
	ctx context.Context,
	log *zap.Logger,
	stage string,
	progress int,
	onProgress ProgressFunc,
	fn func(context.Context) (*T, error),
) (out *T, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err == nil && out == nil {
			err = fmt.Errorf("stage produced no output")
		}
		observeStage(stage, time.Since(start), err)
		if err != nil {
			log.Warn("Stage failed", zap.String(applog.FieldStage, stage), zap.Error(err))
			out, err = nil, &models.StageError{Stage: stage, Err: err}
			return
		}
		log.Debug("Stage completed", zap.String(applog.FieldStage, stage), zap.Duration("took", time.Since(start)))
		if onProgress != nil {
			onProgress(ctx, stage, progress)
		}
	}()
	return fn(ctx)
}
