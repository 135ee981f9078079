package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"pinksync/internal/models"
	"pinksync/internal/retry"
)

// RemoteRendererConfig configures the HTTP render client.
type RemoteRendererConfig struct {
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	BaseRetryDelay time.Duration
}

var _ Renderer = (*RemoteRenderer)(nil)

// RemoteRenderer delegates the render stage to an external rendering
// service over HTTP. 5xx, 429 and transport errors are retried with jittered
// exponential backoff; other 4xx responses fail immediately.
type RemoteRenderer struct {
	cfg    RemoteRendererConfig
	client *http.Client
	logger *zap.Logger
}

func NewRemoteRenderer(cfg RemoteRendererConfig, logger *zap.Logger) *RemoteRenderer {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseRetryDelay <= 0 {
		cfg.BaseRetryDelay = time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &RemoteRenderer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("RemoteRenderer"),
	}
}

type renderRequest struct {
	JobID         string             `json:"jobId"`
	Fingerprint   string             `json:"fingerprint"`
	TargetVariant string             `json:"targetVariant"`
	Style         models.RenderStyle `json:"style"`
	Quality       models.QualityTier `json:"quality"`
	FPS           int                `json:"fps"`
	Frames        int                `json:"frames"`
	Keyframes     []int              `json:"keyframes"`
	DurationMs    int64              `json:"durationMs"`
}

// errPermanent marks responses that retrying cannot fix.
var errPermanent = errors.New("permanent render error")

func (r *RemoteRenderer) Render(ctx context.Context, job Job, anim *Animation) (*RenderResult, error) {
	body, err := json.Marshal(renderRequest{
		JobID:         job.ID,
		Fingerprint:   job.Fingerprint,
		TargetVariant: job.Request.TargetVariant,
		Style:         anim.Style,
		Quality:       job.Request.QualityTier,
		FPS:           anim.FPS,
		Frames:        anim.Frames,
		Keyframes:     anim.Keyframes,
		DurationMs:    anim.DurationMs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal render request: %w", err)
	}

	log := r.logger.With(zap.String("job_id", job.ID))
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		result, err := r.call(ctx, body)
		if err == nil {
			log.Info("Render service responded", zap.Int("attempt", attempt), zap.String("artifact_ref", result.ArtifactRef))
			return result, nil
		}
		lastErr = err
		if errors.Is(err, errPermanent) || ctx.Err() != nil {
			break
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}
		wait := retry.Backoff(r.cfg.BaseRetryDelay, 0, attempt)
		log.Warn("Render call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.cfg.MaxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if err := retry.Sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("render aborted: %w", err)
		}
	}
	return nil, fmt.Errorf("render service failed: %w", lastErr)
}

func (r *RemoteRenderer) call(ctx context.Context, body []byte) (*RenderResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/v1/render", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", errPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("render service returned %d: %s", resp.StatusCode, truncate(respBody))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: render service returned %d: %s", errPermanent, resp.StatusCode, truncate(respBody))
	}

	var result RenderResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: undecodable render response: %v", errPermanent, err)
	}
	if result.ArtifactRef == "" {
		return nil, fmt.Errorf("%w: render response has no artifactRef", errPermanent)
	}
	return &result, nil
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
