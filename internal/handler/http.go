// Package handler exposes the job system over HTTP.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pinksync/internal/middleware"
	"pinksync/internal/models"
	"pinksync/internal/repository"
	"pinksync/internal/worker"
)

// JobService is the submission and status API.
type JobService interface {
	Submit(ctx context.Context, req models.GenerationRequest) (*models.SubmitResult, error)
	GetStatus(ctx context.Context, jobID string) (*models.JobStatusRecord, error)
	ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]*models.JobStatusRecord, error)
}

// PreferenceService reads and stores per-requester request defaults.
type PreferenceService interface {
	GetPreferences(ctx context.Context, requesterID string) (*models.RequesterPreferences, error)
	SavePreferences(ctx context.Context, prefs models.RequesterPreferences) (*models.RequesterPreferences, error)
}

// BatchProcessor drains the queue for a bounded amount of work.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, maxJobs int, maxDuration time.Duration) (worker.BatchResult, error)
}

// BatchLimits are the defaults and upper bounds of a process-batch call.
type BatchLimits struct {
	MaxJobs     int
	MaxDuration time.Duration
}

type Handler struct {
	jobs     JobService
	batch    BatchProcessor
	limits   BatchLimits
	verifier middleware.InterServiceTokenVerifier
	logger   *zap.Logger
}

// NewHandler builds the HTTP handler. batch may be nil, in which case the
// process-batch endpoint is not registered. verifier may be nil, in which
// case internal endpoints are not authenticated.
func NewHandler(jobs JobService, batch BatchProcessor, limits BatchLimits, verifier middleware.InterServiceTokenVerifier, logger *zap.Logger) *Handler {
	return &Handler{
		jobs:     jobs,
		batch:    batch,
		limits:   limits,
		verifier: verifier,
		logger:   logger.Named("Handler"),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)

	api := router.Group("/api/v1/sign-language")
	{
		api.POST("/generate", h.generate)
		api.GET("/jobs/:jobId", h.getJob)
		api.GET("/jobs", h.listJobs)

		if _, ok := h.jobs.(PreferenceService); ok {
			api.GET("/preferences/:requesterId", h.getPreferences)
			api.PUT("/preferences/:requesterId", h.putPreferences)
		}
	}

	if h.batch != nil {
		internal := router.Group("/internal/workers")
		if h.verifier != nil {
			internal.Use(middleware.InterServiceAuth(h.verifier, h.logger))
		}
		internal.POST("/process-batch", h.processBatch)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.jobs.Submit(c.Request.Context(), req.toModel())
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	status := http.StatusAccepted
	if res.Cached || res.Deduplicated {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

func (h *Handler) getJob(c *gin.Context) {
	rec, err := h.jobs.GetStatus(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) listJobs(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		badRequest(c, "limit must be an integer")
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		badRequest(c, "offset must be an integer")
		return
	}

	limit, offset = repository.ClampListWindow(limit, offset)
	jobs, err := h.jobs.ListByRequester(c.Request.Context(), c.Query("requesterId"), limit, offset)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	if jobs == nil {
		jobs = []*models.JobStatusRecord{}
	}
	c.JSON(http.StatusOK, listJobsResponse{Jobs: jobs, Limit: limit, Offset: offset})
}

func (h *Handler) getPreferences(c *gin.Context) {
	prefs, err := h.jobs.(PreferenceService).GetPreferences(c.Request.Context(), c.Param("requesterId"))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *Handler) putPreferences(c *gin.Context) {
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	prefs, err := h.jobs.(PreferenceService).SavePreferences(c.Request.Context(), req.toModel(c.Param("requesterId")))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *Handler) processBatch(c *gin.Context) {
	var req processBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	maxJobs := h.limits.MaxJobs
	if req.MaxJobs > 0 && req.MaxJobs < maxJobs {
		maxJobs = req.MaxJobs
	}
	maxDuration := h.limits.MaxDuration
	if d := time.Duration(req.MaxDurationSeconds) * time.Second; d > 0 && d < maxDuration {
		maxDuration = d
	}

	// Claimed jobs run to completion even if the caller disconnects.
	ctx := context.WithoutCancel(c.Request.Context())
	res, err := h.batch.ProcessBatch(ctx, maxJobs, maxDuration)
	if err != nil {
		h.logger.Error("Batch processing failed", zap.Error(err), zap.Int("processed", res.Processed))
		c.Header("Retry-After", retryAfterSeconds)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Code:    models.ErrCodeUnavailable,
			Message: "Batch stopped on an infrastructure error",
		})
		return
	}
	c.JSON(http.StatusOK, res)
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
