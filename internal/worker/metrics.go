package worker

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

const pushJobName = "pinksync_worker"

var (
	claimsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pinksync_worker_claims_total",
			Help: "Total number of queue entries claimed by workers.",
		},
	)
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinksync_worker_jobs_total",
			Help: "Total number of claimed jobs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
	stageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinksync_worker_stage_failures_total",
			Help: "Total number of failed jobs, partitioned by the stage that failed.",
		},
		[]string{"stage"},
	)
	activeJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pinksync_worker_active_jobs",
			Help: "Number of jobs currently running in this process.",
		},
	)
	batchRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pinksync_worker_batch_runs_total",
			Help: "Total number of batch runs.",
		},
	)
	batchJobsProcessed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pinksync_worker_batch_jobs_processed",
			Help:    "Number of jobs processed per batch run.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
)

// PushMetrics sends the default registry to a Pushgateway, grouped by
// host and pid. Batch runs are too short-lived to be scraped.
func PushMetrics(pushgatewayURL string, logger *zap.Logger) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	instance := fmt.Sprintf("%s-%d", hostname, os.Getpid())

	err = push.New(pushgatewayURL, pushJobName).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("instance", instance).
		Push()
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", pushgatewayURL, err)
	}
	logger.Info("Metrics pushed", zap.String("pushgateway", pushgatewayURL), zap.String("instance", instance))
	return nil
}
