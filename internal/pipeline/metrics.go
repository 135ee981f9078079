package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var stageDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pinksync_pipeline_stage_duration_seconds",
		Help:    "Duration of pipeline stages, partitioned by stage and outcome.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 15),
	},
	[]string{"stage", "outcome"},
)

func observeStage(stage string, took time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	stageDuration.WithLabelValues(stage, outcome).Observe(took.Seconds())
}
