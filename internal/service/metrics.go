package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeCacheHit     = "cache_hit"
	outcomeQueued       = "queued"
	outcomeDeduplicated = "deduplicated"
	outcomeInvalid      = "invalid"
	outcomeError        = "error"
)

var submissionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pinksync_submissions_total",
		Help: "Total number of generation submissions, partitioned by outcome.",
	},
	[]string{"outcome"},
)
