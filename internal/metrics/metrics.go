// Package metrics holds the Prometheus collectors of the generation and deployment pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stream outcomes
const (
	StreamCompleted = "completed"
	StreamFailed    = "failed"
	// StreamDetached counts streams whose client went away before the end
	StreamDetached = "detached"
)

// Deploy outcomes
const (
	DeployPublished = "published"
	// DeployFallback counts publishes that kept the staging key after a failed rename
	DeployFallback = "fallback"
	DeployFailed   = "failed"
)

var (
	streamOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegen_stream_outcomes_total",
		Help: "Generation streams by terminal outcome",
	}, []string{"generation_type", "outcome"})

	materializeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegen_materialize_errors_total",
		Help: "Completed generations whose output could not be parsed or saved",
	}, []string{"generation_type", "stage"})

	deployOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegen_deploy_outcomes_total",
		Help: "Deploy attempts by outcome",
	}, []string{"generation_type", "outcome"})

	buildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codegen_build_seconds",
		Help:    "Seconds spent building framework projects before publishing",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"result"})

	sweptSnapshots = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codegen_swept_snapshots_total",
		Help: "Stale entries removed from the deploy root",
	})
)

// StreamOutcome counts one terminal stream outcome
func StreamOutcome(generationType, outcome string) {
	streamOutcomes.WithLabelValues(generationType, outcome).Inc()
}

// MaterializeError counts a parse or save failure after a completed stream
func MaterializeError(generationType, stage string) {
	materializeErrors.WithLabelValues(generationType, stage).Inc()
}

// DeployOutcome counts one deploy attempt
func DeployOutcome(generationType, outcome string) {
	deployOutcomes.WithLabelValues(generationType, outcome).Inc()
}

// ObserveBuild records how long a build took
func ObserveBuild(d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	buildDuration.WithLabelValues(result).Observe(d.Seconds())
}

// SnapshotsSwept counts removed deploy root entries
func SnapshotsSwept(n int) {
	sweptSnapshots.Add(float64(n))
}
