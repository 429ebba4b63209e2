// Package metrics exposes Prometheus metrics for daemon mode, where the
// pipeline runs on a schedule and operators watch trends over time.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finbot/finbench/core"
)

// Recorder collects pipeline run outcomes.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	lastExit    *prometheus.GaugeVec
}

// NewRecorder creates a recorder with its own registry, so tests can create
// recorders without colliding on the default one.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finbench",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"pipeline", "outcome"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "finbench",
			Name:      "pipeline_run_duration_seconds",
			Help:      "Wall-clock duration of pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"pipeline"}),
		lastExit: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "finbench",
			Name:      "pipeline_last_exit_code",
			Help:      "Exit code of the most recent run per pipeline.",
		}, []string{"pipeline"}),
	}
}

// RecordResult records one finished pipeline run.
func (r *Recorder) RecordResult(res *core.Result) {
	outcome := "success"
	if res.Failed {
		outcome = "failure"
	}

	r.runsTotal.WithLabelValues(res.Pipeline, outcome).Inc()
	r.runDuration.WithLabelValues(res.Pipeline).Observe(res.Duration.Seconds())
	r.lastExit.WithLabelValues(res.Pipeline).Set(float64(res.ExitCode))
}

// Handler returns the HTTP handler serving the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
