// Package metrics holds the Prometheus collectors for the bot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	inputsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrbot_wizard_inputs_total",
			Help: "Inputs handled by the wizard by step and outcome",
		},
		[]string{"step", "outcome"},
	)
	handleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hrbot_wizard_handle_duration_seconds",
			Help:    "Time to handle one wizard input",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)
	applicationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrbot_applications_total",
			Help: "Terminal application decisions (submitted, refilled, cancelled)",
		},
		[]string{"decision"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrbot_errors_total",
			Help: "Errors by component and kind",
		},
		[]string{"component", "kind"},
	)
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrbot_jobs_total",
			Help: "Background jobs by type and result",
		},
		[]string{"type", "result"},
	)
	throttledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hrbot_throttled_total",
			Help: "Inbound updates dropped by the per-user rate limiter",
		},
	)
)

// ObserveInput records one handled wizard input.
func ObserveInput(step, outcome string, d time.Duration) {
	inputsTotal.WithLabelValues(step, outcome).Inc()
	handleDuration.WithLabelValues(step).Observe(d.Seconds())
}

// Decision counts a submit, refill or cancel.
func Decision(decision string) {
	applicationsTotal.WithLabelValues(decision).Inc()
}

func Error(component, kind string) {
	errorsTotal.WithLabelValues(component, kind).Inc()
}

func Job(typ, result string) {
	jobsTotal.WithLabelValues(typ, result).Inc()
}

func Throttled() {
	throttledTotal.Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
