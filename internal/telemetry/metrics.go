// Package telemetry exposes the fusion core's operational metrics for the
// external monitoring collaborator.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cycleLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fusor_cycle_duration_seconds",
			Help:    "Wall time of one decision cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"symbol", "timeframe"},
	)

	conflictSeverity = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fusor_conflicts_total",
			Help: "Detected conflicts by severity level",
		},
		[]string{"symbol", "level"},
	)

	fallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fusor_fallbacks_total",
			Help: "Conservative fallbacks by trigger reason",
		},
		[]string{"symbol", "reason"},
	)

	decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fusor_decisions_total",
			Help: "Emitted decisions by class",
		},
		[]string{"symbol", "class"},
	)

	droppedSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fusor_dropped_signals_total",
			Help: "Signals dropped before fusion",
		},
		[]string{"symbol", "reason"},
	)

	inboxDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fusor_inbox_depth",
			Help: "Buffered signals per pair inbox",
		},
		[]string{"symbol", "timeframe"},
	)

	cycleAborts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fusor_cycle_aborts_total",
			Help: "Cycles aborted without a decision",
		},
		[]string{"symbol", "reason"},
	)
)

func init() {
	prometheus.MustRegister(cycleLatency)
	prometheus.MustRegister(conflictSeverity)
	prometheus.MustRegister(fallbacks)
	prometheus.MustRegister(decisions)
	prometheus.MustRegister(droppedSignals)
	prometheus.MustRegister(inboxDepth)
	prometheus.MustRegister(cycleAborts)
}

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveCycle(symbol, timeframe string, seconds float64) {
	cycleLatency.WithLabelValues(symbol, timeframe).Observe(seconds)
}

func RecordConflict(symbol, level string) {
	conflictSeverity.WithLabelValues(symbol, level).Inc()
}

func RecordFallback(symbol, reason string) {
	fallbacks.WithLabelValues(symbol, reason).Inc()
}

func RecordDecision(symbol, class string) {
	decisions.WithLabelValues(symbol, class).Inc()
}

func RecordDroppedSignal(symbol, reason string) {
	droppedSignals.WithLabelValues(symbol, reason).Inc()
}

func SetInboxDepth(symbol, timeframe string, depth int) {
	inboxDepth.WithLabelValues(symbol, timeframe).Set(float64(depth))
}

func RecordCycleAbort(symbol, reason string) {
	cycleAborts.WithLabelValues(symbol, reason).Inc()
}
