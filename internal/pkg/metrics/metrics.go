// Package metrics provides Prometheus metrics for the sentinel backend.
// Scrapeable at /metrics; dashboards and alerts can rely on these names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sentinel"

var (
	// HTTPRequestTotal counts requests by method, path, status.
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// LogsIngestedTotal counts successfully persisted log entries.
	LogsIngestedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logs_ingested_total",
			Help:      "Total number of log entries ingested.",
		},
	)

	// AnomaliesCreatedTotal counts created anomalies by detection source.
	AnomaliesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_created_total",
			Help:      "Total number of anomalies created, by detection source.",
		},
		[]string{"source"},
	)

	// AnalysisCyclesTotal counts completed AI analysis cycles.
	AnalysisCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_cycles_total",
			Help:      "Total number of AI analysis cycles run to completion.",
		},
	)

	// AnalysisCyclesSkippedTotal counts cycles skipped by the overlap flag
	// or the cool-down window.
	AnalysisCyclesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_cycles_skipped_total",
			Help:      "Total number of AI analysis cycles skipped, by cause.",
		},
		[]string{"cause"},
	)

	// WebSocketConnectionsActive is the current number of WebSocket clients.
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Number of active WebSocket connections.",
		},
	)
)
