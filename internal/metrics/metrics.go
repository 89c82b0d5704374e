// Package metrics holds the Prometheus collectors exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alertengine_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status"},
	)

	// Evaluation metrics
	EvaluationCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_evaluation_cycles_total",
			Help: "Total number of evaluation cycles",
		},
		[]string{"status"}, // status: completed, skipped, failed
	)

	EvaluationCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alertengine_evaluation_cycle_duration_seconds",
			Help:    "Time taken to evaluate every target once",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	EvaluationOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_evaluation_outcomes_total",
			Help: "Per-target evaluation outcomes",
		},
		[]string{"outcome"}, // skipped, below_threshold, suppressed, triggered, conflict, failed
	)

	// Dispatch metrics
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_dispatch_total",
			Help: "Total number of channel deliveries attempted",
		},
		[]string{"channel", "status"}, // status: delivered, failed
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alertengine_dispatch_duration_seconds",
			Help:    "Time taken to deliver one alert on one channel",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"channel"},
	)

	// Kafka producer metrics
	KafkaPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_kafka_publish_total",
			Help: "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"}, // status: success, failed
	)

	// Real-time feed
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertengine_websocket_clients",
			Help: "Currently connected WebSocket clients",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
