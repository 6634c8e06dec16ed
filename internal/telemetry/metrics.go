// Package telemetry provides observability primitives for the golem daemon.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the daemon.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  prometheus.Gauge
	CallsTotal      *prometheus.CounterVec
	CallDuration    *prometheus.HistogramVec
	CallErrors      *prometheus.CounterVec
	PendingCalls    *prometheus.GaugeVec
	WorkerPanics    *prometheus.CounterVec
	EntriesBuffered prometheus.Gauge
	EntriesFlushed  *prometheus.CounterVec
	LocaleCacheHits prometheus.Counter
	LocaleCacheMiss prometheus.Counter
	BlobBytes       *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "golem",
			Name:      "requests_total",
			Help:      "Total number of admin HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "golem",
			Name:                            "request_duration_seconds",
			Help:                            "Admin HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "golem",
			Name:      "active_requests",
			Help:      "Number of currently active admin requests.",
		}),

		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "golem",
			Name:      "calls_total",
			Help:      "Total number of worker calls.",
		}, []string{"worker", "op"}),

		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "golem",
			Name:                            "call_duration_seconds",
			Help:                            "Worker call duration in seconds, queue wait included.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"worker", "op"}),

		CallErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "golem",
			Name:      "call_errors_total",
			Help:      "Total worker call errors.",
		}, []string{"worker", "op"}),

		PendingCalls: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "golem",
			Name:      "pending_calls",
			Help:      "Calls currently waiting for a worker reply.",
		}, []string{"worker"}),

		WorkerPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "golem",
			Name:      "worker_panics_total",
			Help:      "Total worker goroutine panics.",
		}, []string{"worker"}),

		EntriesBuffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "golem",
			Name:      "logsink_entries_buffered",
			Help:      "Log entries currently buffered in the sink.",
		}),

		EntriesFlushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "golem",
			Name:      "logsink_entries_flushed_total",
			Help:      "Total log entries flushed, by endpoint.",
		}, []string{"endpoint"}),

		LocaleCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "golem",
			Name:      "locale_cache_hits_total",
			Help:      "Total localization cache hits.",
		}),

		LocaleCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "golem",
			Name:      "locale_cache_misses_total",
			Help:      "Total localization cache misses.",
		}),

		BlobBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "golem",
			Name:      "blob_bytes_total",
			Help:      "Total blob payload bytes, by direction.",
		}, []string{"direction"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.CallsTotal,
		m.CallDuration,
		m.CallErrors,
		m.PendingCalls,
		m.WorkerPanics,
		m.EntriesBuffered,
		m.EntriesFlushed,
		m.LocaleCacheHits,
		m.LocaleCacheMiss,
		m.BlobBytes,
	)

	return m
}
