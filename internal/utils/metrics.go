package utils

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Tracks performance metrics across the system
type MetricsCollector struct {
	mu           sync.RWMutex
	requestCount uint64
	errorCount   uint64

	// Maps operation name to list of latencies in nanoseconds
	operationTimes map[string][]int64

	systemStartTime time.Time

	registry *prometheus.Registry
	latency  *prometheus.HistogramVec
	events   *prometheus.CounterVec
	requests prometheus.Counter
	errors   prometheus.Counter
}

const maxSamplesPerOperation = 1024

func NewMetricsCollector() *MetricsCollector {
	registry := prometheus.NewRegistry()
	mc := &MetricsCollector{
		operationTimes:  make(map[string][]int64),
		systemStartTime: time.Now(),
		registry:        registry,
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tipster",
			Name:      "operation_duration_seconds",
			Help:      "Latency of engine operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tipster",
			Name:      "engine_events_total",
			Help:      "Engine events such as snapshots, rollbacks and verifications.",
		}, []string{"event"}),
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tipster",
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tipster",
			Name:      "http_errors_total",
			Help:      "HTTP requests that ended in an error.",
		}),
	}
	registry.MustRegister(mc.latency, mc.events, mc.requests, mc.errors)
	return mc
}

// Registry exposes the prometheus registry for the /metrics handler.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

func (mc *MetricsCollector) IncrementRequests() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.requestCount++
	mc.requests.Inc()
}

func (mc *MetricsCollector) IncrementErrors() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.errorCount++
	mc.errors.Inc()
}

// RecordEvent counts a named engine event.
func (mc *MetricsCollector) RecordEvent(event string) {
	mc.events.WithLabelValues(event).Inc()
}

func (mc *MetricsCollector) AddOperationLatency(operationName string, duration time.Duration) {
	mc.latency.WithLabelValues(operationName).Observe(duration.Seconds())

	mc.mu.Lock()
	defer mc.mu.Unlock()

	samples := append(mc.operationTimes[operationName], duration.Nanoseconds())
	if len(samples) > maxSamplesPerOperation {
		samples = samples[len(samples)-maxSamplesPerOperation:]
	}
	mc.operationTimes[operationName] = samples
}

// Snapshot summarizes counters and average latencies for the health endpoint.
type MetricsSnapshot struct {
	Uptime       time.Duration            `json:"uptime"`
	RequestCount uint64                   `json:"requestCount"`
	ErrorCount   uint64                   `json:"errorCount"`
	AvgLatency   map[string]time.Duration `json:"avgLatency"`
}

func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	avg := make(map[string]time.Duration, len(mc.operationTimes))
	for op, samples := range mc.operationTimes {
		if len(samples) == 0 {
			continue
		}
		var total int64
		for _, s := range samples {
			total += s
		}
		avg[op] = time.Duration(total / int64(len(samples)))
	}
	return MetricsSnapshot{
		Uptime:       time.Since(mc.systemStartTime),
		RequestCount: mc.requestCount,
		ErrorCount:   mc.errorCount,
		AvgLatency:   avg,
	}
}
