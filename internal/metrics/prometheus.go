package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PrometheusMetrics wraps prometheus collectors for the store and the client
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Store
	storeReadsTotal     *prometheus.CounterVec
	storeWritesTotal    *prometheus.CounterVec
	storeEvictionsTotal prometheus.Counter
	storeErrorsTotal    *prometheus.CounterVec

	// Client
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	offlineNoticesTotal *prometheus.CounterVec
	activeRequests      prometheus.Gauge
}

// Default histogram buckets for request duration (in seconds)
var defaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

var (
	promMu      sync.RWMutex
	promMetrics *PrometheusMetrics
)

// InitPrometheus initializes the Prometheus metrics subsystem. Calling it again
// replaces the registry, which tests rely on.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		storeReadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_reads_total",
				Help:      "Store reads by result (value, raw, empty, missing, error)",
			},
			[]string{"surface", "result"},
		),

		storeWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_writes_total",
				Help:      "Store writes",
			},
			[]string{"surface"},
		),

		storeEvictionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_evictions_total",
				Help:      "Entries deleted by an expired read",
			},
		),

		storeErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Surface failures by operation",
			},
			[]string{"op"},
		),

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "API calls by outcome",
			},
			[]string{"outcome"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of dispatched API calls in seconds",
				Buckets:   buckets,
			},
			[]string{"method"},
		),

		offlineNoticesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "offline_notices_total",
				Help:      "Offline short-circuits, split by whether the notice fired or was throttled",
			},
			[]string{"fired"},
		),

		activeRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_requests",
				Help:      "Number of API calls currently in flight",
			},
		),
	}

	registry.MustRegister(
		pm.storeReadsTotal,
		pm.storeWritesTotal,
		pm.storeEvictionsTotal,
		pm.storeErrorsTotal,
		pm.requestsTotal,
		pm.requestDuration,
		pm.offlineNoticesTotal,
		pm.activeRequests,
	)

	promMu.Lock()
	promMetrics = pm
	promMu.Unlock()
}

func current() *PrometheusMetrics {
	promMu.RLock()
	defer promMu.RUnlock()
	return promMetrics
}

// RecordStoreRead records a store read and its result kind
func RecordStoreRead(surface, result string) {
	pm := current()
	if pm == nil {
		return
	}
	pm.storeReadsTotal.WithLabelValues(surface, result).Inc()
}

// RecordStoreWrite records a store write
func RecordStoreWrite(surface string) {
	pm := current()
	if pm == nil {
		return
	}
	pm.storeWritesTotal.WithLabelValues(surface).Inc()
}

// RecordStoreEviction records an expired entry deleted on read
func RecordStoreEviction() {
	pm := current()
	if pm == nil {
		return
	}
	pm.storeEvictionsTotal.Inc()
}

// RecordStoreError records a surface failure for op (get, set, remove)
func RecordStoreError(op string) {
	pm := current()
	if pm == nil {
		return
	}
	pm.storeErrorsTotal.WithLabelValues(op).Inc()
}

// RecordRequest records a finished API call. d is zero for calls that never dispatched.
func RecordRequest(method, outcome string, d time.Duration) {
	pm := current()
	if pm == nil {
		return
	}
	pm.requestsTotal.WithLabelValues(outcome).Inc()
	if d > 0 {
		pm.requestDuration.WithLabelValues(method).Observe(d.Seconds())
	}
}

// RecordOfflineNotice records an offline short-circuit
func RecordOfflineNotice(fired bool) {
	pm := current()
	if pm == nil {
		return
	}
	label := "false"
	if fired {
		label = "true"
	}
	pm.offlineNoticesTotal.WithLabelValues(label).Inc()
}

// IncActiveRequests increments the in-flight gauge
func IncActiveRequests() {
	pm := current()
	if pm == nil {
		return
	}
	pm.activeRequests.Inc()
}

// DecActiveRequests decrements the in-flight gauge
func DecActiveRequests() {
	pm := current()
	if pm == nil {
		return
	}
	pm.activeRequests.Dec()
}

// Registry returns the active registry, or nil before InitPrometheus
func Registry() *prometheus.Registry {
	pm := current()
	if pm == nil {
		return nil
	}
	return pm.registry
}

// Handler returns the /metrics handler. Before InitPrometheus it serves 503.
func Handler() http.Handler {
	pm := current()
	if pm == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics not initialized", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// Push replaces the metrics of job on the Pushgateway at url with everything
// collected by this process, grouped by the given labels. CLI commands are
// short-lived, so this is how their counters outlive the process. Push is a
// no-op before InitPrometheus or when url is empty.
func Push(ctx context.Context, url, job string, grouping map[string]string) error {
	pm := current()
	if pm == nil || url == "" {
		return nil
	}
	p := push.New(url, job).Gatherer(pm.registry)
	for name, value := range grouping {
		p = p.Grouping(name, value)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
