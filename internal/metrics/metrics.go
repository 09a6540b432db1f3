// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scuola"

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lockWait *prometheus.HistogramVec
	cache    *prometheus.CounterVec
	notices  *prometheus.CounterVec
	security *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "requests_total",
			Help:      "Routed actions by outcome.",
		}, []string{"action", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "duration_seconds",
			Help:      "Time spent handling an action.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for a resource lock.",
			Buckets:   []float64{.001, .01, .1, .5, 1, 2.5, 5, 10, 30},
		}, []string{"acquired"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client_cache",
			Name:      "lookups_total",
			Help:      "Client cache lookups by result.",
		}, []string{"result"}),
		notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notices_total",
			Help:      "Absentee notices by delivery outcome.",
		}, []string{"outcome"}),
		security: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "security_events_total",
			Help:      "Rate limited and suspicious HTTP requests.",
		}, []string{"event"}),
	}
	m.registry.MustRegister(
		m.requests, m.duration, m.lockWait, m.cache, m.notices, m.security,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveAction records one routed action.
func (m *Metrics) ObserveAction(action, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(action, outcome).Inc()
	m.duration.WithLabelValues(action).Observe(d.Seconds())
}

// ObserveLockWait matches lock.WaitObserver.
func (m *Metrics) ObserveLockWait(_ string, waited time.Duration, acquired bool) {
	if m == nil {
		return
	}
	label := "false"
	if acquired {
		label = "true"
	}
	m.lockWait.WithLabelValues(label).Observe(waited.Seconds())
}

// CacheLookup counts a client cache hit, miss or stale refresh.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(result).Inc()
}

// Notice counts a published or failed absentee notice.
func (m *Metrics) Notice(outcome string) {
	if m == nil {
		return
	}
	m.notices.WithLabelValues(outcome).Inc()
}

// SecurityEvent counts a rate limit rejection or a suspicious request.
func (m *Metrics) SecurityEvent(event string) {
	if m == nil {
		return
	}
	m.security.WithLabelValues(event).Inc()
}
