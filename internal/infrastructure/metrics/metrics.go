package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/edirooss/rtsp2hls/internal/infrastructure/processmgr"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rtsp2hls"

// Metrics holds the service's Prometheus collectors on a private registry.
// It implements processmgr.Observer.
type Metrics struct {
	registry *prometheus.Registry

	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	exits       *prometheus.CounterVec
	lifetime    prometheus.Histogram
	publishing  prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var _ processmgr.Observer = (*Metrics)(nil)

// New creates and registers all collectors, including Go runtime and
// process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "supervisor_state",
			Help:      "1 for the supervisor's current state, 0 otherwise",
		}, []string{"state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "supervisor_transitions_total",
			Help:      "Supervisor state transitions by target state",
		}, []string{"to"}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcoder_exits_total",
			Help:      "Transcoder runs that ended, by kind (spawn_failure, exit)",
		}, []string{"kind"}),
		lifetime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcoder_lifetime_seconds",
			Help:      "How long each transcoder run stayed alive",
			Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 3600, 14400},
		}),
		publishing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playlist_published",
			Help:      "1 while a playlist is present in the output directory",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		m.state,
		m.transitions,
		m.exits,
		m.lifetime,
		m.publishing,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, s := range processmgr.States() {
		m.state.WithLabelValues(s.String()).Set(0)
	}
	m.state.WithLabelValues(processmgr.StateIdle.String()).Set(1)

	return m
}

// StateChanged implements processmgr.Observer.
func (m *Metrics) StateChanged(from, to processmgr.State) {
	m.state.WithLabelValues(from.String()).Set(0)
	m.state.WithLabelValues(to.String()).Set(1)
	m.transitions.WithLabelValues(to.String()).Inc()
}

// ProcessExited implements processmgr.Observer.
func (m *Metrics) ProcessExited(exitCode int, lifetime time.Duration) {
	if exitCode == processmgr.SpawnFailureExitCode && lifetime == 0 {
		m.exits.WithLabelValues("spawn_failure").Inc()
		return
	}
	m.exits.WithLabelValues("exit").Inc()
	m.lifetime.Observe(lifetime.Seconds())
}

// SetPublishing records whether the playlist is currently present.
func (m *Metrics) SetPublishing(published bool) {
	if published {
		m.publishing.Set(1)
	} else {
		m.publishing.Set(0)
	}
}

// Middleware counts requests by matched route; unmatched paths share one label.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
