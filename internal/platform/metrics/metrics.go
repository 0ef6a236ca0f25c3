package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the media relay.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       prometheus.Counter
	errorsTotal         prometheus.Counter
	controlActionsTotal *prometheus.CounterVec
	urlUpdatesTotal     prometheus.Counter
	activeSessions      prometheus.Gauge
	sessionsEvicted     prometheus.Counter
	resolutionsTotal    *prometheus.CounterVec
	proxiedBytesTotal   prometheus.Counter
	requestDuration     *prometheus.HistogramVec
}

// New creates and registers Prometheus metrics for the relay.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	controlActionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_control_actions_total",
		Help: "Control commands received, by action and whether they were accepted",
	}, []string{"action", "accepted"})
	urlUpdatesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_url_updates_total",
		Help: "Total number of session URL updates",
	})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_active_sessions",
		Help: "Number of sessions currently held in memory",
	})
	sessionsEvicted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_sessions_evicted_total",
		Help: "Total number of sessions removed for being idle",
	})
	resolutionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_resolutions_total",
		Help: "Media resolutions, by selection mode and outcome",
	}, []string{"mode", "outcome"})
	proxiedBytesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_proxied_bytes_total",
		Help: "Total number of media bytes streamed through the relay",
	})
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relay_request_duration_seconds",
		Help:    "HTTP request latency by route pattern and status class",
		Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 15, 60},
	}, []string{"route", "status"})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		controlActionsTotal,
		urlUpdatesTotal,
		activeSessions,
		sessionsEvicted,
		resolutionsTotal,
		proxiedBytesTotal,
		requestDuration,
	)

	return &Metrics{
		registry:            registry,
		requestsTotal:       requestsTotal,
		errorsTotal:         errorsTotal,
		controlActionsTotal: controlActionsTotal,
		urlUpdatesTotal:     urlUpdatesTotal,
		activeSessions:      activeSessions,
		sessionsEvicted:     sessionsEvicted,
		resolutionsTotal:    resolutionsTotal,
		proxiedBytesTotal:   proxiedBytesTotal,
		requestDuration:     requestDuration,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncControlAction counts a control command.
func (m *Metrics) IncControlAction(action string, accepted bool) {
	m.controlActionsTotal.WithLabelValues(action, strconv.FormatBool(accepted)).Inc()
}

// IncURLUpdates increments the URL update counter.
func (m *Metrics) IncURLUpdates() {
	m.urlUpdatesTotal.Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// AddSessionsEvicted adds n to the evicted sessions counter.
func (m *Metrics) AddSessionsEvicted(n int) {
	m.sessionsEvicted.Add(float64(n))
}

// IncResolutions counts a resolution attempt. outcome is a short label such
// as "redirect", "stream", "not_found" or "upstream_error".
func (m *Metrics) IncResolutions(mode, outcome string) {
	m.resolutionsTotal.WithLabelValues(mode, outcome).Inc()
}

// AddProxiedBytes adds n to the proxied bytes counter.
func (m *Metrics) AddProxiedBytes(n int64) {
	if n > 0 {
		m.proxiedBytesTotal.Add(float64(n))
	}
}

// ObserveRequest records the latency of a finished request. Streamed media
// responses land in the upper buckets.
func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	m.requestDuration.WithLabelValues(route, statusClass(status)).Observe(d.Seconds())
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
