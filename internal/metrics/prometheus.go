package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Subprocess metrics
	ToolRuns     *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec

	// Decode outcomes
	Decodes *prometheus.CounterVec

	// Session metrics
	ActiveSessions   prometheus.Gauge
	SessionsOpened   prometheus.Counter
	SessionsRejected *prometheus.CounterVec
	SessionDuration  prometheus.Histogram
	RelayEvents      *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ToolRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tonebridge_tool_runs_total",
			Help: "Codec tool invocations by tool and outcome",
		}, []string{"tool", "outcome"}),
		ToolDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tonebridge_tool_duration_seconds",
			Help:    "Wall time of codec tool invocations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"tool"}),
		Decodes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tonebridge_decodes_total",
			Help: "Decode results by path and whether a message was found",
		}, []string{"path", "result"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "tonebridge_active_sessions",
			Help: "Number of live duplex sessions",
		}),
		SessionsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "tonebridge_sessions_opened_total",
			Help: "Duplex sessions that reached the active state",
		}),
		SessionsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tonebridge_sessions_rejected_total",
			Help: "Duplex connections rejected before a session became active",
		}, []string{"reason"}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tonebridge_session_duration_seconds",
			Help:    "Lifetime of duplex sessions",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 3600},
		}),
		RelayEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tonebridge_relay_events_total",
			Help: "Events relayed to duplex connections by type",
		}, []string{"type"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tonebridge_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveTool(tool string, start time.Time, outcome string) {
	if m == nil {
		return
	}
	m.ToolRuns.WithLabelValues(tool, outcome).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveDecode(path string, found bool) {
	if m == nil {
		return
	}
	result := "miss"
	if found {
		result = "message"
	}
	m.Decodes.WithLabelValues(path, result).Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsOpened.Inc()
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionEnded(lifetime time.Duration) {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(lifetime.Seconds())
}

func (m *Metrics) SessionRejected(reason string) {
	if m == nil {
		return
	}
	m.SessionsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) RelayEvent(kind string) {
	if m == nil {
		return
	}
	m.RelayEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) HTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, httpCode(code)).Inc()
}

func httpCode(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
