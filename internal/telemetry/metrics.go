// Package telemetry exposes prometheus metrics for the SDK engines and the
// mock backend.
package telemetry

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the resolve, apply and upload counters.
const (
	OutcomeResolved    = "resolved"
	OutcomeNotModified = "not_modified"
	OutcomeSuperseded  = "superseded"
	OutcomeFailed      = "failed"
	OutcomeAccepted    = "accepted"
	OutcomeDropped     = "dropped"
	OutcomeRetry       = "retry"
)

// Metrics holds the SDK collectors. A nil *Metrics records nothing, so
// engines can be built without a registry.
type Metrics struct {
	resolves       *prometheus.CounterVec
	evaluations    *prometheus.CounterVec
	applies        *prometheus.CounterVec
	pendingApplies prometheus.Gauge
	eventsWritten  prometheus.Counter
	uploads        *prometheus.CounterVec
	readyFiles     prometheus.Gauge
	cachedFlags    prometheus.Gauge
}

// New creates the SDK collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flagship_resolves_total",
			Help: "Flag resolves by outcome",
		}, []string{"outcome"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flagship_evaluations_total",
			Help: "Flag evaluations by reason",
		}, []string{"reason"}),
		applies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flagship_applies_total",
			Help: "Applied flags sent to the backend by outcome",
		}, []string{"outcome"}),
		pendingApplies: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flagship_pending_applies",
			Help: "Applied flags not yet accepted by the backend",
		}),
		eventsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flagship_events_written_total",
			Help: "Events appended to the event log",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flagship_event_uploads_total",
			Help: "Event batch uploads by outcome",
		}, []string{"outcome"}),
		readyFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flagship_ready_batches",
			Help: "Sealed event batches awaiting upload",
		}),
		cachedFlags: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flagship_cached_flags",
			Help: "Number of flags in the live resolution",
		}),
	}
	reg.MustRegister(m.resolves, m.evaluations, m.applies, m.pendingApplies,
		m.eventsWritten, m.uploads, m.readyFiles, m.cachedFlags)
	return m
}

func (m *Metrics) ObserveResolve(outcome string) {
	if m == nil {
		return
	}
	m.resolves.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveEvaluation(reason string) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveApply(outcome string, n int) {
	if m == nil {
		return
	}
	m.applies.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) SetPendingApplies(n int) {
	if m == nil {
		return
	}
	m.pendingApplies.Set(float64(n))
}

func (m *Metrics) EventWritten() {
	if m == nil {
		return
	}
	m.eventsWritten.Inc()
}

func (m *Metrics) ObserveUpload(outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetReadyFiles(n int) {
	if m == nil {
		return
	}
	m.readyFiles.Set(float64(n))
}

func (m *Metrics) SetCachedFlags(n int) {
	if m == nil {
		return
	}
	m.cachedFlags.Set(float64(n))
}

// HTTPMetrics counts requests served by the mock backend.
type HTTPMetrics struct {
	reqs *prometheus.CounterVec
	dur  *prometheus.HistogramVec
}

// NewHTTPMetrics creates request collectors and registers them on reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	h := &HTTPMetrics{
		reqs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		dur: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
	reg.MustRegister(h.reqs, h.dur)
	return h
}

// Middleware records every request under its chi route pattern.
func (h *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		// the pattern is only known once routing ran
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		h.reqs.WithLabelValues(route, r.Method, http.StatusText(ww.status)).Inc()
		h.dur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
