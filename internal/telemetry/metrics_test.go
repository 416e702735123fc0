package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveResolve(OutcomeResolved)
	m.ObserveEvaluation("MATCH")
	m.ObserveApply(OutcomeAccepted, 2)
	m.SetPendingApplies(1)
	m.EventWritten()
	m.ObserveUpload(OutcomeRetry)
	m.SetReadyFiles(3)
	m.SetCachedFlags(4)
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveResolve(OutcomeResolved)
	m.ObserveResolve(OutcomeResolved)
	m.ObserveApply(OutcomeAccepted, 3)
	m.EventWritten()
	m.SetReadyFiles(2)

	if got := testutil.ToFloat64(m.resolves.WithLabelValues(OutcomeResolved)); got != 2 {
		t.Errorf("Expected 2 resolves, got %v", got)
	}
	if got := testutil.ToFloat64(m.applies.WithLabelValues(OutcomeAccepted)); got != 3 {
		t.Errorf("Expected 3 applies, got %v", got)
	}
	if got := testutil.ToFloat64(m.eventsWritten); got != 1 {
		t.Errorf("Expected 1 event, got %v", got)
	}
	if got := testutil.ToFloat64(m.readyFiles); got != 2 {
		t.Errorf("Expected 2 ready batches, got %v", got)
	}
}

func TestHTTPMiddlewareUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTPMetrics(reg)

	r := chi.NewRouter()
	r.Use(h.Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", Handler(reg))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	got := testutil.ToFloat64(h.reqs.WithLabelValues("/items/{id}", http.MethodGet, http.StatusText(http.StatusTeapot)))
	if got != 1 {
		t.Errorf("Expected 1 request under the route pattern, got %v", got)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "http_requests_total") {
		t.Error("metrics endpoint does not expose http_requests_total")
	}
}
