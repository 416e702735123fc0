// Package mockserver is an in-process stand-in for the flag resolver and
// the event collector. It serves flags from a YAML file, records everything
// it receives, and can be told to fail so retry paths can be exercised.
package mockserver

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/TimurManjosov/goflagship-sdk/internal/client"
	"github.com/TimurManjosov/goflagship-sdk/internal/telemetry"
	"github.com/TimurManjosov/goflagship-sdk/internal/validation"
	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

// Endpoints that can be forced to fail.
const (
	EndpointResolve = "resolve"
	EndpointApply   = "apply"
	EndpointPublish = "publish"
)

// SDKInfo is the sdk field sent by clients.
type SDKInfo struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// ResolveRequest is a received resolve call.
type ResolveRequest struct {
	Flags             []string       `json:"flags"`
	EvaluationContext map[string]any `json:"evaluationContext"`
	ClientSecret      string         `json:"clientSecret"`
	Apply             bool           `json:"apply"`
	SDK               SDKInfo        `json:"sdk"`
}

// AppliedFlag is one entry of a received apply call.
type AppliedFlag struct {
	Flag      string    `json:"flag"`
	ApplyTime time.Time `json:"applyTime"`
}

// ApplyRequest is a received apply call.
type ApplyRequest struct {
	Flags        []AppliedFlag `json:"flags"`
	SendTime     time.Time     `json:"sendTime"`
	ClientSecret string        `json:"clientSecret"`
	ResolveToken string        `json:"resolveToken"`
	SDK          SDKInfo       `json:"sdk"`
}

// Event is one received event.
type Event struct {
	EventDefinition string         `json:"eventDefinition"`
	EventTime       time.Time      `json:"eventTime"`
	Payload         map[string]any `json:"payload"`
}

// PublishRequest is a received publish call.
type PublishRequest struct {
	ClientSecret string    `json:"clientSecret"`
	Events       []Event   `json:"events"`
	SendTime     time.Time `json:"sendTime"`
	SDK          SDKInfo   `json:"sdk"`
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit limits each client IP to n requests per minute. Excess
// requests get 429.
func WithRateLimit(n int) Option {
	return func(s *Server) { s.rateLimit = n }
}

// WithMetrics records every request.
func WithMetrics(m *telemetry.HTTPMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithResolveDelay delays every resolve answer by d unless the client gives
// up first.
func WithResolveDelay(d time.Duration) Option {
	return func(s *Server) { s.delay = d }
}

// WithSecret makes the server reject requests with another client secret.
func WithSecret(secret string) Option {
	return func(s *Server) { s.secret = secret }
}

// Server is the mock backend.
type Server struct {
	rateLimit int
	metrics   *telemetry.HTTPMetrics
	secret    string

	mu          sync.Mutex
	flags       []Flag
	delay       time.Duration
	notModified bool
	forced      map[string]int
	resolves    []ResolveRequest
	applies     []ApplyRequest
	published   []PublishRequest
}

// New creates a server serving flags.
func New(flags []Flag, opts ...Option) *Server {
	s := &Server{flags: flags, forced: map[string]int{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		if s.rateLimit > 0 {
			r.Use(httprate.LimitByIP(s.rateLimit, time.Minute))
		}
		r.Post(client.ResolvePath, s.handleResolve)
		r.Post(client.ApplyPath, s.handleApply)
		r.Post(client.PublishPath, s.handlePublish)
	})
	return r
}

// SetFlags replaces the served flags.
func (s *Server) SetFlags(flags []Flag) {
	s.mu.Lock()
	s.flags = flags
	s.mu.Unlock()
}

// SetNotModified makes resolves answer 304.
func (s *Server) SetNotModified(on bool) {
	s.mu.Lock()
	s.notModified = on
	s.mu.Unlock()
}

// SetResolveDelay changes the resolve delay.
func (s *Server) SetResolveDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// ForceStatus makes endpoint answer status until cleared with status 0.
func (s *Server) ForceStatus(endpoint string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.forced, endpoint)
		return
	}
	s.forced[endpoint] = status
}

// Resolves returns the resolve calls answered so far.
func (s *Server) Resolves() []ResolveRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.resolves)
}

// Applies returns the accepted apply calls.
func (s *Server) Applies() []ApplyRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.applies)
}

// Published returns the accepted publish calls.
func (s *Server) Published() []PublishRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.published)
}

// Events returns every accepted event in arrival order.
func (s *Server) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, p := range s.published {
		out = append(out, p.Events...)
	}
	return out
}

// Token returns the resolve token the server issues for evalCtx.
func Token(evalCtx map[string]any) string {
	return fmt.Sprintf("tok-%016x", value.Fingerprint(value.FromPlainMap(evalCtx)))
}

// ---- handlers ----

func (s *Server) forcedStatus(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forced[endpoint]
}

func (s *Server) checkSecret(w http.ResponseWriter, secret string) bool {
	if s.secret != "" && secret != s.secret {
		writeError(w, http.StatusUnauthorized, "invalid client secret")
		return false
	}
	return true
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !s.checkSecret(w, req.ClientSecret) {
		return
	}

	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			log.Printf("[mockserver] resolve abandoned by client")
			return
		}
	}
	if status := s.forcedStatus(EndpointResolve); status != 0 {
		writeError(w, status, "forced failure")
		return
	}

	s.mu.Lock()
	s.resolves = append(s.resolves, req)
	notModified := s.notModified
	flags := s.flags
	s.mu.Unlock()

	if notModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	wanted := make(map[string]bool, len(req.Flags))
	for _, f := range req.Flags {
		wanted[strings.TrimPrefix(f, "flags/")] = true
	}
	resolved := make([]map[string]any, 0, len(flags))
	for _, f := range flags {
		if len(wanted) > 0 && !wanted[f.Name] {
			continue
		}
		resolved = append(resolved, resolveFlag(f, req.EvaluationContext))
	}

	log.Printf("[mockserver] resolved flags=%d context_keys=%d", len(resolved), len(req.EvaluationContext))
	writeJSON(w, http.StatusOK, map[string]any{
		"resolvedFlags": resolved,
		"resolveToken":  Token(req.EvaluationContext),
	})
}

func resolveFlag(f Flag, evalCtx map[string]any) map[string]any {
	reason := f.Reason
	if reason == "" {
		reason = "MATCH"
	}
	val := f.Value
	variant := f.Variant
	if f.TargetingKey != "" {
		if _, ok := evalCtx[f.TargetingKey]; !ok {
			reason = "TARGETING_KEY_ERROR"
			val = map[string]any{}
			variant = ""
		}
	}
	return map[string]any{
		"flag":        "flags/" + f.Name,
		"variant":     variant,
		"value":       val,
		"flagSchema":  schemaOf(val),
		"reason":      "RESOLVE_REASON_" + reason,
		"shouldApply": !f.SkipApply,
	}
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !s.checkSecret(w, req.ClientSecret) {
		return
	}
	if req.ResolveToken == "" {
		writeError(w, http.StatusBadRequest, "resolveToken is required")
		return
	}
	if status := s.forcedStatus(EndpointApply); status != 0 {
		writeError(w, status, "forced failure")
		return
	}

	s.mu.Lock()
	s.applies = append(s.applies, req)
	s.mu.Unlock()

	log.Printf("[mockserver] applied flags=%d token=%s", len(req.Flags), req.ResolveToken)
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !s.checkSecret(w, req.ClientSecret) {
		return
	}
	if status := s.forcedStatus(EndpointPublish); status != 0 {
		writeError(w, status, "forced failure")
		return
	}
	for _, e := range req.Events {
		if res := validation.ValidateEventName(e.EventDefinition); !res.Valid {
			writeError(w, http.StatusBadRequest, res.Error())
			return
		}
	}

	s.mu.Lock()
	s.published = append(s.published, req)
	s.mu.Unlock()

	log.Printf("[mockserver] published events=%d", len(req.Events))
	writeJSON(w, http.StatusOK, map[string]any{"errors": []any{}})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
