// Package testutil holds helpers shared by tests that talk to the mock
// backend.
package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TimurManjosov/goflagship-sdk/internal/mockserver"
)

// NewMockBackend starts a mock backend serving flagsYAML and returns it with
// its base URL. The server is closed when the test ends.
func NewMockBackend(t *testing.T, flagsYAML string, opts ...mockserver.Option) (*mockserver.Server, string) {
	t.Helper()
	flags, err := mockserver.ParseFlags([]byte(flagsYAML))
	if err != nil {
		t.Fatalf("invalid flags: %v", err)
	}
	mock := mockserver.New(flags, opts...)
	srv := httptest.NewServer(mock.Router())
	t.Cleanup(srv.Close)
	return mock, srv.URL
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// AppliedTokens lists the resolve token of every apply call the mock
// received, in arrival order.
func AppliedTokens(mock *mockserver.Server) []string {
	var tokens []string
	for _, a := range mock.Applies() {
		tokens = append(tokens, a.ResolveToken)
	}
	return tokens
}

// EventNames lists the name of every event the mock received, without the
// eventDefinitions/ prefix.
func EventNames(mock *mockserver.Server) []string {
	var names []string
	for _, e := range mock.Events() {
		names = append(names, strings.TrimPrefix(e.EventDefinition, "eventDefinitions/"))
	}
	return names
}
