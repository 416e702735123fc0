// Package client talks to the flag resolver and event collector over HTTP.
//
// Every call is classified into an Outcome: the backend either accepted the
// request, rejected it permanently, or asked for it to be retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SDKID identifies this SDK in every request.
const SDKID = "SDK_ID_GO_FLAGSHIP"

// Default endpoint paths relative to the base URLs.
const (
	ResolvePath = "/v1/flags:resolve"
	ApplyPath   = "/v1/flags:apply"
	PublishPath = "/v1/events:publish"
)

// Outcome classifies a boundary call.
type Outcome int

const (
	// Accepted: the backend took the request (2xx/3xx).
	Accepted Outcome = iota
	// Dropped: permanent rejection (4xx other than 429); the data is discarded.
	Dropped
	// Retry: 429, 5xx or a transport failure; the data is kept and resent.
	Retry
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Dropped:
		return "dropped"
	case Retry:
		return "retry"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Done reports whether the data sent can be removed locally.
func (o Outcome) Done() bool { return o != Retry }

// Classify maps an HTTP status code to an Outcome.
func Classify(status int) Outcome {
	switch {
	case status >= 200 && status < 400:
		return Accepted
	case status == http.StatusTooManyRequests:
		return Retry
	case status >= 400 && status < 500:
		return Dropped
	}
	return Retry
}

// SDK is the sdk field attached to every request body.
type SDK struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// Config holds the connection settings.
type Config struct {
	ClientSecret string
	ResolveURL   string
	EventsURL    string
	// Flags limits resolves to these flag names. Empty resolves all flags
	// visible to the client secret.
	Flags      []string
	SDKVersion string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is an HTTP client for the resolver and event APIs.
type Client struct {
	secret     string
	resolveURL string
	eventsURL  string
	flags      []string
	sdk        SDK
	httpClient *http.Client
	tracer     trace.Tracer
	now        func() time.Time
}

// NewClient creates a new API client.
func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		secret:     cfg.ClientSecret,
		resolveURL: strings.TrimRight(cfg.ResolveURL, "/"),
		eventsURL:  strings.TrimRight(cfg.EventsURL, "/"),
		flags:      cfg.Flags,
		sdk:        SDK{ID: SDKID, Version: cfg.SDKVersion},
		httpClient: hc,
		tracer:     otel.Tracer("github.com/TimurManjosov/goflagship-sdk/internal/client"),
		now:        time.Now,
	}
}

// post sends body as JSON inside a span named spanName. The caller owns the
// response body.
func (c *Client) post(ctx context.Context, spanName, url string, body any, attrs ...attribute.KeyValue) (*http.Response, trace.Span, error) {
	ctx, span := c.tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))

	payload, err := json.Marshal(body)
	if err != nil {
		endWithError(span, err)
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		endWithError(span, err)
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		endWithError(span, err)
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp, span, nil
}

// send posts body and classifies the answer. The error is non-nil for every
// outcome other than Accepted and is meant for diagnostics only.
func (c *Client) send(ctx context.Context, spanName, url string, body any, attrs ...attribute.KeyValue) (Outcome, error) {
	resp, span, err := c.post(ctx, spanName, url, body, attrs...)
	if err != nil {
		return Retry, err
	}
	defer span.End()
	defer resp.Body.Close()

	outcome := Classify(resp.StatusCode)
	span.SetAttributes(attribute.String("flagship.outcome", outcome.String()))
	if outcome == Accepted {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Accepted, nil
	}
	err = statusError(resp)
	span.SetStatus(codes.Error, err.Error())
	return outcome, err
}

func statusError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
}

func endWithError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
}
