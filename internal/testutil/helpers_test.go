package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/TimurManjosov/goflagship-sdk/internal/client"
	"github.com/TimurManjosov/goflagship-sdk/internal/eventlog"
	"github.com/TimurManjosov/goflagship-sdk/internal/mockserver"
	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

const flagsYAML = `
flags:
  - name: banner
    variant: flags/banner/variants/blue
    value: {color: blue}
`

func TestNewMockBackend(t *testing.T) {
	mock, url := NewMockBackend(t, flagsYAML)

	if mock == nil {
		t.Fatal("Expected non-nil mock")
	}
	if url == "" {
		t.Fatal("Expected a base URL")
	}

	resp, err := http.Get(url + "/healthz")
	if err != nil {
		t.Fatalf("healthz failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestHTTPRequest_Do(t *testing.T) {
	handler := mockserver.New(nil).Router()

	req := &HTTPRequest{
		Method: "GET",
		Path:   "/healthz",
	}

	rr := req.Do(t, handler)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("Expected body 'ok', got '%s'", rr.Body.String())
	}
}

func TestHTTPRequest_DoWithBody(t *testing.T) {
	handler := mockserver.New(nil, mockserver.WithSecret("right")).Router()

	req := &HTTPRequest{
		Method: "POST",
		Path:   client.ResolvePath,
		Body:   `{"clientSecret":"wrong","evaluationContext":{}}`,
	}

	rr := req.Do(t, handler)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
}

func TestHTTPRequest_InvalidJSON(t *testing.T) {
	handler := mockserver.New(nil).Router()

	req := &HTTPRequest{
		Method:  "POST",
		Path:    client.PublishPath,
		Body:    `{`,
		Headers: map[string]string{"X-Request-Id": "abc"},
	}

	rr := req.Do(t, handler)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestRecordedTraffic(t *testing.T) {
	mock, url := NewMockBackend(t, flagsYAML)
	c := client.NewClient(client.Config{ClientSecret: "s", ResolveURL: url, EventsURL: url, SDKVersion: "1.0.0"})
	ctx := context.Background()

	if _, err := c.Apply(ctx, "tok-1", []client.AppliedFlag{{Flag: "banner", ApplyTime: time.Now()}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	events := []eventlog.Event{{Name: "purchase", Payload: value.Struct{}, EventTime: time.Now()}}
	if _, err := c.Publish(ctx, events); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if tokens := AppliedTokens(mock); len(tokens) != 1 || tokens[0] != "tok-1" {
		t.Errorf("Expected [tok-1], got %v", tokens)
	}
	if names := EventNames(mock); len(names) != 1 || names[0] != "purchase" {
		t.Errorf("Expected [purchase], got %v", names)
	}
}
