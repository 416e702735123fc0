package mockserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimurManjosov/goflagship-sdk/internal/client"
	"github.com/TimurManjosov/goflagship-sdk/internal/eventlog"
	"github.com/TimurManjosov/goflagship-sdk/internal/snapshot"
	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

const flagsYAML = `
flags:
  - name: banner
    variant: flags/banner/variants/blue
    value:
      color: blue
      size: 3
      ratio: 0.5
      nested: {on: true}
  - name: gated
    variant: flags/gated/variants/a
    targetingKey: user_id
    value: {enabled: true}
`

func newServer(t *testing.T, opts ...Option) (*Server, *client.Client) {
	t.Helper()
	flags, err := ParseFlags([]byte(flagsYAML))
	require.NoError(t, err)
	s := New(flags, opts...)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	c := client.NewClient(client.Config{
		ClientSecret: "secret",
		ResolveURL:   srv.URL,
		EventsURL:    srv.URL,
		SDKVersion:   "1.0.0",
	})
	return s, c
}

func TestParseFlags(t *testing.T) {
	flags, err := ParseFlags([]byte(flagsYAML))
	require.NoError(t, err)
	require.Len(t, flags, 2)
	assert.Equal(t, "banner", flags[0].Name)
	assert.Equal(t, 3, flags[0].Value["size"])

	_, err = ParseFlags([]byte("flags:\n  - variant: x\n"))
	assert.ErrorContains(t, err, "Name is required")

	_, err = ParseFlags([]byte("flags:\n  - name: a\n  - name: a\n"))
	assert.ErrorContains(t, err, "Duplicate flag name")

	_, err = ParseFlags([]byte("flags: ["))
	assert.Error(t, err)
}

func TestEncodeFlagsRoundTrip(t *testing.T) {
	in := []Flag{{Name: "banner", Variant: "v", Value: map[string]any{"size": 3}, SkipApply: true}}
	data, err := EncodeFlags(in)
	require.NoError(t, err)
	out, err := ParseFlags(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestResolveRoundTrip(t *testing.T) {
	s, c := newServer(t)

	evalCtx := value.Struct{"user_id": value.String("u1")}
	resp, err := c.Resolve(context.Background(), evalCtx)
	require.NoError(t, err)

	res := resp.Resolution
	assert.Equal(t, Token(map[string]any{"user_id": "u1"}), res.ResolveToken)
	banner, ok := res.Find("banner")
	require.True(t, ok)
	assert.Equal(t, snapshot.ReasonMatch, banner.Reason)
	assert.True(t, banner.ShouldApply)
	assert.True(t, value.Equal(value.Integer(3), banner.Value["size"]), "size should decode as integer")
	assert.True(t, value.Equal(value.Double(0.5), banner.Value["ratio"]))
	assert.True(t, value.Equal(value.Struct{"on": value.Bool(true)}, banner.Value["nested"]))

	gated, ok := res.Find("gated")
	require.True(t, ok)
	assert.Equal(t, snapshot.ReasonMatch, gated.Reason)

	require.Len(t, s.Resolves(), 1)
	assert.Equal(t, "1.0.0", s.Resolves()[0].SDK.Version)
}

func TestResolveMissingTargetingKey(t *testing.T) {
	_, c := newServer(t)
	resp, err := c.Resolve(context.Background(), value.Struct{})
	require.NoError(t, err)
	gated, ok := resp.Resolution.Find("gated")
	require.True(t, ok)
	assert.Equal(t, snapshot.ReasonTargetingKeyError, gated.Reason)
}

func TestResolveNotModified(t *testing.T) {
	s, c := newServer(t)
	s.SetNotModified(true)
	resp, err := c.Resolve(context.Background(), value.Struct{})
	require.NoError(t, err)
	assert.True(t, resp.NotModified)
}

func TestForcedStatusClassification(t *testing.T) {
	s, c := newServer(t)
	events := []eventlog.Event{{Name: "e", Payload: value.Struct{}, EventTime: time.Now()}}

	s.ForceStatus(EndpointPublish, http.StatusServiceUnavailable)
	outcome, _ := c.Publish(context.Background(), events)
	assert.Equal(t, client.Retry, outcome)

	s.ForceStatus(EndpointPublish, http.StatusBadRequest)
	outcome, _ = c.Publish(context.Background(), events)
	assert.Equal(t, client.Dropped, outcome)
	assert.Empty(t, s.Events())

	s.ForceStatus(EndpointPublish, 0)
	outcome, err := c.Publish(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, client.Accepted, outcome)
	require.Len(t, s.Events(), 1)
	assert.Equal(t, "eventDefinitions/e", s.Events()[0].EventDefinition)

	s.ForceStatus(EndpointApply, http.StatusInternalServerError)
	outcome, _ = c.Apply(context.Background(), "tok", []client.AppliedFlag{{Flag: "banner", ApplyTime: time.Now()}})
	assert.Equal(t, client.Retry, outcome)
	assert.Empty(t, s.Applies())
}

func TestInvalidEventNameIsDropped(t *testing.T) {
	s, c := newServer(t)
	events := []eventlog.Event{{Name: "has space", Payload: value.Struct{}, EventTime: time.Now()}}

	outcome, err := c.Publish(context.Background(), events)
	assert.Equal(t, client.Dropped, outcome)
	assert.ErrorContains(t, err, "Event name must contain")
	assert.Empty(t, s.Events())
}

func TestApplyRequiresToken(t *testing.T) {
	_, c := newServer(t)
	outcome, err := c.Apply(context.Background(), "", nil)
	assert.Equal(t, client.Dropped, outcome)
	assert.Error(t, err)
}

func TestWrongSecretIsDropped(t *testing.T) {
	flags, err := ParseFlags([]byte(flagsYAML))
	require.NoError(t, err)
	srv := httptest.NewServer(New(flags, WithSecret("right")).Router())
	t.Cleanup(srv.Close)

	c := client.NewClient(client.Config{ClientSecret: "wrong", ResolveURL: srv.URL, EventsURL: srv.URL})
	outcome, _ := c.Publish(context.Background(), nil)
	assert.Equal(t, client.Dropped, outcome)
}

func TestRateLimitAnswers429(t *testing.T) {
	_, c := newServer(t, WithRateLimit(1))

	outcome, err := c.Publish(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, client.Accepted, outcome)

	outcome, _ = c.Publish(context.Background(), nil)
	assert.Equal(t, client.Retry, outcome)
}

func TestResolveDelayHonoursCancellation(t *testing.T) {
	s, c := newServer(t, WithResolveDelay(time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Resolve(ctx, value.Struct{})
	assert.Error(t, err)
	assert.Empty(t, s.Resolves())
}
