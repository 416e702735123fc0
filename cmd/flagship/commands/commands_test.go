package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimurManjosov/goflagship-sdk/internal/cli"
	"github.com/TimurManjosov/goflagship-sdk/internal/mockserver"
	"github.com/TimurManjosov/goflagship-sdk/internal/testutil"
)

const testFlags = `
flags:
  - name: banner
    variant: flags/banner/variants/blue
    value: {color: blue, size: 3}
`

// setup points the CLI at a fresh mock backend and data directory
func setup(t *testing.T) *mockserver.Server {
	t.Helper()
	mock, url := testutil.NewMockBackend(t, testFlags)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	t.Setenv("FLAGSHIP_CONFIG", cfgPath)
	require.NoError(t, cli.SaveConfigFile(&cli.Config{
		DefaultProfile: "test",
		Profiles: map[string]cli.Profile{
			"test": {ResolveURL: url, EventsURL: url, ClientSecret: "secret", DataDir: filepath.Join(dir, "data")},
		},
	}, cfgPath))
	return mock
}

// run executes the root command with fresh global flag values
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	profile, format, contextPairs, dataDir = "", "table", nil, ""
	memoryStore, quiet, verbose = false, false, false
	timeout = 5 * time.Second
	getCached, getDefault, trackFlush = false, "", false
	exportOutput, exportCached = "", false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	mock := setup(t)

	out, err := run(t, "resolve", "--format", "json", "--context", "country=SE")
	require.NoError(t, err)

	var got struct {
		Flags []cli.FlagRow `json:"flags"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Flags, 1)
	assert.Equal(t, "banner", got.Flags[0].Flag)
	assert.Equal(t, "blue", got.Flags[0].Value["color"])

	resolves := mock.Resolves()
	require.Len(t, resolves, 1)
	assert.Equal(t, "SE", resolves[0].EvaluationContext["country"])
	assert.NotEmpty(t, resolves[0].EvaluationContext["visitor_id"])
}

func TestGetCommandReportsApply(t *testing.T) {
	mock := setup(t)

	out, err := run(t, "get", "banner.color", "--format", "json")
	require.NoError(t, err)

	var row cli.EvaluationRow
	require.NoError(t, json.Unmarshal([]byte(out), &row))
	assert.Equal(t, "blue", row.Value)
	assert.Equal(t, "MATCH", row.Reason)
	assert.Len(t, testutil.AppliedTokens(mock), 1)
}

func TestGetCommandMissingFlagServesDefault(t *testing.T) {
	setup(t)

	out, err := run(t, "get", "nope", "--default", "42", "--format", "json")
	require.NoError(t, err)

	var row cli.EvaluationRow
	require.NoError(t, json.Unmarshal([]byte(out), &row))
	assert.Equal(t, float64(42), row.Value)
	assert.Equal(t, "FLAG_NOT_FOUND", row.ErrorCode)
}

func TestGetCachedUsesPersistedResolution(t *testing.T) {
	mock := setup(t)

	_, err := run(t, "resolve", "--quiet")
	require.NoError(t, err)

	mock.ForceStatus(mockserver.EndpointResolve, http.StatusInternalServerError)
	out, err := run(t, "get", "banner.size", "--cached", "--format", "json")
	require.NoError(t, err)

	var row cli.EvaluationRow
	require.NoError(t, json.Unmarshal([]byte(out), &row))
	assert.Equal(t, float64(3), row.Value)
}

func TestTrackCommandFlushes(t *testing.T) {
	mock := setup(t)

	out, err := run(t, "track", "purchase", "amount=12.5", "--flush")
	require.NoError(t, err)
	assert.Contains(t, out, "Tracked purchase")

	assert.Equal(t, []string{"purchase"}, testutil.EventNames(mock))
	assert.Equal(t, 12.5, mock.Events()[0].Payload["amount"])
}

func TestTrackThenFlushCommand(t *testing.T) {
	mock := setup(t)

	_, err := run(t, "track", "signup")
	require.NoError(t, err)
	assert.Empty(t, mock.Events())

	out, err := run(t, "flush")
	require.NoError(t, err)
	assert.Contains(t, out, "All events uploaded")
	assert.Equal(t, []string{"signup"}, testutil.EventNames(mock))
}

func TestTrackCommandRejectsInvalidName(t *testing.T) {
	setup(t)

	_, err := run(t, "track", "has space")
	assert.ErrorContains(t, err, "invalid event")
}

func TestContextCommand(t *testing.T) {
	setup(t)

	out, err := run(t, "context", "--format", "json", "-c", "age=30")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, float64(30), got["age"])
	first := got["visitor_id"]
	assert.NotEmpty(t, first)

	out, err = run(t, "context", "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, first, got["visitor_id"], "visitor id should persist across runs")
}

func TestExportCommand(t *testing.T) {
	setup(t)

	path := filepath.Join(t.TempDir(), "flags.yaml")
	_, err := run(t, "export", "--output", path, "--quiet")
	require.NoError(t, err)

	flags, err := mockserver.LoadFlags(path)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, "banner", flags[0].Name)
	assert.Equal(t, "flags/banner/variants/blue", flags[0].Variant)
	assert.Equal(t, "blue", flags[0].Value["color"])
}

func TestUnknownProfile(t *testing.T) {
	setup(t)
	t.Setenv("FLAGSHIP_CLIENT_SECRET", "")

	_, err := run(t, "resolve", "--profile", "missing")
	assert.ErrorContains(t, err, "profile 'missing' not found")
}
