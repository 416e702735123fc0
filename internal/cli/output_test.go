package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/goflagship-sdk/flagship"
)

func sampleResolution() *flagship.FlagResolution {
	return &flagship.FlagResolution{
		ResolveToken: "tok",
		Flags: []flagship.ResolvedFlag{
			{Flag: "zeta", Variant: "off", Reason: flagship.ResolveReasonNoSegmentMatch, Value: flagship.Struct{}},
			{Flag: "banner", Variant: "blue", Reason: flagship.ResolveReasonMatch, ShouldApply: true,
				Value: flagship.Struct{"color": flagship.String("blue"), "size": flagship.Integer(3)}},
		},
	}
}

func TestFlagRows_SortedAndPlain(t *testing.T) {
	rows := FlagRows(sampleResolution())
	require.Len(t, rows, 2)
	assert.Equal(t, "banner", rows[0].Flag)
	assert.Equal(t, "MATCH", rows[0].Reason)
	assert.Equal(t, int64(3), rows[0].Value["size"])
	assert.Equal(t, "zeta", rows[1].Flag)

	assert.Empty(t, FlagRows(nil))
}

func TestPrintFlags_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintFlags(&buf, FlagRows(sampleResolution()), FormatJSON))

	var out struct {
		Flags []FlagRow `json:"flags"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Flags, 2)
	assert.Equal(t, "blue", out.Flags[0].Variant)
	assert.True(t, out.Flags[0].ShouldApply)
}

func TestPrintFlags_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintFlags(&buf, FlagRows(sampleResolution()), FormatYAML))

	var out []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "banner", out[0]["flag"])
}

func TestPrintFlags_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintFlags(&buf, FlagRows(sampleResolution()), FormatTable))
	assert.Contains(t, buf.String(), "banner")
	assert.Contains(t, buf.String(), "NO_SEGMENT_MATCH")
}

func TestPrintFlags_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, PrintFlags(&buf, nil, OutputFormat("xml")))
}

func TestPrintEvaluation(t *testing.T) {
	row := NewEvaluationRow("banner.color", flagship.Evaluation[flagship.Value]{
		Value:   flagship.String("blue"),
		Variant: "blue",
		Reason:  flagship.ReasonMatch,
	})

	var buf bytes.Buffer
	require.NoError(t, PrintEvaluation(&buf, row, FormatJSON))
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "blue", out["value"])
	assert.NotContains(t, out, "errorCode")

	buf.Reset()
	require.NoError(t, PrintEvaluation(&buf, row, FormatTable))
	assert.Contains(t, buf.String(), "banner.color")
}

func TestPrintContext(t *testing.T) {
	ctx := flagship.Struct{"visitor_id": flagship.String("v1"), "age": flagship.Integer(30)}

	var buf bytes.Buffer
	require.NoError(t, PrintContext(&buf, ctx, FormatYAML))
	var out map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "v1", out["visitor_id"])
	assert.Equal(t, 30, out["age"])

	buf.Reset()
	require.NoError(t, PrintContext(&buf, ctx, FormatTable))
	assert.Contains(t, buf.String(), "visitor_id")
}
