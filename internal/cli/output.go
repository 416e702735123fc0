package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/goflagship-sdk/flagship"
	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// FlagRow is the printable form of one resolved flag
type FlagRow struct {
	Flag        string         `json:"flag" yaml:"flag"`
	Variant     string         `json:"variant" yaml:"variant"`
	Reason      string         `json:"reason" yaml:"reason"`
	ShouldApply bool           `json:"shouldApply" yaml:"should_apply"`
	Value       map[string]any `json:"value" yaml:"value"`
}

// EvaluationRow is the printable form of a single flag evaluation
type EvaluationRow struct {
	Key          string `json:"key" yaml:"key"`
	Value        any    `json:"value" yaml:"value"`
	Variant      string `json:"variant,omitempty" yaml:"variant,omitempty"`
	Reason       string `json:"reason" yaml:"reason"`
	ErrorCode    string `json:"errorCode,omitempty" yaml:"error_code,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty" yaml:"error_message,omitempty"`
}

// FlagRows converts a resolution into rows sorted by flag name
func FlagRows(res *flagship.FlagResolution) []FlagRow {
	if res == nil {
		return []FlagRow{}
	}
	rows := make([]FlagRow, 0, len(res.Flags))
	for _, f := range res.Flags {
		rows = append(rows, FlagRow{
			Flag:        f.Flag,
			Variant:     f.Variant,
			Reason:      string(f.Reason),
			ShouldApply: f.ShouldApply,
			Value:       value.PlainMap(f.Value),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Flag < rows[j].Flag })
	return rows
}

// NewEvaluationRow converts an evaluation into a row
func NewEvaluationRow(key string, ev flagship.Evaluation[flagship.Value]) EvaluationRow {
	return EvaluationRow{
		Key:          key,
		Value:        value.ToPlain(ev.Value),
		Variant:      ev.Variant,
		Reason:       string(ev.Reason),
		ErrorCode:    string(ev.ErrorCode),
		ErrorMessage: ev.ErrorMessage,
	}
}

// PrintFlags outputs resolved flags in the specified format
func PrintFlags(w io.Writer, rows []FlagRow, format OutputFormat) error {
	switch format {
	case FormatJSON:
		// Wrap in a "flags" key for consistency with the resolve response
		return printJSON(w, map[string][]FlagRow{"flags": rows})
	case FormatYAML:
		return printYAML(w, rows)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Flag", "Variant", "Reason", "Apply", "Value")
		for _, r := range rows {
			table.Append(r.Flag, r.Variant, r.Reason, fmt.Sprint(r.ShouldApply), truncate(value.Format(value.FromPlainMap(r.Value)), 60))
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintEvaluation outputs a single evaluation in the specified format
func PrintEvaluation(w io.Writer, row EvaluationRow, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, row)
	case FormatYAML:
		return printYAML(w, row)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Key", "Value", "Variant", "Reason", "Error")
		table.Append(row.Key, truncate(value.Format(value.FromPlain(row.Value)), 60), row.Variant, row.Reason, row.ErrorCode)
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintContext outputs an evaluation context in the specified format
func PrintContext(w io.Writer, ctx flagship.Struct, format OutputFormat) error {
	plain := value.PlainMap(ctx)
	switch format {
	case FormatJSON:
		return printJSON(w, plain)
	case FormatYAML:
		return printYAML(w, plain)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Key", "Value")
		for _, k := range ctx.Keys() {
			table.Append(k, value.Format(ctx[k]))
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(w io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
