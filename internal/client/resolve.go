package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/TimurManjosov/goflagship-sdk/internal/snapshot"
	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

const flagPrefix = "flags/"

type resolveRequest struct {
	Flags             []string       `json:"flags"`
	EvaluationContext map[string]any `json:"evaluationContext"`
	ClientSecret      string         `json:"clientSecret"`
	Apply             bool           `json:"apply"`
	SDK               SDK            `json:"sdk"`
}

type resolveResponse struct {
	ResolvedFlags []wireFlag `json:"resolvedFlags"`
	ResolveToken  string     `json:"resolveToken"`
}

type wireFlag struct {
	Flag        string         `json:"flag"`
	Variant     string         `json:"variant"`
	Value       map[string]any `json:"value"`
	FlagSchema  *structSchema  `json:"flagSchema"`
	Reason      string         `json:"reason"`
	ShouldApply bool           `json:"shouldApply"`
}

// structSchema describes the declared type of every field of a flag value.
type structSchema struct {
	Schema map[string]fieldSchema `json:"schema"`
}

type fieldSchema struct {
	StructSchema *structSchema `json:"structSchema,omitempty"`
	ListSchema   *listSchema   `json:"listSchema,omitempty"`
	IntSchema    *struct{}     `json:"intSchema,omitempty"`
	DoubleSchema *struct{}     `json:"doubleSchema,omitempty"`
	StringSchema *struct{}     `json:"stringSchema,omitempty"`
	BoolSchema   *struct{}     `json:"boolSchema,omitempty"`
}

type listSchema struct {
	ElementSchema fieldSchema `json:"elementSchema"`
}

// Resolve asks the backend to resolve the configured flags for evalCtx.
// A 304 answer is reported as NotModified.
func (c *Client) Resolve(ctx context.Context, evalCtx value.Struct) (snapshot.Response, error) {
	flags := make([]string, len(c.flags))
	for i, f := range c.flags {
		flags[i] = flagPrefix + f
	}
	body := resolveRequest{
		Flags:             flags,
		EvaluationContext: value.PlainMap(evalCtx),
		ClientSecret:      c.secret,
		Apply:             false,
		SDK:               c.sdk,
	}

	resp, span, err := c.post(ctx, "flagship.resolve", c.resolveURL+ResolvePath, body,
		attribute.Int("flagship.flags", len(flags)))
	if err != nil {
		return snapshot.Response{}, err
	}
	defer span.End()
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		span.SetAttributes(attribute.Bool("flagship.not_modified", true))
		return snapshot.Response{NotModified: true}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := statusError(resp)
		span.SetStatus(codes.Error, err.Error())
		return snapshot.Response{}, err
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var result resolveResponse
	if err := dec.Decode(&result); err != nil {
		span.RecordError(err)
		return snapshot.Response{}, fmt.Errorf("failed to decode response: %w", err)
	}

	res := snapshot.FlagResolution{
		Flags:        make([]snapshot.ResolvedFlag, 0, len(result.ResolvedFlags)),
		ResolveToken: result.ResolveToken,
	}
	for _, f := range result.ResolvedFlags {
		res.Flags = append(res.Flags, snapshot.ResolvedFlag{
			Flag:        strings.TrimPrefix(f.Flag, flagPrefix),
			Variant:     f.Variant,
			Value:       decodeStruct(f.Value, f.FlagSchema),
			Reason:      snapshot.ParseReason(f.Reason),
			ShouldApply: f.ShouldApply,
		})
	}
	span.SetAttributes(attribute.Int("flagship.resolved_flags", len(res.Flags)))
	return snapshot.Response{Resolution: res}, nil
}

// decodeStruct converts a flag value using its schema. Numbers are integers
// only when the schema says so; everything else numeric is a double.
func decodeStruct(m map[string]any, schema *structSchema) value.Struct {
	out := make(value.Struct, len(m))
	for k, raw := range m {
		var fs *fieldSchema
		if schema != nil {
			if s, ok := schema.Schema[k]; ok {
				fs = &s
			}
		}
		out[k] = decodeField(raw, fs)
	}
	return out
}

func decodeField(raw any, fs *fieldSchema) value.Value {
	switch x := raw.(type) {
	case nil:
		return value.Null{}
	case json.Number:
		if fs != nil && fs.IntSchema != nil {
			if n, err := x.Int64(); err == nil {
				return value.Integer(n)
			}
		}
		f, _ := x.Float64()
		return value.Double(f)
	case map[string]any:
		var nested *structSchema
		if fs != nil {
			nested = fs.StructSchema
		}
		return decodeStruct(x, nested)
	case []any:
		var elem *fieldSchema
		if fs != nil && fs.ListSchema != nil {
			elem = &fs.ListSchema.ElementSchema
		}
		list := make(value.List, len(x))
		for i, e := range x {
			list[i] = decodeField(e, elem)
		}
		return list
	}
	return value.FromPlain(raw)
}
