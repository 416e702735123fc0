package mockserver

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/goflagship-sdk/internal/validation"
)

// Flag is one flag served by the mock resolver.
type Flag struct {
	Name    string         `yaml:"name" json:"name"`
	Variant string         `yaml:"variant" json:"variant"`
	Value   map[string]any `yaml:"value" json:"value"`
	// Reason defaults to MATCH.
	Reason string `yaml:"reason,omitempty" json:"reason,omitempty"`
	// TargetingKey, when set, must be present in the evaluation context;
	// otherwise the flag resolves with TARGETING_KEY_ERROR.
	TargetingKey string `yaml:"targetingKey,omitempty" json:"targetingKey,omitempty"`
	// SkipApply marks the flag as not needing exposure reporting.
	SkipApply bool `yaml:"skipApply,omitempty" json:"skipApply,omitempty"`
}

type flagsFile struct {
	Flags []Flag `yaml:"flags" json:"flags"`
}

// ParseFlags decodes a YAML flags document:
//
//	flags:
//	  - name: banner
//	    variant: flags/banner/variants/blue
//	    value: {color: blue, size: 3}
func ParseFlags(data []byte) ([]Flag, error) {
	var f flagsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	params := make([]validation.FlagValidationParams, len(f.Flags))
	for i, fl := range f.Flags {
		if fl.Value == nil {
			f.Flags[i].Value = map[string]any{}
		}
		params[i] = validation.FlagValidationParams{
			Name:         fl.Name,
			Variant:      fl.Variant,
			Reason:       fl.Reason,
			TargetingKey: fl.TargetingKey,
			Value:        f.Flags[i].Value,
		}
	}
	if res := validation.ValidateFlagSet(params); !res.Valid {
		return nil, fmt.Errorf("invalid flags: %s", res.Error())
	}
	return f.Flags, nil
}

// EncodeFlags renders flags in the format ParseFlags reads.
func EncodeFlags(flags []Flag) ([]byte, error) {
	data, err := yaml.Marshal(flagsFile{Flags: flags})
	if err != nil {
		return nil, fmt.Errorf("failed to encode flags: %w", err)
	}
	return data, nil
}

// LoadFlags reads a YAML flags file.
func LoadFlags(path string) ([]Flag, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flags file: %w", err)
	}
	return ParseFlags(data)
}

// schemaOf derives the wire schema of a flag value from its YAML types.
func schemaOf(m map[string]any) map[string]any {
	schema := make(map[string]any, len(m))
	for k, v := range m {
		if s := fieldSchema(v); s != nil {
			schema[k] = s
		}
	}
	return map[string]any{"schema": schema}
}

func fieldSchema(v any) map[string]any {
	switch x := v.(type) {
	case int, int64, uint64:
		return map[string]any{"intSchema": map[string]any{}}
	case float64:
		return map[string]any{"doubleSchema": map[string]any{}}
	case string:
		return map[string]any{"stringSchema": map[string]any{}}
	case bool:
		return map[string]any{"boolSchema": map[string]any{}}
	case map[string]any:
		return map[string]any{"structSchema": schemaOf(x)}
	case []any:
		if len(x) == 0 {
			return nil
		}
		if elem := fieldSchema(x[0]); elem != nil {
			return map[string]any{"listSchema": map[string]any{"elementSchema": elem}}
		}
	}
	return nil
}
