// Package validation provides validation rules for mock backend flag files
// and SDK identifiers.
package validation

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/TimurManjosov/goflagship-sdk/internal/eventlog"
	"github.com/TimurManjosov/goflagship-sdk/internal/snapshot"
)

const (
	// MaxNameLength is the maximum length for flag names
	MaxNameLength = 64
	// MaxVariantLength is the maximum length for variant resource names
	MaxVariantLength = 128
	// MaxValueSize is the maximum size of a flag value as JSON in bytes
	MaxValueSize = 100 * 1024 // 100KB
	// MaxEventNameLength is the maximum length for event names
	MaxEventNameLength = 128
)

// namePattern matches alphanumeric characters, underscores, and hyphens
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// eventPattern also allows dots and slashes
var eventPattern = regexp.MustCompile(`^[a-zA-Z0-9_./-]+$`)

// ValidationResult holds the result of validation
type ValidationResult struct {
	Valid  bool
	Errors map[string]string
}

// NewValidationResult creates a new validation result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:  true,
		Errors: make(map[string]string),
	}
}

// AddError adds a field error and marks the result as invalid
func (v *ValidationResult) AddError(field, message string) {
	v.Valid = false
	v.Errors[field] = message
}

// Merge combines another validation result into this one
func (v *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for field, message := range other.Errors {
		v.AddError(field, message)
	}
}

// Error joins the field errors in a stable order
func (v *ValidationResult) Error() string {
	fields := make([]string, 0, len(v.Errors))
	for field := range v.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = field + ": " + v.Errors[field]
	}
	return strings.Join(parts, "; ")
}

// FlagValidationParams contains the parameters for validating a flag
type FlagValidationParams struct {
	Name         string
	Variant      string
	Reason       string
	TargetingKey string
	Value        map[string]any
}

// ValidateFlag validates all flag fields and returns a validation result
func ValidateFlag(params FlagValidationParams) *ValidationResult {
	result := NewValidationResult()

	// Validate name
	result.Merge(ValidateName(params.Name))

	// Validate variant
	result.Merge(ValidateVariant(params.Variant))

	// Validate reason if one is given
	if params.Reason != "" {
		result.Merge(ValidateReason(params.Reason))
	}

	// Targeting key is a context key
	if params.TargetingKey != "" && strings.TrimSpace(params.TargetingKey) != params.TargetingKey {
		result.AddError("targetingKey", "Targeting key must not have surrounding whitespace")
	}

	// Validate value size
	result.Merge(ValidateValueSize(params.Value))

	return result
}

// ValidateName validates a flag name
func ValidateName(name string) *ValidationResult {
	result := NewValidationResult()
	name = strings.TrimSpace(name)

	if name == "" {
		result.AddError("name", "Name is required")
		return result
	}

	if utf8.RuneCountInString(name) > MaxNameLength {
		result.AddError("name", "Name must not exceed 64 characters")
		return result
	}

	if !namePattern.MatchString(name) {
		result.AddError("name", "Name must contain only alphanumeric characters, underscores, and hyphens")
		return result
	}

	return result
}

// ValidateVariant validates a variant resource name. Empty is allowed and
// means the flag resolved to no variant.
func ValidateVariant(variant string) *ValidationResult {
	result := NewValidationResult()

	if utf8.RuneCountInString(variant) > MaxVariantLength {
		result.AddError("variant", "Variant must not exceed 128 characters")
	}

	return result
}

// ValidateReason validates a resolve reason
func ValidateReason(reason string) *ValidationResult {
	result := NewValidationResult()

	if snapshot.ParseReason(reason) == snapshot.ReasonUnspecified &&
		strings.TrimPrefix(reason, "RESOLVE_REASON_") != string(snapshot.ReasonUnspecified) {
		result.AddError("reason", "Unknown reason: "+reason)
	}

	return result
}

// ValidateValueSize validates the size of a flag value encoded as JSON
func ValidateValueSize(v map[string]any) *ValidationResult {
	result := NewValidationResult()

	data, err := json.Marshal(v)
	if err != nil {
		result.AddError("value", "Value must be JSON encodable: "+err.Error())
		return result
	}
	if len(data) > MaxValueSize {
		result.AddError("value", "Value must not exceed 100KB")
	}

	return result
}

// ValidateEventName validates an event definition name
func ValidateEventName(name string) *ValidationResult {
	result := NewValidationResult()

	if strings.TrimSpace(name) == "" {
		result.AddError("event", "Event name is required")
		return result
	}

	if utf8.RuneCountInString(name) > MaxEventNameLength {
		result.AddError("event", "Event name must not exceed 128 characters")
		return result
	}

	if !eventPattern.MatchString(name) {
		result.AddError("event", "Event name must contain only alphanumeric characters, underscores, hyphens, dots, and slashes")
	}

	if name == eventlog.ManualFlushEvent {
		result.AddError("event", "Event name "+name+" is reserved")
	}

	return result
}

// ValidateFlagSet validates every flag and rejects duplicate names
func ValidateFlagSet(flags []FlagValidationParams) *ValidationResult {
	result := NewValidationResult()
	seen := make(map[string]bool)

	for i, f := range flags {
		r := ValidateFlag(f)
		for field, message := range r.Errors {
			result.AddError("flags["+strconv.Itoa(i)+"]."+field, message)
		}
		if seen[f.Name] {
			result.AddError("flags["+strconv.Itoa(i)+"].name", "Duplicate flag name: "+f.Name)
		}
		seen[f.Name] = true
	}

	return result
}
