// Package snapshot holds the live flag resolution and its persisted copy.
//
// A resolution fetched from the backend is persisted first and only becomes
// live when explicitly activated, so values seen by the application never
// change underneath it unless it asks for that.
package snapshot

import (
	"context"
	"time"

	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

// Reason explains why the backend resolved a flag the way it did.
type Reason string

const (
	ReasonMatch             Reason = "MATCH"
	ReasonNoSegmentMatch    Reason = "NO_SEGMENT_MATCH"
	ReasonNoTreatmentMatch  Reason = "NO_TREATMENT_MATCH"
	ReasonTargetingKeyError Reason = "TARGETING_KEY_ERROR"
	ReasonArchived          Reason = "FLAG_ARCHIVED"
	ReasonUnspecified       Reason = "UNSPECIFIED"
)

// ParseReason maps the backend's reason strings, with or without the
// RESOLVE_REASON_ prefix. Unknown values become ReasonUnspecified.
func ParseReason(s string) Reason {
	const prefix = "RESOLVE_REASON_"
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		s = s[len(prefix):]
	}
	switch r := Reason(s); r {
	case ReasonMatch, ReasonNoSegmentMatch, ReasonNoTreatmentMatch,
		ReasonTargetingKeyError, ReasonArchived:
		return r
	}
	return ReasonUnspecified
}

// ResolvedFlag is one flag as resolved by the backend.
type ResolvedFlag struct {
	Flag        string       `json:"flag"`
	Variant     string       `json:"variant"`
	Value       value.Struct `json:"value"`
	Reason      Reason       `json:"reason"`
	ShouldApply bool         `json:"shouldApply"`
}

// FlagResolution is the outcome of one resolve call, stamped with the context
// it was computed for.
type FlagResolution struct {
	Context      value.Struct   `json:"context"`
	Flags        []ResolvedFlag `json:"flags"`
	ResolveToken string         `json:"resolveToken"`
	ResolvedAt   time.Time      `json:"resolvedAt,omitempty"`
}

// Empty is the canonical absent resolution.
func Empty() FlagResolution {
	return FlagResolution{Context: value.Struct{}, Flags: []ResolvedFlag{}}
}

// IsEmpty reports whether r carries no resolution at all.
func (r FlagResolution) IsEmpty() bool {
	return r.ResolveToken == "" && len(r.Flags) == 0
}

// Find returns the resolved flag with the given name.
func (r FlagResolution) Find(name string) (ResolvedFlag, bool) {
	for _, f := range r.Flags {
		if f.Flag == name {
			return f, true
		}
	}
	return ResolvedFlag{}, false
}

// Response is what a Resolver returns. NotModified means the backend had
// nothing newer and Resolution must be ignored.
type Response struct {
	NotModified bool
	Resolution  FlagResolution
}

// Resolver performs the resolve network call for an evaluation context.
type Resolver interface {
	Resolve(ctx context.Context, evalCtx value.Struct) (Response, error)
}
