// Package evaluation reads typed flag values out of a cached resolution.
// Targeting happens on the backend; this package only walks the resolved
// value, reports why a value was (or was not) served, and triggers exposure
// reporting.
//
// Testing Guide:
//
// Every function is pure apart from the Applier callback, so tests need no
// network or disk.
//
// How to Test Evaluate:
//
//  1. Build a snapshot.FlagResolution with the flags under test
//  2. Pass the context the caller currently has (equal to the resolution's
//     context unless staleness is under test)
//  3. Pass a recording Applier
//  4. Assert on Value, Reason, ErrorCode and on the recorded applies
//
// Example:
//
//	res := &snapshot.FlagResolution{
//	    Context: value.Struct{"user": value.String("u1")},
//	    Flags: []snapshot.ResolvedFlag{{
//	        Flag:   "banner",
//	        Value:  value.Struct{"color": value.String("blue")},
//	        Reason: snapshot.ReasonMatch,
//	    }},
//	    ResolveToken: "tok",
//	}
//	ev := Evaluate(res, "banner.color", "red", res.Context, applier, Options{})
//	// ev.Value == "blue", ev.Reason == ReasonMatch
//
// Edge Cases to Test:
//
//   - nil or empty resolution: PROVIDER_NOT_READY, no apply
//   - unknown flag: FLAG_NOT_FOUND, no apply
//   - TARGETING_KEY_ERROR: INVALID_CONTEXT, no apply
//   - path past a leaf under MATCH: PARSE_ERROR
//   - path miss under any other reason: default with that reason
//   - Null leaf or wrong type: default, reason and variant kept
//   - changed context: STALE, value still served
package evaluation

import (
	"github.com/TimurManjosov/goflagship-sdk/internal/snapshot"
	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

// Reason is why an evaluation produced its value. It extends the backend's
// resolve reasons with local outcomes.
type Reason string

const (
	ReasonMatch             = Reason(snapshot.ReasonMatch)
	ReasonNoSegmentMatch    = Reason(snapshot.ReasonNoSegmentMatch)
	ReasonNoTreatmentMatch  = Reason(snapshot.ReasonNoTreatmentMatch)
	ReasonTargetingKeyError = Reason(snapshot.ReasonTargetingKeyError)
	ReasonUnspecified       = Reason(snapshot.ReasonUnspecified)
	ReasonError             = Reason("ERROR")
	ReasonStale             = Reason("STALE")
)

// ErrorCode classifies evaluation failures.
type ErrorCode string

const (
	ErrProviderNotReady ErrorCode = "PROVIDER_NOT_READY"
	ErrFlagNotFound     ErrorCode = "FLAG_NOT_FOUND"
	ErrInvalidContext   ErrorCode = "INVALID_CONTEXT"
	ErrParse            ErrorCode = "PARSE_ERROR"
	ErrResolveStale     ErrorCode = "RESOLVE_STALE"
)

// Evaluation is the outcome of reading one flag key. It is never persisted.
type Evaluation[T any] struct {
	Value        T         `json:"value"`
	Variant      string    `json:"variant,omitempty"`
	Reason       Reason    `json:"reason"`
	ErrorCode    ErrorCode `json:"errorCode,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// Failed reports whether the default was served because of an error.
func (e Evaluation[T]) Failed() bool { return e.ErrorCode != "" }

// Applier records that a flag resolved under a token was used.
type Applier interface {
	Apply(flag, token string)
}

// Options tunes evaluation.
type Options struct {
	// StrictStaleness serves the default with RESOLVE_STALE instead of
	// downgrading the reason to STALE.
	StrictStaleness bool
}

// Evaluate reads dottedKey ("flag" or "flag.path.to.field") from res and
// converts it to the type of def. It never fails: problems are reported in
// the returned Evaluation and def is served instead.
func Evaluate[T any](res *snapshot.FlagResolution, dottedKey string, def T, current value.Struct, applier Applier, opts Options) Evaluation[T] {
	name, path := value.SplitKey(dottedKey)

	if res == nil || res.IsEmpty() {
		return failure(def, ErrProviderNotReady, "flag resolution not available")
	}
	flag, ok := res.Find(name)
	if !ok {
		return failure(def, ErrFlagNotFound, "flag "+name+" not found")
	}
	if flag.Reason == snapshot.ReasonTargetingKeyError {
		return Evaluation[T]{
			Value:        def,
			Reason:       ReasonTargetingKeyError,
			ErrorCode:    ErrInvalidContext,
			ErrorMessage: "Invalid targeting key",
		}
	}

	stale := !value.Equal(res.Context, current)
	if stale && opts.StrictStaleness {
		return failure(def, ErrResolveStale, "resolution was made for a different context")
	}

	if applier != nil {
		applier.Apply(flag.Flag, res.ResolveToken)
	}

	ev := Evaluation[T]{Value: def, Variant: flag.Variant, Reason: Reason(flag.Reason)}
	leaf, ok := value.Lookup(flag.Value, path)
	switch {
	case !ok && flag.Reason == snapshot.ReasonMatch:
		return failure(def, ErrParse, "unable to parse flag value "+dottedKey)
	case ok:
		if v, ok := value.As[T](leaf); ok {
			ev.Value = v
		}
	}
	if stale {
		ev.Reason = ReasonStale
	}
	return ev
}

// EvaluateAll evaluates every flag of res as a whole struct, keyed by flag
// name.
func EvaluateAll(res *snapshot.FlagResolution, current value.Struct, applier Applier, opts Options) map[string]Evaluation[value.Struct] {
	out := make(map[string]Evaluation[value.Struct])
	if res == nil {
		return out
	}
	for _, f := range res.Flags {
		out[f.Flag] = Evaluate(res, f.Flag, value.Struct{}, current, applier, opts)
	}
	return out
}

func failure[T any](def T, code ErrorCode, msg string) Evaluation[T] {
	return Evaluation[T]{Value: def, Reason: ReasonError, ErrorCode: code, ErrorMessage: msg}
}
