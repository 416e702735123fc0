package flagship

import (
	"github.com/TimurManjosov/goflagship-sdk/internal/evaluation"
	"github.com/TimurManjosov/goflagship-sdk/internal/snapshot"
	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

// Context values.
type (
	Value     = value.Value
	Null      = value.Null
	String    = value.String
	Double    = value.Double
	Bool      = value.Bool
	Integer   = value.Integer
	Date      = value.Date
	Timestamp = value.Timestamp
	List      = value.List
	Struct    = value.Struct
)

// FromPlain converts decoded JSON or YAML into a Value.
func FromPlain(x any) Value { return value.FromPlain(x) }

// FromMap converts a plain map into a Struct.
func FromMap(m map[string]any) Struct { return value.FromPlainMap(m) }

// Cached resolution.
type (
	FlagResolution = snapshot.FlagResolution
	ResolvedFlag   = snapshot.ResolvedFlag
	ResolveReason  = snapshot.Reason
)

// Backend reasons carried by ResolvedFlag.Reason.
const (
	ResolveReasonMatch             = snapshot.ReasonMatch
	ResolveReasonNoSegmentMatch    = snapshot.ReasonNoSegmentMatch
	ResolveReasonNoTreatmentMatch  = snapshot.ReasonNoTreatmentMatch
	ResolveReasonTargetingKeyError = snapshot.ReasonTargetingKeyError
	ResolveReasonArchived          = snapshot.ReasonArchived
	ResolveReasonUnspecified       = snapshot.ReasonUnspecified
)

// Evaluation results.
type (
	Evaluation[T any] = evaluation.Evaluation[T]
	Reason            = evaluation.Reason
	ErrorCode         = evaluation.ErrorCode
)

const (
	ReasonMatch             = evaluation.ReasonMatch
	ReasonNoSegmentMatch    = evaluation.ReasonNoSegmentMatch
	ReasonNoTreatmentMatch  = evaluation.ReasonNoTreatmentMatch
	ReasonTargetingKeyError = evaluation.ReasonTargetingKeyError
	ReasonUnspecified       = evaluation.ReasonUnspecified
	ReasonError             = evaluation.ReasonError
	ReasonStale             = evaluation.ReasonStale

	ErrProviderNotReady = evaluation.ErrProviderNotReady
	ErrFlagNotFound     = evaluation.ErrFlagNotFound
	ErrInvalidContext   = evaluation.ErrInvalidContext
	ErrParse            = evaluation.ErrParse
	ErrResolveStale     = evaluation.ErrResolveStale
)
