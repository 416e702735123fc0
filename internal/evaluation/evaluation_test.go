package evaluation

import (
	"testing"

	"github.com/TimurManjosov/goflagship-sdk/internal/snapshot"
	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

type applied struct{ flag, token string }

type recorder struct{ calls []applied }

func (r *recorder) Apply(flag, token string) { r.calls = append(r.calls, applied{flag, token}) }

var userCtx = value.Struct{"targeting_key": value.String("u1")}

func resolution(reason snapshot.Reason) *snapshot.FlagResolution {
	return &snapshot.FlagResolution{
		Context: userCtx,
		Flags: []snapshot.ResolvedFlag{{
			Flag:    "flag",
			Variant: "flags/flag/variants/v1",
			Value: value.Struct{
				"a":     value.Struct{"b": value.String("x")},
				"n":     value.Integer(7),
				"ratio": value.Double(0.25),
				"none":  value.Null{},
			},
			Reason:      reason,
			ShouldApply: true,
		}},
		ResolveToken: "tok",
	}
}

func TestEvaluate_NotReady(t *testing.T) {
	for _, res := range []*snapshot.FlagResolution{nil, {}} {
		r := &recorder{}
		ev := Evaluate(res, "flag.a.b", "def", userCtx, r, Options{})
		if ev.Value != "def" || ev.Reason != ReasonError || ev.ErrorCode != ErrProviderNotReady {
			t.Errorf("Expected PROVIDER_NOT_READY with default, got %+v", ev)
		}
		if len(r.calls) != 0 {
			t.Error("apply must not be triggered before a resolution exists")
		}
	}
}

func TestEvaluate_FlagNotFound(t *testing.T) {
	r := &recorder{}
	ev := Evaluate(resolution(snapshot.ReasonMatch), "other", false, userCtx, r, Options{})
	if ev.Value != false || ev.ErrorCode != ErrFlagNotFound || ev.Reason != ReasonError {
		t.Errorf("Expected FLAG_NOT_FOUND, got %+v", ev)
	}
	if len(r.calls) != 0 {
		t.Error("apply must not be triggered for a missing flag")
	}
}

func TestEvaluate_TargetingKeyError(t *testing.T) {
	r := &recorder{}
	ev := Evaluate(resolution(snapshot.ReasonTargetingKeyError), "flag.a.b", "def", userCtx, r, Options{})
	if ev.Value != "def" {
		t.Errorf("Expected default, got %q", ev.Value)
	}
	if ev.Reason != ReasonTargetingKeyError || ev.ErrorCode != ErrInvalidContext {
		t.Errorf("Expected TARGETING_KEY_ERROR/INVALID_CONTEXT, got %s/%s", ev.Reason, ev.ErrorCode)
	}
	if ev.ErrorMessage != "Invalid targeting key" {
		t.Errorf("unexpected message %q", ev.ErrorMessage)
	}
	if len(r.calls) != 0 {
		t.Error("apply must not be triggered on a targeting key error")
	}
}

func TestEvaluate_Paths(t *testing.T) {
	tests := []struct {
		name   string
		reason snapshot.Reason
		key    string
		want   string
		wantR  Reason
		wantEC ErrorCode
	}{
		{"leaf under match", snapshot.ReasonMatch, "flag.a.b", "x", ReasonMatch, ""},
		{"past the leaf under match", snapshot.ReasonMatch, "flag.a.b.c", "def", ReasonError, ErrParse},
		{"missing under match", snapshot.ReasonMatch, "flag.missing", "def", ReasonError, ErrParse},
		{"missing under no segment match", snapshot.ReasonNoSegmentMatch, "flag.missing", "def", ReasonNoSegmentMatch, ""},
		{"wrong type keeps reason", snapshot.ReasonMatch, "flag.n", "def", ReasonMatch, ""},
		{"null leaf keeps reason", snapshot.ReasonMatch, "flag.none", "def", ReasonMatch, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			ev := Evaluate(resolution(tt.reason), tt.key, "def", userCtx, r, Options{})
			if ev.Value != tt.want {
				t.Errorf("Value = %q, want %q", ev.Value, tt.want)
			}
			if ev.Reason != tt.wantR {
				t.Errorf("Reason = %s, want %s", ev.Reason, tt.wantR)
			}
			if ev.ErrorCode != tt.wantEC {
				t.Errorf("ErrorCode = %s, want %s", ev.ErrorCode, tt.wantEC)
			}
			if len(r.calls) != 1 || r.calls[0] != (applied{"flag", "tok"}) {
				t.Errorf("Expected one apply for (flag, tok), got %v", r.calls)
			}
			if ev.ErrorCode == "" && ev.Variant != "flags/flag/variants/v1" {
				t.Errorf("variant not preserved: %q", ev.Variant)
			}
		})
	}
}

func TestEvaluate_TypedExtraction(t *testing.T) {
	res := resolution(snapshot.ReasonMatch)

	if ev := Evaluate(res, "flag.n", int64(0), userCtx, nil, Options{}); ev.Value != 7 {
		t.Errorf("int64: got %d", ev.Value)
	}
	if ev := Evaluate(res, "flag.n", 0.0, userCtx, nil, Options{}); ev.Value != 7 {
		t.Errorf("float64 from integer: got %v", ev.Value)
	}
	if ev := Evaluate(res, "flag.ratio", 0.0, userCtx, nil, Options{}); ev.Value != 0.25 {
		t.Errorf("float64: got %v", ev.Value)
	}
	whole := Evaluate(res, "flag", value.Struct{}, userCtx, nil, Options{})
	if !value.Equal(whole.Value, res.Flags[0].Value) {
		t.Errorf("empty path should return the whole struct, got %s", value.Format(whole.Value))
	}
	nested := Evaluate(res, "flag.a", map[string]any(nil), userCtx, nil, Options{})
	if nested.Value["b"] != "x" {
		t.Errorf("map extraction: got %v", nested.Value)
	}
}

func TestEvaluate_Stale(t *testing.T) {
	res := resolution(snapshot.ReasonMatch)
	changed := userCtx.With("plan", value.String("pro"))

	r := &recorder{}
	ev := Evaluate(res, "flag.a.b", "def", changed, r, Options{})
	if ev.Value != "x" || ev.Reason != ReasonStale || ev.ErrorCode != "" {
		t.Errorf("Expected stale value x, got %+v", ev)
	}
	if len(r.calls) != 1 {
		t.Error("a stale read is still an exposure")
	}

	r = &recorder{}
	ev = Evaluate(res, "flag.a.b", "def", changed, r, Options{StrictStaleness: true})
	if ev.Value != "def" || ev.ErrorCode != ErrResolveStale || ev.Reason != ReasonError {
		t.Errorf("Expected RESOLVE_STALE, got %+v", ev)
	}
	if len(r.calls) != 0 {
		t.Error("strict staleness must not apply")
	}
}

func TestEvaluateAll(t *testing.T) {
	res := resolution(snapshot.ReasonMatch)
	res.Flags = append(res.Flags, snapshot.ResolvedFlag{
		Flag:   "other",
		Value:  value.Struct{},
		Reason: snapshot.ReasonNoSegmentMatch,
	})

	r := &recorder{}
	all := EvaluateAll(res, userCtx, r, Options{})
	if len(all) != 2 {
		t.Fatalf("Expected 2 evaluations, got %d", len(all))
	}
	if all["other"].Reason != ReasonNoSegmentMatch {
		t.Errorf("other: reason %s", all["other"].Reason)
	}
	if len(r.calls) != 2 {
		t.Errorf("Expected 2 applies, got %d", len(r.calls))
	}
	if got := EvaluateAll(nil, userCtx, r, Options{}); len(got) != 0 {
		t.Errorf("Expected no evaluations for nil resolution, got %d", len(got))
	}
}
