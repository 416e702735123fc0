// Package value implements the closed set of values that flow through an
// evaluation context, a resolved flag and an event payload.
//
// Every value is one of Null, String, Double, Bool, Integer, Date, Timestamp,
// List or Struct. The Value interface is sealed, so a type switch over these
// nine types is exhaustive.
package value

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindDouble
	KindBool
	KindInteger
	KindDate
	KindTimestamp
	KindList
	KindStruct
)

var kindNames = [...]string{"null", "string", "double", "bool", "integer", "date", "timestamp", "list", "struct"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is one of the nine value variants. It cannot be implemented outside
// this package.
type Value interface {
	Kind() Kind
	sealed()
}

type (
	// Null is the absent value.
	Null struct{}
	// String is a UTF-8 string.
	String string
	// Double is a 64-bit float.
	Double float64
	// Bool is a boolean.
	Bool bool
	// Integer is a 64-bit signed integer.
	Integer int64
	// Timestamp is an instant, normalized to UTC.
	Timestamp time.Time
	// List is an ordered sequence of values.
	List []Value
	// Struct maps field names to values. Treat it as immutable once shared.
	Struct map[string]Value
)

// Date is a calendar date without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func (Null) Kind() Kind      { return KindNull }
func (String) Kind() Kind    { return KindString }
func (Double) Kind() Kind    { return KindDouble }
func (Bool) Kind() Kind      { return KindBool }
func (Integer) Kind() Kind   { return KindInteger }
func (Date) Kind() Kind      { return KindDate }
func (Timestamp) Kind() Kind { return KindTimestamp }
func (List) Kind() Kind      { return KindList }
func (Struct) Kind() Kind    { return KindStruct }

func (Null) sealed()      {}
func (String) sealed()    {}
func (Double) sealed()    {}
func (Bool) sealed()      {}
func (Integer) sealed()   {}
func (Date) sealed()      {}
func (Timestamp) sealed() {}
func (List) sealed()      {}
func (Struct) sealed()    {}

// NewTimestamp returns t as a UTC Timestamp.
func NewTimestamp(t time.Time) Timestamp { return Timestamp(t.UTC()) }

// Time returns the instant held by t.
func (t Timestamp) Time() time.Time { return time.Time(t) }

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses an ISO-8601 date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time { return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC) }

func (d Date) String() string { return d.Time().Format(time.DateOnly) }

// Copy returns a shallow copy of s. A nil Struct copies to an empty one.
func (s Struct) Copy() Struct {
	out := make(Struct, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// With returns a copy of s with key set to v.
func (s Struct) With(key string, v Value) Struct {
	out := s.Copy()
	out[key] = v
	return out
}

// Keys returns the field names of s in sorted order.
func (s Struct) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether a and b hold the same variant and contents. A nil
// Value equals Null.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Null:
		return true
	case String:
		return x == b.(String)
	case Double:
		return x == b.(Double)
	case Bool:
		return x == b.(Bool)
	case Integer:
		return x == b.(Integer)
	case Date:
		return x == b.(Date)
	case Timestamp:
		return x.Time().Equal(b.(Timestamp).Time())
	case List:
		y := b.(List)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Struct:
		y := b.(Struct)
		if len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	}
	return false
}

// Format renders v for humans (CLI output, log lines).
func Format(v Value) string {
	switch x := v.(type) {
	case nil, Null:
		return "null"
	case String:
		return string(x)
	case Double:
		return fmt.Sprintf("%g", float64(x))
	case Bool:
		return fmt.Sprintf("%t", bool(x))
	case Integer:
		return fmt.Sprintf("%d", int64(x))
	case Date:
		return x.String()
	case Timestamp:
		return x.Time().Format(time.RFC3339Nano)
	case List:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = Format(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Struct:
		keys := x.Keys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + Format(x[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprintf("%v", v)
}
