package value

import (
	"strings"
	"time"
)

// SplitKey splits a dotted flag key into the flag name and the path into the
// flag's value: "banner.color.hex" -> ("banner", ["color", "hex"]).
func SplitKey(key string) (string, []string) {
	parts := strings.Split(key, ".")
	return parts[0], parts[1:]
}

// Lookup walks path through nested structs. An empty path returns root.
// Every step must descend into a Struct that has the named field.
func Lookup(root Value, path []string) (Value, bool) {
	cur := root
	for _, seg := range path {
		s, ok := cur.(Struct)
		if !ok {
			return nil, false
		}
		next, ok := s[seg]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// As extracts v as a T. It fails for Null and for any variant that does not
// map onto T. An Integer converts to float64; a Date converts to time.Time.
//
// Supported targets: string, bool, int, int64, float64, time.Time, Date,
// Timestamp, Struct, List, Value, map[string]any and []any.
func As[T any](v Value) (T, bool) {
	var out T
	if v == nil || v.Kind() == KindNull {
		return out, false
	}
	switch p := any(&out).(type) {
	case *string:
		x, ok := v.(String)
		*p = string(x)
		return out, ok
	case *bool:
		x, ok := v.(Bool)
		*p = bool(x)
		return out, ok
	case *int64:
		x, ok := v.(Integer)
		*p = int64(x)
		return out, ok
	case *int:
		x, ok := v.(Integer)
		*p = int(x)
		return out, ok
	case *float64:
		switch x := v.(type) {
		case Double:
			*p = float64(x)
			return out, true
		case Integer:
			*p = float64(x)
			return out, true
		}
		return out, false
	case *time.Time:
		switch x := v.(type) {
		case Timestamp:
			*p = x.Time()
			return out, true
		case Date:
			*p = x.Time()
			return out, true
		}
		return out, false
	case *Date:
		x, ok := v.(Date)
		*p = x
		return out, ok
	case *Timestamp:
		x, ok := v.(Timestamp)
		*p = x
		return out, ok
	case *Struct:
		x, ok := v.(Struct)
		*p = x
		return out, ok
	case *List:
		x, ok := v.(List)
		*p = x
		return out, ok
	case *Value:
		*p = v
		return out, true
	case *map[string]any:
		x, ok := v.(Struct)
		if ok {
			*p = PlainMap(x)
		}
		return out, ok
	case *[]any:
		x, ok := v.(List)
		if ok {
			*p, _ = ToPlain(x).([]any)
		}
		return out, ok
	}
	return out, false
}
