package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Tagged encoding is used wherever values are persisted: each value becomes a
// single-key object naming its variant, e.g. {"integer":"42"} or
// {"struct":{"a":{"string":"x"}}}. It round-trips every variant exactly.
const (
	tagNull      = "null"
	tagString    = "string"
	tagDouble    = "double"
	tagBool      = "bool"
	tagInteger   = "integer"
	tagDate      = "date"
	tagTimestamp = "timestamp"
	tagList      = "list"
	tagStruct    = "struct"
)

// ErrInvalidEncoding is returned when tagged JSON does not describe a value.
var ErrInvalidEncoding = errors.New("value: invalid tagged encoding")

func tagged(v Value) map[string]any {
	switch x := v.(type) {
	case nil, Null:
		return map[string]any{tagNull: true}
	case String:
		return map[string]any{tagString: string(x)}
	case Double:
		return map[string]any{tagDouble: float64(x)}
	case Bool:
		return map[string]any{tagBool: bool(x)}
	case Integer:
		// encoded as a string so values beyond 2^53 survive
		return map[string]any{tagInteger: strconv.FormatInt(int64(x), 10)}
	case Date:
		return map[string]any{tagDate: x.String()}
	case Timestamp:
		return map[string]any{tagTimestamp: x.Time().UTC().Format(time.RFC3339Nano)}
	case List:
		items := make([]any, len(x))
		for i, e := range x {
			items[i] = tagged(e)
		}
		return map[string]any{tagList: items}
	case Struct:
		return map[string]any{tagStruct: taggedFields(x)}
	}
	return map[string]any{tagNull: true}
}

func taggedFields(s Struct) map[string]any {
	fields := make(map[string]any, len(s))
	for k, v := range s {
		fields[k] = tagged(v)
	}
	return fields
}

// Marshal encodes v in the tagged form.
func Marshal(v Value) ([]byte, error) {
	return json.Marshal(tagged(v))
}

// Unmarshal decodes a value from its tagged form.
func Unmarshal(data []byte) (Value, error) {
	var node map[string]json.RawMessage
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if len(node) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one tag, got %d", ErrInvalidEncoding, len(node))
	}
	for tag, raw := range node {
		return decodeTag(tag, raw)
	}
	return nil, ErrInvalidEncoding
}

func decodeTag(tag string, raw json.RawMessage) (Value, error) {
	switch tag {
	case tagNull:
		return Null{}, nil
	case tagString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: string: %v", ErrInvalidEncoding, err)
		}
		return String(s), nil
	case tagDouble:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%w: double: %v", ErrInvalidEncoding, err)
		}
		return Double(f), nil
	case tagBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("%w: bool: %v", ErrInvalidEncoding, err)
		}
		return Bool(b), nil
	case tagInteger:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: integer: %v", ErrInvalidEncoding, err)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: integer: %v", ErrInvalidEncoding, err)
		}
		return Integer(n), nil
	case tagDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: date: %v", ErrInvalidEncoding, err)
		}
		d, err := ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
		}
		return d, nil
	case tagTimestamp:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidEncoding, err)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidEncoding, err)
		}
		return NewTimestamp(t), nil
	case tagList:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: list: %v", ErrInvalidEncoding, err)
		}
		list := make(List, len(items))
		for i, item := range items {
			v, err := Unmarshal(item)
			if err != nil {
				return nil, err
			}
			list[i] = v
		}
		return list, nil
	case tagStruct:
		return decodeFields(raw)
	}
	return nil, fmt.Errorf("%w: unknown tag %q", ErrInvalidEncoding, tag)
}

func decodeFields(raw json.RawMessage) (Struct, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: struct: %v", ErrInvalidEncoding, err)
	}
	s := make(Struct, len(fields))
	for k, item := range fields {
		v, err := Unmarshal(item)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		s[k] = v
	}
	return s, nil
}

// MarshalJSON encodes s as an object of tagged fields, so any Go struct that
// embeds a Struct persists with full fidelity.
func (s Struct) MarshalJSON() ([]byte, error) {
	return json.Marshal(taggedFields(s))
}

// UnmarshalJSON decodes an object of tagged fields.
func (s *Struct) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = Struct{}
		return nil
	}
	fields, err := decodeFields(data)
	if err != nil {
		return err
	}
	*s = fields
	return nil
}

// ToPlain converts v to the untyped JSON shape used on the wire: dates become
// "YYYY-MM-DD" strings and timestamps RFC 3339 strings.
func ToPlain(v Value) any {
	switch x := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(x)
	case Double:
		return float64(x)
	case Bool:
		return bool(x)
	case Integer:
		return int64(x)
	case Date:
		return x.String()
	case Timestamp:
		return x.Time().UTC().Format(time.RFC3339Nano)
	case List:
		items := make([]any, len(x))
		for i, e := range x {
			items[i] = ToPlain(e)
		}
		return items
	case Struct:
		return PlainMap(x)
	}
	return nil
}

// PlainMap converts every field of s with ToPlain.
func PlainMap(s Struct) map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[k] = ToPlain(v)
	}
	return out
}

// FromPlain converts decoded JSON (or YAML) into a Value. Integral
// json.Number and Go integer values become Integer; other numbers Double.
func FromPlain(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null{}
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Double(t)
	case float32:
		return Double(t)
	case int:
		return Integer(t)
	case int64:
		return Integer(t)
	case int32:
		return Integer(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return Integer(n)
		}
		f, _ := t.Float64()
		return Double(f)
	case time.Time:
		return NewTimestamp(t)
	case []any:
		list := make(List, len(t))
		for i, e := range t {
			list[i] = FromPlain(e)
		}
		return list
	case map[string]any:
		return FromPlainMap(t)
	}
	return String(fmt.Sprint(x))
}

// FromPlainMap converts every field of m with FromPlain.
func FromPlainMap(m map[string]any) Struct {
	s := make(Struct, len(m))
	for k, v := range m {
		s[k] = FromPlain(v)
	}
	return s
}

// ParseJSON decodes a plain JSON document into a Value, keeping integers
// exact.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return FromPlain(x), nil
}
