// Package models defines core data structures for items, chunks, document results and sections.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ValueKind identifies which scalar a Value holds.
type ValueKind uint8

const (
	KindString ValueKind = iota + 1
	KindNumber
	KindBool
)

// Value is a scalar metadata value: a string, a number or a bool.
// The zero Value is invalid and never equal to anything.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Int returns a numeric Value holding n.
func Int(n int) Value { return Value{kind: KindNumber, num: float64(n)} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the kind of the value (0 for the zero Value).
func (v Value) Kind() ValueKind { return v.kind }

// Str returns the string and whether v is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Num returns the number and whether v is a number.
func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

// Boolean returns the bool and whether v is a bool.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// Equal reports whether both values have the same kind and the same scalar.
// Values of different kinds are never equal ("1" != 1).
func (v Value) Equal(o Value) bool {
	if v.kind == 0 || v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	default:
		return v.b == o.b
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "<invalid>"
	}
}

// MarshalJSON encodes the value as a bare JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, fmt.Errorf("metadata number %v is not representable in JSON", v.num)
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return nil, fmt.Errorf("cannot marshal invalid metadata value")
	}
}

// UnmarshalJSON decodes a JSON string, number or bool. Null, arrays and objects are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty metadata value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case 'n', '[', '{':
		return fmt.Errorf("metadata values must be scalars, got %s", data)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = Number(n)
	}
	return nil
}

// Metadata is a bag of scalar values keyed by name.
type Metadata map[string]Value

// Str returns the string stored under key, or "" when missing or not a string.
func (m Metadata) Str(key string) string {
	s, _ := m[key].Str()
	return s
}

// Int returns the number stored under key truncated to int, and whether it was a number.
func (m Metadata) Int(key string) (int, bool) {
	n, ok := m[key].Num()
	return int(n), ok
}

// Matches reports whether every filter entry is present in m with an equal value.
func (m Metadata) Matches(filter Metadata) bool {
	for k, want := range filter {
		got, ok := m[k]
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy of m (values are immutable).
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MetadataFromMap converts decoded JSON-like values into Metadata.
// Ints and floats become numbers; unsupported types return an error.
func MetadataFromMap(in map[string]interface{}) (Metadata, error) {
	if in == nil {
		return nil, nil
	}
	out := make(Metadata, len(in))
	for k, raw := range in {
		switch x := raw.(type) {
		case string:
			out[k] = String(x)
		case bool:
			out[k] = Bool(x)
		case float64:
			out[k] = Number(x)
		case float32:
			out[k] = Number(float64(x))
		case int:
			out[k] = Int(x)
		case int64:
			out[k] = Number(float64(x))
		case json.Number:
			n, err := x.Float64()
			if err != nil {
				return nil, fmt.Errorf("metadata %q: %w", k, err)
			}
			out[k] = Number(n)
		default:
			return nil, fmt.Errorf("metadata %q: unsupported type %T", k, raw)
		}
	}
	return out, nil
}
