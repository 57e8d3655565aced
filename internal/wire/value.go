// Package wire implements the JSON-RPC 2.0 frame format used to talk to
// MCP child processes over newline-delimited stdio.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Value is a recursive JSON variant used to carry RPC params and results
// without committing to a Go struct schema. It decodes any of: null, bool,
// number (float64), string, []Value, or map[string]Value.
type Value struct {
	v any
}

// NewValue wraps a decoded any (as produced by encoding/json) into a Value.
// It is used internally by UnmarshalJSON and by adapters building literal
// values by hand.
func NewValue(v any) Value {
	return Value{v: normalize(v)}
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, val := range t {
			m[k] = NewValue(val)
		}
		return m
	case []any:
		s := make([]Value, len(t))
		for i, val := range t {
			s[i] = NewValue(val)
		}
		return s
	default:
		return v
	}
}

// Raw returns the underlying decoded value: nil, bool, float64, string,
// []Value, or map[string]Value.
func (val Value) Raw() any { return val.v }

// IsNull reports whether the value is JSON null or was never set.
func (val Value) IsNull() bool { return val.v == nil }

// String returns the string form if the value is a JSON string.
func (val Value) String() (string, bool) {
	s, ok := val.v.(string)
	return s, ok
}

// Object returns the map form if the value is a JSON object.
func (val Value) Object() (map[string]Value, bool) {
	m, ok := val.v.(map[string]Value)
	return m, ok
}

// Array returns the slice form if the value is a JSON array.
func (val Value) Array() ([]Value, bool) {
	a, ok := val.v.([]Value)
	return a, ok
}

// Float64 returns the numeric form if the value is a JSON number.
func (val Value) Float64() (float64, bool) {
	f, ok := val.v.(float64)
	return f, ok
}

// Bool returns the boolean form if the value is a JSON bool.
func (val Value) Bool() (bool, bool) {
	b, ok := val.v.(bool)
	return b, ok
}

// Get returns the value at key if this is an object, else the zero Value.
func (val Value) Get(key string) Value {
	m, ok := val.Object()
	if !ok {
		return Value{}
	}
	return m[key]
}

// MarshalJSON implements json.Marshaler.
func (val Value) MarshalJSON() ([]byte, error) {
	switch t := val.v.(type) {
	case map[string]Value:
		return json.Marshal(t)
	case []Value:
		return json.Marshal(t)
	default:
		return json.Marshal(t)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (val *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("wire: decode value: %w", err)
	}
	val.v = normalize(convertNumbers(raw))
	return nil
}

// convertNumbers turns json.Number into float64 throughout a decoded tree.
// Integers and floating-point numbers are not kept apart: every JSON number
// becomes a float64, so integers beyond 2^53 lose precision.
func convertNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0.0
		}
		return f
	case map[string]any:
		for k, val := range t {
			t[k] = convertNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = convertNumbers(val)
		}
		return t
	default:
		return v
	}
}

// StringArguments builds a Value object from a flat string-keyed map of
// Values, convenient for constructing tools/call arguments.
func StringArguments(m map[string]Value) Value {
	return Value{v: m}
}

// StringValue wraps a plain string as a Value.
func StringValue(s string) Value { return Value{v: s} }
