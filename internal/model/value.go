package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface for event payload values.
// Only String, Uint, Bool and Object implement it. Floats and null are
// not representable, which keeps payload hashing deterministic.
type Value interface {
	value() // Sealed
}

// String is a string payload value.
type String string

func (String) value() {}

// Uint is an unsigned integer payload value (amounts, timestamps).
type Uint uint64

func (Uint) value() {}

// Bool is a boolean payload value.
type Bool bool

func (Bool) value() {}

// Object maps string keys to payload values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) value() {}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's default string ordering compares UTF-8 bytes, which differs for
// characters outside the BMP.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// String returns the string at key, or false if absent or of another type.
func (obj Object) String(key string) (string, bool) {
	v, ok := obj[key].(String)
	return string(v), ok
}

// Uint returns the unsigned integer at key, or false if absent or of another type.
func (obj Object) Uint(key string) (uint64, bool) {
	v, ok := obj[key].(Uint)
	return uint64(v), ok
}

// Bool returns the boolean at key, or false if absent or of another type.
func (obj Object) Bool(key string) (value bool, ok bool) {
	v, ok := obj[key].(Bool)
	return bool(v), ok
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// MarshalJSON implements json.Marshaler with sorted keys.
// NOTE: This is NOT canonical marshaling. Use MarshalCanonical for hashing.
func (obj Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := marshalValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case String:
		return json.Marshal(string(val))
	case Uint:
		return json.Marshal(uint64(val))
	case Bool:
		return json.Marshal(bool(val))
	case Object:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// UnmarshalJSON implements json.Unmarshaler for Object.
// Rejects null, arrays, negative numbers and floats.
func (obj *Object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("object payload is null")
	}

	out, err := convertObject(raw)
	if err != nil {
		return err
	}
	*obj = out
	return nil
}

func convertObject(raw map[string]any) (Object, error) {
	obj := make(Object, len(raw))
	for k, elem := range raw {
		v, err := convertValue(elem)
		if err != nil {
			return nil, fmt.Errorf("object[%q]: %w", k, err)
		}
		obj[k] = v
	}
	return obj, nil
}

func convertValue(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in payloads")
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE-") {
			return nil, fmt.Errorf("only unsigned integers are allowed: %s", s)
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("number out of uint64 range: %s", s)
		}
		return Uint(n), nil
	case map[string]any:
		return convertObject(val)
	default:
		return nil, fmt.Errorf("unsupported payload type: %T", v)
	}
}
