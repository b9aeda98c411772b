package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// =============================================================================
// ValueKind
// =============================================================================

// ValueKind identifies which variant a Value holds.
type ValueKind int

// Value kinds. The set is closed: marshalled records never carry anything else.
const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBoolean
)

// String returns the string representation of the kind.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// =============================================================================
// Value
// =============================================================================

// Value is a scalar property value: a string, a number, a boolean or null.
// The zero Value is null.
//
// Numbers keep their exact decimal text so 64-bit counters survive a round
// trip through JSON without float rounding.
type Value struct {
	kind ValueKind
	text string // string payload or decimal number text
	b    bool
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBoolean, b: b} }

// Int returns a number value for a signed integer.
func Int(i int64) Value { return Value{kind: KindNumber, text: strconv.FormatInt(i, 10)} }

// Uint returns a number value for an unsigned integer.
func Uint(u uint64) Value { return Value{kind: KindNumber, text: strconv.FormatUint(u, 10)} }

// Float returns a number value for a float. NaN and infinities have no
// numeric JSON form and are returned as strings.
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return String(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return Value{kind: KindNumber, text: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Kind reports which variant v holds.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload and true if v is a string.
func (v Value) Str() (string, bool) {
	return v.text, v.kind == KindString
}

// Boolean returns the boolean payload and true if v is a boolean.
func (v Value) Boolean() (bool, bool) {
	return v.b, v.kind == KindBoolean
}

// Int64 returns the number as an int64. The second result is false if v is
// not a number or the number is not an integer that fits.
func (v Value) Int64() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	i, err := strconv.ParseInt(v.text, 10, 64)
	return i, err == nil
}

// Float64 returns the number as a float64 and true if v is a number.
func (v Value) Float64() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.text, 64)
	return f, err == nil
}

// Any returns the value as a plain Go value: nil, string, bool, int64,
// uint64 or float64.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.text
	case KindBoolean:
		return v.b
	case KindNumber:
		if i, err := strconv.ParseInt(v.text, 10, 64); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(v.text, 10, 64); err == nil {
			return u
		}
		f, _ := strconv.ParseFloat(v.text, 64)
		return f
	default:
		return nil
	}
}

// String renders the value for display. Null renders as "NULL".
func (v Value) String() string {
	switch v.kind {
	case KindString, KindNumber:
		return v.text
	case KindBoolean:
		return strconv.FormatBool(v.b)
	default:
		return "NULL"
	}
}

// Equal reports whether two values hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.text == o.text && v.b == o.b
}

// MarshalJSON encodes the value as the matching JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.text)
	case KindNumber:
		return []byte(v.text), nil
	case KindBoolean:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON scalar. Arrays and objects are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty JSON value")
	}
	switch data[0] {
	case 'n':
		*v = Null()
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case '[', '{':
		return fmt.Errorf("value must be a JSON scalar, got %s", data[:1])
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = Value{kind: KindNumber, text: n.String()}
	}
	return nil
}
