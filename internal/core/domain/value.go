package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind identifies what a scalar Value holds.
type Kind uint8

const (
	// KindAbsent marks a key that holds no scalar.
	KindAbsent Kind = iota
	// KindString is a string scalar.
	KindString
	// KindInt is a 64-bit integer scalar.
	KindInt
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	default:
		return "absent"
	}
}

// Value is a scalar entry: absent, a string, or an integer.
//
// The zero Value is absent. A stored empty string is KindString and never
// compares equal to Absent().
type Value struct {
	kind Kind
	str  string
	num  int64
}

// Absent returns the absent value.
func Absent() Value {
	return Value{}
}

// String returns a string value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Int returns an integer value.
func Int(n int64) Value {
	return Value{kind: KindInt, num: n}
}

// Kind returns the value kind.
func (v Value) Kind() Kind {
	return v.kind
}

// IsAbsent reports whether v is the absent value.
func (v Value) IsAbsent() bool {
	return v.kind == KindAbsent
}

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Int64 returns the integer payload and whether v is an integer.
func (v Value) Int64() (int64, bool) {
	return v.num, v.kind == KindInt
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindInt:
		return v.num == o.num
	default:
		return true
	}
}

// String renders the value for logs and CLI output.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	default:
		return "(absent)"
	}
}

// MarshalJSON encodes absent as null, strings as JSON strings and integers
// as JSON numbers.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindInt:
		return []byte(strconv.FormatInt(v.num, 10)), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes null, a JSON string, or an integral JSON number.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Absent()
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ErrInvalidValue.WithCause(err)
		}
		*v = String(s)
		return nil
	}

	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return ErrInvalidValue.WithDetails("expected string or integer, got " + string(data))
	}
	*v = Int(n)
	return nil
}
