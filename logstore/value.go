package logstore

import (
	"strconv"
	"strings"
)

// ValueKind tells which scalar a Value holds.
type ValueKind uint8

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
)

// Value is a closed scalar variant: string, number (float64) or bool.
// The zero Value is the empty string.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
}

func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

func NumberValue(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

func IntValue(n int64) Value {
	return Value{kind: KindNumber, num: float64(n)}
}

func BoolValue(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Kind returns the scalar kind of v.
func (v Value) Kind() ValueKind {
	return v.kind
}

// String renders v the way comparisons and displays see it.
// Integral numbers have no fraction ("5", not "5.0").
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.str
	}
}

// Float64 returns the numeric interpretation of v.
// Strings are parsed, bools never are numbers.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		return ParseNumber(v.str)
	default:
		return 0, false
	}
}

// Bool returns the boolean held by v and whether v is a bool.
func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Equal reports whether both values have the same kind and content.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}

	switch v.kind {
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.b == other.b
	default:
		return v.str == other.str
	}
}

// ParseNumber reads s as a decimal number, optionally signed and with an exponent.
// Surrounding whitespace is ignored. Hex, underscores, Inf and NaN are not numbers.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsFunc(s, isNotDecimalRune) {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}

	return f, true
}

func isNotDecimalRune(r rune) bool {
	return !strings.ContainsRune("0123456789.eE+-", r)
}
