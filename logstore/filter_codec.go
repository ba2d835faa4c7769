package logstore

import (
	"errors"
	"fmt"
	"strings"
)

const (
	andDelimiter       = ';'
	orDelimiter        = '&'
	conditionDelimiter = '|'
	escapeChar         = '\\'
)

// Serialize encodes a filter as <type>(<;|&>key|cmp|value)*.
//
// ';' introduces an AND-joined condition, '&' an OR-joined one. Backslash escapes
// ';', '&', '|' and '\' inside the type, keys, comparators and values.
func Serialize(f Filter) string {
	var sb strings.Builder

	sb.WriteString(escape(f.recordType))

	for _, c := range f.conditions {
		if c.IsOr() {
			sb.WriteByte(orDelimiter)
		} else {
			sb.WriteByte(andDelimiter)
		}

		sb.WriteString(escape(c.Key))
		sb.WriteByte(conditionDelimiter)
		sb.WriteString(escape(string(c.Comparator)))
		sb.WriteByte(conditionDelimiter)
		sb.WriteString(escape(c.Value))
	}

	return sb.String()
}

// Deserialize parses the output of Serialize. The empty string is the empty filter.
func Deserialize(serialized string) (Filter, error) {
	if serialized == "" {
		return Filter{}, nil
	}

	segments, delimiters, err := splitUnescaped(serialized, andDelimiter, orDelimiter)
	if err != nil {
		return Filter{}, err
	}

	filter := Filter{recordType: unescape(segments[0])}

	for i, segment := range segments[1:] {
		parts, _, splitErr := splitUnescaped(segment, conditionDelimiter)
		if splitErr != nil {
			return Filter{}, splitErr
		}

		if len(parts) != 3 {
			return Filter{}, errors.Join(
				ErrMalformedFilter,
				fmt.Errorf("condition %d: expected key|comparator|value, got %d parts", i+1, len(parts)),
			)
		}

		operator := And
		if delimiters[i] == orDelimiter {
			operator = Or
		}

		filter.conditions = append(filter.conditions, Condition{
			Key:        unescape(parts[0]),
			Comparator: Comparator(unescape(parts[1])),
			Value:      unescape(parts[2]),
			Operator:   operator,
		})
	}

	return filter, nil
}

// ParseConditions parses a bare condition list such as "level|>|10&world|=|nether",
// where the first condition is AND-joined.
func ParseConditions(encoded string) ([]Condition, error) {
	if encoded == "" {
		return nil, nil
	}

	filter, err := Deserialize(string(andDelimiter) + encoded)
	if err != nil {
		return nil, err
	}

	return filter.conditions, nil
}

// splitUnescaped splits s at every unescaped separator. The raw (still escaped) parts are
// returned together with the separator that preceded each part after the first.
func splitUnescaped(s string, separators ...byte) ([]string, []byte, error) {
	parts := make([]string, 0, 4)
	delimiters := make([]byte, 0, 4)
	start := 0

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if ch == escapeChar {
			if i+1 >= len(s) {
				return nil, nil, errors.Join(ErrMalformedFilter, errors.New("dangling escape character"))
			}
			i++
			continue
		}

		if isOneOf(ch, separators) {
			parts = append(parts, s[start:i])
			delimiters = append(delimiters, ch)
			start = i + 1
		}
	}

	parts = append(parts, s[start:])

	return parts, delimiters, nil
}

func isOneOf(ch byte, set []byte) bool {
	for _, candidate := range set {
		if ch == candidate {
			return true
		}
	}

	return false
}

func escape(s string) string {
	if !strings.ContainsAny(s, `;&|\`) {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s) + 4)

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case andDelimiter, orDelimiter, conditionDelimiter, escapeChar:
			sb.WriteByte(escapeChar)
		}
		sb.WriteByte(s[i])
	}

	return sb.String()
}

// unescape drops the backslash in front of every escaped byte.
// Callers only pass strings already validated by splitUnescaped.
func unescape(s string) string {
	if strings.IndexByte(s, escapeChar) < 0 {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] == escapeChar && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}

	return sb.String()
}
