package logstore

import (
	"strings"
)

// Comparator is one of the fixed comparison tokens a Condition may use.
type Comparator string

const (
	Equal          Comparator = "="
	NotEqual       Comparator = "!="
	GreaterThan    Comparator = ">"
	LessThan       Comparator = "<"
	GreaterOrEqual Comparator = ">="
	LessOrEqual    Comparator = "<="
	StartsWith     Comparator = "startswith"
	EndsWith       Comparator = "endswith"
	Contains       Comparator = "contains"
)

// Comparators lists the whitelist in display order.
var Comparators = []Comparator{
	Equal, NotEqual, GreaterThan, LessThan, GreaterOrEqual, LessOrEqual, StartsWith, EndsWith, Contains,
}

// IsValid reports whether c is in the comparator whitelist.
// Anything else must never reach a storage query.
func (c Comparator) IsValid() bool {
	switch c {
	case Equal, NotEqual, GreaterThan, LessThan, GreaterOrEqual, LessOrEqual, StartsWith, EndsWith, Contains:
		return true
	default:
		return false
	}
}

// IsOrdering reports whether c compares numerically.
func (c Comparator) IsOrdering() bool {
	switch c {
	case GreaterThan, LessThan, GreaterOrEqual, LessOrEqual:
		return true
	default:
		return false
	}
}

// LogicalOperator tags a Condition as member of the AND-group or the OR-group.
type LogicalOperator string

const (
	And LogicalOperator = "AND"
	Or  LogicalOperator = "OR"
)

// Condition tests one payload field.
type Condition struct {
	Key        string
	Comparator Comparator
	Value      string
	Operator   LogicalOperator
}

// Cond creates an AND-joined condition.
func Cond(key string, comparator Comparator, value string) Condition {
	return Condition{Key: key, Comparator: comparator, Value: value, Operator: And}
}

// OrCond creates an OR-joined condition.
func OrCond(key string, comparator Comparator, value string) Condition {
	return Condition{Key: key, Comparator: comparator, Value: value, Operator: Or}
}

// IsOr reports whether c belongs to the OR-group. Every other operator, including the zero value, means AND.
func (c Condition) IsOr() bool {
	return c.Operator == Or
}

func (c Condition) operator() LogicalOperator {
	if c.IsOr() {
		return Or
	}

	return And
}

// Equal compares two conditions field by field.
func (c Condition) Equal(other Condition) bool {
	return c.Key == other.Key &&
		c.Comparator == other.Comparator &&
		c.Value == other.Value &&
		c.operator() == other.operator()
}

// Evaluate tests c against a payload. A missing key, an unknown comparator or a
// non-numeric operand of an ordering comparator all evaluate to false.
func (c Condition) Evaluate(payload Payload) bool {
	actual, ok := payload.Get(c.Key)
	if !ok {
		return false
	}

	if c.Comparator.IsOrdering() {
		return c.compareNumbers(actual)
	}

	actualStr := actual.String()

	switch c.Comparator {
	case Equal:
		return actualStr == c.Value
	case NotEqual:
		return actualStr != c.Value
	case StartsWith:
		return strings.HasPrefix(actualStr, c.Value)
	case EndsWith:
		return strings.HasSuffix(actualStr, c.Value)
	case Contains:
		return strings.Contains(actualStr, c.Value)
	default:
		return false
	}
}

func (c Condition) compareNumbers(actual Value) bool {
	left, ok := actual.Float64()
	if !ok {
		return false
	}

	right, ok := ParseNumber(c.Value)
	if !ok {
		return false
	}

	switch c.Comparator {
	case GreaterThan:
		return left > right
	case LessThan:
		return left < right
	case GreaterOrEqual:
		return left >= right
	case LessOrEqual:
		return left <= right
	default:
		return false
	}
}

// PartitionConditions splits conditions into the AND-group and the OR-group, keeping their order.
func PartitionConditions(conditions []Condition) (andGroup, orGroup []Condition) {
	for _, c := range conditions {
		if c.IsOr() {
			orGroup = append(orGroup, c)
		} else {
			andGroup = append(andGroup, c)
		}
	}

	return andGroup, orGroup
}

// MatchConditions combines the groups as (and1 AND and2 ...) AND (or1 OR or2 ...).
// An empty group does not take part, so an empty list matches everything.
// Conditions with an unknown comparator are ignored, the same way the SQL translation drops them.
func MatchConditions(payload Payload, conditions []Condition) bool {
	andGroup, orGroup := PartitionConditions(validConditions(conditions))

	for _, c := range andGroup {
		if !c.Evaluate(payload) {
			return false
		}
	}

	if len(orGroup) == 0 {
		return true
	}

	for _, c := range orGroup {
		if c.Evaluate(payload) {
			return true
		}
	}

	return false
}

func validConditions(conditions []Condition) []Condition {
	valid := conditions[:0:0]
	for _, c := range conditions {
		if c.Comparator.IsValid() {
			valid = append(valid, c)
		}
	}

	return valid
}
