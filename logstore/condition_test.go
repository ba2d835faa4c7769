package logstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xef5000/UltimateLogger/logstore"
)

func chatPayload() logstore.Payload {
	return logstore.NewPayload(
		logstore.StringField("player_name", "Steve"),
		logstore.IntField("level", 12),
		logstore.StringField("world", "world_nether"),
		logstore.BoolField("op", true),
		logstore.StringField("message", "you badword you"),
		logstore.StringField("coins", "250"),
	)
}

//nolint:funlen
func Test_Condition_Evaluate(t *testing.T) {
	tests := []struct {
		name      string
		condition logstore.Condition
		expected  bool
	}{
		{name: "missing key is false", condition: logstore.Cond("missing", logstore.Equal, "x"), expected: false},
		{name: "missing key is false for not equal", condition: logstore.Cond("missing", logstore.NotEqual, "x"), expected: false},
		{name: "string equal", condition: logstore.Cond("player_name", logstore.Equal, "Steve"), expected: true},
		{name: "string equal is case sensitive", condition: logstore.Cond("player_name", logstore.Equal, "steve"), expected: false},
		{name: "string not equal", condition: logstore.Cond("player_name", logstore.NotEqual, "Alex"), expected: true},
		{name: "number compared as string", condition: logstore.Cond("level", logstore.Equal, "12"), expected: true},
		{name: "bool compared as string", condition: logstore.Cond("op", logstore.Equal, "true"), expected: true},
		{name: "greater than number", condition: logstore.Cond("level", logstore.GreaterThan, "10"), expected: true},
		{name: "less than number", condition: logstore.Cond("level", logstore.LessThan, "10"), expected: false},
		{name: "greater or equal boundary", condition: logstore.Cond("level", logstore.GreaterOrEqual, "12"), expected: true},
		{name: "less or equal boundary", condition: logstore.Cond("level", logstore.LessOrEqual, "12.0"), expected: true},
		{name: "numeric string operand", condition: logstore.Cond("coins", logstore.GreaterThan, "99.5"), expected: true},
		{name: "non numeric condition value", condition: logstore.Cond("level", logstore.GreaterThan, "ten"), expected: false},
		{name: "non numeric payload value", condition: logstore.Cond("player_name", logstore.LessThan, "10"), expected: false},
		{name: "bool payload is not a number", condition: logstore.Cond("op", logstore.GreaterThan, "0"), expected: false},
		{name: "starts with", condition: logstore.Cond("world", logstore.StartsWith, "world_"), expected: true},
		{name: "ends with", condition: logstore.Cond("world", logstore.EndsWith, "_end"), expected: false},
		{name: "contains", condition: logstore.Cond("message", logstore.Contains, "badword"), expected: true},
		{name: "unknown comparator is false", condition: logstore.Cond("player_name", logstore.Comparator("LIKE"), "Steve"), expected: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.condition.Evaluate(chatPayload()))
		})
	}
}

func Test_MatchConditions_AndOrPartition(t *testing.T) {
	tests := []struct {
		name       string
		payload    logstore.Payload
		conditions []logstore.Condition
		expected   bool
	}{
		{
			name:       "empty condition list matches everything",
			payload:    logstore.NewPayload(),
			conditions: nil,
			expected:   true,
		},
		{
			name:    "mixed groups with a value equal to neither",
			payload: logstore.NewPayload(logstore.StringField("f", "baz")),
			conditions: []logstore.Condition{
				logstore.Cond("f", logstore.Equal, "foo"),
				logstore.OrCond("f", logstore.Equal, "bar"),
			},
			expected: false,
		},
		{
			name:    "mixed groups with OR satisfied but AND failing",
			payload: logstore.NewPayload(logstore.StringField("f", "bar")),
			conditions: []logstore.Condition{
				logstore.Cond("f", logstore.Equal, "foo"),
				logstore.OrCond("f", logstore.Equal, "bar"),
			},
			expected: false,
		},
		{
			name:    "only OR group decides alone",
			payload: logstore.NewPayload(logstore.StringField("f", "bar")),
			conditions: []logstore.Condition{
				logstore.OrCond("f", logstore.Equal, "foo"),
				logstore.OrCond("f", logstore.Equal, "bar"),
			},
			expected: true,
		},
		{
			name:    "only AND group requires all",
			payload: logstore.NewPayload(logstore.StringField("a", "1"), logstore.StringField("b", "2")),
			conditions: []logstore.Condition{
				logstore.Cond("a", logstore.Equal, "1"),
				logstore.Cond("b", logstore.Equal, "3"),
			},
			expected: false,
		},
		{
			name:    "record satisfying AND but failing OR",
			payload: logstore.NewPayload(logstore.StringField("a", "foo"), logstore.StringField("b", "baz")),
			conditions: []logstore.Condition{
				logstore.Cond("a", logstore.Equal, "foo"),
				logstore.OrCond("b", logstore.Equal, "bar"),
				logstore.OrCond("b", logstore.Equal, "qux"),
			},
			expected: false,
		},
		{
			name:    "record satisfying AND and one OR",
			payload: logstore.NewPayload(logstore.StringField("a", "foo"), logstore.StringField("b", "qux")),
			conditions: []logstore.Condition{
				logstore.Cond("a", logstore.Equal, "foo"),
				logstore.OrCond("b", logstore.Equal, "bar"),
				logstore.OrCond("b", logstore.Equal, "qux"),
			},
			expected: true,
		},
		{
			name:    "unknown comparator is ignored",
			payload: logstore.NewPayload(logstore.StringField("a", "foo")),
			conditions: []logstore.Condition{
				logstore.Cond("a", logstore.Comparator("LIKE"), "bar"),
				logstore.Cond("a", logstore.Equal, "foo"),
			},
			expected: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, logstore.MatchConditions(tc.payload, tc.conditions))
		})
	}
}

func Test_PartitionConditions_KeepsOrder(t *testing.T) {
	// arrange
	conditions := []logstore.Condition{
		logstore.OrCond("o1", logstore.Equal, "x"),
		logstore.Cond("a1", logstore.Equal, "x"),
		{Key: "a2", Comparator: logstore.Equal, Value: "x"},
		logstore.OrCond("o2", logstore.Equal, "x"),
	}

	// act
	andGroup, orGroup := logstore.PartitionConditions(conditions)

	// assert
	assert.Equal(t, []string{"a1", "a2"}, []string{andGroup[0].Key, andGroup[1].Key})
	assert.Equal(t, []string{"o1", "o2"}, []string{orGroup[0].Key, orGroup[1].Key})
}

func Test_Comparator_Whitelist(t *testing.T) {
	for _, c := range logstore.Comparators {
		assert.True(t, c.IsValid(), string(c))
	}

	assert.False(t, logstore.Comparator("; DROP TABLE ultimate_logs").IsValid())
	assert.False(t, logstore.Comparator("LIKE").IsValid())
	assert.False(t, logstore.Comparator("").IsValid())
}

func Test_ParseNumber_Accepts_Only_Decimal_Notation(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		ok       bool
	}{
		{input: "42", expected: 42, ok: true},
		{input: " -3.5 ", expected: -3.5, ok: true},
		{input: ".5", expected: 0.5, ok: true},
		{input: "1e3", expected: 1000, ok: true},
		{input: "+2E-1", expected: 0.2, ok: true},
		{input: "", ok: false},
		{input: "abc", ok: false},
		{input: "0x10", ok: false},
		{input: "1_000", ok: false},
		{input: "Inf", ok: false},
		{input: "NaN", ok: false},
		{input: "1-2", ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			// act
			actual, ok := logstore.ParseNumber(tc.input)

			// assert
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, tc.expected, actual, 1e-9)
			}
		})
	}
}
