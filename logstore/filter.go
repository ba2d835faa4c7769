package logstore

// Filter selects records by an optional type and a list of conditions.
// It is used by page queries, bulk deletes and notification gating.
type Filter struct {
	recordType string
	conditions []Condition
}

// NewFilter creates a Filter. An empty recordType matches every type.
func NewFilter(recordType string, conditions ...Condition) Filter {
	f := Filter{recordType: recordType}
	if len(conditions) > 0 {
		f.conditions = append(make([]Condition, 0, len(conditions)), conditions...)
	}

	return f
}

// Type returns the record type the filter is restricted to, empty for any.
func (f Filter) Type() string {
	return f.recordType
}

// Conditions returns a copy of the filter's conditions in order.
func (f Filter) Conditions() []Condition {
	if len(f.conditions) == 0 {
		return nil
	}

	out := make([]Condition, len(f.conditions))
	copy(out, f.conditions)

	return out
}

// IsEmpty reports whether the filter matches every record.
func (f Filter) IsEmpty() bool {
	return f.recordType == "" && len(f.conditions) == 0
}

// Matches reports whether r has the filter's type (if any) and satisfies its conditions.
func (f Filter) Matches(r Record) bool {
	if f.recordType != "" && r.Type != f.recordType {
		return false
	}

	return MatchConditions(r.Payload, f.conditions)
}

// Equal compares type and conditions, including order and operator tags.
func (f Filter) Equal(other Filter) bool {
	if f.recordType != other.recordType || len(f.conditions) != len(other.conditions) {
		return false
	}

	for i := range f.conditions {
		if !f.conditions[i].Equal(other.conditions[i]) {
			return false
		}
	}

	return true
}

// String returns the compact text encoding of the filter.
func (f Filter) String() string {
	return Serialize(f)
}

/***** Filter Builder *****/

// FilterBuilder assembles a Filter step by step.
type FilterBuilder struct {
	filter Filter
}

// BuildFilter starts a new, empty filter.
func BuildFilter() *FilterBuilder {
	return &FilterBuilder{}
}

// OfType restricts the filter to one record type.
func (b *FilterBuilder) OfType(recordType string) *FilterBuilder {
	b.filter.recordType = recordType
	return b
}

// Where adds an AND-joined condition.
func (b *FilterBuilder) Where(key string, comparator Comparator, value string) *FilterBuilder {
	b.filter.conditions = append(b.filter.conditions, Cond(key, comparator, value))
	return b
}

// OrWhere adds an OR-joined condition.
func (b *FilterBuilder) OrWhere(key string, comparator Comparator, value string) *FilterBuilder {
	b.filter.conditions = append(b.filter.conditions, OrCond(key, comparator, value))
	return b
}

// WithConditions appends already built conditions.
func (b *FilterBuilder) WithConditions(conditions ...Condition) *FilterBuilder {
	b.filter.conditions = append(b.filter.conditions, conditions...)
	return b
}

// Finalize returns the built Filter.
func (b *FilterBuilder) Finalize() Filter {
	return NewFilter(b.filter.recordType, b.filter.conditions...)
}
