package types

import "reflect"

// Filter selects records by field equality. Multiple keys are ANDed. A scalar
// filter value matches a list-valued field when the list contains it. An empty
// filter matches every record.
type Filter map[string]any

// Match reports whether the record satisfies every condition in the filter.
// Filter values are expected in canonical form (see NormalizeValue).
func (f Filter) Match(r Record) bool {
	for key, want := range f {
		got, ok := r[key]
		if !ok {
			if want == nil {
				continue
			}
			return false
		}
		if valuesEqual(got, want) {
			continue
		}
		if list, ok := got.([]any); ok && !isList(want) && listContains(list, want) {
			continue
		}
		return false
	}
	return true
}

func isList(v any) bool {
	_, ok := v.([]any)
	return ok
}

func listContains(list []any, want any) bool {
	for _, item := range list {
		if valuesEqual(item, want) {
			return true
		}
	}
	return false
}

// valuesEqual compares canonical values, treating integral float64 and int64
// as equal.
func valuesEqual(a, b any) bool {
	if ai, ok := AsInt(a); ok {
		if bi, ok := AsInt(b); ok {
			return ai == bi
		}
	}
	return reflect.DeepEqual(a, b)
}
