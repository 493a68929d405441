package query

import (
	"strings"

	"github.com/asaidimu/go-folio/core/schema"
)

// Matches reports whether a record's data satisfies the filter. An unknown
// operator never matches.
func Matches(data schema.Document, f schema.Filter) bool {
	value, present := data[f.FieldID]
	if schema.IsMissing(value) {
		present = false
	}

	switch f.Op {
	case schema.FilterOpEq:
		return present && looseEqual(value, f.Value)
	case schema.FilterOpNeq:
		return !(present && looseEqual(value, f.Value))
	case schema.FilterOpIn:
		if !present {
			return false
		}
		s := ToString(value)
		for _, candidate := range candidates(f.Value) {
			if ToString(candidate) == s {
				return true
			}
		}
		return false
	case schema.FilterOpGte, schema.FilterOpLte:
		if !present {
			return false
		}
		n, ok := ToFloat64(value)
		if !ok {
			return false
		}
		bound, ok := ToFloat64(f.Value)
		if !ok {
			return false
		}
		if f.Op == schema.FilterOpGte {
			return n >= bound
		}
		return n <= bound
	case schema.FilterOpContains:
		return strings.Contains(strings.ToLower(ToString(value)), strings.ToLower(ToString(f.Value)))
	default:
		return false
	}
}

// ApplyAll returns the records matching every filter, in their original
// order. The input slice is never modified.
func ApplyAll(records []schema.Record, filters []schema.Filter) []schema.Record {
	if len(filters) == 0 {
		return records
	}
	out := make([]schema.Record, 0, len(records))
	for _, r := range records {
		if matchesAll(r.Data, filters) {
			out = append(out, r)
		}
	}
	return out
}

func matchesAll(data schema.Document, filters []schema.Filter) bool {
	for _, f := range filters {
		if !Matches(data, f) {
			return false
		}
	}
	return true
}

// looseEqual compares booleans by truthiness and everything else by canonical
// string, so 5 equals "5".
func looseEqual(a, b any) bool {
	_, aBool := a.(bool)
	_, bBool := b.(bool)
	if aBool || bBool {
		return ToBool(a) == ToBool(b)
	}
	return ToString(a) == ToString(b)
}

// candidates flattens the value of an in filter into a list.
func candidates(v any) []any {
	switch list := v.(type) {
	case []any:
		return list
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	case []float64:
		out := make([]any, len(list))
		for i, n := range list {
			out[i] = n
		}
		return out
	case nil:
		return nil
	default:
		return []any{v}
	}
}
