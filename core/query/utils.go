// Package query is the analytics runtime: time-range resolution, filter
// evaluation, metric aggregation and grouping over schema-defined records.
// Every exported function is pure and safe for concurrent use.
package query

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/asaidimu/go-folio/core/schema"
)

// EmptyKey is the group key of records without a value for the grouped field.
const EmptyKey = "(empty)"

// ToFloat64 converts a number or numeric string to a finite float64.
func ToFloat64(v any) (float64, bool) {
	return schema.CoerceNumber(v)
}

// ToString renders a scalar in its canonical string form: numbers without
// trailing zeros, booleans as "true"/"false", nil as "".
func ToString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// ToBool applies the loose boolean reading used when an equality filter
// involves a boolean. nil, false, "" and the exact string "false" read as
// false, as does a number equal to 0. Every other value reads as true,
// including the strings "0" and "no". An eq filter with value true therefore
// does not match a stored "false".
func ToBool(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		switch val {
		case "", "false":
			return false
		}
		return true
	}
	if f, ok := ToFloat64(v); ok {
		return f != 0
	}
	return true
}

// finite collapses NaN and infinities to 0.
func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
