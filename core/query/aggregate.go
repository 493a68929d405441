package query

import (
	"github.com/asaidimu/go-folio/core/schema"
)

// Compute evaluates a metric over records. Metric-local filters narrow the
// set first. Ops other than count read only values that parse as numbers;
// with none left, or with an unknown op, the result is 0. The result is
// always finite.
func Compute(records []schema.Record, m schema.Metric) float64 {
	records = ApplyAll(records, m.Filters)

	if m.Op == schema.MetricOpCount {
		return float64(len(records))
	}

	values := numericValues(records, m.FieldID)
	if len(values) == 0 {
		return 0
	}

	switch m.Op {
	case schema.MetricOpSum:
		return finite(sum(values))
	case schema.MetricOpAvg:
		return finite(sum(values) / float64(len(values)))
	case schema.MetricOpMin:
		lowest := values[0]
		for _, v := range values[1:] {
			if v < lowest {
				lowest = v
			}
		}
		return lowest
	case schema.MetricOpMax:
		highest := values[0]
		for _, v := range values[1:] {
			if v > highest {
				highest = v
			}
		}
		return highest
	default:
		return 0
	}
}

func numericValues(records []schema.Record, fieldID string) []float64 {
	values := make([]float64, 0, len(records))
	for _, r := range records {
		if n, ok := ToFloat64(r.Data[fieldID]); ok {
			values = append(values, n)
		}
	}
	return values
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}
