package query

import (
	"math"
	"testing"

	"github.com/asaidimu/go-folio/core/schema"
	"github.com/stretchr/testify/assert"
)

func rec(id string, data schema.Document) schema.Record {
	return schema.Record{ID: id, Data: data}
}

func TestCompute(t *testing.T) {
	records := []schema.Record{
		rec("1", schema.Document{"amount": 10.0, "category": "Food"}),
		rec("2", schema.Document{"amount": "30", "category": "Transport"}),
		rec("3", schema.Document{"category": "Food"}),
		rec("4", schema.Document{"amount": "n/a", "category": "Food"}),
		rec("5", schema.Document{"amount": -4.0, "category": "Food"}),
	}

	tests := []struct {
		name   string
		metric schema.Metric
		want   float64
	}{
		{"count ignores the field", schema.Metric{Op: schema.MetricOpCount, FieldID: "amount"}, 5},
		{"sum skips missing and non-numeric", schema.Metric{Op: schema.MetricOpSum, FieldID: "amount"}, 36},
		{"avg divides by numeric values", schema.Metric{Op: schema.MetricOpAvg, FieldID: "amount"}, 12},
		{"min", schema.Metric{Op: schema.MetricOpMin, FieldID: "amount"}, -4},
		{"max", schema.Metric{Op: schema.MetricOpMax, FieldID: "amount"}, 30},
		{"metric filters apply first", schema.Metric{
			Op: schema.MetricOpSum, FieldID: "amount",
			Filters: []schema.Filter{{FieldID: "category", Op: schema.FilterOpEq, Value: "Food"}},
		}, 6},
		{"filtered count", schema.Metric{
			Op:      schema.MetricOpCount,
			Filters: []schema.Filter{{FieldID: "category", Op: schema.FilterOpEq, Value: "Food"}},
		}, 4},
		{"unknown op", schema.Metric{Op: "median", FieldID: "amount"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(records, tt.metric))
		})
	}
}

func TestCompute_Degenerate(t *testing.T) {
	for _, op := range []schema.MetricOp{schema.MetricOpSum, schema.MetricOpAvg, schema.MetricOpMin, schema.MetricOpMax} {
		t.Run(string(op), func(t *testing.T) {
			got := Compute(nil, schema.Metric{Op: op, FieldID: "amount"})
			assert.Equal(t, 0.0, got)
			assert.False(t, math.IsNaN(got))

			noNumbers := []schema.Record{rec("1", schema.Document{"amount": "x"}), rec("2", schema.Document{})}
			assert.Equal(t, 0.0, Compute(noNumbers, schema.Metric{Op: op, FieldID: "amount"}))
		})
	}
	assert.Equal(t, 0.0, Compute(nil, schema.Metric{Op: schema.MetricOpCount}))
}

func TestCompute_Overflow(t *testing.T) {
	records := []schema.Record{
		rec("1", schema.Document{"n": math.MaxFloat64}),
		rec("2", schema.Document{"n": math.MaxFloat64}),
	}
	got := Compute(records, schema.Metric{Op: schema.MetricOpSum, FieldID: "n"})
	assert.Equal(t, 0.0, got)
	assert.Equal(t, math.MaxFloat64, Compute(records, schema.Metric{Op: schema.MetricOpMax, FieldID: "n"}))
}
