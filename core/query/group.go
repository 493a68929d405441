package query

import (
	"sort"

	"github.com/asaidimu/go-folio/core/schema"
)

// GroupRow is one partition of a grouped metric.
type GroupRow struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	// Count is the raw partition size, unaffected by metric filters.
	Count int `json:"count"`
}

type partition struct {
	key     string
	records []schema.Record
}

// Partition splits records by the canonical value of a field, keeping keys in
// first-seen order. Every record lands in exactly one partition; records
// without a value share EmptyKey.
func Partition(records []schema.Record, fieldID string) ([]string, map[string][]schema.Record) {
	var keys []string
	parts := make(map[string][]schema.Record)
	for _, r := range records {
		key := EmptyKey
		if v := r.Data[fieldID]; !schema.IsMissing(v) {
			key = ToString(v)
		}
		if _, seen := parts[key]; !seen {
			keys = append(keys, key)
		}
		parts[key] = append(parts[key], r)
	}
	return keys, parts
}

// Group computes the metric for every partition of records by g.FieldID,
// sorts by value (descending unless g.Sort says asc, ties in first-seen
// order) and truncates to g.Limit when positive.
func Group(records []schema.Record, g schema.GroupBy, m schema.Metric) []GroupRow {
	keys, parts := Partition(records, g.FieldID)

	rows := make([]GroupRow, 0, len(keys))
	for _, key := range keys {
		members := parts[key]
		rows = append(rows, GroupRow{Key: key, Value: Compute(members, m), Count: len(members)})
	}

	asc := g.Sort != nil && g.Sort.Dir == schema.SortDirectionAsc
	sort.SliceStable(rows, func(i, j int) bool {
		if asc {
			return rows[i].Value < rows[j].Value
		}
		return rows[i].Value > rows[j].Value
	})

	if g.Limit > 0 && len(rows) > g.Limit {
		rows = rows[:g.Limit]
	}
	return rows
}
