package query

import (
	"testing"
	"time"

	"github.com/asaidimu/go-folio/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(schema.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestResolve(t *testing.T) {
	now := time.Date(2026, time.January, 15, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		r     schema.TimeRange
		start string
		end   string
	}{
		{"this month", schema.TimeRange{Preset: schema.PresetThisMonth}, "2026-01-01", "2026-02-01"},
		{"last month crosses the year", schema.TimeRange{Preset: schema.PresetLastMonth}, "2025-12-01", "2026-01-01"},
		{"this year", schema.TimeRange{Preset: schema.PresetThisYear}, "2026-01-01", "2027-01-01"},
		{"explicit range is inclusive of to", schema.TimeRange{From: "2026-01-01", To: "2026-01-03"}, "2026-01-01", "2026-01-04"},
		{"explicit range across month end", schema.TimeRange{From: "2026-02-20", To: "2026-02-28"}, "2026-02-20", "2026-03-01"},
		{"preset wins over bounds", schema.TimeRange{Preset: schema.PresetThisMonth, From: "2020-01-01", To: "2020-01-02"}, "2026-01-01", "2026-02-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.r, now)
			require.True(t, ok)
			assert.Equal(t, date(tt.start), got.Start)
			assert.Equal(t, date(tt.end), got.End)
		})
	}

	t.Run("all time spans every date", func(t *testing.T) {
		got, ok := Resolve(schema.TimeRange{Preset: schema.PresetAllTime}, now)
		require.True(t, ok)
		assert.True(t, got.Unbounded())
		assert.True(t, got.Contains(date("0001-01-01")))
		assert.True(t, got.Contains(date("9999-12-31")))
	})

	t.Run("unparseable bounds resolve to nothing", func(t *testing.T) {
		for _, r := range []schema.TimeRange{
			{From: "2026-01-01"},
			{From: "yesterday", To: "2026-01-03"},
			{From: "2026-01-01", To: "2026-02-30"},
			{},
			{Preset: "next_week"},
		} {
			_, ok := Resolve(r, now)
			assert.False(t, ok, "range %+v", r)
		}
	})

	t.Run("only the calendar date of now matters", func(t *testing.T) {
		loc := time.FixedZone("UTC+14", 14*60*60)
		late := time.Date(2026, time.March, 1, 0, 30, 0, 0, loc)
		got, ok := Resolve(schema.TimeRange{Preset: schema.PresetThisMonth}, late)
		require.True(t, ok)
		assert.Equal(t, date("2026-03-01"), got.Start)
		assert.Equal(t, date("2026-04-01"), got.End)
	})
}

func TestInterval_Contains(t *testing.T) {
	now := date("2026-01-15")
	month, _ := Resolve(schema.TimeRange{Preset: schema.PresetThisMonth}, now)
	assert.True(t, month.Contains(date("2026-01-01")))
	assert.True(t, month.Contains(date("2026-01-31")))
	assert.False(t, month.Contains(date("2026-02-01")))
	assert.False(t, month.Contains(date("2025-12-31")))
	assert.True(t, month.Contains(time.Date(2026, time.January, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, month.Unbounded())
	assert.Equal(t, 31, month.Days())

	explicit, _ := Resolve(schema.TimeRange{From: "2026-01-01", To: "2026-01-03"}, now)
	assert.True(t, explicit.Contains(date("2026-01-03")))
	assert.False(t, explicit.Contains(date("2026-01-04")))
}
