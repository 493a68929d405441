package query

import (
	"sort"
	"time"

	"github.com/asaidimu/go-folio/core/schema"
	"go.uber.org/zap"
)

// BucketSize is the width of a time bucket in a chart series.
type BucketSize string

const (
	BucketDay   BucketSize = "day"
	BucketMonth BucketSize = "month"
)

// maxDailyBuckets is the widest window, in days, still charted per day.
const maxDailyBuckets = 62

// MetricValue is a computed metric together with its display attributes.
type MetricValue struct {
	ID      string              `json:"id"`
	Label   string              `json:"label"`
	Format  schema.MetricFormat `json:"format,omitempty"`
	Value   float64             `json:"value"`
	Display string              `json:"display"`
}

// GroupResult is a grouped metric of a summary view.
type GroupResult struct {
	FieldID  string     `json:"fieldId"`
	Label    string     `json:"label,omitempty"`
	MetricID string     `json:"metricId"`
	Rows     []GroupRow `json:"rows"`
}

// SummaryResult is the rendered content of a summary view.
type SummaryResult struct {
	ViewID  string        `json:"viewId"`
	Window  *Interval     `json:"window,omitempty"`
	Total   int           `json:"total"`
	Metrics []MetricValue `json:"metrics"`
	Groups  []GroupResult `json:"groups,omitempty"`
}

// SeriesResult is one computed series of a chart view. Grouped series carry
// one point per group, others one point per time bucket.
type SeriesResult struct {
	MetricID string     `json:"metricId"`
	Label    string     `json:"label"`
	GroupBy  string     `json:"groupBy,omitempty"`
	Points   []GroupRow `json:"points"`
}

// ChartResult is the rendered content of a chart view.
type ChartResult struct {
	ViewID    string           `json:"viewId"`
	ChartType schema.ChartType `json:"chartType"`
	Window    *Interval        `json:"window,omitempty"`
	Bucket    BucketSize       `json:"bucket"`
	Series    []SeriesResult   `json:"series"`
}

// Analyzer runs the read path of summary and chart views. It holds no
// mutable state and can be shared between goroutines.
type Analyzer struct {
	logger *zap.Logger
}

// NewAnalyzer creates a new Analyzer. A nil logger disables logging.
func NewAnalyzer(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger}
}

// Window keeps the records whose time value falls inside the resolved range.
// The time value is the date stored in timeField, or the creation date when
// timeField is empty. An unresolvable or all-time range keeps every record.
func (a *Analyzer) Window(records []schema.Record, timeField string, r schema.TimeRange, now time.Time) ([]schema.Record, *Interval) {
	interval, ok := Resolve(r, now)
	if !ok {
		a.logger.Debug("Time range not resolvable, skipping time filter", zap.Any("range", r))
		return records, nil
	}
	if interval.Unbounded() {
		return records, &interval
	}

	out := make([]schema.Record, 0, len(records))
	for _, rec := range records {
		t, ok := timeOf(rec, timeField)
		if ok && interval.Contains(t) {
			out = append(out, rec)
		}
	}
	a.logger.Debug("Records remaining after time window",
		zap.Int("before", len(records)),
		zap.Int("after", len(out)),
		zap.Time("start", interval.Start),
		zap.Time("end", interval.End),
	)
	return out, &interval
}

// Summary renders a summary view over records.
func (a *Analyzer) Summary(view schema.SummaryView, records []schema.Record, r schema.TimeRange, now time.Time) *SummaryResult {
	windowed, interval := a.Window(records, view.TimeField, r, now)
	selected := ApplyAll(windowed, view.Filters)
	a.logger.Debug("Records remaining after view filters", zap.String("view", view.ID), zap.Int("count", len(selected)))

	result := &SummaryResult{
		ViewID:  view.ID,
		Window:  interval,
		Total:   len(selected),
		Metrics: make([]MetricValue, 0, len(view.Metrics)),
	}
	for _, m := range view.Metrics {
		value := Compute(selected, m)
		result.Metrics = append(result.Metrics, MetricValue{
			ID:      m.ID,
			Label:   m.Label,
			Format:  m.Format,
			Value:   value,
			Display: Format(value, m.Format),
		})
	}

	for _, g := range view.GroupBy {
		m, ok := groupMetric(g, view.Metrics)
		if !ok {
			a.logger.Warn("Group has no metric to aggregate", zap.String("view", view.ID), zap.String("field", g.FieldID))
			continue
		}
		result.Groups = append(result.Groups, GroupResult{
			FieldID:  g.FieldID,
			Label:    g.Label,
			MetricID: m.ID,
			Rows:     Group(selected, g, m),
		})
	}
	return result
}

// Chart renders a chart view over records.
func (a *Analyzer) Chart(view schema.ChartView, records []schema.Record, r schema.TimeRange, now time.Time) *ChartResult {
	windowed, interval := a.Window(records, view.TimeField, r, now)
	selected := ApplyAll(windowed, view.Filters)

	bucket := BucketMonth
	if interval != nil && !interval.Unbounded() && interval.Days() <= maxDailyBuckets {
		bucket = BucketDay
	}

	result := &ChartResult{
		ViewID:    view.ID,
		ChartType: view.ChartType,
		Window:    interval,
		Bucket:    bucket,
		Series:    make([]SeriesResult, 0, len(view.Series)),
	}
	for _, s := range view.Series {
		series := SeriesResult{MetricID: s.Metric.ID, Label: s.Metric.Label}
		if s.GroupBy != nil {
			series.GroupBy = s.GroupBy.FieldID
			series.Points = Group(selected, *s.GroupBy, s.Metric)
		} else {
			series.Points = timeSeries(selected, view.TimeField, bucket, interval, s.Metric)
		}
		result.Series = append(result.Series, series)
	}
	a.logger.Debug("Chart rendered", zap.String("view", view.ID), zap.Int("series", len(result.Series)), zap.String("bucket", string(bucket)))
	return result
}

// groupMetric picks the metric a group sorts by, falling back to the first
// metric of the view.
func groupMetric(g schema.GroupBy, metrics []schema.Metric) (schema.Metric, bool) {
	if g.Sort != nil {
		for _, m := range metrics {
			if m.ID == g.Sort.MetricID {
				return m, true
			}
		}
	}
	if len(metrics) > 0 {
		return metrics[0], true
	}
	return schema.Metric{}, false
}

// timeSeries buckets records by date and computes the metric per bucket,
// ascending by key. A bounded window yields a point for every bucket it
// spans, empty ones included.
func timeSeries(records []schema.Record, timeField string, bucket BucketSize, interval *Interval, m schema.Metric) []GroupRow {
	parts := make(map[string][]schema.Record)
	for _, r := range records {
		t, ok := timeOf(r, timeField)
		if !ok {
			continue
		}
		key := bucketKey(t, bucket)
		parts[key] = append(parts[key], r)
	}

	var keys []string
	if interval != nil && !interval.Unbounded() {
		for d := bucketStart(interval.Start, bucket); d.Before(interval.End); d = nextBucket(d, bucket) {
			keys = append(keys, bucketKey(d, bucket))
		}
	} else {
		for key := range parts {
			keys = append(keys, key)
		}
		sort.Strings(keys)
	}

	points := make([]GroupRow, 0, len(keys))
	for _, key := range keys {
		members := parts[key]
		points = append(points, GroupRow{Key: key, Value: Compute(members, m), Count: len(members)})
	}
	return points
}

func timeOf(r schema.Record, timeField string) (time.Time, bool) {
	if timeField == "" {
		if r.CreatedAt.IsZero() {
			return time.Time{}, false
		}
		return truncate(r.CreatedAt.UTC()), true
	}
	s, ok := r.Data[timeField].(string)
	if !ok {
		return time.Time{}, false
	}
	return schema.ParseDate(s)
}

func bucketKey(t time.Time, bucket BucketSize) string {
	if bucket == BucketDay {
		return t.Format(schema.DateLayout)
	}
	return t.Format("2006-01")
}

func bucketStart(t time.Time, bucket BucketSize) time.Time {
	if bucket == BucketDay {
		return truncate(t)
	}
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func nextBucket(t time.Time, bucket BucketSize) time.Time {
	if bucket == BucketDay {
		return t.AddDate(0, 0, 1)
	}
	return t.AddDate(0, 1, 0)
}
