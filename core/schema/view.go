package schema

import (
	"encoding/json"
	"fmt"
)

// ViewType is the discriminator of a view definition.
type ViewType string

const (
	ViewTypeForm    ViewType = "form"
	ViewTypeTable   ViewType = "table"
	ViewTypeSummary ViewType = "summary"
	ViewTypeChart   ViewType = "chart"
)

// View is one declared way of presenting a template's records. The set of
// implementations is closed: FormView, TableView, SummaryView and ChartView.
type View interface {
	Base() ViewBase
	Type() ViewType
	isView()
}

// ViewBase holds the attributes shared by every view variant.
type ViewBase struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Default bool   `json:"default,omitempty"`
}

func (b ViewBase) Base() ViewBase { return b }

type FormView struct {
	ViewBase
}

type TableView struct {
	ViewBase
	// Columns lists field ids to show. Empty means every field.
	Columns []string `json:"columns,omitempty"`
}

type SummaryView struct {
	ViewBase
	Metrics   []Metric  `json:"metrics"`
	GroupBy   []GroupBy `json:"groupBy,omitempty"`
	Filters   []Filter  `json:"filters,omitempty"`
	TimeField string    `json:"timeField,omitempty"`
}

type ChartView struct {
	ViewBase
	TimeField string    `json:"timeField"`
	ChartType ChartType `json:"chartType"`
	Series    []Series  `json:"series"`
	Filters   []Filter  `json:"filters,omitempty"`
}

func (FormView) Type() ViewType    { return ViewTypeForm }
func (TableView) Type() ViewType   { return ViewTypeTable }
func (SummaryView) Type() ViewType { return ViewTypeSummary }
func (ChartView) Type() ViewType   { return ViewTypeChart }

func (FormView) isView()    {}
func (TableView) isView()   {}
func (SummaryView) isView() {}
func (ChartView) isView()   {}

// ChartType selects how a chart view is drawn. It has no effect on the
// computed series.
type ChartType string

const (
	ChartTypeLine ChartType = "line"
	ChartTypeBar  ChartType = "bar"
	ChartTypeArea ChartType = "area"
	ChartTypePie  ChartType = "pie"
)

// Series pairs a metric with an optional grouping inside a chart.
type Series struct {
	Metric  Metric   `json:"metric"`
	GroupBy *GroupBy `json:"groupBy,omitempty"`
}

// MetricOp is the aggregate computed by a metric.
type MetricOp string

const (
	MetricOpCount MetricOp = "count"
	MetricOpSum   MetricOp = "sum"
	MetricOpAvg   MetricOp = "avg"
	MetricOpMin   MetricOp = "min"
	MetricOpMax   MetricOp = "max"
)

// MetricFormat is a display hint; it never changes the computed value.
type MetricFormat string

const (
	MetricFormatCurrency MetricFormat = "currency"
	MetricFormatNumber   MetricFormat = "number"
	MetricFormatPercent  MetricFormat = "percent"
)

// Metric is a declarative aggregate over records. FieldID is required for
// every op except count.
type Metric struct {
	ID      string       `json:"id"`
	Label   string       `json:"label"`
	Op      MetricOp     `json:"op"`
	FieldID string       `json:"fieldId,omitempty"`
	Format  MetricFormat `json:"format,omitempty"`
	Filters []Filter     `json:"filters,omitempty"`
}

// SortDirection orders grouped results.
type SortDirection string

const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// GroupSort orders groups by the value of a metric.
type GroupSort struct {
	MetricID string        `json:"metricId"`
	Dir      SortDirection `json:"dir,omitempty"`
}

// GroupBy partitions records by the value of one field.
type GroupBy struct {
	FieldID string     `json:"fieldId"`
	Label   string     `json:"label,omitempty"`
	Limit   int        `json:"limit,omitempty"`
	Sort    *GroupSort `json:"sort,omitempty"`
}

// FilterOp is the comparison applied by a filter.
type FilterOp string

const (
	FilterOpEq       FilterOp = "eq"
	FilterOpNeq      FilterOp = "neq"
	FilterOpIn       FilterOp = "in"
	FilterOpGte      FilterOp = "gte"
	FilterOpLte      FilterOp = "lte"
	FilterOpContains FilterOp = "contains"
)

// Filter is a predicate over one field. Value is a scalar, or a slice of
// scalars for the in operator.
type Filter struct {
	FieldID string   `json:"fieldId"`
	Op      FilterOp `json:"op"`
	Value   any      `json:"value"`
}

// TimePreset names a relative time window.
type TimePreset string

const (
	PresetThisMonth TimePreset = "this_month"
	PresetLastMonth TimePreset = "last_month"
	PresetThisYear  TimePreset = "this_year"
	PresetAllTime   TimePreset = "all_time"
)

// TimeRange selects a window either by Preset or by explicit inclusive From
// and To calendar dates. Preset wins when both are set.
type TimeRange struct {
	Preset TimePreset `json:"preset,omitempty"`
	From   string     `json:"from,omitempty"`
	To     string     `json:"to,omitempty"`
}

// UnmarshalView reads the "type" tag and decodes the matching variant.
func UnmarshalView(data []byte) (View, error) {
	var tag struct {
		Type ViewType `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}

	switch tag.Type {
	case ViewTypeForm:
		var v FormView
		err := json.Unmarshal(data, &v)
		return v, err
	case ViewTypeTable:
		var v TableView
		err := json.Unmarshal(data, &v)
		return v, err
	case ViewTypeSummary:
		var v SummaryView
		err := json.Unmarshal(data, &v)
		return v, err
	case ViewTypeChart:
		var v ChartView
		err := json.Unmarshal(data, &v)
		return v, err
	default:
		return nil, fmt.Errorf("unknown view type: %q", tag.Type)
	}
}

// MarshalView encodes a view variant with its "type" tag.
func MarshalView(v View) ([]byte, error) {
	switch view := v.(type) {
	case FormView:
		return json.Marshal(struct {
			Type ViewType `json:"type"`
			FormView
		}{view.Type(), view})
	case TableView:
		return json.Marshal(struct {
			Type ViewType `json:"type"`
			TableView
		}{view.Type(), view})
	case SummaryView:
		return json.Marshal(struct {
			Type ViewType `json:"type"`
			SummaryView
		}{view.Type(), view})
	case ChartView:
		return json.Marshal(struct {
			Type ViewType `json:"type"`
			ChartView
		}{view.Type(), view})
	default:
		return nil, fmt.Errorf("unsupported view variant: %T", v)
	}
}
