package schema

import "fmt"

// Issue codes reported by Template.Check. These are authoring-time problems
// with the template itself, never with a record.
const (
	CodeEmptySchema            = "EMPTY_SCHEMA"
	CodeEmptyFieldID           = "EMPTY_FIELD_ID"
	CodeDuplicateField         = "DUPLICATE_FIELD"
	CodeEmptyOptions           = "EMPTY_OPTIONS"
	CodeInvalidBounds          = "INVALID_BOUNDS"
	CodeDuplicateView          = "DUPLICATE_VIEW"
	CodeMultipleDefaultViews   = "MULTIPLE_DEFAULT_VIEWS"
	CodeMetricFieldRequired    = "METRIC_FIELD_REQUIRED"
	CodeUnknownFieldReference  = "UNKNOWN_FIELD_REFERENCE"
	CodeInvalidTimeField       = "INVALID_TIME_FIELD"
	CodeUnknownMetricReference = "UNKNOWN_METRIC_REFERENCE"
	CodeEmptySeries            = "EMPTY_SERIES"
	CodeInvalidOperator        = "INVALID_OPERATOR"
	CodeUnsupportedVariant     = "UNSUPPORTED_VARIANT"
)

// Check reports every invariant violation in the template's schema and views.
// Issue fields are dotted paths such as "views.summary.metrics.total".
func (t *Template) Check() []Issue {
	c := &checker{schema: &t.Schema}
	c.checkSchema()
	c.checkViews(t.Views)
	return c.issues
}

type checker struct {
	schema *Schema
	issues []Issue
}

func (c *checker) addIssue(code, path, message string) {
	c.issues = append(c.issues, Issue{Code: code, Field: path, Message: message})
}

func (c *checker) checkSchema() {
	if len(c.schema.Fields) == 0 {
		c.addIssue(CodeEmptySchema, "fields", "A template needs at least one field")
		return
	}

	seen := make(map[string]bool, len(c.schema.Fields))
	for i, field := range c.schema.Fields {
		id := field.Base().ID
		path := "fields." + id
		if id == "" {
			c.addIssue(CodeEmptyFieldID, fmt.Sprintf("fields[%d]", i), "Field id cannot be empty")
			continue
		}
		if seen[id] {
			c.addIssue(CodeDuplicateField, path, fmt.Sprintf("Field id '%s' is declared more than once", id))
		}
		seen[id] = true

		switch f := field.(type) {
		case StringField, BooleanField, DateField:
		case SelectField:
			if len(f.Options) == 0 {
				c.addIssue(CodeEmptyOptions, path, "A select field needs at least one option")
			}
		case NumberField:
			if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
				c.addIssue(CodeInvalidBounds, path, "Minimum cannot be greater than maximum")
			}
		default:
			// Pointer variants satisfy Field too but are never decoded or
			// validated; fields are held by value.
			c.addIssue(CodeUnsupportedVariant, path, fmt.Sprintf("Field '%s' has unsupported variant %T", id, field))
		}
	}

	for _, index := range c.schema.Indexes {
		for _, id := range index.Fields {
			c.checkFieldRef("indexes."+index.Name, id)
		}
	}
}

func (c *checker) checkViews(views []View) {
	seen := make(map[string]bool, len(views))
	defaults := 0
	for _, view := range views {
		base := view.Base()
		path := "views." + base.ID
		if seen[base.ID] {
			c.addIssue(CodeDuplicateView, path, fmt.Sprintf("View id '%s' is declared more than once", base.ID))
		}
		seen[base.ID] = true
		if base.Default {
			defaults++
		}

		switch v := view.(type) {
		case FormView:
		case TableView:
			for _, col := range v.Columns {
				c.checkFieldRef(path+".columns", col)
			}
		case SummaryView:
			c.checkSummary(path, v)
		case ChartView:
			c.checkChart(path, v)
		default:
			c.addIssue(CodeUnsupportedVariant, path, fmt.Sprintf("View '%s' has unsupported variant %T", base.ID, view))
		}
	}
	if defaults > 1 {
		c.addIssue(CodeMultipleDefaultViews, "views", "Only one view can be marked default")
	}
}

func (c *checker) checkSummary(path string, v SummaryView) {
	if v.TimeField != "" {
		c.checkTimeField(path+".timeField", v.TimeField)
	}
	c.checkFilters(path+".filters", v.Filters)

	metrics := make(map[string]bool, len(v.Metrics))
	for _, m := range v.Metrics {
		c.checkMetric(path+".metrics."+m.ID, m)
		metrics[m.ID] = true
	}
	for _, g := range v.GroupBy {
		c.checkGroupBy(path+".groupBy."+g.FieldID, g, metrics)
	}
}

func (c *checker) checkChart(path string, v ChartView) {
	if v.TimeField == "" {
		c.addIssue(CodeInvalidTimeField, path+".timeField", "A chart view needs a time field")
	} else {
		c.checkTimeField(path+".timeField", v.TimeField)
	}
	switch v.ChartType {
	case ChartTypeLine, ChartTypeBar, ChartTypeArea, ChartTypePie:
	default:
		c.addIssue(CodeInvalidOperator, path+".chartType", fmt.Sprintf("Unknown chart type '%s'", v.ChartType))
	}
	if len(v.Series) == 0 {
		c.addIssue(CodeEmptySeries, path+".series", "A chart view needs at least one series")
	}
	c.checkFilters(path+".filters", v.Filters)
	for _, s := range v.Series {
		c.checkMetric(path+".series."+s.Metric.ID, s.Metric)
		if s.GroupBy != nil {
			c.checkGroupBy(path+".series."+s.Metric.ID+".groupBy", *s.GroupBy, map[string]bool{s.Metric.ID: true})
		}
	}
}

func (c *checker) checkMetric(path string, m Metric) {
	switch m.Op {
	case MetricOpCount:
	case MetricOpSum, MetricOpAvg, MetricOpMin, MetricOpMax:
		if m.FieldID == "" {
			c.addIssue(CodeMetricFieldRequired, path, fmt.Sprintf("Metric '%s' needs a field for op '%s'", m.ID, m.Op))
		}
	default:
		c.addIssue(CodeInvalidOperator, path, fmt.Sprintf("Unknown metric op '%s'", m.Op))
	}
	if m.FieldID != "" {
		c.checkFieldRef(path, m.FieldID)
	}
	switch m.Format {
	case "", MetricFormatCurrency, MetricFormatNumber, MetricFormatPercent:
	default:
		c.addIssue(CodeInvalidOperator, path, fmt.Sprintf("Unknown metric format '%s'", m.Format))
	}
	c.checkFilters(path+".filters", m.Filters)
}

func (c *checker) checkGroupBy(path string, g GroupBy, metrics map[string]bool) {
	c.checkFieldRef(path, g.FieldID)
	if g.Sort == nil {
		return
	}
	if !metrics[g.Sort.MetricID] {
		c.addIssue(CodeUnknownMetricReference, path+".sort", fmt.Sprintf("Unknown metric '%s'", g.Sort.MetricID))
	}
	switch g.Sort.Dir {
	case "", SortDirectionAsc, SortDirectionDesc:
	default:
		c.addIssue(CodeInvalidOperator, path+".sort", fmt.Sprintf("Unknown sort direction '%s'", g.Sort.Dir))
	}
}

func (c *checker) checkFilters(path string, filters []Filter) {
	for _, f := range filters {
		c.checkFieldRef(path, f.FieldID)
		switch f.Op {
		case FilterOpEq, FilterOpNeq, FilterOpIn, FilterOpGte, FilterOpLte, FilterOpContains:
		default:
			c.addIssue(CodeInvalidOperator, path, fmt.Sprintf("Unknown filter op '%s'", f.Op))
		}
	}
}

func (c *checker) checkTimeField(path, id string) {
	field := c.schema.FindField(id)
	if field == nil {
		c.addIssue(CodeUnknownFieldReference, path, fmt.Sprintf("Unknown field '%s'", id))
		return
	}
	if field.Type() != FieldTypeDate {
		c.addIssue(CodeInvalidTimeField, path, fmt.Sprintf("Time field '%s' must be a date field", id))
	}
}

func (c *checker) checkFieldRef(path, id string) {
	if c.schema.FindField(id) == nil {
		c.addIssue(CodeUnknownFieldReference, path, fmt.Sprintf("Unknown field '%s'", id))
	}
}
