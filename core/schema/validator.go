// Package schema provides the template model and the Validator, which turns a
// raw attribute bag into a normalized, schema-conformant Document or reports
// every problem it found.
package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Issue codes reported by the Validator.
const (
	CodeInvalidShape    = "INVALID_SHAPE"
	CodeUnexpectedField = "UNEXPECTED_FIELD"
	CodeRequiredMissing = "REQUIRED_FIELD_MISSING"
	CodeTypeMismatch    = "TYPE_MISMATCH"
	CodeInvalidFormat   = "INVALID_FORMAT"
	CodeEnumViolation   = "ENUM_VIOLATION"
	CodeBelowMinimum    = "BELOW_MINIMUM"
	CodeAboveMaximum    = "ABOVE_MAXIMUM"
)

// ShapeField is the field name used for problems with the bag as a whole.
const ShapeField = "_"

// Validator checks attribute bags against a schema. It keeps no state between
// calls and can be shared between goroutines.
type Validator struct {
	schema *Schema
	known  map[string]struct{}
}

// NewValidator creates a Validator for the given schema. The schema must not
// be modified while the validator is in use.
func NewValidator(schema *Schema) *Validator {
	known := make(map[string]struct{}, len(schema.Fields))
	for _, f := range schema.Fields {
		known[f.Base().ID] = struct{}{}
	}
	return &Validator{schema: schema, known: known}
}

// validation accumulates the issues of one Validate call.
type validation struct {
	issues []Issue
	out    Document
}

func (p *validation) addIssue(code, field, message string) {
	p.issues = append(p.issues, Issue{Code: code, Field: field, Message: message})
}

// Validate checks raw against the schema. Unknown keys and every field are
// checked independently, so the result carries all problems at once.
func (v *Validator) Validate(raw any) ValidationResult {
	data, ok := asDocument(raw)
	if !ok {
		return ValidationResult{
			Details: []Issue{{
				Code:    CodeInvalidShape,
				Field:   ShapeField,
				Message: fmt.Sprintf("Expected an object of field values, got %T", raw),
			}},
		}
	}

	p := &validation{out: make(Document, len(data))}
	v.validateKeys(p, data)
	for _, field := range v.schema.Fields {
		v.validateField(p, field, data)
	}

	if len(p.issues) > 0 {
		return ValidationResult{Details: p.issues}
	}
	return ValidationResult{OK: true, Data: p.out}
}

// asDocument accepts the map shapes a decoded record may arrive in.
func asDocument(raw any) (map[string]any, bool) {
	switch m := raw.(type) {
	case Document:
		return m, m != nil
	case map[string]any:
		return m, m != nil
	case map[string]string:
		if m == nil {
			return nil, false
		}
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	}
	return nil, false
}

func (v *Validator) validateKeys(p *validation, data map[string]any) {
	var unknown []string
	for key := range data {
		if _, ok := v.known[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		p.addIssue(CodeUnexpectedField, key, fmt.Sprintf("Unexpected field '%s' not defined in schema", key))
	}
}

func (v *Validator) validateField(p *validation, field Field, data map[string]any) {
	base := field.Base()
	value := data[base.ID]

	if IsMissing(value) {
		if base.Required {
			p.addIssue(CodeRequiredMissing, base.ID, fmt.Sprintf("%s is required", displayName(base)))
		}
		return
	}

	switch f := field.(type) {
	case StringField:
		s, ok := value.(string)
		if !ok {
			p.addIssue(CodeTypeMismatch, base.ID, fmt.Sprintf("Expected text, got %s", describe(value)))
			return
		}
		p.out[base.ID] = s

	case NumberField:
		n, ok := CoerceNumber(value)
		if !ok {
			p.addIssue(CodeTypeMismatch, base.ID, fmt.Sprintf("Expected a number, got %s", describe(value)))
			return
		}
		if f.Min != nil && n < *f.Min {
			p.addIssue(CodeBelowMinimum, base.ID, fmt.Sprintf("Must be at least %s", formatBound(*f.Min)))
			return
		}
		if f.Max != nil && n > *f.Max {
			p.addIssue(CodeAboveMaximum, base.ID, fmt.Sprintf("Must be at most %s", formatBound(*f.Max)))
			return
		}
		p.out[base.ID] = n

	case BooleanField:
		b, ok := CoerceBoolean(value)
		if !ok {
			p.addIssue(CodeTypeMismatch, base.ID, fmt.Sprintf("Expected true or false, got %s", describe(value)))
			return
		}
		p.out[base.ID] = b

	case DateField:
		s, ok := value.(string)
		if !ok {
			p.addIssue(CodeTypeMismatch, base.ID, fmt.Sprintf("Expected a date string, got %s", describe(value)))
			return
		}
		if _, ok := ParseDate(s); !ok {
			p.addIssue(CodeInvalidFormat, base.ID, fmt.Sprintf("'%s' is not a valid date (YYYY-MM-DD)", s))
			return
		}
		p.out[base.ID] = s

	case SelectField:
		s, ok := value.(string)
		if !ok || !f.HasOption(s) {
			p.addIssue(CodeEnumViolation, base.ID, fmt.Sprintf("Must be one of: %s", strings.Join(f.Options, ", ")))
			return
		}
		p.out[base.ID] = s

	default:
		p.addIssue(CodeTypeMismatch, base.ID, fmt.Sprintf("Unsupported field type %q", field.Type()))
	}
}

func displayName(b FieldBase) string {
	if b.Label != "" {
		return b.Label
	}
	return b.ID
}

// describe names the kind of a rejected value for messages.
func describe(value any) string {
	switch value.(type) {
	case string:
		return "text"
	case bool:
		return "a boolean"
	case map[string]any, Document:
		return "an object"
	case []any:
		return "a list"
	}
	if _, ok := CoerceNumber(value); ok {
		return "a number"
	}
	return fmt.Sprintf("%T", value)
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
