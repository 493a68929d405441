package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// FieldType is the discriminator of a field definition.
type FieldType string

const (
	FieldTypeString  FieldType = "string"  // Free text
	FieldTypeNumber  FieldType = "number"  // Numeric data, optionally bounded
	FieldTypeBoolean FieldType = "boolean" // True/false values
	FieldTypeDate    FieldType = "date"    // Calendar date, YYYY-MM-DD
	FieldTypeSelect  FieldType = "select"  // One out of a set of pre-defined options
)

// Field is one typed attribute of a schema. The set of implementations is
// closed: StringField, NumberField, BooleanField, DateField and SelectField.
type Field interface {
	Base() FieldBase
	Type() FieldType
	isField()
}

// FieldBase holds the attributes shared by every field variant.
type FieldBase struct {
	// ID keys the field inside a record's attribute bag. It never changes once
	// records exist.
	ID       string `json:"id"`
	Label    string `json:"label"`
	Required bool   `json:"required,omitempty"`
}

func (b FieldBase) Base() FieldBase { return b }

type StringField struct {
	FieldBase
}

type NumberField struct {
	FieldBase
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

type BooleanField struct {
	FieldBase
}

type DateField struct {
	FieldBase
}

type SelectField struct {
	FieldBase
	// Options is the ordered set of values a record may hold.
	Options []string `json:"options"`
}

func (StringField) Type() FieldType  { return FieldTypeString }
func (NumberField) Type() FieldType  { return FieldTypeNumber }
func (BooleanField) Type() FieldType { return FieldTypeBoolean }
func (DateField) Type() FieldType    { return FieldTypeDate }
func (SelectField) Type() FieldType  { return FieldTypeSelect }

func (StringField) isField()  {}
func (NumberField) isField()  {}
func (BooleanField) isField() {}
func (DateField) isField()    {}
func (SelectField) isField()  {}

// HasOption reports whether value is one of the field's options.
func (f SelectField) HasOption(value string) bool {
	for _, o := range f.Options {
		if o == value {
			return true
		}
	}
	return false
}

// IndexDefinition is a storage hint. The core never reads it; stores use it to
// build secondary indexes over record data.
type IndexDefinition struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
	Unique bool     `json:"unique,omitempty"`
}

// Schema is the ordered list of fields records of a template must conform to.
type Schema struct {
	Fields  []Field           `json:"-"`
	Indexes []IndexDefinition `json:"indexes,omitempty"`
}

// FindField returns the field with the given id, or nil.
func (s *Schema) FindField(id string) Field {
	if s == nil {
		return nil
	}
	for _, f := range s.Fields {
		if f.Base().ID == id {
			return f
		}
	}
	return nil
}

// FieldIDs returns the ids of all fields in declaration order.
func (s *Schema) FieldIDs() []string {
	ids := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		ids = append(ids, f.Base().ID)
	}
	return ids
}

// UnmarshalJSON decodes a schema whose fields are tagged by "type".
func (s *Schema) UnmarshalJSON(data []byte) error {
	var temp struct {
		Fields  []json.RawMessage `json:"fields"`
		Indexes []IndexDefinition `json:"indexes"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	fields := make([]Field, 0, len(temp.Fields))
	for i, raw := range temp.Fields {
		f, err := UnmarshalField(raw)
		if err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
		fields = append(fields, f)
	}
	s.Fields = fields
	s.Indexes = temp.Indexes
	return nil
}

// MarshalJSON encodes every field together with its "type" tag.
func (s Schema) MarshalJSON() ([]byte, error) {
	fields := make([]json.RawMessage, 0, len(s.Fields))
	for _, f := range s.Fields {
		raw, err := MarshalField(f)
		if err != nil {
			return nil, err
		}
		fields = append(fields, raw)
	}
	return json.Marshal(struct {
		Fields  []json.RawMessage `json:"fields"`
		Indexes []IndexDefinition `json:"indexes,omitempty"`
	}{fields, s.Indexes})
}

// UnmarshalField reads the "type" tag and decodes the matching variant.
func UnmarshalField(data []byte) (Field, error) {
	var tag struct {
		Type FieldType `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}

	switch tag.Type {
	case FieldTypeString:
		var f StringField
		err := json.Unmarshal(data, &f)
		return f, err
	case FieldTypeNumber:
		var f NumberField
		err := json.Unmarshal(data, &f)
		return f, err
	case FieldTypeBoolean:
		var f BooleanField
		err := json.Unmarshal(data, &f)
		return f, err
	case FieldTypeDate:
		var f DateField
		err := json.Unmarshal(data, &f)
		return f, err
	case FieldTypeSelect:
		var f SelectField
		err := json.Unmarshal(data, &f)
		return f, err
	default:
		return nil, fmt.Errorf("unknown field type: %q", tag.Type)
	}
}

// MarshalField encodes a field variant with its "type" tag.
func MarshalField(f Field) ([]byte, error) {
	switch v := f.(type) {
	case StringField:
		return json.Marshal(struct {
			Type FieldType `json:"type"`
			StringField
		}{v.Type(), v})
	case NumberField:
		return json.Marshal(struct {
			Type FieldType `json:"type"`
			NumberField
		}{v.Type(), v})
	case BooleanField:
		return json.Marshal(struct {
			Type FieldType `json:"type"`
			BooleanField
		}{v.Type(), v})
	case DateField:
		return json.Marshal(struct {
			Type FieldType `json:"type"`
			DateField
		}{v.Type(), v})
	case SelectField:
		return json.Marshal(struct {
			Type FieldType `json:"type"`
			SelectField
		}{v.Type(), v})
	default:
		return nil, fmt.Errorf("unsupported field variant: %T", f)
	}
}

// Template bundles a schema with the views used to present its records.
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Schema      Schema    `json:"schema"`
	Views       []View    `json:"-"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// View returns the view with the given id, or nil.
func (t *Template) View(id string) View {
	for _, v := range t.Views {
		if v.Base().ID == id {
			return v
		}
	}
	return nil
}

// DefaultView returns the view marked default, falling back to the first
// view. It returns nil for a template without views.
func (t *Template) DefaultView() View {
	for _, v := range t.Views {
		if v.Base().Default {
			return v
		}
	}
	if len(t.Views) > 0 {
		return t.Views[0]
	}
	return nil
}

type templateJSON struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Schema      Schema            `json:"schema"`
	Views       []json.RawMessage `json:"views"`
	CreatedAt   time.Time         `json:"createdAt,omitempty"`
}

// UnmarshalJSON decodes a template and its tagged views.
func (t *Template) UnmarshalJSON(data []byte) error {
	var temp templateJSON
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	views := make([]View, 0, len(temp.Views))
	for i, raw := range temp.Views {
		v, err := UnmarshalView(raw)
		if err != nil {
			return fmt.Errorf("view %d: %w", i, err)
		}
		views = append(views, v)
	}

	t.ID = temp.ID
	t.Name = temp.Name
	t.Description = temp.Description
	t.Schema = temp.Schema
	t.Views = views
	t.CreatedAt = temp.CreatedAt
	return nil
}

// MarshalJSON encodes a template and its tagged views.
func (t Template) MarshalJSON() ([]byte, error) {
	views := make([]json.RawMessage, 0, len(t.Views))
	for _, v := range t.Views {
		raw, err := MarshalView(v)
		if err != nil {
			return nil, err
		}
		views = append(views, raw)
	}
	return json.Marshal(templateJSON{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Schema:      t.Schema,
		Views:       views,
		CreatedAt:   t.CreatedAt,
	})
}

// Document is a record's attribute bag, keyed by field id.
type Document map[string]any

// Clone returns a shallow copy. Values are scalars, so the copy is independent.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Record is one stored data instance of a template.
type Record struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"templateId"`
	Data       Document  `json:"data"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Issue describes a single validation or configuration problem.
type Issue struct {
	Code    string `json:"code,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of validating a raw attribute bag. Exactly
// one of Data and Details is populated.
type ValidationResult struct {
	OK      bool     `json:"ok"`
	Data    Document `json:"data,omitempty"`
	Details []Issue  `json:"details,omitempty"`
}
