package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	prev := &Schema{Fields: []Field{
		StringField{FieldBase{ID: "name", Label: "Name"}},
		NumberField{FieldBase: FieldBase{ID: "qty"}},
		DateField{FieldBase{ID: "due"}},
	}}
	next := &Schema{Fields: []Field{
		StringField{FieldBase{ID: "name", Label: "Full name"}},
		StringField{FieldBase{ID: "qty"}},
		BooleanField{FieldBase{ID: "done"}},
	}}

	assert.Equal(t, []SchemaChange{
		{Type: SchemaChangeRemoveField, FieldID: "due", From: FieldTypeDate},
		{Type: SchemaChangeModifyField, FieldID: "name", From: FieldTypeString, To: FieldTypeString},
		{Type: SchemaChangeRetypeField, FieldID: "qty", From: FieldTypeNumber, To: FieldTypeString},
		{Type: SchemaChangeAddField, FieldID: "done", To: FieldTypeBoolean},
	}, Diff(prev, next))

	assert.Empty(t, Diff(prev, prev))
}

func TestCheckEvolution(t *testing.T) {
	prev := &Schema{Fields: []Field{NumberField{FieldBase: FieldBase{ID: "qty"}}}}

	t.Run("Allows relabeling and new bounds", func(t *testing.T) {
		next := &Schema{Fields: []Field{NumberField{FieldBase: FieldBase{ID: "qty", Label: "Quantity"}, Min: floatPtr(0)}}}
		assert.Empty(t, CheckEvolution(prev, next))
	})

	t.Run("Rejects a type change", func(t *testing.T) {
		next := &Schema{Fields: []Field{SelectField{FieldBase: FieldBase{ID: "qty"}, Options: []string{"1"}}}}
		issues := CheckEvolution(prev, next)
		if assert.Len(t, issues, 1) {
			assert.Equal(t, CodeFieldRetyped, issues[0].Code)
			assert.Equal(t, "fields.qty", issues[0].Field)
		}
	})
}

func TestCoercions(t *testing.T) {
	t.Run("IsMissing", func(t *testing.T) {
		assert.True(t, IsMissing(nil))
		assert.True(t, IsMissing(""))
		assert.False(t, IsMissing(" "))
		assert.False(t, IsMissing(0))
		assert.False(t, IsMissing(false))
	})

	t.Run("CoerceNumber", func(t *testing.T) {
		n, ok := CoerceNumber(" 12.5 ")
		assert.True(t, ok)
		assert.Equal(t, 12.5, n)
		_, ok = CoerceNumber("Inf")
		assert.False(t, ok)
		_, ok = CoerceNumber(true)
		assert.False(t, ok)
		n, ok = CoerceNumber(uint8(3))
		assert.True(t, ok)
		assert.Equal(t, 3.0, n)
	})

	t.Run("ParseDate", func(t *testing.T) {
		d, ok := ParseDate("2026-01-31")
		assert.True(t, ok)
		assert.Equal(t, "2026-01-31", FormatDate(d))
		_, ok = ParseDate("2026-02-30")
		assert.False(t, ok)
		_, ok = ParseDate("2025-02-29")
		assert.False(t, ok)
	})
}
