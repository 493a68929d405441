package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func expenseSchema() *Schema {
	return &Schema{
		Fields: []Field{
			DateField{FieldBase{ID: "date", Label: "Date", Required: true}},
			NumberField{FieldBase: FieldBase{ID: "amount", Label: "Amount", Required: true}, Min: floatPtr(0)},
			SelectField{FieldBase: FieldBase{ID: "category", Label: "Category"}, Options: []string{"Food", "Transport"}},
			StringField{FieldBase{ID: "note", Label: "Note"}},
			BooleanField{FieldBase{ID: "reimbursed", Label: "Reimbursed"}},
		},
	}
}

func fieldsOf(issues []Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Field)
	}
	return out
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(expenseSchema())

	t.Run("Normalizes a valid record", func(t *testing.T) {
		res := v.Validate(map[string]any{"date": "2026-01-09", "amount": "42.5", "category": "Food"})
		require.True(t, res.OK, "details: %v", res.Details)
		assert.Empty(t, res.Details)
		assert.Equal(t, Document{"date": "2026-01-09", "amount": 42.5, "category": "Food"}, res.Data)
	})

	t.Run("Reports every offending field", func(t *testing.T) {
		res := v.Validate(map[string]any{"date": "2026-01-09", "amount": -1, "category": "Shoes"})
		assert.False(t, res.OK)
		assert.Nil(t, res.Data)
		require.Len(t, res.Details, 2)
		assert.Equal(t, "amount", res.Details[0].Field)
		assert.Equal(t, CodeBelowMinimum, res.Details[0].Code)
		assert.Equal(t, "category", res.Details[1].Field)
		assert.Equal(t, CodeEnumViolation, res.Details[1].Code)
		assert.Contains(t, res.Details[1].Message, "Food, Transport")
	})

	t.Run("Rejects unknown keys without aborting", func(t *testing.T) {
		res := v.Validate(map[string]any{"foo": 1, "bar": true, "amount": "x"})
		assert.False(t, res.OK)
		assert.Nil(t, res.Data)
		assert.Equal(t, []string{"bar", "foo", "date", "amount"}, fieldsOf(res.Details))
		assert.Equal(t, CodeUnexpectedField, res.Details[0].Code)
		assert.Equal(t, CodeRequiredMissing, res.Details[2].Code)
		assert.Equal(t, CodeTypeMismatch, res.Details[3].Code)
	})

	t.Run("Treats nil and empty string as missing", func(t *testing.T) {
		res := v.Validate(map[string]any{"date": "", "amount": nil, "note": "", "category": nil})
		assert.False(t, res.OK)
		assert.Equal(t, []string{"date", "amount"}, fieldsOf(res.Details))
		for _, d := range res.Details {
			assert.Equal(t, CodeRequiredMissing, d.Code)
		}
	})

	t.Run("Drops missing optional fields instead of defaulting", func(t *testing.T) {
		res := v.Validate(map[string]any{"date": "2026-01-09", "amount": 3, "note": ""})
		require.True(t, res.OK)
		assert.Equal(t, Document{"date": "2026-01-09", "amount": 3.0}, res.Data)
	})

	t.Run("Rejects a value that is not an object", func(t *testing.T) {
		for _, raw := range []any{nil, "text", 12, []any{1}, map[string]any(nil)} {
			res := v.Validate(raw)
			assert.False(t, res.OK)
			require.Len(t, res.Details, 1)
			assert.Equal(t, ShapeField, res.Details[0].Field)
			assert.Equal(t, CodeInvalidShape, res.Details[0].Code)
		}
	})

	t.Run("Accepts a string map", func(t *testing.T) {
		res := v.Validate(map[string]string{"date": "2026-03-01", "amount": "7", "reimbursed": "true"})
		require.True(t, res.OK)
		assert.Equal(t, Document{"date": "2026-03-01", "amount": 7.0, "reimbursed": true}, res.Data)
	})

	t.Run("Is idempotent on normalized output", func(t *testing.T) {
		first := v.Validate(map[string]any{"date": "2026-01-09", "amount": "42.5", "category": "Food", "reimbursed": "false"})
		require.True(t, first.OK)
		second := v.Validate(first.Data)
		require.True(t, second.OK)
		assert.Empty(t, second.Details)
		assert.Equal(t, first.Data, second.Data)
	})
}

func TestValidator_FieldTypes(t *testing.T) {
	v := NewValidator(&Schema{Fields: []Field{
		StringField{FieldBase{ID: "s"}},
		NumberField{FieldBase: FieldBase{ID: "n"}, Min: floatPtr(1), Max: floatPtr(10)},
		BooleanField{FieldBase{ID: "b"}},
		DateField{FieldBase{ID: "d"}},
		SelectField{FieldBase: FieldBase{ID: "o"}, Options: []string{"a", "b"}},
	}})

	tests := []struct {
		name  string
		field string
		value any
		code  string
		want  any
	}{
		{"string accepts text", "s", "hello", "", "hello"},
		{"string rejects a number", "s", 5, CodeTypeMismatch, nil},
		{"string rejects an object", "s", map[string]any{"a": 1}, CodeTypeMismatch, nil},
		{"number accepts a float", "n", 2.5, "", 2.5},
		{"number accepts an int", "n", 3, "", 3.0},
		{"number accepts a numeric string", "n", "4.25", "", 4.25},
		{"number accepts a json number", "n", json.Number("6"), "", 6.0},
		{"number rejects text", "n", "four", CodeTypeMismatch, nil},
		{"number rejects NaN", "n", "NaN", CodeTypeMismatch, nil},
		{"number rejects a list", "n", []any{1}, CodeTypeMismatch, nil},
		{"number enforces min", "n", 0.5, CodeBelowMinimum, nil},
		{"number enforces max", "n", "11", CodeAboveMaximum, nil},
		{"number accepts the bounds", "n", 10, "", 10.0},
		{"boolean accepts true", "b", true, "", true},
		{"boolean accepts the string false", "b", "false", "", false},
		{"boolean rejects other strings", "b", "yes", CodeTypeMismatch, nil},
		{"boolean rejects capitalized strings", "b", "True", CodeTypeMismatch, nil},
		{"boolean rejects numbers", "b", 1, CodeTypeMismatch, nil},
		{"date accepts a calendar date", "d", "2024-02-29", "", "2024-02-29"},
		{"date rejects a non-round-tripping day", "d", "2026-02-30", CodeInvalidFormat, nil},
		{"date rejects month 13", "d", "2026-13-01", CodeInvalidFormat, nil},
		{"date rejects day 32", "d", "2026-01-32", CodeInvalidFormat, nil},
		{"date rejects a timestamp", "d", "2026-01-01T00:00:00Z", CodeInvalidFormat, nil},
		{"date rejects short digits", "d", "2026-1-01", CodeInvalidFormat, nil},
		{"date rejects a number", "d", 20260101, CodeTypeMismatch, nil},
		{"select accepts an option", "o", "b", "", "b"},
		{"select rejects an unlisted value", "o", "c", CodeEnumViolation, nil},
		{"select rejects a non-string", "o", 1, CodeEnumViolation, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(map[string]any{tt.field: tt.value})
			if tt.code == "" {
				require.True(t, res.OK, "details: %v", res.Details)
				assert.Equal(t, tt.want, res.Data[tt.field])
				return
			}
			assert.False(t, res.OK)
			require.Len(t, res.Details, 1)
			assert.Equal(t, tt.field, res.Details[0].Field)
			assert.Equal(t, tt.code, res.Details[0].Code)
		})
	}
}

func TestValidationResult_JSON(t *testing.T) {
	v := NewValidator(expenseSchema())

	ok, err := json.Marshal(v.Validate(map[string]any{"date": "2026-01-09", "amount": 1}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"data":{"date":"2026-01-09","amount":1}}`, string(ok))

	failed, err := json.Marshal(v.Validate(map[string]any{"date": "2026-01-09"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":false,"details":[{"code":"REQUIRED_FIELD_MISSING","field":"amount","message":"Amount is required"}]}`, string(failed))
}
