package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quote-wizard/internal/model"
)

func ptr(f float64) *float64 { return &f }

func TestValidateNumbers(t *testing.T) {
	age := &model.FieldDefinition{Key: "age", Label: "Age", Kind: model.KindInteger, Required: true, Min: ptr(18), Max: ptr(100)}

	cases := []struct {
		raw  any
		want *model.ValidationError
	}{
		{25, nil},
		{" 40 ", nil},
		{float64(18), nil},
		{100, nil},
		{nil, model.ErrRequired},
		{"", model.ErrRequired},
		{17, model.ErrRange},
		{101, model.ErrRange},
		{"abc", model.ErrFormat},
		{25.5, model.ErrFormat},
		{true, model.ErrFormat},
	}
	for _, c := range cases {
		got := ValidateField(age, c.raw)
		if c.want == nil {
			assert.Nil(t, got, "%v", c.raw)
			continue
		}
		require.NotNil(t, got, "%v", c.raw)
		assert.ErrorIs(t, got, c.want, "%v", c.raw)
		assert.Equal(t, "age", got.Field)
	}
}

func TestDecimalAcceptsFractions(t *testing.T) {
	def := &model.FieldDefinition{Key: "sum", Label: "Sum", Kind: model.KindDecimal, Required: true, Min: ptr(2000)}
	assert.Nil(t, ValidateField(def, "2000.50"))
	assert.ErrorIs(t, ValidateField(def, 1999.99), model.ErrRange)
}

func TestCustomMessage(t *testing.T) {
	def := &model.FieldDefinition{
		Key: "age", Label: "Age", Kind: model.KindInteger, Required: true, Min: ptr(18),
		Messages: map[model.ValidationKind]string{model.Range: "Must be at least 18 years old"},
	}
	got := ValidateField(def, 12)
	require.NotNil(t, got)
	assert.Equal(t, "Must be at least 18 years old", got.Message)

	got = ValidateField(def, nil)
	require.NotNil(t, got)
	assert.Equal(t, "Age is required", got.Message)
}

func TestValidateText(t *testing.T) {
	def := &model.FieldDefinition{Key: "dest", Label: "Destination", Kind: model.KindText, Required: true, MinLength: 2}
	assert.Nil(t, ValidateField(def, "UK"))
	assert.ErrorIs(t, ValidateField(def, "   "), model.ErrRequired)
	assert.ErrorIs(t, ValidateField(def, " J "), model.ErrRange)

	optional := &model.FieldDefinition{Key: "note", Label: "Note", Kind: model.KindText}
	assert.Nil(t, ValidateField(optional, ""))
}

func TestValidateChoices(t *testing.T) {
	single := &model.FieldDefinition{Key: "t", Label: "Type", Kind: model.KindSingleChoice, Required: true, Options: []string{"car", "bike"}}
	assert.Nil(t, ValidateField(single, "Car"))
	assert.ErrorIs(t, ValidateField(single, "boat"), model.ErrFormat)
	assert.ErrorIs(t, ValidateField(single, ""), model.ErrRequired)

	multi := &model.FieldDefinition{Key: "d", Label: "Diseases", Kind: model.KindMultiChoice, Required: true, Options: []string{"None", "Asthma"}}
	assert.Nil(t, ValidateField(multi, []string{"None"}))
	assert.Nil(t, ValidateField(multi, []any{"asthma"}))
	assert.ErrorIs(t, ValidateField(multi, []string{}), model.ErrRequired)
	assert.ErrorIs(t, ValidateField(multi, []string{"Asthma", "Flu"}), model.ErrFormat)
	assert.ErrorIs(t, ValidateField(multi, []any{1}), model.ErrFormat)
}

func TestValidateBoolean(t *testing.T) {
	def := &model.FieldDefinition{Key: "s", Label: "Smoker", Kind: model.KindBoolean, Required: true}
	for _, ok := range []any{"yes", "NO", "true", false} {
		assert.Nil(t, ValidateField(def, ok), "%v", ok)
	}
	assert.ErrorIs(t, ValidateField(def, "maybe"), model.ErrFormat)
	assert.ErrorIs(t, ValidateField(def, nil), model.ErrRequired)
}

func TestValidateStepOnlyFailingKeys(t *testing.T) {
	schema := &model.FieldSchema{Steps: []model.Step{
		{Title: "One", Fields: []model.FieldDefinition{
			{Key: "age", Label: "Age", Kind: model.KindInteger, Required: true, Min: ptr(18)},
			{Key: "name", Label: "Name", Kind: model.KindText},
		}},
		{Title: "Two", Fields: []model.FieldDefinition{
			{Key: "x", Label: "X", Kind: model.KindText, Required: true},
		}},
	}}

	errs := ValidateStep(schema, 0, map[string]any{"age": 10})
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs["age"], model.ErrRange)

	assert.Empty(t, ValidateStep(schema, 0, map[string]any{"age": 30}))
	assert.Contains(t, ValidateStep(schema, 1, map[string]any{"age": 30}), "x")
	assert.Empty(t, ValidateStep(schema, 5, nil))
}
