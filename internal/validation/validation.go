// Package validation checks wizard answers against their field definitions.
// It is pure: no I/O, no state.
package validation

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"quote-wizard/internal/model"
)

// ValidateField returns nil when raw is acceptable for def.
func ValidateField(def *model.FieldDefinition, raw any) *model.ValidationError {
	if model.IsEmpty(raw) {
		if def.Required {
			return fail(def, model.Required, fmt.Sprintf("%s is required", def.Label))
		}
		return nil
	}

	switch def.Kind {
	case model.KindInteger, model.KindDecimal:
		return validateNumber(def, raw)
	case model.KindText:
		s, ok := model.AnswerString(raw)
		if !ok {
			return fail(def, model.Format, fmt.Sprintf("%s must be text", def.Label))
		}
		if def.MinLength > 0 && utf8.RuneCountInString(s) < def.MinLength {
			return fail(def, model.Range, fmt.Sprintf("%s must be at least %d characters", def.Label, def.MinLength))
		}
	case model.KindSingleChoice:
		s, ok := model.AnswerString(raw)
		if !ok || !def.HasOption(s) {
			return fail(def, model.Format, fmt.Sprintf("%s must be one of: %s", def.Label, strings.Join(def.Options, ", ")))
		}
	case model.KindMultiChoice:
		list, ok := model.AnswerList(raw)
		if !ok {
			return fail(def, model.Format, fmt.Sprintf("%s must be a list of options", def.Label))
		}
		if len(list) == 0 && def.Required {
			return fail(def, model.Required, fmt.Sprintf("%s is required", def.Label))
		}
		for _, v := range list {
			if !def.HasOption(v) {
				return fail(def, model.Format, fmt.Sprintf("%q is not a valid choice for %s", v, def.Label))
			}
		}
	case model.KindBoolean:
		if _, ok := model.AnswerBool(raw); !ok {
			return fail(def, model.Format, fmt.Sprintf("%s must be yes or no", def.Label))
		}
	default:
		return fail(def, model.Format, fmt.Sprintf("%s has unsupported kind %q", def.Label, def.Kind))
	}
	return nil
}

func validateNumber(def *model.FieldDefinition, raw any) *model.ValidationError {
	n, err := model.AnswerNumber(raw)
	if err != nil {
		return fail(def, model.Format, fmt.Sprintf("%s must be a number", def.Label))
	}
	if def.Kind == model.KindInteger {
		if _, err := model.AnswerInt(raw); err != nil {
			return fail(def, model.Format, fmt.Sprintf("%s must be a whole number", def.Label))
		}
	}
	if def.Min != nil && n < *def.Min {
		return fail(def, model.Range, fmt.Sprintf("%s must be at least %s", def.Label, trim(*def.Min)))
	}
	if def.Max != nil && n > *def.Max {
		return fail(def, model.Range, fmt.Sprintf("%s must be at most %s", def.Label, trim(*def.Max)))
	}
	return nil
}

// ValidateStep validates every field of one step. Only failing keys are
// present in the result; an empty result means the step may advance.
func ValidateStep(schema *model.FieldSchema, stepIndex int, answers map[string]any) map[string]*model.ValidationError {
	errs := make(map[string]*model.ValidationError)
	if stepIndex < 0 || stepIndex >= len(schema.Steps) {
		return errs
	}
	for i := range schema.Steps[stepIndex].Fields {
		def := &schema.Steps[stepIndex].Fields[i]
		if e := ValidateField(def, answers[def.Key]); e != nil {
			errs[def.Key] = e
		}
	}
	return errs
}

// fail builds an error, preferring the definition's own message.
func fail(def *model.FieldDefinition, kind model.ValidationKind, msg string) *model.ValidationError {
	if custom, ok := def.Messages[kind]; ok && custom != "" {
		msg = custom
	}
	return &model.ValidationError{Field: def.Key, Kind: kind, Message: msg}
}

func trim(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
