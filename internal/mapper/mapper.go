// Package mapper turns a completed wizard session into the request the
// recommendation backend expects. It is the only place where UI field keys
// are renamed to backend keys.
package mapper

import (
	"fmt"
	"strings"

	"quote-wizard/internal/model"
)

// ToRequest coerces every answered field per its kind and writes it under
// its backend key. The result depends only on its inputs.
func ToRequest(schema *model.FieldSchema, session *model.WizardSession) (*model.QuoteRequest, error) {
	if schema == nil || session == nil {
		return nil, &model.SubmissionError{Kind: model.RequestConstruction, Message: "Nothing to submit"}
	}
	if schema.Product != session.Product || schema.Country != session.Country {
		return nil, &model.SubmissionError{
			Kind:    model.RequestConstruction,
			Message: "Session does not match the selected product",
			Err:     fmt.Errorf("schema %s, session %s/%s", schema.Key(), session.Country, session.Product),
		}
	}

	req := &model.QuoteRequest{
		Country:    schema.Country.BackendName(),
		PolicyType: schema.Product.Code(),
		Fields:     make(map[string]any),
	}

	for _, step := range schema.Steps {
		for i := range step.Fields {
			def := &step.Fields[i]
			raw, ok := session.Answers[def.Key]
			if !ok || model.IsEmpty(raw) {
				continue
			}
			v, err := coerce(def, raw)
			if err != nil {
				return nil, &model.SubmissionError{
					Kind:    model.RequestConstruction,
					Message: "Some answers could not be sent",
					Err:     fmt.Errorf("field %s: %w", def.Key, err),
				}
			}
			req.Fields[def.BackendKey] = v
		}
	}

	for _, d := range schema.Derived {
		def, _, ok := schema.Field(d.Source)
		if !ok {
			return nil, &model.SubmissionError{Kind: model.RequestConstruction, Message: "Invalid schema", Err: fmt.Errorf("derived source %q", d.Source)}
		}
		rule, ok := Rule(d.Rule)
		if !ok {
			return nil, &model.SubmissionError{Kind: model.RequestConstruction, Message: "Invalid schema", Err: ruleError(d.Rule)}
		}
		if v, ok := rule.Derive(def, session.Answers[d.Source]); ok {
			req.Fields[d.BackendKey] = v
		}
	}

	return req, nil
}

func coerce(def *model.FieldDefinition, raw any) (any, error) {
	switch def.Kind {
	case model.KindInteger:
		return model.AnswerInt(raw)
	case model.KindDecimal:
		return model.AnswerNumber(raw)
	case model.KindText, model.KindSingleChoice:
		s, ok := model.AnswerString(raw)
		if !ok {
			return nil, fmt.Errorf("not text: %v", raw)
		}
		if def.Kind == model.KindSingleChoice {
			if o, ok := def.Option(s); ok {
				s = o
			}
		}
		if def.Lookup != "" {
			table, ok := Lookup(def.Lookup)
			if !ok {
				return nil, fmt.Errorf("unknown lookup %q", def.Lookup)
			}
			return table.Resolve(s), nil
		}
		return s, nil
	case model.KindMultiChoice:
		list, ok := selections(def, raw)
		if !ok {
			return nil, fmt.Errorf("not a list: %v", raw)
		}
		return strings.Join(list, ","), nil
	case model.KindBoolean:
		b, ok := model.AnswerBool(raw)
		if !ok {
			return nil, fmt.Errorf("not yes/no: %v", raw)
		}
		if b {
			return "Yes", nil
		}
		return "No", nil
	}
	return nil, fmt.Errorf("unsupported kind %q", def.Kind)
}

// selections returns a multi choice answer in the declared option spelling,
// each option once, with the exclusive option dropped when it is combined
// with others.
func selections(def *model.FieldDefinition, raw any) ([]string, bool) {
	list, ok := model.AnswerList(raw)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, v := range list {
		if o, ok := def.Option(v); ok {
			v = o
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if def.ExclusiveOption == "" || len(out) < 2 {
		return out, true
	}
	kept := out[:0]
	for _, v := range out {
		if !strings.EqualFold(v, def.ExclusiveOption) {
			kept = append(kept, v)
		}
	}
	return kept, true
}
