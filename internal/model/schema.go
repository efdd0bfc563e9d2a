package model

import "strings"

// FieldKind is the value type a field collects.
type FieldKind string

const (
	KindInteger      FieldKind = "integer"
	KindDecimal      FieldKind = "decimal"
	KindText         FieldKind = "text"
	KindSingleChoice FieldKind = "singleChoice"
	KindMultiChoice  FieldKind = "multiChoice"
	KindBoolean      FieldKind = "boolean"
)

// IsNumeric reports whether min/max apply to the kind.
func (k FieldKind) IsNumeric() bool {
	return k == KindInteger || k == KindDecimal
}

// IsChoice reports whether options apply to the kind.
func (k FieldKind) IsChoice() bool {
	return k == KindSingleChoice || k == KindMultiChoice
}

// FieldDefinition describes one question of a wizard step.
type FieldDefinition struct {
	Key        string    `json:"key" yaml:"key"`
	Label      string    `json:"label" yaml:"label"`
	Kind       FieldKind `json:"kind" yaml:"kind"`
	Required   bool      `json:"required" yaml:"required"`
	Min        *float64  `json:"min,omitempty" yaml:"min"`
	Max        *float64  `json:"max,omitempty" yaml:"max"`
	MinLength  int       `json:"min_length,omitempty" yaml:"min_length"`
	Options    []string  `json:"options,omitempty" yaml:"options"`
	BackendKey string    `json:"backend_key" yaml:"backend_key"`

	// Default is the pre-selected value shown for the field. It is only
	// written into the answers when DefaultSatisfiesRequired is set.
	Default                  any  `json:"default,omitempty" yaml:"default"`
	DefaultSatisfiesRequired bool `json:"default_satisfies_required,omitempty" yaml:"default_satisfies_required"`

	// ExclusiveOption is dropped from a multi choice answer when other
	// options are selected alongside it (e.g. "None").
	ExclusiveOption string `json:"exclusive_option,omitempty" yaml:"exclusive_option"`

	// Lookup names a value table the mapper applies before sending.
	Lookup string `json:"-" yaml:"lookup"`

	Messages map[ValidationKind]string `json:"-" yaml:"messages"`
}

// DisplayLabel renders the label for the given currency.
func (d FieldDefinition) DisplayLabel(p CurrencyProfile) string {
	return strings.ReplaceAll(d.Label, "{currency}", p.Symbol)
}

// Option returns the declared spelling of v. Matching ignores case and
// surrounding space.
func (d FieldDefinition) Option(v string) (string, bool) {
	v = strings.TrimSpace(v)
	for _, o := range d.Options {
		if strings.EqualFold(o, v) {
			return o, true
		}
	}
	return "", false
}

// HasOption reports whether v names one of the declared options.
func (d FieldDefinition) HasOption(v string) bool {
	_, ok := d.Option(v)
	return ok
}

// Step groups the fields shown on one wizard page.
type Step struct {
	Title  string            `json:"title" yaml:"title"`
	Fields []FieldDefinition `json:"fields" yaml:"fields"`
}

// DerivedField is a backend value computed from an answer rather than
// entered directly.
type DerivedField struct {
	BackendKey string `json:"backend_key" yaml:"backend_key"`
	Source     string `json:"source" yaml:"source"`
	Rule       string `json:"rule" yaml:"rule"`
}

// FieldSchema is the ordered step layout for one (product, country) pair.
type FieldSchema struct {
	Product ProductType    `json:"product" yaml:"product"`
	Country Country        `json:"country" yaml:"country"`
	Steps   []Step         `json:"steps" yaml:"steps"`
	Derived []DerivedField `json:"derived,omitempty" yaml:"derived"`
}

func (s *FieldSchema) Key() SchemaKey {
	return SchemaKey{Product: s.Product, Country: s.Country}
}

// StepCount returns the number of steps.
func (s *FieldSchema) StepCount() int {
	return len(s.Steps)
}

// Field finds a definition by key across all steps.
func (s *FieldSchema) Field(key string) (*FieldDefinition, int, bool) {
	for i := range s.Steps {
		for j := range s.Steps[i].Fields {
			if s.Steps[i].Fields[j].Key == key {
				return &s.Steps[i].Fields[j], i, true
			}
		}
	}
	return nil, -1, false
}

// Fields returns every definition in step order.
func (s *FieldSchema) Fields() []FieldDefinition {
	var out []FieldDefinition
	for _, st := range s.Steps {
		out = append(out, st.Fields...)
	}
	return out
}
