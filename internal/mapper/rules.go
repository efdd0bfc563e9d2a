package mapper

import (
	"fmt"
	"strings"

	"quote-wizard/internal/model"
)

// DeriveRule computes a backend value from the source field's answer.
// ok is false when nothing should be sent.
type DeriveRule interface {
	Derive(def *model.FieldDefinition, raw any) (value any, ok bool)
}

var rules = map[string]DeriveRule{
	"count": countRule{},
}

// Rule returns a registered derive rule.
func Rule(name string) (DeriveRule, bool) {
	r, ok := rules[name]
	return r, ok
}

// countRule counts the selections of a multi choice answer after the
// exclusive option has been dropped.
type countRule struct{}

func (countRule) Derive(def *model.FieldDefinition, raw any) (any, bool) {
	if def.Kind != model.KindMultiChoice {
		return nil, false
	}
	selected, ok := selections(def, raw)
	if !ok {
		return nil, false
	}
	if len(selected) == 1 && strings.EqualFold(selected[0], def.ExclusiveOption) {
		return 0, true
	}
	return len(selected), true
}

func ruleError(name string) error {
	return fmt.Errorf("unknown derive rule %q", name)
}
