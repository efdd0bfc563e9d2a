package wizard

import (
	"errors"
	"strings"

	"quote-wizard/internal/model"
)

// Snapshot is a point-in-time copy of a controller. Callers may keep and
// read it freely; Session is a deep copy and Schema is shared read-only.
type Snapshot struct {
	State     State
	Session   *model.WizardSession
	Schema    *model.FieldSchema
	Profile   model.CurrencyProfile
	Result    *model.RecommendationResult
	Failure   string
	Retryable bool

	// NoRecommendation is set when the backend answered without a usable
	// recommendation, as opposed to a transport failure.
	NoRecommendation bool
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:   c.state,
		Session: c.session.Clone(),
		Schema:  c.schema,
		Profile: c.profile,
		Result:  c.result,
	}
	if c.failure != nil {
		snap.Failure = model.UserMessage(c.failure)
		snap.Retryable = model.Retryable(c.failure)
		var ce *model.ContractError
		snap.NoRecommendation = errors.As(c.failure, &ce)
		if c.session != nil && c.session.Failure != "" {
			snap.Failure = c.session.Failure
		}
	}
	return snap
}

// Step returns the current step, or nil without a session.
func (s Snapshot) Step() *model.Step {
	if s.Session == nil || s.Schema == nil {
		return nil
	}
	idx := s.Session.CurrentStepIndex
	if idx < 0 || idx >= len(s.Schema.Steps) {
		return nil
	}
	return &s.Schema.Steps[idx]
}

// SummaryItem is one answered field as shown back to the user.
type SummaryItem struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Summary lists the answered fields in step order with display labels.
// Lists are comma-joined and booleans shown as Yes/No.
func (s Snapshot) Summary() []SummaryItem {
	items := []SummaryItem{}
	if s.Session == nil || s.Schema == nil {
		return items
	}
	for _, def := range s.Schema.Fields() {
		raw, ok := s.Session.Answers[def.Key]
		if !ok || model.IsEmpty(raw) {
			continue
		}
		items = append(items, SummaryItem{
			Key:   def.Key,
			Label: def.DisplayLabel(s.Profile),
			Value: display(def, raw),
		})
	}
	return items
}

func display(def model.FieldDefinition, raw any) string {
	switch def.Kind {
	case model.KindMultiChoice:
		if list, ok := model.AnswerList(raw); ok {
			return strings.Join(list, ", ")
		}
	case model.KindBoolean:
		if b, ok := model.AnswerBool(raw); ok {
			if b {
				return "Yes"
			}
			return "No"
		}
	}
	if s, ok := model.AnswerString(raw); ok {
		return s
	}
	return ""
}
