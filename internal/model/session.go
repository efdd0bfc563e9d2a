package model

import "time"

// SubmissionStatus tracks where a session is in the submit lifecycle.
type SubmissionStatus string

const (
	StatusIdle       SubmissionStatus = "IDLE"
	StatusValidating SubmissionStatus = "VALIDATING"
	StatusSubmitting SubmissionStatus = "SUBMITTING"
	StatusSucceeded  SubmissionStatus = "SUCCEEDED"
	StatusFailed     SubmissionStatus = "FAILED"
)

// WizardSession is the mutable state of one user's pass through a wizard.
type WizardSession struct {
	ID               string                      `json:"id"`
	Product          ProductType                 `json:"product"`
	Country          Country                     `json:"country"`
	CurrentStepIndex int                         `json:"current_step_index"`
	Answers          map[string]any              `json:"answers"`
	Touched          map[string]bool             `json:"touched"`
	Errors           map[string]*ValidationError `json:"errors"`
	Status           SubmissionStatus            `json:"submission_status"`
	Failure          string                      `json:"failure,omitempty"`
	FailureKind      string                      `json:"failure_kind,omitempty"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

// NewSession returns an empty session at the first step.
func NewSession(id string, product ProductType, country Country, now time.Time) *WizardSession {
	return &WizardSession{
		ID:        id,
		Product:   product,
		Country:   country,
		Answers:   map[string]any{},
		Touched:   map[string]bool{},
		Errors:    map[string]*ValidationError{},
		Status:    StatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy whose maps can be mutated independently.
// Answer values are shared; multi choice slices are copied.
func (s *WizardSession) Clone() *WizardSession {
	if s == nil {
		return nil
	}
	c := *s
	c.Answers = make(map[string]any, len(s.Answers))
	for k, v := range s.Answers {
		if list, ok := v.([]string); ok {
			v = append([]string(nil), list...)
		}
		c.Answers[k] = v
	}
	c.Touched = make(map[string]bool, len(s.Touched))
	for k, v := range s.Touched {
		c.Touched[k] = v
	}
	c.Errors = make(map[string]*ValidationError, len(s.Errors))
	for k, v := range s.Errors {
		c.Errors[k] = v
	}
	return &c
}
