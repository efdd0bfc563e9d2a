package model

import (
	"errors"
	"fmt"
)

// ValidationKind classifies a field-level validation failure.
type ValidationKind string

const (
	Required ValidationKind = "required"
	Range    ValidationKind = "range"
	Format   ValidationKind = "format"
)

// ValidationError is a field-level failure. It never leaves the wizard.
type ValidationError struct {
	Field   string         `json:"field"`
	Kind    ValidationKind `json:"kind"`
	Message string         `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Field == "" && t.Kind == e.Kind
}

var (
	ErrRequired = &ValidationError{Kind: Required}
	ErrRange    = &ValidationError{Kind: Range}
	ErrFormat   = &ValidationError{Kind: Format}
)

// SubmissionKind classifies a transport failure.
type SubmissionKind string

const (
	Connectivity        SubmissionKind = "connectivity"
	ServerDetail        SubmissionKind = "server_detail"
	Timeout             SubmissionKind = "timeout"
	RequestConstruction SubmissionKind = "request_construction"
)

// SubmissionError is a network or transport failure. The user may retry.
type SubmissionError struct {
	Kind    SubmissionKind
	Message string
	Status  int
	Err     error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submission %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("submission %s: %s", e.Kind, e.Message)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Is matches on kind. A timeout also matches Connectivity.
func (e *SubmissionError) Is(target error) bool {
	t, ok := target.(*SubmissionError)
	if !ok || t.Message != "" {
		return false
	}
	return t.Kind == e.Kind || (t.Kind == Connectivity && e.Kind == Timeout)
}

var (
	ErrConnectivity        = &SubmissionError{Kind: Connectivity}
	ErrServerDetail        = &SubmissionError{Kind: ServerDetail}
	ErrTimeout             = &SubmissionError{Kind: Timeout}
	ErrRequestConstruction = &SubmissionError{Kind: RequestConstruction}
)

// ContractKind classifies a response that does not match the expected shape.
type ContractKind string

const (
	NoRecommendation  ContractKind = "no_recommendation"
	MalformedResponse ContractKind = "malformed_response"
)

// ContractError means the backend answered but not with a usable recommendation.
type ContractError struct {
	Kind ContractKind
	Err  error
}

func (e *ContractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("contract %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("contract %s", e.Kind)
}

func (e *ContractError) Unwrap() error { return e.Err }

func (e *ContractError) Is(target error) bool {
	t, ok := target.(*ContractError)
	return ok && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrNoRecommendation  = &ContractError{Kind: NoRecommendation}
	ErrMalformedResponse = &ContractError{Kind: MalformedResponse}
)

// ConfigurationKind classifies a registry defect.
type ConfigurationKind string

const (
	UnknownProduct ConfigurationKind = "unknown_product"
	UnknownCountry ConfigurationKind = "unknown_country"
)

// ConfigurationError is a programming or configuration defect.
type ConfigurationError struct {
	Kind  ConfigurationKind
	Value string
}

func (e *ConfigurationError) Error() string {
	switch e.Kind {
	case UnknownProduct:
		return fmt.Sprintf("unknown product: %q", e.Value)
	case UnknownCountry:
		return fmt.Sprintf("unknown country: %q", e.Value)
	}
	return fmt.Sprintf("configuration error %s: %q", e.Kind, e.Value)
}

func (e *ConfigurationError) Is(target error) bool {
	t, ok := target.(*ConfigurationError)
	return ok && t.Value == "" && t.Kind == e.Kind
}

var (
	ErrUnknownProduct = &ConfigurationError{Kind: UnknownProduct}
	ErrUnknownCountry = &ConfigurationError{Kind: UnknownCountry}
)

// UserMessage returns the text shown to the user for a failed submission.
func UserMessage(err error) string {
	var se *SubmissionError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	var ce *ContractError
	if errors.As(err, &ce) {
		return "No recommendations available. Please check your inputs and try again."
	}
	return "Failed to get recommendations. Please try again."
}

// Retryable reports whether resubmitting the same answers may succeed.
func Retryable(err error) bool {
	var se *SubmissionError
	if errors.As(err, &se) {
		return se.Kind != RequestConstruction
	}
	return false
}

// FailureKind names the kind of a submission or contract error so a failed
// session can be persisted and rebuilt. Other errors have no kind.
func FailureKind(err error) string {
	var se *SubmissionError
	if errors.As(err, &se) {
		return string(se.Kind)
	}
	var ce *ContractError
	if errors.As(err, &ce) {
		return string(ce.Kind)
	}
	return ""
}

// RestoreFailure rebuilds the error of a persisted failed session from its
// kind and user message.
func RestoreFailure(kind, message string) error {
	switch k := SubmissionKind(kind); k {
	case Connectivity, ServerDetail, Timeout, RequestConstruction:
		return &SubmissionError{Kind: k, Message: message}
	}
	switch k := ContractKind(kind); k {
	case NoRecommendation, MalformedResponse:
		return &ContractError{Kind: k}
	}
	if message == "" {
		message = UserMessage(nil)
	}
	return errors.New(message)
}
