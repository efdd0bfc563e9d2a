// Package wizard drives one user's pass through a quote wizard: step
// navigation gated by validation, editing, submission and the outcome.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"quote-wizard/internal/currency"
	"quote-wizard/internal/logger"
	"quote-wizard/internal/mapper"
	"quote-wizard/internal/model"
	"quote-wizard/internal/validation"
)

var (
	ErrNoSession          = errors.New("no active session")
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
	ErrNotLastStep        = errors.New("submit is only allowed from the last step")
	ErrUnknownField       = errors.New("unknown field")
	ErrStepInvalid        = errors.New("step has invalid answers")
	ErrSessionAbandoned   = errors.New("session was abandoned before the response arrived")
)

// State is the controller's position in the wizard lifecycle.
type State string

const (
	StateNone       State = "NONE"
	StateStep       State = "STEP"
	StateSubmitting State = "SUBMITTING"
	StateSucceeded  State = "SUCCEEDED"
	StateFailed     State = "FAILED"
)

// SchemaSource resolves the field schema of a (product, country) pair.
type SchemaSource interface {
	SchemaFor(model.ProductType, model.Country) (*model.FieldSchema, error)
}

// Recommender sends a quote request to the recommendation backend.
type Recommender interface {
	Recommend(context.Context, *model.QuoteRequest) (*model.RecommendationResult, error)
}

// Controller is safe for concurrent use. Every transition runs under mu;
// Submit releases it for the duration of the backend call.
type Controller struct {
	schemas SchemaSource
	client  Recommender
	log     *logger.Logger
	now     func() time.Time
	newID   func() string

	mu         sync.Mutex
	session    *model.WizardSession
	schema     *model.FieldSchema
	profile    model.CurrencyProfile
	state      State
	result     *model.RecommendationResult
	failure    error
	generation uint64
}

type Option func(*Controller)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator overrides how new session ids are made.
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) { c.newID = gen }
}

func New(schemas SchemaSource, client Recommender, log *logger.Logger, opts ...Option) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	c := &Controller{
		schemas: schemas,
		client:  client,
		log:     log.With("component", "wizard"),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
		state:   StateNone,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens a fresh session for the pair. Any current session is
// abandoned; a submission still in flight for it will be discarded.
func (c *Controller) Start(product model.ProductType, country model.Country) error {
	schema, err := c.schemas.SchemaFor(product, country)
	if err != nil {
		return err
	}
	profile, err := currency.ProfileFor(country)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()
	s := model.NewSession(c.newID(), product, country, c.now())
	seedDefaults(schema, s)
	c.session = s
	c.schema = schema
	c.profile = profile
	c.state = StateStep
	c.log.Debug("session started", "session", s.ID, "schema", schema.Key().String())
	return nil
}

// Restore resumes a persisted session. A session saved mid-submission
// comes back idle at its last step.
func (c *Controller) Restore(s *model.WizardSession) error {
	if s == nil {
		return ErrNoSession
	}
	schema, err := c.schemas.SchemaFor(s.Product, s.Country)
	if err != nil {
		return err
	}
	profile, err := currency.ProfileFor(s.Country)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()
	restored := s.Clone()
	restored.CurrentStepIndex = clamp(restored.CurrentStepIndex, schema.StepCount())
	c.state = StateStep
	switch restored.Status {
	case model.StatusSubmitting, model.StatusValidating:
		restored.Status = model.StatusIdle
	case model.StatusFailed:
		c.state = StateFailed
		c.failure = model.RestoreFailure(restored.FailureKind, restored.Failure)
	case model.StatusSucceeded:
		// The result is not persisted, so the user resubmits.
		restored.Status = model.StatusIdle
	}
	c.session = restored
	c.schema = schema
	c.profile = profile
	return nil
}

// Abandon discards the session. A late response for it is not applied.
func (c *Controller) Abandon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.log.Debug("session abandoned", "session", c.session.ID, "state", c.state)
	}
	c.reset()
}

func (c *Controller) reset() {
	c.generation++
	c.session = nil
	c.schema = nil
	c.result = nil
	c.failure = nil
	c.state = StateNone
}

// EditField records an answer and re-validates only that field. The
// returned ValidationError is nil when the value is acceptable.
func (c *Controller) EditField(key string, value any) (*model.ValidationError, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil, ErrNoSession
	}
	if c.state == StateSubmitting {
		return nil, ErrSubmissionInFlight
	}
	def, _, ok := c.schema.Field(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	c.leaveOutcome()

	value = normalize(def, value)
	if model.IsEmpty(value) {
		delete(c.session.Answers, key)
	} else {
		c.session.Answers[key] = value
	}
	c.session.Touched[key] = true

	verr := validation.ValidateField(def, value)
	if verr != nil {
		c.session.Errors[key] = verr
	} else {
		delete(c.session.Errors, key)
	}
	c.touch()
	return verr, nil
}

// Advance moves past the current step when it validates. On the last step
// it submits. It reports whether the wizard moved forward.
func (c *Controller) Advance(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return false, ErrNoSession
	}
	switch c.state {
	case StateSubmitting:
		c.mu.Unlock()
		return false, ErrSubmissionInFlight
	case StateFailed, StateSucceeded:
		c.mu.Unlock()
		_, err := c.Submit(ctx)
		return err == nil, err
	}

	idx := c.session.CurrentStepIndex
	if !c.validateStep(idx) {
		c.mu.Unlock()
		return false, nil
	}
	if idx < c.schema.StepCount()-1 {
		c.session.CurrentStepIndex++
		c.touch()
		c.mu.Unlock()
		return true, nil
	}
	c.mu.Unlock()

	_, err := c.Submit(ctx)
	return err == nil, err
}

// Back returns to the previous step without validating. It never changes
// answers. From an outcome it returns to the last step.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return ErrNoSession
	}
	switch c.state {
	case StateSubmitting:
		return ErrSubmissionInFlight
	case StateFailed, StateSucceeded:
		c.leaveOutcome()
	default:
		if c.session.CurrentStepIndex > 0 {
			c.session.CurrentStepIndex--
		}
	}
	c.touch()
	return nil
}

// Submit sends the answers to the recommendation backend. The backend
// call runs without the lock held; if the session is abandoned or
// replaced meanwhile, the response is dropped and ErrSessionAbandoned
// returned.
func (c *Controller) Submit(ctx context.Context) (*model.RecommendationResult, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, ErrNoSession
	}
	switch c.state {
	case StateSubmitting:
		c.mu.Unlock()
		return nil, ErrSubmissionInFlight
	case StateSucceeded:
		res := c.result
		c.mu.Unlock()
		return res, nil
	case StateFailed:
		c.leaveOutcome()
	}

	last := c.schema.StepCount() - 1
	if c.session.CurrentStepIndex != last {
		c.mu.Unlock()
		return nil, ErrNotLastStep
	}

	c.session.Status = model.StatusValidating
	for i := 0; i <= last; i++ {
		if !c.validateStep(i) {
			c.session.CurrentStepIndex = i
			c.session.Status = model.StatusIdle
			c.touch()
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: step %d", ErrStepInvalid, i+1)
		}
	}

	req, err := mapper.ToRequest(c.schema, c.session)
	if err != nil {
		c.fail(err)
		c.mu.Unlock()
		return nil, err
	}

	c.state = StateSubmitting
	c.session.Status = model.StatusSubmitting
	c.touch()
	gen := c.generation
	id := c.session.ID
	client := c.client
	c.mu.Unlock()

	c.log.Info("submitting quote", "session", id, "policy_type", req.PolicyType, "country", req.Country)
	res, err := client.Recommend(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen || c.session == nil {
		c.log.Warn("discarding late response", "session", id, "error", err)
		return nil, ErrSessionAbandoned
	}
	if err != nil {
		c.fail(err)
		c.log.Warn("submission failed", "session", id, "error", err)
		return nil, err
	}
	c.state = StateSucceeded
	c.session.Status = model.StatusSucceeded
	c.result = res
	c.touch()
	c.log.Info("recommendation received", "session", id, "recommended_tier", res.RecommendedTier)
	return res, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) fail(err error) {
	c.state = StateFailed
	c.failure = err
	c.session.Status = model.StatusFailed
	c.session.Failure = model.UserMessage(err)
	c.session.FailureKind = model.FailureKind(err)
	c.touch()
}

// leaveOutcome returns from Failed or Succeeded to the last step,
// keeping the answers.
func (c *Controller) leaveOutcome() {
	if c.state != StateFailed && c.state != StateSucceeded {
		return
	}
	c.state = StateStep
	c.result = nil
	c.failure = nil
	c.session.Status = model.StatusIdle
	c.session.Failure = ""
	c.session.FailureKind = ""
	c.session.CurrentStepIndex = c.schema.StepCount() - 1
}

// validateStep replaces the step's errors and reports whether it is clean.
func (c *Controller) validateStep(idx int) bool {
	for _, f := range c.schema.Steps[idx].Fields {
		delete(c.session.Errors, f.Key)
	}
	errs := validation.ValidateStep(c.schema, idx, c.session.Answers)
	for k, e := range errs {
		c.session.Errors[k] = e
	}
	return len(errs) == 0
}

func (c *Controller) touch() {
	c.session.UpdatedAt = c.now()
}

// seedDefaults writes defaults that count as answers. Other defaults are
// display hints only.
func seedDefaults(schema *model.FieldSchema, s *model.WizardSession) {
	for _, step := range schema.Steps {
		for i := range step.Fields {
			def := &step.Fields[i]
			if def.Default == nil || !def.DefaultSatisfiesRequired {
				continue
			}
			s.Answers[def.Key] = normalize(def, def.Default)
		}
	}
}

// normalize gives multi choice answers a []string shape.
func normalize(def *model.FieldDefinition, v any) any {
	if def.Kind != model.KindMultiChoice {
		return v
	}
	if list, ok := model.AnswerList(v); ok {
		return append([]string(nil), list...)
	}
	return v
}

func clamp(idx, count int) int {
	if idx < 0 || count == 0 {
		return 0
	}
	if idx >= count {
		return count - 1
	}
	return idx
}
