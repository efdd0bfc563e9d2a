package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quote-wizard/internal/model"
	"quote-wizard/internal/schemaregistry"
)

type fakeRecommender struct {
	mu      sync.Mutex
	calls   []*model.QuoteRequest
	result  *model.RecommendationResult
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeRecommender) Recommend(ctx context.Context, req *model.QuoteRequest) (*model.RecommendationResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.result, f.err
}

func (f *fakeRecommender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func sampleResult() *model.RecommendationResult {
	return &model.RecommendationResult{
		RecommendedTier: "Standard",
		AllTiers:        model.Tiers{{Name: "Basic", Price: 1000}, {Name: "Standard", Price: 2000}},
		Confidence:      map[string]float64{"standard": 0.8},
	}
}

func newController(t *testing.T, rec Recommender) *Controller {
	t.Helper()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return New(schemaregistry.Default(), rec, nil, WithClock(func() time.Time { return fixed }))
}

// fillHealthIndia answers every step of the India health wizard and
// leaves the controller on the last step.
func fillHealthIndia(t *testing.T, c *Controller) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.Start(model.ProductHealth, model.CountryIndia))

	_, err := c.EditField("age", "25")
	require.NoError(t, err)
	moved, err := c.Advance(ctx)
	require.NoError(t, err)
	require.True(t, moved)

	_, err = c.EditField("sum_assured", 150000)
	require.NoError(t, err)
	moved, err = c.Advance(ctx)
	require.NoError(t, err)
	require.True(t, moved)
	require.Equal(t, 2, c.Snapshot().Session.CurrentStepIndex)
}

func TestStartSeedsOnlyFlaggedDefaults(t *testing.T) {
	c := newController(t, &fakeRecommender{})
	require.NoError(t, c.Start(model.ProductHealth, model.CountryIndia))

	snap := c.Snapshot()
	assert.Equal(t, StateStep, snap.State)
	assert.Equal(t, 0, snap.Session.CurrentStepIndex)
	assert.NotEmpty(t, snap.Session.ID)
	assert.Equal(t, "no", snap.Session.Answers["smoker_drinker"])
	assert.Equal(t, []string{"None"}, snap.Session.Answers["diseases"])
	assert.Equal(t, "INR", snap.Profile.Code)

	require.NoError(t, c.Start(model.ProductTravel, model.CountryIndia))
	snap = c.Snapshot()
	_, seeded := snap.Session.Answers["existing_medical_condition"]
	assert.False(t, seeded)
	assert.Equal(t, "yes", snap.Session.Answers["health_coverage"])
}

func TestStartUnknownPair(t *testing.T) {
	c := newController(t, &fakeRecommender{})
	err := c.Start(model.ProductType("pet"), model.CountryIndia)
	assert.ErrorIs(t, err, model.ErrUnknownProduct)

	err = c.Start(model.ProductHealth, model.Country("FR"))
	assert.ErrorIs(t, err, model.ErrUnknownProduct)
	assert.Equal(t, StateNone, c.State())
}

func TestAdvanceGatedByValidation(t *testing.T) {
	c := newController(t, &fakeRecommender{})
	require.NoError(t, c.Start(model.ProductHealth, model.CountryIndia))

	moved, err := c.Advance(context.Background())
	require.NoError(t, err)
	assert.False(t, moved)
	snap := c.Snapshot()
	assert.Equal(t, 0, snap.Session.CurrentStepIndex)
	require.Contains(t, snap.Session.Errors, "age")
	assert.ErrorIs(t, snap.Session.Errors["age"], model.ErrRequired)

	verr, err := c.EditField("age", 15)
	require.NoError(t, err)
	require.NotNil(t, verr)
	assert.ErrorIs(t, verr, model.ErrRange)

	moved, err = c.Advance(context.Background())
	require.NoError(t, err)
	assert.False(t, moved)

	verr, err = c.EditField("age", 40)
	require.NoError(t, err)
	assert.Nil(t, verr)
	assert.NotContains(t, c.Snapshot().Session.Errors, "age")

	moved, err = c.Advance(context.Background())
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, 1, c.Snapshot().Session.CurrentStepIndex)
}

func TestTravelMedicalConditionMustBeTouched(t *testing.T) {
	c := newController(t, &fakeRecommender{})
	require.NoError(t, c.Start(model.ProductTravel, model.CountryIndia))
	_, err := c.EditField("age", 30)
	require.NoError(t, err)

	moved, err := c.Advance(context.Background())
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Contains(t, c.Snapshot().Session.Errors, "existing_medical_condition")

	_, err = c.EditField("existing_medical_condition", "No")
	require.NoError(t, err)
	moved, err = c.Advance(context.Background())
	require.NoError(t, err)
	assert.True(t, moved)
}

func TestEditFieldValidatesOnlyThatField(t *testing.T) {
	c := newController(t, &fakeRecommender{})
	require.NoError(t, c.Start(model.ProductHealth, model.CountryIndia))

	_, err := c.EditField("sum_assured", 10)
	require.NoError(t, err)
	snap := c.Snapshot()
	assert.Contains(t, snap.Session.Errors, "sum_assured")
	assert.NotContains(t, snap.Session.Errors, "age")
	assert.True(t, snap.Session.Touched["sum_assured"])
	assert.False(t, snap.Session.Touched["age"])

	_, err = c.EditField("no_such_field", 1)
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestBackNeverMutatesAnswers(t *testing.T) {
	c := newController(t, &fakeRecommender{})
	fillHealthIndia(t, c)
	_, err := c.EditField("smoker_drinker", "not sure")
	require.NoError(t, err)

	before := c.Snapshot().Session.Answers
	require.NoError(t, c.Back())
	require.NoError(t, c.Back())
	require.NoError(t, c.Back())

	snap := c.Snapshot()
	assert.Equal(t, 0, snap.Session.CurrentStepIndex)
	assert.Equal(t, before, snap.Session.Answers)
}

func TestSubmitSuccess(t *testing.T) {
	rec := &fakeRecommender{result: sampleResult()}
	c := newController(t, rec)
	fillHealthIndia(t, c)

	moved, err := c.Advance(context.Background())
	require.NoError(t, err)
	assert.True(t, moved)

	snap := c.Snapshot()
	assert.Equal(t, StateSucceeded, snap.State)
	assert.Equal(t, model.StatusSucceeded, snap.Session.Status)
	assert.Equal(t, "Standard", snap.Result.RecommendedTier)

	require.Equal(t, 1, rec.callCount())
	req := rec.calls[0]
	assert.Equal(t, "INDIA", req.Country)
	assert.Equal(t, "HEALTH", req.PolicyType)
	assert.Equal(t, map[string]any{
		"age":           25,
		"sumassured":    float64(150000),
		"smokerdrinker": "No",
		"diseases":      "None",
	}, req.Fields)

	res, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap.Result, res)
	assert.Equal(t, 1, rec.callCount())
}

func TestSubmitNotLastStep(t *testing.T) {
	c := newController(t, &fakeRecommender{result: sampleResult()})
	require.NoError(t, c.Start(model.ProductHealth, model.CountryIndia))

	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotLastStep)
}

func TestSubmitRevalidatesEarlierSteps(t *testing.T) {
	rec := &fakeRecommender{result: sampleResult()}
	c := newController(t, rec)
	fillHealthIndia(t, c)

	_, err := c.EditField("age", "")
	require.NoError(t, err)

	_, err = c.Submit(context.Background())
	require.ErrorIs(t, err, ErrStepInvalid)
	snap := c.Snapshot()
	assert.Equal(t, 0, snap.Session.CurrentStepIndex)
	assert.Equal(t, StateStep, snap.State)
	assert.Zero(t, rec.callCount())
}

func TestSubmitFailureKeepsAnswers(t *testing.T) {
	rec := &fakeRecommender{err: &model.SubmissionError{Kind: model.Connectivity, Message: "Could not connect to server. Please try again later."}}
	c := newController(t, rec)
	fillHealthIndia(t, c)

	_, err := c.Submit(context.Background())
	require.ErrorIs(t, err, model.ErrConnectivity)

	snap := c.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, "Could not connect to server. Please try again later.", snap.Failure)
	assert.True(t, snap.Retryable)
	assert.Equal(t, 25, mustInt(t, snap.Session.Answers["age"]))

	rec.err = nil
	rec.result = sampleResult()
	res, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Standard", res.RecommendedTier)
	assert.Equal(t, 2, rec.callCount())
}

func TestEditAfterFailureReturnsToLastStep(t *testing.T) {
	rec := &fakeRecommender{err: &model.ContractError{Kind: model.NoRecommendation}}
	c := newController(t, rec)
	fillHealthIndia(t, c)

	_, err := c.Submit(context.Background())
	require.ErrorIs(t, err, model.ErrNoRecommendation)
	snap := c.Snapshot()
	assert.False(t, snap.Retryable)
	assert.Equal(t, "No recommendations available. Please check your inputs and try again.", snap.Failure)

	_, err = c.EditField("diseases", []any{"Diabetes"})
	require.NoError(t, err)
	snap = c.Snapshot()
	assert.Equal(t, StateStep, snap.State)
	assert.Equal(t, 2, snap.Session.CurrentStepIndex)
	assert.Empty(t, snap.Failure)
	assert.Equal(t, []string{"Diabetes"}, snap.Session.Answers["diseases"])
}

func TestLateResponseDiscarded(t *testing.T) {
	rec := &fakeRecommender{
		result:  sampleResult(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c := newController(t, rec)
	fillHealthIndia(t, c)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		errCh <- err
	}()
	<-rec.entered

	assert.Equal(t, StateSubmitting, c.State())
	_, err := c.EditField("age", 30)
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	_, err = c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	require.NoError(t, c.Start(model.ProductVehicle, model.CountryAustralia))
	close(rec.release)

	require.ErrorIs(t, <-errCh, ErrSessionAbandoned)
	snap := c.Snapshot()
	assert.Equal(t, StateStep, snap.State)
	assert.Equal(t, model.ProductVehicle, snap.Session.Product)
	assert.Nil(t, snap.Result)
	assert.Equal(t, model.StatusIdle, snap.Session.Status)
}

func TestAbandon(t *testing.T) {
	c := newController(t, &fakeRecommender{})
	require.NoError(t, c.Start(model.ProductLife, model.CountryAustralia))
	c.Abandon()

	assert.Equal(t, StateNone, c.State())
	_, err := c.EditField("age", 30)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.ErrorIs(t, c.Back(), ErrNoSession)
	_, err = c.Advance(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Nil(t, c.Snapshot().Session)
}

func TestRestore(t *testing.T) {
	c := newController(t, &fakeRecommender{})
	s := model.NewSession("restored-1", model.ProductHouse, model.CountryIndia, time.Now())
	s.CurrentStepIndex = 7
	s.Status = model.StatusSubmitting
	s.Answers["age"] = 44

	require.NoError(t, c.Restore(s))
	snap := c.Snapshot()
	assert.Equal(t, StateStep, snap.State)
	assert.Equal(t, "restored-1", snap.Session.ID)
	assert.Equal(t, snap.Schema.StepCount()-1, snap.Session.CurrentStepIndex)
	assert.Equal(t, model.StatusIdle, snap.Session.Status)

	snap.Session.Answers["age"] = 99
	assert.Equal(t, 44, c.Snapshot().Session.Answers["age"])

	failed := model.NewSession("restored-2", model.ProductHouse, model.CountryIndia, time.Now())
	failed.Status = model.StatusFailed
	failed.Failure = "Server error occurred"
	require.NoError(t, c.Restore(failed))
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, "Server error occurred", c.Snapshot().Failure)

	assert.True(t, errors.Is(c.Restore(nil), ErrNoSession))
}

func TestRestoreKeepsFailureKind(t *testing.T) {
	cases := []struct {
		name             string
		err              error
		retryable        bool
		noRecommendation bool
	}{
		{"connectivity", &model.SubmissionError{Kind: model.Connectivity, Message: "Could not connect to server. Please try again later."}, true, false},
		{"timeout", &model.SubmissionError{Kind: model.Timeout, Message: "Request timed out. Please try again."}, true, false},
		{"no recommendation", &model.ContractError{Kind: model.NoRecommendation}, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &fakeRecommender{err: tc.err}
			live := newController(t, rec)
			fillHealthIndia(t, live)
			_, err := live.Submit(context.Background())
			require.Error(t, err)

			before := live.Snapshot()
			require.Equal(t, StateFailed, before.State)
			assert.Equal(t, tc.retryable, before.Retryable)
			assert.Equal(t, tc.noRecommendation, before.NoRecommendation)

			restored := newController(t, rec)
			require.NoError(t, restored.Restore(before.Session))
			after := restored.Snapshot()
			assert.Equal(t, StateFailed, after.State)
			assert.Equal(t, before.Failure, after.Failure)
			assert.Equal(t, tc.retryable, after.Retryable)
			assert.Equal(t, tc.noRecommendation, after.NoRecommendation)

			rec.err = nil
			rec.result = sampleResult()
			_, err = restored.Submit(context.Background())
			require.NoError(t, err)
			assert.Empty(t, restored.Snapshot().Session.FailureKind)
		})
	}
}

func TestSummary(t *testing.T) {
	c := newController(t, &fakeRecommender{})
	fillHealthIndia(t, c)
	_, err := c.EditField("diseases", []string{"Diabetes", "Asthma"})
	require.NoError(t, err)

	items := c.Snapshot().Summary()
	require.Len(t, items, 4)
	assert.Equal(t, SummaryItem{Key: "age", Label: "Age", Value: "25"}, items[0])
	assert.Equal(t, SummaryItem{Key: "sum_assured", Label: "Sum Assured (₹)", Value: "150000"}, items[1])
	assert.Equal(t, "No", items[2].Value)
	assert.Equal(t, "Diabetes, Asthma", items[3].Value)
}

func mustInt(t *testing.T, v any) int {
	t.Helper()
	n, err := model.AnswerInt(v)
	require.NoError(t, err)
	return n
}
