// Package engine manages the live wizard controllers behind the HTTP API:
// one controller per session id, persisted to a session store after every
// change and rehydrated from it on demand.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"quote-wizard/internal/logger"
	"quote-wizard/internal/metrics"
	"quote-wizard/internal/model"
	"quote-wizard/internal/session"
	"quote-wizard/internal/wizard"
)

type entry struct {
	ctrl     *wizard.Controller
	lastSeen time.Time
}

type Engine struct {
	schemas wizard.SchemaSource
	client  wizard.Recommender
	store   session.Store
	metrics *metrics.Collector
	log     *logger.Logger
	now     func() time.Time

	mu   sync.Mutex
	live map[string]*entry
}

func New(schemas wizard.SchemaSource, client wizard.Recommender, store session.Store, m *metrics.Collector, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Engine{
		schemas: schemas,
		client:  client,
		store:   store,
		metrics: m,
		log:     log.With("component", "engine"),
		now:     time.Now,
		live:    make(map[string]*entry),
	}
}

// Create starts a new wizard session.
func (e *Engine) Create(ctx context.Context, product model.ProductType, country model.Country) (wizard.Snapshot, error) {
	id := uuid.New().String()
	ctrl := e.newController(id)
	if err := ctrl.Start(product, country); err != nil {
		return wizard.Snapshot{}, err
	}

	e.mu.Lock()
	e.live[id] = &entry{ctrl: ctrl, lastSeen: e.now()}
	n := len(e.live)
	e.mu.Unlock()

	e.metrics.SessionStarted(string(product), string(country))
	e.metrics.SetLiveSessions(n)
	return e.persist(ctx, ctrl)
}

// Get returns the current view of a session, loading it from the store
// when it is not live.
func (e *Engine) Get(ctx context.Context, id string) (wizard.Snapshot, error) {
	ctrl, err := e.controller(ctx, id)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// Edit sets one answer. A value that fails validation is still recorded;
// the error is part of the returned view.
func (e *Engine) Edit(ctx context.Context, id, key string, value any) (wizard.Snapshot, error) {
	ctrl, err := e.controller(ctx, id)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	if _, err := ctrl.EditField(key, value); err != nil {
		return wizard.Snapshot{}, err
	}
	return e.persist(ctx, ctrl)
}

func (e *Engine) Back(ctx context.Context, id string) (wizard.Snapshot, error) {
	ctrl, err := e.controller(ctx, id)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	if err := ctrl.Back(); err != nil {
		return wizard.Snapshot{}, err
	}
	return e.persist(ctx, ctrl)
}

// Advance moves to the next step, submitting from the last one. A
// submission failure is reported in the view, not as an error.
func (e *Engine) Advance(ctx context.Context, id string) (wizard.Snapshot, error) {
	ctrl, err := e.controller(ctx, id)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	before := ctrl.Snapshot()
	start := e.now()
	_, err = ctrl.Advance(ctx)
	e.observe(before, ctrl.Snapshot(), err, e.now().Sub(start))
	if err := passThrough(err); err != nil {
		return wizard.Snapshot{}, err
	}
	return e.persist(ctx, ctrl)
}

// Submit submits from the last step or retries a failed submission.
func (e *Engine) Submit(ctx context.Context, id string) (wizard.Snapshot, error) {
	ctrl, err := e.controller(ctx, id)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	before := ctrl.Snapshot()
	start := e.now()
	_, err = ctrl.Submit(ctx)
	e.observe(before, ctrl.Snapshot(), err, e.now().Sub(start))
	if err := passThrough(err); err != nil {
		return wizard.Snapshot{}, err
	}
	return e.persist(ctx, ctrl)
}

// Select switches an existing session to another product or country. The
// old answers are discarded along with any submission in flight.
func (e *Engine) Select(ctx context.Context, id string, product model.ProductType, country model.Country) (wizard.Snapshot, error) {
	ctrl, err := e.controller(ctx, id)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	if err := ctrl.Start(product, country); err != nil {
		return wizard.Snapshot{}, err
	}
	e.metrics.SessionStarted(string(product), string(country))
	return e.persist(ctx, ctrl)
}

// Delete abandons and forgets a session.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	ent, ok := e.live[id]
	delete(e.live, id)
	n := len(e.live)
	e.mu.Unlock()

	if ok {
		ent.ctrl.Abandon()
	}
	e.metrics.SetLiveSessions(n)
	if err := e.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// Evict drops live controllers idle for longer than idle. Their stored
// snapshots remain and are rehydrated on the next request.
func (e *Engine) Evict(idle time.Duration) int {
	cutoff := e.now().Add(-idle)
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for id, ent := range e.live {
		if ent.lastSeen.Before(cutoff) && ent.ctrl.State() != wizard.StateSubmitting {
			delete(e.live, id)
			n++
		}
	}
	e.metrics.SetLiveSessions(len(e.live))
	return n
}

// RunEvictor evicts idle sessions and sweeps the store every interval
// until ctx is done.
func (e *Engine) RunEvictor(ctx context.Context, interval, idle time.Duration) error {
	if interval <= 0 || idle <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			e.sweep(idle)
		}
	}
}

// sweep evicts idle controllers and drops expired snapshots from stores
// that do not expire entries themselves.
func (e *Engine) sweep(idle time.Duration) {
	if n := e.Evict(idle); n > 0 {
		e.log.Debug("evicted idle sessions", "count", n)
	}
	if s, ok := e.store.(session.Sweeper); ok {
		if n := s.Sweep(); n > 0 {
			e.log.Debug("swept expired sessions", "count", n)
		}
	}
}

func (e *Engine) newController(id string) *wizard.Controller {
	return wizard.New(e.schemas, e.client, e.log, wizard.WithIDGenerator(func() string { return id }))
}

func (e *Engine) controller(ctx context.Context, id string) (*wizard.Controller, error) {
	e.mu.Lock()
	if ent, ok := e.live[id]; ok {
		ent.lastSeen = e.now()
		e.mu.Unlock()
		return ent.ctrl, nil
	}
	e.mu.Unlock()

	stored, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	ctrl := e.newController(id)
	if err := ctrl.Restore(stored); err != nil {
		return nil, fmt.Errorf("restore session %s: %w", id, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// Another request may have rehydrated it first.
	if ent, ok := e.live[id]; ok {
		return ent.ctrl, nil
	}
	e.live[id] = &entry{ctrl: ctrl, lastSeen: e.now()}
	e.metrics.SetLiveSessions(len(e.live))
	e.log.Debug("session rehydrated", "session", id)
	return ctrl, nil
}

// persist saves the session, or removes it once a recommendation arrived.
func (e *Engine) persist(ctx context.Context, ctrl *wizard.Controller) (wizard.Snapshot, error) {
	snap := ctrl.Snapshot()
	if snap.Session == nil {
		return snap, nil
	}
	var err error
	if snap.State == wizard.StateSucceeded {
		err = e.store.Delete(ctx, snap.Session.ID)
	} else {
		err = e.store.Save(ctx, snap.Session)
	}
	if err != nil {
		e.log.Error("session store failed", "session", snap.Session.ID, "error", err)
		return snap, fmt.Errorf("persist session: %w", err)
	}
	return snap, nil
}

// observe records a metric when the call actually attempted a submission.
func (e *Engine) observe(before, after wizard.Snapshot, err error, took time.Duration) {
	if before.Session == nil {
		return
	}
	switch {
	case errors.Is(err, wizard.ErrSessionAbandoned), errors.Is(err, wizard.ErrStepInvalid):
	case err == nil && after.State == wizard.StateSucceeded && before.State != wizard.StateSucceeded:
	case err != nil && after.State == wizard.StateFailed:
	default:
		return
	}
	product, country := string(before.Session.Product), string(before.Session.Country)
	var (
		se *model.SubmissionError
		ce *model.ContractError
	)
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, wizard.ErrSessionAbandoned):
		outcome = metrics.OutcomeDiscarded
	case errors.As(err, &se):
		outcome = metrics.OutcomeSubmissionError
	case errors.As(err, &ce):
		outcome = metrics.OutcomeContractError
	default:
		outcome = metrics.OutcomeInvalid
	}
	e.metrics.Submission(product, country, outcome, took)
}

// passThrough keeps errors that are the caller's fault. Submission
// outcomes are carried by the controller's state instead.
func passThrough(err error) error {
	var (
		se *model.SubmissionError
		ce *model.ContractError
	)
	if err == nil || errors.As(err, &se) || errors.As(err, &ce) || errors.Is(err, wizard.ErrStepInvalid) {
		return nil
	}
	return err
}
