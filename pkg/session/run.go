package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hxrts/aura/pkg/effects"
	"github.com/hxrts/aura/pkg/ids"
)

// Protocol is a coordination protocol body (spec §4.5's `P: SessionLifecycle`):
// it runs once this device has won the collision lottery and the session has
// moved to Active, and returns the result to publish via SessionCompleted or
// the error to publish via SessionAborted.
type Protocol interface {
	Run(ctx context.Context, s *Session) (any, error)
}

// Registry is the set of coordination sessions known to this device, keyed
// by context_id — the collision-detection table spec §5 requires to be
// "serialized per context_id." In a real deployment, entries are populated
// both by this device's own Run calls and by SessionStarted/SessionCompleted
// facts observed from peers; this package models only the table and its
// wait/notify semantics, leaving fact observation to the journal/sync layers.
type Registry struct {
	mu       sync.Mutex
	sessions map[ids.ContextId]*Session
	waiters  map[ids.ContextId][]chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[ids.ContextId]*Session),
		waiters:  make(map[ids.ContextId][]chan struct{}),
	}
}

// Lookup returns the session registered for a context, if any.
func (r *Registry) Lookup(contextID ids.ContextId) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[contextID]
	return s, ok
}

func (r *Registry) getOrCreate(contextID ids.ContextId, operationType string, participants []ids.DeviceId, now ids.PhysicalTime) (s *Session, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[contextID]; ok {
		return existing, false
	}
	s = &Session{
		// SessionId is scoped to this device's in-memory registry only — it
		// never needs to be deterministic or effect-boundary-controlled the
		// way fact ids do, so it's minted via a standard random UUID rather
		// than routed through the effects.Simulated entropy source.
		SessionId:     ids.ID128(uuid.New()),
		OperationType: operationType,
		ContextId:     contextID,
		Participants:  participants,
		CreatedAt:     now,
		state:         StateActive,
		done:          make(chan struct{}),
	}
	r.sessions[contextID] = s
	for _, w := range r.waiters[contextID] {
		close(w)
	}
	delete(r.waiters, contextID)
	return s, true
}

// awaitExisting blocks until a session is registered for contextID (if one
// isn't already) and then until that session completes, honoring ctx
// cancellation at both stages.
func (r *Registry) awaitExisting(ctx context.Context, contextID ids.ContextId) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[contextID]
	if !ok {
		waitCh := make(chan struct{})
		r.waiters[contextID] = append(r.waiters[contextID], waitCh)
		r.mu.Unlock()
		select {
		case <-waitCh:
		case <-ctx.Done():
			return nil, &Error{Kind: KindTimeout, Err: ctx.Err()}
		}
		r.mu.Lock()
		s, ok = r.sessions[contextID]
		r.mu.Unlock()
		if !ok {
			return nil, &Error{Kind: KindOther, Err: fmt.Errorf("session: no session registered for context after wait")}
		}
	} else {
		r.mu.Unlock()
	}

	select {
	case <-s.done:
		return s, nil
	case <-ctx.Done():
		return nil, &Error{Kind: KindTimeout, Err: ctx.Err()}
	}
}

func (s *Session) finish(result any, err error, now ids.PhysicalTime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	completedAt := now
	s.completedAt = &completedAt
	s.result = result
	if err != nil {
		s.state = StateAborted
		s.abortErr = err
	} else {
		s.state = StateCompleted
	}
	close(s.done)
}

// outcome returns the result a caller awaiting this (already-completed)
// session should receive.
func (s *Session) outcome() (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAborted {
		return nil, s.abortErr
	}
	return s.result, nil
}

// Run drives the full coordination-session lifecycle of spec §4.5: compute
// the deterministic context_id, check for a colliding session and await it
// if this device loses the lottery, otherwise create an Active session,
// run the protocol body, and transition to Completed or Aborted.
//
// proposers is the set of device ids known to be racing for this exact
// context (gathered by the caller from the intent that triggered this
// operation, e.g. all devices that received the same user action); self is
// this device's id.
func Run(
	ctx context.Context,
	reg *Registry,
	self ids.DeviceId,
	proposers []ids.DeviceId,
	operationType string,
	opInputs [][]byte,
	participants []ids.DeviceId,
	clock effects.ClockEffects,
	protocol Protocol,
) (ids.ContextId, any, error) {
	contextID := ComputeContextId(operationType, opInputs...)

	if !WinsLottery(self, proposers) {
		s, err := reg.awaitExisting(ctx, contextID)
		if err != nil {
			return contextID, nil, err
		}
		result, err := s.outcome()
		return contextID, result, err
	}

	now := clock.Physical()
	s, created := reg.getOrCreate(contextID, operationType, participants, now)
	if !created {
		// Another in-process caller already registered this context (e.g.
		// a racing re-entry from this same device); fall back to awaiting
		// it rather than running the protocol body twice.
		select {
		case <-s.done:
		case <-ctx.Done():
			return contextID, nil, &Error{Kind: KindTimeout, Err: ctx.Err()}
		}
		result, err := s.outcome()
		return contextID, result, err
	}

	result, err := protocol.Run(ctx, s)
	if err != nil && ctx.Err() != nil {
		err = &Error{Kind: KindOther, Err: Cancelled}
	}
	s.finish(result, err, clock.Physical())
	return contextID, result, err
}
