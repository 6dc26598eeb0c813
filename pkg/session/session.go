// Package session implements component C5: coordination session lifecycle,
// collision detection via a deterministic context_id, and the lottery that
// elects exactly one winner among devices racing to run the same protocol
// instance. Grounded in shape on the teacher's validator coordination
// primitives (single-writer state transitions guarded by a mutex, fact-style
// lifecycle events) and directly on spec §4.5.
package session

import (
	"sync"

	"github.com/hxrts/aura/pkg/crypto"
	"github.com/hxrts/aura/pkg/ids"
)

// State is a coordination session's lifecycle stage (spec §3: "Pending →
// Active (on win of collision lottery) → Completed | Aborted").
type State uint8

const (
	StatePending State = iota
	StateActive
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Session is one coordination-session instance.
type Session struct {
	SessionId     ids.SessionId
	OperationType string
	ContextId     ids.ContextId
	Participants  []ids.DeviceId
	CreatedAt     ids.PhysicalTime

	mu          sync.Mutex
	state       State
	completedAt *ids.PhysicalTime
	result      any
	abortErr    error
	done        chan struct{}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) CompletedAt() (ids.PhysicalTime, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completedAt == nil {
		return ids.PhysicalTime{}, false
	}
	return *s.completedAt, true
}

// ComputeContextId derives the deterministic collision key spec §4.5 step 1
// requires: `H(operation_type ∥ op-specific inputs)`, truncated to the
// 128-bit ContextId space.
func ComputeContextId(operationType string, opInputs ...[]byte) ids.ContextId {
	parts := append([][]byte{[]byte(operationType)}, opInputs...)
	digest := crypto.Hash(parts...)
	var ctxID ids.ContextId
	copy(ctxID[:], digest[:16])
	return ctxID
}

// WinsLottery reports whether self is the deterministic winner among the
// proposers racing for the same context: the lexicographically least
// participant id, per spec §4.5 step 2's example rule.
func WinsLottery(self ids.DeviceId, proposers []ids.DeviceId) bool {
	for _, p := range proposers {
		if p != self && p.Less(self) {
			return false
		}
	}
	return true
}
