// Package consensus implements component C6: the pure fast-path/fallback
// consensus state machine used by Category C coordination sessions to
// agree on an operation's result. Every transition here is a pure function
// of state and input — no I/O, no suspension — ported in meaning from
// _examples/original_source/crates/aura-consensus/src/core/transitions.rs,
// written the way the teacher's pkg/consensus types are declared (plain
// structs, string/byte ids, explicit (value, error) returns rather than a
// Result enum).
package consensus

import (
	"github.com/hxrts/aura/pkg/crypto/threshold"
	"github.com/hxrts/aura/pkg/ids"
)

// Phase is one of the four consensus instance states (spec §4.6).
type Phase uint8

const (
	PhaseFastPathActive Phase = iota
	PhaseFallbackActive
	PhaseCommitted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseFastPathActive:
		return "fast_path_active"
	case PhaseFallbackActive:
		return "fallback_active"
	case PhaseCommitted:
		return "committed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PathSelection chooses which phase a new instance starts in.
type PathSelection uint8

const (
	PathFast PathSelection = iota
	PathFallback
)

// ResultId identifies one candidate outcome witnesses vote for.
type ResultId [32]byte

// ShareProposal is one witness's vote for a result, carrying its threshold
// signature share over that result.
type ShareProposal struct {
	Witness  ids.AuthorityId
	ResultId ResultId
	Share    threshold.SignatureShare
}

// CommitFact is the record produced once an instance commits, regardless
// of path.
type CommitFact struct {
	ConsensusId  ids.ID256
	ResultId     ResultId
	PrestateHash [32]byte
	Signature    *threshold.Signature
}

// State is one consensus instance's full state, cloned on every transition
// so callers can hold onto prior states (e.g. for audit or replay) without
// aliasing.
type State struct {
	ConsensusId   ids.ID256
	Operation     string
	PrestateHash  [32]byte
	Threshold     int
	Witnesses     map[ids.AuthorityId]bool
	Initiator     ids.AuthorityId
	Phase         Phase
	Proposals     []ShareProposal
	Equivocators  map[ids.AuthorityId]bool
	CommitFact    *CommitFact
	FallbackTimer bool
	FailureReason string
}

// NewState starts a fresh instance in the phase dictated by path, without
// enforcing start's preconditions — callers should use StartConsensus.
func NewState(cid ids.ID256, operation string, prestateHash [32]byte, threshold int, witnesses []ids.AuthorityId, initiator ids.AuthorityId, path PathSelection) *State {
	w := make(map[ids.AuthorityId]bool, len(witnesses))
	for _, id := range witnesses {
		w[id] = true
	}
	phase := PhaseFastPathActive
	if path == PathFallback {
		phase = PhaseFallbackActive
	}
	return &State{
		ConsensusId:  cid,
		Operation:    operation,
		PrestateHash: prestateHash,
		Threshold:    threshold,
		Witnesses:    w,
		Initiator:    initiator,
		Phase:        phase,
		Equivocators: make(map[ids.AuthorityId]bool),
	}
}

func (s *State) clone() *State {
	cp := &State{
		ConsensusId:   s.ConsensusId,
		Operation:     s.Operation,
		PrestateHash:  s.PrestateHash,
		Threshold:     s.Threshold,
		Witnesses:     s.Witnesses, // immutable after NewState; shared is safe
		Initiator:     s.Initiator,
		Phase:         s.Phase,
		Proposals:     append([]ShareProposal(nil), s.Proposals...),
		Equivocators:  make(map[ids.AuthorityId]bool, len(s.Equivocators)),
		CommitFact:    s.CommitFact,
		FallbackTimer: s.FallbackTimer,
		FailureReason: s.FailureReason,
	}
	for k := range s.Equivocators {
		cp.Equivocators[k] = true
	}
	return cp
}

func (s *State) isActive() bool {
	return s.Phase == PhaseFastPathActive || s.Phase == PhaseFallbackActive
}

func (s *State) hasProposal(witness ids.AuthorityId) bool {
	for _, p := range s.Proposals {
		if p.Witness == witness {
			return true
		}
	}
	return false
}

func (s *State) countProposalsFor(rid ResultId) int {
	n := 0
	for _, p := range s.Proposals {
		if p.ResultId == rid {
			n++
		}
	}
	return n
}

// thresholdMet reports whether any result_id has reached Threshold votes.
func (s *State) thresholdMet() bool {
	_, ok := s.majorityResult()
	return ok
}

// majorityResult returns the first result_id (in proposal order) whose
// vote count has reached Threshold.
func (s *State) majorityResult() (ResultId, bool) {
	counts := make(map[ResultId]int)
	for _, p := range s.Proposals {
		counts[p.ResultId]++
		if counts[p.ResultId] >= s.Threshold {
			return p.ResultId, true
		}
	}
	return ResultId{}, false
}

func (s *State) attestersFor(rid ResultId) []ids.AuthorityId {
	var out []ids.AuthorityId
	for _, p := range s.Proposals {
		if p.ResultId == rid {
			out = append(out, p.Witness)
		}
	}
	return out
}
