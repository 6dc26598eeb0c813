package consensus

import (
	"fmt"

	"github.com/hxrts/aura/pkg/crypto/threshold"
	"github.com/hxrts/aura/pkg/ids"
)

// StartConsensus opens a new instance for operation, starting it in the
// phase path dictates. Mirrors start_consensus in
// _examples/original_source/crates/aura-consensus/src/core/transitions.rs.
func StartConsensus(cid ids.ID256, operation string, prestateHash [32]byte, threshold int, witnesses []ids.AuthorityId, initiator ids.AuthorityId, path PathSelection) (*State, error) {
	if threshold <= 0 || threshold > len(witnesses) {
		return nil, notEnabled("threshold %d out of range for %d witnesses", threshold, len(witnesses))
	}
	found := false
	for _, w := range witnesses {
		if w == initiator {
			found = true
			break
		}
	}
	if !found {
		return nil, notEnabled("initiator is not among the witness set")
	}
	return NewState(cid, operation, prestateHash, threshold, witnesses, initiator, path), nil
}

// ApplyShare records witness's vote for a result.
//
// Equivocation handling is an explicit departure from the reachable
// behavior of original_source's apply_share: there, the has_proposal(witness)
// guard runs before the is_equivocating check, so a second call from an
// already-voted witness always returns NotEnabled regardless of whether the
// new result_id differs — the equivocators.insert(...) branch is dead code,
// reachable in the Rust test suite only by seeding state.proposals directly.
// Spec §4.6 states plainly: "detect equivocation (same witness, different
// result-id already recorded → add to equivocators, drop proposal)" — so
// here a same-witness/same-result replay is a no-op (NotEnabled, nothing
// changes) but a same-witness/different-result vote is true equivocation:
// the witness is added to Equivocators, its prior proposal dropped, and the
// transition succeeds. Any later vote from a recorded equivocator is
// rejected as NotEnabled.
func ApplyShare(s *State, proposal ShareProposal) (*State, error) {
	if !s.isActive() {
		return nil, notEnabled("instance %s is not active", s.Phase)
	}
	if !s.Witnesses[proposal.Witness] {
		return nil, notEnabled("witness is not part of this instance's witness set")
	}
	if s.Equivocators[proposal.Witness] {
		return nil, notEnabled("witness is a recorded equivocator")
	}

	for i, existing := range s.Proposals {
		if existing.Witness != proposal.Witness {
			continue
		}
		if existing.ResultId == proposal.ResultId {
			return nil, notEnabled("witness already proposed this result")
		}
		next := s.clone()
		next.Proposals = append(next.Proposals[:i:i], next.Proposals[i+1:]...)
		next.Equivocators[proposal.Witness] = true
		return next, nil
	}

	next := s.clone()
	next.Proposals = append(next.Proposals, proposal)

	if next.Phase == PhaseFastPathActive {
		if rid, ok := next.majorityResult(); ok {
			fact, err := buildCommitFact(next, rid)
			if err != nil {
				return nil, fmt.Errorf("consensus: aggregating fast-path commit: %w", err)
			}
			next.Phase = PhaseCommitted
			next.CommitFact = fact
		}
	}
	return next, nil
}

// TriggerFallback moves an instance from the fast path to the fallback
// path, typically on a liveness timeout waiting for fast-path quorum.
func TriggerFallback(s *State) (*State, error) {
	if s.Phase != PhaseFastPathActive {
		return nil, notEnabled("fallback can only trigger from fast_path_active, got %s", s.Phase)
	}
	next := s.clone()
	next.Phase = PhaseFallbackActive
	next.FallbackTimer = true
	return next, nil
}

// GossipShares merges shares received via the fallback gossip channel into
// the instance, applying the same equivocation rule as ApplyShare but
// tolerating — rather than rejecting — proposals this instance has already
// recorded, since gossip delivers the same share from multiple peers.
func GossipShares(s *State, incoming []ShareProposal) (*State, error) {
	if s.Phase != PhaseFallbackActive {
		return nil, notEnabled("gossip only applies during fallback_active, got %s", s.Phase)
	}
	next := s.clone()
	for _, proposal := range incoming {
		if !next.Witnesses[proposal.Witness] || next.Equivocators[proposal.Witness] {
			continue
		}
		dup := false
		for i, existing := range next.Proposals {
			if existing.Witness != proposal.Witness {
				continue
			}
			dup = true
			if existing.ResultId != proposal.ResultId {
				next.Proposals = append(next.Proposals[:i:i], next.Proposals[i+1:]...)
				next.Equivocators[proposal.Witness] = true
			}
			break
		}
		if !dup {
			next.Proposals = append(next.Proposals, proposal)
		}
	}
	return next, nil
}

// CompleteViaFallback commits the instance to resultId, the caller's choice
// of which result to finalize (spec §4.6: complete_via_fallback(result_id)),
// gated on that specific result having accumulated threshold votes via
// fallback gossip. This is deliberately not "whichever result reaches
// threshold first" — two non-overlapping witness groups can each push a
// different result past threshold during fallback, and the spec leaves that
// choice to the caller rather than to proposal order.
func CompleteViaFallback(s *State, resultId ResultId) (*State, error) {
	if s.Phase != PhaseFallbackActive {
		return nil, notEnabled("fallback completion requires fallback_active, got %s", s.Phase)
	}
	if s.countProposalsFor(resultId) < s.Threshold {
		return nil, notEnabled("result %x has not reached threshold votes yet", resultId)
	}
	next := s.clone()
	fact, err := buildCommitFact(next, resultId)
	if err != nil {
		return nil, fmt.Errorf("consensus: aggregating fallback commit: %w", err)
	}
	next.Phase = PhaseCommitted
	next.CommitFact = fact
	return next, nil
}

// Fail marks an active instance as permanently failed, e.g. after the
// fallback timer itself expires without reaching quorum.
func Fail(s *State, reason string) (*State, error) {
	if !s.isActive() {
		return nil, notEnabled("instance %s is already terminal", s.Phase)
	}
	next := s.clone()
	next.Phase = PhaseFailed
	next.FailureReason = reason
	return next, nil
}

func buildCommitFact(s *State, rid ResultId) (*CommitFact, error) {
	var shares []*threshold.SignatureShare
	for _, p := range s.Proposals {
		if p.ResultId == rid {
			share := p.Share
			shares = append(shares, &share)
		}
	}
	sig, err := threshold.Aggregate(shares)
	if err != nil {
		return nil, err
	}
	return &CommitFact{
		ConsensusId:  s.ConsensusId,
		ResultId:     rid,
		PrestateHash: s.PrestateHash,
		Signature:    sig,
	}, nil
}
