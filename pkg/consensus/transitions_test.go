package consensus

import (
	"testing"

	"github.com/hxrts/aura/pkg/crypto/threshold"
	"github.com/hxrts/aura/pkg/effects"
	"github.com/hxrts/aura/pkg/ids"
)

func dealt(t *testing.T, thr, n uint32, seed uint64) []threshold.KeyPackage {
	t.Helper()
	sim := effects.NewSimulated(seed)
	pkgs, err := threshold.GenerateDealt(thr, n, sim)
	if err != nil {
		t.Fatalf("GenerateDealt: %v", err)
	}
	return pkgs
}

func shareFor(t *testing.T, kp threshold.KeyPackage, message []byte, participants []uint32, sim *effects.Simulated) *threshold.SignatureShare {
	t.Helper()
	pkg, err := threshold.NewSigningPackage(message, participants)
	if err != nil {
		t.Fatalf("NewSigningPackage: %v", err)
	}
	share, err := threshold.SignShare(kp, pkg)
	if err != nil {
		t.Fatalf("SignShare: %v", err)
	}
	return share
}

func authorityFor(i int) ids.AuthorityId {
	var id ids.AuthorityId
	id[0] = byte(i + 1)
	return id
}

// TestFastPathCommitsOnThreshold covers spec §8 scenario 1: two of three
// witnesses propose the same result and the instance commits on the fast
// path once the threshold of two is reached, without ever triggering fallback.
func TestFastPathCommitsOnThreshold(t *testing.T) {
	sim := effects.NewSimulated(42)
	witnesses := []ids.AuthorityId{authorityFor(0), authorityFor(1), authorityFor(2)}
	cid := ids.RandomID256()
	message := []byte("operation-result")

	s, err := StartConsensus(cid, "rotate_guardians", [32]byte{1}, 2, witnesses, witnesses[0], PathFast)
	if err != nil {
		t.Fatalf("StartConsensus: %v", err)
	}

	result := ResultId{0xAA}
	for i := 0; i < 2; i++ {
		share := shareFor(t, threshold.KeyPackage{Index: uint32(i + 1)}, message, []uint32{1, 2, 3}, sim)
		s, err = ApplyShare(s, ShareProposal{Witness: witnesses[i], ResultId: result, Share: *share})
		if err != nil {
			t.Fatalf("ApplyShare %d: %v", i, err)
		}
	}

	if s.Phase != PhaseCommitted {
		t.Fatalf("expected Committed after threshold reached, got %s", s.Phase)
	}
	if s.CommitFact == nil || s.CommitFact.ResultId != result {
		t.Fatalf("expected a commit fact for result %x, got %+v", result, s.CommitFact)
	}
}

// TestApplyShareDetectsEquivocation covers spec §8 scenario 2: a witness
// that votes for two different results within the same instance is
// recorded as an equivocator and its (most recent) proposal is dropped,
// rather than the instance failing outright.
func TestApplyShareDetectsEquivocation(t *testing.T) {
	sim := effects.NewSimulated(7)
	witnesses := []ids.AuthorityId{authorityFor(0), authorityFor(1), authorityFor(2)}
	cid := ids.RandomID256()
	message := []byte("operation-result")

	s, err := StartConsensus(cid, "rotate_guardians", [32]byte{2}, 3, witnesses, witnesses[0], PathFast)
	if err != nil {
		t.Fatalf("StartConsensus: %v", err)
	}

	shareA := shareFor(t, threshold.KeyPackage{Index: 1}, message, []uint32{1}, sim)
	s, err = ApplyShare(s, ShareProposal{Witness: witnesses[0], ResultId: ResultId{0x01}, Share: *shareA})
	if err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if len(s.Proposals) != 1 {
		t.Fatalf("expected 1 proposal recorded, got %d", len(s.Proposals))
	}

	shareB := shareFor(t, threshold.KeyPackage{Index: 1}, message, []uint32{1}, sim)
	s, err = ApplyShare(s, ShareProposal{Witness: witnesses[0], ResultId: ResultId{0x02}, Share: *shareB})
	if err != nil {
		t.Fatalf("equivocating vote should succeed as a state transition, got error: %v", err)
	}
	if len(s.Proposals) != 0 {
		t.Fatalf("expected the equivocator's proposal to be dropped, got %d proposals", len(s.Proposals))
	}
	if !s.Equivocators[witnesses[0]] {
		t.Fatalf("expected witness 0 to be recorded as an equivocator")
	}

	// A further vote from the recorded equivocator is a no-op rejection,
	// not a new proposal or a second equivocation marker.
	if _, err := ApplyShare(s, ShareProposal{Witness: witnesses[0], ResultId: ResultId{0x02}, Share: *shareB}); err == nil {
		t.Fatalf("expected a further vote from a recorded equivocator to be rejected")
	}
}

// TestFallbackCompletesAfterGossip covers spec §8 scenario 3: the fast path
// times out, the instance falls back to gossip-based share collection, and
// commits once gossiped shares reach quorum.
func TestFallbackCompletesAfterGossip(t *testing.T) {
	sim := effects.NewSimulated(99)
	witnesses := []ids.AuthorityId{authorityFor(0), authorityFor(1), authorityFor(2)}
	cid := ids.RandomID256()
	message := []byte("operation-result")

	s, err := StartConsensus(cid, "rotate_guardians", [32]byte{3}, 2, witnesses, witnesses[0], PathFast)
	if err != nil {
		t.Fatalf("StartConsensus: %v", err)
	}

	s, err = TriggerFallback(s)
	if err != nil {
		t.Fatalf("TriggerFallback: %v", err)
	}
	if s.Phase != PhaseFallbackActive || !s.FallbackTimer {
		t.Fatalf("expected fallback_active with timer armed, got %s (timer=%v)", s.Phase, s.FallbackTimer)
	}

	result := ResultId{0xBB}
	var incoming []ShareProposal
	for i := 0; i < 2; i++ {
		share := shareFor(t, threshold.KeyPackage{Index: uint32(i + 1)}, message, []uint32{1, 2}, sim)
		incoming = append(incoming, ShareProposal{Witness: witnesses[i], ResultId: result, Share: *share})
	}
	s, err = GossipShares(s, incoming)
	if err != nil {
		t.Fatalf("GossipShares: %v", err)
	}

	s, err = CompleteViaFallback(s, result)
	if err != nil {
		t.Fatalf("CompleteViaFallback: %v", err)
	}
	if s.Phase != PhaseCommitted {
		t.Fatalf("expected Committed after fallback quorum, got %s", s.Phase)
	}
	if s.CommitFact == nil || s.CommitFact.ResultId != result {
		t.Fatalf("expected commit fact for result %x, got %+v", result, s.CommitFact)
	}
}

func TestCompleteViaFallbackRejectsWithoutQuorum(t *testing.T) {
	witnesses := []ids.AuthorityId{authorityFor(0), authorityFor(1), authorityFor(2)}
	cid := ids.RandomID256()

	s, err := StartConsensus(cid, "op", [32]byte{4}, 2, witnesses, witnesses[0], PathFallback)
	if err != nil {
		t.Fatalf("StartConsensus: %v", err)
	}
	if _, err := CompleteViaFallback(s, ResultId{0x01}); err == nil {
		t.Fatalf("expected completion to be rejected without quorum")
	}
}

// TestCompleteViaFallbackHonorsCallerChoice covers the case spec §4.6's
// complete_via_fallback(result_id) exists for: two non-overlapping witness
// groups each push a different result past threshold during fallback
// gossip, and the caller — not proposal order — decides which one commits.
func TestCompleteViaFallbackHonorsCallerChoice(t *testing.T) {
	sim := effects.NewSimulated(7)
	witnesses := []ids.AuthorityId{authorityFor(0), authorityFor(1), authorityFor(2), authorityFor(3)}
	cid := ids.RandomID256()
	message := []byte("operation-result")

	s, err := StartConsensus(cid, "rotate_guardians", [32]byte{6}, 2, witnesses, witnesses[0], PathFallback)
	if err != nil {
		t.Fatalf("StartConsensus: %v", err)
	}

	resultA := ResultId{0xAA}
	resultB := ResultId{0xBB}
	var incoming []ShareProposal
	for i := 0; i < 2; i++ {
		share := shareFor(t, threshold.KeyPackage{Index: uint32(i + 1)}, message, []uint32{1, 2}, sim)
		incoming = append(incoming, ShareProposal{Witness: witnesses[i], ResultId: resultA, Share: *share})
	}
	for i := 2; i < 4; i++ {
		share := shareFor(t, threshold.KeyPackage{Index: uint32(i + 1)}, message, []uint32{3, 4}, sim)
		incoming = append(incoming, ShareProposal{Witness: witnesses[i], ResultId: resultB, Share: *share})
	}
	s, err = GossipShares(s, incoming)
	if err != nil {
		t.Fatalf("GossipShares: %v", err)
	}
	if s.countProposalsFor(resultA) < s.Threshold || s.countProposalsFor(resultB) < s.Threshold {
		t.Fatalf("expected both results to reach threshold, got counts %d/%d", s.countProposalsFor(resultA), s.countProposalsFor(resultB))
	}

	committed, err := CompleteViaFallback(s, resultB)
	if err != nil {
		t.Fatalf("CompleteViaFallback(resultB): %v", err)
	}
	if committed.CommitFact == nil || committed.CommitFact.ResultId != resultB {
		t.Fatalf("expected commit fact for resultB, got %+v", committed.CommitFact)
	}
}

func TestFailRequiresActiveInstance(t *testing.T) {
	witnesses := []ids.AuthorityId{authorityFor(0), authorityFor(1)}
	cid := ids.RandomID256()

	s, err := StartConsensus(cid, "op", [32]byte{5}, 2, witnesses, witnesses[0], PathFast)
	if err != nil {
		t.Fatalf("StartConsensus: %v", err)
	}
	s, err = Fail(s, "witness set partitioned")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if s.Phase != PhaseFailed {
		t.Fatalf("expected Failed, got %s", s.Phase)
	}
	if _, err := Fail(s, "again"); err == nil {
		t.Fatalf("expected failing an already-terminal instance to be rejected")
	}
}
