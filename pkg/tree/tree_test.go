package tree

import (
	"testing"

	"github.com/hxrts/aura/pkg/crypto/threshold"
	"github.com/hxrts/aura/pkg/effects"
	"github.com/hxrts/aura/pkg/ids"
)

func dealtGroup(t *testing.T, n, thr uint32, seed uint64) ([]threshold.KeyPackage, threshold.PublicKeyPackage) {
	t.Helper()
	sim := effects.NewSimulated(seed)
	packages, err := threshold.GenerateDealt(thr, n, sim)
	if err != nil {
		t.Fatalf("generate dealt group: %v", err)
	}
	return packages, packages[0].Group
}

// signOp builds a valid AttestedOp by running the full t-of-n signing
// protocol against the first `thr` key packages.
func signOp(t *testing.T, packages []threshold.KeyPackage, pub threshold.PublicKeyPackage, thr uint32, op Op, parentEpoch uint64, parentCommitment [32]byte) AttestedOp {
	t.Helper()
	attested := AttestedOp{Op: op, ParentEpoch: parentEpoch, ParentCommitment: parentCommitment}
	msg := attested.signingBytes()

	participants := make([]uint32, thr)
	for i := uint32(0); i < thr; i++ {
		participants[i] = packages[i].Index
	}
	sp, err := threshold.NewSigningPackage(msg, participants)
	if err != nil {
		t.Fatalf("build signing package: %v", err)
	}

	var shares []*threshold.SignatureShare
	for i := uint32(0); i < thr; i++ {
		share, err := threshold.SignShare(packages[i], sp)
		if err != nil {
			t.Fatalf("sign share: %v", err)
		}
		shares = append(shares, share)
	}

	sig, err := threshold.Aggregate(shares)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	attested.Signature = sig
	return attested
}

func TestApplyVerifiedAddLeafThenRejectsPolicyWeakening(t *testing.T) {
	const n, thr = 3, 2
	packages, pub := dealtGroup(t, n, thr, 7)

	state := NewGenesisState(ThresholdPolicy(2, 2))
	root := state.RootIndex

	addOp := Op{Kind: OpAddLeaf, TargetBranch: root, NewLeaf: Leaf{LeafId: ids.RandomID128(), PublicKey: []byte("device-key")}}
	attestedAdd := signOp(t, packages, pub, thr, addOp, state.Epoch, state.RootCommitment)
	if err := ApplyVerified(state, attestedAdd, pub); err != nil {
		t.Fatalf("apply add leaf: %v", err)
	}
	if len(state.Leaves) != 1 {
		t.Fatalf("expected 1 leaf after add, got %d", len(state.Leaves))
	}

	// Weakening Threshold(2,2) down to Threshold(1,2) must be rejected
	// even with a fully valid signature and correct parent binding.
	weakenOp := Op{Kind: OpChangePolicy, TargetBranch: root, NewPolicy: ThresholdPolicy(1, 2)}
	attestedWeaken := signOp(t, packages, pub, thr, weakenOp, state.Epoch, state.RootCommitment)

	beforeCommitment := state.RootCommitment
	err := ApplyVerified(state, attestedWeaken, pub)
	if err == nil {
		t.Fatalf("expected policy weakening to be rejected")
	}
	var weakenErr *PolicyWeakeningError
	if pe, ok := err.(*PolicyWeakeningError); ok {
		weakenErr = pe
	}
	if weakenErr == nil {
		t.Fatalf("expected PolicyWeakeningError, got %T: %v", err, err)
	}
	if state.RootCommitment != beforeCommitment {
		t.Fatalf("state must be unchanged after a rejected op")
	}
}

func TestApplyVerifiedRejectsParentBindingMismatch(t *testing.T) {
	const n, thr = 3, 2
	packages, pub := dealtGroup(t, n, thr, 7)

	state := NewGenesisState(AnyPolicy())
	root := state.RootIndex

	addOp := Op{Kind: OpAddLeaf, TargetBranch: root, NewLeaf: Leaf{LeafId: ids.RandomID128(), PublicKey: []byte("k1")}}
	attestedAdd := signOp(t, packages, pub, thr, addOp, state.Epoch, state.RootCommitment)
	if err := ApplyVerified(state, attestedAdd, pub); err != nil {
		t.Fatalf("apply first add: %v", err)
	}

	// A second op bound to a stale parent commitment (the zero value,
	// which no recomputed state has) must be rejected as a parent binding
	// mismatch, not silently applied to the new state.
	staleOp := Op{Kind: OpAddLeaf, TargetBranch: root, NewLeaf: Leaf{LeafId: ids.RandomID128(), PublicKey: []byte("k2")}}
	var staleParentCommitment [32]byte // the pre-genesis-recompute zero value, definitely stale
	attestedStale := signOp(t, packages, pub, thr, staleOp, 0, staleParentCommitment)

	err := ApplyVerified(state, attestedStale, pub)
	if err == nil {
		t.Fatalf("expected parent binding mismatch to be rejected")
	}
	if _, ok := err.(*ParentBindingMismatchError); !ok {
		t.Fatalf("expected ParentBindingMismatchError, got %T: %v", err, err)
	}
}

func TestApplyVerifiedRejectsInvalidSignature(t *testing.T) {
	const n, thr = 3, 2
	packagesA, _ := dealtGroup(t, n, thr, 7)
	_, pubB := dealtGroup(t, n, thr, 13) // a different group's public key

	state := NewGenesisState(AnyPolicy())
	op := Op{Kind: OpAddLeaf, TargetBranch: state.RootIndex, NewLeaf: Leaf{LeafId: ids.RandomID128(), PublicKey: []byte("k")}}
	attested := signOp(t, packagesA, packagesA[0].Group, thr, op, state.Epoch, state.RootCommitment)

	if err := ApplyVerified(state, attested, pubB); err != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature against the wrong group key, got %v", err)
	}
}
