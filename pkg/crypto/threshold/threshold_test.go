package threshold

import (
	"testing"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/hxrts/aura/pkg/effects"
)

func TestGenerateDealtRejectsInvalidThreshold(t *testing.T) {
	rnd := effects.NewSimulated(1)
	if _, err := GenerateDealt(0, 3, rnd); err == nil {
		t.Fatalf("expected error for t=0")
	}
	if _, err := GenerateDealt(4, 3, rnd); err == nil {
		t.Fatalf("expected error for t>n")
	}
}

func TestDealtSigningRoundTrip(t *testing.T) {
	rnd := effects.NewSimulated(42)
	packages, err := GenerateDealt(2, 3, rnd)
	if err != nil {
		t.Fatalf("generate dealt: %v", err)
	}
	if len(packages) != 3 {
		t.Fatalf("expected 3 key packages, got %d", len(packages))
	}

	message := []byte("commit tree epoch 7")

	// Use holders 1 and 2 of the (2,3) scheme.
	signers := []KeyPackage{packages[0], packages[1]}
	participants := []uint32{signers[0].Index, signers[1].Index}

	pkg, err := NewSigningPackage(message, participants)
	if err != nil {
		t.Fatalf("build signing package: %v", err)
	}

	var shares []*SignatureShare
	for _, kp := range signers {
		share, err := SignShare(kp, pkg)
		if err != nil {
			t.Fatalf("sign share: %v", err)
		}
		if !VerifyShare(kp.Group, pkg, share) {
			t.Fatalf("share for participant %d failed individual verification", kp.Index)
		}
		shares = append(shares, share)
	}

	sig, err := Aggregate(shares)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	if !Verify(packages[0].Group, message, sig) {
		t.Fatalf("aggregated signature failed verification")
	}

	if Verify(packages[0].Group, []byte("different message"), sig) {
		t.Fatalf("aggregated signature verified against the wrong message")
	}
}

func TestDKGRoundTrip(t *testing.T) {
	rnd := effects.NewSimulated(7)
	const t3, n3 = 2, 3

	rounds := make([]*DKGRound1, n3)
	allFirstCommitments := make([][]bls12381.G2Affine, n3)
	for i := uint32(1); i <= n3; i++ {
		r, err := DKGStartRound1(i, t3, rnd)
		if err != nil {
			t.Fatalf("start round1 for %d: %v", i, err)
		}
		rounds[i-1] = r
		allFirstCommitments[i-1] = r.Commitments
	}

	// Each participant j collects a share from every dealer, verifies it
	// against that dealer's broadcast commitments, then finalizes.
	finalPackages := make([]KeyPackage, 0, n3)
	for j := uint32(1); j <= n3; j++ {
		accepted := make([]fr.Element, 0, n3)
		for _, r := range rounds {
			share := r.ShareFor(j)
			if !DKGVerifyShare(r.Commitments, j, share) {
				t.Fatalf("share from dealer %d to %d failed verification", r.From, j)
			}
			accepted = append(accepted, share)
		}
		kp, err := DKGFinalize(j, t3, n3, accepted, allFirstCommitments)
		if err != nil {
			t.Fatalf("finalize for %d: %v", j, err)
		}
		finalPackages = append(finalPackages, kp)
	}

	for _, r := range rounds {
		r.Zeroize()
	}

	if !finalPackages[0].Group.GroupPublicKey.Equal(&finalPackages[1].Group.GroupPublicKey) {
		t.Fatalf("participants derived different group public keys")
	}
}
