package threshold

import (
	"fmt"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/hxrts/aura/pkg/effects"
)

// DKG is a Pedersen/Feldman joint-verifiable-secret-sharing DKG: every
// participant dealer's its own polynomial, every other participant
// verifies the share it receives against the dealer's public commitments,
// and each holder's final share is the sum of the per-dealer shares it
// accepted. No single participant (including the coordinator relaying
// round messages) ever learns the group secret.

// DKGRound1 is broadcast by every participant: Feldman commitments to its
// own polynomial's coefficients, c0 serving as that participant's
// contribution to the group secret.
type DKGRound1 struct {
	From        uint32
	Commitments []bls12381.G2Affine // len == t
	poly        []fr.Element        // retained locally, never serialized
}

// DKGStartRound1 draws a fresh degree-(t-1) polynomial for participant
// `from` and returns the public commitments to broadcast.
func DKGStartRound1(from, t uint32, rnd effects.RandomEffects) (*DKGRound1, error) {
	coeffs, err := randomPolynomial(t, rnd)
	if err != nil {
		return nil, err
	}
	commitments := make([]bls12381.G2Affine, t)
	for i, c := range coeffs {
		var cb big.Int
		c.BigInt(&cb)
		commitments[i].ScalarMultiplication(&g2Gen, &cb)
	}
	return &DKGRound1{From: from, Commitments: commitments, poly: coeffs}, nil
}

// ShareFor evaluates the dealer's polynomial at `to`, the private message
// round1's dealer sends to participant `to` out of band in round 2.
func (r *DKGRound1) ShareFor(to uint32) fr.Element {
	return evalPolynomial(r.poly, to)
}

// Zeroize destroys the dealer's retained polynomial once all shares for
// this round have been distributed.
func (r *DKGRound1) Zeroize() { zeroizePoly(r.poly) }

// DKGVerifyShare checks a received share against the sender's broadcast
// commitments: share·G2 must equal sum_k commitments[k]·myIndex^k.
func DKGVerifyShare(commitments []bls12381.G2Affine, myIndex uint32, share fr.Element) bool {
	var shareBig big.Int
	share.BigInt(&shareBig)
	var lhs bls12381.G2Affine
	lhs.ScalarMultiplication(&g2Gen, &shareBig)

	var xPow fr.Element
	xPow.SetOne()
	var xs fr.Element
	xs.SetUint64(uint64(myIndex))

	var rhsJac bls12381.G2Jac
	rhsJac.FromAffine(&commitments[0])
	for k := 1; k < len(commitments); k++ {
		xPow.Mul(&xPow, &xs)
		var xPowBig big.Int
		xPow.BigInt(&xPowBig)
		var term bls12381.G2Affine
		term.ScalarMultiplication(&commitments[k], &xPowBig)
		var termJac bls12381.G2Jac
		termJac.FromAffine(&term)
		rhsJac.AddAssign(&termJac)
	}
	var rhs bls12381.G2Affine
	rhs.FromJacobian(&rhsJac)

	return lhs.Equal(&rhs)
}

// DKGFinalize sums every accepted share into this participant's final key
// package and derives the group public key as the sum of every dealer's
// c0 commitment.
func DKGFinalize(myIndex, t, n uint32, acceptedShares []fr.Element, allFirstCommitments [][]bls12381.G2Affine) (KeyPackage, error) {
	if uint32(len(acceptedShares)) != n {
		return KeyPackage{}, fmt.Errorf("threshold: dkg finalize: expected %d accepted shares, got %d", n, len(acceptedShares))
	}
	var finalShare fr.Element
	finalShare.SetZero()
	for _, s := range acceptedShares {
		finalShare.Add(&finalShare, &s)
	}

	var groupPubJac bls12381.G2Jac
	groupPubJac.FromAffine(&allFirstCommitments[0][0])
	for i := 1; i < len(allFirstCommitments); i++ {
		var j bls12381.G2Jac
		j.FromAffine(&allFirstCommitments[i][0])
		groupPubJac.AddAssign(&j)
	}
	var groupPub bls12381.G2Affine
	groupPub.FromJacobian(&groupPubJac)

	var myShareBig big.Int
	finalShare.BigInt(&myShareBig)
	var myVerification bls12381.G2Affine
	myVerification.ScalarMultiplication(&g2Gen, &myShareBig)

	return KeyPackage{
		Index: myIndex,
		Share: finalShare,
		Group: PublicKeyPackage{
			Threshold:      t,
			Total:          n,
			GroupPublicKey: groupPub,
			// VerificationShares is populated by the caller once every
			// participant's own verification share has been broadcast and
			// collected; this package only computes this holder's own.
			VerificationShares: map[uint32]bls12381.G2Affine{myIndex: myVerification},
		},
	}, nil
}
