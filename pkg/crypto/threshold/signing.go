package threshold

import (
	"fmt"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// SigningPackage is the coordinator's assembly of the message and the
// final participant set for one signing instance. Unlike Schnorr/FROST,
// a BLS partial signature is a deterministic function of the message and
// the holder's share alone — there is no hiding/binding nonce round to
// coordinate first, since nothing about the share's freshness depends on
// per-session randomness the way a Schnorr response would.
type SigningPackage struct {
	Message      []byte
	Participants []uint32
}

// NewSigningPackage assembles the signing package once the coordinator has
// decided which t-of-n participants will contribute shares.
func NewSigningPackage(message []byte, participants []uint32) (*SigningPackage, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("threshold: new signing package: no participants")
	}
	return &SigningPackage{Message: message, Participants: participants}, nil
}

// SignatureShare is one participant's partial signature.
type SignatureShare struct {
	Index uint32
	Z     bls12381.G1Affine
}

// SignShare produces kp's partial signature: lambda_i(participants) * share_i
// * H(message), the standard threshold-BLS share — the coordinator
// aggregates these without ever seeing kp.Share itself.
func SignShare(kp KeyPackage, pkg *SigningPackage) (*SignatureShare, error) {
	found := false
	for _, p := range pkg.Participants {
		if p == kp.Index {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("threshold: sign share: participant %d not in signing package", kp.Index)
	}

	lambda := lagrangeCoefficient(kp.Index, pkg.Participants)
	h := hashToG1(pkg.Message)

	var lambdaBig big.Int
	lambda.BigInt(&lambdaBig)
	var scaled bls12381.G1Affine
	scaled.ScalarMultiplication(&h, new(big.Int).Mul(&lambdaBig, shareBigInt(kp.Share)))

	return &SignatureShare{Index: kp.Index, Z: scaled}, nil
}

func shareBigInt(s fr.Element) *big.Int {
	var b big.Int
	s.BigInt(&b)
	return &b
}

// Signature is the final, coordinator-aggregated threshold signature:
// mathematically a single BLS signature over the group public key.
type Signature struct {
	Point bls12381.G1Affine
}

// Aggregate sums signature shares into the final signature. The
// coordinator performs this step and never sees any individual share_i,
// only the already-weighted partial points.
func Aggregate(shares []*SignatureShare) (*Signature, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("threshold: aggregate: no shares")
	}
	var acc bls12381.G1Jac
	acc.FromAffine(&shares[0].Z)
	for _, s := range shares[1:] {
		var j bls12381.G1Jac
		j.FromAffine(&s.Z)
		acc.AddAssign(&j)
	}
	var out bls12381.G1Affine
	out.FromJacobian(&acc)
	return &Signature{Point: out}, nil
}

// Verify checks a threshold signature against the group public key using
// the same pairing check as the upstream BLS package: e(sig, G2) == e(H(msg), pk).
func Verify(pub PublicKeyPackage, message []byte, sig *Signature) bool {
	h := hashToG1(message)
	var negPub bls12381.G2Affine
	negPub.Neg(&pub.GroupPublicKey)
	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{sig.Point, h},
		[]bls12381.G2Affine{g2Gen, negPub},
	)
	if err != nil {
		return false
	}
	return ok
}

// VerifyShare lets the coordinator check an individual share without
// learning the holder's private share, using that holder's verification
// share from the public key package.
func VerifyShare(pub PublicKeyPackage, pkg *SigningPackage, share *SignatureShare) bool {
	vshare, ok := pub.VerificationShares[share.Index]
	if !ok {
		return false
	}
	lambda := lagrangeCoefficient(share.Index, pkg.Participants)
	var lambdaBig big.Int
	lambda.BigInt(&lambdaBig)
	var weightedVshare bls12381.G2Affine
	weightedVshare.ScalarMultiplication(&vshare, &lambdaBig)

	h := hashToG1(pkg.Message)
	var negWeighted bls12381.G2Affine
	negWeighted.Neg(&weightedVshare)
	okPairing, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{share.Z, h},
		[]bls12381.G2Affine{g2Gen, negWeighted},
	)
	if err != nil {
		return false
	}
	return okPairing
}
