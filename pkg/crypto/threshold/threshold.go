// Copyright 2025 Certen Protocol
//
// FROST-like (t,n) threshold signing (component C1/C4's shared core).
//
// Aura's spec calls for an "Ed25519-compatible" aggregate signature, but
// the only elliptic-curve stack available in this module is gnark-crypto's
// BLS12-381 tower (pkg/crypto/bls in the upstream validator). Rather than
// take on an unexamined Ed25519-FROST dependency, this package keeps
// dealer/DKG share issuance and a coordinator that never learns a private
// share, works over the BLS12-381 scalar field, and signs in a single
// round: there is no hiding/binding nonce-commitment round before the
// signing package is built. It aggregates signature shares the way
// threshold-BLS schemes do: each share is lambda_i·share_i·H(message), and the sum is a
// valid single BLS signature verifiable by the usual pairing check. See
// DESIGN.md for the substitution rationale.
package threshold

import (
	"fmt"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/hxrts/aura/pkg/effects"
)

var (
	g1Gen bls12381.G1Affine
	g2Gen bls12381.G2Affine
)

func init() {
	_, _, g1Gen, g2Gen = bls12381.Generators()
}

// KeyPackage is the per-holder secret: never transmitted, never passed
// through any non-holder component (spec §4.4).
type KeyPackage struct {
	Index uint32
	Share fr.Element
	Group PublicKeyPackage
}

// PublicKeyPackage is shared freely: the group public key plus each
// holder's verification share so a share's validity can be checked
// without learning it.
type PublicKeyPackage struct {
	Threshold          uint32
	Total              uint32
	GroupPublicKey     bls12381.G2Affine
	VerificationShares map[uint32]bls12381.G2Affine
}

// GenerateDealt runs dealer-based Shamir splitting: a trusted local process
// picks the secret, builds a degree-(t-1) polynomial, and evaluates it at
// n distinct points. Appropriate for local/test settings per spec §4.4;
// production deployments should prefer GenerateDKG.
func GenerateDealt(t, n uint32, rnd effects.RandomEffects) ([]KeyPackage, error) {
	if t == 0 || t > n {
		return nil, fmt.Errorf("threshold: invalid (t=%d, n=%d): require 1 <= t <= n", t, n)
	}

	coeffs, err := randomPolynomial(t, rnd)
	if err != nil {
		return nil, err
	}
	defer zeroizePoly(coeffs)

	var groupSecretBig big.Int
	coeffs[0].BigInt(&groupSecretBig)
	var groupPub bls12381.G2Affine
	groupPub.ScalarMultiplication(&g2Gen, &groupSecretBig)

	verificationShares := make(map[uint32]bls12381.G2Affine, n)
	packages := make([]KeyPackage, 0, n)
	for i := uint32(1); i <= n; i++ {
		share := evalPolynomial(coeffs, i)
		var shareBig big.Int
		share.BigInt(&shareBig)
		var vshare bls12381.G2Affine
		vshare.ScalarMultiplication(&g2Gen, &shareBig)
		verificationShares[i] = vshare
		packages = append(packages, KeyPackage{Index: i, Share: share})
	}

	pub := PublicKeyPackage{
		Threshold:          t,
		Total:              n,
		GroupPublicKey:     groupPub,
		VerificationShares: verificationShares,
	}
	for i := range packages {
		packages[i].Group = pub
	}
	return packages, nil
}

// randomPolynomial draws t random scalar coefficients, f(x) = c0 + c1 x + ... + c(t-1) x^(t-1),
// with c0 serving as the group secret.
func randomPolynomial(t uint32, rnd effects.RandomEffects) ([]fr.Element, error) {
	coeffs := make([]fr.Element, t)
	for i := range coeffs {
		b, err := rnd.Bytes(fr.Bytes)
		if err != nil {
			return nil, fmt.Errorf("threshold: draw coefficient: %w", err)
		}
		coeffs[i].SetBytes(b)
	}
	return coeffs, nil
}

func evalPolynomial(coeffs []fr.Element, x uint32) fr.Element {
	var xs fr.Element
	xs.SetUint64(uint64(x))

	var acc fr.Element
	acc.Set(&coeffs[len(coeffs)-1])
	for i := len(coeffs) - 2; i >= 0; i-- {
		acc.Mul(&acc, &xs)
		acc.Add(&acc, &coeffs[i])
	}
	return acc
}

func zeroizePoly(coeffs []fr.Element) {
	for i := range coeffs {
		coeffs[i].SetZero()
	}
}

// ReconstructSecret recovers the group secret from a set of at least t
// key packages via Lagrange interpolation at x=0: secret = sum_i lambda_i
// * share_i. Used by guardian recovery (spec §4.4's `recover`), never by
// ordinary signing, which aggregates signature shares instead of
// reconstructing the secret itself.
func ReconstructSecret(packages []KeyPackage) (fr.Element, error) {
	var secret fr.Element
	if len(packages) == 0 {
		return secret, fmt.Errorf("threshold: reconstruct secret: no key packages supplied")
	}
	set := make([]uint32, len(packages))
	for i, p := range packages {
		set[i] = p.Index
	}
	for _, p := range packages {
		lambda := lagrangeCoefficient(p.Index, set)
		var term fr.Element
		term.Mul(&lambda, &p.Share)
		secret.Add(&secret, &term)
	}
	return secret, nil
}

// lagrangeCoefficient computes lambda_i = prod_{j in set, j != i} j / (j - i),
// the Lagrange basis polynomial evaluated at x=0 for participant i within
// the given participant set.
func lagrangeCoefficient(i uint32, set []uint32) fr.Element {
	var num, den fr.Element
	num.SetOne()
	den.SetOne()

	var xi fr.Element
	xi.SetUint64(uint64(i))

	for _, j := range set {
		if j == i {
			continue
		}
		var xj fr.Element
		xj.SetUint64(uint64(j))

		num.Mul(&num, &xj)

		var diff fr.Element
		diff.Sub(&xj, &xi)
		den.Mul(&den, &diff)
	}

	var denInv fr.Element
	denInv.Inverse(&den)

	var lambda fr.Element
	lambda.Mul(&num, &denInv)
	return lambda
}
