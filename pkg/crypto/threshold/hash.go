package threshold

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// hashToG1 follows the upstream BLS package's "hash and pray" approach:
// hash the message under a domain tag, retry with an incrementing counter
// until a valid non-infinity G1 point is found.
func hashToG1(message []byte) bls12381.G1Affine {
	h := sha256.New()
	h.Write([]byte("AURA_THRESHOLD_SIG_BLS12381G1_V1"))
	h.Write(message)
	base := h.Sum(nil)

	for counter := uint64(0); counter < 1000; counter++ {
		h2 := sha256.New()
		h2.Write(base)
		var ctrBytes [8]byte
		binary.BigEndian.PutUint64(ctrBytes[:], counter)
		h2.Write(ctrBytes[:])
		digest := h2.Sum(nil)

		var point bls12381.G1Affine
		if _, err := point.SetBytes(digest); err == nil && !point.IsInfinity() {
			return point
		}

		var scalar fr.Element
		scalar.SetBytes(digest)
		var scalarBig big.Int
		scalar.BigInt(&scalarBig)
		var candidate bls12381.G1Affine
		candidate.ScalarMultiplication(&g1Gen, &scalarBig)
		if !candidate.IsInfinity() {
			return candidate
		}
	}
	return g1Gen
}
