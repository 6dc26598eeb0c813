// Copyright 2025 Certen Protocol
//
// Crypto primitives (component C1): hashing, HKDF, AEAD, Ed25519, CSPRNG.
// Every operation here is pure and stateless per spec §4.1 — no persistent
// state, randomness always flows in through effects.RandomEffects so tests
// can seed determinism.

package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/hkdf"
)

// Domain separation tags, following the teacher's pkg/crypto/bls convention
// of namespacing every hash by the operation it's used for.
const (
	DomainTreeOp      = "AURA_TREE_OP_SIG_V1"
	DomainAMPHeader   = "AURA_AMP_HEADER_V1"
	DomainFactSig     = "AURA_FACT_SIG_V1"
	DomainConsensus   = "AURA_CONSENSUS_RESULT_V1"
	DomainGuardianAck = "AURA_GUARDIAN_ACK_V1"
)

// Hash computes the unkeyed 32-byte digest used throughout the core for
// commitments and fact identifiers.
func Hash(data ...[]byte) [32]byte {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// DomainHash computes H(domain ∥ data...), the pattern spec §4.3 uses for
// `H("TREE_OP_SIG" ∥ node_id ∥ epoch ∥ policy_hash ∥ op_bytes)` and
// equivalents elsewhere in the core.
func DomainHash(domain string, data ...[]byte) [32]byte {
	parts := append([][]byte{[]byte(domain)}, data...)
	return Hash(parts...)
}

// HKDFDerive derives keyLen bytes from secret using the given salt and
// info, the key-schedule primitive behind AMP's ratchet-generation keys.
func HKDFDerive(secret, salt, info []byte, keyLen int) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, info)
	out := make([]byte, keyLen)
	if _, err := r.Read(out); err != nil {
		return nil, fmt.Errorf("crypto: hkdf derive: %w", err)
	}
	return out, nil
}

// ConstantTimeEqual compares two byte slices without leaking timing
// information, required by spec §4.1 for all key-material comparisons.
func ConstantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Zeroize overwrites key material in place. Go's garbage collector may
// still have copied the bytes earlier, so this is best-effort hygiene
// rather than a hard guarantee, matching the teacher's own acknowledgment
// that Go provides no real memory-locking primitive.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
