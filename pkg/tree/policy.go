package tree

import "github.com/hxrts/aura/pkg/crypto"

// PolicyKind distinguishes the three policy shapes in the strictness
// lattice (spec §3: "All ≥ Threshold(m,n) ordered by m/n ≥ Any").
type PolicyKind uint8

const (
	PolicyAny PolicyKind = iota
	PolicyThreshold
	PolicyAll
)

// Policy governs which child signatures authorize an operation under a
// branch. M/N are meaningful only when Kind == PolicyThreshold.
type Policy struct {
	Kind PolicyKind
	M, N uint32
}

func AnyPolicy() Policy                { return Policy{Kind: PolicyAny} }
func AllPolicy() Policy                { return Policy{Kind: PolicyAll} }
func ThresholdPolicy(m, n uint32) Policy { return Policy{Kind: PolicyThreshold, M: m, N: n} }

// strictnessNumDen maps a policy onto a rational-ish ordering so two
// thresholds (or a threshold against All/Any) can be compared by
// cross-multiplication, avoiding floating point.
func (p Policy) strictnessNumDen() (num, den uint64) {
	switch p.Kind {
	case PolicyAny:
		return 0, 1
	case PolicyAll:
		return 1, 1
	case PolicyThreshold:
		if p.N == 0 {
			return 0, 1
		}
		return uint64(p.M), uint64(p.N)
	default:
		return 0, 1
	}
}

// IsStricterOrEqual reports whether `new` is at least as strict as `old`
// in the lattice All ≥ Threshold(m,n) ≥ Any, ordered by m/n. Used to
// enforce spec §3's policy-monotonicity invariant on ChangePolicy ops.
func IsStricterOrEqual(newP, oldP Policy) bool {
	if oldP.Kind == PolicyAny {
		return true // anything is at least as strict as Any
	}
	if newP.Kind == PolicyAll {
		return true // All is the strictest policy
	}
	if oldP.Kind == PolicyAll {
		return newP.Kind == PolicyAll
	}
	// Both Threshold (or newP == Any compared against a stricter oldP,
	// which must fail): cross-multiply m/n >= m'/n'.
	if newP.Kind == PolicyAny {
		return false
	}
	newNum, newDen := newP.strictnessNumDen()
	oldNum, oldDen := oldP.strictnessNumDen()
	return newNum*oldDen >= oldNum*newDen
}

// Hash returns the canonical policy-hash fed into commitment computation
// and the tree-op signing domain.
func (p Policy) Hash() [32]byte {
	buf := []byte{byte(p.Kind)}
	var m, n [4]byte
	putU32(m[:], p.M)
	putU32(n[:], p.N)
	buf = append(buf, m[:]...)
	buf = append(buf, n[:]...)
	return crypto.Hash(buf)
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
