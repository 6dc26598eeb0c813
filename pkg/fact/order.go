package fact

import "github.com/hxrts/aura/pkg/ids"

// OrderKey is the total-order tie-break spec §4.2 requires for
// ordering-sensitive derived views: (1) author-chain hash-DAG topological
// order — approximated here by nonce, which is strictly monotone per
// author and therefore consistent with chain position — (2) logical
// time, (3) order-time token as the final tie-break.
type OrderKey struct {
	Nonce   uint64
	Lamport uint64
	Order   ids.OrderTime
}

// OrderKeyOf projects a fact's ordering fields.
func OrderKeyOf(f Fact) OrderKey {
	return OrderKey{Nonce: f.Nonce, Lamport: f.Logical.Lamport, Order: f.orderTimeOrZero()}
}

func (f Fact) orderTimeOrZero() ids.OrderTime {
	// Facts do not currently carry an explicit OrderTime field (spec §3
	// lists it as a time domain, not a Fact field); derive one
	// deterministically from the fact id so OrderKey still has a total
	// tie-break when Nonce and Lamport coincide across distinct authors.
	var tok ids.OrderTime
	copy(tok[:], f.FactId[:])
	return tok
}

func (k OrderKey) Less(other OrderKey) bool {
	if k.Nonce != other.Nonce {
		return k.Nonce < other.Nonce
	}
	if k.Lamport != other.Lamport {
		return k.Lamport < other.Lamport
	}
	for i := range k.Order {
		if k.Order[i] != other.Order[i] {
			return k.Order[i] < other.Order[i]
		}
	}
	return false
}
