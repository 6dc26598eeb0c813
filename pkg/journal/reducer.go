package journal

import "github.com/hxrts/aura/pkg/fact"

// Delta is the reducer's unit of derived-state change. Implementations
// must form a commutative, idempotent semilattice (spec §4.2): Merge must
// not depend on call order, and merging a delta with itself is a no-op.
type Delta interface {
	Merge(other Delta) Delta
}

// Reducer is the journal's pluggable derived-view contract: Apply turns
// one fact into a Delta, Merge combines deltas, View exposes the current
// accumulated state. The reducer must never depend on fact order beyond
// author-chain causality, which the Journal already enforces on the
// append/merge path.
type Reducer interface {
	Apply(f fact.Fact) Delta
	View() interface{}
}

// MapReducer is a generic key-value derived view: each fact contributes a
// delta keyed by some projection of its payload (e.g. contact id, channel
// id), and deltas for the same key are merged via the supplied
// last-writer-wins-by-OrderTime rule. This is the default reducer for
// ContactAdded/ContactRemoved/ChannelMode-style "current state" views;
// consumers needing bespoke semantics (the ratchet tree, consensus
// journal facts) implement Reducer directly instead.
type MapReducer struct {
	keyFn   func(fact.Fact) (string, bool)
	state   map[string]fact.Fact
	orderOf map[string]fact.OrderKey
}

// OrderKey is re-exported from fact's time fields to break the reducer's
// dependency on pkg/ids directly; see fact.OrderKeyOf.
type orderKeyAlias = fact.OrderKey

// NewMapReducer builds a MapReducer keyed by keyFn, which should return
// (key, true) for payload kinds this view tracks and ("", false) for
// every other kind (those facts are accepted into the journal but do not
// affect this derived view).
func NewMapReducer(keyFn func(fact.Fact) (string, bool)) *MapReducer {
	return &MapReducer{
		keyFn:   keyFn,
		state:   make(map[string]fact.Fact),
		orderOf: make(map[string]orderKeyAlias),
	}
}

type mapDelta struct {
	key   string
	value fact.Fact
	order orderKeyAlias
}

func (d mapDelta) Merge(other Delta) Delta {
	o, ok := other.(mapDelta)
	if !ok {
		return d
	}
	if d.key != o.key {
		return d // deltas for different keys are independent; callers merge per-key
	}
	if d.order.Less(o.order) {
		return o
	}
	return d
}

func (r *MapReducer) Apply(f fact.Fact) Delta {
	key, ok := r.keyFn(f)
	if !ok {
		return mapDelta{}
	}
	order := fact.OrderKeyOf(f)
	d := mapDelta{key: key, value: f, order: order}

	existingOrder, seen := r.orderOf[key]
	if !seen || existingOrder.Less(order) {
		r.state[key] = f
		r.orderOf[key] = order
	}
	return d
}

func (r *MapReducer) View() interface{} {
	out := make(map[string]fact.Fact, len(r.state))
	for k, v := range r.state {
		out[k] = v
	}
	return out
}
