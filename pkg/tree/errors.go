package tree

import (
	"errors"
	"fmt"

	"github.com/hxrts/aura/pkg/ids"
)

var (
	ErrInvalidSignature  = errors.New("tree: op signature does not verify against group key")
	ErrUnknownNode       = errors.New("tree: op references a node not present in the tree")
	ErrDuplicateNode     = errors.New("tree: op would introduce a duplicate node index")
	ErrCyclicTree        = errors.New("tree: resulting tree contains a cycle")
	ErrRootMismatch      = errors.New("tree: recomputed root commitment does not match expected")
	ErrStaleEpoch        = errors.New("tree: op epoch is behind the current tree epoch")
)

// PolicyWeakeningError reports a ChangePolicy op that would relax policy
// below the current one, violating the policy-monotonicity invariant.
type PolicyWeakeningError struct {
	Node     ids.NodeIndex
	Old, New Policy
}

func (e *PolicyWeakeningError) Error() string {
	return fmt.Sprintf("tree: policy change at node %d weakens policy (old=%+v new=%+v)", e.Node, e.Old, e.New)
}

// ParentBindingMismatchError reports an op whose stated parent epoch or
// commitment does not match the tree's current state (spec §4.3: every
// non-genesis op binds to a specific parent epoch/commitment).
type ParentBindingMismatchError struct {
	ExpectedEpoch      uint64
	ExpectedCommitment [32]byte
	GotEpoch           uint64
	GotCommitment      [32]byte
}

func (e *ParentBindingMismatchError) Error() string {
	return fmt.Sprintf(
		"tree: parent binding mismatch: expected epoch=%d commitment=%x, got epoch=%d commitment=%x",
		e.ExpectedEpoch, e.ExpectedCommitment, e.GotEpoch, e.GotCommitment,
	)
}
