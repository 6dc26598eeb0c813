package tree

import (
	"encoding/binary"
	"fmt"

	"github.com/hxrts/aura/pkg/crypto"
	"github.com/hxrts/aura/pkg/crypto/threshold"
	"github.com/hxrts/aura/pkg/ids"
)

// OpKind enumerates the ratchet tree's mutating operations (spec §4.3).
type OpKind uint8

const (
	OpAddLeaf OpKind = iota
	OpRemoveLeaf
	OpChangePolicy
	OpRotateEpoch
)

// Op is one tree mutation, signed by the threshold group authorized to
// perform it under the target branch's current policy.
type Op struct {
	Kind OpKind

	// TargetBranch is the branch an AddLeaf/RemoveLeaf/ChangePolicy op
	// applies under; ignored for RotateEpoch, which applies at the root.
	TargetBranch ids.NodeIndex

	// AddLeaf fields.
	NewLeaf Leaf

	// RemoveLeaf fields.
	RemoveLeafId ids.LeafId

	// ChangePolicy fields.
	NewPolicy Policy
}

// AttestedOp binds an Op to the parent state it was built against and a
// threshold signature over the op's canonical encoding (spec §4.3: "every
// non-genesis op binds to a specific parent epoch and commitment").
type AttestedOp struct {
	Op             Op
	ParentEpoch    uint64
	ParentCommitment [32]byte
	Signature      *threshold.Signature
}

// signingBytes is the canonical message a threshold signature over an op
// must cover: H(DomainTreeOp || node_id || parent_epoch || parent_commitment
// || op_bytes). The target branch's policy hash is not part of the message.
func (a AttestedOp) signingBytes() []byte {
	var nodeID [8]byte
	binary.LittleEndian.PutUint64(nodeID[:], uint64(a.Op.TargetBranch))
	var epoch [8]byte
	binary.LittleEndian.PutUint64(epoch[:], a.ParentEpoch)
	digest := crypto.DomainHash(crypto.DomainTreeOp, nodeID[:], epoch[:], a.ParentCommitment[:], opBytes(a.Op))
	return digest[:]
}

func opBytes(op Op) []byte {
	buf := []byte{byte(op.Kind)}
	var target [8]byte
	binary.LittleEndian.PutUint64(target[:], uint64(op.TargetBranch))
	buf = append(buf, target[:]...)
	switch op.Kind {
	case OpAddLeaf:
		buf = append(buf, op.NewLeaf.LeafId[:]...)
		buf = append(buf, byte(op.NewLeaf.Identity))
		buf = append(buf, op.NewLeaf.PublicKey...)
	case OpRemoveLeaf:
		buf = append(buf, op.RemoveLeafId[:]...)
	case OpChangePolicy:
		ph := op.NewPolicy.Hash()
		buf = append(buf, ph[:]...)
	case OpRotateEpoch:
	}
	return buf
}

// ApplyVerified runs the full tree-op application pipeline per spec §4.3:
// verify the threshold signature, verify the parent binding, dispatch the
// op, recompute commitments, validate structural invariants, and only then
// commit the result — atomically, since every step before the final
// invariant check operates on a clone and the original state is untouched
// on any error.
func ApplyVerified(state *State, attested AttestedOp, groupKey threshold.PublicKeyPackage) error {
	if !threshold.Verify(groupKey, attested.signingBytes(), attested.Signature) {
		return ErrInvalidSignature
	}

	if !isGenesis(state) {
		if attested.ParentEpoch != state.Epoch || attested.ParentCommitment != state.RootCommitment {
			return &ParentBindingMismatchError{
				ExpectedEpoch:      state.Epoch,
				ExpectedCommitment: state.RootCommitment,
				GotEpoch:           attested.ParentEpoch,
				GotCommitment:      attested.ParentCommitment,
			}
		}
	}

	next := state.clone()
	if err := dispatch(next, attested.Op); err != nil {
		return err
	}
	if attested.Op.Kind == OpRotateEpoch {
		next.Epoch++
	}
	next.recomputeAll()

	if err := validateInvariants(next); err != nil {
		return err
	}

	*state = *next
	return nil
}

// isGenesis reports whether state has never had an op applied: epoch 0,
// single empty root branch, no leaves. Genesis is exempt from parent
// binding (spec §4.3).
func isGenesis(s *State) bool {
	return s.Epoch == 0 && len(s.Leaves) == 0 && len(s.Branches) == 1
}

func dispatch(s *State, op Op) error {
	branch, ok := s.Branches[op.TargetBranch]
	if op.Kind != OpRotateEpoch && !ok {
		return fmt.Errorf("tree: %w: branch %d", ErrUnknownNode, op.TargetBranch)
	}

	switch op.Kind {
	case OpAddLeaf:
		if _, exists := s.Leaves[op.NewLeaf.LeafId]; exists {
			return fmt.Errorf("tree: %w: leaf %s", ErrDuplicateNode, op.NewLeaf.LeafId)
		}
		s.Leaves[op.NewLeaf.LeafId] = op.NewLeaf
		leafIdx := s.allocateLeafIndex(op.NewLeaf.LeafId)
		branch.Children = append(branch.Children, leafIdx)
		if branch.ChildLeaf == nil {
			branch.ChildLeaf = make(map[ids.NodeIndex]bool)
		}
		branch.ChildLeaf[leafIdx] = true
		s.Branches[op.TargetBranch] = branch
		return nil

	case OpRemoveLeaf:
		leafIdx, ok := s.NodeIndexForLeaf(op.RemoveLeafId)
		if !ok {
			return fmt.Errorf("tree: %w: leaf %s", ErrUnknownNode, op.RemoveLeafId)
		}
		delete(s.Leaves, op.RemoveLeafId)
		delete(s.leafIndex, op.RemoveLeafId)
		children := branch.Children[:0]
		for _, c := range branch.Children {
			if c != leafIdx {
				children = append(children, c)
			}
		}
		branch.Children = children
		delete(branch.ChildLeaf, leafIdx)
		s.Branches[op.TargetBranch] = branch
		return nil

	case OpChangePolicy:
		if !IsStricterOrEqual(op.NewPolicy, branch.Policy) {
			return &PolicyWeakeningError{Node: op.TargetBranch, Old: branch.Policy, New: op.NewPolicy}
		}
		branch.Policy = op.NewPolicy
		s.Branches[op.TargetBranch] = branch
		return nil

	case OpRotateEpoch:
		return nil

	default:
		return fmt.Errorf("tree: unknown op kind %d", op.Kind)
	}
}

// validateInvariants checks acyclicity, that every branch is reachable
// from the root, and that the recomputed root commitment is non-zero
// (spec §4.3's closing invariant check before commit). Duplicate node
// indices are not checked here.
func validateInvariants(s *State) error {
	seen := make(map[ids.NodeIndex]bool, len(s.Branches))
	var visit func(ids.NodeIndex, map[ids.NodeIndex]bool) error
	visit = func(idx ids.NodeIndex, onPath map[ids.NodeIndex]bool) error {
		if onPath[idx] {
			return ErrCyclicTree
		}
		b, ok := s.Branches[idx]
		if !ok {
			return nil // leaf: terminal
		}
		if seen[idx] {
			return nil
		}
		seen[idx] = true
		onPath[idx] = true
		for _, child := range b.Children {
			if !b.ChildLeaf[child] {
				if err := visit(child, onPath); err != nil {
					return err
				}
			}
		}
		delete(onPath, idx)
		return nil
	}
	if err := visit(s.RootIndex, map[ids.NodeIndex]bool{}); err != nil {
		return err
	}
	if len(seen) != len(s.Branches) {
		return fmt.Errorf("tree: %w: %d branches unreachable from root", ErrUnknownNode, len(s.Branches)-len(seen))
	}

	if s.RootCommitment == ([32]byte{}) {
		return ErrRootMismatch
	}
	return nil
}
