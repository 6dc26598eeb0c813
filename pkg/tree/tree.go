// Package tree implements component C3: the ratchet tree, a policy-bearing
// tree over devices/leaves with verified op application and commitment
// recomputation. Ported in meaning from
// _examples/original_source/crates/aura-journal/src/ratchet_tree/application.rs,
// structured the way the teacher's pkg/merkle builds and recomputes trees
// and pkg/commitment hashes canonical state.
package tree

import "github.com/hxrts/aura/pkg/ids"

// IdentityKind distinguishes a device leaf from an external identity leaf.
type IdentityKind uint8

const (
	IdentityDevice IdentityKind = iota
	IdentityExternal
)

// Leaf is a terminal node: a device or external identity with a public key.
type Leaf struct {
	LeafId       ids.LeafId
	Identity     IdentityKind
	PublicKey    []byte
	Epoch        uint64
	commitment   [32]byte
}

func (l Leaf) Commitment() [32]byte { return l.commitment }

// Branch is an internal node with an ordered child list and a policy
// governing which child signatures authorize operations under it.
type Branch struct {
	Index      ids.NodeIndex
	Children   []ids.NodeIndex // ordered; may reference leaves or branches
	ChildLeaf  map[ids.NodeIndex]bool // true if the corresponding Children entry is a leaf index space, false if branch
	Policy     Policy
	commitment [32]byte
}

func (b Branch) Commitment() [32]byte { return b.commitment }

// State is a full ratchet tree snapshot: spec §3's "Rooted tree."
type State struct {
	Epoch          uint64
	RootCommitment [32]byte
	RootIndex      ids.NodeIndex
	Leaves         map[ids.LeafId]Leaf
	Branches       map[ids.NodeIndex]Branch

	// leafIndex maps a LeafId to a synthetic NodeIndex space disjoint
	// from Branches' keys, so Branch.Children can reference either
	// uniformly; see NodeIndexForLeaf.
	leafIndex map[ids.LeafId]ids.NodeIndex
	nextLeafIdx ids.NodeIndex
}

// NewGenesisState returns an empty tree at epoch 0 with a single root
// branch under rootPolicy; genesis is exempt from parent-binding checks
// (spec §4.3).
func NewGenesisState(rootPolicy Policy) *State {
	root := Branch{Index: 1, Policy: rootPolicy, ChildLeaf: map[ids.NodeIndex]bool{}}
	s := &State{
		Epoch:     0,
		RootIndex: 1,
		Leaves:    make(map[ids.LeafId]Leaf),
		Branches:  map[ids.NodeIndex]Branch{1: root},
		leafIndex: make(map[ids.LeafId]ids.NodeIndex),
		nextLeafIdx: 1 << 32, // leaf indices start at 1<<32, above every branch index
	}
	s.recomputeAll()
	return s
}

// clone deep-copies the state so ApplyVerified can operate speculatively
// and discard the copy on any pipeline failure (spec §4.3: "Failure on
// any step is atomic — state remains as on entry").
func (s *State) clone() *State {
	cp := &State{
		Epoch:       s.Epoch,
		RootCommitment: s.RootCommitment,
		RootIndex:   s.RootIndex,
		Leaves:      make(map[ids.LeafId]Leaf, len(s.Leaves)),
		Branches:    make(map[ids.NodeIndex]Branch, len(s.Branches)),
		leafIndex:   make(map[ids.LeafId]ids.NodeIndex, len(s.leafIndex)),
		nextLeafIdx: s.nextLeafIdx,
	}
	for k, v := range s.Leaves {
		cp.Leaves[k] = v
	}
	for k, v := range s.Branches {
		children := make([]ids.NodeIndex, len(v.Children))
		copy(children, v.Children)
		childLeaf := make(map[ids.NodeIndex]bool, len(v.ChildLeaf))
		for ck, cv := range v.ChildLeaf {
			childLeaf[ck] = cv
		}
		v.Children = children
		v.ChildLeaf = childLeaf
		cp.Branches[k] = v
	}
	for k, v := range s.leafIndex {
		cp.leafIndex[k] = v
	}
	return cp
}

// NodeIndexForLeaf returns the synthetic NodeIndex a leaf occupies within
// a branch's Children list.
func (s *State) NodeIndexForLeaf(id ids.LeafId) (ids.NodeIndex, bool) {
	idx, ok := s.leafIndex[id]
	return idx, ok
}

func (s *State) allocateLeafIndex(id ids.LeafId) ids.NodeIndex {
	idx := s.nextLeafIdx
	s.nextLeafIdx++
	s.leafIndex[id] = idx
	return idx
}
