package tree

import (
	"encoding/binary"

	"github.com/hxrts/aura/pkg/crypto"
	"github.com/hxrts/aura/pkg/ids"
)

// leafCommitment computes H(LeafId || epoch || pubkey), per spec §3's
// "each node commits to its identity/policy and its children."
func leafCommitment(l Leaf) [32]byte {
	buf := make([]byte, 0, 16+8+len(l.PublicKey))
	buf = append(buf, l.LeafId[:]...)
	var epoch [8]byte
	binary.LittleEndian.PutUint64(epoch[:], l.Epoch)
	buf = append(buf, epoch[:]...)
	buf = append(buf, l.PublicKey...)
	return crypto.Hash(buf)
}

// branchCommitment computes H(policy-hash || ordered child-commitments ||
// epoch). Children are committed in the branch's stored order, which is
// itself canonical (insertion order at allocation time).
func branchCommitment(b Branch, s *State, epoch uint64) [32]byte {
	policyHash := b.Policy.Hash()
	buf := make([]byte, 0, 32+32*len(b.Children)+8)
	buf = append(buf, policyHash[:]...)
	for _, child := range b.Children {
		var c [32]byte
		if b.ChildLeaf[child] {
			if leaf, ok := s.leafByIndex(child); ok {
				c = leaf.commitment
			}
		} else if branch, ok := s.Branches[child]; ok {
			c = branch.commitment
		}
		buf = append(buf, c[:]...)
	}
	var e [8]byte
	binary.LittleEndian.PutUint64(e[:], epoch)
	buf = append(buf, e[:]...)
	return crypto.Hash(buf)
}

// leafByIndex resolves a synthetic leaf NodeIndex back to its Leaf.
func (s *State) leafByIndex(idx ids.NodeIndex) (Leaf, bool) {
	for id, li := range s.leafIndex {
		if li == idx {
			leaf, ok := s.Leaves[id]
			return leaf, ok
		}
	}
	return Leaf{}, false
}

// recomputeAll recomputes every leaf and branch commitment bottom-up, then
// the root commitment over the full node set (spec §3's commitment scheme,
// recomputed in full on every apply for simplicity — the tree sizes this
// protocol targets make incremental recomputation an unnecessary
// optimization).
func (s *State) recomputeAll() {
	for id, leaf := range s.Leaves {
		leaf.commitment = leafCommitment(leaf)
		s.Leaves[id] = leaf
	}

	// Recompute branches in dependency order: repeat passes until no
	// commitment changes, bounded by tree depth. Branch children may be
	// other branches, so a single bottom-up pass over an arbitrary map
	// order is not guaranteed correct; fixed-point iteration is.
	for pass := 0; pass < len(s.Branches)+1; pass++ {
		changed := false
		for idx, b := range s.Branches {
			next := branchCommitment(b, s, s.Epoch)
			if next != b.commitment {
				b.commitment = next
				s.Branches[idx] = b
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	buf := make([]byte, 0, 8+32*(len(s.Leaves)+len(s.Branches)))
	var e [8]byte
	binary.LittleEndian.PutUint64(e[:], s.Epoch)
	buf = append(buf, e[:]...)
	for _, idx := range sortedNodeIndices(s.Branches) {
		c := s.Branches[idx].commitment
		buf = append(buf, c[:]...)
	}
	for _, id := range sortedLeafIds(s.Leaves) {
		c := s.Leaves[id].commitment
		buf = append(buf, c[:]...)
	}
	s.RootCommitment = crypto.Hash(buf)
}

func sortedNodeIndices(m map[ids.NodeIndex]Branch) []ids.NodeIndex {
	out := make([]ids.NodeIndex, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func sortedLeafIds(m map[ids.LeafId]Leaf) []ids.LeafId {
	out := make([]ids.LeafId, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Less(out[j-1]); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
