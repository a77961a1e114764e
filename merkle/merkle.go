// Package merkle implements the commitment tree and inclusion proofs of
// spec §4.6: leaves are H(payload_i); internal nodes are H(left || right);
// an odd level carries its unpaired last element forward to the tail of the
// next level rather than duplicating it.
//
// Grounded on EZ_Units/MerkleTree.py for the odd-node-carry construction and
// proof-trace algorithm, and on the teacher's
// domain/consensus/utils/merkle package for Go package shape and doc style.
package merkle

import (
	"github.com/ezchain/ezchain-core/cryptoutil"
	"github.com/ezchain/ezchain-core/kind"
)

// Hash is a 32-byte SHA-256 digest.
type Hash = [32]byte

func hashPayload(payload []byte) Hash {
	return cryptoutil.Hash256(payload)
}

func hashPair(l, r Hash) Hash {
	buf := make([]byte, 0, 64)
	buf = append(buf, l[:]...)
	buf = append(buf, r[:]...)
	return cryptoutil.Hash256(buf)
}

// Tree is a constructed Merkle tree over a fixed set of leaf payloads.
type Tree struct {
	leaves []Hash
	levels [][]Hash // levels[0] == leaves, levels[last] == [root]
}

// New builds a Tree over the given leaf payloads. A single payload
// short-circuits: the tree's one leaf hash is also its root (the genesis
// construction of spec §4.6).
func New(payloads [][]byte) (*Tree, error) {
	if len(payloads) == 0 {
		return nil, kind.InvalidArgumentf("merkle tree requires at least one leaf")
	}
	leaves := make([]Hash, len(payloads))
	for i, p := range payloads {
		leaves[i] = hashPayload(p)
	}
	levels := [][]Hash{leaves}
	cur := leaves
	for len(cur) > 1 {
		cur = nextLevel(cur)
		levels = append(levels, cur)
	}
	return &Tree{leaves: leaves, levels: levels}, nil
}

// nextLevel computes one level up from cur: consecutive pairs are hashed in
// order; if len(cur) is odd, the final (unpaired) element is carried to the
// tail of the returned level unchanged.
func nextLevel(cur []Hash) []Hash {
	n := len(cur)
	m := n / 2
	next := make([]Hash, 0, m+1)
	for i := 0; i+1 < n; i += 2 {
		next = append(next, hashPair(cur[i], cur[i+1]))
	}
	if n%2 == 1 {
		next = append(next, cur[n-1])
	}
	return next
}

// Root returns the tree's root hash.
func (t *Tree) Root() Hash {
	last := t.levels[len(t.levels)-1]
	return last[0]
}

// LeafCount returns the number of leaves the tree was built over.
func (t *Tree) LeafCount() int { return len(t.leaves) }

// Proof returns the inclusion proof for leaf index i, in the format of spec
// §4.6: [leaf_hash, sibling_0, parent_0, sibling_1, parent_1, ..., root].
// For a single-leaf (genesis) tree the proof has length 1.
func (t *Tree) Proof(i int) ([]Hash, error) {
	if i < 0 || i >= len(t.leaves) {
		return nil, kind.NotFoundf("leaf index %d out of range", i)
	}
	proof := []Hash{t.leaves[i]}
	pos := i
	for level := 0; level < len(t.levels)-1; level++ {
		cur := t.levels[level]
		n := len(cur)
		pairedCount := n - n%2
		if pos < pairedCount {
			var sibling Hash
			var parentIdx int
			if pos%2 == 0 {
				sibling = cur[pos+1]
				parentIdx = pos / 2
			} else {
				sibling = cur[pos-1]
				parentIdx = (pos - 1) / 2
			}
			parent := t.levels[level+1][parentIdx]
			proof = append(proof, sibling, parent)
			pos = parentIdx
		} else {
			// pos is the unpaired last element of this level, carried
			// forward unchanged to the tail of the next level.
			pos = len(t.levels[level+1]) - 1
		}
	}
	return proof, nil
}

// VerifyProof checks that proof is a valid inclusion proof of leafPayload
// under root, per spec §4.6. A proof of length 1 is valid iff
// leaf_hash == root == H(leafPayload). For length >= 3 (which must be odd),
// each (sibling, parent) pair must satisfy H(cur||sibling) == parent or
// H(sibling||cur) == parent, walking cur forward to parent each step; the
// final cur must equal root.
func VerifyProof(proof []Hash, leafPayload []byte, root Hash) bool {
	if len(proof) == 0 {
		return false
	}
	leafHash := hashPayload(leafPayload)
	if proof[0] != leafHash {
		return false
	}
	if len(proof) == 1 {
		return proof[0] == root && root == leafHash
	}
	if len(proof)%2 != 1 {
		return false
	}
	cur := proof[0]
	for k := 1; k+1 < len(proof); k += 2 {
		sibling := proof[k]
		parent := proof[k+1]
		if hashPair(cur, sibling) != parent && hashPair(sibling, cur) != parent {
			return false
		}
		cur = parent
	}
	return cur == root
}

// CheckTree recomputes every internal node bottom-up from the stored
// leaves and confirms the result matches the tree's stored levels,
// including the root. It is an integrity check of the Tree value itself,
// not of a proof.
func (t *Tree) CheckTree() bool {
	cur := t.leaves
	for level := 1; level < len(t.levels); level++ {
		cur = nextLevel(cur)
		stored := t.levels[level]
		if len(cur) != len(stored) {
			return false
		}
		for i := range cur {
			if cur[i] != stored[i] {
				return false
			}
		}
	}
	return true
}
