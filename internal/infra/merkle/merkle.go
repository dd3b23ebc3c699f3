package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
)

const HashSize = 32

var (
	ErrEmptyTree      = errors.New("empty merkle tree")
	ErrInvalidHashLen = errors.New("invalid hash length")
)

// NodeHash combines two sibling hashes. The pair is sorted byte-lexicographically
// before hashing, so the resulting root does not depend on left/right position
// and proofs carry no index. The 0x01 prefix domain-separates interior nodes
// from leaves.
func NodeHash(a, b []byte) []byte {
	if bytes.Compare(b, a) < 0 {
		a, b = b, a
	}
	hasher := sha256.New()
	hasher.Write([]byte{0x01})
	hasher.Write(a)
	hasher.Write(b)
	return hasher.Sum(nil)
}

// BuildTree builds the commitment tree over the given leaf hashes and returns
// the root together with one inclusion proof per input leaf, aligned by index.
// Leaves are first put in canonical byte-lexicographic order, so the root
// depends only on the multiset of leaves, never on the input order. The sorted
// leaves are then paired left to right; an odd node at the end of a level is
// promoted unchanged to the next level, contributing no sibling at that
// level. An empty input fails with ErrEmptyTree.
func BuildTree(leaves [][]byte) ([]byte, [][][]byte, error) {
	validated, err := cloneAndValidateLeaves(leaves)
	if err != nil {
		return nil, nil, err
	}
	level, pos := canonicalize(validated)

	proofs := make([][][]byte, len(pos))
	for len(level) > 1 {
		for i := range pos {
			sibling := pos[i] ^ 1
			if sibling < len(level) {
				proofs[i] = append(proofs[i], cloneHash(level[sibling]))
			}
			pos[i] /= 2
		}

		next := make([][]byte, 0, (len(level)+1)/2)
		for j := 0; j+1 < len(level); j += 2 {
			next = append(next, NodeHash(level[j], level[j+1]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}
	return level[0], proofs, nil
}

// Root computes just the root over the given leaf hashes.
func Root(leaves [][]byte) ([]byte, error) {
	root, _, err := BuildTree(leaves)
	return root, err
}

// VerifyProof folds the proof path over the leaf hash with the same sorted-pair
// rule as BuildTree and compares the result to the expected root. An over-long
// or foreign path simply fails the comparison.
func VerifyProof(leafHash []byte, path [][]byte, expectedRoot []byte) (bool, error) {
	if err := validateHash(leafHash); err != nil {
		return false, err
	}
	if err := validateHash(expectedRoot); err != nil {
		return false, err
	}
	hash := cloneHash(leafHash)
	for _, p := range path {
		if err := validateHash(p); err != nil {
			return false, err
		}
		hash = NodeHash(hash, p)
	}
	return bytes.Equal(hash, expectedRoot), nil
}

// canonicalize sorts the leaves byte-lexicographically and returns, for each
// original index, its position in the sorted order. Pairing over the sorted
// leaves is what makes the root order-independent; the sort inside NodeHash
// only removes sibling order within a pair, not the choice of pairs.
func canonicalize(leaves [][]byte) ([][]byte, []int) {
	order := make([]int, len(leaves))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return bytes.Compare(leaves[order[i]], leaves[order[j]]) < 0
	})
	sorted := make([][]byte, len(leaves))
	pos := make([]int, len(leaves))
	for rank, idx := range order {
		sorted[rank] = leaves[idx]
		pos[idx] = rank
	}
	return sorted, pos
}

func cloneAndValidateLeaves(leaves [][]byte) ([][]byte, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	out := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		if err := validateHash(leaf); err != nil {
			return nil, fmt.Errorf("leaf %d: %w", i, err)
		}
		out[i] = cloneHash(leaf)
	}
	return out, nil
}

func validateHash(hash []byte) error {
	if len(hash) != HashSize {
		return ErrInvalidHashLen
	}
	return nil
}

func cloneHash(hash []byte) []byte {
	if hash == nil {
		return nil
	}
	out := make([]byte, len(hash))
	copy(out, hash)
	return out
}
