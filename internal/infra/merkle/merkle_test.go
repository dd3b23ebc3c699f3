package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"testing"
)

func testLeaves(n int) [][]byte {
	leaves := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		sum := sha256.Sum256([]byte(fmt.Sprintf("leaf-%d", i)))
		leaves = append(leaves, sum[:])
	}
	return leaves
}

func TestBuildTreeEmpty(t *testing.T) {
	if _, _, err := BuildTree(nil); !errors.Is(err, ErrEmptyTree) {
		t.Fatalf("expected ErrEmptyTree, got %v", err)
	}
}

func TestBuildTreeInvalidLeafLength(t *testing.T) {
	if _, _, err := BuildTree([][]byte{[]byte("short")}); !errors.Is(err, ErrInvalidHashLen) {
		t.Fatalf("expected ErrInvalidHashLen, got %v", err)
	}
}

func TestBuildTreeSingleLeaf(t *testing.T) {
	leaves := testLeaves(1)
	root, proofs, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	if !bytes.Equal(root, leaves[0]) {
		t.Fatal("single-leaf root should equal the leaf hash")
	}
	if len(proofs[0]) != 0 {
		t.Fatalf("single-leaf proof should be empty, got %d nodes", len(proofs[0]))
	}
	ok, err := VerifyProof(leaves[0], proofs[0], root)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected empty proof to verify against leaf root")
	}
}

func TestBuildTreeProofsVerifyAllSizes(t *testing.T) {
	for n := 1; n <= 9; n++ {
		leaves := testLeaves(n)
		root, proofs, err := BuildTree(leaves)
		if err != nil {
			t.Fatalf("size %d: build tree: %v", n, err)
		}
		if len(proofs) != n {
			t.Fatalf("size %d: expected %d proofs, got %d", n, n, len(proofs))
		}
		for i, leaf := range leaves {
			ok, err := VerifyProof(leaf, proofs[i], root)
			if err != nil {
				t.Fatalf("size %d leaf %d: verify: %v", n, i, err)
			}
			if !ok {
				t.Fatalf("size %d leaf %d: proof does not verify", n, i)
			}
		}
	}
}

func TestBuildTreeDeterministic(t *testing.T) {
	leaves := testLeaves(7)
	root1, _, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	root2, _, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	if !bytes.Equal(root1, root2) {
		t.Fatal("same leaves must produce the same root")
	}
}

func TestBuildTreeOrderIndependent(t *testing.T) {
	for n := 2; n <= 9; n++ {
		leaves := testLeaves(n)
		reversed := make([][]byte, n)
		for i, leaf := range leaves {
			reversed[n-1-i] = leaf
		}
		root1, _, err := BuildTree(leaves)
		if err != nil {
			t.Fatalf("size %d: build tree: %v", n, err)
		}
		root2, _, err := BuildTree(reversed)
		if err != nil {
			t.Fatalf("size %d: build reversed: %v", n, err)
		}
		if !bytes.Equal(root1, root2) {
			t.Fatalf("size %d: root depends on leaf insertion order: %x vs %x", n, root1, root2)
		}
	}

	// A proof generated from either ordering verifies against the other's root.
	leaves := testLeaves(4)
	shuffled := [][]byte{leaves[2], leaves[0], leaves[3], leaves[1]}
	root1, proofs1, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	root2, proofs2, err := BuildTree(shuffled)
	if err != nil {
		t.Fatalf("build shuffled: %v", err)
	}
	if !bytes.Equal(root1, root2) {
		t.Fatalf("root depends on leaf insertion order: %x vs %x", root1, root2)
	}
	for i, leaf := range leaves {
		ok, err := VerifyProof(leaf, proofs1[i], root2)
		if err != nil {
			t.Fatalf("leaf %d: verify: %v", i, err)
		}
		if !ok {
			t.Fatalf("leaf %d: proof does not verify against the shuffled build's root", i)
		}
	}
	for i, leaf := range shuffled {
		ok, err := VerifyProof(leaf, proofs2[i], root1)
		if err != nil {
			t.Fatalf("shuffled leaf %d: verify: %v", i, err)
		}
		if !ok {
			t.Fatalf("shuffled leaf %d: proof does not verify against the original build's root", i)
		}
	}
}

func TestNodeHashSymmetric(t *testing.T) {
	leaves := testLeaves(2)
	ab := NodeHash(leaves[0], leaves[1])
	ba := NodeHash(leaves[1], leaves[0])
	if !bytes.Equal(ab, ba) {
		t.Fatal("sorted-pair combination must not depend on argument order")
	}
}

func TestNodeHashDiffersFromLeafHash(t *testing.T) {
	leaves := testLeaves(2)
	node := NodeHash(leaves[0], leaves[1])
	if bytes.Equal(node, leaves[0]) || bytes.Equal(node, leaves[1]) {
		t.Fatal("interior node hash collided with a leaf hash")
	}
}

func TestOddLeafPromotion(t *testing.T) {
	leaves := testLeaves(3)
	root, proofs, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	sorted := append([][]byte(nil), leaves...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })

	// The byte-largest leaf pairs with nothing at the first level and is
	// promoted, so its proof holds only the combined hash of the other two.
	for i, leaf := range leaves {
		want := 2
		if bytes.Equal(leaf, sorted[2]) {
			want = 1
		}
		if len(proofs[i]) != want {
			t.Fatalf("leaf %d: expected proof length %d, got %d", i, want, len(proofs[i]))
		}
	}
	expected := NodeHash(NodeHash(sorted[0], sorted[1]), sorted[2])
	if !bytes.Equal(root, expected) {
		t.Fatal("three-leaf root mismatch")
	}
}

func TestVerifyProofRejectsMutations(t *testing.T) {
	leaves := testLeaves(5)
	root, proofs, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	leaf := leaves[3]
	proof := proofs[3]

	mutatedLeaf := append([]byte(nil), leaf...)
	mutatedLeaf[0] ^= 0x01
	if ok, _ := VerifyProof(mutatedLeaf, proof, root); ok {
		t.Fatal("mutated leaf must not verify")
	}

	for i := range proof {
		mutated := make([][]byte, len(proof))
		for j, node := range proof {
			mutated[j] = append([]byte(nil), node...)
		}
		mutated[i][0] ^= 0x01
		if ok, _ := VerifyProof(leaf, mutated, root); ok {
			t.Fatalf("mutated proof node %d must not verify", i)
		}
	}

	mutatedRoot := append([]byte(nil), root...)
	mutatedRoot[31] ^= 0x01
	if ok, _ := VerifyProof(leaf, proof, mutatedRoot); ok {
		t.Fatal("mutated root must not verify")
	}
}

func TestVerifyProofWrongLeaf(t *testing.T) {
	leaves := testLeaves(4)
	root, proofs, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	ok, err := VerifyProof(leaves[0], proofs[1], root)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("a proof for another leaf must not verify")
	}
}

func TestVerifyProofInvalidNodeLength(t *testing.T) {
	leaves := testLeaves(2)
	root, proofs, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	bad := append(proofs[0], []byte("short"))
	if _, err := VerifyProof(leaves[0], bad, root); !errors.Is(err, ErrInvalidHashLen) {
		t.Fatalf("expected ErrInvalidHashLen, got %v", err)
	}
}

func TestBuildTreeDoesNotAliasInput(t *testing.T) {
	leaves := testLeaves(4)
	root, _, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	leaves[0][0] ^= 0xff
	root2, _, err := BuildTree(testLeaves(4))
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	if !bytes.Equal(root, root2) {
		t.Fatal("mutating caller leaves after BuildTree must not change computed roots")
	}
}
