package merkle_test

import (
	"testing"

	"github.com/ezchain/ezchain-core/merkle"
)

func payloads(n int) [][]byte {
	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		out[i] = []byte{byte('a' + i)}
	}
	return out
}

func TestGenesisSingleLeafIsRoot(t *testing.T) {
	tree, err := merkle.New(payloads(1))
	if err != nil {
		t.Fatal(err)
	}
	proof, err := tree.Proof(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(proof) != 1 {
		t.Fatalf("expected genesis proof length 1, got %d", len(proof))
	}
	if proof[0] != tree.Root() {
		t.Fatalf("expected leaf hash to equal root")
	}
	if !merkle.VerifyProof(proof, payloads(1)[0], tree.Root()) {
		t.Fatalf("expected genesis proof to verify")
	}
}

func TestEveryLeafVerifiesEvenCount(t *testing.T) {
	ps := payloads(4)
	tree, err := merkle.New(ps)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range ps {
		proof, err := tree.Proof(i)
		if err != nil {
			t.Fatal(err)
		}
		if len(proof)%2 != 1 {
			t.Fatalf("leaf %d: proof length must be odd, got %d", i, len(proof))
		}
		if !merkle.VerifyProof(proof, p, tree.Root()) {
			t.Fatalf("leaf %d: proof failed to verify", i)
		}
	}
}

func TestEveryLeafVerifiesOddCount(t *testing.T) {
	ps := payloads(5)
	tree, err := merkle.New(ps)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range ps {
		proof, err := tree.Proof(i)
		if err != nil {
			t.Fatal(err)
		}
		if !merkle.VerifyProof(proof, p, tree.Root()) {
			t.Fatalf("leaf %d: proof failed to verify", i)
		}
	}
}

func TestOddLevelCarriesLastElementUnchanged(t *testing.T) {
	// Three leaves: A, B, C. Level0 = [H(A),H(B),H(C)]; pair (H(A),H(B)) ->
	// P; C is carried unchanged to the tail: level1 = [P, H(C)]. Root =
	// H(P || H(C)).
	ps := payloads(3)
	tree, err := merkle.New(ps)
	if err != nil {
		t.Fatal(err)
	}
	proofC, err := tree.Proof(2)
	if err != nil {
		t.Fatal(err)
	}
	// C was never paired at level0, so its only (sibling, parent) step
	// happens at level1 where it sits paired against P.
	if len(proofC) != 3 {
		t.Fatalf("expected carried leaf's proof length 3, got %d", len(proofC))
	}
	if !merkle.VerifyProof(proofC, ps[2], tree.Root()) {
		t.Fatalf("expected carried leaf's proof to verify")
	}
}

func TestTamperedProofFailsVerification(t *testing.T) {
	ps := payloads(4)
	tree, err := merkle.New(ps)
	if err != nil {
		t.Fatal(err)
	}
	proof, err := tree.Proof(1)
	if err != nil {
		t.Fatal(err)
	}
	proof[1][0] ^= 0xFF
	if merkle.VerifyProof(proof, ps[1], tree.Root()) {
		t.Fatalf("expected tampered proof to fail verification")
	}
}

func TestWrongLeafPayloadFailsVerification(t *testing.T) {
	ps := payloads(4)
	tree, err := merkle.New(ps)
	if err != nil {
		t.Fatal(err)
	}
	proof, err := tree.Proof(0)
	if err != nil {
		t.Fatal(err)
	}
	if merkle.VerifyProof(proof, ps[1], tree.Root()) {
		t.Fatalf("expected mismatched payload to fail verification")
	}
}

func TestCheckTreeIntegrity(t *testing.T) {
	tree, err := merkle.New(payloads(7))
	if err != nil {
		t.Fatal(err)
	}
	if !tree.CheckTree() {
		t.Fatalf("expected freshly built tree to pass integrity check")
	}
}

func TestNewRejectsEmptyLeafSet(t *testing.T) {
	if _, err := merkle.New(nil); err == nil {
		t.Fatalf("expected error for empty leaf set")
	}
}

func TestProofOutOfRange(t *testing.T) {
	tree, err := merkle.New(payloads(2))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tree.Proof(5); err == nil {
		t.Fatalf("expected error for out-of-range leaf index")
	}
}
