package usecase

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	"payout/internal/domain"
	cryptoinfra "payout/internal/infra/crypto"
	"payout/internal/infra/ledgermem"
	"payout/internal/infra/merkle"
)

func testAddress(t *testing.T, suffix byte) domain.Address {
	t.Helper()
	var addr domain.Address
	addr[domain.AddressSize-1] = suffix
	return addr
}

func testClaims(t *testing.T) []domain.Claim {
	t.Helper()
	return []domain.Claim{
		{Beneficiary: testAddress(t, 0xa1), ClaimID: 1, Amount: 100},
		{Beneficiary: testAddress(t, 0xb2), ClaimID: 2, Amount: 50},
		{Beneficiary: testAddress(t, 0xc3), ClaimID: 3, Amount: 75},
	}
}

func newCommitBatch(ledger *ledgermem.Ledger) *CommitBatch {
	return &CommitBatch{
		Roots:   ledger,
		Records: ledger,
		Crypto:  &cryptoinfra.Service{},
		Merkle:  &merkle.Service{},
		Audit:   NewAuditEmitter(ledger, nil),
		Clock:   func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestCommitBatchEmpty(t *testing.T) {
	uc := newCommitBatch(ledgermem.New())
	if _, err := uc.Execute(context.Background(), CommitBatchRequest{}); !errors.Is(err, domain.ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestCommitBatchRejectsInvalidClaim(t *testing.T) {
	uc := newCommitBatch(ledgermem.New())
	claims := testClaims(t)
	claims[1].Amount = 0
	if _, err := uc.Execute(context.Background(), CommitBatchRequest{Claims: claims}); !errors.Is(err, domain.ErrInvalidClaim) {
		t.Fatalf("expected ErrInvalidClaim, got %v", err)
	}
}

func TestCommitBatchRejectsDuplicateClaims(t *testing.T) {
	uc := newCommitBatch(ledgermem.New())
	claims := testClaims(t)
	claims = append(claims, claims[0])
	if _, err := uc.Execute(context.Background(), CommitBatchRequest{Claims: claims}); !errors.Is(err, domain.ErrInvalidClaim) {
		t.Fatalf("expected ErrInvalidClaim for duplicate leaf, got %v", err)
	}
}

func TestCommitBatchProofsVerifyAgainstHead(t *testing.T) {
	ledger := ledgermem.New()
	uc := newCommitBatch(ledger)

	result, err := uc.Execute(context.Background(), CommitBatchRequest{Claims: testClaims(t)})
	if err != nil {
		t.Fatalf("commit batch: %v", err)
	}
	if result.Head.TreeSize != 3 {
		t.Fatalf("expected tree size 3, got %d", result.Head.TreeSize)
	}
	if result.Head.BatchCycle != 1 {
		t.Fatalf("expected first batch cycle 1, got %d", result.Head.BatchCycle)
	}

	merkleSvc := &merkle.Service{}
	for i, record := range result.Records {
		ok, err := merkleSvc.VerifyProof(record.LeafHash, record.Proof, result.Head.RootHash)
		if err != nil {
			t.Fatalf("record %d: verify: %v", i, err)
		}
		if !ok {
			t.Fatalf("record %d: proof does not verify against committed head", i)
		}
	}

	head, err := ledger.GetCurrent(context.Background())
	if err != nil {
		t.Fatalf("get current head: %v", err)
	}
	if head.BatchCycle != result.Head.BatchCycle {
		t.Fatalf("stored head cycle %d, expected %d", head.BatchCycle, result.Head.BatchCycle)
	}
}

func TestCommitBatchStoresRetrievableRecords(t *testing.T) {
	ledger := ledgermem.New()
	uc := newCommitBatch(ledger)

	result, err := uc.Execute(context.Background(), CommitBatchRequest{Claims: testClaims(t)})
	if err != nil {
		t.Fatalf("commit batch: %v", err)
	}
	stored, err := ledger.GetByLeafHash(context.Background(), result.Records[1].LeafHash)
	if err != nil {
		t.Fatalf("get by leaf hash: %v", err)
	}
	if stored.ClaimID != result.Records[1].ClaimID {
		t.Fatalf("stored claim id %d, expected %d", stored.ClaimID, result.Records[1].ClaimID)
	}
}

func TestCommitBatchCycleIncrements(t *testing.T) {
	ledger := ledgermem.New()
	uc := newCommitBatch(ledger)

	first, err := uc.Execute(context.Background(), CommitBatchRequest{Claims: testClaims(t)})
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	second, err := uc.Execute(context.Background(), CommitBatchRequest{Claims: testClaims(t)[:2]})
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if second.Head.BatchCycle != first.Head.BatchCycle+1 {
		t.Fatalf("expected cycle %d, got %d", first.Head.BatchCycle+1, second.Head.BatchCycle)
	}

	head, err := ledger.GetCurrent(context.Background())
	if err != nil {
		t.Fatalf("get current head: %v", err)
	}
	if head.BatchCycle != second.Head.BatchCycle {
		t.Fatal("current head must be the latest committed cycle")
	}
}

func TestCommitBatchSignsHead(t *testing.T) {
	ledger := ledgermem.New()
	uc := newCommitBatch(ledger)

	priv, err := cryptoinfra.KeyFromSeedHex("0202020202020202020202020202020202020202020202020202020202020202")
	if err != nil {
		t.Fatalf("key from seed: %v", err)
	}
	cryptoSvc := &cryptoinfra.Service{}
	uc.Sign = func(head domain.RootHead) ([]byte, error) {
		return cryptoSvc.SignRootHead(head, priv)
	}

	result, err := uc.Execute(context.Background(), CommitBatchRequest{Claims: testClaims(t)})
	if err != nil {
		t.Fatalf("commit batch: %v", err)
	}
	if len(result.Head.Signature) == 0 {
		t.Fatal("expected signed head")
	}
	pub := priv.Public().(ed25519.PublicKey)
	if err := cryptoSvc.VerifyRootHeadSignature(result.Head, result.Head.Signature, pub); err != nil {
		t.Fatalf("verify head signature: %v", err)
	}
}

func TestSetRootExternal(t *testing.T) {
	ledger := ledgermem.New()
	uc := newCommitBatch(ledger)

	rootHash := make([]byte, 32)
	rootHash[0] = 0x7f
	head, err := uc.SetRoot(context.Background(), rootHash, 12)
	if err != nil {
		t.Fatalf("set root: %v", err)
	}
	if head.TreeSize != 12 || head.BatchCycle != 1 {
		t.Fatalf("unexpected head: size=%d cycle=%d", head.TreeSize, head.BatchCycle)
	}

	if _, err := uc.SetRoot(context.Background(), nil, 0); !errors.Is(err, domain.ErrInvalidProof) {
		t.Fatalf("expected ErrInvalidProof for empty root, got %v", err)
	}
}
