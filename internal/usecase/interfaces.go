package usecase

import (
	"context"
	"time"

	"payout/internal/domain"
)

type Clock func() time.Time

type RootRepository interface {
	// GetCurrent returns the latest committed root head, or domain.ErrNoRoot
	// when nothing has been committed yet.
	GetCurrent(ctx context.Context) (*domain.RootHead, error)
	// BumpCycle atomically increments and returns the batch cycle counter.
	BumpCycle(ctx context.Context) (int64, error)
	// SetRoot publishes a new root head. The latest cycle wins.
	SetRoot(ctx context.Context, head domain.RootHead) error
}

type SpentSetRepository interface {
	IsSpent(ctx context.Context, leafHash []byte) (bool, error)
	// MarkSpent inserts the leaf into the spent-set. It reports false when the
	// leaf was already present; the insert-or-nothing semantics are the
	// atomicity boundary for concurrent claims of the same leaf.
	MarkSpent(ctx context.Context, spent domain.SpentLeaf) (bool, error)
}

type ClaimRecordRepository interface {
	// ReplaceBatch stores the committed claims and proofs for a cycle,
	// discarding records of prior cycles (their proofs are void once the root
	// is replaced).
	ReplaceBatch(ctx context.Context, batchCycle int64, records []domain.CommittedClaim) error
	GetByLeafHash(ctx context.Context, leafHash []byte) (*domain.CommittedClaim, error)
}

type PayoutRepository interface {
	// Create persists a payout authorization, assigning its ID.
	Create(ctx context.Context, auth domain.PayoutAuthorization) (domain.PayoutAuthorization, error)
}

type AuditEventRepository interface {
	Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error)
	List(ctx context.Context) ([]domain.AuditEvent, error)
}

type CryptoService interface {
	ComputeLeafHash(c domain.Claim) ([]byte, error)
}

type MerkleService interface {
	BuildTree(leaves [][]byte) (root []byte, proofs [][][]byte, err error)
	VerifyProof(leafHash []byte, path [][]byte, expectedRoot []byte) (bool, error)
}

type PolicyEngine interface {
	Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error)
}

// Transferer is the outbound asset-movement collaborator. It is invoked only
// after the spend mark is durably recorded, at most once per leaf.
type Transferer interface {
	Transfer(ctx context.Context, auth domain.PayoutAuthorization) error
}
