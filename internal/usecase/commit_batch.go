package usecase

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"payout/internal/domain"
)

type CommitBatchRequest struct {
	Claims []domain.Claim
}

type CommitBatchResult struct {
	Head    domain.RootHead
	Records []domain.CommittedClaim
}

// CommitBatch is the commitment side: it turns a set of eligible claims into a
// published root head plus one stored inclusion proof per claim.
type CommitBatch struct {
	Roots   RootRepository
	Records ClaimRecordRepository
	Crypto  CryptoService
	Merkle  MerkleService
	Sign    func(domain.RootHead) ([]byte, error)
	Audit   *AuditEmitter
	Clock   Clock
}

func (uc *CommitBatch) Execute(ctx context.Context, req CommitBatchRequest) (*CommitBatchResult, error) {
	if len(req.Claims) == 0 {
		return nil, domain.ErrEmptyBatch
	}

	leaves := make([][]byte, 0, len(req.Claims))
	seen := make(map[string]struct{}, len(req.Claims))
	for i, claim := range req.Claims {
		leaf, err := uc.Crypto.ComputeLeafHash(claim)
		if err != nil {
			return nil, fmt.Errorf("claim %d: %w", i, err)
		}
		key := hex.EncodeToString(leaf)
		if _, dup := seen[key]; dup {
			// Two identical claims would share one leaf and could only be
			// redeemed once between them.
			return nil, fmt.Errorf("claim %d: duplicate leaf: %w", i, domain.ErrInvalidClaim)
		}
		seen[key] = struct{}{}
		leaves = append(leaves, leaf)
	}

	root, proofs, err := uc.Merkle.BuildTree(leaves)
	if err != nil {
		return nil, err
	}

	cycle, err := uc.Roots.BumpCycle(ctx)
	if err != nil {
		return nil, err
	}
	head := domain.RootHead{
		RootHash:    root,
		TreeSize:    int64(len(leaves)),
		BatchCycle:  cycle,
		CommittedAt: uc.now(),
	}
	if uc.Sign != nil {
		sig, err := uc.Sign(head)
		if err != nil {
			return nil, err
		}
		head.Signature = sig
	}
	if err := uc.Roots.SetRoot(ctx, head); err != nil {
		return nil, err
	}

	records := make([]domain.CommittedClaim, 0, len(req.Claims))
	for i, claim := range req.Claims {
		records = append(records, domain.CommittedClaim{
			Claim:      claim,
			LeafHash:   leaves[i],
			Proof:      proofs[i],
			BatchCycle: cycle,
		})
	}
	if uc.Records != nil {
		if err := uc.Records.ReplaceBatch(ctx, cycle, records); err != nil {
			return nil, err
		}
	}

	uc.Audit.EmitRootCommitted(ctx, domain.AuditActorAdminAPIKey, head, len(records))
	return &CommitBatchResult{Head: head, Records: records}, nil
}

// SetRoot publishes an externally built root, for the split deployment where
// the builder runs offline and only hands the engine a root hash.
func (uc *CommitBatch) SetRoot(ctx context.Context, rootHash []byte, treeSize int64) (*domain.RootHead, error) {
	if len(rootHash) == 0 {
		return nil, domain.ErrInvalidProof
	}
	cycle, err := uc.Roots.BumpCycle(ctx)
	if err != nil {
		return nil, err
	}
	head := domain.RootHead{
		RootHash:    rootHash,
		TreeSize:    treeSize,
		BatchCycle:  cycle,
		CommittedAt: uc.now(),
	}
	if uc.Sign != nil {
		sig, err := uc.Sign(head)
		if err != nil {
			return nil, err
		}
		head.Signature = sig
	}
	if err := uc.Roots.SetRoot(ctx, head); err != nil {
		return nil, err
	}
	uc.Audit.EmitRootCommitted(ctx, domain.AuditActorAdminAPIKey, head, 0)
	return &head, nil
}

func (uc *CommitBatch) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock().UTC()
	}
	return time.Now().UTC()
}
