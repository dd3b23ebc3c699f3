package usecase

import (
	"context"
	"errors"
	"time"

	"payout/internal/domain"
)

type ClaimPayoutRequest struct {
	Claim domain.Claim
	Proof [][]byte
}

type ClaimReceipt struct {
	LeafHash      []byte
	BatchCycle    int64
	Authorization domain.PayoutAuthorization
	Policy        *domain.PolicyEvaluation
}

// ClaimPayout is the verifier & ledger side: it recomputes the leaf from the
// presented claim, checks the proof against the current root, marks the leaf
// spent and only then authorizes the transfer.
type ClaimPayout struct {
	Roots    RootRepository
	Spent    SpentSetRepository
	Payouts  PayoutRepository
	Crypto   CryptoService
	Merkle   MerkleService
	Policy   PolicyEngine
	Transfer Transferer
	Audit    *AuditEmitter
	Clock    Clock
}

// VerifyAndSpend performs the atomic check-verify-mark step. On success the
// leaf is in the spent-set and the caller may authorize the transfer. Every
// failure leaves the spent-set untouched.
func (uc *ClaimPayout) VerifyAndSpend(ctx context.Context, req ClaimPayoutRequest) (*ClaimReceipt, error) {
	leaf, err := uc.Crypto.ComputeLeafHash(req.Claim)
	if err != nil {
		return nil, err
	}

	head, err := uc.Roots.GetCurrent(ctx)
	if err != nil {
		return nil, err
	}

	spent, err := uc.Spent.IsSpent(ctx, leaf)
	if err != nil {
		return nil, err
	}
	if spent {
		return nil, domain.ErrAlreadyClaimed
	}

	ok, err := uc.Merkle.VerifyProof(leaf, req.Proof, head.RootHash)
	if err != nil || !ok {
		return nil, domain.ErrInvalidProof
	}

	receipt := &ClaimReceipt{LeafHash: leaf, BatchCycle: head.BatchCycle}

	if uc.Policy != nil {
		eval, err := uc.Policy.Evaluate(ctx, uc.policyInput(req.Claim, leaf, head))
		if err != nil {
			return nil, err
		}
		receipt.Policy = &eval
		if !eval.Result.Allow {
			return nil, domain.ErrPolicyDenied
		}
	}

	inserted, err := uc.Spent.MarkSpent(ctx, domain.SpentLeaf{
		LeafHash:    leaf,
		Beneficiary: req.Claim.Beneficiary,
		ClaimID:     req.Claim.ClaimID,
		Amount:      req.Claim.Amount,
		BatchCycle:  head.BatchCycle,
		SpentAt:     uc.now(),
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Lost the race against a concurrent claim of the same leaf.
		return nil, domain.ErrAlreadyClaimed
	}
	return receipt, nil
}

// Execute is the claim entry point: VerifyAndSpend, then authorize and issue
// the transfer once the spend mark is durably recorded.
func (uc *ClaimPayout) Execute(ctx context.Context, req ClaimPayoutRequest) (*ClaimReceipt, error) {
	receipt, err := uc.VerifyAndSpend(ctx, req)
	if err != nil {
		uc.Audit.EmitClaimRejected(ctx, req.Claim, claimErrorCode(err))
		return nil, err
	}

	auth := domain.PayoutAuthorization{
		LeafHash:     receipt.LeafHash,
		Beneficiary:  req.Claim.Beneficiary,
		ClaimID:      req.Claim.ClaimID,
		Amount:       req.Claim.Amount,
		BatchCycle:   receipt.BatchCycle,
		AuthorizedAt: uc.now(),
	}
	if uc.Payouts != nil {
		stored, err := uc.Payouts.Create(ctx, auth)
		if err != nil {
			uc.Audit.EmitTransferFailed(ctx, req.Claim, receipt.LeafHash, receipt.BatchCycle, "PAYOUT_PERSIST_FAILED")
			return nil, err
		}
		auth = stored
	}
	if uc.Transfer != nil {
		if err := uc.Transfer.Transfer(ctx, auth); err != nil {
			// The leaf stays spent: the transfer collaborator owns retries of
			// an authorized payout, the engine must never re-verify it.
			uc.Audit.EmitTransferFailed(ctx, req.Claim, receipt.LeafHash, receipt.BatchCycle, "TRANSFER_FAILED")
			return nil, err
		}
	}
	receipt.Authorization = auth

	uc.Audit.EmitClaimPaid(ctx, req.Claim, receipt.LeafHash, receipt.BatchCycle)
	return receipt, nil
}

func (uc *ClaimPayout) policyInput(claim domain.Claim, leaf []byte, head *domain.RootHead) domain.PolicyInput {
	return domain.PolicyInput{
		Claim: domain.PolicyClaim{
			Beneficiary: claim.Beneficiary.String(),
			ClaimID:     claim.ClaimID,
			Amount:      claim.Amount,
			LeafHash:    hexEncode(leaf),
		},
		Verification: domain.PolicyVerification{
			ProofValid: true,
			BatchCycle: head.BatchCycle,
			TreeSize:   head.TreeSize,
		},
	}
}

func (uc *ClaimPayout) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock().UTC()
	}
	return time.Now().UTC()
}

func claimErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidClaim):
		return "INVALID_CLAIM"
	case errors.Is(err, domain.ErrNoRoot):
		return "NO_ROOT"
	case errors.Is(err, domain.ErrAlreadyClaimed):
		return "ALREADY_CLAIMED"
	case errors.Is(err, domain.ErrInvalidProof):
		return "INVALID_PROOF"
	case errors.Is(err, domain.ErrPolicyDenied):
		return "POLICY_DENIED"
	default:
		return "INTERNAL"
	}
}
