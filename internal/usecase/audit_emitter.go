package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"payout/internal/domain"
)

type AuditEmitter struct {
	Repo  AuditEventRepository
	Clock Clock
}

func NewAuditEmitter(repo AuditEventRepository, clock Clock) *AuditEmitter {
	return &AuditEmitter{
		Repo:  repo,
		Clock: clock,
	}
}

func (e *AuditEmitter) Emit(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if e == nil || e.Repo == nil {
		return domain.AuditEvent{}, errors.New("audit repository required")
	}
	if event.EventType == "" || event.TargetType == "" || event.Result == "" || event.ActorType == "" {
		return domain.AuditEvent{}, errors.New("audit event missing required fields")
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = e.now().UTC()
	} else {
		event.CreatedAt = event.CreatedAt.UTC()
	}
	return e.Repo.Append(ctx, event)
}

func (e *AuditEmitter) EmitRootCommitted(ctx context.Context, actorType domain.AuditActorType, head domain.RootHead, claimCount int) error {
	if e == nil || e.Repo == nil {
		return nil
	}
	payload := map[string]any{
		"root_hash":   hexEncode(head.RootHash),
		"tree_size":   head.TreeSize,
		"batch_cycle": head.BatchCycle,
		"claim_count": int64(claimCount),
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		ActorType:  actorType,
		EventType:  domain.AuditEventRootCommitted,
		Payload:    payload,
		TargetType: domain.AuditTargetRoot,
		TargetID:   hexEncode(head.RootHash),
		Result:     domain.AuditResultSuccess,
	})
	return err
}

func (e *AuditEmitter) EmitClaimPaid(ctx context.Context, claim domain.Claim, leafHash []byte, batchCycle int64) error {
	if e == nil || e.Repo == nil {
		return nil
	}
	payload := map[string]any{
		"beneficiary": claim.Beneficiary.String(),
		"claim_id":    claim.ClaimID,
		"amount":      claim.Amount,
		"batch_cycle": batchCycle,
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		ActorType:   domain.AuditActorClaimant,
		ActorIDHash: hashString(claim.Beneficiary.String()),
		EventType:   domain.AuditEventClaimPaid,
		Payload:     payload,
		TargetType:  domain.AuditTargetLeaf,
		TargetID:    hexEncode(leafHash),
		Result:      domain.AuditResultSuccess,
	})
	return err
}

// EmitTransferFailed records a claim whose leaf was spent but whose payout
// could not be stored or handed to the transfer collaborator. The leaf stays
// spent, so these events are the operator's only trace of money owed.
func (e *AuditEmitter) EmitTransferFailed(ctx context.Context, claim domain.Claim, leafHash []byte, batchCycle int64, errorCode string) error {
	if e == nil || e.Repo == nil {
		return nil
	}
	payload := map[string]any{
		"beneficiary": claim.Beneficiary.String(),
		"claim_id":    claim.ClaimID,
		"amount":      claim.Amount,
		"batch_cycle": batchCycle,
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		ActorType:   domain.AuditActorClaimant,
		ActorIDHash: hashString(claim.Beneficiary.String()),
		EventType:   domain.AuditEventTransferFailed,
		Payload:     payload,
		TargetType:  domain.AuditTargetLeaf,
		TargetID:    hexEncode(leafHash),
		Result:      domain.AuditResultFailure,
		ErrorCode:   errorCode,
	})
	return err
}

func (e *AuditEmitter) EmitClaimRejected(ctx context.Context, claim domain.Claim, errorCode string) error {
	if e == nil || e.Repo == nil {
		return nil
	}
	payload := map[string]any{
		"beneficiary": claim.Beneficiary.String(),
		"claim_id":    claim.ClaimID,
		"amount":      claim.Amount,
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		ActorType:   domain.AuditActorClaimant,
		ActorIDHash: hashString(claim.Beneficiary.String()),
		EventType:   domain.AuditEventClaimRejected,
		Payload:     payload,
		TargetType:  domain.AuditTargetLeaf,
		Result:      domain.AuditResultFailure,
		ErrorCode:   errorCode,
	})
	return err
}

func (e *AuditEmitter) now() time.Time {
	if e != nil && e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}

func hexEncode(value []byte) string {
	return hex.EncodeToString(value)
}

func hashString(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
