package domain

import "time"

type AuditActorType string

const (
	AuditChainVersion = "audit_chain_v0"

	AuditActorSystem      AuditActorType = "system"
	AuditActorAdminAPIKey AuditActorType = "admin_api_key"
	AuditActorClaimant    AuditActorType = "claimant"
)

type AuditEventType string

const (
	AuditEventRootCommitted  AuditEventType = "root_committed"
	AuditEventClaimPaid      AuditEventType = "claim_paid"
	AuditEventClaimRejected  AuditEventType = "claim_rejected"
	AuditEventTransferFailed AuditEventType = "transfer_failed"
)

type AuditTargetType string

const (
	AuditTargetRoot AuditTargetType = "root"
	AuditTargetLeaf AuditTargetType = "leaf"
)

type AuditResult string

const (
	AuditResultSuccess AuditResult = "success"
	AuditResultFailure AuditResult = "failure"
)

type AuditEvent struct {
	ID            string
	Seq           int64
	EventType     AuditEventType
	Payload       any
	PayloadHash   string
	ActorType     AuditActorType
	ActorIDHash   string
	TargetType    AuditTargetType
	TargetID      string
	Result        AuditResult
	ErrorCode     string
	PrevEventHash string
	EventHash     string
	CreatedAt     time.Time
}
