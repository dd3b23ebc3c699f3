package db

import "time"

type RootHeadModel struct {
	ID          int64     `gorm:"primaryKey"`
	BatchCycle  int64     `gorm:"uniqueIndex;not null"`
	RootHash    []byte    `gorm:"type:bytea;not null"`
	TreeSize    int64     `gorm:"not null"`
	Signature   []byte    `gorm:"type:bytea"`
	CommittedAt time.Time `gorm:"not null"`
}

func (RootHeadModel) TableName() string { return "root_heads" }

// Claim IDs and amounts are uint64 in the domain but map onto BIGINT columns
// here and in the claim-record and payout models. Values at or above 2^63
// round-trip losslessly through the int64 cast but read back negative in SQL,
// so the practical bound for SQL-side reporting is 2^63-1. Amounts are
// smallest-unit integers and stay far below that in practice.
type SpentLeafModel struct {
	LeafHash    string    `gorm:"primaryKey"`
	Beneficiary string    `gorm:"index;not null"`
	ClaimID     int64     `gorm:"not null"`
	Amount      int64     `gorm:"not null"`
	BatchCycle  int64     `gorm:"not null"`
	SpentAt     time.Time `gorm:"not null"`
}

func (SpentLeafModel) TableName() string { return "spent_leaves" }

type ClaimRecordModel struct {
	LeafHash    string    `gorm:"primaryKey"`
	Beneficiary string    `gorm:"index;not null"`
	ClaimID     int64     `gorm:"not null"`
	Amount      int64     `gorm:"not null"`
	BatchCycle  int64     `gorm:"index;not null"`
	ProofJSON   []byte    `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (ClaimRecordModel) TableName() string { return "claim_records" }

type PayoutModel struct {
	ID           string    `gorm:"type:uuid;primaryKey"`
	LeafHash     string    `gorm:"uniqueIndex;not null"`
	Beneficiary  string    `gorm:"index;not null"`
	ClaimID      int64     `gorm:"not null"`
	Amount       int64     `gorm:"not null"`
	BatchCycle   int64     `gorm:"not null"`
	AuthorizedAt time.Time `gorm:"not null"`
}

func (PayoutModel) TableName() string { return "payouts" }

type AuditEventModel struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	Seq           int64     `gorm:"uniqueIndex;not null"`
	EventType     string    `gorm:"not null"`
	PayloadJSON   []byte    `gorm:"type:jsonb;not null"`
	PayloadHash   string    `gorm:"not null"`
	ActorType     string    `gorm:"not null"`
	ActorIDHash   *string
	TargetType    string `gorm:"not null"`
	TargetID      *string
	Result        string `gorm:"not null"`
	ErrorCode     *string
	PrevEventHash string    `gorm:"not null"`
	EventHash     string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (AuditEventModel) TableName() string { return "audit_events" }
