package domain

import "time"

// RootHead is the published commitment for one batch cycle. Exactly one head
// is current at a time; committing a new head replaces it wholesale and
// invalidates every proof issued against the previous one.
type RootHead struct {
	RootHash    []byte
	TreeSize    int64
	BatchCycle  int64
	CommittedAt time.Time
	Signature   []byte
}

// CommittedClaim is the off-chain record stored at commitment time: the claim,
// its leaf hash and the inclusion proof generated for it.
type CommittedClaim struct {
	Claim
	LeafHash   []byte
	Proof      [][]byte
	BatchCycle int64
}

// SpentLeaf is one entry in the spent-set. Entries are inserted exactly once
// and never removed.
type SpentLeaf struct {
	LeafHash    []byte
	Beneficiary Address
	ClaimID     uint64
	Amount      uint64
	BatchCycle  int64
	SpentAt     time.Time
}

// PayoutAuthorization is the outbound transfer authorization issued at most
// once per leaf, after the spend mark is durably recorded.
type PayoutAuthorization struct {
	ID           string
	LeafHash     []byte
	Beneficiary  Address
	ClaimID      uint64
	Amount       uint64
	BatchCycle   int64
	AuthorizedAt time.Time
}
