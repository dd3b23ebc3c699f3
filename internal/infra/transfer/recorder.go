package transfer

import (
	"context"
	"encoding/hex"
	"log"
	"sync"

	"payout/internal/domain"
)

// Recorder is the default outbound transfer adapter. It records every
// authorized disbursement and logs it; a production deployment swaps in an
// adapter for the actual settlement rail behind the same method.
type Recorder struct {
	mu        sync.Mutex
	transfers []domain.PayoutAuthorization
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Transfer(ctx context.Context, auth domain.PayoutAuthorization) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.transfers = append(r.transfers, auth)
	r.mu.Unlock()
	log.Printf("transfer authorized: payout=%s beneficiary=%s claim_id=%d amount=%d leaf=%s",
		auth.ID, auth.Beneficiary.String(), auth.ClaimID, auth.Amount, hex.EncodeToString(auth.LeafHash))
	return nil
}

// Transfers returns a snapshot of recorded disbursements.
func (r *Recorder) Transfers() []domain.PayoutAuthorization {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.PayoutAuthorization, len(r.transfers))
	copy(out, r.transfers)
	return out
}
