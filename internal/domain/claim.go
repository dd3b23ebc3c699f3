package domain

import (
	"encoding/hex"
	"strings"
)

const AddressSize = 20

// Address is a fixed-length beneficiary account identifier.
type Address [AddressSize]byte

func ParseAddress(s string) (Address, error) {
	var addr Address
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != AddressSize*2 {
		return addr, ErrInvalidClaim
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return addr, ErrInvalidClaim
	}
	copy(addr[:], decoded)
	return addr, nil
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) IsZero() bool {
	for _, b := range a {
		if b != 0 {
			return false
		}
	}
	return true
}

// Claim is one eligible payout. (Beneficiary, ClaimID, Amount) uniquely
// determines a leaf; ClaimID distinguishes multiple claims by the same
// beneficiary for the same amount.
type Claim struct {
	Beneficiary Address
	ClaimID     uint64
	Amount      uint64
}

// Validate enforces the claim field domains. A zero amount is rejected: a
// zero-value payout has no meaning and a zero leaf field usually signals an
// encoding mistake upstream.
func (c Claim) Validate() error {
	if c.Beneficiary.IsZero() {
		return ErrInvalidClaim
	}
	if c.Amount == 0 {
		return ErrInvalidClaim
	}
	return nil
}
