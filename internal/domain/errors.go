package domain

import "errors"

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidClaim   = errors.New("invalid claim")
	ErrEmptyBatch     = errors.New("empty batch")
	ErrInvalidProof   = errors.New("invalid proof")
	ErrAlreadyClaimed = errors.New("already claimed")
	ErrNoRoot         = errors.New("no committed root")
	ErrPolicyDenied   = errors.New("policy denied")
	ErrNotFound       = errors.New("not found")
)
