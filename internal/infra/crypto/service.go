package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"payout/internal/domain"
)

// leafDomainPrefix separates claim leaves from interior tree nodes (which use
// 0x01 in the merkle package).
const leafDomainPrefix = 0x00

var ErrRootSignatureInvalid = errors.New("root signature invalid")

type Service struct{}

// ComputeLeafHash canonically encodes a claim and hashes it. The encoding is a
// frozen contract shared by the builder and the verifier: fixed-width fields,
// fixed order, no length prefixes. Changing it invalidates every issued proof.
//
//	sha256(0x00 || beneficiary[20] || claim_id uint64 BE || amount uint64 BE)
func (s *Service) ComputeLeafHash(c domain.Claim) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 1+domain.AddressSize+16)
	buf = append(buf, leafDomainPrefix)
	buf = append(buf, c.Beneficiary[:]...)
	buf = binary.BigEndian.AppendUint64(buf, c.ClaimID)
	buf = binary.BigEndian.AppendUint64(buf, c.Amount)
	return sha256Bytes(buf), nil
}

// CanonicalizeRootHead produces the byte string a root head signature covers.
// The payload struct fields are declared in sorted key order so the marshaled
// form is canonical.
func (s *Service) CanonicalizeRootHead(head domain.RootHead) ([]byte, error) {
	if len(head.RootHash) == 0 {
		return nil, domain.ErrNoRoot
	}
	payload := rootHeadPayload{
		BatchCycle:  head.BatchCycle,
		CommittedAt: head.CommittedAt.UTC().Format(time.RFC3339),
		RootHash:    hex.EncodeToString(head.RootHash),
		TreeSize:    head.TreeSize,
	}
	return json.Marshal(payload)
}

func (s *Service) SignRootHead(head domain.RootHead, priv ed25519.PrivateKey) ([]byte, error) {
	canonical, err := s.CanonicalizeRootHead(head)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(priv, canonical), nil
}

func (s *Service) VerifyRootHeadSignature(head domain.RootHead, sig []byte, pub []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return ErrRootSignatureInvalid
	}
	canonical, err := s.CanonicalizeRootHead(head)
	if err != nil {
		return err
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), canonical, sig) {
		return ErrRootSignatureInvalid
	}
	return nil
}

type rootHeadPayload struct {
	BatchCycle  int64  `json:"batch_cycle"`
	CommittedAt string `json:"committed_at"`
	RootHash    string `json:"root_hash"`
	TreeSize    int64  `json:"tree_size"`
}

// KeyFromSeedHex derives an ed25519 signing key from a 32-byte hex seed.
func KeyFromSeedHex(seedHex string) (ed25519.PrivateKey, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, errors.New("seed must be 32 bytes")
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func sha256Bytes(input []byte) []byte {
	sum := sha256.Sum256(input)
	return sum[:]
}

func Sha256Hex(input []byte) string {
	return hex.EncodeToString(sha256Bytes(input))
}
