package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"payout/internal/domain"
	"payout/internal/infra/crypto"
	"payout/internal/infra/merkle"
)

func runProofVerify(args []string) int {
	fs := flag.NewFlagSet("proof verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var beneficiary string
	var claimID uint64
	var amount uint64
	var rootHex string
	var proofPath string
	fs.StringVar(&beneficiary, "beneficiary", "", "beneficiary address (0x-hex)")
	fs.Uint64Var(&claimID, "claim-id", 0, "claim id")
	fs.Uint64Var(&amount, "amount", 0, "payout amount")
	fs.StringVar(&rootHex, "root", "", "expected root hash (hex)")
	fs.StringVar(&proofPath, "proof", "", "proof JSON file (array of hex hashes)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if beneficiary == "" || rootHex == "" || proofPath == "" {
		fmt.Fprintln(os.Stderr, "proof verify requires --beneficiary, --root and --proof")
		return 1
	}

	claim, err := parseClaim(beneficiary, claimID, amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	root, err := hex.DecodeString(rootHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode root: %v\n", err)
		return 1
	}
	proofBytes, err := os.ReadFile(proofPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read proof: %v\n", err)
		return 1
	}
	var proofHex []string
	if err := json.Unmarshal(proofBytes, &proofHex); err != nil {
		fmt.Fprintf(os.Stderr, "decode proof: %v\n", err)
		return 1
	}
	proof := make([][]byte, 0, len(proofHex))
	for i, node := range proofHex {
		decoded, err := hex.DecodeString(node)
		if err != nil {
			fmt.Fprintf(os.Stderr, "decode proof node %d: %v\n", i, err)
			return 1
		}
		proof = append(proof, decoded)
	}

	cryptoSvc := &crypto.Service{}
	leaf, err := cryptoSvc.ComputeLeafHash(claim)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	ok, err := merkle.VerifyProof(leaf, proof, root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "proof does not verify against root")
		return 1
	}
	fmt.Printf("ok leaf=%s\n", hex.EncodeToString(leaf))
	return 0
}

func runLeafHash(args []string) int {
	fs := flag.NewFlagSet("leaf", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var beneficiary string
	var claimID uint64
	var amount uint64
	fs.StringVar(&beneficiary, "beneficiary", "", "beneficiary address (0x-hex)")
	fs.Uint64Var(&claimID, "claim-id", 0, "claim id")
	fs.Uint64Var(&amount, "amount", 0, "payout amount")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	claim, err := parseClaim(beneficiary, claimID, amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	cryptoSvc := &crypto.Service{}
	leaf, err := cryptoSvc.ComputeLeafHash(claim)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	fmt.Println(hex.EncodeToString(leaf))
	return 0
}

func parseClaim(beneficiary string, claimID, amount uint64) (domain.Claim, error) {
	addr, err := domain.ParseAddress(beneficiary)
	if err != nil {
		return domain.Claim{}, fmt.Errorf("parse beneficiary: %w", err)
	}
	claim := domain.Claim{Beneficiary: addr, ClaimID: claimID, Amount: amount}
	if err := claim.Validate(); err != nil {
		return domain.Claim{}, err
	}
	return claim, nil
}
