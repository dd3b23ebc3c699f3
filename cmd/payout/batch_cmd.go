package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"payout/internal/domain"
	"payout/internal/infra/crypto"
	"payout/internal/infra/merkle"
)

type batchClaimInput struct {
	Beneficiary string `json:"beneficiary"`
	ClaimID     uint64 `json:"claim_id"`
	Amount      uint64 `json:"amount"`
}

type batchOutput struct {
	RootHash  string             `json:"root_hash"`
	TreeSize  int64              `json:"tree_size"`
	BuiltAt   string             `json:"built_at"`
	Signature string             `json:"signature,omitempty"`
	Claims    []batchClaimOutput `json:"claims"`
}

type batchClaimOutput struct {
	Beneficiary string   `json:"beneficiary"`
	ClaimID     uint64   `json:"claim_id"`
	Amount      uint64   `json:"amount"`
	LeafHash    string   `json:"leaf_hash"`
	Proof       []string `json:"proof"`
}

// runBatchBuild builds a commitment offline: it reads eligible claims, emits
// the root hash to publish and one inclusion proof per claim to distribute.
func runBatchBuild(args []string) int {
	fs := flag.NewFlagSet("batch build", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var claimsPath string
	var outPath string
	var seedHex string
	fs.StringVar(&claimsPath, "claims", "", "claims JSON file (array)")
	fs.StringVar(&outPath, "out", "", "output batch path (default stdout)")
	fs.StringVar(&seedHex, "seed-hex", "", "ed25519 seed to sign the root (optional)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if claimsPath == "" {
		fmt.Fprintln(os.Stderr, "batch build requires --claims")
		return 1
	}

	claimsBytes, err := os.ReadFile(claimsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read claims: %v\n", err)
		return 1
	}
	var inputs []batchClaimInput
	if err := json.Unmarshal(claimsBytes, &inputs); err != nil {
		fmt.Fprintf(os.Stderr, "decode claims: %v\n", err)
		return 1
	}
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "claims file is empty")
		return 1
	}

	cryptoSvc := &crypto.Service{}
	claims := make([]domain.Claim, 0, len(inputs))
	leaves := make([][]byte, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for i, in := range inputs {
		beneficiary, err := domain.ParseAddress(in.Beneficiary)
		if err != nil {
			fmt.Fprintf(os.Stderr, "claim %d: %v\n", i, err)
			return 1
		}
		claim := domain.Claim{Beneficiary: beneficiary, ClaimID: in.ClaimID, Amount: in.Amount}
		leaf, err := cryptoSvc.ComputeLeafHash(claim)
		if err != nil {
			fmt.Fprintf(os.Stderr, "claim %d: %v\n", i, err)
			return 1
		}
		key := hex.EncodeToString(leaf)
		if _, dup := seen[key]; dup {
			fmt.Fprintf(os.Stderr, "claim %d: duplicate of an earlier claim\n", i)
			return 1
		}
		seen[key] = struct{}{}
		claims = append(claims, claim)
		leaves = append(leaves, leaf)
	}

	root, proofs, err := merkle.BuildTree(leaves)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build tree: %v\n", err)
		return 1
	}

	out := batchOutput{
		RootHash: hex.EncodeToString(root),
		TreeSize: int64(len(leaves)),
		BuiltAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if seedHex != "" {
		priv, err := crypto.KeyFromSeedHex(seedHex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse seed: %v\n", err)
			return 1
		}
		head := domain.RootHead{
			RootHash:    root,
			TreeSize:    int64(len(leaves)),
			CommittedAt: time.Now().UTC(),
		}
		sig, err := cryptoSvc.SignRootHead(head, priv)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sign root: %v\n", err)
			return 1
		}
		out.Signature = hex.EncodeToString(sig)
	}
	for i, claim := range claims {
		proof := make([]string, 0, len(proofs[i]))
		for _, node := range proofs[i] {
			proof = append(proof, hex.EncodeToString(node))
		}
		out.Claims = append(out.Claims, batchClaimOutput{
			Beneficiary: claim.Beneficiary.String(),
			ClaimID:     claim.ClaimID,
			Amount:      claim.Amount,
			LeafHash:    hex.EncodeToString(leaves[i]),
			Proof:       proof,
		})
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode batch: %v\n", err)
		return 1
	}
	encoded = append(encoded, '\n')
	if outPath == "" {
		os.Stdout.Write(encoded)
		return 0
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write batch: %v\n", err)
		return 1
	}
	return 0
}
