package domain

type PolicyInput struct {
	Claim        PolicyClaim        `json:"claim"`
	Verification PolicyVerification `json:"verification"`
}

type PolicyClaim struct {
	Beneficiary string `json:"beneficiary"`
	ClaimID     uint64 `json:"claim_id"`
	Amount      uint64 `json:"amount"`
	LeafHash    string `json:"leaf_hash"`
}

type PolicyVerification struct {
	ProofValid bool  `json:"proof_valid"`
	BatchCycle int64 `json:"batch_cycle"`
	TreeSize   int64 `json:"tree_size"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

type PolicyEvaluation struct {
	BundleID   string
	BundleHash string
	Result     PolicyResult
}
