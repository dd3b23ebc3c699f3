package http

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"payout/internal/domain"
	"payout/internal/usecase"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type claimInput struct {
	Beneficiary string `json:"beneficiary"`
	ClaimID     uint64 `json:"claim_id"`
	Amount      uint64 `json:"amount"`
}

type claimRequest struct {
	claimInput
	Proof []string `json:"proof"`
}

type claimResponse struct {
	PayoutID     string `json:"payout_id"`
	LeafHash     string `json:"leaf_hash"`
	BatchCycle   int64  `json:"batch_cycle"`
	Beneficiary  string `json:"beneficiary"`
	ClaimID      uint64 `json:"claim_id"`
	Amount       uint64 `json:"amount"`
	AuthorizedAt string `json:"authorized_at"`
}

type rootResponse struct {
	RootHash    string `json:"root_hash"`
	TreeSize    int64  `json:"tree_size"`
	BatchCycle  int64  `json:"batch_cycle"`
	CommittedAt string `json:"committed_at"`
	Signature   string `json:"signature,omitempty"`
}

type proofResponse struct {
	LeafHash    string   `json:"leaf_hash"`
	Beneficiary string   `json:"beneficiary"`
	ClaimID     uint64   `json:"claim_id"`
	Amount      uint64   `json:"amount"`
	BatchCycle  int64    `json:"batch_cycle"`
	Proof       []string `json:"proof"`
}

type spentResponse struct {
	LeafHash string `json:"leaf_hash"`
	Spent    bool   `json:"spent"`
}

type adminBatchRequest struct {
	Claims []claimInput `json:"claims"`
}

type adminBatchResponse struct {
	Root   rootResponse            `json:"root"`
	Claims []adminBatchClaimRecord `json:"claims"`
}

type adminBatchClaimRecord struct {
	Beneficiary string   `json:"beneficiary"`
	ClaimID     uint64   `json:"claim_id"`
	Amount      uint64   `json:"amount"`
	LeafHash    string   `json:"leaf_hash"`
	Proof       []string `json:"proof"`
}

type adminRootRequest struct {
	RootHash string `json:"root_hash"`
	TreeSize int64  `json:"tree_size"`
}

type auditEventResponse struct {
	Seq           int64  `json:"seq"`
	EventType     string `json:"event_type"`
	Payload       string `json:"payload"`
	PayloadHash   string `json:"payload_hash"`
	ActorType     string `json:"actor_type"`
	TargetType    string `json:"target_type"`
	TargetID      string `json:"target_id,omitempty"`
	Result        string `json:"result"`
	ErrorCode     string `json:"error_code,omitempty"`
	PrevEventHash string `json:"prev_event_hash"`
	EventHash     string `json:"event_hash"`
	CreatedAt     string `json:"created_at"`
}

func (s *Server) handleClaim(c *gin.Context) {
	if s.claimUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	claim, err := parseClaimInput(req.claimInput)
	if err != nil {
		writeError(c, err)
		return
	}
	if !s.enforceRateLimit(c, "claims:submit", claim.Beneficiary.String()) {
		return
	}
	proof, err := parseProof(req.Proof)
	if err != nil {
		writeError(c, domain.ErrInvalidProof)
		return
	}

	receipt, err := s.claimUC.Execute(c.Request.Context(), usecase.ClaimPayoutRequest{
		Claim: claim,
		Proof: proof,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, claimResponse{
		PayoutID:     receipt.Authorization.ID,
		LeafHash:     hex.EncodeToString(receipt.LeafHash),
		BatchCycle:   receipt.BatchCycle,
		Beneficiary:  claim.Beneficiary.String(),
		ClaimID:      claim.ClaimID,
		Amount:       claim.Amount,
		AuthorizedAt: receipt.Authorization.AuthorizedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCurrentRoot(c *gin.Context) {
	if s.roots == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	head, err := s.roots.GetCurrent(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildRootResponse(*head))
}

func (s *Server) handleGetProof(c *gin.Context) {
	if s.records == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	leafHash, err := hex.DecodeString(c.Param("leaf_hash"))
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_CLAIM", "invalid leaf hash")
		return
	}
	record, err := s.records.GetByLeafHash(c.Request.Context(), leafHash)
	if err != nil {
		writeError(c, err)
		return
	}
	proof := make([]string, 0, len(record.Proof))
	for _, node := range record.Proof {
		proof = append(proof, hex.EncodeToString(node))
	}
	c.JSON(http.StatusOK, proofResponse{
		LeafHash:    hex.EncodeToString(record.LeafHash),
		Beneficiary: record.Beneficiary.String(),
		ClaimID:     record.ClaimID,
		Amount:      record.Amount,
		BatchCycle:  record.BatchCycle,
		Proof:       proof,
	})
}

func (s *Server) handleGetSpent(c *gin.Context) {
	if s.spent == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	leafHex := c.Param("leaf_hash")
	leafHash, err := hex.DecodeString(leafHex)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_CLAIM", "invalid leaf hash")
		return
	}
	spent, err := s.spent.IsSpent(c.Request.Context(), leafHash)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, spentResponse{LeafHash: leafHex, Spent: spent})
}

func (s *Server) handleAdminCommitBatch(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.commitUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req adminBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	claims := make([]domain.Claim, 0, len(req.Claims))
	for _, in := range req.Claims {
		claim, err := parseClaimInput(in)
		if err != nil {
			writeError(c, err)
			return
		}
		claims = append(claims, claim)
	}

	result, err := s.commitUC.Execute(c.Request.Context(), usecase.CommitBatchRequest{Claims: claims})
	if err != nil {
		writeError(c, err)
		return
	}
	out := adminBatchResponse{Root: buildRootResponse(result.Head)}
	for _, record := range result.Records {
		proof := make([]string, 0, len(record.Proof))
		for _, node := range record.Proof {
			proof = append(proof, hex.EncodeToString(node))
		}
		out.Claims = append(out.Claims, adminBatchClaimRecord{
			Beneficiary: record.Beneficiary.String(),
			ClaimID:     record.ClaimID,
			Amount:      record.Amount,
			LeafHash:    hex.EncodeToString(record.LeafHash),
			Proof:       proof,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleAdminSetRoot(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.commitUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req adminRootRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	rootHash, err := hex.DecodeString(req.RootHash)
	if err != nil || len(rootHash) == 0 {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_PROOF", "invalid root hash")
		return
	}
	head, err := s.commitUC.SetRoot(c.Request.Context(), rootHash, req.TreeSize)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildRootResponse(*head))
}

func (s *Server) handleListAudit(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.auditRepo == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	events, err := s.auditRepo.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]auditEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, buildAuditEventResponse(event))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) requireAdmin(c *gin.Context) bool {
	if s.adminAPIKey == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
		return false
	}
	key := c.GetHeader("X-Admin-Key")
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminAPIKey)) != 1 {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin key")
		return false
	}
	return true
}

func parseClaimInput(in claimInput) (domain.Claim, error) {
	beneficiary, err := domain.ParseAddress(in.Beneficiary)
	if err != nil {
		return domain.Claim{}, domain.ErrInvalidClaim
	}
	claim := domain.Claim{
		Beneficiary: beneficiary,
		ClaimID:     in.ClaimID,
		Amount:      in.Amount,
	}
	if err := claim.Validate(); err != nil {
		return domain.Claim{}, err
	}
	return claim, nil
}

func parseProof(input []string) ([][]byte, error) {
	proof := make([][]byte, 0, len(input))
	for _, node := range input {
		decoded, err := hex.DecodeString(node)
		if err != nil {
			return nil, err
		}
		proof = append(proof, decoded)
	}
	return proof, nil
}

func buildRootResponse(head domain.RootHead) rootResponse {
	sig := ""
	if len(head.Signature) > 0 {
		sig = base64.StdEncoding.EncodeToString(head.Signature)
	}
	return rootResponse{
		RootHash:    hex.EncodeToString(head.RootHash),
		TreeSize:    head.TreeSize,
		BatchCycle:  head.BatchCycle,
		CommittedAt: head.CommittedAt.UTC().Format(time.RFC3339),
		Signature:   sig,
	}
}

func buildAuditEventResponse(event domain.AuditEvent) auditEventResponse {
	payload := ""
	switch v := event.Payload.(type) {
	case []byte:
		payload = string(v)
	case string:
		payload = v
	}
	return auditEventResponse{
		Seq:           event.Seq,
		EventType:     string(event.EventType),
		Payload:       payload,
		PayloadHash:   event.PayloadHash,
		ActorType:     string(event.ActorType),
		TargetType:    string(event.TargetType),
		TargetID:      event.TargetID,
		Result:        string(event.Result),
		ErrorCode:     event.ErrorCode,
		PrevEventHash: event.PrevEventHash,
		EventHash:     event.EventHash,
		CreatedAt:     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidClaim):
		status, code = http.StatusBadRequest, "INVALID_CLAIM"
	case errors.Is(err, domain.ErrEmptyBatch):
		status, code = http.StatusBadRequest, "EMPTY_BATCH"
	case errors.Is(err, domain.ErrInvalidProof):
		status, code = http.StatusBadRequest, "INVALID_PROOF"
	case errors.Is(err, domain.ErrAlreadyClaimed):
		status, code = http.StatusConflict, "ALREADY_CLAIMED"
	case errors.Is(err, domain.ErrNoRoot):
		status, code = http.StatusConflict, "NO_ROOT"
	case errors.Is(err, domain.ErrPolicyDenied):
		status, code = http.StatusForbidden, "POLICY_DENIED"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
