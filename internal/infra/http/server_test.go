package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"payout/internal/config"
	"payout/internal/domain"
	"payout/internal/infra/crypto"
	"payout/internal/infra/ledgermem"
	"payout/internal/infra/merkle"
	"payout/internal/infra/ratelimit"
	"payout/internal/infra/transfer"
	"payout/internal/usecase"

	"github.com/gin-gonic/gin"
)

const testAdminKey = "test-admin-key"

func newTestServer(t *testing.T, cfg config.Config) (*Server, *ledgermem.Ledger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ledger := ledgermem.New()
	cryptoSvc := &crypto.Service{}
	merkleSvc := &merkle.Service{}
	audit := usecase.NewAuditEmitter(ledger, nil)

	commitUC := &usecase.CommitBatch{
		Roots:   ledger,
		Records: ledger,
		Crypto:  cryptoSvc,
		Merkle:  merkleSvc,
		Audit:   audit,
	}
	claimUC := &usecase.ClaimPayout{
		Roots:    ledger,
		Spent:    ledger,
		Payouts:  ledger,
		Crypto:   cryptoSvc,
		Merkle:   merkleSvc,
		Transfer: transfer.NewRecorder(),
		Audit:    audit,
	}

	var limiter domain.RateLimiter
	if cfg.RateLimitRequests > 0 {
		limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{})
	}
	server := NewServerWithDeps(cfg, ServerDeps{
		Claim:       claimUC,
		Commit:      commitUC,
		AuditRepo:   ledger,
		Audit:       audit,
		AdminAPIKey: testAdminKey,
		RateLimiter: limiter,
	})
	return server, ledger
}

func doJSON(t *testing.T, server *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	server.r.ServeHTTP(w, req)
	return w
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Key": testAdminKey}
}

func testBatchBody() map[string]any {
	return map[string]any{
		"claims": []map[string]any{
			{"beneficiary": "0x00000000000000000000000000000000000000a1", "claim_id": 1, "amount": 100},
			{"beneficiary": "0x00000000000000000000000000000000000000b2", "claim_id": 2, "amount": 50},
			{"beneficiary": "0x00000000000000000000000000000000000000c3", "claim_id": 3, "amount": 75},
		},
	}
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t, config.Config{})
	w := doJSON(t, server, http.MethodGet, "/healthz", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAdminEndpointsRequireKey(t *testing.T) {
	server, _ := newTestServer(t, config.Config{})

	w := doJSON(t, server, http.MethodPost, "/v1/admin/batches", testBatchBody(), nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: expected 401, got %d", w.Code)
	}

	w = doJSON(t, server, http.MethodPost, "/v1/admin/batches", testBatchBody(), map[string]string{"X-Admin-Key": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: expected 401, got %d", w.Code)
	}

	w = doJSON(t, server, http.MethodGet, "/v1/audit", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("audit without key: expected 401, got %d", w.Code)
	}
}

func TestCommitBatchEmptyRejected(t *testing.T) {
	server, _ := newTestServer(t, config.Config{})
	w := doJSON(t, server, http.MethodPost, "/v1/admin/batches", map[string]any{"claims": []any{}}, adminHeaders())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != "EMPTY_BATCH" {
		t.Fatalf("expected EMPTY_BATCH, got %s", resp.Code)
	}
}

func TestClaimBeforeAnyRoot(t *testing.T) {
	server, _ := newTestServer(t, config.Config{})
	body := map[string]any{
		"beneficiary": "0x00000000000000000000000000000000000000a1",
		"claim_id":    1,
		"amount":      100,
		"proof":       []string{},
	}
	w := doJSON(t, server, http.MethodPost, "/v1/claims", body, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != "NO_ROOT" {
		t.Fatalf("expected NO_ROOT, got %s", resp.Code)
	}
}

func TestEndToEndClaimFlow(t *testing.T) {
	server, _ := newTestServer(t, config.Config{})

	// Commit a batch.
	w := doJSON(t, server, http.MethodPost, "/v1/admin/batches", testBatchBody(), adminHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("commit batch: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var batch adminBatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &batch); err != nil {
		t.Fatalf("decode batch response: %v", err)
	}
	if batch.Root.TreeSize != 3 || len(batch.Claims) != 3 {
		t.Fatalf("unexpected batch response: size=%d claims=%d", batch.Root.TreeSize, len(batch.Claims))
	}

	// The current root matches the committed one.
	w = doJSON(t, server, http.MethodGet, "/v1/roots/current", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get root: expected 200, got %d", w.Code)
	}
	var root rootResponse
	if err := json.Unmarshal(w.Body.Bytes(), &root); err != nil {
		t.Fatalf("decode root response: %v", err)
	}
	if root.RootHash != batch.Root.RootHash {
		t.Fatal("current root must match the committed batch")
	}

	// A committed claim's proof is retrievable.
	w = doJSON(t, server, http.MethodGet, "/v1/proofs/"+batch.Claims[0].LeafHash, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get proof: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Claim the first payout.
	claimBody := map[string]any{
		"beneficiary": batch.Claims[0].Beneficiary,
		"claim_id":    batch.Claims[0].ClaimID,
		"amount":      batch.Claims[0].Amount,
		"proof":       batch.Claims[0].Proof,
	}
	w = doJSON(t, server, http.MethodPost, "/v1/claims", claimBody, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("claim: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var claim claimResponse
	if err := json.Unmarshal(w.Body.Bytes(), &claim); err != nil {
		t.Fatalf("decode claim response: %v", err)
	}
	if claim.PayoutID == "" || claim.LeafHash != batch.Claims[0].LeafHash {
		t.Fatalf("unexpected claim response: %+v", claim)
	}

	// Replays are rejected.
	w = doJSON(t, server, http.MethodPost, "/v1/claims", claimBody, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("replay: expected 409, got %d: %s", w.Code, w.Body.String())
	}

	// The spent-set reflects the claim.
	w = doJSON(t, server, http.MethodGet, "/v1/spent/"+batch.Claims[0].LeafHash, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get spent: expected 200, got %d", w.Code)
	}
	var spent spentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &spent); err != nil {
		t.Fatalf("decode spent response: %v", err)
	}
	if !spent.Spent {
		t.Fatal("claimed leaf must be spent")
	}

	// Audit log records the activity.
	w = doJSON(t, server, http.MethodGet, "/v1/audit", nil, adminHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("audit: expected 200, got %d", w.Code)
	}
	var events []auditEventResponse
	if err := json.Unmarshal(w.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode audit response: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 audit events, got %d", len(events))
	}
}

func TestClaimWithTamperedProofRejected(t *testing.T) {
	server, _ := newTestServer(t, config.Config{})

	w := doJSON(t, server, http.MethodPost, "/v1/admin/batches", testBatchBody(), adminHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("commit batch: expected 200, got %d", w.Code)
	}
	var batch adminBatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &batch); err != nil {
		t.Fatalf("decode batch response: %v", err)
	}

	claimBody := map[string]any{
		"beneficiary": batch.Claims[0].Beneficiary,
		"claim_id":    batch.Claims[0].ClaimID,
		"amount":      batch.Claims[0].Amount,
		"proof":       batch.Claims[1].Proof,
	}
	w = doJSON(t, server, http.MethodPost, "/v1/claims", claimBody, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != "INVALID_PROOF" {
		t.Fatalf("expected INVALID_PROOF, got %s", resp.Code)
	}
}

func TestClaimInvalidBeneficiary(t *testing.T) {
	server, _ := newTestServer(t, config.Config{})
	body := map[string]any{
		"beneficiary": "not-an-address",
		"claim_id":    1,
		"amount":      100,
		"proof":       []string{},
	}
	w := doJSON(t, server, http.MethodPost, "/v1/claims", body, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != "INVALID_CLAIM" {
		t.Fatalf("expected INVALID_CLAIM, got %s", resp.Code)
	}
}

func TestAdminSetExternalRoot(t *testing.T) {
	server, _ := newTestServer(t, config.Config{})
	body := map[string]any{
		"root_hash": fmt.Sprintf("%064d", 7),
		"tree_size": 12,
	}
	w := doJSON(t, server, http.MethodPost, "/v1/admin/roots", body, adminHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var root rootResponse
	if err := json.Unmarshal(w.Body.Bytes(), &root); err != nil {
		t.Fatalf("decode root response: %v", err)
	}
	if root.TreeSize != 12 || root.BatchCycle != 1 {
		t.Fatalf("unexpected root response: %+v", root)
	}
}

func TestClaimRateLimited(t *testing.T) {
	cfg := config.Config{RateLimitRequests: 1, RateLimitWindowSeconds: 60}
	server, _ := newTestServer(t, cfg)

	w := doJSON(t, server, http.MethodPost, "/v1/admin/batches", testBatchBody(), adminHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("commit batch: expected 200, got %d", w.Code)
	}
	var batch adminBatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &batch); err != nil {
		t.Fatalf("decode batch response: %v", err)
	}

	claimBody := map[string]any{
		"beneficiary": batch.Claims[0].Beneficiary,
		"claim_id":    batch.Claims[0].ClaimID,
		"amount":      batch.Claims[0].Amount,
		"proof":       batch.Claims[0].Proof,
	}
	w = doJSON(t, server, http.MethodPost, "/v1/claims", claimBody, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("first claim: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, server, http.MethodPost, "/v1/claims", claimBody, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second claim: expected 429, got %d: %s", w.Code, w.Body.String())
	}
}
