package ledgermem

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"payout/internal/domain"
	cryptoinfra "payout/internal/infra/crypto"
)

// Ledger is the in-memory ledger used when no database is configured. It backs
// the root head, the spent-set, committed claim records, payout authorizations
// and the audit chain behind one mutex.
type Ledger struct {
	mu      sync.RWMutex
	clock   func() time.Time
	cycle   int64
	head    *domain.RootHead
	spent   map[string]domain.SpentLeaf
	records map[string]domain.CommittedClaim
	payouts map[string]domain.PayoutAuthorization
	audit   []domain.AuditEvent
}

func New() *Ledger {
	return NewWithClock(time.Now)
}

func NewWithClock(clock func() time.Time) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{
		clock:   clock,
		spent:   make(map[string]domain.SpentLeaf),
		records: make(map[string]domain.CommittedClaim),
		payouts: make(map[string]domain.PayoutAuthorization),
	}
}

func (l *Ledger) GetCurrent(ctx context.Context) (*domain.RootHead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.head == nil {
		return nil, domain.ErrNoRoot
	}
	head := cloneRootHead(*l.head)
	return &head, nil
}

func (l *Ledger) BumpCycle(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cycle++
	return l.cycle, nil
}

func (l *Ledger) SetRoot(ctx context.Context, head domain.RootHead) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.head != nil && head.BatchCycle <= l.head.BatchCycle {
		// Stale commit from a racing batch; the newest cycle stays current.
		return nil
	}
	clone := cloneRootHead(head)
	l.head = &clone
	if head.BatchCycle > l.cycle {
		l.cycle = head.BatchCycle
	}
	return nil
}

func (l *Ledger) IsSpent(ctx context.Context, leafHash []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.spent[hex.EncodeToString(leafHash)]
	return ok, nil
}

func (l *Ledger) MarkSpent(ctx context.Context, spent domain.SpentLeaf) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := hex.EncodeToString(spent.LeafHash)
	if _, ok := l.spent[key]; ok {
		return false, nil
	}
	spent.LeafHash = cloneHash(spent.LeafHash)
	l.spent[key] = spent
	return true, nil
}

func (l *Ledger) ReplaceBatch(ctx context.Context, batchCycle int64, records []domain.CommittedClaim) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, record := range l.records {
		if record.BatchCycle < batchCycle {
			delete(l.records, key)
		}
	}
	for _, record := range records {
		l.records[hex.EncodeToString(record.LeafHash)] = cloneCommittedClaim(record)
	}
	return nil
}

func (l *Ledger) GetByLeafHash(ctx context.Context, leafHash []byte) (*domain.CommittedClaim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	record, ok := l.records[hex.EncodeToString(leafHash)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := cloneCommittedClaim(record)
	return &clone, nil
}

func (l *Ledger) Create(ctx context.Context, auth domain.PayoutAuthorization) (domain.PayoutAuthorization, error) {
	if err := ctx.Err(); err != nil {
		return domain.PayoutAuthorization{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if auth.ID == "" {
		id, err := newUUID()
		if err != nil {
			return domain.PayoutAuthorization{}, err
		}
		auth.ID = id
	}
	if auth.AuthorizedAt.IsZero() {
		auth.AuthorizedAt = l.clock().UTC()
	}
	auth.LeafHash = cloneHash(auth.LeafHash)
	l.payouts[auth.ID] = auth
	return auth, nil
}

func (l *Ledger) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.AuditEvent{}, err
	}
	if event.EventType == "" {
		return domain.AuditEvent{}, errors.New("event_type is required")
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	if event.ID == "" {
		id, err := newUUID()
		if err != nil {
			return domain.AuditEvent{}, err
		}
		event.ID = id
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = l.clock().UTC()
	} else {
		event.CreatedAt = event.CreatedAt.UTC()
	}
	event.CreatedAt = event.CreatedAt.Truncate(time.Microsecond)

	canonical, err := cryptoinfra.CanonicalizeAny(event.Payload)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.Payload = canonical
	event.PayloadHash = sha256Hex(canonical)

	l.mu.Lock()
	defer l.mu.Unlock()
	event.Seq = int64(len(l.audit)) + 1
	if len(l.audit) == 0 {
		event.PrevEventHash = zeroAuditHash()
	} else {
		event.PrevEventHash = l.audit[len(l.audit)-1].EventHash
	}
	eventHash, err := chainEventHash(event)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.EventHash = eventHash
	l.audit = append(l.audit, event)
	return event, nil
}

func (l *Ledger) List(ctx context.Context) ([]domain.AuditEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.AuditEvent, len(l.audit))
	copy(out, l.audit)
	return out, nil
}

func chainEventHash(event domain.AuditEvent) (string, error) {
	payload := map[string]any{
		"v":               domain.AuditChainVersion,
		"seq":             event.Seq,
		"event_type":      string(event.EventType),
		"payload_hash":    event.PayloadHash,
		"prev_event_hash": event.PrevEventHash,
		"created_at":      event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	canonical, err := cryptoinfra.CanonicalizeAny(payload)
	if err != nil {
		return "", err
	}
	return sha256Hex(canonical), nil
}

func cloneRootHead(head domain.RootHead) domain.RootHead {
	return domain.RootHead{
		RootHash:    cloneHash(head.RootHash),
		TreeSize:    head.TreeSize,
		BatchCycle:  head.BatchCycle,
		CommittedAt: head.CommittedAt,
		Signature:   cloneHash(head.Signature),
	}
}

func cloneCommittedClaim(record domain.CommittedClaim) domain.CommittedClaim {
	proof := make([][]byte, 0, len(record.Proof))
	for _, node := range record.Proof {
		proof = append(proof, cloneHash(node))
	}
	return domain.CommittedClaim{
		Claim:      record.Claim,
		LeafHash:   cloneHash(record.LeafHash),
		Proof:      proof,
		BatchCycle: record.BatchCycle,
	}
}

func cloneHash(hash []byte) []byte {
	if hash == nil {
		return nil
	}
	out := make([]byte, len(hash))
	copy(out, hash)
	return out
}

func sha256Hex(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}

func zeroAuditHash() string {
	return "0000000000000000000000000000000000000000000000000000000000000000"
}

func newUUID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	bytes[6] = (bytes[6] & 0x0f) | 0x40
	bytes[8] = (bytes[8] & 0x3f) | 0x80
	hexStr := hex.EncodeToString(bytes)
	return hexStr[0:8] + "-" + hexStr[8:12] + "-" + hexStr[12:16] + "-" + hexStr[16:20] + "-" + hexStr[20:32], nil
}
