package integration

import (
	"context"
	"sync"
	"time"

	"qr-transfer-authorizer/internal/core/domain"
	"qr-transfer-authorizer/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// --- In-Memory Transfer Repo ---

type inMemoryTransferRepo struct {
	mu        sync.RWMutex
	transfers map[uuid.UUID]*domain.Transfer
}

func newInMemoryTransferRepo() *inMemoryTransferRepo {
	return &inMemoryTransferRepo{transfers: make(map[uuid.UUID]*domain.Transfer)}
}

func (r *inMemoryTransferRepo) Create(ctx context.Context, t *domain.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.transfers[t.ID] = &cp
	return nil
}

func (r *inMemoryTransferRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transfers[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTransferRepo) GetByQRBlob(ctx context.Context, blob string) (*domain.Transfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.transfers {
		if t.QR1Blob == blob || (t.QR2Blob != "" && t.QR2Blob == blob) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

// Update honors the compare-and-swap discipline of the real repo: the write
// lands only if the stored row's status still equals expected.
func (r *inMemoryTransferRepo) Update(ctx context.Context, t *domain.Transfer, expected domain.TransferStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.transfers[t.ID]
	if !ok || stored.Status != expected {
		return false, nil
	}
	cp := *t
	cp.UpdatedAt = time.Now().UTC()
	r.transfers[t.ID] = &cp
	return true, nil
}

// --- In-Memory OTP Repo ---

type inMemoryOTPRepo struct {
	mu      sync.Mutex
	records []*domain.OTPRecord
}

func newInMemoryOTPRepo() *inMemoryOTPRepo {
	return &inMemoryOTPRepo{}
}

func (r *inMemoryOTPRepo) Create(ctx context.Context, tx pgx.Tx, rec *domain.OTPRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.records = append(r.records, &cp)
	return nil
}

func (r *inMemoryOTPRepo) GetLatest(ctx context.Context, phone string, purpose domain.OTPPurpose, transferID *uuid.UUID) (*domain.OTPRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.OTPRecord
	for _, rec := range r.records {
		if rec.Phone != phone || rec.Purpose != purpose || rec.Verified {
			continue
		}
		if transferID != nil && (rec.TransferID == nil || *rec.TransferID != *transferID) {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *inMemoryOTPRepo) Update(ctx context.Context, rec *domain.OTPRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, stored := range r.records {
		if stored.ID == rec.ID {
			cp := *rec
			r.records[i] = &cp
			return nil
		}
	}
	return nil
}

func (r *inMemoryOTPRepo) Invalidate(ctx context.Context, tx pgx.Tx, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Phone == phone && !rec.Verified {
			rec.Verified = true
		}
	}
	return nil
}

// --- In-Memory User Repo ---

type inMemoryUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User
}

func newInMemoryUserRepo(users ...*domain.User) *inMemoryUserRepo {
	r := &inMemoryUserRepo{users: make(map[uuid.UUID]*domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *inMemoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// --- Fake transaction plumbing ---

// fakeTx satisfies pgx.Tx for repos that never touch the embedded value.
type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeTransactor struct{}

func (fakeTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return fakeTx{}, nil
}

// --- In-Memory Scan Guard ---

type inMemoryScanGuard struct {
	mu     sync.Mutex
	claims map[string]time.Time
}

func newInMemoryScanGuard() *inMemoryScanGuard {
	return &inMemoryScanGuard{claims: make(map[string]time.Time)}
}

func (g *inMemoryScanGuard) CheckAndSet(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	if expiry, ok := g.claims[nonce]; ok && now.Before(expiry) {
		return false, nil
	}
	g.claims[nonce] = now.Add(ttl)
	return true, nil
}

func (g *inMemoryScanGuard) Release(ctx context.Context, nonce string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claims, nonce)
	return nil
}

// --- Recording collaborators ---

// recordingSMS captures every dispatched message so tests can fish the
// one-time code out of the text.
type recordingSMS struct {
	mu       sync.Mutex
	messages []string
}

func (s *recordingSMS) Send(ctx context.Context, phone, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	return true
}

func (s *recordingSMS) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return ""
	}
	return s.messages[len(s.messages)-1]
}

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, recipientID uuid.UUID, n ports.Notification) {}

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(ctx context.Context, key string) (bool, error) { return true, nil }
