package local

import (
	"context"
	"strings"
	"sync"
	"time"

	"gymleague/cmd/account"
)

// MemoryStore is an in-process AccountStore for tests and database-less runs.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]Account // by id
	byEmail  map[string]string  // email_norm -> id
	sessions map[string]SessionRecord
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]Account),
		byEmail:  make(map[string]string),
		sessions: make(map[string]SessionRecord),
	}
}

func (s *MemoryStore) CreateAccount(ctx context.Context, in Account) (Account, error) {
	const op = "local.MemoryStore.CreateAccount"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.EmailNorm) == "" {
		return Account{}, account.Invalid(op, "missing id or email")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[in.ID]; ok {
		return Account{}, account.ConflictError{Op: op, Field: "id"}
	}
	if _, ok := s.byEmail[in.EmailNorm]; ok {
		return Account{}, account.ConflictError{Op: op, Field: "email"}
	}
	s.accounts[in.ID] = in
	s.byEmail[in.EmailNorm] = in.ID
	return in, nil
}

func (s *MemoryStore) GetAccountByEmail(ctx context.Context, emailNorm string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[emailNorm]
	if !ok {
		return Account{}, account.NotFoundError{Op: "local.MemoryStore.GetAccountByEmail", Resource: "account"}
	}
	return s.accounts[id], nil
}

func (s *MemoryStore) MarkEmailVerified(ctx context.Context, accountID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return account.NotFoundError{Op: "local.MemoryStore.MarkEmailVerified", Resource: "account"}
	}
	a.EmailVerified = true
	s.accounts[accountID] = a
	return nil
}

func (s *MemoryStore) CreateSession(ctx context.Context, in SessionRecord) error {
	const op = "local.MemoryStore.CreateSession"

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[in.AccountID]; !ok {
		return account.NotFoundError{Op: op, Resource: "account"}
	}
	if _, ok := s.sessions[in.ID]; ok {
		return account.ConflictError{Op: op, Field: "id"}
	}
	s.sessions[in.ID] = in
	return nil
}

func (s *MemoryStore) GetSession(ctx context.Context, sessionID string) (SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return SessionRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.sessions[sessionID]
	if !ok {
		return SessionRecord{}, account.NotFoundError{Op: "local.MemoryStore.GetSession", Resource: "session"}
	}
	return r, nil
}

func (s *MemoryStore) RevokeSession(ctx context.Context, sessionID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.sessions[sessionID]
	if !ok {
		return account.NotFoundError{Op: "local.MemoryStore.RevokeSession", Resource: "session"}
	}
	if r.RevokedAt == nil {
		t := now
		r.RevokedAt = &t
		s.sessions[sessionID] = r
	}
	return nil
}
