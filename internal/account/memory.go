package account

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pluto-hub/plutohub/internal/apperr"
	"github.com/pluto-hub/plutohub/internal/domain"
	"github.com/pluto-hub/plutohub/internal/money"
	"github.com/pluto-hub/plutohub/internal/storetx"
)

// MemoryStore is a plain-map, mutex-protected Store used for deterministic
// invariant and property testing without a live Postgres instance. It
// satisfies the transactional methods (UpdateBalanceInTx, LockForUpdate)
// by ignoring the supplied storetx.Tx and serializing on its own mutex —
// the in-memory engine's callers still acquire locks in userId order, so
// the mutex never needs to distinguish callers.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
	byExt map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*domain.User),
		byExt: make(map[string]string),
	}
}

func (s *MemoryStore) FindByExternalAuthID(ctx context.Context, externalAuthID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byExt[externalAuthID]
	if !ok {
		return nil, apperr.NotFound("user", externalAuthID)
	}
	u := *s.users[id]
	return &u, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, apperr.NotFound("user", userID)
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) FindByIDs(ctx context.Context, userIDs []string) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.User
	for _, id := range userIDs {
		if u, ok := s.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateIfAbsent(ctx context.Context, externalAuthID, displayName string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byExt[externalAuthID]; ok {
		cp := *s.users[id]
		return &cp, nil
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:         uuid.New().String(),
		ExternalAuthID: externalAuthID,
		DisplayName:    displayName,
		Balance:        money.Zero,
		LockedBalance:  money.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.users[u.UserID] = u
	s.byExt[externalAuthID] = u.UserID
	cp := *u
	return &cp, nil
}

// Seed directly inserts a fully-formed user, bypassing CreateIfAbsent.
// Exported for use by tests constructing fixtures.
func (s *MemoryStore) Seed(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := u
	s.users[u.UserID] = &cp
	s.byExt[u.ExternalAuthID] = u.UserID
}

func (s *MemoryStore) CompareAndUpdate(ctx context.Context, userID string, expected, next BalanceSnapshot) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, apperr.NotFound("user", userID)
	}
	if !u.Balance.Equal(expected.Balance) || !u.LockedBalance.Equal(expected.Locked) {
		return nil, apperr.ConcurrencyConflict("balance row changed since it was read: " + userID)
	}
	u.Balance = next.Balance
	u.LockedBalance = next.Locked
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) UpdateBalanceInTx(ctx context.Context, tx storetx.Tx, userID string, next BalanceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return apperr.NotFound("user", userID)
	}
	u.Balance = next.Balance
	u.LockedBalance = next.Locked
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) LockForUpdate(ctx context.Context, tx storetx.Tx, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, apperr.NotFound("user", userID)
	}
	cp := *u
	return &cp, nil
}
