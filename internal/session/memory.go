package session

import (
	"context"
	"sync"
	"time"

	"github.com/pluto-hub/plutohub/internal/apperr"
	"github.com/pluto-hub/plutohub/internal/domain"
	"github.com/pluto-hub/plutohub/internal/storetx"
)

// MemoryStore is a plain-map, mutex-protected Store for deterministic
// testing without a live Postgres instance.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.ContractSession
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.ContractSession)}
}

func (s *MemoryStore) Create(ctx context.Context, tx storetx.Tx, sess domain.ContractSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := sess
	cp.Players = append([]domain.SessionPlayer(nil), sess.Players...)
	s.sessions[sess.SessionID] = &cp
	return nil
}

func (s *MemoryStore) copy(sessionID string) (*domain.ContractSession, error) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, apperr.NotFound("session", sessionID)
	}
	cp := *sess
	cp.Players = append([]domain.SessionPlayer(nil), sess.Players...)
	return &cp, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, sessionID string) (*domain.ContractSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copy(sessionID)
}

func (s *MemoryStore) FindByIDForUpdate(ctx context.Context, tx storetx.Tx, sessionID string) (*domain.ContractSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copy(sessionID)
}

func (s *MemoryStore) UpdateOutcome(ctx context.Context, tx storetx.Tx, sessionID string, status domain.SessionStatus, players []domain.SessionPlayer, settledAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return apperr.NotFound("session", sessionID)
	}
	sess.Status = status
	sess.SettledAt = settledAt
	byUser := make(map[string]domain.SessionPlayer, len(players))
	for _, p := range players {
		byUser[p.UserID] = p
	}
	for i, existing := range sess.Players {
		if updated, ok := byUser[existing.UserID]; ok {
			sess.Players[i].IsWinner = updated.IsWinner
			sess.Players[i].WinAmount = updated.WinAmount
		}
	}
	return nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, tx storetx.Tx, sessionID string, status domain.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return apperr.NotFound("session", sessionID)
	}
	sess.Status = status
	return nil
}

func (s *MemoryStore) ListExpired(ctx context.Context, now time.Time) ([]domain.ContractSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ContractSession
	for _, sess := range s.sessions {
		if (sess.Status == domain.SessionPending || sess.Status == domain.SessionActive) && now.After(sess.ExpiresAt) {
			cp, _ := s.copy(sess.SessionID)
			out = append(out, *cp)
		}
	}
	return out, nil
}
