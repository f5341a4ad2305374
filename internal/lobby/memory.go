package lobby

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pluto-hub/plutohub/internal/apperr"
	"github.com/pluto-hub/plutohub/internal/domain"
)

// MemoryStore is the mutex-protected, process-wide lobby registry the
// design notes call for: a single component owning a map, never exposed
// as a singleton. It is also the store used in deterministic tests.
type MemoryStore struct {
	mu      sync.Mutex
	lobbies map[string]*domain.Lobby
	byUser  map[string]string
}

// NewMemoryStore returns an empty registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lobbies: make(map[string]*domain.Lobby),
		byUser:  make(map[string]string),
	}
}

func (s *MemoryStore) FindOrCreateWaiting(ctx context.Context, contractID string, maxPlayers int) (*domain.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.lobbies {
		if l.ContractID == contractID && l.Status == domain.LobbyWaiting && len(l.Players) < maxPlayers {
			return cloneLobby(l), nil
		}
	}

	l := &domain.Lobby{
		LobbyID:    uuid.New().String(),
		ContractID: contractID,
		Status:     domain.LobbyWaiting,
		CreatedAt:  time.Now().UTC(),
	}
	s.lobbies[l.LobbyID] = l
	return cloneLobby(l), nil
}

func (s *MemoryStore) FindUserLobby(ctx context.Context, userID string) (*domain.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lobbyID, ok := s.byUser[userID]
	if !ok {
		return nil, apperr.NotFound("lobby", "for user "+userID)
	}
	return cloneLobby(s.lobbies[lobbyID]), nil
}

func (s *MemoryStore) FindByID(ctx context.Context, lobbyID string) (*domain.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, apperr.NotFound("lobby", lobbyID)
	}
	return cloneLobby(l), nil
}

func (s *MemoryStore) ListByContract(ctx context.Context, contractID string) ([]domain.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Lobby
	for _, l := range s.lobbies {
		if contractID == "" || l.ContractID == contractID {
			out = append(out, *cloneLobby(l))
		}
	}
	return out, nil
}

func (s *MemoryStore) AddPlayer(ctx context.Context, lobbyID, userID string, maxPlayers int) (*domain.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, apperr.NotFound("lobby", lobbyID)
	}
	if len(l.Players) >= maxPlayers {
		return nil, apperr.LobbyFull(lobbyID)
	}
	l.Players = append(l.Players, domain.LobbyPlayer{UserID: userID, JoinedAt: time.Now().UTC()})
	s.byUser[userID] = lobbyID
	return cloneLobby(l), nil
}

func (s *MemoryStore) RemovePlayer(ctx context.Context, lobbyID, userID string) (*domain.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, apperr.NotFound("lobby", lobbyID)
	}
	for i, p := range l.Players {
		if p.UserID == userID {
			l.Players = append(l.Players[:i], l.Players[i+1:]...)
			break
		}
	}
	delete(s.byUser, userID)
	return cloneLobby(l), nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, lobbyID string, status domain.LobbyStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return apperr.NotFound("lobby", lobbyID)
	}
	l.Status = status
	if status.IsTerminal() {
		for _, p := range l.Players {
			delete(s.byUser, p.UserID)
		}
	}
	return nil
}

func cloneLobby(l *domain.Lobby) *domain.Lobby {
	cp := *l
	cp.Players = append([]domain.LobbyPlayer(nil), l.Players...)
	return &cp
}
