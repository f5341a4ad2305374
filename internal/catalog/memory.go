package catalog

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pluto-hub/plutohub/internal/apperr"
	"github.com/pluto-hub/plutohub/internal/domain"
)

// MemoryStore is a plain-map, mutex-protected Store for deterministic
// testing without a live Postgres instance.
type MemoryStore struct {
	mu        sync.Mutex
	games     map[string]domain.Game
	gameNames map[string]string
	contracts map[string]domain.Contract
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:     make(map[string]domain.Game),
		gameNames: make(map[string]string),
		contracts: make(map[string]domain.Contract),
	}
}

func (s *MemoryStore) CreateGame(ctx context.Context, game domain.Game) (*domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if game.GameID == "" {
		game.GameID = uuid.New().String()
	}
	s.games[game.GameID] = game
	s.gameNames[game.Name] = game.GameID
	return &game, nil
}

func (s *MemoryStore) FindGameByID(ctx context.Context, gameID string) (*domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return nil, apperr.NotFound("game", gameID)
	}
	return &g, nil
}

func (s *MemoryStore) FindGameByName(ctx context.Context, name string) (*domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.gameNames[name]
	if !ok {
		return nil, apperr.NotFound("game", name)
	}
	g := s.games[id]
	return &g, nil
}

func (s *MemoryStore) CreateContract(ctx context.Context, c domain.Contract) (*domain.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ContractID == "" {
		c.ContractID = uuid.New().String()
	}
	s.contracts[c.ContractID] = c
	return &c, nil
}

func (s *MemoryStore) FindContractByID(ctx context.Context, contractID string) (*domain.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[contractID]
	if !ok {
		return nil, apperr.NotFound("contract", contractID)
	}
	return &c, nil
}

func (s *MemoryStore) ListContracts(ctx context.Context, gameID string) ([]domain.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Contract
	for _, c := range s.contracts {
		if gameID == "" || c.GameID == gameID {
			out = append(out, c)
		}
	}
	return out, nil
}
