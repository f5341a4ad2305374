package lobby

import (
	"context"
	"fmt"
	"time"

	"github.com/pluto-hub/plutohub/internal/account"
	"github.com/pluto-hub/plutohub/internal/apperr"
	"github.com/pluto-hub/plutohub/internal/audit"
	"github.com/pluto-hub/plutohub/internal/catalog"
	"github.com/pluto-hub/plutohub/internal/domain"
	"go.uber.org/zap"
)

// StartingCountdownSeconds is how long a lobby sits in STARTING before
// the caller (the game backend, via the lobby_starting/game_started
// events) is expected to kick off the actual contract execution.
const StartingCountdownSeconds = 5

// Service orchestrates lobby membership (C8) and drives the fan-out
// registry (C9). It never talks to SQL directly; all persistence goes
// through Store so the same orchestration runs against MemoryStore in
// tests and PostgresStore in production.
type Service struct {
	store    Store
	accounts account.Store
	catalog  catalog.Store
	registry *Registry
	audit    *audit.Service
	log      *zap.Logger
}

// New wires a Service from its capabilities.
func New(store Store, accounts account.Store, cat catalog.Store, registry *Registry, auditSvc *audit.Service, log *zap.Logger) *Service {
	return &Service{store: store, accounts: accounts, catalog: cat, registry: registry, audit: auditSvc, log: log}
}

// JoinResult reports the lobby a player ended up in after Join.
type JoinResult struct {
	Lobby    *domain.Lobby
	Starting bool
}

// Join adds a player to a WAITING lobby for contractID, creating one if
// none has room. It rejects players already in a lobby and players who
// cannot currently afford the contract's entry fee; the fund check here
// is a precheck only; Execute re-validates and locks the real balance
// inside its own transaction.
func (s *Service) Join(ctx context.Context, contractID, userID string) (*JoinResult, error) {
	if existing, err := s.store.FindUserLobby(ctx, userID); err == nil && existing != nil {
		return nil, apperr.AlreadyInLobby(userID)
	}

	c, err := s.catalog.FindContractByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, apperr.GameNotActive(contractID)
	}

	u, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.AvailableBalance().LessThan(c.EntryFee) {
		return nil, apperr.InsufficientFunds(c.EntryFee.String(), u.AvailableBalance().String())
	}

	l, err := s.store.FindOrCreateWaiting(ctx, contractID, c.MaxPlayers)
	if err != nil {
		return nil, err
	}
	l, err = s.store.AddPlayer(ctx, l.LobbyID, userID, c.MaxPlayers)
	if err != nil {
		return nil, err
	}

	s.registry.Broadcast(l.LobbyID, Event{Type: "player_joined", Data: map[string]interface{}{
		"lobbyId": l.LobbyID,
		"userId":  userID,
		"players": len(l.Players),
	}})

	starting := false
	if len(l.Players) >= c.MaxPlayers {
		starting = true
		if err := s.store.UpdateStatus(ctx, l.LobbyID, domain.LobbyStarting); err != nil {
			return nil, err
		}
		l.Status = domain.LobbyStarting
		s.registry.Broadcast(l.LobbyID, Event{Type: "lobby_starting", Data: map[string]interface{}{
			"lobbyId":   l.LobbyID,
			"countdown": StartingCountdownSeconds,
		}})
		s.audit.Log(ctx, audit.EventLobbyStarting, domain.SeverityInfo,
			fmt.Sprintf("lobby %s reached capacity, starting", l.LobbyID),
			map[string]interface{}{"lobbyId": l.LobbyID, "contractId": contractID},
			audit.WithComponent("lobby"))
	}

	return &JoinResult{Lobby: l, Starting: starting}, nil
}

// Leave removes userID from its current lobby. Leaving an empty-after
// WAITING lobby closes it; leaving a STARTING lobby is also honored,
// since the countdown has not yet handed control to the game backend.
func (s *Service) Leave(ctx context.Context, userID string) (*domain.Lobby, error) {
	l, err := s.store.FindUserLobby(ctx, userID)
	if err != nil {
		return nil, err
	}

	l, err = s.store.RemovePlayer(ctx, l.LobbyID, userID)
	if err != nil {
		return nil, err
	}

	s.registry.Broadcast(l.LobbyID, Event{Type: "player_left", Data: map[string]interface{}{
		"lobbyId": l.LobbyID,
		"userId":  userID,
		"players": len(l.Players),
	}})

	if len(l.Players) == 0 {
		if err := s.store.UpdateStatus(ctx, l.LobbyID, domain.LobbyClosed); err != nil {
			return nil, err
		}
		l.Status = domain.LobbyClosed
		s.registry.Broadcast(l.LobbyID, Event{Type: "lobby_closed", Data: map[string]interface{}{"lobbyId": l.LobbyID}})
		s.audit.Log(ctx, audit.EventLobbyClosed, domain.SeverityInfo,
			fmt.Sprintf("lobby %s closed, empty", l.LobbyID),
			map[string]interface{}{"lobbyId": l.LobbyID},
			audit.WithComponent("lobby"))
	}

	return l, nil
}

// Status returns the current state of a lobby for polling clients.
func (s *Service) Status(ctx context.Context, lobbyID string) (*domain.Lobby, error) {
	return s.store.FindByID(ctx, lobbyID)
}

// List returns every non-terminal lobby for a contract, or every lobby
// if contractID is empty.
func (s *Service) List(ctx context.Context, contractID string) ([]domain.Lobby, error) {
	return s.store.ListByContract(ctx, contractID)
}

// MarkGameStarted transitions a STARTING lobby to IN_GAME once the
// caller has executed the underlying contract for its players, and
// broadcasts game_started to subscribers still attached to the stream.
func (s *Service) MarkGameStarted(ctx context.Context, lobbyID string) error {
	if err := s.store.UpdateStatus(ctx, lobbyID, domain.LobbyInGame); err != nil {
		return err
	}
	s.registry.Broadcast(lobbyID, Event{Type: "game_started", Data: map[string]interface{}{"lobbyId": lobbyID}})
	return nil
}

// Subscribe attaches an SSE client to a lobby's event stream.
func (s *Service) Subscribe(lobbyID string) (<-chan Event, func()) {
	return s.registry.Subscribe(lobbyID)
}

// HeartbeatInterval is how often SSE handlers should emit a comment
// line to keep idle connections from being reaped by intermediaries.
const HeartbeatInterval = 30 * time.Second
