// Package lobby implements the lobby state machine (C8) and its fan-out
// registry (C9).
package lobby

import (
	"context"

	"github.com/pluto-hub/plutohub/internal/domain"
)

// Store is the capability Join/Leave depend on for lobby membership.
type Store interface {
	// FindOrCreateWaiting atomically finds a WAITING lobby for contractID
	// with spare capacity, or creates a new one if none exists.
	FindOrCreateWaiting(ctx context.Context, contractID string, maxPlayers int) (*domain.Lobby, error)

	// FindUserLobby returns the user's current non-terminal lobby, if any.
	FindUserLobby(ctx context.Context, userID string) (*domain.Lobby, error)

	FindByID(ctx context.Context, lobbyID string) (*domain.Lobby, error)

	ListByContract(ctx context.Context, contractID string) ([]domain.Lobby, error)

	// AddPlayer adds userID to lobbyID. Implementations must re-check
	// capacity under the same lock that performs the insert.
	AddPlayer(ctx context.Context, lobbyID, userID string, maxPlayers int) (*domain.Lobby, error)

	// RemovePlayer removes userID from lobbyID and returns the lobby's
	// state after removal.
	RemovePlayer(ctx context.Context, lobbyID, userID string) (*domain.Lobby, error)

	UpdateStatus(ctx context.Context, lobbyID string, status domain.LobbyStatus) error
}
