// Package catalog stores Games and Contracts (C5): immutable-after-creation
// registrations the contract engine resolves by id on every Execute.
package catalog

import (
	"context"

	"github.com/pluto-hub/plutohub/internal/domain"
)

// Store is the capability the API layer and contract engine depend on.
type Store interface {
	CreateGame(ctx context.Context, game domain.Game) (*domain.Game, error)
	FindGameByID(ctx context.Context, gameID string) (*domain.Game, error)
	FindGameByName(ctx context.Context, name string) (*domain.Game, error)

	CreateContract(ctx context.Context, contract domain.Contract) (*domain.Contract, error)
	FindContractByID(ctx context.Context, contractID string) (*domain.Contract, error)
	ListContracts(ctx context.Context, gameID string) ([]domain.Contract, error)
}
