// Package account implements the user balance store (C3): lookups and the
// two sanctioned mutation paths for a user's balance/locked columns.
package account

import (
	"context"

	"github.com/pluto-hub/plutohub/internal/domain"
	"github.com/pluto-hub/plutohub/internal/money"
	"github.com/pluto-hub/plutohub/internal/storetx"
)

// BalanceSnapshot is the {balance, locked} pair CompareAndUpdate checks
// against and writes.
type BalanceSnapshot struct {
	Balance money.Amount
	Locked  money.Amount
}

// Store is the capability the contract engine and the API layer depend on.
type Store interface {
	FindByExternalAuthID(ctx context.Context, externalAuthID string) (*domain.User, error)
	FindByID(ctx context.Context, userID string) (*domain.User, error)
	FindByIDs(ctx context.Context, userIDs []string) ([]domain.User, error)

	// CreateIfAbsent returns the existing user for externalAuthID, or
	// creates one with the given displayName if none exists yet.
	CreateIfAbsent(ctx context.Context, externalAuthID, displayName string) (*domain.User, error)

	// CompareAndUpdate performs a conditional balance update outside any
	// caller transaction; it fails with apperr.ConcurrencyConflict if the
	// current row does not match expected. This is the only sanctioned
	// path to mutate a balance row outside an outer transaction.
	CompareAndUpdate(ctx context.Context, userID string, expected, next BalanceSnapshot) (*domain.User, error)

	// UpdateBalanceInTx performs an unconditional update participating in
	// a caller-provided transaction — used by the contract engine, which
	// already holds a per-user row lock acquired in userId order.
	UpdateBalanceInTx(ctx context.Context, tx storetx.Tx, userID string, next BalanceSnapshot) error

	// LockForUpdate acquires a row lock on userID within tx and returns
	// its current balance snapshot. Callers must acquire locks for a
	// batch of users in ascending userId order to avoid deadlocks.
	LockForUpdate(ctx context.Context, tx storetx.Tx, userID string) (*domain.User, error)
}
