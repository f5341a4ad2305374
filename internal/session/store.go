// Package session stores ContractSessions and their SessionPlayer rows
// (C6): the state the contract engine mutates on Execute/Settle/Cancel/
// Expire, and that the sweeper (C10) scans for expiry.
package session

import (
	"context"
	"time"

	"github.com/pluto-hub/plutohub/internal/domain"
	"github.com/pluto-hub/plutohub/internal/storetx"
)

// Store is the capability the contract engine and sweeper depend on.
// Every mutating method participates in the caller's transaction — the
// contract engine always performs Execute/Settle/Cancel/Expire as one
// serializable transaction, so there is no non-transactional write path.
type Store interface {
	// Create inserts a PENDING session with its players in tx.
	Create(ctx context.Context, tx storetx.Tx, s domain.ContractSession) error

	// FindByID loads a session and its players, outside any transaction.
	FindByID(ctx context.Context, sessionID string) (*domain.ContractSession, error)

	// FindByIDForUpdate loads a session and its players within tx,
	// acquiring a row lock so concurrent Settle/Cancel/Expire serialize.
	FindByIDForUpdate(ctx context.Context, tx storetx.Tx, sessionID string) (*domain.ContractSession, error)

	// UpdateOutcome writes final SessionPlayer rows (isWinner, winAmount)
	// and transitions status to a terminal value within tx.
	UpdateOutcome(ctx context.Context, tx storetx.Tx, sessionID string, status domain.SessionStatus, players []domain.SessionPlayer, settledAt *time.Time) error

	// UpdateStatus transitions status alone (Cancel/Expire, which do not
	// alter player outcome rows) within tx.
	UpdateStatus(ctx context.Context, tx storetx.Tx, sessionID string, status domain.SessionStatus) error

	// ListExpired returns sessions with status in {PENDING, ACTIVE} and
	// expiresAt before now, for the sweeper to drive through Expire.
	ListExpired(ctx context.Context, now time.Time) ([]domain.ContractSession, error)
}
