// Package ledger implements the append-only balance-effect history (C2).
// Entries are immutable once written; the store never updates or deletes a
// row after Append/AppendMany returns.
package ledger

import (
	"context"

	"github.com/pluto-hub/plutohub/internal/domain"
	"github.com/pluto-hub/plutohub/internal/storetx"
)

// Store is the capability the contract engine depends on. There is no
// base-class hierarchy here — Postgres and in-memory implementations both
// satisfy this interface directly, which is the only polymorphism the
// engine needs for testing.
type Store interface {
	// Append inserts a single immutable row and returns its id. Fails only
	// on infrastructure errors.
	Append(ctx context.Context, entry domain.LedgerEntry) (string, error)

	// AppendMany inserts a batch atomically inside tx — the contract
	// engine always supplies its own serializable transaction here since
	// it already holds the per-user row locks.
	AppendMany(ctx context.Context, tx storetx.Tx, entries []domain.LedgerEntry) error

	// History returns rows for a user ordered by createdAt descending,
	// stable tiebreak by entryId, plus the total row count.
	History(ctx context.Context, userID string, limit, offset int) ([]domain.LedgerEntry, int, error)

	// BySession returns rows for a session ordered by createdAt ascending.
	BySession(ctx context.Context, sessionID string) ([]domain.LedgerEntry, error)
}
