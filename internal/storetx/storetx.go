// Package storetx defines the opaque transaction handle threaded through
// store capabilities (ledger.Store, account.Store) so the contract engine
// can run Postgres-backed and in-memory stores behind the same interface
// without either implementation knowing about the other's concurrency
// mechanism.
package storetx

import (
	"context"
	"database/sql"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Tx is an opaque unit-of-work handle. Each store implementation type
// asserts it back to its own concrete type and ignores handles it does
// not recognize (the in-memory stores accept any Tx, including nil,
// since their own mutex already provides the atomicity a SQL transaction
// would).
type Tx interface {
	isTx()
}

// PgTx wraps a *sqlx.Tx for Postgres-backed stores.
type PgTx struct {
	*sqlx.Tx
}

func (PgTx) isTx() {}

// NoTx is the handle in-memory stores use; it carries no state.
type NoTx struct{}

func (NoTx) isTx() {}

// UnitOfWork begins and finishes the single serializable transaction the
// contract engine wraps around one Execute/Settle/Cancel/Expire call.
type UnitOfWork interface {
	Begin(ctx context.Context) (Tx, error)
	Commit(ctx context.Context, tx Tx) error
	Rollback(ctx context.Context, tx Tx) error
}

// PgUnitOfWork opens a real database/sql transaction at serializable
// isolation, matching the concurrency model's requirement that every
// Execute/Settle/Cancel run inside a single serializable transaction.
type PgUnitOfWork struct {
	DB *sqlx.DB
}

func (u *PgUnitOfWork) Begin(ctx context.Context) (Tx, error) {
	tx, err := u.DB.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	return PgTx{Tx: tx}, nil
}

func (u *PgUnitOfWork) Commit(ctx context.Context, tx Tx) error {
	return tx.(PgTx).Commit()
}

func (u *PgUnitOfWork) Rollback(ctx context.Context, tx Tx) error {
	return tx.(PgTx).Rollback()
}

// MemoryUnitOfWork emulates a single global serializable transaction with
// a process-wide mutex. It exists purely so the contract engine can be
// exercised deterministically against in-memory stores in tests: Begin
// acquires the mutex, Commit/Rollback release it, giving the same
// all-or-nothing, one-writer-at-a-time semantics a real serializable
// transaction provides.
type MemoryUnitOfWork struct {
	mu sync.Mutex
}

func (u *MemoryUnitOfWork) Begin(ctx context.Context) (Tx, error) {
	u.mu.Lock()
	return NoTx{}, nil
}

func (u *MemoryUnitOfWork) Commit(ctx context.Context, tx Tx) error {
	u.mu.Unlock()
	return nil
}

func (u *MemoryUnitOfWork) Rollback(ctx context.Context, tx Tx) error {
	u.mu.Unlock()
	return nil
}
