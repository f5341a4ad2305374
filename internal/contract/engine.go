// Package contract implements the contract engine (C7) — the heart of the
// system: Execute, Settle, Cancel, and Expire, each run as a single
// serializable transaction spanning the ledger, account, session, and
// catalog stores.
package contract

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pluto-hub/plutohub/internal/account"
	"github.com/pluto-hub/plutohub/internal/apperr"
	"github.com/pluto-hub/plutohub/internal/audit"
	"github.com/pluto-hub/plutohub/internal/catalog"
	"github.com/pluto-hub/plutohub/internal/domain"
	"github.com/pluto-hub/plutohub/internal/ledger"
	"github.com/pluto-hub/plutohub/internal/money"
	"github.com/pluto-hub/plutohub/internal/session"
	"github.com/pluto-hub/plutohub/internal/storetx"
	"github.com/pluto-hub/plutohub/internal/token"
	"go.uber.org/zap"
)

// PlatformAccountID is the sentinel user id FEE ledger entries are
// recorded against. It names no real user row; FEE entries are logged,
// not settled against a balance.
const PlatformAccountID = "platform"

// Engine is the plain module receiving store capabilities plus the token
// codec, per the design notes on avoiding a base-class hierarchy: every
// capability here is an interface, so tests substitute in-memory stores
// without the engine knowing the difference.
type Engine struct {
	uow      storetx.UnitOfWork
	ledger   ledger.Store
	accounts account.Store
	sessions session.Store
	catalog  catalog.Store
	tokens   *token.Codec
	audit    *audit.Service
	log      *zap.Logger
}

// New wires an Engine from its dependent capabilities.
func New(uow storetx.UnitOfWork, ledgerStore ledger.Store, accounts account.Store, sessions session.Store, cat catalog.Store, tokens *token.Codec, auditSvc *audit.Service, log *zap.Logger) *Engine {
	return &Engine{
		uow:      uow,
		ledger:   ledgerStore,
		accounts: accounts,
		sessions: sessions,
		catalog:  cat,
		tokens:   tokens,
		audit:    auditSvc,
		log:      log,
	}
}

// ExecuteResult is returned from a successful Execute call.
type ExecuteResult struct {
	SessionID    string
	SessionToken string
	ContractID   string
	Players      []domain.SessionPlayer
	TotalPot     money.Amount
	ExpiresAt    time.Time
}

// Execute validates preconditions, locks entry fees, and opens a new
// PENDING session for contractId across the resolved players.
func (e *Engine) Execute(ctx context.Context, contractID string, externalAuthIDs []string) (*ExecuteResult, error) {
	c, err := e.catalog.FindContractByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, apperr.GameNotActive(contractID)
	}

	n := len(externalAuthIDs)
	if n < c.MinPlayers || n > c.MaxPlayers {
		return nil, apperr.Validation("player count out of range", map[string]string{
			"minPlayers": fmt.Sprint(c.MinPlayers),
			"maxPlayers": fmt.Sprint(c.MaxPlayers),
			"got":        fmt.Sprint(n),
		})
	}
	if hasDuplicates(externalAuthIDs) {
		return nil, apperr.Validation("duplicate playerIds", nil)
	}

	userIDs := make([]string, n)
	for i, extID := range externalAuthIDs {
		u, err := e.accounts.FindByExternalAuthID(ctx, extID)
		if err != nil {
			return nil, err
		}
		userIDs[i] = u.UserID
	}

	tx, err := e.uow.Begin(ctx)
	if err != nil {
		return nil, apperr.Internal("begin transaction: " + err.Error())
	}
	result, err := e.executeInTx(ctx, tx, c, userIDs)
	if err != nil {
		_ = e.uow.Rollback(ctx, tx)
		return nil, err
	}
	if err := e.uow.Commit(ctx, tx); err != nil {
		return nil, apperr.Internal("commit transaction: " + err.Error())
	}

	e.audit.Log(ctx, audit.EventSessionExecuted, domain.SeverityInfo,
		fmt.Sprintf("session %s executed for contract %s", result.SessionID, contractID),
		map[string]interface{}{"sessionId": result.SessionID, "contractId": contractID},
		audit.WithComponent("contract"))

	return result, nil
}

func (e *Engine) executeInTx(ctx context.Context, tx storetx.Tx, c *domain.Contract, userIDs []string) (*ExecuteResult, error) {
	locked := lockAscending(userIDs)
	accounts := make(map[string]*domain.User, len(userIDs))
	for _, id := range locked {
		u, err := e.accounts.LockForUpdate(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		accounts[id] = u
	}

	for _, id := range userIDs {
		u := accounts[id]
		if u.AvailableBalance().LessThan(c.EntryFee) {
			return nil, apperr.InsufficientFunds(c.EntryFee.String(), u.AvailableBalance().String())
		}
	}

	sessionID := uuid.New().String()
	now := time.Now().UTC()
	expiresAt := now.Add(time.Duration(c.TTLSeconds) * time.Second)
	totalPot := c.EntryFee.MulInt(int64(len(userIDs)))

	players := make([]domain.SessionPlayer, len(userIDs))
	var entries []domain.LedgerEntry
	for i, id := range userIDs {
		u := accounts[id]
		newLocked := u.LockedBalance.Add(c.EntryFee)
		if err := e.accounts.UpdateBalanceInTx(ctx, tx, id, account.BalanceSnapshot{Balance: u.Balance, Locked: newLocked}); err != nil {
			return nil, err
		}
		entries = append(entries, domain.LedgerEntry{
			UserID:       id,
			Type:         domain.LedgerLock,
			Amount:       c.EntryFee,
			BalanceAfter: u.Balance,
			SessionID:    &sessionID,
			CreatedAt:    now,
		})
		players[i] = domain.SessionPlayer{UserID: id, AmountLocked: c.EntryFee}
	}
	if err := e.ledger.AppendMany(ctx, tx, entries); err != nil {
		return nil, err
	}

	sess := domain.ContractSession{
		SessionID:  sessionID,
		ContractID: c.ContractID,
		Status:     domain.SessionPending,
		TotalPot:   totalPot,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		Players:    players,
	}
	if err := e.sessions.Create(ctx, tx, sess); err != nil {
		return nil, err
	}

	tok, err := e.tokens.Mint(token.Body{
		SessionID:  sessionID,
		ContractID: c.ContractID,
		PlayerIDs:  userIDs,
		TotalPot:   totalPot,
		ExpiresAt:  expiresAt,
		IssuedAt:   now,
	})
	if err != nil {
		return nil, apperr.Internal("mint session token: " + err.Error())
	}

	return &ExecuteResult{
		SessionID:    sessionID,
		SessionToken: tok,
		ContractID:   c.ContractID,
		Players:      players,
		TotalPot:     totalPot,
		ExpiresAt:    expiresAt,
	}, nil
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

// lockAscending returns a sorted copy of ids so callers acquire per-user
// row locks in a canonical order, avoiding cross-session deadlocks.
func lockAscending(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
