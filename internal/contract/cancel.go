package contract

import (
	"context"
	"fmt"
	"time"

	"github.com/pluto-hub/plutohub/internal/account"
	"github.com/pluto-hub/plutohub/internal/apperr"
	"github.com/pluto-hub/plutohub/internal/audit"
	"github.com/pluto-hub/plutohub/internal/domain"
	"github.com/pluto-hub/plutohub/internal/storetx"
)

// CancelResult is returned from a successful Cancel call.
type CancelResult struct {
	SessionID       string
	RefundedPlayers []string
}

// Cancel verifies the session token and refunds every player's locked
// entry fee, transitioning the session to CANCELLED. No fee is charged.
func (e *Engine) Cancel(ctx context.Context, sessionToken string, reason string) (*CancelResult, error) {
	body, err := e.tokens.Verify(sessionToken)
	if err != nil {
		return nil, apperr.InvalidToken("session token does not verify")
	}

	tx, err := e.uow.Begin(ctx)
	if err != nil {
		return nil, apperr.Internal("begin transaction: " + err.Error())
	}
	result, err := e.unlockInTx(ctx, tx, body.SessionID, domain.SessionCancelled, reason)
	if err != nil {
		_ = e.uow.Rollback(ctx, tx)
		return nil, err
	}
	if err := e.uow.Commit(ctx, tx); err != nil {
		return nil, apperr.Internal("commit transaction: " + err.Error())
	}

	e.audit.Log(ctx, audit.EventSessionCancelled, domain.SeverityInfo,
		fmt.Sprintf("session %s cancelled: %s", result.SessionID, reason),
		map[string]interface{}{"sessionId": result.SessionID},
		audit.WithComponent("contract"))

	return result, nil
}

// Expire is driven by the sweeper (C10), not by an external caller, so it
// operates directly on a session id rather than a verified token. Sessions
// that are no longer PENDING/ACTIVE by the time the sweeper gets to them
// (a race with Settle/Cancel) are silently skipped.
func (e *Engine) Expire(ctx context.Context, sessionID string) error {
	tx, err := e.uow.Begin(ctx)
	if err != nil {
		return apperr.Internal("begin transaction: " + err.Error())
	}
	result, err := e.unlockInTx(ctx, tx, sessionID, domain.SessionExpired, "expired")
	if err != nil {
		_ = e.uow.Rollback(ctx, tx)
		if appErr, ok := apperr.As(err); ok && (appErr.Code == apperr.CodeAlreadySettled || appErr.Code == apperr.CodeInvalidState) {
			return nil
		}
		return err
	}
	if err := e.uow.Commit(ctx, tx); err != nil {
		return apperr.Internal("commit transaction: " + err.Error())
	}

	e.audit.Log(ctx, audit.EventContractSessionExpired, domain.SeverityInfo,
		fmt.Sprintf("session %s expired by sweeper", result.SessionID),
		map[string]interface{}{"sessionId": result.SessionID},
		audit.WithComponent("sweeper"))
	return nil
}

func (e *Engine) unlockInTx(ctx context.Context, tx storetx.Tx, sessionID string, terminal domain.SessionStatus, description string) (*CancelResult, error) {
	sess, err := e.sessions.FindByIDForUpdate(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := requireSettleable(sess); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	userIDs := sess.PlayerIDs()
	locked := lockAscending(userIDs)
	accounts := make(map[string]*domain.User, len(userIDs))
	for _, id := range locked {
		u, err := e.accounts.LockForUpdate(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		accounts[id] = u
	}

	var entries []domain.LedgerEntry
	desc := description
	for _, sp := range sess.Players {
		u := accounts[sp.UserID]
		newLocked, err := u.LockedBalance.Sub(sp.AmountLocked)
		if err != nil {
			return nil, apperr.Internal("locked underflow on unlock")
		}
		if err := e.accounts.UpdateBalanceInTx(ctx, tx, sp.UserID, account.BalanceSnapshot{Balance: u.Balance, Locked: newLocked}); err != nil {
			return nil, err
		}
		entries = append(entries, domain.LedgerEntry{
			UserID:       sp.UserID,
			Type:         domain.LedgerUnlock,
			Amount:       sp.AmountLocked,
			BalanceAfter: u.Balance,
			SessionID:    &sess.SessionID,
			Description:  &desc,
			CreatedAt:    now,
		})
	}
	if err := e.ledger.AppendMany(ctx, tx, entries); err != nil {
		return nil, err
	}

	if err := e.sessions.UpdateStatus(ctx, tx, sess.SessionID, terminal); err != nil {
		return nil, err
	}

	return &CancelResult{SessionID: sess.SessionID, RefundedPlayers: userIDs}, nil
}
