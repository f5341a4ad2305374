package contract

import (
	"fmt"
	"time"

	"context"

	"github.com/pluto-hub/plutohub/internal/account"
	"github.com/pluto-hub/plutohub/internal/apperr"
	"github.com/pluto-hub/plutohub/internal/audit"
	"github.com/pluto-hub/plutohub/internal/domain"
	"github.com/pluto-hub/plutohub/internal/money"
	"github.com/pluto-hub/plutohub/internal/storetx"
	"github.com/pluto-hub/plutohub/internal/token"
)

// SettleInput is one player's outcome supplied to Settle.
type SettleInput struct {
	PlayerID  string
	IsWinner  bool
	WinAmount *money.Amount
}

// SettleResult is returned from a successful Settle call.
type SettleResult struct {
	SessionID            string
	Winners              []domain.SessionPlayer
	PlatformFeeCollected money.Amount
}

// Settle verifies the session token, applies the win/lose distribution,
// and transitions the session to SETTLED.
func (e *Engine) Settle(ctx context.Context, sessionToken string, results []SettleInput) (*SettleResult, error) {
	body, err := e.tokens.Verify(sessionToken)
	if err != nil {
		return nil, apperr.InvalidToken("session token does not verify")
	}

	c, err := e.catalog.FindContractByID(ctx, body.ContractID)
	if err != nil {
		return nil, err
	}

	tx, err := e.uow.Begin(ctx)
	if err != nil {
		return nil, apperr.Internal("begin transaction: " + err.Error())
	}
	result, err := e.settleInTx(ctx, tx, c, body, results)
	if err != nil {
		_ = e.uow.Rollback(ctx, tx)
		return nil, err
	}
	if err := e.uow.Commit(ctx, tx); err != nil {
		return nil, apperr.Internal("commit transaction: " + err.Error())
	}

	e.audit.Log(ctx, audit.EventSessionSettled, domain.SeverityInfo,
		fmt.Sprintf("session %s settled", result.SessionID),
		map[string]interface{}{"sessionId": result.SessionID, "platformFee": result.PlatformFeeCollected.String()},
		audit.WithComponent("contract"))

	return result, nil
}

func (e *Engine) settleInTx(ctx context.Context, tx storetx.Tx, c *domain.Contract, body token.Body, results []SettleInput) (*SettleResult, error) {
	sess, err := e.sessions.FindByIDForUpdate(ctx, tx, body.SessionID)
	if err != nil {
		return nil, err
	}
	if err := requireSettleable(sess); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if now.After(sess.ExpiresAt) {
		return nil, apperr.SessionExpired(sess.SessionID)
	}

	if err := validateResultSet(sess, results); err != nil {
		return nil, err
	}

	platformFee := sess.TotalPot.FloorBps(c.PlatformFeeBps)
	prizePool, err := sess.TotalPot.Sub(platformFee)
	if err != nil {
		return nil, apperr.Internal("prize pool computation underflowed")
	}

	winAmounts, err := resolveDistribution(results, prizePool)
	if err != nil {
		return nil, err
	}

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

	resultByPlayer := make(map[string]SettleInput, len(results))
	for _, r := range results {
		resultByPlayer[r.PlayerID] = r
	}

	var entries []domain.LedgerEntry
	var winners []domain.SessionPlayer
	outcomes := make([]domain.SessionPlayer, 0, len(sess.Players))

	for _, sp := range sess.Players {
		u := accounts[sp.UserID]
		r := resultByPlayer[sp.UserID]

		balanceAfterLoss, err := u.Balance.Sub(sp.AmountLocked)
		if err != nil {
			return nil, apperr.Internal("ledger underflow on settle")
		}
		newLocked, err := u.LockedBalance.Sub(sp.AmountLocked)
		if err != nil {
			return nil, apperr.Internal("locked underflow on settle")
		}

		entries = append(entries, domain.LedgerEntry{
			UserID:       sp.UserID,
			Type:         domain.LedgerLose,
			Amount:       sp.AmountLocked,
			BalanceAfter: balanceAfterLoss,
			SessionID:    &sess.SessionID,
			CreatedAt:    now,
		})

		finalBalance := balanceAfterLoss
		outcome := sp
		outcome.IsWinner = r.IsWinner
		if r.IsWinner {
			win := winAmounts[sp.UserID]
			finalBalance = balanceAfterLoss.Add(win)
			entries = append(entries, domain.LedgerEntry{
				UserID:       sp.UserID,
				Type:         domain.LedgerWin,
				Amount:       win,
				BalanceAfter: finalBalance,
				SessionID:    &sess.SessionID,
				CreatedAt:    now,
			})
			outcome.WinAmount = win
			winners = append(winners, outcome)
		} else {
			outcome.WinAmount = money.Zero
		}
		outcomes = append(outcomes, outcome)

		if err := e.accounts.UpdateBalanceInTx(ctx, tx, sp.UserID, account.BalanceSnapshot{Balance: finalBalance, Locked: newLocked}); err != nil {
			return nil, err
		}
	}

	if platformFee.IsPositive() {
		entries = append(entries, domain.LedgerEntry{
			UserID:       PlatformAccountID,
			Type:         domain.LedgerFee,
			Amount:       platformFee,
			BalanceAfter: platformFee,
			SessionID:    &sess.SessionID,
			CreatedAt:    now,
		})
	}
	if err := e.ledger.AppendMany(ctx, tx, entries); err != nil {
		return nil, err
	}

	if err := e.sessions.UpdateOutcome(ctx, tx, sess.SessionID, domain.SessionSettled, outcomes, &now); err != nil {
		return nil, err
	}

	return &SettleResult{SessionID: sess.SessionID, Winners: winners, PlatformFeeCollected: platformFee}, nil
}

func requireSettleable(sess *domain.ContractSession) error {
	switch sess.Status {
	case domain.SessionPending, domain.SessionActive:
		return nil
	case domain.SessionSettled:
		return apperr.AlreadySettled(sess.SessionID)
	default:
		return apperr.InvalidState("session " + sess.SessionID + " is " + string(sess.Status))
	}
}

func validateResultSet(sess *domain.ContractSession, results []SettleInput) error {
	if len(results) != len(sess.Players) {
		return apperr.Validation("results must cover exactly the session's player set", nil)
	}
	want := make(map[string]struct{}, len(sess.Players))
	for _, p := range sess.Players {
		want[p.UserID] = struct{}{}
	}
	anyWinner := false
	for _, r := range results {
		if _, ok := want[r.PlayerID]; !ok {
			return apperr.Validation("results contain an unknown playerId: "+r.PlayerID, nil)
		}
		delete(want, r.PlayerID)
		if r.IsWinner {
			anyWinner = true
		}
	}
	if len(want) != 0 {
		return apperr.Validation("results omit players from the session", nil)
	}
	if !anyWinner {
		return apperr.Validation("at least one winner is required", nil)
	}
	return nil
}

// resolveDistribution returns the per-winner win amount. Explicit
// winAmounts override the even default split but must sum to prizePool.
func resolveDistribution(results []SettleInput, prizePool money.Amount) (map[string]money.Amount, error) {
	var winners []SettleInput
	explicit := false
	for _, r := range results {
		if r.IsWinner {
			winners = append(winners, r)
			if r.WinAmount != nil {
				explicit = true
			}
		}
	}

	out := make(map[string]money.Amount, len(winners))
	if explicit {
		sum := money.Zero
		for _, w := range winners {
			if w.WinAmount == nil {
				return nil, apperr.Validation("every winner must have an explicit winAmount when any winner specifies one", nil)
			}
			out[w.PlayerID] = *w.WinAmount
			sum = sum.Add(*w.WinAmount)
		}
		if !sum.Equal(prizePool) {
			return nil, apperr.Validation("sum of winAmounts must equal the prize pool", map[string]string{
				"prizePool": prizePool.String(),
				"sum":       sum.String(),
			})
		}
		return out, nil
	}

	shares := prizePool.Split(len(winners))
	for i, w := range winners {
		out[w.PlayerID] = shares[i]
	}
	return out, nil
}
