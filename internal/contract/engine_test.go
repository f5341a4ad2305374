package contract

import (
	"context"
	"testing"
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
	"github.com/pluto-hub/plutohub/internal/testsupport"
	"github.com/pluto-hub/plutohub/internal/token"
	"go.uber.org/zap"
)

type harness struct {
	engine   *Engine
	accounts *account.MemoryStore
	ledger   *ledger.MemoryStore
	catalog  *catalog.MemoryStore
	sessions *session.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	accounts := account.NewMemoryStore()
	ledgerStore := ledger.NewMemoryStore()
	cat := catalog.NewMemoryStore()
	sessions := session.NewMemoryStore()
	uow := &storetx.MemoryUnitOfWork{}
	tokens := token.NewCodec([]byte("test-secret"))
	auditSvc := audit.New(testsupport.NewNoopAuditDB())

	engine := New(uow, ledgerStore, accounts, sessions, cat, tokens, auditSvc, zap.NewNop())
	return &harness{engine: engine, accounts: accounts, ledger: ledgerStore, catalog: cat, sessions: sessions}
}

func (h *harness) seedUser(t *testing.T, extID string, balance int64) *domain.User {
	t.Helper()
	u := domain.User{
		UserID:         uuid.New().String(),
		ExternalAuthID: extID,
		DisplayName:    extID,
		Balance:        money.New(balance),
		LockedBalance:  money.Zero,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	h.accounts.Seed(u)
	return &u
}

func (h *harness) seedContract(t *testing.T, entryFee int64, feeBps, min, max int) *domain.Contract {
	t.Helper()
	g, err := h.catalog.CreateGame(context.Background(), domain.Game{Name: "poker", IsActive: true})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	c, err := h.catalog.CreateContract(context.Background(), domain.Contract{
		GameID:         g.GameID,
		Name:           "heads-up",
		EntryFee:       money.New(entryFee),
		PlatformFeeBps: int64(feeBps),
		MinPlayers:     min,
		MaxPlayers:     max,
		TTLSeconds:     300,
		IsActive:       true,
	})
	if err != nil {
		t.Fatalf("create contract: %v", err)
	}
	return c
}

func totalFunds(t *testing.T, h *harness, userIDs ...string) money.Amount {
	t.Helper()
	sum := money.Zero
	for _, id := range userIDs {
		u, err := h.accounts.FindByID(context.Background(), id)
		if err != nil {
			t.Fatalf("find by id: %v", err)
		}
		sum = sum.Add(u.Balance)
	}
	return sum
}

func TestExecuteLocksEntryFeeFromEveryPlayer(t *testing.T) {
	h := newHarness(t)
	c := h.seedContract(t, 1000, 500, 2, 2)
	a := h.seedUser(t, "ext-a", 5000)
	b := h.seedUser(t, "ext-b", 5000)

	ctx := context.Background()
	result, err := h.engine.Execute(ctx, c.ContractID, []string{"ext-a", "ext-b"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.TotalPot.String() != "2000" {
		t.Errorf("expected total pot 2000, got %s", result.TotalPot.String())
	}

	ua, _ := h.accounts.FindByID(ctx, a.UserID)
	ub, _ := h.accounts.FindByID(ctx, b.UserID)
	if ua.LockedBalance.String() != "1000" || ub.LockedBalance.String() != "1000" {
		t.Errorf("expected both players to have 1000 locked, got %s / %s", ua.LockedBalance.String(), ub.LockedBalance.String())
	}
	if ua.AvailableBalance().String() != "4000" {
		t.Errorf("expected available balance 4000, got %s", ua.AvailableBalance().String())
	}
}

func TestExecuteRejectsInsufficientFunds(t *testing.T) {
	h := newHarness(t)
	c := h.seedContract(t, 1000, 0, 2, 2)
	h.seedUser(t, "ext-a", 500)
	h.seedUser(t, "ext-b", 5000)

	_, err := h.engine.Execute(context.Background(), c.ContractID, []string{"ext-a", "ext-b"})
	appErr, ok := apperr.As(err)
	if !ok || appErr.Code != apperr.CodeInsufficientFunds {
		t.Fatalf("expected InsufficientFunds, got %v", err)
	}
}

func TestExecuteRejectsPlayerCountOutOfRange(t *testing.T) {
	h := newHarness(t)
	c := h.seedContract(t, 1000, 0, 2, 2)
	h.seedUser(t, "ext-a", 5000)

	_, err := h.engine.Execute(context.Background(), c.ContractID, []string{"ext-a"})
	if err == nil {
		t.Fatal("expected an error for a single player against a 2-player contract")
	}
}

func TestExecuteRejectsDuplicatePlayers(t *testing.T) {
	h := newHarness(t)
	c := h.seedContract(t, 1000, 0, 2, 2)
	h.seedUser(t, "ext-a", 5000)

	_, err := h.engine.Execute(context.Background(), c.ContractID, []string{"ext-a", "ext-a"})
	if err == nil {
		t.Fatal("expected an error for duplicate playerIds")
	}
}

func TestExecuteRejectsInactiveContract(t *testing.T) {
	h := newHarness(t)
	c := h.seedContract(t, 1000, 0, 2, 2)
	c.IsActive = false
	h.catalog.CreateContract(context.Background(), *c) // CreateContract re-inserts by id if set

	h.seedUser(t, "ext-a", 5000)
	h.seedUser(t, "ext-b", 5000)
	_, err := h.engine.Execute(context.Background(), c.ContractID, []string{"ext-a", "ext-b"})
	appErr, ok := apperr.As(err)
	if !ok || appErr.Code != apperr.CodeGameNotActive {
		t.Fatalf("expected GameNotActive, got %v", err)
	}
}

func TestSettleConservesFundsAndSplitsEvenly(t *testing.T) {
	h := newHarness(t)
	c := h.seedContract(t, 1000, 500, 2, 2) // 5% platform fee
	a := h.seedUser(t, "ext-a", 5000)
	b := h.seedUser(t, "ext-b", 5000)

	ctx := context.Background()
	before := totalFunds(t, h, a.UserID, b.UserID)

	execResult, err := h.engine.Execute(ctx, c.ContractID, []string{"ext-a", "ext-b"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	settleResult, err := h.engine.Settle(ctx, execResult.SessionToken, []SettleInput{
		{PlayerID: a.UserID, IsWinner: true},
		{PlayerID: b.UserID, IsWinner: false},
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	// 2000 pot, 5% fee = 100, prize pool 1900, single winner gets it all.
	if settleResult.PlatformFeeCollected.String() != "100" {
		t.Errorf("expected platform fee 100, got %s", settleResult.PlatformFeeCollected.String())
	}
	if len(settleResult.Winners) != 1 || settleResult.Winners[0].WinAmount.String() != "1900" {
		t.Fatalf("expected a single winner taking 1900, got %+v", settleResult.Winners)
	}

	after := totalFunds(t, h, a.UserID, b.UserID)
	afterPlusFee := after.Add(settleResult.PlatformFeeCollected)
	if !before.Equal(afterPlusFee) {
		t.Errorf("funds not conserved: before=%s after+fee=%s", before.String(), afterPlusFee.String())
	}

	ua, _ := h.accounts.FindByID(ctx, a.UserID)
	ub, _ := h.accounts.FindByID(ctx, b.UserID)
	if !ua.LockedBalance.IsZero() || !ub.LockedBalance.IsZero() {
		t.Errorf("expected locked balances to clear after settle, got %s / %s", ua.LockedBalance.String(), ub.LockedBalance.String())
	}
}

func TestSettleRejectsWhenNotAllWinnersHaveExplicitAmounts(t *testing.T) {
	h := newHarness(t)
	c := h.seedContract(t, 1000, 0, 2, 2)
	a := h.seedUser(t, "ext-a", 5000)
	b := h.seedUser(t, "ext-b", 5000)

	ctx := context.Background()
	execResult, err := h.engine.Execute(ctx, c.ContractID, []string{"ext-a", "ext-b"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	explicit := money.New(1500)
	_, err = h.engine.Settle(ctx, execResult.SessionToken, []SettleInput{
		{PlayerID: a.UserID, IsWinner: true, WinAmount: &explicit},
		{PlayerID: b.UserID, IsWinner: true},
	})
	if err == nil {
		t.Fatal("expected a validation error when one winner has an explicit amount and the other doesn't")
	}
}

func TestSettleRejectsAlreadySettledSession(t *testing.T) {
	h := newHarness(t)
	c := h.seedContract(t, 1000, 0, 2, 2)
	a := h.seedUser(t, "ext-a", 5000)
	b := h.seedUser(t, "ext-b", 5000)

	ctx := context.Background()
	execResult, err := h.engine.Execute(ctx, c.ContractID, []string{"ext-a", "ext-b"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	inputs := []SettleInput{
		{PlayerID: a.UserID, IsWinner: true},
		{PlayerID: b.UserID, IsWinner: false},
	}
	if _, err := h.engine.Settle(ctx, execResult.SessionToken, inputs); err != nil {
		t.Fatalf("first settle: %v", err)
	}

	_, err = h.engine.Settle(ctx, execResult.SessionToken, inputs)
	appErr, ok := apperr.As(err)
	if !ok || appErr.Code != apperr.CodeAlreadySettled {
		t.Fatalf("expected AlreadySettled on second settle, got %v", err)
	}
}

func TestCancelRefundsLockedFundsInFull(t *testing.T) {
	h := newHarness(t)
	c := h.seedContract(t, 1000, 500, 2, 2)
	a := h.seedUser(t, "ext-a", 5000)
	b := h.seedUser(t, "ext-b", 5000)

	ctx := context.Background()
	before := totalFunds(t, h, a.UserID, b.UserID)

	execResult, err := h.engine.Execute(ctx, c.ContractID, []string{"ext-a", "ext-b"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	cancelResult, err := h.engine.Cancel(ctx, execResult.SessionToken, "player requested cancel")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(cancelResult.RefundedPlayers) != 2 {
		t.Fatalf("expected 2 refunded players, got %d", len(cancelResult.RefundedPlayers))
	}

	after := totalFunds(t, h, a.UserID, b.UserID)
	if !before.Equal(after) {
		t.Errorf("expected funds unchanged after cancel: before=%s after=%s", before.String(), after.String())
	}

	ua, _ := h.accounts.FindByID(ctx, a.UserID)
	if !ua.LockedBalance.IsZero() {
		t.Errorf("expected locked balance cleared after cancel, got %s", ua.LockedBalance.String())
	}
}

func TestExpireUnlocksAndIsIdempotentOnAlreadyTerminalSessions(t *testing.T) {
	h := newHarness(t)
	c := h.seedContract(t, 1000, 0, 2, 2)
	a := h.seedUser(t, "ext-a", 5000)
	b := h.seedUser(t, "ext-b", 5000)

	ctx := context.Background()
	execResult, err := h.engine.Execute(ctx, c.ContractID, []string{"ext-a", "ext-b"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if err := h.engine.Expire(ctx, execResult.SessionID); err != nil {
		t.Fatalf("expire: %v", err)
	}
	ua, _ := h.accounts.FindByID(ctx, a.UserID)
	if !ua.LockedBalance.IsZero() {
		t.Errorf("expected locked balance cleared after expire, got %s", ua.LockedBalance.String())
	}

	// A second Expire on an already-terminal session must be a silent no-op.
	if err := h.engine.Expire(ctx, execResult.SessionID); err != nil {
		t.Fatalf("second expire should be a no-op, got %v", err)
	}
}
