package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pluto-hub/plutohub/internal/account"
	"github.com/pluto-hub/plutohub/internal/catalog"
	"github.com/pluto-hub/plutohub/internal/database"
	"github.com/pluto-hub/plutohub/internal/domain"
	"github.com/pluto-hub/plutohub/internal/money"
	"github.com/pluto-hub/plutohub/internal/storetx"
)

func setupTestSession(t *testing.T) (*PostgresStore, *sqlx.DB, string, func()) {
	t.Helper()

	db, err := database.New("postgres", "host=localhost dbname=rgs sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Logf("Migration note: %v", err)
	}
	if err := db.CleanData(); err != nil {
		t.Fatalf("Failed to clean data: %v", err)
	}

	sqlxDB := sqlx.NewDb(db.DB, "postgres")
	ctx := context.Background()

	cat := catalog.NewPostgresStore(sqlxDB)
	g, err := cat.CreateGame(ctx, domain.Game{Name: "session-test-game", ClientSecret: "s", IsActive: true})
	if err != nil {
		t.Fatalf("create fixture game: %v", err)
	}
	contract, err := cat.CreateContract(ctx, domain.Contract{
		GameID:         g.GameID,
		Name:           "session-test-contract",
		EntryFee:       money.New(100),
		PlatformFeeBps: 0,
		MinPlayers:     2,
		MaxPlayers:     2,
		TTLSeconds:     300,
		IsActive:       true,
	})
	if err != nil {
		t.Fatalf("create fixture contract: %v", err)
	}

	return NewPostgresStore(sqlxDB), sqlxDB, contract.ContractID, func() {
		db.CleanData()
		db.Close()
	}
}

func beginPgTx(t *testing.T, db *sqlx.DB) storetx.PgTx {
	t.Helper()
	tx, err := db.Beginx()
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	return storetx.PgTx{Tx: tx}
}

func seedFixtureSession(t *testing.T, db *sqlx.DB, contractID string, playerIDs ...string) domain.ContractSession {
	t.Helper()
	accounts := account.NewPostgresStore(db)
	ctx := context.Background()
	var players []domain.SessionPlayer
	for _, extID := range playerIDs {
		u, err := accounts.CreateIfAbsent(ctx, extID, extID)
		if err != nil {
			t.Fatalf("create fixture player %s: %v", extID, err)
		}
		players = append(players, domain.SessionPlayer{UserID: u.UserID, AmountLocked: money.New(100)})
	}

	sess := domain.ContractSession{
		SessionID:  uuid.New().String(),
		ContractID: contractID,
		Status:     domain.SessionActive,
		TotalPot:   money.New(100 * int64(len(playerIDs))),
		ExpiresAt:  time.Now().UTC().Add(5 * time.Minute),
		CreatedAt:  time.Now().UTC(),
		Players:    players,
	}
	return sess
}

func TestCreateThenFindByIDRoundTripsPlayers(t *testing.T) {
	store, db, contractID, cleanup := setupTestSession(t)
	defer cleanup()

	sess := seedFixtureSession(t, db, contractID, "sess-p1", "sess-p2")

	pgTx := beginPgTx(t, db)
	if err := store.Create(context.Background(), pgTx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := pgTx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	found, err := store.FindByID(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if found.Status != domain.SessionActive {
		t.Errorf("expected ACTIVE, got %s", found.Status)
	}
	if len(found.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(found.Players))
	}
	if found.TotalPot.String() != "200" {
		t.Errorf("expected total pot 200, got %s", found.TotalPot.String())
	}
}

func TestFindByIDForUpdateRequiresAPostgresTransaction(t *testing.T) {
	store, db, contractID, cleanup := setupTestSession(t)
	defer cleanup()

	sess := seedFixtureSession(t, db, contractID, "sess-p3", "sess-p4")
	pgTx := beginPgTx(t, db)
	if err := store.Create(context.Background(), pgTx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := pgTx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if _, err := store.FindByIDForUpdate(context.Background(), storetx.NoTx{}, sess.SessionID); err == nil {
		t.Fatal("expected an error when no Postgres transaction is supplied")
	}

	lockingTx := beginPgTx(t, db)
	defer lockingTx.Rollback()
	locked, err := store.FindByIDForUpdate(context.Background(), lockingTx, sess.SessionID)
	if err != nil {
		t.Fatalf("find by id for update: %v", err)
	}
	if locked.SessionID != sess.SessionID {
		t.Errorf("expected to lock the same session, got %s", locked.SessionID)
	}
}

func TestUpdateOutcomeSettlesWinnerAndLosers(t *testing.T) {
	store, db, contractID, cleanup := setupTestSession(t)
	defer cleanup()

	sess := seedFixtureSession(t, db, contractID, "sess-p5", "sess-p6")
	pgTx := beginPgTx(t, db)
	if err := store.Create(context.Background(), pgTx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := pgTx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	settledAt := time.Now().UTC()
	outcome := []domain.SessionPlayer{
		{UserID: sess.Players[0].UserID, IsWinner: true, WinAmount: money.New(200)},
		{UserID: sess.Players[1].UserID, IsWinner: false, WinAmount: money.Zero},
	}

	updateTx := beginPgTx(t, db)
	if err := store.UpdateOutcome(context.Background(), updateTx, sess.SessionID, domain.SessionSettled, outcome, &settledAt); err != nil {
		t.Fatalf("update outcome: %v", err)
	}
	if err := updateTx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	found, err := store.FindByID(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if found.Status != domain.SessionSettled {
		t.Errorf("expected SETTLED, got %s", found.Status)
	}
	if found.SettledAt == nil {
		t.Fatal("expected settled_at to be set")
	}

	var winners int
	for _, p := range found.Players {
		if p.IsWinner {
			winners++
			if p.WinAmount.String() != "200" {
				t.Errorf("expected winner to take the full pot, got %s", p.WinAmount.String())
			}
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestUpdateStatusTransitionsToCancelled(t *testing.T) {
	store, db, contractID, cleanup := setupTestSession(t)
	defer cleanup()

	sess := seedFixtureSession(t, db, contractID, "sess-p7", "sess-p8")
	pgTx := beginPgTx(t, db)
	if err := store.Create(context.Background(), pgTx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := pgTx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	cancelTx := beginPgTx(t, db)
	if err := store.UpdateStatus(context.Background(), cancelTx, sess.SessionID, domain.SessionCancelled); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := cancelTx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	found, err := store.FindByID(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if found.Status != domain.SessionCancelled {
		t.Errorf("expected CANCELLED, got %s", found.Status)
	}
}

func TestListExpiredOnlyReturnsPastDueOpenSessions(t *testing.T) {
	store, db, contractID, cleanup := setupTestSession(t)
	defer cleanup()

	expired := seedFixtureSession(t, db, contractID, "sess-p9", "sess-p10")
	expired.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	pgTx := beginPgTx(t, db)
	if err := store.Create(context.Background(), pgTx, expired); err != nil {
		t.Fatalf("create expired: %v", err)
	}
	if err := pgTx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	settled := seedFixtureSession(t, db, contractID, "sess-p11", "sess-p12")
	settled.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	settled.Status = domain.SessionSettled
	pgTx2 := beginPgTx(t, db)
	if err := store.Create(context.Background(), pgTx2, settled); err != nil {
		t.Fatalf("create settled: %v", err)
	}
	if err := pgTx2.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	stillOpen := seedFixtureSession(t, db, contractID, "sess-p13", "sess-p14")
	stillOpen.ExpiresAt = time.Now().UTC().Add(5 * time.Minute)
	pgTx3 := beginPgTx(t, db)
	if err := store.Create(context.Background(), pgTx3, stillOpen); err != nil {
		t.Fatalf("create still-open: %v", err)
	}
	if err := pgTx3.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	out, err := store.ListExpired(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(out) != 1 || out[0].SessionID != expired.SessionID {
		t.Fatalf("expected exactly the PENDING/ACTIVE expired session, got %+v", out)
	}
}
