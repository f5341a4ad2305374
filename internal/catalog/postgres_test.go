package catalog

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pluto-hub/plutohub/internal/apperr"
	"github.com/pluto-hub/plutohub/internal/database"
	"github.com/pluto-hub/plutohub/internal/domain"
	"github.com/pluto-hub/plutohub/internal/money"
)

func setupTestCatalog(t *testing.T) (*PostgresStore, func()) {
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
	return NewPostgresStore(sqlxDB), func() {
		db.CleanData()
		db.Close()
	}
}

func TestCreateAndFindGame(t *testing.T) {
	store, cleanup := setupTestCatalog(t)
	defer cleanup()

	ctx := context.Background()
	created, err := store.CreateGame(ctx, domain.Game{Name: "blackjack-backend", ClientSecret: "shh-its-a-secret", IsActive: true})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	byID, err := store.FindGameByID(ctx, created.GameID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if byID.ClientSecret != "shh-its-a-secret" {
		t.Errorf("expected the raw client secret to round-trip, got %q", byID.ClientSecret)
	}

	byName, err := store.FindGameByName(ctx, "blackjack-backend")
	if err != nil {
		t.Fatalf("find by name: %v", err)
	}
	if byName.GameID != created.GameID {
		t.Errorf("expected find by name to return the same game")
	}
}

func TestFindGameByIDNotFound(t *testing.T) {
	store, cleanup := setupTestCatalog(t)
	defer cleanup()

	_, err := store.FindGameByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	appErr, ok := apperr.As(err)
	if !ok || appErr.Code != apperr.CodeNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestListContractsFiltersByGame(t *testing.T) {
	store, cleanup := setupTestCatalog(t)
	defer cleanup()

	ctx := context.Background()
	gameA, err := store.CreateGame(ctx, domain.Game{Name: "game-a", ClientSecret: "a", IsActive: true})
	if err != nil {
		t.Fatalf("create game a: %v", err)
	}
	gameB, err := store.CreateGame(ctx, domain.Game{Name: "game-b", ClientSecret: "b", IsActive: true})
	if err != nil {
		t.Fatalf("create game b: %v", err)
	}

	if _, err := store.CreateContract(ctx, domain.Contract{GameID: gameA.GameID, Name: "a1", EntryFee: money.New(100), MinPlayers: 2, MaxPlayers: 2, TTLSeconds: 60, IsActive: true}); err != nil {
		t.Fatalf("create contract a1: %v", err)
	}
	if _, err := store.CreateContract(ctx, domain.Contract{GameID: gameB.GameID, Name: "b1", EntryFee: money.New(200), MinPlayers: 2, MaxPlayers: 4, TTLSeconds: 60, IsActive: true}); err != nil {
		t.Fatalf("create contract b1: %v", err)
	}

	onlyA, err := store.ListContracts(ctx, gameA.GameID)
	if err != nil {
		t.Fatalf("list contracts for game a: %v", err)
	}
	if len(onlyA) != 1 || onlyA[0].Name != "a1" {
		t.Fatalf("expected exactly contract a1 for game a, got %+v", onlyA)
	}

	all, err := store.ListContracts(ctx, "")
	if err != nil {
		t.Fatalf("list all contracts: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 contracts total, got %d", len(all))
	}
}
