package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pluto-hub/plutohub/internal/apperr"
	"github.com/pluto-hub/plutohub/internal/domain"
	"github.com/pluto-hub/plutohub/internal/money"
)

// PostgresStore persists games and contracts to the games/contracts tables.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateGame(ctx context.Context, game domain.Game) (*domain.Game, error) {
	if game.GameID == "" {
		game.GameID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO games (id, name, client_secret, callback_url, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`, game.GameID, game.Name, game.ClientSecret, game.CallbackURL, game.IsActive)
	if err != nil {
		return nil, fmt.Errorf("catalog: create game: %w", err)
	}
	return &game, nil
}

func (s *PostgresStore) FindGameByID(ctx context.Context, gameID string) (*domain.Game, error) {
	var g domain.Game
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, client_secret, callback_url, is_active FROM games WHERE id = $1
	`, gameID).Scan(&g.GameID, &g.Name, &g.ClientSecret, &g.CallbackURL, &g.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("game", gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: find game: %w", err)
	}
	return &g, nil
}

func (s *PostgresStore) FindGameByName(ctx context.Context, name string) (*domain.Game, error) {
	var g domain.Game
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, client_secret, callback_url, is_active FROM games WHERE name = $1
	`, name).Scan(&g.GameID, &g.Name, &g.ClientSecret, &g.CallbackURL, &g.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("game", name)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: find game by name: %w", err)
	}
	return &g, nil
}

func (s *PostgresStore) CreateContract(ctx context.Context, c domain.Contract) (*domain.Contract, error) {
	if c.ContractID == "" {
		c.ContractID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contracts (id, game_id, name, entry_fee, platform_fee_bps, min_players, max_players, ttl_seconds, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ContractID, c.GameID, c.Name, c.EntryFee.String(), c.PlatformFeeBps, c.MinPlayers, c.MaxPlayers, c.TTLSeconds, c.IsActive)
	if err != nil {
		return nil, fmt.Errorf("catalog: create contract: %w", err)
	}
	return &c, nil
}

func scanContract(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Contract, error) {
	var c domain.Contract
	var entryFee string
	if err := row.Scan(&c.ContractID, &c.GameID, &c.Name, &entryFee, &c.PlatformFeeBps,
		&c.MinPlayers, &c.MaxPlayers, &c.TTLSeconds, &c.IsActive); err != nil {
		return nil, err
	}
	fee, err := money.Parse(entryFee)
	if err != nil {
		return nil, err
	}
	c.EntryFee = fee
	return &c, nil
}

const contractSelect = `SELECT id, game_id, name, entry_fee, platform_fee_bps, min_players, max_players, ttl_seconds, is_active FROM contracts`

func (s *PostgresStore) FindContractByID(ctx context.Context, contractID string) (*domain.Contract, error) {
	row := s.db.QueryRowContext(ctx, contractSelect+` WHERE id = $1`, contractID)
	c, err := scanContract(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("contract", contractID)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: find contract: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListContracts(ctx context.Context, gameID string) ([]domain.Contract, error) {
	query := contractSelect
	var args []interface{}
	if gameID != "" {
		query += ` WHERE game_id = $1`
		args = append(args, gameID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list contracts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan contract: %w", err)
		}
		out = append(out, *c)
	}
	return out, nil
}
