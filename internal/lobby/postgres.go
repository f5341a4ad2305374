package lobby

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pluto-hub/plutohub/internal/apperr"
	"github.com/pluto-hub/plutohub/internal/domain"
)

// PostgresStore persists lobbies to the lobbies/lobby_players tables. It
// exists for multi-instance deployments; a single-process deployment is
// well served by MemoryStore alone, per the design notes' guidance that
// the registry is a single mutex-protected component, not a singleton.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindOrCreateWaiting(ctx context.Context, contractID string, maxPlayers int) (*domain.Lobby, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("lobby: begin: %w", err)
	}
	defer tx.Rollback()

	var lobbyID string
	err = tx.QueryRowContext(ctx, `
		SELECT l.id FROM lobbies l
		WHERE l.contract_id = $1 AND l.status = 'WAITING'
		AND (SELECT count(*) FROM lobby_players WHERE lobby_id = l.id) < $2
		LIMIT 1 FOR UPDATE
	`, contractID, maxPlayers).Scan(&lobbyID)

	if errors.Is(err, sql.ErrNoRows) {
		lobbyID = uuid.New().String()
		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO lobbies (id, contract_id, status, created_at) VALUES ($1, $2, 'WAITING', $3)
		`, lobbyID, contractID, now)
		if err != nil {
			return nil, fmt.Errorf("lobby: create: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("lobby: find waiting: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("lobby: commit: %w", err)
	}
	return s.FindByID(ctx, lobbyID)
}

func (s *PostgresStore) FindUserLobby(ctx context.Context, userID string) (*domain.Lobby, error) {
	var lobbyID string
	err := s.db.QueryRowContext(ctx, `
		SELECT lp.lobby_id FROM lobby_players lp
		JOIN lobbies l ON l.id = lp.lobby_id
		WHERE lp.user_id = $1 AND l.status IN ('WAITING', 'STARTING', 'IN_GAME')
	`, userID).Scan(&lobbyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("lobby", "for user "+userID)
	}
	if err != nil {
		return nil, fmt.Errorf("lobby: find user lobby: %w", err)
	}
	return s.FindByID(ctx, lobbyID)
}

func (s *PostgresStore) FindByID(ctx context.Context, lobbyID string) (*domain.Lobby, error) {
	var l domain.Lobby
	err := s.db.QueryRowContext(ctx, `SELECT id, contract_id, status, created_at FROM lobbies WHERE id = $1`, lobbyID).
		Scan(&l.LobbyID, &l.ContractID, &l.Status, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("lobby", lobbyID)
	}
	if err != nil {
		return nil, fmt.Errorf("lobby: find by id: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT user_id, joined_at FROM lobby_players WHERE lobby_id = $1 ORDER BY joined_at ASC`, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("lobby: load players: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.LobbyPlayer
		if err := rows.Scan(&p.UserID, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("lobby: scan player: %w", err)
		}
		l.Players = append(l.Players, p)
	}
	return &l, nil
}

func (s *PostgresStore) ListByContract(ctx context.Context, contractID string) ([]domain.Lobby, error) {
	query := `SELECT id, contract_id, status, created_at FROM lobbies`
	var args []interface{}
	if contractID != "" {
		query += ` WHERE contract_id = $1`
		args = append(args, contractID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lobby: list: %w", err)
	}
	defer rows.Close()

	var ids []string
	var out []domain.Lobby
	for rows.Next() {
		var l domain.Lobby
		if err := rows.Scan(&l.LobbyID, &l.ContractID, &l.Status, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("lobby: scan: %w", err)
		}
		out = append(out, l)
		ids = append(ids, l.LobbyID)
	}
	for i, id := range ids {
		full, err := s.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out[i] = *full
	}
	return out, nil
}

func (s *PostgresStore) AddPlayer(ctx context.Context, lobbyID, userID string, maxPlayers int) (*domain.Lobby, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("lobby: begin: %w", err)
	}
	defer tx.Rollback()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM lobbies WHERE id = $1 FOR UPDATE`, lobbyID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("lobby", lobbyID)
	}
	if err != nil {
		return nil, fmt.Errorf("lobby: lock lobby: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM lobby_players WHERE lobby_id = $1`, lobbyID).Scan(&count); err != nil {
		return nil, fmt.Errorf("lobby: count players: %w", err)
	}
	if count >= maxPlayers {
		return nil, apperr.LobbyFull(lobbyID)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO lobby_players (lobby_id, user_id, joined_at) VALUES ($1, $2, $3)`,
		lobbyID, userID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("lobby: add player: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("lobby: commit: %w", err)
	}
	return s.FindByID(ctx, lobbyID)
}

func (s *PostgresStore) RemovePlayer(ctx context.Context, lobbyID, userID string) (*domain.Lobby, error) {
	_, err := s.db.ExecContext(ctx, `DELETE FROM lobby_players WHERE lobby_id = $1 AND user_id = $2`, lobbyID, userID)
	if err != nil {
		return nil, fmt.Errorf("lobby: remove player: %w", err)
	}
	return s.FindByID(ctx, lobbyID)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, lobbyID string, status domain.LobbyStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE lobbies SET status = $1 WHERE id = $2`, status, lobbyID)
	if err != nil {
		return fmt.Errorf("lobby: update status: %w", err)
	}
	if status.IsTerminal() {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM lobby_players WHERE lobby_id = $1`, lobbyID); err != nil {
			return fmt.Errorf("lobby: clear players on close: %w", err)
		}
	}
	return nil
}
