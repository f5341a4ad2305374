package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pluto-hub/plutohub/internal/apperr"
	"github.com/pluto-hub/plutohub/internal/domain"
	"github.com/pluto-hub/plutohub/internal/money"
	"github.com/pluto-hub/plutohub/internal/storetx"
)

// PostgresStore persists sessions to the sessions/session_players tables.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func mustPgTx(tx storetx.Tx) (storetx.PgTx, error) {
	pgTx, ok := tx.(storetx.PgTx)
	if !ok {
		return storetx.PgTx{}, fmt.Errorf("session: no Postgres transaction supplied")
	}
	return pgTx, nil
}

func (s *PostgresStore) Create(ctx context.Context, tx storetx.Tx, sess domain.ContractSession) error {
	pgTx, err := mustPgTx(tx)
	if err != nil {
		return err
	}
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO contract_sessions (id, contract_id, status, total_pot, expires_at, created_at, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sess.SessionID, sess.ContractID, sess.Status, sess.TotalPot.String(), sess.ExpiresAt, sess.CreatedAt, sess.SettledAt)
	if err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	for _, p := range sess.Players {
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO session_players (session_id, user_id, amount_locked, is_winner, win_amount)
			VALUES ($1, $2, $3, $4, $5)
		`, sess.SessionID, p.UserID, p.AmountLocked.String(), p.IsWinner, p.WinAmount.String())
		if err != nil {
			return fmt.Errorf("session: create player row: %w", err)
		}
	}
	return nil
}

type rowQuerier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func loadSession(ctx context.Context, q rowQuerier, sessionID, lockClause string) (*domain.ContractSession, error) {
	var sess domain.ContractSession
	var totalPot string
	err := q.QueryRowContext(ctx, `
		SELECT id, contract_id, status, total_pot, expires_at, created_at, settled_at
		FROM contract_sessions WHERE id = $1`+lockClause, sessionID,
	).Scan(&sess.SessionID, &sess.ContractID, &sess.Status, &totalPot, &sess.ExpiresAt, &sess.CreatedAt, &sess.SettledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("session", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}
	pot, err := money.Parse(totalPot)
	if err != nil {
		return nil, err
	}
	sess.TotalPot = pot

	rows, err := q.QueryContext(ctx, `
		SELECT user_id, amount_locked, is_winner, win_amount FROM session_players WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: load players: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.SessionPlayer
		var locked, win string
		if err := rows.Scan(&p.UserID, &locked, &p.IsWinner, &win); err != nil {
			return nil, fmt.Errorf("session: scan player: %w", err)
		}
		p.AmountLocked, err = money.Parse(locked)
		if err != nil {
			return nil, err
		}
		p.WinAmount, err = money.Parse(win)
		if err != nil {
			return nil, err
		}
		sess.Players = append(sess.Players, p)
	}
	return &sess, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, sessionID string) (*domain.ContractSession, error) {
	return loadSession(ctx, s.db, sessionID, "")
}

func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, tx storetx.Tx, sessionID string) (*domain.ContractSession, error) {
	pgTx, err := mustPgTx(tx)
	if err != nil {
		return nil, err
	}
	return loadSession(ctx, pgTx.Tx, sessionID, " FOR UPDATE")
}

func (s *PostgresStore) UpdateOutcome(ctx context.Context, tx storetx.Tx, sessionID string, status domain.SessionStatus, players []domain.SessionPlayer, settledAt *time.Time) error {
	pgTx, err := mustPgTx(tx)
	if err != nil {
		return err
	}
	_, err = pgTx.ExecContext(ctx, `UPDATE contract_sessions SET status = $1, settled_at = $2 WHERE id = $3`, status, settledAt, sessionID)
	if err != nil {
		return fmt.Errorf("session: update outcome: %w", err)
	}
	for _, p := range players {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE session_players SET is_winner = $1, win_amount = $2 WHERE session_id = $3 AND user_id = $4
		`, p.IsWinner, p.WinAmount.String(), sessionID, p.UserID)
		if err != nil {
			return fmt.Errorf("session: update player outcome: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, tx storetx.Tx, sessionID string, status domain.SessionStatus) error {
	pgTx, err := mustPgTx(tx)
	if err != nil {
		return err
	}
	_, err = pgTx.ExecContext(ctx, `UPDATE contract_sessions SET status = $1 WHERE id = $2`, status, sessionID)
	if err != nil {
		return fmt.Errorf("session: update status: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time) ([]domain.ContractSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM contract_sessions WHERE expires_at < $1 AND status IN ('PENDING', 'ACTIVE')
	`, now)
	if err != nil {
		return nil, fmt.Errorf("session: list expired: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("session: scan expired id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	var out []domain.ContractSession
	for _, id := range ids {
		sess, err := s.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, nil
}
