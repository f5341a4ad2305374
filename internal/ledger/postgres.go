package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pluto-hub/plutohub/internal/domain"
	"github.com/pluto-hub/plutohub/internal/money"
	"github.com/pluto-hub/plutohub/internal/storetx"
)

// execer is satisfied by both *sqlx.Tx and *sqlx.DB, letting AppendMany
// run inside a caller's transaction or fall back to the pool.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PostgresStore persists ledger entries to the ledger_entries table.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry domain.LedgerEntry) (string, error) {
	if entry.EntryID == "" {
		entry.EntryID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, user_id, type, amount, balance_after, session_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.EntryID, entry.UserID, entry.Type, entry.Amount.String(), entry.BalanceAfter.String(),
		entry.SessionID, entry.Description, entry.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("ledger: append: %w", err)
	}
	return entry.EntryID, nil
}

func (s *PostgresStore) AppendMany(ctx context.Context, tx storetx.Tx, entries []domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	var exec execer = s.db
	if pgTx, ok := tx.(storetx.PgTx); ok {
		exec = pgTx.Tx
	}
	for i := range entries {
		if entries[i].EntryID == "" {
			entries[i].EntryID = uuid.New().String()
		}
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = time.Now().UTC()
		}
		e := entries[i]
		_, err := exec.ExecContext(ctx, `
			INSERT INTO ledger_entries (id, user_id, type, amount, balance_after, session_id, description, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, e.EntryID, e.UserID, e.Type, e.Amount.String(), e.BalanceAfter.String(), e.SessionID, e.Description, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("ledger: append many: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, userID string, limit, offset int) ([]domain.LedgerEntry, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT count(*) FROM ledger_entries WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("ledger: count history: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, amount, balance_after, session_id, description, created_at
		FROM ledger_entries WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ledger: history: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *PostgresStore) BySession(ctx context.Context, sessionID string) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, amount, balance_after, session_id, description, created_at
		FROM ledger_entries WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ledger: by session: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
}

func scanEntries(rows rowScanner) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var amount, balanceAfter string
		if err := rows.Scan(&e.EntryID, &e.UserID, &e.Type, &amount, &balanceAfter,
			&e.SessionID, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		parsedAmount, err := parseAmount(amount)
		if err != nil {
			return nil, err
		}
		parsedAfter, err := parseAmount(balanceAfter)
		if err != nil {
			return nil, err
		}
		e.Amount = parsedAmount
		e.BalanceAfter = parsedAfter
		out = append(out, e)
	}
	return out, nil
}

func parseAmount(s string) (money.Amount, error) {
	return money.Parse(s)
}
