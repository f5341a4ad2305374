package account

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
	"github.com/pluto-hub/plutohub/internal/money"
	"github.com/pluto-hub/plutohub/internal/storetx"
)

// PostgresStore persists users to the users table.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func scanUser(row interface {
	Scan(dest ...interface{}) error
}) (*domain.User, error) {
	var u domain.User
	var balance, locked string
	if err := row.Scan(&u.UserID, &u.ExternalAuthID, &u.DisplayName, &balance, &locked, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	bal, err := money.Parse(balance)
	if err != nil {
		return nil, err
	}
	lock, err := money.Parse(locked)
	if err != nil {
		return nil, err
	}
	u.Balance = bal
	u.LockedBalance = lock
	return &u, nil
}

const userSelect = `SELECT id, external_auth_id, display_name, balance, locked_balance, created_at, updated_at FROM users`

func (s *PostgresStore) FindByExternalAuthID(ctx context.Context, externalAuthID string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, userSelect+` WHERE external_auth_id = $1`, externalAuthID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user", externalAuthID)
	}
	if err != nil {
		return nil, fmt.Errorf("account: find by external auth id: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, userSelect+` WHERE id = $1`, userID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("account: find by id: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) FindByIDs(ctx context.Context, userIDs []string) ([]domain.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(userSelect+` WHERE id IN (?)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("account: build find by ids query: %w", err)
	}
	query = s.db.Rebind(query)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("account: find by ids: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("account: scan: %w", err)
		}
		out = append(out, *u)
	}
	return out, nil
}

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, externalAuthID, displayName string) (*domain.User, error) {
	if existing, err := s.FindByExternalAuthID(ctx, externalAuthID); err == nil {
		return existing, nil
	}

	now := time.Now().UTC()
	u := domain.User{
		UserID:         uuid.New().String(),
		ExternalAuthID: externalAuthID,
		DisplayName:    displayName,
		Balance:        money.Zero,
		LockedBalance:  money.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, external_auth_id, display_name, balance, locked_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_auth_id) DO NOTHING
	`, u.UserID, u.ExternalAuthID, u.DisplayName, u.Balance.String(), u.LockedBalance.String(), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("account: create if absent: %w", err)
	}
	return s.FindByExternalAuthID(ctx, externalAuthID)
}

func (s *PostgresStore) CompareAndUpdate(ctx context.Context, userID string, expected, next BalanceSnapshot) (*domain.User, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET balance = $1, locked_balance = $2, updated_at = $3
		WHERE id = $4 AND balance = $5 AND locked_balance = $6
	`, next.Balance.String(), next.Locked.String(), time.Now().UTC(), userID, expected.Balance.String(), expected.Locked.String())
	if err != nil {
		return nil, fmt.Errorf("account: compare and update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("account: rows affected: %w", err)
	}
	if n == 0 {
		return nil, apperr.ConcurrencyConflict("balance row changed since it was read: " + userID)
	}
	return s.FindByID(ctx, userID)
}

func (s *PostgresStore) UpdateBalanceInTx(ctx context.Context, tx storetx.Tx, userID string, next BalanceSnapshot) error {
	pgTx, ok := tx.(storetx.PgTx)
	if !ok {
		return fmt.Errorf("account: update balance in tx: no Postgres transaction supplied")
	}
	_, err := pgTx.ExecContext(ctx, `
		UPDATE users SET balance = $1, locked_balance = $2, updated_at = $3 WHERE id = $4
	`, next.Balance.String(), next.Locked.String(), time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("account: update balance in tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) LockForUpdate(ctx context.Context, tx storetx.Tx, userID string) (*domain.User, error) {
	pgTx, ok := tx.(storetx.PgTx)
	if !ok {
		return nil, fmt.Errorf("account: lock for update: no Postgres transaction supplied")
	}
	row := pgTx.QueryRowContext(ctx, userSelect+` WHERE id = $1 FOR UPDATE`, userID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("account: lock for update: %w", err)
	}
	return u, nil
}
