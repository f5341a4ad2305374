package domain

import (
	"time"

	"github.com/pluto-hub/plutohub/internal/money"
)

// User is a hub-level account bound to one external identity subject.
// Created lazily on first successful authentication for a new
// ExternalAuthID; never deleted.
type User struct {
	UserID          string    `json:"userId" db:"id"`
	ExternalAuthID  string    `json:"externalAuthId" db:"external_auth_id"`
	DisplayName     string    `json:"displayName" db:"display_name"`
	Balance         money.Amount `json:"balance" db:"balance"`
	LockedBalance   money.Amount `json:"lockedBalance" db:"locked_balance"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// AvailableBalance is derived, never stored independently.
func (u User) AvailableBalance() money.Amount {
	a, err := u.Balance.Sub(u.LockedBalance)
	if err != nil {
		return money.Zero
	}
	return a
}

// LedgerEntryType enumerates the signed effects a ledger row may record.
type LedgerEntryType string

const (
	LedgerLock     LedgerEntryType = "LOCK"
	LedgerUnlock   LedgerEntryType = "UNLOCK"
	LedgerWin      LedgerEntryType = "WIN"
	LedgerLose     LedgerEntryType = "LOSE"
	LedgerFee      LedgerEntryType = "FEE"
	LedgerDeposit  LedgerEntryType = "DEPOSIT"
	LedgerWithdraw LedgerEntryType = "WITHDRAW"
)

// LedgerEntry is an immutable, append-only record of one signed balance
// effect for one user.
type LedgerEntry struct {
	EntryID      string          `json:"entryId" db:"id"`
	UserID       string          `json:"userId" db:"user_id"`
	Type         LedgerEntryType `json:"type" db:"type"`
	Amount       money.Amount    `json:"amount" db:"amount"`
	BalanceAfter money.Amount    `json:"balanceAfter" db:"balance_after"`
	SessionID    *string         `json:"sessionId,omitempty" db:"session_id"`
	Description  *string         `json:"description,omitempty" db:"description"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
}

// Game is an immutable-after-creation registration of a game backend
// permitted to call the contract-execution surface.
type Game struct {
	GameID             string  `json:"gameId" db:"id"`
	Name               string  `json:"name" db:"name"`
	ClientSecret string  `json:"-" db:"client_secret"`
	CallbackURL        *string `json:"callbackUrl,omitempty" db:"callback_url"`
	IsActive           bool    `json:"isActive" db:"is_active"`
}

// Contract is an immutable-after-creation economic rule template governing
// a class of matches for one game.
type Contract struct {
	ContractID     string `json:"contractId" db:"id"`
	GameID         string `json:"gameId" db:"game_id"`
	Name           string `json:"name" db:"name"`
	EntryFee       money.Amount `json:"entryFee" db:"entry_fee"`
	PlatformFeeBps int64  `json:"platformFeeBps" db:"platform_fee_bps"`
	MinPlayers     int    `json:"minPlayers" db:"min_players"`
	MaxPlayers     int    `json:"maxPlayers" db:"max_players"`
	TTLSeconds     int64  `json:"ttlSeconds" db:"ttl_seconds"`
	IsActive       bool   `json:"isActive" db:"is_active"`
}

// SessionStatus is the contract-session state machine's status.
type SessionStatus string

const (
	SessionPending   SessionStatus = "PENDING"
	SessionActive    SessionStatus = "ACTIVE"
	SessionSettled   SessionStatus = "SETTLED"
	SessionCancelled SessionStatus = "CANCELLED"
	SessionExpired   SessionStatus = "EXPIRED"
)

// IsTerminal reports whether the status admits no further mutation.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionSettled, SessionCancelled, SessionExpired:
		return true
	}
	return false
}

// SessionPlayer is one participant's outcome row within a ContractSession.
type SessionPlayer struct {
	UserID       string       `json:"userId" db:"user_id"`
	AmountLocked money.Amount `json:"amountLocked" db:"amount_locked"`
	IsWinner     bool         `json:"isWinner" db:"is_winner"`
	WinAmount    money.Amount `json:"winAmount" db:"win_amount"`
}

// ContractSession is a single match instance spawned from a Contract via
// Execute. Named to avoid colliding with the sample game's GameSession.
type ContractSession struct {
	SessionID  string          `json:"sessionId" db:"id"`
	ContractID string          `json:"contractId" db:"contract_id"`
	Status     SessionStatus   `json:"status" db:"status"`
	TotalPot   money.Amount    `json:"totalPot" db:"total_pot"`
	ExpiresAt  time.Time       `json:"expiresAt" db:"expires_at"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
	SettledAt  *time.Time      `json:"settledAt,omitempty" db:"settled_at"`
	Players    []SessionPlayer `json:"players"`
}

// PlayerIDs returns the user ids participating in the session, in the
// order recorded at Execute time.
func (s ContractSession) PlayerIDs() []string {
	ids := make([]string, len(s.Players))
	for i, p := range s.Players {
		ids[i] = p.UserID
	}
	return ids
}

// LobbyStatus is the lobby state machine's status.
type LobbyStatus string

const (
	LobbyWaiting  LobbyStatus = "WAITING"
	LobbyStarting LobbyStatus = "STARTING"
	LobbyInGame   LobbyStatus = "IN_GAME"
	LobbyClosed   LobbyStatus = "CLOSED"
)

// IsTerminal reports whether the lobby admits no further membership changes.
func (s LobbyStatus) IsTerminal() bool { return s == LobbyClosed }

// LobbyPlayer is one member of a Lobby.
type LobbyPlayer struct {
	UserID   string    `json:"userId" db:"user_id"`
	JoinedAt time.Time `json:"joinedAt" db:"joined_at"`
}

// Lobby is a pre-match waiting room for a Contract. At most one
// non-terminal lobby contains any given user at a time.
type Lobby struct {
	LobbyID    string        `json:"lobbyId" db:"id"`
	ContractID string        `json:"contractId" db:"contract_id"`
	Status     LobbyStatus   `json:"status" db:"status"`
	CreatedAt  time.Time     `json:"createdAt" db:"created_at"`
	Players    []LobbyPlayer `json:"players"`
}
