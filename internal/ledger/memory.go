package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pluto-hub/plutohub/internal/domain"
	"github.com/pluto-hub/plutohub/internal/storetx"
)

// MemoryStore is a plain-map, mutex-protected Store used for deterministic
// invariant and property testing without a live Postgres instance.
type MemoryStore struct {
	mu      sync.Mutex
	entries []domain.LedgerEntry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, entry domain.LedgerEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(entry), nil
}

func (s *MemoryStore) appendLocked(entry domain.LedgerEntry) string {
	if entry.EntryID == "" {
		entry.EntryID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, entry)
	return entry.EntryID
}

// AppendMany ignores tx (the in-memory store has no transactional
// boundary of its own) and appends every entry under a single lock.
func (s *MemoryStore) AppendMany(ctx context.Context, tx storetx.Tx, entries []domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.appendLocked(e)
	}
	return nil
}

func (s *MemoryStore) History(ctx context.Context, userID string, limit, offset int) ([]domain.LedgerEntry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []domain.LedgerEntry
	for _, e := range s.entries {
		if e.UserID == userID {
			all = append(all, e)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].EntryID > all[j].EntryID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return []domain.LedgerEntry{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return append([]domain.LedgerEntry(nil), all[offset:end]...), total, nil
}

func (s *MemoryStore) BySession(ctx context.Context, sessionID string) ([]domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.LedgerEntry
	for _, e := range s.entries {
		if e.SessionID != nil && *e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].EntryID < out[j].EntryID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
