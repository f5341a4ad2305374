// Package sweeper implements the expiry sweep (C10): a background poller
// that finds sessions past their expiresAt and drives them through
// Engine.Expire so locked funds are returned even if no client ever
// calls Settle or Cancel.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pluto-hub/plutohub/internal/session"
)

// Expirer is the subset of the contract engine the sweeper depends on.
type Expirer interface {
	Expire(ctx context.Context, sessionID string) error
}

// Sweeper polls for expired sessions on a fixed interval and expires
// each one in turn. A single poll tick processes sessions sequentially;
// Expire's own transaction and idempotency guard make a slow or
// overlapping tick harmless.
type Sweeper struct {
	sessions session.Store
	engine   Expirer
	interval time.Duration
	log      *zap.Logger
}

// New constructs a Sweeper. interval is the recommended 15s poll cadence
// unless overridden by config.
func New(sessions session.Store, engine Expirer, interval time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{sessions: sessions, engine: engine, interval: interval, log: log}
}

// Run blocks, polling until ctx is cancelled. Intended to be launched in
// its own goroutine from main.
func (sw *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.tick(ctx)
		}
	}
}

func (sw *Sweeper) tick(ctx context.Context) {
	expired, err := sw.sessions.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		sw.log.Error("sweeper: list expired sessions failed", zap.Error(err))
		return
	}
	for _, sess := range expired {
		if err := sw.engine.Expire(ctx, sess.SessionID); err != nil {
			sw.log.Error("sweeper: expire session failed",
				zap.String("sessionId", sess.SessionID), zap.Error(err))
		}
	}
}
