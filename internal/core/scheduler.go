package core

// scheduler.go runs background maintenance for the web front-end.
//
// Currently it sweeps idle sessions so abandoned uploads do not keep their
// tables in memory. The sweeper is long-running and context-aware for
// graceful shutdown.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often idle sessions are removed.
const DefaultSweepInterval = 5 * time.Minute

// StartSessionSweeper removes expired sessions every interval until ctx is
// cancelled. It blocks; run it in its own goroutine.
func (st *SessionStore) StartSessionSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	slog.Info("session sweeper started", "interval", interval, "idle_timeout", st.idle)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				slog.Info("expired sessions removed", "count", n, "remaining", st.Len())
			}
		}
	}
}
