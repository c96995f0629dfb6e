// Package guard enforces fixed-window rate limits on inbound events. Windows
// never slide: the first event opens a window, every event inside it counts
// against the limit, and the counter vanishes when the window expires.
package guard

import (
	"context"
	"time"

	"log/slog"

	"github.com/themaden/copperx-telegram-bot/core/logger"
	"github.com/themaden/copperx-telegram-bot/internal/session"
)

// Options configure both limiter tiers.
type Options struct {
	GlobalWindow time.Duration
	GlobalLimit  int

	CommandWindow time.Duration
	CommandLimit  int

	SweepInterval time.Duration

	// AdminIDs are exempt from both tiers.
	AdminIDs []int64
}

// Storage keeps the global counters. The memory implementation is the
// default; Bump must check and increment atomically.
type Storage interface {
	// Bump counts one event for the user and reports whether it fits the
	// window, together with the window's reset time.
	Bump(userID int64, now time.Time, window time.Duration, limit int) (allowed bool, resetAt time.Time)
	// Sweep drops expired windows and returns how many were removed.
	Sweep(now time.Time) int
}

// Guard applies the global and per-command limits. Per-command counters live
// inside the chat's session so they share its locking and persistence.
type Guard struct {
	opts    Options
	storage Storage
	admins  map[int64]struct{}
	now     func() time.Time
}

// New builds a guard over the given storage.
func New(opts Options, storage Storage) *Guard {
	admins := make(map[int64]struct{}, len(opts.AdminIDs))
	for _, id := range opts.AdminIDs {
		admins[id] = struct{}{}
	}
	return &Guard{
		opts:    opts,
		storage: storage,
		admins:  admins,
		now:     time.Now,
	}
}

// Allow counts one event against the user's global window. When rejected it
// returns the whole seconds to wait before the window resets.
func (g *Guard) Allow(userID int64) (bool, int) {
	if g.exempt(userID) || g.opts.GlobalLimit <= 0 {
		return true, 0
	}
	now := g.now()
	allowed, resetAt := g.storage.Bump(userID, now, g.opts.GlobalWindow, g.opts.GlobalLimit)
	if allowed {
		return true, 0
	}
	wait := waitSeconds(resetAt, now)
	logger.Warn(logger.Background(), "tg", "rate_limit.global",
		slog.Int64("user_id", userID),
		slog.Int("retry_after_s", wait),
	)
	return false, wait
}

// AllowCommand counts one invocation of a named command against the
// per-command window stored in the session. The caller must hold the
// session's run lock.
func (g *Guard) AllowCommand(sess *session.Session, userID int64, command string) (bool, int) {
	if g.exempt(userID) || g.opts.CommandLimit <= 0 {
		return true, 0
	}
	now := g.now()
	if sess.CommandWindows == nil {
		sess.CommandWindows = make(map[string]*session.CommandWindow)
	}

	win, ok := sess.CommandWindows[command]
	if !ok || now.UnixMilli() >= win.ResetAt {
		sess.CommandWindows[command] = &session.CommandWindow{
			ResetAt: now.Add(g.opts.CommandWindow).UnixMilli(),
			Count:   1,
		}
		return true, 0
	}

	if win.Count >= g.opts.CommandLimit {
		wait := waitSeconds(time.UnixMilli(win.ResetAt), now)
		logger.Warn(logger.Background(), "tg", "rate_limit.command",
			slog.Int64("user_id", userID),
			slog.String("command", command),
			slog.Int("retry_after_s", wait),
		)
		return false, wait
	}
	win.Count++
	return true, 0
}

// Sweep removes expired global windows once.
func (g *Guard) Sweep() {
	removed := g.storage.Sweep(g.now())
	if removed > 0 {
		logger.Debug(logger.Background(), "tg", "rate_limit.sweep",
			slog.Int("removed", removed),
		)
	}
}

// StartSweeper runs the periodic sweep until the context is done.
func (g *Guard) StartSweeper(ctx context.Context) {
	interval := g.opts.SweepInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.Sweep()
			}
		}
	}()
}

func (g *Guard) exempt(userID int64) bool {
	_, ok := g.admins[userID]
	return ok
}

// waitSeconds rounds the remaining window up to whole seconds so the user is
// never told to wait zero seconds for a live window.
func waitSeconds(resetAt, now time.Time) int {
	remaining := resetAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}
