package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/themaden/copperx-telegram-bot/internal/session"
)

func newTestGuard(opts Options) (*Guard, *time.Time) {
	g := New(opts, NewMemoryStorage())
	now := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time { return now }
	return g, &now
}

func TestGlobalWindowLimit(t *testing.T) {
	g, _ := newTestGuard(Options{GlobalWindow: time.Minute, GlobalLimit: 3})

	for i := 0; i < 3; i++ {
		ok, wait := g.Allow(1)
		require.True(t, ok, "event %d must pass", i+1)
		require.Zero(t, wait)
	}

	ok, wait := g.Allow(1)
	require.False(t, ok)
	require.Equal(t, 60, wait)
}

func TestGlobalWindowResets(t *testing.T) {
	g, now := newTestGuard(Options{GlobalWindow: time.Minute, GlobalLimit: 1})

	ok, _ := g.Allow(1)
	require.True(t, ok)
	ok, _ = g.Allow(1)
	require.False(t, ok)

	*now = now.Add(time.Minute)
	ok, _ = g.Allow(1)
	require.True(t, ok, "a fresh window opens after expiry")
}

func TestGlobalWindowNeverSlides(t *testing.T) {
	g, now := newTestGuard(Options{GlobalWindow: time.Minute, GlobalLimit: 2})

	g.Allow(1)
	*now = now.Add(30 * time.Second)
	g.Allow(1)

	// Mid-window traffic must not extend the window.
	ok, wait := g.Allow(1)
	require.False(t, ok)
	require.Equal(t, 30, wait)

	*now = now.Add(30 * time.Second)
	ok, _ = g.Allow(1)
	require.True(t, ok)
}

func TestWaitIsCeiled(t *testing.T) {
	g, now := newTestGuard(Options{GlobalWindow: time.Minute, GlobalLimit: 1})

	g.Allow(1)
	*now = now.Add(59*time.Second + 100*time.Millisecond)

	ok, wait := g.Allow(1)
	require.False(t, ok)
	require.Equal(t, 1, wait, "900ms remaining reports one full second")
}

func TestUsersAreIndependent(t *testing.T) {
	g, _ := newTestGuard(Options{GlobalWindow: time.Minute, GlobalLimit: 1})

	ok, _ := g.Allow(1)
	require.True(t, ok)
	ok, _ = g.Allow(2)
	require.True(t, ok)
	ok, _ = g.Allow(1)
	require.False(t, ok)
}

func TestAdminsAreExempt(t *testing.T) {
	g, _ := newTestGuard(Options{
		GlobalWindow:  time.Minute,
		GlobalLimit:   1,
		CommandWindow: time.Minute,
		CommandLimit:  1,
		AdminIDs:      []int64{99},
	})
	sess := session.NewSession(99)

	for i := 0; i < 10; i++ {
		ok, _ := g.Allow(99)
		require.True(t, ok)
		ok, _ = g.AllowCommand(sess, 99, "send")
		require.True(t, ok)
	}
}

func TestCommandWindowsAreIndependentPerCommand(t *testing.T) {
	g, _ := newTestGuard(Options{CommandWindow: 30 * time.Second, CommandLimit: 2})
	sess := session.NewSession(1)

	for i := 0; i < 2; i++ {
		ok, _ := g.AllowCommand(sess, 1, "send")
		require.True(t, ok)
	}
	ok, wait := g.AllowCommand(sess, 1, "send")
	require.False(t, ok)
	require.Equal(t, 30, wait)

	// A different command has its own counter.
	ok, _ = g.AllowCommand(sess, 1, "balance")
	require.True(t, ok)
}

func TestCommandWindowResets(t *testing.T) {
	g, now := newTestGuard(Options{CommandWindow: 30 * time.Second, CommandLimit: 1})
	sess := session.NewSession(1)

	ok, _ := g.AllowCommand(sess, 1, "send")
	require.True(t, ok)
	ok, _ = g.AllowCommand(sess, 1, "send")
	require.False(t, ok)

	*now = now.Add(30 * time.Second)
	ok, _ = g.AllowCommand(sess, 1, "send")
	require.True(t, ok)
}

func TestSweepDropsOnlyExpiredWindows(t *testing.T) {
	storage := NewMemoryStorage()
	now := time.Unix(1_700_000_000, 0)

	storage.Bump(1, now, time.Minute, 5)
	storage.Bump(2, now.Add(30*time.Second), time.Minute, 5)

	removed := storage.Sweep(now.Add(70 * time.Second))
	require.Equal(t, 1, removed)

	// User 2's live window still counts its earlier event.
	allowed, _ := storage.Bump(2, now.Add(80*time.Second), time.Minute, 2)
	require.True(t, allowed)
	allowed, _ = storage.Bump(2, now.Add(85*time.Second), time.Minute, 2)
	require.False(t, allowed)
}
