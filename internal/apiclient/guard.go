package apiclient

import (
	"context"
	"sync"
	"time"
)

// DefaultOfflineWindow is how long repeated offline notices are suppressed.
const DefaultOfflineWindow = time.Second

// Guard decides whether an offline notice may fire now. Allow must be safe
// for concurrent use and return true at most once per window.
type Guard interface {
	Allow(ctx context.Context) bool
}

// WindowGuard is an in-process Guard.
type WindowGuard struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	until  time.Time
}

// NewWindowGuard returns a guard that opens at most once per window.
// A nil now uses time.Now.
func NewWindowGuard(window time.Duration, now func() time.Time) *WindowGuard {
	if window <= 0 {
		window = DefaultOfflineWindow
	}
	if now == nil {
		now = time.Now
	}
	return &WindowGuard{window: window, now: now}
}

// Allow reports whether the window is open and, if so, closes it.
func (g *WindowGuard) Allow(context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := g.now()
	if t.Before(g.until) {
		return false
	}
	g.until = t.Add(g.window)
	return true
}
