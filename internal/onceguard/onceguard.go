// Package onceguard adapts the teacher's channel-based ctxsync.Mutex
// into a narrower primitive: a value that can be set exactly once, and
// is read-only ever after (spec.md §5's concurrency model for the
// plugin registry — installed during setup, then shared read-only
// across concurrent Parse calls).
package onceguard

import "context"

// Guard gates a single install-then-freeze transition using the same
// channel-as-lock technique as ctxsync.Mutex, instead of sync.Once,
// so that an install attempt can be made cancellable via context.
type Guard struct {
	unlock chan struct{}
	done   chan struct{}
}

// New returns a ready, unlocked Guard.
func New() *Guard {
	return &Guard{
		unlock: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Installed reports whether Install has already completed successfully.
func (g *Guard) Installed() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// Install runs fn exactly once across the Guard's lifetime. Concurrent
// callers block on the first caller's fn; if fn returns an error the
// Guard is not marked installed and a later caller may retry. Honors
// ctx cancellation while waiting for another caller's install to finish.
func (g *Guard) Install(ctx context.Context, fn func() error) error {
	if g.Installed() {
		return nil
	}
	select {
	case g.unlock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.unlock }()

	if g.Installed() {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	close(g.done)
	return nil
}
