package pacer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wyyywsd/FinderEye/internal/detection"
)

// DefaultQuietPeriod is how long a static request waits for a newer one
// before it runs.
const DefaultQuietPeriod = 300 * time.Millisecond

// Generation is a monotonically increasing token. A result computed under
// an older token is stale and must be dropped.
type Generation struct {
	v atomic.Uint64
}

// Next starts a new generation and returns its token.
func (g *Generation) Next() uint64 {
	return g.v.Add(1)
}

// Current returns the latest token.
func (g *Generation) Current() uint64 {
	return g.v.Load()
}

// IsCurrent reports whether token is still the latest.
func (g *Generation) IsCurrent(token uint64) bool {
	return g.v.Load() == token
}

// Debouncer lets only the last of a burst of requests run. Each Begin
// supersedes the previous request and cancels its context.
type Debouncer struct {
	quiet time.Duration
	gen   Generation

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewDebouncer creates a debouncer with the given quiet period. Zero runs
// requests immediately while still superseding older ones.
func NewDebouncer(quiet time.Duration) *Debouncer {
	if quiet < 0 {
		quiet = 0
	}
	return &Debouncer{quiet: quiet}
}

// Begin registers a new request. The returned context is cancelled when a
// newer request begins or Cancel is called; release must be called when the
// request is done.
func (d *Debouncer) Begin(parent context.Context) (ctx context.Context, token uint64, release func()) {
	ctx, cancel := context.WithCancel(parent)

	d.mu.Lock()
	token = d.gen.Next()
	if d.cancel != nil {
		d.cancel()
	}
	d.cancel = cancel
	d.mu.Unlock()

	return ctx, token, cancel
}

// Wait blocks for the quiet period. It returns a superseded error if a newer
// request began meanwhile, or ctx's error if the caller gave up.
func (d *Debouncer) Wait(ctx context.Context, token uint64) error {
	if d.quiet > 0 {
		timer := time.NewTimer(d.quiet)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			if !d.gen.IsCurrent(token) {
				return detection.NewSupersededError(token)
			}
			return ctx.Err()
		}
	}
	if !d.gen.IsCurrent(token) {
		return detection.NewSupersededError(token)
	}
	return nil
}

// IsCurrent reports whether token belongs to the latest request.
func (d *Debouncer) IsCurrent(token uint64) bool {
	return d.gen.IsCurrent(token)
}

// Cancel supersedes whatever request is pending, as when the user leaves the
// photo view.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	d.gen.Next()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()
}

// QuietPeriod returns the configured quiet period.
func (d *Debouncer) QuietPeriod() time.Duration {
	return d.quiet
}
