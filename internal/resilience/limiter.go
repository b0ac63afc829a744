package resilience

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Limiter enforces a minimum interval between calls to one source. It is
// safe for concurrent use; concurrent callers queue behind each other.
type Limiter struct {
	name string
	rl   *rate.Limiter
}

// NewLimiter creates a limiter allowing one call per interval. A zero or
// negative interval disables limiting.
func NewLimiter(name string, interval time.Duration) *Limiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Limiter{name: name, rl: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next call is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.rl.Wait(ctx); err != nil {
		return eris.Wrapf(err, "resilience: %s rate limiter", l.name)
	}
	return nil
}

// Name returns the source the limiter guards.
func (l *Limiter) Name() string { return l.name }
