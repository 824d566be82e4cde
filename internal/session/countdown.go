package session

import (
	"context"
	"time"
)

// Countdown drives the visible timer for a timed attempt. The remaining time
// is recomputed from the absolute deadline on every tick rather than counted
// down, so throttled or delayed ticks can never drift the display away from
// the true deadline by more than one tick.
type Countdown struct {
	deadline time.Time
	now      Clock
}

func NewCountdown(deadline time.Time, now Clock) *Countdown {
	if now == nil {
		now = time.Now
	}
	return &Countdown{deadline: deadline, now: now}
}

// Remaining is the time left at the given instant, clamped at zero.
func (c *Countdown) Remaining(at time.Time) time.Duration {
	return remaining(c.deadline, at)
}

func remaining(deadline, at time.Time) time.Duration {
	d := deadline.Sub(at)
	if d < 0 {
		return 0
	}
	return d
}

// Run ticks until the deadline passes, then calls expire exactly once and
// returns. Cancel the context to tear the ticker down without expiring; the
// hard cutoff fires regardless of which question is displayed or how many
// answers were captured.
func (c *Countdown) Run(ctx context.Context, tick time.Duration, expire func()) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if c.Remaining(c.now()) <= 0 {
				expire()
				return
			}
		}
	}
}
