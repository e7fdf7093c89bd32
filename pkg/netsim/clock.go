package netsim

import (
	"context"
	"time"
)

// Clock turns simulated durations into real suspensions. Simulated time is
// multiplied by the clock's scale before waiting.
type Clock interface {
	Now() time.Time
	Scale(d time.Duration) time.Duration
	Sleep(ctx context.Context, d time.Duration) error
	SleepUntil(ctx context.Context, t time.Time) error
}

type scaledClock struct {
	scale float64
}

// NewClock returns a clock that waits scale times the simulated duration. A
// scale of 1 waits in real time and 0 never waits.
func NewClock(scale float64) Clock {
	if scale < 0 {
		scale = 0
	}

	return &scaledClock{scale: scale}
}

func (c *scaledClock) Now() time.Time {
	return time.Now()
}

func (c *scaledClock) Scale(d time.Duration) time.Duration {
	return time.Duration(float64(d) * c.scale)
}

func (c *scaledClock) Sleep(ctx context.Context, d time.Duration) error {
	return wait(ctx, c.Scale(d))
}

func (c *scaledClock) SleepUntil(ctx context.Context, t time.Time) error {
	return wait(ctx, time.Until(t))
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
