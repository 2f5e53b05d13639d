package sim

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRealtimeLag is returned in strict real-time mode when the simulation
// falls behind the wall clock.
var ErrRealtimeLag = errors.New("simulation too slow for real time")

// WallClock abstracts wall-clock time so pacing can be tested.
type WallClock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the process wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep blocks for d or until ctx is done.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RealtimePacer maps simulated time onto the wall clock: simulated instant t
// is due at start + (t - simStart) * factor seconds. The mapping is anchored
// at the first resumption paced.
type RealtimePacer struct {
	factor   float64
	strict   bool
	clock    WallClock
	started  bool
	start    time.Time
	simStart Time
}

// NewRealtimePacer creates a pacer. Panics if factor is not positive.
func NewRealtimePacer(factor float64, strict bool, clock WallClock) *RealtimePacer {
	if factor <= 0 {
		panic(fmt.Sprintf("NewRealtimePacer: factor must be > 0, got %v", factor))
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &RealtimePacer{factor: factor, strict: strict, clock: clock}
}

// Pace sleeps until simulated instant at is due on the wall clock.
func (p *RealtimePacer) Pace(ctx context.Context, at Time) error {
	if !p.started {
		p.started = true
		p.start = p.clock.Now()
		p.simStart = at
		return nil
	}
	due := p.start.Add(time.Duration(float64(at-p.simStart) * p.factor * float64(time.Second)))
	lag := p.clock.Now().Sub(due)
	if lag >= 0 {
		if p.strict && lag.Seconds() > p.factor {
			return fmt.Errorf("%w: %.3fs behind at t=%v", ErrRealtimeLag, lag.Seconds(), at)
		}
		return nil
	}
	return p.clock.Sleep(ctx, -lag)
}
