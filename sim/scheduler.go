// sim/scheduler.go
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Time is simulated time in model time units.
type Time float64

// Forever is the horizon that lets Run drain the queue completely.
var Forever = Time(math.Inf(1))

// ErrStepLimit is returned by Run when the configured step budget is exhausted
// before the horizon is reached.
var ErrStepLimit = errors.New("simulation step limit reached")

// SafeDuration clamps a sampled duration to a usable delay: non-finite and
// negative values become zero.
func SafeDuration(d float64) Time {
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return 0
	}
	return Time(d)
}

// Pacer throttles the scheduler against some external clock before each
// resumption is executed. A nil Pacer runs as fast as possible.
type Pacer interface {
	Pace(ctx context.Context, at Time) error
}

// Scheduler is the cooperative single-threaded simulation clock. Every task
// in the simulation is a chain of continuations resumed by the scheduler;
// nothing runs concurrently with anything else on the timeline.
//
// Thread-safety: NOT thread-safe. All calls must come from the goroutine
// driving Run (or from continuations it executes).
type Scheduler struct {
	now   Time
	seq   uint64
	queue eventHeap
	pacer Pacer
	steps uint64
	err   error
}

// NewScheduler creates an as-fast-as-possible scheduler at time 0.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// NewRealtimeScheduler creates a scheduler paced against the wall clock.
// factor is wall-clock seconds per simulated time unit (<1 speeds up,
// >1 slows down). With strict set, falling behind the wall clock by more
// than factor seconds aborts the run with ErrRealtimeLag.
func NewRealtimeScheduler(factor float64, strict bool) *Scheduler {
	s := NewScheduler()
	s.SetPacer(NewRealtimePacer(factor, strict, SystemClock{}))
	return s
}

// SetPacer installs p; nil restores as-fast-as-possible mode.
func (s *Scheduler) SetPacer(p Pacer) {
	s.pacer = p
}

// Now returns the current simulated time.
func (s *Scheduler) Now() Time {
	return s.now
}

// Steps returns the number of resumptions executed so far.
func (s *Scheduler) Steps() uint64 {
	return s.steps
}

// Pending returns the number of queued resumptions.
func (s *Scheduler) Pending() int {
	return s.queue.Len()
}

// After schedules fn to resume once d time units have elapsed.
// Panics if d is negative or NaN.
func (s *Scheduler) After(d Time, fn func()) {
	if d < 0 || math.IsNaN(float64(d)) {
		panic(fmt.Sprintf("Scheduler.After: invalid delay %v", d))
	}
	if fn == nil {
		panic("Scheduler.After: fn must not be nil")
	}
	s.seq++
	s.queue.schedule(&resumption{at: s.now + d, seq: s.seq, fn: fn})
}

// Resume schedules fn at the current instant, behind everything already
// queued for this instant.
func (s *Scheduler) Resume(fn func()) {
	s.After(0, fn)
}

// Timeout returns a signal that fires d time units from now.
func (s *Scheduler) Timeout(d Time) *Signal[struct{}] {
	sig := NewSignal[struct{}](s)
	s.After(d, func() { sig.Fire(struct{}{}) })
	return sig
}

// Abort stops the run at the end of the current step. Only the first error
// is kept.
func (s *Scheduler) Abort(err error) {
	if err == nil || s.err != nil {
		return
	}
	logrus.Errorf("[t %09.3f] simulation aborted: %v", s.now, err)
	s.err = err
}

// Err returns the error that aborted the run, if any.
func (s *Scheduler) Err() error {
	return s.err
}

// Step executes the next resumption. Returns false if the queue is empty or
// the run has been aborted.
func (s *Scheduler) Step() bool {
	if s.err != nil {
		return false
	}
	r := s.queue.popNext()
	if r == nil {
		return false
	}
	s.now = r.at
	s.steps++
	r.fn()
	return true
}

// Run executes resumptions strictly before horizon, or until the queue is
// empty. If maxSteps > 0, at most maxSteps resumptions are executed and
// ErrStepLimit is returned when the budget runs out first. On a normal finish
// with a finite horizon the clock is left at the horizon.
func (s *Scheduler) Run(ctx context.Context, horizon Time, maxSteps uint64) error {
	var executed uint64
	for s.err == nil {
		next := s.queue.peek()
		if next == nil || next.at >= horizon {
			break
		}
		if maxSteps > 0 && executed >= maxSteps {
			return ErrStepLimit
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.pacer != nil {
			if err := s.pacer.Pace(ctx, next.at); err != nil {
				s.Abort(err)
				break
			}
		}
		s.Step()
		executed++
	}
	if s.err != nil {
		return s.err
	}
	if !math.IsInf(float64(horizon), 1) && s.now < horizon {
		s.now = horizon
	}
	return nil
}
