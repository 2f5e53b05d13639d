package sim

// Signal is the suspension primitive every blocking operation is built on.
// It fires at most once; each waiter is resumed exactly once, through the
// scheduler, at the instant the signal fires (or at the instant Wait is
// called, if it already fired).
type Signal[T any] struct {
	sched   *Scheduler
	fired   bool
	value   T
	waiters []func(T)
}

// NewSignal creates an unfired signal bound to s.
func NewSignal[T any](s *Scheduler) *Signal[T] {
	if s == nil {
		panic("NewSignal: scheduler must not be nil")
	}
	return &Signal[T]{sched: s}
}

// Fired returns a signal that has already fired with v.
func Fired[T any](s *Scheduler, v T) *Signal[T] {
	sig := NewSignal[T](s)
	sig.Fire(v)
	return sig
}

// Fire resolves the signal with v and schedules all waiters.
// Returns false if the signal had already fired; the value is then ignored.
func (sg *Signal[T]) Fire(v T) bool {
	if sg.fired {
		return false
	}
	sg.fired = true
	sg.value = v
	waiters := sg.waiters
	sg.waiters = nil
	for _, k := range waiters {
		sg.resume(k)
	}
	return true
}

// Wait registers k to be resumed with the signal's value.
func (sg *Signal[T]) Wait(k func(T)) {
	if k == nil {
		panic("Signal.Wait: continuation must not be nil")
	}
	if sg.fired {
		sg.resume(k)
		return
	}
	sg.waiters = append(sg.waiters, k)
}

// Done reports whether the signal has fired.
func (sg *Signal[T]) Done() bool {
	return sg.fired
}

// Value returns the fired value, or the zero value before firing.
func (sg *Signal[T]) Value() T {
	return sg.value
}

func (sg *Signal[T]) resume(k func(T)) {
	v := sg.value
	sg.sched.Resume(func() { k(v) })
}
