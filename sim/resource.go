package sim

import "fmt"

// DefaultServiceSlots is the number of concurrent service slots per station
// when none is configured.
const DefaultServiceSlots = 2

// ServicePool is a counting resource with a fixed number of slots, granted in
// FIFO order of request.
type ServicePool struct {
	sched   *Scheduler
	slots   int
	inUse   int
	waiting []*Signal[*Slot]
	peak    int
}

// Slot is a held ServicePool slot.
type Slot struct {
	pool     *ServicePool
	released bool
}

// NewServicePool creates a pool. Panics if slots < 1.
func NewServicePool(s *Scheduler, slots int) *ServicePool {
	if slots < 1 {
		panic(fmt.Sprintf("NewServicePool: slots must be >= 1, got %d", slots))
	}
	return &ServicePool{sched: s, slots: slots}
}

// Acquire requests a slot. The returned signal fires with the slot once it is
// granted.
func (p *ServicePool) Acquire() *Signal[*Slot] {
	sig := NewSignal[*Slot](p.sched)
	p.waiting = append(p.waiting, sig)
	p.grant()
	return sig
}

// Use acquires a slot and runs body with a done func that releases it.
// The slot is also released if body panics.
func (p *ServicePool) Use(body func(done func())) {
	p.Acquire().Wait(func(slot *Slot) {
		defer func() {
			if r := recover(); r != nil {
				slot.Release()
				panic(r)
			}
		}()
		body(slot.Release)
	})
}

func (p *ServicePool) grant() {
	for len(p.waiting) > 0 && p.inUse < p.slots {
		sig := p.waiting[0]
		p.waiting[0] = nil
		p.waiting = p.waiting[1:]
		p.inUse++
		if p.inUse > p.peak {
			p.peak = p.inUse
		}
		sig.Fire(&Slot{pool: p})
	}
}

// Release returns the slot to its pool. Releasing twice is a no-op.
func (s *Slot) Release() {
	if s == nil || s.released {
		return
	}
	s.released = true
	s.pool.inUse--
	s.pool.grant()
}

// InUse returns the number of held slots.
func (p *ServicePool) InUse() int {
	return p.inUse
}

// Slots returns the configured slot count.
func (p *ServicePool) Slots() int {
	return p.slots
}

// Peak returns the highest number of simultaneously held slots.
func (p *ServicePool) Peak() int {
	return p.peak
}

// Waiting returns the number of queued acquire requests.
func (p *ServicePool) Waiting() int {
	return len(p.waiting)
}
