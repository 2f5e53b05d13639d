// Implements the station Buffer, the bounded FIFO in front of each station.
// Trays are put by transfer tasks and the injector, and taken by the owning
// StationWorker.

package sim

import (
	"fmt"
	"strings"
)

type pendingPut struct {
	tray *Tray
	done *Signal[struct{}]
}

// Buffer is a bounded FIFO queue of trays.
//
// Put never lets occupancy exceed the capacity: a producer arriving at a full
// buffer is suspended and admitted in the order its Put was issued once space
// frees. Get suspends the consumer until a tray is available.
type Buffer struct {
	sched    *Scheduler
	capacity int
	items    []*Tray
	getters  []*Signal[*Tray]
	putters  []pendingPut
	peak     int
}

// NewBuffer creates a buffer. Panics if capacity < 1.
func NewBuffer(s *Scheduler, capacity int) *Buffer {
	if capacity < 1 {
		panic(fmt.Sprintf("NewBuffer: capacity must be >= 1, got %d", capacity))
	}
	return &Buffer{sched: s, capacity: capacity}
}

// Put offers t to the buffer. The returned signal fires once t has been
// accepted.
func (b *Buffer) Put(t *Tray) *Signal[struct{}] {
	if t == nil {
		panic("Buffer.Put: tray must not be nil")
	}
	done := NewSignal[struct{}](b.sched)
	b.putters = append(b.putters, pendingPut{tray: t, done: done})
	b.settle()
	return done
}

// Get takes the oldest tray. The returned signal fires with the tray once one
// is available.
func (b *Buffer) Get() *Signal[*Tray] {
	sig := NewSignal[*Tray](b.sched)
	b.getters = append(b.getters, sig)
	b.settle()
	return sig
}

// settle admits waiting producers while there is room and hands trays to
// waiting consumers, until neither side can make progress.
func (b *Buffer) settle() {
	for {
		progressed := false
		for len(b.putters) > 0 && len(b.items) < b.capacity {
			p := b.putters[0]
			b.putters[0] = pendingPut{}
			b.putters = b.putters[1:]
			b.items = append(b.items, p.tray)
			if len(b.items) > b.peak {
				b.peak = len(b.items)
			}
			p.done.Fire(struct{}{})
			progressed = true
		}
		for len(b.getters) > 0 && len(b.items) > 0 {
			g := b.getters[0]
			b.getters[0] = nil
			b.getters = b.getters[1:]
			t := b.items[0]
			b.items[0] = nil
			b.items = b.items[1:]
			g.Fire(t)
			progressed = true
		}
		if !progressed {
			return
		}
	}
}

// Len returns the number of trays resident in the buffer.
func (b *Buffer) Len() int {
	return len(b.items)
}

// Capacity returns the configured capacity.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Peak returns the highest occupancy observed.
func (b *Buffer) Peak() int {
	return b.peak
}

// BlockedPuts returns the number of producers waiting for space.
func (b *Buffer) BlockedPuts() int {
	return len(b.putters)
}

func (b *Buffer) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, t := range b.items {
		sb.WriteString(fmt.Sprint(t.ID))
		if i < len(b.items)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
