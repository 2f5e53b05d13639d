package sim

import "container/heap"

// resumption is a continuation waiting in the scheduler queue.
type resumption struct {
	at  Time
	seq uint64
	fn  func()
}

// eventHeap implements heap.Interface with deterministic ordering.
// Order by: time → insertion sequence
type eventHeap struct {
	items []*resumption
}

// Len implements heap.Interface
func (h *eventHeap) Len() int {
	return len(h.items)
}

// Less implements heap.Interface. Resumptions due at the same instant run in
// the order they were submitted.
func (h *eventHeap) Less(i, j int) bool {
	ri, rj := h.items[i], h.items[j]
	if ri.at != rj.at {
		return ri.at < rj.at
	}
	return ri.seq < rj.seq
}

// Swap implements heap.Interface
func (h *eventHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

// Push implements heap.Interface
func (h *eventHeap) Push(x any) {
	h.items = append(h.items, x.(*resumption))
}

// Pop implements heap.Interface
func (h *eventHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.items = old[0 : n-1]
	return item
}

func (h *eventHeap) schedule(r *resumption) {
	heap.Push(h, r)
}

func (h *eventHeap) popNext() *resumption {
	if h.Len() == 0 {
		return nil
	}
	return heap.Pop(h).(*resumption)
}

func (h *eventHeap) peek() *resumption {
	if h.Len() == 0 {
		return nil
	}
	return h.items[0]
}
