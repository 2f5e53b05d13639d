package sim

import (
	"fmt"
	"sort"
)

// DurationSampler produces service or transfer durations.
type DurationSampler interface {
	// Sample returns a non-negative, finite duration.
	Sample() Time
}

// Constant is a DurationSampler that always returns the same duration.
type Constant Time

// Sample returns the constant clamped by SafeDuration.
func (c Constant) Sample() Time {
	return SafeDuration(float64(c))
}

// Station is a processing node. Immutable after load.
type Station struct {
	ID             StationID
	Name           string
	BufferCapacity int
	Service        DurationSampler
}

// Link is a directed, timed connection between two stations. Immutable.
type Link struct {
	Tail     StationID
	Head     StationID
	Transfer DurationSampler
}

// TopologyProvider exposes the station network to the engine.
type TopologyProvider interface {
	// Stations returns all stations ordered by id.
	Stations() []*Station
	Station(id StationID) (*Station, bool)
	Link(tail, head StationID) (*Link, bool)
}

type linkKey struct {
	tail, head StationID
}

// Network is the in-memory TopologyProvider.
type Network struct {
	stations map[StationID]*Station
	ordered  []*Station
	links    map[linkKey]*Link
}

// NewNetwork validates and indexes stations and links.
func NewNetwork(stations []*Station, links []*Link) (*Network, error) {
	n := &Network{
		stations: make(map[StationID]*Station, len(stations)),
		links:    make(map[linkKey]*Link, len(links)),
	}
	for _, st := range stations {
		if st == nil {
			return nil, fmt.Errorf("nil station")
		}
		if st.BufferCapacity < 1 {
			return nil, fmt.Errorf("station %d: buffer capacity must be >= 1, got %d", st.ID, st.BufferCapacity)
		}
		if st.Service == nil {
			return nil, fmt.Errorf("station %d: missing service time sampler", st.ID)
		}
		if _, dup := n.stations[st.ID]; dup {
			return nil, fmt.Errorf("duplicate station id %d", st.ID)
		}
		n.stations[st.ID] = st
		n.ordered = append(n.ordered, st)
	}
	sort.Slice(n.ordered, func(i, j int) bool { return n.ordered[i].ID < n.ordered[j].ID })
	for _, l := range links {
		if l == nil {
			return nil, fmt.Errorf("nil link")
		}
		if l.Transfer == nil {
			return nil, fmt.Errorf("link %d->%d: missing transfer time sampler", l.Tail, l.Head)
		}
		k := linkKey{l.Tail, l.Head}
		if _, dup := n.links[k]; dup {
			return nil, fmt.Errorf("duplicate link %d->%d", l.Tail, l.Head)
		}
		n.links[k] = l
	}
	return n, nil
}

// Stations returns all stations ordered by id.
func (n *Network) Stations() []*Station {
	return n.ordered
}

// Station looks up a station by id.
func (n *Network) Station(id StationID) (*Station, bool) {
	st, ok := n.stations[id]
	return st, ok
}

// Link looks up the link tail->head.
func (n *Network) Link(tail, head StationID) (*Link, bool) {
	l, ok := n.links[linkKey{tail, head}]
	return l, ok
}

// NumLinks returns the number of links.
func (n *Network) NumLinks() int {
	return len(n.links)
}
