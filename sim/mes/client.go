// Package mes connects the engine to a Manufacturing Execution System: the
// binary decision protocol, the correlation of asynchronous answers to the
// (tray, station) that asked, and the RemoteAuthority built on top.
package mes

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/traysim/traysim/sim"
	"github.com/traysim/traysim/sim/transport"
)

// ErrCorrelationPending is returned when a request reuses a (tray, station)
// key whose previous request has not been resolved yet.
var ErrCorrelationPending = errors.New("correlation key already pending")

// Defaults for Config.
const (
	DefaultTimeout      sim.Time = 2.0
	DefaultPumpInterval sim.Time = 0.01
)

// MessageChannel is the framed transport the client talks through.
type MessageChannel interface {
	Connect(ctx context.Context) error
	Send(transport.Frame) error
	// Receive blocks until the next frame arrives or the channel fails.
	Receive() (transport.Frame, error)
	Close() error
}

// Config holds the correlation client parameters, in simulated time units.
type Config struct {
	Timeout      sim.Time // how long a request waits for its answer
	PumpInterval sim.Time // cadence at which received answers are matched
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PumpInterval <= 0 {
		c.PumpInterval = DefaultPumpInterval
	}
	return c
}

// Key is the correlation key of an outstanding request.
type Key struct {
	Tray    sim.TrayID
	Station sim.StationID
}

// Stats counts client activity.
type Stats struct {
	Sent       int
	SendErrors int
	Matched    int
	TimedOut   int
	Stale      int // answers with no pending request (late or duplicate)
	Rejected   int // requests refused because their key was pending
	Malformed  int
}

type pending struct {
	sig      *sim.Signal[sim.Decision]
	msgType  uint32
	deadline sim.Time
}

// CorrelationClient sends decision queries and resolves each with the
// answer echoing its key, or with sim.NoDecision once the timeout elapses.
//
// The receive loop runs on its own goroutine and only appends decoded
// answers to an inbox; a pump task on the scheduler drains the inbox every
// PumpInterval while requests are pending. The pending map is guarded by mu.
type CorrelationClient struct {
	sched *sim.Scheduler
	ch    MessageChannel
	cfg   Config

	mu      sync.Mutex
	pending map[Key]*pending
	inbox   []Response
	stats   Stats

	pumpScheduled bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewCorrelationClient creates a client. Call Start to connect.
func NewCorrelationClient(s *sim.Scheduler, ch MessageChannel, cfg Config) *CorrelationClient {
	if s == nil || ch == nil {
		panic("NewCorrelationClient: scheduler and channel must not be nil")
	}
	return &CorrelationClient{
		sched:   s,
		ch:      ch,
		cfg:     cfg.withDefaults(),
		pending: make(map[Key]*pending),
		done:    make(chan struct{}),
	}
}

// Start connects the channel and starts the receive loop. A connect failure
// is returned but leaves the client usable: every request then times out.
func (c *CorrelationClient) Start(ctx context.Context) error {
	if err := c.ch.Connect(ctx); err != nil {
		logrus.WithError(err).Warn("mes: connect failed; decisions will time out")
		return err
	}
	c.wg.Add(1)
	go c.receive()
	return nil
}

// Close disconnects and waits for the receive loop to exit.
func (c *CorrelationClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ch.Close()
		c.wg.Wait()
	})
	return err
}

// Config returns the effective configuration.
func (c *CorrelationClient) Config() Config {
	return c.cfg
}

// Request sends a query of msgType for (station, tray) and returns a signal
// resolved with the matching answer or with sim.NoDecision after the
// timeout. Reusing a key that is still pending is refused with
// ErrCorrelationPending; the returned signal has then already fired with
// sim.NoDecision and the pending request is left untouched.
func (c *CorrelationClient) Request(msgType uint32, station sim.StationID, tray sim.TrayID) (*sim.Signal[sim.Decision], error) {
	k := Key{Tray: tray, Station: station}
	c.mu.Lock()
	if _, busy := c.pending[k]; busy {
		c.stats.Rejected++
		c.mu.Unlock()
		return sim.Fired(c.sched, sim.NoDecision), fmt.Errorf("%w: station %d tray %d", ErrCorrelationPending, station, tray)
	}
	c.discardQueued(k)
	p := &pending{
		sig:      sim.NewSignal[sim.Decision](c.sched),
		msgType:  msgType,
		deadline: c.sched.Now() + c.cfg.Timeout,
	}
	c.pending[k] = p
	c.mu.Unlock()

	if err := c.ch.Send(QueryFrame(msgType, Query{Station: uint32(station), Tray: uint32(tray)})); err != nil {
		c.mu.Lock()
		c.stats.SendErrors++
		c.mu.Unlock()
		logrus.WithError(err).Debugf("mes: sending 0x%04x for station %d tray %d", msgType, station, tray)
	} else {
		c.mu.Lock()
		c.stats.Sent++
		c.mu.Unlock()
	}
	c.sched.After(c.cfg.Timeout, func() { c.expire(k, p) })
	c.schedulePump()
	return p.sig, nil
}

// Deliver queues a decoded answer for matching. Safe for concurrent use.
func (c *CorrelationClient) Deliver(r Response) {
	c.mu.Lock()
	c.inbox = append(c.inbox, r)
	c.mu.Unlock()
}

// Pending returns the number of outstanding requests.
func (c *CorrelationClient) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Stats returns a snapshot of the counters.
func (c *CorrelationClient) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// discardQueued drops queued answers for k. They arrived before the query
// about to be sent, so they can only answer an earlier, abandoned request.
// Callers hold mu.
func (c *CorrelationClient) discardQueued(k Key) {
	kept := c.inbox[:0]
	for _, r := range c.inbox {
		if sim.TrayID(r.Tray) == k.Tray && sim.StationID(r.Station) == k.Station {
			c.stats.Stale++
			logrus.Debugf("[t %09.3f] mes: discarding stale answer for station %d tray %d", c.sched.Now(), r.Station, r.Tray)
			continue
		}
		kept = append(kept, r)
	}
	c.inbox = kept
}

func (c *CorrelationClient) expire(k Key, p *pending) {
	c.mu.Lock()
	if c.pending[k] != p {
		c.mu.Unlock()
		return
	}
	delete(c.pending, k)
	c.stats.TimedOut++
	c.mu.Unlock()
	logrus.Debugf("[t %09.3f] mes: 0x%04x for station %d tray %d timed out (deadline %v)", c.sched.Now(), p.msgType, k.Station, k.Tray, p.deadline)
	p.sig.Fire(sim.NoDecision)
}

func (c *CorrelationClient) schedulePump() {
	if c.pumpScheduled {
		return
	}
	c.pumpScheduled = true
	c.sched.After(c.cfg.PumpInterval, c.pump)
}

func (c *CorrelationClient) pump() {
	c.pumpScheduled = false
	c.mu.Lock()
	inbox := c.inbox
	c.inbox = nil
	c.mu.Unlock()
	for _, r := range inbox {
		c.match(r)
	}
	if c.Pending() > 0 {
		c.schedulePump()
	}
}

func (c *CorrelationClient) match(r Response) {
	k := Key{Tray: sim.TrayID(r.Tray), Station: sim.StationID(r.Station)}
	d, decodeErr := r.Decision()
	c.mu.Lock()
	p, ok := c.pending[k]
	if !ok {
		c.stats.Stale++
		c.mu.Unlock()
		logrus.Debugf("[t %09.3f] mes: discarding stale answer for station %d tray %d", c.sched.Now(), r.Station, r.Tray)
		return
	}
	if decodeErr != nil {
		c.stats.Malformed++
		c.mu.Unlock()
		logrus.WithError(decodeErr).Warn("mes: discarding malformed answer")
		return
	}
	delete(c.pending, k)
	c.stats.Matched++
	c.mu.Unlock()
	p.sig.Fire(d)
}

func (c *CorrelationClient) receive() {
	defer c.wg.Done()
	for {
		f, err := c.ch.Receive()
		if err != nil {
			select {
			case <-c.done:
			default:
				logrus.WithError(err).Warn("mes: receive failed; decisions will time out")
			}
			return
		}
		if f.Type != MsgActionResponse {
			logrus.Debugf("mes: ignoring message type 0x%04x", f.Type)
			continue
		}
		var r Response
		if err := r.UnmarshalBinary(f.Body); err != nil {
			c.mu.Lock()
			c.stats.Malformed++
			c.mu.Unlock()
			logrus.WithError(err).Warn("mes: failed to parse incoming message")
			continue
		}
		c.Deliver(r)
	}
}
