package sim

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/traysim/traysim/sim/trace"
)

// Controller owns the station workers of a topology, assigns tray ids,
// keeps the completion ledger, and drives the scheduler.
type Controller struct {
	cfg       Config
	sched     *Scheduler
	topo      TopologyProvider
	authority RoutingAuthority
	sink      EventSink

	workers   map[StationID]*StationWorker
	ordered   []*StationWorker
	linkPools map[linkKey]*ServicePool
	warned    map[linkKey]bool

	nextTray   TrayID
	active     map[TrayID]*Tray
	completed  []Completion
	inTransit  int
	events     int
	sinkErrors int
	monitoring bool
}

// NewController wires one StationWorker per station and starts each in ARRIVE.
// A nil sink discards events. Panics on an invalid Config.
func NewController(s *Scheduler, topo TopologyProvider, authority RoutingAuthority, sink EventSink, cfg Config) *Controller {
	if s == nil || topo == nil || authority == nil {
		panic("NewController: scheduler, topology and authority must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("NewController: %v", err))
	}
	if sink == nil {
		sink = DiscardSink
	}
	c := &Controller{
		cfg:       cfg.withDefaults(s),
		sched:     s,
		topo:      topo,
		authority: authority,
		sink:      sink,
		workers:   make(map[StationID]*StationWorker),
		linkPools: make(map[linkKey]*ServicePool),
		warned:    make(map[linkKey]bool),
		active:    make(map[TrayID]*Tray),
	}
	for _, st := range topo.Stations() {
		w := newStationWorker(c, st)
		c.workers[st.ID] = w
		c.ordered = append(c.ordered, w)
	}
	for _, w := range c.ordered {
		w.arrive()
	}
	return c
}

// Scheduler returns the controller's scheduler.
func (c *Controller) Scheduler() *Scheduler { return c.sched }

// Worker returns the worker for a station.
func (c *Controller) Worker(id StationID) (*StationWorker, bool) {
	w, ok := c.workers[id]
	return w, ok
}

// Workers returns all workers ordered by station id.
func (c *Controller) Workers() []*StationWorker { return c.ordered }

// InjectTray assigns a new tray id and schedules its arrival at station at
// simulated time at (clamped to now if in the past). On arrival the tray is
// put into the station's buffer; if the station is unknown the tray is
// completed immediately.
func (c *Controller) InjectTray(station StationID, at Time) TrayID {
	c.nextTray++
	t := &Tray{ID: c.nextTray, Workpiece: NoWorkpiece}
	delay := at - c.sched.Now()
	if delay < 0 {
		delay = 0
	}
	c.active[t.ID] = t
	c.sched.After(delay, func() {
		t.InjectedAt = c.sched.Now()
		if _, ok := c.workers[station]; !ok {
			logrus.Warnf("[t %09.3f] tray %d injected at unknown station %d; completing", c.sched.Now(), t.ID, station)
			c.complete(station, t)
			return
		}
		c.emit(Event{Kind: EventInjected, Station: station, Tray: t.ID, Workpiece: t.Workpiece})
		c.deliver(station, t, func() {})
	})
	return t.ID
}

// InjectTrays injects count trays at station, the first at at and each
// subsequent one interval later.
func (c *Controller) InjectTrays(station StationID, at Time, count int, interval Time) []TrayID {
	ids := make([]TrayID, 0, count)
	for i := 0; i < count; i++ {
		ids = append(ids, c.InjectTray(station, at+Time(i)*interval))
	}
	return ids
}

// Run drives the scheduler until the horizon (Forever for none). It returns
// the error that aborted the run, ErrStepLimit, or ctx.Err().
func (c *Controller) Run(ctx context.Context, until Time) error {
	if c.cfg.MonitorInterval > 0 && !c.monitoring {
		c.monitoring = true
		c.sched.After(c.cfg.MonitorInterval, c.monitor)
	}
	err := c.sched.Run(ctx, until, c.cfg.MaxSteps)
	logrus.Infof("[t %09.3f] run stopped: %d completed, %d active, %d events", c.sched.Now(), len(c.completed), len(c.active), c.events)
	return err
}

// Completed returns the completion ledger in completion order.
func (c *Controller) Completed() []Completion { return c.completed }

// Active returns the number of injected trays not yet completed.
func (c *Controller) Active() int { return len(c.active) }

// InTransit returns the number of trays inside transfer tasks.
func (c *Controller) InTransit() int { return c.inTransit }

// SinkErrors returns how many event records the sink failed to accept.
func (c *Controller) SinkErrors() int { return c.sinkErrors }

// Events returns the number of events emitted.
func (c *Controller) Events() int { return c.events }

// LinkPool returns the in-flight limiter of link tail->head, or nil when
// transfers are unbounded.
func (c *Controller) LinkPool(tail, head StationID) *ServicePool {
	if c.cfg.MaxInFlightPerLink == 0 {
		return nil
	}
	k := linkKey{tail, head}
	p, ok := c.linkPools[k]
	if !ok {
		p = NewServicePool(c.sched, c.cfg.MaxInFlightPerLink)
		c.linkPools[k] = p
	}
	return p
}

// resolve applies the no-decision policy and the workpiece update to an
// authority answer. It returns false when the worker must not continue with
// d (the query was retried or the run aborted).
func (c *Controller) resolve(q trace.Query, station StationID, t *Tray, d Decision, asked Time, retry func()) (Decision, bool) {
	fallback := false
	if !d.Decided() {
		c.traceDecision(q, station, t, d, asked, false)
		switch c.cfg.NoDecision {
		case NoDecisionFail:
			c.sched.Abort(fmt.Errorf("station %d tray %d %s query: %w", station, t.ID, q, ErrNoDecision))
			return d, false
		case NoDecisionLocal:
			logrus.Warnf("[t %09.3f] station %d tray %d: no %s decision, using local policy", c.sched.Now(), station, t.ID, q)
			if q == trace.QueryAction {
				d = c.cfg.Fallback.Action(station, t.ID)
			} else {
				d = c.cfg.Fallback.Routing(station, t.ID)
			}
			fallback = true
		default:
			logrus.Warnf("[t %09.3f] station %d tray %d: no %s decision, retrying", c.sched.Now(), station, t.ID, q)
			retry()
			return d, false
		}
	}
	c.traceDecision(q, station, t, d, asked, fallback)
	t.Workpiece = d.Workpiece
	return d, true
}

func (c *Controller) traceDecision(q trace.Query, station StationID, t *Tray, d Decision, asked Time, fallback bool) {
	if c.cfg.Trace == nil {
		return
	}
	rec := trace.DecisionRecord{
		Clock:     float64(c.sched.Now()),
		Waited:    float64(c.sched.Now() - asked),
		Station:   uint32(station),
		Tray:      uint32(t.ID),
		Query:     q,
		Outcome:   trace.OutcomeNoDecision,
		Workpiece: uint32(d.Workpiece),
		Fallback:  fallback,
	}
	switch dir := d.Directive.(type) {
	case Release:
		rec.Outcome = trace.OutcomeRelease
		rec.Target = uint32(dir.Target)
	case Execute:
		rec.Outcome = trace.OutcomeExecute
	}
	c.cfg.Trace.RecordDecision(rec)
}

// dispatch hands t to a detached transfer task toward head, then calls next.
// With a per-link in-flight cap, the caller waits for a link slot first.
func (c *Controller) dispatch(tail, head StationID, t *Tray, next func()) {
	pool := c.LinkPool(tail, head)
	if pool == nil {
		c.sched.Resume(func() { c.transfer(tail, head, t, nil) })
		next()
		return
	}
	pool.Acquire().Wait(func(slot *Slot) {
		c.sched.Resume(func() { c.transfer(tail, head, t, slot) })
		next()
	})
}

func (c *Controller) transfer(tail, head StationID, t *Tray, slot *Slot) {
	var d Time
	if l, ok := c.topo.Link(tail, head); ok {
		d = SafeDuration(float64(l.Transfer.Sample()))
	} else if k := (linkKey{tail, head}); !c.warned[k] {
		c.warned[k] = true
		logrus.Warnf("[t %09.3f] no link %d->%d; transferring instantly", c.sched.Now(), tail, head)
	}
	c.inTransit++
	c.emit(Event{Kind: EventTransferStart, Station: tail, Tray: t.ID, Workpiece: t.Workpiece, Tail: tail, Head: head, Duration: d})
	c.sched.After(d, func() {
		c.emit(Event{Kind: EventTransferEnd, Station: tail, Tray: t.ID, Workpiece: t.Workpiece, Tail: tail, Head: head})
		c.inTransit--
		c.deliver(head, t, slot.Release)
	})
}

// deliver puts t into station's buffer, or completes it if the station is a
// sink. accepted runs once the tray has left the caller's hands.
func (c *Controller) deliver(station StationID, t *Tray, accepted func()) {
	w, ok := c.workers[station]
	if !ok {
		c.complete(station, t)
		accepted()
		return
	}
	w.buffer.Put(t).Wait(func(struct{}) {
		c.emit(Event{Kind: EventEnqueued, Station: station, Tray: t.ID, Workpiece: t.Workpiece})
		accepted()
	})
}

func (c *Controller) complete(sink StationID, t *Tray) {
	c.emit(Event{Kind: EventCompleted, Station: sink, Tray: t.ID, Workpiece: t.Workpiece})
	c.completed = append(c.completed, Completion{
		Tray:        t.ID,
		Workpiece:   t.Workpiece,
		Station:     sink,
		InjectedAt:  t.InjectedAt,
		CompletedAt: c.sched.Now(),
		Path:        t.Path,
	})
	delete(c.active, t.ID)
}

func (c *Controller) emit(e Event) {
	e.Time = c.sched.Now()
	c.events++
	logrus.Debugf("[t %09.3f] %s", e.Time, e)
	if err := c.sink.Record(e); err != nil {
		c.sinkErrors++
		logrus.WithError(err).Warnf("[t %09.3f] event sink rejected %s", e.Time, e.Kind)
	}
}

// monitor logs progress and reschedules itself while anything else is queued.
func (c *Controller) monitor() {
	logrus.Infof("[t %09.3f] progress: %d completed, %d active, %d in transit", c.sched.Now(), len(c.completed), len(c.active), c.inTransit)
	if c.sched.Pending() > 0 {
		c.sched.After(c.cfg.MonitorInterval, c.monitor)
		return
	}
	c.monitoring = false
}
