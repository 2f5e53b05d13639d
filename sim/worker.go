package sim

import (
	"github.com/traysim/traysim/sim/trace"
)

// WorkerState is a StationWorker state.
type WorkerState int

const (
	StateArrive WorkerState = iota
	StateDecide
	StateService
	StateRoute
	StateTransit
)

func (s WorkerState) String() string {
	switch s {
	case StateArrive:
		return "ARRIVE"
	case StateDecide:
		return "DECIDE"
	case StateService:
		return "SERVICE"
	case StateRoute:
		return "ROUTE"
	case StateTransit:
		return "TRANSIT"
	default:
		return "UNKNOWN"
	}
}

// StationWorker drives one station through
//
//	ARRIVE → DECIDE → (TRANSIT | SERVICE → ROUTE → TRANSIT) → ARRIVE
//
// It is the only consumer of its station's Buffer. TRANSIT hands the tray to a
// detached transfer task, so the worker is back in ARRIVE while the tray is
// still in flight.
type StationWorker struct {
	ctrl    *Controller
	station *Station
	buffer  *Buffer
	pool    *ServicePool
	state   WorkerState
	tray    *Tray // held between dequeue and transit

	dequeued int
	served   int
	released int // trays that skipped service
}

func newStationWorker(c *Controller, st *Station) *StationWorker {
	return &StationWorker{
		ctrl:    c,
		station: st,
		buffer:  NewBuffer(c.sched, st.BufferCapacity),
		pool:    NewServicePool(c.sched, c.cfg.ServiceSlots),
	}
}

// Station returns the station this worker drives.
func (w *StationWorker) Station() *Station { return w.station }

// Buffer returns the station's input buffer.
func (w *StationWorker) Buffer() *Buffer { return w.buffer }

// Pool returns the station's service pool.
func (w *StationWorker) Pool() *ServicePool { return w.pool }

// State returns the current state.
func (w *StationWorker) State() WorkerState { return w.state }

// Holding returns the tray held mid-service, or nil.
func (w *StationWorker) Holding() *Tray { return w.tray }

func (w *StationWorker) arrive() {
	w.state = StateArrive
	w.tray = nil
	w.buffer.Get().Wait(w.onDequeued)
}

func (w *StationWorker) onDequeued(t *Tray) {
	w.tray = t
	w.dequeued++
	t.Path = append(t.Path, w.station.ID)
	w.ctrl.emit(Event{Kind: EventDequeued, Station: w.station.ID, Tray: t.ID, Workpiece: t.Workpiece})
	w.decide()
}

func (w *StationWorker) decide() {
	w.state = StateDecide
	asked := w.ctrl.sched.Now()
	w.ctrl.authority.RequestAction(w.station.ID, w.tray.ID).Wait(func(d Decision) {
		w.onAction(d, asked)
	})
}

func (w *StationWorker) onAction(d Decision, asked Time) {
	d, ok := w.ctrl.resolve(trace.QueryAction, w.station.ID, w.tray, d, asked, w.decide)
	if !ok {
		return
	}
	switch dir := d.Directive.(type) {
	case Release:
		w.released++
		w.transit(dir.Target)
	case Execute:
		w.service()
	}
}

func (w *StationWorker) service() {
	w.state = StateService
	t := w.tray
	w.pool.Use(func(done func()) {
		d := SafeDuration(float64(w.station.Service.Sample()))
		w.ctrl.emit(Event{Kind: EventServiceStart, Station: w.station.ID, Tray: t.ID, Workpiece: t.Workpiece, Duration: d})
		w.ctrl.sched.After(d, func() {
			w.ctrl.emit(Event{Kind: EventServiceEnd, Station: w.station.ID, Tray: t.ID, Workpiece: t.Workpiece})
			w.served++
			done()
			w.route()
		})
	})
}

func (w *StationWorker) route() {
	w.state = StateRoute
	asked := w.ctrl.sched.Now()
	w.ctrl.authority.RequestRouting(w.station.ID, w.tray.ID).Wait(func(d Decision) {
		w.onRouting(d, asked)
	})
}

func (w *StationWorker) onRouting(d Decision, asked Time) {
	d, ok := w.ctrl.resolve(trace.QueryRouting, w.station.ID, w.tray, d, asked, w.route)
	if !ok {
		return
	}
	rel, isRelease := d.Directive.(Release)
	if !isRelease {
		w.ctrl.sched.Abort(&RoutingContractError{Station: w.station.ID, Tray: w.tray.ID, Directive: d.Directive})
		return
	}
	w.transit(rel.Target)
}

func (w *StationWorker) transit(target StationID) {
	w.state = StateTransit
	t := w.tray
	w.tray = nil
	w.ctrl.dispatch(w.station.ID, target, t, w.arrive)
}
