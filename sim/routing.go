package sim

import "fmt"

// Directive is the outcome of a routing decision: Release or Execute.
type Directive interface {
	isDirective()
	String() string
}

// Release skips (or ends) local service and sends the tray to Target.
type Release struct {
	Target StationID
}

// Execute performs local service before the next hop is decided.
type Execute struct{}

func (Release) isDirective() {}
func (Execute) isDirective() {}

func (r Release) String() string { return fmt.Sprintf("release(%d)", r.Target) }
func (Execute) String() string   { return "execute" }

// Decision is a RoutingAuthority answer. The zero value is NoDecision.
type Decision struct {
	Workpiece WorkpieceID
	Directive Directive
}

// NoDecision is the sentinel returned when no answer arrived in time.
var NoDecision = Decision{}

// Decided reports whether d carries a directive.
func (d Decision) Decided() bool {
	return d.Directive != nil
}

func (d Decision) String() string {
	if !d.Decided() {
		return "no-decision"
	}
	return fmt.Sprintf("%s wp=%d", d.Directive, d.Workpiece)
}

// RoutingAuthority decides what a station does with a tray. Both calls are
// suspension points: the returned signal fires with the decision, or with
// NoDecision if the authority gave up.
type RoutingAuthority interface {
	// RequestAction is consulted when a tray is dequeued at a station.
	RequestAction(station StationID, tray TrayID) *Signal[Decision]
	// RequestRouting is consulted after service completes. The answer must
	// be a Release.
	RequestRouting(station StationID, tray TrayID) *Signal[Decision]
}

// LocalDefaultPolicy is the network-free authority: always execute, then
// release to the other station of a fixed alternating pair.
type LocalDefaultPolicy struct {
	sched *Scheduler
	a, b  StationID
}

// NewLocalDefaultPolicy alternates between stations 1 and 2.
func NewLocalDefaultPolicy(s *Scheduler) *LocalDefaultPolicy {
	return NewAlternatingPolicy(s, 1, 2)
}

// NewAlternatingPolicy releases trays leaving a to b, and everything else to a.
func NewAlternatingPolicy(s *Scheduler, a, b StationID) *LocalDefaultPolicy {
	return &LocalDefaultPolicy{sched: s, a: a, b: b}
}

// Action returns the action decision without suspending.
func (p *LocalDefaultPolicy) Action(station StationID, tray TrayID) Decision {
	return Decision{Workpiece: WorkpieceID(tray), Directive: Execute{}}
}

// Routing returns the routing decision without suspending.
func (p *LocalDefaultPolicy) Routing(station StationID, tray TrayID) Decision {
	return Decision{Workpiece: WorkpieceID(tray), Directive: Release{Target: p.Next(station)}}
}

// Next applies the alternation rule.
func (p *LocalDefaultPolicy) Next(station StationID) StationID {
	if station == p.a {
		return p.b
	}
	return p.a
}

// RequestAction implements RoutingAuthority.
func (p *LocalDefaultPolicy) RequestAction(station StationID, tray TrayID) *Signal[Decision] {
	return Fired(p.sched, p.Action(station, tray))
}

// RequestRouting implements RoutingAuthority.
func (p *LocalDefaultPolicy) RequestRouting(station StationID, tray TrayID) *Signal[Decision] {
	return Fired(p.sched, p.Routing(station, tray))
}
