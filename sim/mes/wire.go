package mes

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/traysim/traysim/sim"
	"github.com/traysim/traysim/sim/transport"
)

// Message type codes.
const (
	MsgActionQuery     uint32 = 0x1046 // sent when a tray arrives at a station
	MsgActionDoneQuery uint32 = 0x1047 // sent when service completes (routing)
	MsgActionResponse  uint32 = 0x1048 // unified answer to both queries
)

// Action type values carried in a Response.
const (
	ActionRelease uint32 = 0 // read NextStation
	ActionExecute uint32 = 1 // ignore NextStation
)

// Body sizes in bytes.
const (
	QuerySize    = 8
	ResponseSize = 20
)

var (
	// ErrShortBody is returned when a body is smaller than its fixed layout.
	ErrShortBody = errors.New("message body too short")
	// ErrUnknownAction is returned for an action type other than release or execute.
	ErrUnknownAction = errors.New("unknown action type")
)

// Query is the body of an action query or a routing ("done") query.
// Layout: stationId u32, trayId u32.
type Query struct {
	Station uint32
	Tray    uint32
}

// Response is the body of the unified response.
// Layout: stationId u32, trayId u32 (echoed), orderId u32, actionType u32,
// nextStationId u32.
type Response struct {
	Station     uint32
	Tray        uint32
	Order       uint32
	Action      uint32
	NextStation uint32
}

// MarshalBinary encodes the query body.
func (q Query) MarshalBinary() ([]byte, error) {
	b := make([]byte, QuerySize)
	binary.LittleEndian.PutUint32(b[0:4], q.Station)
	binary.LittleEndian.PutUint32(b[4:8], q.Tray)
	return b, nil
}

// UnmarshalBinary decodes a query body. Trailing bytes are ignored.
func (q *Query) UnmarshalBinary(b []byte) error {
	if len(b) < QuerySize {
		return fmt.Errorf("%w: query needs %d bytes, got %d", ErrShortBody, QuerySize, len(b))
	}
	q.Station = binary.LittleEndian.Uint32(b[0:4])
	q.Tray = binary.LittleEndian.Uint32(b[4:8])
	return nil
}

// MarshalBinary encodes the response body.
func (r Response) MarshalBinary() ([]byte, error) {
	b := make([]byte, ResponseSize)
	binary.LittleEndian.PutUint32(b[0:4], r.Station)
	binary.LittleEndian.PutUint32(b[4:8], r.Tray)
	binary.LittleEndian.PutUint32(b[8:12], r.Order)
	binary.LittleEndian.PutUint32(b[12:16], r.Action)
	binary.LittleEndian.PutUint32(b[16:20], r.NextStation)
	return b, nil
}

// UnmarshalBinary decodes a response body. Trailing bytes are ignored.
func (r *Response) UnmarshalBinary(b []byte) error {
	if len(b) < ResponseSize {
		return fmt.Errorf("%w: response needs %d bytes, got %d", ErrShortBody, ResponseSize, len(b))
	}
	r.Station = binary.LittleEndian.Uint32(b[0:4])
	r.Tray = binary.LittleEndian.Uint32(b[4:8])
	r.Order = binary.LittleEndian.Uint32(b[8:12])
	r.Action = binary.LittleEndian.Uint32(b[12:16])
	r.NextStation = binary.LittleEndian.Uint32(b[16:20])
	return nil
}

// Decision converts the response into an engine decision.
func (r Response) Decision() (sim.Decision, error) {
	d := sim.Decision{Workpiece: sim.WorkpieceID(r.Order)}
	switch r.Action {
	case ActionRelease:
		d.Directive = sim.Release{Target: sim.StationID(r.NextStation)}
	case ActionExecute:
		d.Directive = sim.Execute{}
	default:
		return sim.NoDecision, fmt.Errorf("%w %d from station %d tray %d", ErrUnknownAction, r.Action, r.Station, r.Tray)
	}
	return d, nil
}

// QueryFrame wraps a query of the given type in a transport frame.
func QueryFrame(msgType uint32, q Query) transport.Frame {
	body, _ := q.MarshalBinary()
	return transport.Frame{Type: msgType, Body: body}
}

// ResponseFrame wraps a response in a transport frame.
func ResponseFrame(r Response) transport.Frame {
	body, _ := r.MarshalBinary()
	return transport.Frame{Type: MsgActionResponse, Body: body}
}
