package sim

import (
	"errors"
	"fmt"
)

// ErrNoDecision aborts a run under NoDecisionFail when an authority times out.
var ErrNoDecision = errors.New("routing authority returned no decision")

// ErrRoutingContract is the sentinel wrapped by RoutingContractError.
var ErrRoutingContract = errors.New("routing query must answer release")

// RoutingContractError reports a routing answer that was not a Release.
type RoutingContractError struct {
	Station   StationID
	Tray      TrayID
	Directive Directive
}

func (e *RoutingContractError) Error() string {
	return fmt.Sprintf("station %d tray %d: routing query answered %v: %v", e.Station, e.Tray, e.Directive, ErrRoutingContract)
}

// Unwrap returns ErrRoutingContract.
func (e *RoutingContractError) Unwrap() error {
	return ErrRoutingContract
}
