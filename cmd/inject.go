package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/traysim/traysim/sim/topology"
)

// parseInjection parses station:at[:count[:interval]], e.g. "1:0" or "3:10:5:2.5".
func parseInjection(s string) (topology.InjectionSpec, error) {
	var inj topology.InjectionSpec
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 4 {
		return inj, fmt.Errorf("injection %q: want station:at[:count[:interval]]", s)
	}
	station, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return inj, fmt.Errorf("injection %q: bad station: %w", s, err)
	}
	inj.Station = uint32(station)
	if inj.At, err = strconv.ParseFloat(parts[1], 64); err != nil {
		return inj, fmt.Errorf("injection %q: bad time: %w", s, err)
	}
	inj.Count = 1
	if len(parts) > 2 {
		if inj.Count, err = strconv.Atoi(parts[2]); err != nil {
			return inj, fmt.Errorf("injection %q: bad count: %w", s, err)
		}
	}
	if len(parts) > 3 {
		if inj.Interval, err = strconv.ParseFloat(parts[3], 64); err != nil {
			return inj, fmt.Errorf("injection %q: bad interval: %w", s, err)
		}
	}
	if inj.At < 0 || inj.Count < 1 || inj.Interval < 0 {
		return inj, fmt.Errorf("injection %q: time and interval must be >= 0, count >= 1", s)
	}
	return inj, nil
}
