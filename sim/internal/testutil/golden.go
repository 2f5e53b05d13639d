// Package testutil provides shared test infrastructure for traysim: golden
// event traces and float comparison helpers used across sim/ test packages.
package testutil

import (
	"bytes"
	"fmt"
	"math"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/traysim/traysim/sim"
)

// FormatTrace renders events one per line in their String form.
func FormatTrace(events []sim.Event) []byte {
	var buf bytes.Buffer
	for _, e := range events {
		fmt.Fprintln(&buf, e.String())
	}
	return buf.Bytes()
}

// AssertGoldenTrace compares events against testdata/golden/<name>.golden,
// relative to the calling package. Run with -update to rewrite the file.
func AssertGoldenTrace(t *testing.T, name string, events []sim.Event) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, FormatTrace(events))
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
