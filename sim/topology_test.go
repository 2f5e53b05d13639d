package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNetwork_IndexesStationsAndLinks(t *testing.T) {
	n, err := NewNetwork(
		[]*Station{
			{ID: 3, BufferCapacity: 1, Service: Constant(1)},
			{ID: 1, BufferCapacity: 2, Service: Constant(1)},
		},
		[]*Link{{Tail: 1, Head: 3, Transfer: Constant(2)}})
	require.NoError(t, err)

	require.Len(t, n.Stations(), 2)
	assert.Equal(t, StationID(1), n.Stations()[0].ID, "ordered by id")
	st, ok := n.Station(3)
	assert.True(t, ok)
	assert.Equal(t, 1, st.BufferCapacity)
	_, ok = n.Station(2)
	assert.False(t, ok)
	_, ok = n.Link(1, 3)
	assert.True(t, ok)
	_, ok = n.Link(3, 1)
	assert.False(t, ok, "links are directed")
	assert.Equal(t, 1, n.NumLinks())
}

func TestNewNetwork_Rejects(t *testing.T) {
	ok := &Station{ID: 1, BufferCapacity: 1, Service: Constant(1)}
	tests := []struct {
		name     string
		stations []*Station
		links    []*Link
	}{
		{"nil station", []*Station{nil}, nil},
		{"zero capacity", []*Station{{ID: 1, Service: Constant(1)}}, nil},
		{"missing sampler", []*Station{{ID: 1, BufferCapacity: 1}}, nil},
		{"duplicate station", []*Station{ok, {ID: 1, BufferCapacity: 3, Service: Constant(2)}}, nil},
		{"nil link", []*Station{ok}, []*Link{nil}},
		{"link without sampler", []*Station{ok}, []*Link{{Tail: 1, Head: 2}}},
		{"duplicate link", []*Station{ok}, []*Link{
			{Tail: 1, Head: 2, Transfer: Constant(1)},
			{Tail: 1, Head: 2, Transfer: Constant(3)},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewNetwork(tc.stations, tc.links)
			assert.Error(t, err)
		})
	}
}

func TestConstant_SampleIsSafe(t *testing.T) {
	assert.Equal(t, Time(2.5), Constant(2.5).Sample())
	assert.Equal(t, Time(0), Constant(-1).Sample())
	assert.Equal(t, Time(0), Constant(Time(math.NaN())).Sample())
}
