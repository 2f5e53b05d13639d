package topology

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traysim/traysim/sim"
)

const lineYAML = `
name: line
stations:
  - id: 2
    name: press
    buffer_capacity: 2
    service_time_distribution: {type: uniform, parameters: [1, 2]}
  - id: 1
    name: loader
    buffer_capacity: 1
    service_time_distribution: {type: constant, parameters: [3]}
links:
  - tail: 1
    head: 2
    transfer_time_distribution: {type: constant, parameters: [2]}
injections:
  - {station: 1, at: 0, count: 3, interval: 1.5}
  - {station: 2, at: 4}
`

const lineJSON = `{
  "name": "line",
  "vertices": [
    {"id": 1, "name": "loader", "buffer_capacity": 1,
     "service_time_distribution": {"type": "constant", "parameters": [3]}},
    {"id": 2, "name": "press", "buffer_capacity": 2,
     "service_time_distribution": {"type": "uniform", "parameters": [1, 2]}}
  ],
  "arcs": [
    {"tail": 1, "head": 2, "transfer_time_distribution": {"type": "constant", "parameters": [2]}}
  ]
}`

func TestParse_YAMLAndJSONAgree(t *testing.T) {
	y, err := Parse([]byte(lineYAML), FormatYAML)
	require.NoError(t, err)
	j, err := Parse([]byte(lineJSON), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "line", y.Name)
	assert.Len(t, y.Stations, 2)
	assert.Len(t, j.Stations, 2)
	assert.Equal(t, y.Links, j.Links)
	assert.Equal(t, 2, y.Stations[0].BufferCapacity)
	assert.Equal(t, []float64{1, 2}, y.Stations[0].ServiceTime.Parameters)
}

func TestParse_YAMLRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("stations:\n  - id: 1\n    bufer_capacity: 1\n"), FormatYAML)
	assert.Error(t, err)
}

func TestParse_JSONRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte(`{"vertices": [{"id": 1, "bufer_capacity": 1}]}`), FormatJSON)
	assert.ErrorContains(t, err, "bufer_capacity")

	// the YAML key names are not accepted in JSON either
	_, err = Parse([]byte(`{"stations": []}`), FormatJSON)
	assert.Error(t, err)
}

func TestParse_UnknownFormat(t *testing.T) {
	_, err := Parse([]byte("{}"), Format("toml"))
	assert.Error(t, err)
}

func TestLoad_FormatFromExtension(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "plant.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(lineJSON), 0o644))
	yamlPath := filepath.Join(dir, "unnamed.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("stations: []\n"), 0o644))

	g, err := Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "line", g.Name)

	g, err = Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "unnamed", g.Name, "name defaults to the file stem")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestGraph_Validate(t *testing.T) {
	constant := Distribution{Type: "constant", Parameters: []float64{1}}
	st := func(id uint32, capacity int) StationSpec {
		return StationSpec{ID: id, BufferCapacity: capacity, ServiceTime: constant}
	}
	tests := []struct {
		name  string
		graph Graph
		want  string
	}{
		{"no stations", Graph{}, "no stations"},
		{"duplicate station", Graph{Stations: []StationSpec{st(1, 1), st(1, 1)}}, "duplicate station id 1"},
		{"zero capacity", Graph{Stations: []StationSpec{st(1, 0)}}, "buffer_capacity"},
		{"bad service", Graph{Stations: []StationSpec{{ID: 1, BufferCapacity: 1, ServiceTime: Distribution{Type: "x"}}}}, "service_time_distribution"},
		{"unknown tail", Graph{Stations: []StationSpec{st(1, 1)}, Links: []LinkSpec{{Tail: 3, Head: 1, TransferTime: constant}}}, "unknown tail"},
		{"duplicate link", Graph{Stations: []StationSpec{st(1, 1)}, Links: []LinkSpec{{Tail: 1, Head: 2, TransferTime: constant}, {Tail: 1, Head: 2, TransferTime: constant}}}, "duplicate link"},
		{"negative injection", Graph{Stations: []StationSpec{st(1, 1)}, Injections: []InjectionSpec{{Station: 1, At: -1}}}, "injection 0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorContains(t, tc.graph.Validate(), tc.want)
		})
	}
}

func TestGraph_BuildAndInject(t *testing.T) {
	// GIVEN a parsed line topology with an injection plan
	g, err := Parse([]byte(lineYAML), FormatYAML)
	require.NoError(t, err)

	// WHEN it is built and its plan injected
	net, err := g.Build(sim.NewPartitionedRNG(sim.NewSimulationKey(1)))
	require.NoError(t, err)
	s := sim.NewScheduler()
	c := sim.NewController(s, net, sim.NewLocalDefaultPolicy(s), nil, sim.Config{})
	n := g.Inject(c)

	// THEN stations are ordered by id, links resolve, and count defaults to 1
	require.Len(t, net.Stations(), 2)
	assert.Equal(t, sim.StationID(1), net.Stations()[0].ID)
	assert.Equal(t, "press", net.Stations()[1].Name)
	l, ok := net.Link(1, 2)
	require.True(t, ok)
	assert.Equal(t, sim.Time(2), l.Transfer.Sample())
	assert.Equal(t, 4, n)

	require.NoError(t, c.Run(context.Background(), 0.1))
	assert.Equal(t, 4, c.Active())
}

func TestGraph_BuildIsReproducible(t *testing.T) {
	g, err := Parse([]byte(lineYAML), FormatYAML)
	require.NoError(t, err)
	a, err := g.Build(sim.NewPartitionedRNG(sim.NewSimulationKey(5)))
	require.NoError(t, err)
	b, err := g.Build(sim.NewPartitionedRNG(sim.NewSimulationKey(5)))
	require.NoError(t, err)

	sa, _ := a.Station(2)
	sb, _ := b.Station(2)
	for i := 0; i < 10; i++ {
		assert.Equal(t, sa.Service.Sample(), sb.Service.Sample())
	}
}
