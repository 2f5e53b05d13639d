// Package topology loads station networks from YAML or JSON files and turns
// them into a sim.Network with seeded duration samplers.
package topology

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/traysim/traysim/sim"
)

// Format is a topology file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// StationSpec describes one station.
type StationSpec struct {
	ID             uint32       `yaml:"id" json:"id"`
	Name           string       `yaml:"name" json:"name"`
	BufferCapacity int          `yaml:"buffer_capacity" json:"buffer_capacity"`
	ServiceTime    Distribution `yaml:"service_time_distribution" json:"service_time_distribution"`
}

// LinkSpec describes one directed link.
type LinkSpec struct {
	Tail         uint32       `yaml:"tail" json:"tail"`
	Head         uint32       `yaml:"head" json:"head"`
	TransferTime Distribution `yaml:"transfer_time_distribution" json:"transfer_time_distribution"`
}

// InjectionSpec schedules Count trays at Station, starting at At and spaced
// by Interval. Count 0 means 1.
type InjectionSpec struct {
	Station  uint32  `yaml:"station" json:"station"`
	At       float64 `yaml:"at" json:"at"`
	Count    int     `yaml:"count" json:"count"`
	Interval float64 `yaml:"interval" json:"interval"`
}

// Graph is the file model of a station network. JSON files use the
// vertices/arcs naming of the original graph model format.
type Graph struct {
	Name       string          `yaml:"name" json:"name"`
	Stations   []StationSpec   `yaml:"stations" json:"vertices"`
	Links      []LinkSpec      `yaml:"links" json:"arcs"`
	Injections []InjectionSpec `yaml:"injections" json:"injections"`
}

// Load reads a topology file; the format follows the extension (.json, else YAML).
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topology: %w", err)
	}
	format := FormatYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = FormatJSON
	}
	g, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	if g.Name == "" {
		g.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return g, nil
}

// Parse decodes a topology document. Parsing is strict in both formats:
// unrecognized keys (typos) are rejected.
func Parse(data []byte, format Format) (*Graph, error) {
	var g Graph
	switch format {
	case FormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&g); err != nil {
			return nil, fmt.Errorf("parsing topology: %w", err)
		}
	case FormatYAML:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&g); err != nil {
			return nil, fmt.Errorf("parsing topology: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown topology format %q", format)
	}
	return &g, nil
}

// Validate checks every station, link and injection. The first problem found
// is returned.
func (g *Graph) Validate() error {
	if len(g.Stations) == 0 {
		return fmt.Errorf("topology %q has no stations", g.Name)
	}
	seen := make(map[uint32]bool, len(g.Stations))
	for _, st := range g.Stations {
		if seen[st.ID] {
			return fmt.Errorf("duplicate station id %d", st.ID)
		}
		seen[st.ID] = true
		if st.BufferCapacity < 1 {
			return fmt.Errorf("station %d: buffer_capacity must be >= 1, got %d", st.ID, st.BufferCapacity)
		}
		if err := st.ServiceTime.Validate(); err != nil {
			return fmt.Errorf("station %d service_time_distribution: %w", st.ID, err)
		}
	}
	links := make(map[[2]uint32]bool, len(g.Links))
	for _, l := range g.Links {
		k := [2]uint32{l.Tail, l.Head}
		if links[k] {
			return fmt.Errorf("duplicate link %d->%d", l.Tail, l.Head)
		}
		links[k] = true
		if !seen[l.Tail] {
			return fmt.Errorf("link %d->%d: unknown tail station %d", l.Tail, l.Head, l.Tail)
		}
		if err := l.TransferTime.Validate(); err != nil {
			return fmt.Errorf("link %d->%d transfer_time_distribution: %w", l.Tail, l.Head, err)
		}
	}
	for i, inj := range g.Injections {
		if inj.At < 0 || inj.Interval < 0 || inj.Count < 0 {
			return fmt.Errorf("injection %d: at, interval and count must be >= 0", i)
		}
	}
	return nil
}

// Build validates the graph and creates the network, giving every station
// and link its own random stream from rng.
func (g *Graph) Build(rng *sim.PartitionedRNG) (*sim.Network, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	stations := make([]*sim.Station, 0, len(g.Stations))
	for _, spec := range g.Stations {
		id := sim.StationID(spec.ID)
		service, err := spec.ServiceTime.Sampler(rng.ForSubsystem(sim.SubsystemStation(id)))
		if err != nil {
			return nil, fmt.Errorf("station %d: %w", spec.ID, err)
		}
		stations = append(stations, &sim.Station{
			ID:             id,
			Name:           spec.Name,
			BufferCapacity: spec.BufferCapacity,
			Service:        service,
		})
	}
	links := make([]*sim.Link, 0, len(g.Links))
	for _, spec := range g.Links {
		tail, head := sim.StationID(spec.Tail), sim.StationID(spec.Head)
		transfer, err := spec.TransferTime.Sampler(rng.ForSubsystem(sim.SubsystemLink(tail, head)))
		if err != nil {
			return nil, fmt.Errorf("link %d->%d: %w", spec.Tail, spec.Head, err)
		}
		links = append(links, &sim.Link{Tail: tail, Head: head, Transfer: transfer})
	}
	return sim.NewNetwork(stations, links)
}

// Inject schedules the graph's injection plan on c.
func (g *Graph) Inject(c *sim.Controller) int {
	n := 0
	for _, inj := range g.Injections {
		count := inj.Count
		if count == 0 {
			count = 1
		}
		n += len(c.InjectTrays(sim.StationID(inj.Station), sim.Time(inj.At), count, sim.Time(inj.Interval)))
	}
	return n
}
