package topology

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/traysim/traysim/sim"
)

var (
	// ErrUnknownDistribution is returned for an unsupported distribution type.
	ErrUnknownDistribution = errors.New("unknown distribution type")
	// ErrParameterCount is returned when a distribution has the wrong number of parameters.
	ErrParameterCount = errors.New("wrong number of distribution parameters")
)

// Distribution is a time distribution as written in a topology file.
type Distribution struct {
	Type       string    `yaml:"type" json:"type"`
	Parameters []float64 `yaml:"parameters" json:"parameters"`
}

// distributionParams maps each supported type to its parameter names, in
// file order.
var distributionParams = map[string][]string{
	"uniform":     {"low", "high"},
	"normal":      {"mean", "stddev"},
	"constant":    {"value"},
	"exponential": {"mean"},
	"triangular":  {"left", "right", "mode"},
	"weibull":     {"shape", "scale"},
}

// Validate checks the type, the parameter count and the parameter ranges.
func (d Distribution) Validate() error {
	names, ok := distributionParams[d.Type]
	if !ok {
		return fmt.Errorf("%w %q; valid: uniform, normal, constant, exponential, triangular, weibull", ErrUnknownDistribution, d.Type)
	}
	if len(d.Parameters) != len(names) {
		return fmt.Errorf("%w: %s requires %d (%v), got %d", ErrParameterCount, d.Type, len(names), names, len(d.Parameters))
	}
	for i, p := range d.Parameters {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%s %s must be finite, got %v", d.Type, names[i], p)
		}
	}
	p := d.Parameters
	switch d.Type {
	case "uniform":
		if p[0] > p[1] {
			return fmt.Errorf("uniform low %v must not exceed high %v", p[0], p[1])
		}
	case "normal":
		if p[1] < 0 {
			return fmt.Errorf("normal stddev must be >= 0, got %v", p[1])
		}
	case "exponential":
		if p[0] < 0 {
			return fmt.Errorf("exponential mean must be >= 0, got %v", p[0])
		}
	case "triangular":
		if !(p[0] < p[1]) || p[2] < p[0] || p[2] > p[1] {
			return fmt.Errorf("triangular requires left < right and left <= mode <= right, got %v", p)
		}
	case "weibull":
		if p[0] <= 0 || p[1] < 0 {
			return fmt.Errorf("weibull requires shape > 0 and scale >= 0, got %v", p)
		}
	}
	return nil
}

// Sampler builds a DurationSampler drawing from rng. Every sample is passed
// through sim.SafeDuration.
func (d Distribution) Sampler(rng *rand.Rand) (sim.DurationSampler, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	p := d.Parameters
	var r distuv.Rander
	switch d.Type {
	case "constant":
		return sim.Constant(sim.SafeDuration(p[0])), nil
	case "uniform":
		r = distuv.Uniform{Min: p[0], Max: p[1], Src: rng}
	case "normal":
		r = distuv.Normal{Mu: p[0], Sigma: p[1], Src: rng}
	case "exponential":
		r = distuv.Exponential{Rate: 1 / p[0], Src: rng}
	case "triangular":
		r = distuv.NewTriangle(p[0], p[1], p[2], rng)
	case "weibull":
		r = distuv.Weibull{K: p[0], Lambda: p[1], Src: rng}
	}
	return randerSampler{r: r}, nil
}

type randerSampler struct {
	r distuv.Rander
}

func (s randerSampler) Sample() sim.Time {
	return sim.SafeDuration(s.r.Rand())
}
