package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimulationKey_Creation(t *testing.T) {
	for _, seed := range []int64{42, 0, -1, math.MaxInt64, math.MinInt64} {
		assert.Equal(t, seed, int64(NewSimulationKey(seed)))
	}
}

func TestPartitionedRNG_DeterministicDerivation(t *testing.T) {
	// Same key and name produce the same sequence
	rng1 := NewPartitionedRNG(NewSimulationKey(42))
	rng2 := NewPartitionedRNG(NewSimulationKey(42))
	for i := 0; i < 5; i++ {
		assert.Equal(t,
			rng1.ForSubsystem(SubsystemStation(1)).Float64(),
			rng2.ForSubsystem(SubsystemStation(1)).Float64())
	}
}

func TestPartitionedRNG_SubsystemIsolation(t *testing.T) {
	// Drawing from one link does not perturb a station's stream
	a := NewPartitionedRNG(NewSimulationKey(7))
	b := NewPartitionedRNG(NewSimulationKey(7))
	for i := 0; i < 100; i++ {
		b.ForSubsystem(SubsystemLink(1, 2)).Float64()
	}
	assert.Equal(t,
		a.ForSubsystem(SubsystemStation(3)).Float64(),
		b.ForSubsystem(SubsystemStation(3)).Float64())
}

func TestPartitionedRNG_DistinctStreams(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey(42))
	assert.NotEqual(t,
		rng.ForSubsystem(SubsystemStation(1)).Uint64(),
		rng.ForSubsystem(SubsystemStation(2)).Uint64())
	assert.NotEqual(t,
		NewPartitionedRNG(NewSimulationKey(1)).ForSubsystem("x").Uint64(),
		NewPartitionedRNG(NewSimulationKey(2)).ForSubsystem("x").Uint64())
}

func TestPartitionedRNG_Caching(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey(42))
	assert.Same(t, rng.ForSubsystem("link_1_2"), rng.ForSubsystem(SubsystemLink(1, 2)))
	assert.Equal(t, NewSimulationKey(42), rng.Key())
}

func TestSubsystemNames(t *testing.T) {
	assert.Equal(t, "station_12", SubsystemStation(12))
	assert.Equal(t, "link_3_4", SubsystemLink(3, 4))
}
