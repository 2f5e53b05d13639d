package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "zero value", cfg: Config{}},
		{name: "explicit values", cfg: Config{ServiceSlots: 4, MaxInFlightPerLink: 1, NoDecision: NoDecisionFail, MonitorInterval: 10}},
		{name: "negative slots", cfg: Config{ServiceSlots: -1}, wantErr: true},
		{name: "negative link cap", cfg: Config{MaxInFlightPerLink: -2}, wantErr: true},
		{name: "unknown policy", cfg: Config{NoDecision: "ignore"}, wantErr: true},
		{name: "negative monitor interval", cfg: Config{MonitorInterval: -1}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	s := NewScheduler()

	got := Config{}.withDefaults(s)

	assert.Equal(t, DefaultServiceSlots, got.ServiceSlots)
	assert.Equal(t, NoDecisionRetry, got.NoDecision)
	assert.NotNil(t, got.Fallback)
	assert.Zero(t, got.MaxInFlightPerLink, "links stay unbounded")

	custom := NewAlternatingPolicy(s, 3, 4)
	got = Config{ServiceSlots: 1, NoDecision: NoDecisionLocal, Fallback: custom}.withDefaults(s)
	assert.Equal(t, 1, got.ServiceSlots)
	assert.Equal(t, NoDecisionLocal, got.NoDecision)
	assert.Same(t, custom, got.Fallback)
}
