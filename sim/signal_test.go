package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignal_WaitersResumeThroughSchedulerInOrder(t *testing.T) {
	s := NewScheduler()
	sig := NewSignal[int](s)
	var got []int
	sig.Wait(func(v int) { got = append(got, v) })
	sig.Wait(func(v int) { got = append(got, v*10) })

	assert.True(t, sig.Fire(7))
	assert.Empty(t, got, "waiters must not run synchronously inside Fire")

	require.NoError(t, s.Run(context.Background(), Forever, 0))
	assert.Equal(t, []int{7, 70}, got)
}

func TestSignal_FiresOnce(t *testing.T) {
	s := NewScheduler()
	sig := NewSignal[string](s)
	assert.False(t, sig.Done())

	assert.True(t, sig.Fire("a"))
	assert.False(t, sig.Fire("b"))
	assert.True(t, sig.Done())
	assert.Equal(t, "a", sig.Value())
}

func TestSignal_WaitAfterFireResumesAtCurrentInstant(t *testing.T) {
	s := NewScheduler()
	sig := Fired(s, 3)
	var at Time = -1
	s.After(4, func() {
		sig.Wait(func(v int) {
			at = s.Now()
			assert.Equal(t, 3, v)
		})
	})
	require.NoError(t, s.Run(context.Background(), Forever, 0))
	assert.Equal(t, Time(4), at)
}

func TestSignal_NilContinuationPanics(t *testing.T) {
	sig := NewSignal[int](NewScheduler())
	assert.Panics(t, func() { sig.Wait(nil) })
	assert.Panics(t, func() { NewSignal[int](nil) })
}
