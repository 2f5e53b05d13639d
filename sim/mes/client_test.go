package mes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traysim/traysim/sim"
	"github.com/traysim/traysim/sim/transport"
)

// fakeChannel records sent frames and feeds received frames from a channel.
type fakeChannel struct {
	mu        sync.Mutex
	sent      []transport.Frame
	sendErr   error
	inbound   chan transport.Frame
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{inbound: make(chan transport.Frame, 16), closed: make(chan struct{})}
}

func (f *fakeChannel) Connect(context.Context) error { return nil }

func (f *fakeChannel) Send(fr transport.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, fr)
	return nil
}

func (f *fakeChannel) Receive() (transport.Frame, error) {
	select {
	case fr := <-f.inbound:
		return fr, nil
	case <-f.closed:
		return transport.Frame{}, transport.ErrNotConnected
	}
}

func (f *fakeChannel) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeChannel) Sent() []transport.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Frame(nil), f.sent...)
}

func newClient(timeout sim.Time) (*sim.Scheduler, *fakeChannel, *CorrelationClient) {
	s := sim.NewScheduler()
	ch := newFakeChannel()
	return s, ch, NewCorrelationClient(s, ch, Config{Timeout: timeout})
}

func drain(t *testing.T, s *sim.Scheduler) {
	t.Helper()
	require.NoError(t, s.Run(context.Background(), sim.Forever, 0))
}

func TestCorrelationClient_MatchesAnswerAtNextPump(t *testing.T) {
	// GIVEN an outstanding action query
	s, ch, c := newClient(2)
	sig, err := c.Request(MsgActionQuery, 3, 7)
	require.NoError(t, err)
	require.Len(t, ch.Sent(), 1)
	assert.Equal(t, MsgActionQuery, ch.Sent()[0].Type)
	assert.Equal(t, []byte{3, 0, 0, 0, 7, 0, 0, 0}, ch.Sent()[0].Body)

	// WHEN the answer is delivered
	c.Deliver(Response{Station: 3, Tray: 7, Order: 70, Action: ActionExecute})
	var at sim.Time
	sig.Wait(func(sim.Decision) { at = s.Now() })
	drain(t, s)

	// THEN the signal fires with the decoded decision at the first pump tick
	assert.Equal(t, sim.Decision{Workpiece: 70, Directive: sim.Execute{}}, sig.Value())
	assert.Equal(t, DefaultPumpInterval, at)
	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, Stats{Sent: 1, Matched: 1}, c.Stats())
}

func TestCorrelationClient_OutOfOrderAnswers(t *testing.T) {
	s, _, c := newClient(2)
	a, err := c.Request(MsgActionQuery, 1, 1)
	require.NoError(t, err)
	b, err := c.Request(MsgActionDoneQuery, 2, 1)
	require.NoError(t, err)

	c.Deliver(Response{Station: 2, Tray: 1, Order: 1, Action: ActionRelease, NextStation: 5})
	c.Deliver(Response{Station: 1, Tray: 1, Order: 1, Action: ActionExecute})
	drain(t, s)

	assert.Equal(t, sim.Execute{}, a.Value().Directive)
	assert.Equal(t, sim.Release{Target: 5}, b.Value().Directive)
}

func TestCorrelationClient_TimeoutIsExact(t *testing.T) {
	// GIVEN a 0.5 timeout and a request issued at t=3
	s, _, c := newClient(0.5)
	var sig *sim.Signal[sim.Decision]
	s.After(3, func() {
		var err error
		sig, err = c.Request(MsgActionQuery, 1, 1)
		require.NoError(t, err)
	})

	// WHEN no answer ever arrives
	require.NoError(t, s.Run(context.Background(), 3.5, 0))

	// THEN nothing has fired before t=3.5
	require.NotNil(t, sig)
	assert.False(t, sig.Done())

	var at sim.Time
	sig.Wait(func(d sim.Decision) {
		at = s.Now()
		assert.False(t, d.Decided())
	})
	drain(t, s)

	// AND the sentinel is delivered exactly at the deadline
	assert.Equal(t, sim.Time(3.5), at)
	assert.Equal(t, 1, c.Stats().TimedOut)
	assert.Equal(t, 0, c.Pending())
}

func TestCorrelationClient_LateAndDuplicateAnswersAreStale(t *testing.T) {
	s, _, c := newClient(0.5)
	sig, err := c.Request(MsgActionQuery, 1, 1)
	require.NoError(t, err)
	c.Deliver(Response{Station: 1, Tray: 1, Action: ActionExecute})
	c.Deliver(Response{Station: 1, Tray: 1, Action: ActionRelease, NextStation: 2})
	drain(t, s)
	assert.Equal(t, sim.Execute{}, sig.Value().Directive, "first answer wins")

	// an answer after the timeout is discarded too
	late, err := c.Request(MsgActionQuery, 1, 2)
	require.NoError(t, err)
	drain(t, s)
	c.Deliver(Response{Station: 1, Tray: 2, Action: ActionExecute})
	_, err = c.Request(MsgActionQuery, 9, 9)
	require.NoError(t, err)
	drain(t, s)

	assert.False(t, late.Value().Decided())
	assert.Equal(t, 2, c.Stats().Stale)
}

func TestCorrelationClient_LateAnswerDoesNotResolveNextQueryOnSameKey(t *testing.T) {
	// GIVEN an action query on (station 1, tray 1) that timed out
	s, _, c := newClient(0.5)
	abandoned, err := c.Request(MsgActionQuery, 1, 1)
	require.NoError(t, err)
	drain(t, s)
	require.False(t, abandoned.Value().Decided())

	// WHEN its execute answer arrives late and a routing query reuses the key
	c.Deliver(Response{Station: 1, Tray: 1, Action: ActionExecute})
	routing, err := c.Request(MsgActionDoneQuery, 1, 1)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background(), s.Now()+0.25, 0))

	// THEN the late answer is stale and the routing query is still waiting
	assert.False(t, routing.Done())
	assert.Equal(t, 1, c.Pending())
	assert.Equal(t, 1, c.Stats().Stale)
	assert.Equal(t, 0, c.Stats().Matched)

	// AND the real answer still resolves it
	c.Deliver(Response{Station: 1, Tray: 1, Order: 4, Action: ActionRelease, NextStation: 2})
	drain(t, s)
	assert.Equal(t, sim.Decision{Workpiece: 4, Directive: sim.Release{Target: 2}}, routing.Value())
}

func TestCorrelationClient_RejectsPendingKey(t *testing.T) {
	// GIVEN an outstanding request for (station 1, tray 1)
	s, ch, c := newClient(2)
	first, err := c.Request(MsgActionQuery, 1, 1)
	require.NoError(t, err)

	// WHEN the same key is requested again
	second, err := c.Request(MsgActionDoneQuery, 1, 1)

	// THEN it is refused without disturbing the first
	assert.ErrorIs(t, err, ErrCorrelationPending)
	assert.True(t, second.Done())
	assert.False(t, second.Value().Decided())
	assert.Len(t, ch.Sent(), 1)

	// same tray at another station is a different key
	_, err = c.Request(MsgActionQuery, 2, 1)
	require.NoError(t, err)

	c.Deliver(Response{Station: 1, Tray: 1, Action: ActionExecute})
	drain(t, s)
	assert.Equal(t, sim.Execute{}, first.Value().Directive)
	assert.Equal(t, 1, c.Stats().Rejected)
}

func TestCorrelationClient_SendFailureTimesOut(t *testing.T) {
	s, ch, c := newClient(0.5)
	ch.sendErr = errors.New("broken pipe")

	sig, err := c.Request(MsgActionQuery, 1, 1)
	require.NoError(t, err)
	assert.False(t, sig.Done(), "a failed send still waits for the deadline")

	var at sim.Time
	sig.Wait(func(sim.Decision) { at = s.Now() })
	drain(t, s)
	assert.Equal(t, sim.Time(0.5), at)
	assert.False(t, sig.Value().Decided())
	assert.Equal(t, 1, c.Stats().SendErrors)
	assert.Equal(t, 0, c.Stats().Sent)
}

func TestCorrelationClient_MalformedAnswerIsIgnored(t *testing.T) {
	s, _, c := newClient(0.5)
	sig, err := c.Request(MsgActionQuery, 1, 1)
	require.NoError(t, err)
	c.Deliver(Response{Station: 1, Tray: 1, Action: 42})
	drain(t, s)

	assert.False(t, sig.Value().Decided())
	assert.Equal(t, 1, c.Stats().Malformed)
	assert.Equal(t, 1, c.Stats().TimedOut)
}

func TestCorrelationClient_PumpStopsWhenIdle(t *testing.T) {
	s, _, c := newClient(2)
	_, err := c.Request(MsgActionQuery, 1, 1)
	require.NoError(t, err)
	c.Deliver(Response{Station: 1, Tray: 1, Action: ActionExecute})

	require.NoError(t, s.Run(context.Background(), 1, 0))

	// only the (now inert) deadline of the answered request is left
	assert.Equal(t, 1, s.Pending())
	assert.Equal(t, uint64(1), s.Steps(), "a single pump tick")
}

func TestCorrelationClient_ReceiveLoop(t *testing.T) {
	// GIVEN a started client
	s, ch, c := newClient(2)
	require.NoError(t, c.Start(context.Background()))
	sig, err := c.Request(MsgActionQuery, 4, 5)
	require.NoError(t, err)

	// WHEN frames arrive: noise, a short body, then the answer
	ch.inbound <- transport.Frame{Type: 0x9999, Body: []byte{1}}
	ch.inbound <- transport.Frame{Type: MsgActionResponse, Body: []byte{1, 2, 3}}
	ch.inbound <- ResponseFrame(Response{Station: 4, Tray: 5, Order: 6, Action: ActionRelease, NextStation: 1})
	assert.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.inbox) == 1
	}, time.Second, time.Millisecond)
	drain(t, s)

	// THEN only the answer is matched
	assert.Equal(t, sim.Decision{Workpiece: 6, Directive: sim.Release{Target: 1}}, sig.Value())
	assert.Equal(t, 1, c.Stats().Malformed)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestNewCorrelationClient_Defaults(t *testing.T) {
	c := NewCorrelationClient(sim.NewScheduler(), newFakeChannel(), Config{})
	assert.Equal(t, Config{Timeout: DefaultTimeout, PumpInterval: DefaultPumpInterval}, c.Config())
	assert.Panics(t, func() { NewCorrelationClient(nil, newFakeChannel(), Config{}) })
}
