package circuit

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitEvent(t *testing.T, events <-chan Event, kind EventKind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("no %v event", kind)
			return Event{}
		}
	}
}

func TestSimulatorStartStop(t *testing.T) {
	p := NewProject()
	p.TicksPerSecond = 200
	place(t, p, p.Main, "Clock", Point{0, 0})
	events := make(chan Event, 8)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s := NewSimulator(p, events, WithMetrics(m))

	s.Start()
	s.Start()
	assert.True(t, s.Running())
	waitEvent(t, events, EventRedraw)
	s.Stop()
	assert.False(t, s.Running())

	n := s.Ticks()
	assert.NotZero(t, n)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, s.Ticks())
	assert.Equal(t, float64(n), testutil.ToFloat64(m.ticks))
	s.Stop()
}

func TestSimulatorReportsErrors(t *testing.T) {
	p := NewProject()
	p.TicksPerSecond = 200
	m, err := NewCustomModule("rec", 0, 0)
	require.NoError(t, err)
	require.NoError(t, p.AddModule(m))
	place(t, p, m.Custom.Plot, "rec", Point{0, 0})

	events := make(chan Event, 8)
	s := NewSimulator(p, events)
	s.Start()
	defer s.Stop()

	e := waitEvent(t, events, EventError)
	var rerr *RecursionError
	assert.True(t, errors.As(e.Err, &rerr))
	assert.Contains(t, e.String(), "error: ")
}

func TestSimulatorIdlesAtZeroRate(t *testing.T) {
	p := NewProject()
	p.TicksPerSecond = 0
	s := NewSimulator(p, nil, WithIdleInterval(time.Millisecond))
	s.Start()
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, s.Ticks())

	p.Lock()
	p.TicksPerSecond = 500
	p.Unlock()
	assert.Eventually(t, func() bool { return s.Ticks() > 0 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestEditsInterleaveWithTicks(t *testing.T) {
	p := NewProject()
	p.TicksPerSecond = 1000
	s := NewSimulator(p, nil)
	stack := NewActionStack(p, p.Main, 0)
	s.Start()
	for i := 0; i < 50; i++ {
		require.NoError(t, stack.Add(&PlaceBlock{Module: "Clock", Pos: Point{0, i * 4}}))
	}
	for stack.CanUndo() {
		require.NoError(t, stack.Undo())
	}
	s.Stop()
	assert.Empty(t, p.Main.Blocks)
}

func TestMetricsOverrun(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.observeTick(2*time.Millisecond, time.Millisecond, 2)
	m.observeTick(time.Millisecond, 2*time.Millisecond, 0)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ticks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.overruns))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.evalErrors))

	m.observeHistory(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.historySize))

	var none *Metrics
	none.observeTick(time.Second, time.Millisecond, 1)
	none.observeHistory(1)
}
