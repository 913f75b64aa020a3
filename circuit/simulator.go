package circuit

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultIdleInterval is how long the simulator sleeps between checks while
// the tick rate is zero.
const DefaultIdleInterval = 100 * time.Millisecond

// EventKind tells what a simulator Event reports.
type EventKind int

const (
	// EventRedraw means some level changed and views should be refreshed.
	EventRedraw EventKind = iota
	// EventError carries a failed plot evaluation.
	EventError
)

// An Event is sent by the simulator to the editing side.
type Event struct {
	Kind EventKind
	Err  error
}

func (e Event) String() string {
	if e.Kind == EventError {
		return "error: " + e.Err.Error()
	}
	return "redraw"
}

// A Simulator ticks a project in the background at the project's configured
// rate.
type Simulator struct {
	project *Project
	events  chan<- Event
	logger  *slog.Logger
	metrics *Metrics
	idle    time.Duration

	mu      sync.Mutex // serializes Start and Stop
	running atomic.Bool
	ticks   atomic.Uint64
	wg      sync.WaitGroup
}

// An Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithMetrics sets the metrics the simulator records to.
func WithMetrics(m *Metrics) Option {
	return func(s *Simulator) { s.metrics = m }
}

// WithIdleInterval sets the sleep used while the tick rate is zero.
func WithIdleInterval(d time.Duration) Option {
	return func(s *Simulator) { s.idle = d }
}

// NewSimulator returns a stopped simulator for p. Events are sent on events
// without blocking: when the channel is full the event is dropped, the next
// tick will send another. events may be nil.
func NewSimulator(p *Project, events chan<- Event, opts ...Option) *Simulator {
	s := &Simulator{
		project: p,
		events:  events,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		idle:    DefaultIdleInterval,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With(slog.String("component", "simulator"))
	return s
}

// Start launches the background loop. It does nothing if the simulator is
// already running.
func (s *Simulator) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running.Load() {
		return
	}
	s.running.Store(true)
	s.wg.Add(1)
	go s.run()
}

// Stop asks the background loop to exit and waits until it has. The tick in
// progress, if any, completes first.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return
	}
	s.running.Store(false)
	s.wg.Wait()
}

// Running reports whether the background loop is active.
func (s *Simulator) Running() bool { return s.running.Load() }

// Ticks returns the number of ticks run since creation.
func (s *Simulator) Ticks() uint64 { return s.ticks.Load() }

func (s *Simulator) send(e Event) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- e:
	default:
	}
}

func (s *Simulator) run() {
	defer s.wg.Done()
	s.logger.Info("started")
	for s.running.Load() {
		start := time.Now()
		s.project.Lock()
		tps := s.project.TicksPerSecond
		if tps <= 0 {
			s.project.Unlock()
			time.Sleep(s.idle)
			continue
		}
		budget := time.Second / time.Duration(tps)
		changed, errs := s.project.Tick()
		s.project.Unlock()

		elapsed := time.Since(start)
		s.ticks.Add(1)
		s.metrics.observeTick(elapsed, budget, len(errs))
		for _, err := range errs {
			s.logger.Warn("tick failed", slog.Any("err", err))
			s.send(Event{Kind: EventError, Err: err})
		}
		if changed {
			s.send(Event{Kind: EventRedraw})
		}
		if d := budget - elapsed; d > 0 {
			time.Sleep(d)
		}
	}
	s.logger.Info("stopped")
}
