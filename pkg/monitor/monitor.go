package monitor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/itohio/moistblink/pkg/config"
	"github.com/itohio/moistblink/pkg/task"
)

var _ task.Output = (*Monitor)(nil)

// ErrInjected is returned by writes that were configured to fail.
var ErrInjected = errors.New("injected write failure")

// Edge is one applied output level.
type Edge struct {
	Timestamp time.Time
	Level     bool
}

// Monitor is an output that records every applied level in a time window and
// reports the toggle rate it observes.
type Monitor struct {
	clock     clock.Clock
	window    time.Duration
	failEvery int

	// Both buffers are FIFO, oldest first. intervals[i] is the time between
	// edges[i] and edges[i+1], so n edges always have n-1 intervals.
	mu        sync.RWMutex
	edges     []Edge
	intervals []time.Duration
	level     bool
	writes    int

	callbacks []func(edges []Edge, intervals []time.Duration)
	cbMu      sync.RWMutex
}

// New creates a Monitor. A nil clock uses the wall clock and a window that
// is not positive uses the default.
func New(cfg *config.MonitorConfig, clk clock.Clock) *Monitor {
	def := config.Default().Monitor
	if cfg == nil {
		cfg = &def
	}
	if clk == nil {
		clk = clock.New()
	}
	window := time.Duration(cfg.WindowSeconds * float64(time.Second))
	if window <= 0 {
		window = time.Duration(def.WindowSeconds * float64(time.Second))
	}
	return &Monitor{
		clock:     clk,
		window:    window,
		failEvery: cfg.FailEvery,
		edges:     make([]Edge, 0),
		intervals: make([]time.Duration, 0),
	}
}

// Set applies a level. It runs on the execution context, so callbacks must
// return quickly.
func (m *Monitor) Set(high bool) error {
	m.mu.Lock()
	m.writes++
	if m.failEvery > 0 && m.writes%m.failEvery == 0 {
		writes := m.writes
		m.mu.Unlock()
		return fmt.Errorf("write %d: %w", writes, ErrInjected)
	}
	m.record(Edge{Timestamp: m.clock.Now(), Level: high})
	m.mu.Unlock()

	m.notifyCallbacks()
	return nil
}

// record appends an edge and drops everything outside the window. Caller holds mu.
func (m *Monitor) record(e Edge) {
	m.level = e.Level
	m.edges = append(m.edges, e)
	if n := len(m.edges); n >= 2 {
		m.intervals = append(m.intervals, e.Timestamp.Sub(m.edges[n-2].Timestamp))
	}

	cutoff := e.Timestamp.Add(-m.window)
	drop := 0
	for drop < len(m.edges) && !m.edges[drop].Timestamp.After(cutoff) {
		drop++
	}
	if drop == 0 {
		return
	}
	m.edges = m.edges[drop:]
	if drop <= len(m.intervals) {
		m.intervals = m.intervals[drop:]
	} else {
		m.intervals = m.intervals[:0]
	}
}

// Level returns the last applied level.
func (m *Monitor) Level() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

// Edges returns a copy of the edges in the window.
func (m *Monitor) Edges() []Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Edge, len(m.edges))
	copy(result, m.edges)
	return result
}

// Intervals returns a copy of the intervals between edges in the window.
func (m *Monitor) Intervals() []time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]time.Duration, len(m.intervals))
	copy(result, m.intervals)
	return result
}

// Snapshot returns copies of the edges and intervals taken under one lock,
// so len(intervals) == max(len(edges)-1, 0) always holds.
func (m *Monitor) Snapshot() ([]Edge, []time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	edges := make([]Edge, len(m.edges))
	copy(edges, m.edges)
	intervals := make([]time.Duration, len(m.intervals))
	copy(intervals, m.intervals)
	return edges, intervals
}

// Frequency returns the observed toggle rate in Hz, or 0 with fewer than two edges.
func (m *Monitor) Frequency() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.intervals) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range m.intervals {
		total += d
	}
	if total <= 0 {
		return 0
	}
	return float64(len(m.intervals)) / total.Seconds()
}

// OnUpdate registers a callback invoked after every recorded edge.
func (m *Monitor) OnUpdate(callback func(edges []Edge, intervals []time.Duration)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// notifyCallbacks invokes all registered callbacks with copies of the current data.
func (m *Monitor) notifyCallbacks() {
	m.cbMu.RLock()
	callbacks := make([]func(edges []Edge, intervals []time.Duration), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.cbMu.RUnlock()

	if len(callbacks) == 0 {
		return
	}

	edges, intervals := m.Snapshot()
	for _, cb := range callbacks {
		if cb != nil {
			cb(edges, intervals)
		}
	}
}
