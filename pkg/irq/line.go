package irq

import (
	"sync"

	"go.uber.org/atomic"
)

// State is the dispatch state of a line.
type State uint32

const (
	Idle State = iota
	Dispatched
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dispatched:
		return "dispatched"
	default:
		return "unknown"
	}
}

// Source is a peripheral that keeps its line asserted until acknowledged.
type Source interface {
	Asserted() bool
}

// Line is one interrupt source registered with a Controller.
type Line struct {
	ctl     *Controller
	name    string
	prio    Priority
	handler Handler

	pending    atomic.Bool
	state      atomic.Uint32
	dispatches atomic.Uint64

	srcMu  sync.Mutex
	source Source
}

// Pend marks the line pending and wakes the controller. Safe from any goroutine.
func (l *Line) Pend() {
	l.pending.Store(true)
	l.ctl.notify()
}

// Pending reports whether the line is waiting to be dispatched.
func (l *Line) Pending() bool { return l.pending.Load() }

// State returns the current dispatch state.
func (l *Line) State() State { return State(l.state.Load()) }

// Dispatches returns how many times the handler has completed.
func (l *Line) Dispatches() uint64 { return l.dispatches.Load() }

// Name returns the line name.
func (l *Line) Name() string { return l.name }

// Priority returns the line priority.
func (l *Line) Priority() Priority { return l.prio }

// Attach sets the peripheral whose flag is sampled after each dispatch.
// A source that is still asserted re-pends the line.
func (l *Line) Attach(src Source) {
	l.srcMu.Lock()
	defer l.srcMu.Unlock()
	l.source = src
}

func (l *Line) loadSource() Source {
	l.srcMu.Lock()
	defer l.srcMu.Unlock()
	return l.source
}
