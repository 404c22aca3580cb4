package irq

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"go.uber.org/atomic"
)

var (
	// ErrAlreadyRunning is returned when Run is called while another Run is active.
	ErrAlreadyRunning = errors.New("irq: controller is already running")
	// ErrBadPriority is returned when a line is registered at Thread priority.
	ErrBadPriority = errors.New("irq: priority must be above thread level")
	// ErrDuplicateLine is returned when a name or priority is registered twice.
	ErrDuplicateLine = errors.New("irq: duplicate line")
)

// Priority is a hardware interrupt priority. Larger values preempt smaller ones.
type Priority uint8

// Thread is the priority of the execution context when no handler is running.
const Thread Priority = 0

// Handler is a run-to-completion interrupt handler.
type Handler func()

// PanicFunc receives a recovered handler panic.
type PanicFunc func(line string, v any)

// Controller maps pending lines to their handlers on a single execution context.
//
// Registration and Pend are safe from any goroutine. Poll, Ceiling.Lock and
// the handlers themselves run on the execution context only: the goroutine
// inside Run, or a test driving Poll directly.
type Controller struct {
	mu    sync.Mutex
	lines []*Line // highest priority first

	// owned by the execution context
	current Priority
	ceiling Priority

	wake    chan struct{}
	running atomic.Bool
	onPanic PanicFunc
}

// New creates an empty controller. A nil onPanic logs recovered panics with
// the standard logger.
func New(onPanic PanicFunc) *Controller {
	if onPanic == nil {
		onPanic = logPanic
	}
	return &Controller{
		wake:    make(chan struct{}, 1),
		onPanic: onPanic,
	}
}

// Register adds a line with the given priority and handler.
func (c *Controller) Register(name string, prio Priority, h Handler) (*Line, error) {
	if prio == Thread {
		return nil, fmt.Errorf("register %q: %w", name, ErrBadPriority)
	}
	if h == nil {
		return nil, fmt.Errorf("register %q: nil handler", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range c.lines {
		if l.name == name || l.prio == prio {
			return nil, fmt.Errorf("register %q at priority %d: %w", name, prio, ErrDuplicateLine)
		}
	}

	l := &Line{ctl: c, name: name, prio: prio, handler: h}
	lines := append(append([]*Line(nil), c.lines...), l)
	sort.Slice(lines, func(i, j int) bool { return lines[i].prio > lines[j].prio })
	c.lines = lines

	return l, nil
}

// Run services pending lines until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	for {
		c.Poll()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		}
	}
}

// Poll is an instruction boundary. Every pending line above the effective
// priority is dispatched, highest first, nested on the caller's stack.
func (c *Controller) Poll() {
	for {
		l := c.next()
		if l == nil {
			return
		}
		c.dispatch(l)
	}
}

// Current returns the priority of the running handler, or Thread.
func (c *Controller) Current() Priority { return c.current }

// Ceiling returns a critical section that masks every line at or below prio.
func (c *Controller) Ceiling(prio Priority) Ceiling {
	return Ceiling{ctl: c, prio: prio}
}

func (c *Controller) next() *Line {
	effective := c.current
	if c.ceiling > effective {
		effective = c.ceiling
	}

	c.mu.Lock()
	lines := c.lines
	c.mu.Unlock()

	for _, l := range lines {
		if l.prio <= effective {
			return nil
		}
		if l.pending.Load() {
			return l
		}
	}
	return nil
}

func (c *Controller) dispatch(l *Line) {
	l.pending.Store(false)
	l.state.Store(uint32(Dispatched))
	prev := c.current
	c.current = l.prio

	defer func() {
		if r := recover(); r != nil {
			c.onPanic(l.name, r)
		}
		c.current = prev
		l.state.Store(uint32(Idle))
		l.dispatches.Inc()
		if src := l.loadSource(); src != nil && src.Asserted() {
			l.pending.Store(true)
		}
	}()

	l.handler()
}

func logPanic(line string, v any) {
	log.Printf("irq: handler %s panicked: %v", line, v)
}

func (c *Controller) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}
