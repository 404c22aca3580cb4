package timer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
)

var (
	// ErrZeroRate is returned when a timer is programmed with 0 Hz.
	ErrZeroRate = errors.New("timer: rate must be positive")
	// ErrStopped is returned when a stopped timer is re-armed.
	ErrStopped = errors.New("timer: stopped")
	// ErrRunning is returned when Start is called twice.
	ErrRunning = errors.New("timer: already running")
)

// Pender is the interrupt line a timer raises on expiry.
type Pender interface {
	Pend()
}

// Periodic is a count-down timer that restarts itself and raises its line on
// every expiry. The expiry flag stays set until Acknowledge.
type Periodic struct {
	clock clock.Clock
	line  Pender

	mu      sync.Mutex
	ticker  *clock.Ticker
	done    chan struct{}
	stopped chan struct{}
	period  time.Duration

	flag    atomic.Bool
	expired atomic.Uint64
}

// New creates a stopped timer that will fire at hz once started.
func New(clk clock.Clock, hz uint32, line Pender) (*Periodic, error) {
	period, err := Period(hz)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Periodic{clock: clk, line: line, period: period}, nil
}

// Period converts a rate to a timer period.
func Period(hz uint32) (time.Duration, error) {
	if hz == 0 {
		return 0, ErrZeroRate
	}
	return time.Second / time.Duration(hz), nil
}

// Start begins counting down.
func (p *Periodic) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ticker != nil {
		return ErrRunning
	}

	p.ticker = p.clock.Ticker(p.period)
	p.done = make(chan struct{})
	p.stopped = make(chan struct{})
	go p.run(p.ticker, p.done, p.stopped)

	return nil
}

// Stop halts the timer and waits for its goroutine to exit. Stopping a
// stopped timer is a no-op.
func (p *Periodic) Stop() {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return
	}
	p.ticker.Stop()
	close(p.done)
	stopped := p.stopped
	p.ticker = nil
	p.mu.Unlock()

	<-stopped
}

// Acknowledge clears the expiry flag.
func (p *Periodic) Acknowledge() {
	p.flag.Store(false)
}

// Asserted reports whether an expiry has not been acknowledged yet.
func (p *Periodic) Asserted() bool {
	return p.flag.Load()
}

// Rearm restarts the count-down with a period of 1/hz.
func (p *Periodic) Rearm(hz uint32) error {
	period, err := Period(hz)
	if err != nil {
		return fmt.Errorf("rearm at %d Hz: %w", hz, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ticker == nil {
		return fmt.Errorf("rearm at %d Hz: %w", hz, ErrStopped)
	}
	p.ticker.Reset(period)
	p.period = period

	return nil
}

// Period returns the programmed period.
func (p *Periodic) Period() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.period
}

// Expirations returns how many times the timer has fired.
func (p *Periodic) Expirations() uint64 {
	return p.expired.Load()
}

func (p *Periodic) run(ticker *clock.Ticker, done, stopped chan struct{}) {
	defer close(stopped)

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			p.flag.Store(true)
			p.expired.Inc()
			p.line.Pend()
		}
	}
}
