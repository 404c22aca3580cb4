package sensor

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/itohio/moistblink/pkg/config"
)

// ErrInjected is returned by Mock reads that were configured to fail.
var ErrInjected = errors.New("injected read failure")

// Mock simulates a moisture probe that slowly cycles between wet and dry.
type Mock struct {
	cfg   *config.MockConfig
	clock clock.Clock

	mu        sync.Mutex
	connected bool
	startTime time.Time
	reads     int
}

// NewMock creates a new mocked probe. A nil clock uses the wall clock.
func NewMock(cfg *config.MockConfig, clk clock.Clock) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}
	if clk == nil {
		clk = clock.New()
	}

	return &Mock{
		cfg:   cfg,
		clock: clk,
	}
}

// Connect simulates connecting to the probe.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	m.startTime = m.clock.Now()
	m.reads = 0

	return nil
}

// Close stops the mocked probe.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	return nil
}

// IsConnected returns whether the probe is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Read returns a simulated reading.
func (m *Mock) Read() (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return 0, ErrNotConnected
	}

	m.reads++
	if m.cfg.FailEvery > 0 && m.reads%m.cfg.FailEvery == 0 {
		return 0, fmt.Errorf("read %d: %w", m.reads, ErrInjected)
	}

	return m.generateReading(m.clock.Since(m.startTime)), nil
}

// generateReading computes the reading at elapsed time since Connect.
func (m *Mock) generateReading(elapsed time.Duration) uint16 {
	value := m.cfg.Base
	if m.cfg.Period > 0 {
		phase := 2 * math.Pi * elapsed.Seconds() / m.cfg.Period.Seconds()
		value += m.cfg.Amplitude * math.Sin(phase)
	}

	// Deterministic pseudo-noise so tests stay reproducible
	noise := (math.Sin(float64(elapsed.Nanoseconds())*0.001) +
		math.Cos(float64(elapsed.Nanoseconds())*0.0013)) *
		m.cfg.NoiseLevel * 0.5
	value += noise

	return clampReading(value)
}

// clampReading rounds down and clamps value to the 12-bit ADC range.
func clampReading(value float64) uint16 {
	if value < 0 {
		return 0
	}
	if value > MaxReading {
		return MaxReading
	}
	return uint16(value)
}
