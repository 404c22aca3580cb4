package sensor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	// DefaultBaudRate is the baud rate the firmware streams readings at.
	DefaultBaudRate = 115200
	// DefaultMaxAge is how old the latest reading may be before Read fails.
	DefaultMaxAge = 2 * time.Second
	// MaxReading is the largest 12-bit ADC value.
	MaxReading = 4095
)

var (
	// ErrNotConnected is returned by Read before Connect or after Close.
	ErrNotConnected = errors.New("not connected")
	// ErrNoReading is returned when no reading has arrived yet.
	ErrNoReading = errors.New("no reading received")
	// ErrStale is returned when the latest reading is older than the max age.
	ErrStale = errors.New("reading is stale")
)

// RawSample represents one reading streamed by the probe.
type RawSample struct {
	Timestamp time.Time // Probe timestamp
	Received  time.Time // Local arrival time
	Reading   uint16    // 12-bit ADC reading (0-4095)
}

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial reads moisture samples streamed by a probe MCU and serves the latest one.
type Serial struct {
	port     string
	baudRate int
	maxAge   time.Duration
	clock    clock.Clock
	logger   *zap.SugaredLogger
	open     func(port string, mode *serial.Mode) (io.ReadWriteCloser, error)

	mu        sync.RWMutex
	conn      io.ReadWriteCloser
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
	latest    RawSample
	received  bool
}

// SerialOption configures a Serial.
type SerialOption func(*Serial)

// WithClock sets the clock used to judge reading age.
func WithClock(clk clock.Clock) SerialOption {
	return func(s *Serial) { s.clock = clk }
}

// WithLogger sets the logger for parse and I/O errors.
func WithLogger(logger *zap.SugaredLogger) SerialOption {
	return func(s *Serial) { s.logger = logger }
}

// WithOpener replaces the function used to open the port.
func WithOpener(open func(port string, mode *serial.Mode) (io.ReadWriteCloser, error)) SerialOption {
	return func(s *Serial) { s.open = open }
}

// NewSerial creates a new Serial probe with the specified port, baud rate and max reading age.
func NewSerial(port string, baudRate int, maxAge time.Duration, opts ...SerialOption) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if maxAge == 0 {
		maxAge = DefaultMaxAge
	}

	s := &Serial{
		port:     port,
		baudRate: baudRate,
		maxAge:   maxAge,
		clock:    clock.New(),
		logger:   zap.NewNop().Sugar(),
		open:     openPort,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func openPort(port string, mode *serial.Mode) (io.ReadWriteCloser, error) {
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Connect connects to the serial port and starts reading samples.
func (s *Serial) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}

	conn, err := s.open(s.port, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}

	s.conn = conn
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.done = make(chan struct{})
	s.connected = true
	s.received = false

	go s.readSamples(s.ctx, conn, s.done)

	return nil
}

// Close closes the connection and waits for the reader to stop.
func (s *Serial) Close() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil
	}

	s.cancel()
	var err error
	if s.conn != nil {
		if cerr := s.conn.Close(); cerr != nil {
			err = fmt.Errorf("failed to close serial port %s: %w", s.port, cerr)
		}
		s.conn = nil
	}
	s.connected = false
	done := s.done
	s.mu.Unlock()

	<-done
	return err
}

// IsConnected returns whether the probe is currently connected.
func (s *Serial) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Read returns the latest reading. It never blocks.
func (s *Serial) Read() (uint16, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return 0, ErrNotConnected
	}
	if !s.received {
		return 0, ErrNoReading
	}
	if age := s.clock.Since(s.latest.Received); age > s.maxAge {
		return 0, fmt.Errorf("%w: %s old", ErrStale, age)
	}
	return s.latest.Reading, nil
}

// Latest returns the latest sample and whether one has been received.
func (s *Serial) Latest() (RawSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.received
}

// readSamples reads lines from the serial port and parses them into RawSample.
func (s *Serial) readSamples(ctx context.Context, conn io.Reader, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("panic in serial reader", "panic", r)
		}
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		sample, err := parseLine(line)
		if err != nil {
			s.logger.Debugw("failed to parse line", "line", line, "error", err)
			continue
		}
		// The probe clock is not synchronized with ours; age is judged on arrival.
		sample.Received = s.clock.Now()

		s.mu.Lock()
		s.latest = sample
		s.received = true
		s.mu.Unlock()
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.logger.Warnw("error reading from serial port", "port", s.port, "error", err)
	}
}

// parseLine parses a line from the probe into a RawSample.
// Format: unix_micros,reading
// Example: 1234567890123,2048
func parseLine(line string) (RawSample, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return RawSample{}, fmt.Errorf("invalid line format: expected 2 comma-separated values, got %d", len(parts))
	}

	timestampMicros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	timestamp := time.Unix(0, timestampMicros*1000) // Convert microseconds to nanoseconds

	reading, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid reading: %w", err)
	}
	if reading > MaxReading {
		return RawSample{}, fmt.Errorf("reading out of range: %d (max %d)", reading, MaxReading)
	}

	return RawSample{
		Timestamp: timestamp,
		Reading:   uint16(reading),
	}, nil
}
