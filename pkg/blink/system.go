package blink

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/itohio/moistblink/pkg/diag"
	"github.com/itohio/moistblink/pkg/fault"
	"github.com/itohio/moistblink/pkg/irq"
	"github.com/itohio/moistblink/pkg/rate"
	"github.com/itohio/moistblink/pkg/task"
	"github.com/itohio/moistblink/pkg/timer"
)

const (
	// SamplePriority is the priority of the sampling timer line.
	SamplePriority irq.Priority = 2
	// TogglePriority is the priority of the toggle timer line.
	TogglePriority irq.Priority = 1
	// DefaultMaxReinit is the default re-initialization limit.
	DefaultMaxReinit = 3
)

// ErrReinitExhausted is returned when timers keep failing after re-initialization.
var ErrReinitExhausted = errors.New("blink: re-initialization limit reached")

var errReinit = errors.New("re-initialization requested")

// Timer is a task timer that the system can start, stop and sample.
type Timer interface {
	task.Timer
	irq.Source
	Start() error
	Stop()
}

// TimerFactory builds a stopped timer that raises line at hz.
type TimerFactory func(clk clock.Clock, hz uint32, line timer.Pender) (Timer, error)

// Options configures a System.
type Options struct {
	Sensor task.Sensor
	Output task.Output

	// Clock drives both timers. Defaults to the wall clock.
	Clock clock.Clock
	// Timers builds the timers. Defaults to timer.New.
	Timers TimerFactory
	// Reporter receives every fault in addition to the system log.
	Reporter fault.Reporter
	Logger   *zap.SugaredLogger
	// MaxReinit bounds re-initializations over the life of Run. Zero means DefaultMaxReinit.
	MaxReinit int
}

// System owns the controller, the shared rate and both tasks, and
// re-initializes all of them when a timer can no longer be re-armed.
type System struct {
	opts    Options
	logger  *zap.SugaredLogger
	diag    *diag.Log
	reinits atomic.Int64
}

// New validates opts and creates a System.
func New(opts Options) (*System, error) {
	if opts.Sensor == nil {
		return nil, fmt.Errorf("blink: sensor is required")
	}
	if opts.Output == nil {
		return nil, fmt.Errorf("blink: output is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Timers == nil {
		opts.Timers = defaultTimers
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.MaxReinit <= 0 {
		opts.MaxReinit = DefaultMaxReinit
	}

	return &System{
		opts:   opts,
		logger: opts.Logger,
		diag:   diag.New(opts.Logger),
	}, nil
}

func defaultTimers(clk clock.Clock, hz uint32, line timer.Pender) (Timer, error) {
	return timer.New(clk, hz, line)
}

// Run runs the control loop until ctx is done. It returns nil on
// cancellation and an error if the system cannot be kept running.
func (s *System) Run(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if !errors.Is(err, errReinit) {
			return err
		}
		if attempt >= s.opts.MaxReinit {
			return fmt.Errorf("%w after %d attempts: %w", ErrReinitExhausted, attempt, err)
		}
		s.reinits.Inc()
		s.logger.Warnw("re-initializing control loop", "attempt", attempt+1, "cause", err)
	}
}

// Reinits returns how many re-initializations have been performed.
func (s *System) Reinits() int64 { return s.reinits.Load() }

// Faults returns the fault counters of the system log.
func (s *System) Faults() diag.Counts { return s.diag.Counts() }

func (s *System) runOnce(ctx context.Context) error {
	fatal := make(chan error, 1)
	report := fault.Tee(s.diag, s.opts.Reporter, fault.ReporterFunc(func(err error) {
		if fault.IsFatal(err) {
			select {
			case fatal <- err:
			default:
			}
		}
	}))

	in, err := s.build(report)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return in.ctl.Run(gctx) })

	var result error
	if err := in.start(); err != nil {
		result = fmt.Errorf("%w: %w", errReinit, fault.TimerReconfigure("init", err))
	} else {
		s.logger.Infow("control loop started", "sample_hz", rate.ADCRate, "toggle_hz", rate.LEDBaseRate)
		select {
		case <-gctx.Done():
		case err := <-fatal:
			result = fmt.Errorf("%w: %w", errReinit, err)
		}
	}

	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		result = multierr.Append(result, err)
	}
	in.stop()

	return result
}

type instance struct {
	ctl *irq.Controller

	sampleLine *irq.Line
	toggleLine *irq.Line

	sampleTimer Timer
	toggleTimer Timer
}

func (s *System) build(report fault.Reporter) (*instance, error) {
	in := &instance{
		ctl: irq.New(func(line string, v any) {
			report.Report(fmt.Errorf("handler %s panicked: %v", line, v))
		}),
	}

	var (
		sampler *task.Sampler
		blinker *task.Blinker
		err     error
	)

	in.sampleLine, err = in.ctl.Register(task.SamplerName, SamplePriority, func() { sampler.Run() })
	if err != nil {
		return nil, err
	}
	in.toggleLine, err = in.ctl.Register(task.BlinkerName, TogglePriority, func() { blinker.Run() })
	if err != nil {
		return nil, err
	}

	in.sampleTimer, err = s.opts.Timers(s.opts.Clock, rate.ADCRate, in.sampleLine)
	if err != nil {
		return nil, fmt.Errorf("sampling timer: %w", err)
	}
	in.toggleTimer, err = s.opts.Timers(s.opts.Clock, rate.LEDBaseRate, in.toggleLine)
	if err != nil {
		return nil, fmt.Errorf("toggle timer: %w", err)
	}
	in.sampleLine.Attach(in.sampleTimer)
	in.toggleLine.Attach(in.toggleTimer)

	w, r := rate.New(rate.DefaultRate, in.ctl.Poll, in.ctl.Ceiling(SamplePriority))
	sampler = task.NewSampler(s.opts.Sensor, in.sampleTimer, w, report)
	blinker = task.NewBlinker(s.opts.Output, in.toggleTimer, r, report)

	return in, nil
}

// start arms both timers and pends both lines so each task runs once
// immediately.
func (in *instance) start() error {
	if err := in.sampleTimer.Start(); err != nil {
		return fmt.Errorf("start sampling timer: %w", err)
	}
	if err := in.toggleTimer.Start(); err != nil {
		in.sampleTimer.Stop()
		return fmt.Errorf("start toggle timer: %w", err)
	}
	in.toggleLine.Pend()
	in.sampleLine.Pend()
	return nil
}

func (in *instance) stop() {
	in.sampleTimer.Stop()
	in.toggleTimer.Stop()
}
