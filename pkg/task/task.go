package task

import (
	"fmt"

	"github.com/itohio/moistblink/pkg/fault"
	"github.com/itohio/moistblink/pkg/rate"
)

const (
	// SamplerName is the task name used in fault reports and line registration.
	SamplerName = "read_moisture"
	// BlinkerName is the task name used in fault reports and line registration.
	BlinkerName = "toggle_led"
)

// Sensor yields one raw 12-bit reading per call.
type Sensor interface {
	Read() (uint16, error)
}

// Output drives the indicator.
type Output interface {
	Set(high bool) error
}

// Timer is the task's own periodic timer.
type Timer interface {
	// Acknowledge clears the pending expiry flag.
	Acknowledge()
	// Rearm restarts the timer with a period of 1/hz seconds.
	Rearm(hz uint32) error
}

// Sampler is the high-priority task. It is the only writer of the shared rate.
type Sampler struct {
	sensor Sensor
	timer  Timer
	rate   *rate.Writer
	report fault.Reporter
}

// NewSampler creates the sampling task.
func NewSampler(sensor Sensor, timer Timer, w *rate.Writer, report fault.Reporter) *Sampler {
	return &Sampler{sensor: sensor, timer: timer, rate: w, report: report}
}

// Run is the handler for the sampling timer line.
func (s *Sampler) Run() {
	reading, err := s.sensor.Read()
	switch {
	case err != nil:
		s.report.Report(fault.SensorRead(SamplerName, err))
	case reading > rate.MaxReading:
		s.report.Report(fault.SensorRead(SamplerName, fmt.Errorf("reading out of range: %d (max %d)", reading, rate.MaxReading)))
	default:
		s.rate.Publish(rate.Compute(reading))
	}

	s.timer.Acknowledge()
	if err := s.timer.Rearm(rate.ADCRate); err != nil {
		s.report.Report(fault.TimerReconfigure(SamplerName, err))
	}
}

// Blinker is the low-priority task. It is the only reader of the shared rate
// and the only owner of the output level.
type Blinker struct {
	out    Output
	timer  Timer
	rate   *rate.Reader
	report fault.Reporter

	level bool
	hz    uint32
}

// NewBlinker creates the toggle task. The output starts low and the timer is
// assumed to be running at rate.LEDBaseRate.
func NewBlinker(out Output, timer Timer, r *rate.Reader, report fault.Reporter) *Blinker {
	return &Blinker{out: out, timer: timer, rate: r, report: report, hz: rate.LEDBaseRate}
}

// Run is the handler for the toggle timer line.
func (b *Blinker) Run() {
	next := !b.level
	if err := b.out.Set(next); err != nil {
		b.report.Report(fault.OutputWrite(BlinkerName, err))
	} else {
		b.level = next
	}

	hz := b.rate.Load()

	b.timer.Acknowledge()
	if err := b.timer.Rearm(hz); err != nil {
		b.report.Report(fault.TimerReconfigure(BlinkerName, err))
		return
	}
	b.hz = hz
}

// Level returns the last level successfully applied to the output.
func (b *Blinker) Level() bool { return b.level }

// Rate returns the rate the toggle timer was last programmed with.
func (b *Blinker) Rate() uint32 { return b.hz }
