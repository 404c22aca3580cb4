//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"context"
	"device/arm"
	"machine"
	"time"

	"github.com/itohio/moistblink/pkg/fault"
	"github.com/itohio/moistblink/pkg/irq"
	"github.com/itohio/moistblink/pkg/rate"
	"github.com/itohio/moistblink/pkg/task"
	"github.com/itohio/moistblink/pkg/timer"
)

const (
	samplePriority irq.Priority = 2
	togglePriority irq.Priority = 1
)

var uart = machine.UART0

// probe reads the moisture ADC and mirrors every reading on the UART.
type probe struct {
	adc machine.ADC
}

func (p probe) Read() (uint16, error) {
	reading := p.adc.Get() >> ADC_SHIFT

	// Output format: "unix_micros,reading\n"
	// Example: "1234567890123,2048\n"
	print(time.Now().UnixNano() / 1000)
	print(",")
	print(reading)
	print("\n")

	return reading, nil
}

type led struct {
	pin machine.Pin
}

func (l led) Set(high bool) error {
	l.pin.Set(high)
	return nil
}

func main() {
	PIN_LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_ADC.Configure(machine.PinConfig{Mode: machine.PinInput})

	adc := machine.ADC{Pin: PIN_ADC}
	adc.Configure(machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	})

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	for attempt := 0; attempt <= MAX_REINIT; attempt++ {
		err := run(probe{adc: adc}, led{pin: PIN_LED})
		println("fatal:", err.Error())
	}

	println("re-initialization limit reached, resetting")
	arm.SystemReset()
}

// run builds the control loop and services it until a task reports a fault
// that requires re-initialization.
func run(sensor task.Sensor, out task.Output) error {
	fatal := make(chan error, 1)
	report := fault.ReporterFunc(func(err error) {
		println("fault:", err.Error())
		if fault.IsFatal(err) {
			select {
			case fatal <- err:
			default:
			}
		}
	})

	ctl := irq.New(func(line string, v any) {
		println("panic in", line)
		arm.SystemReset()
	})

	var (
		sampler *task.Sampler
		blinker *task.Blinker
	)
	sampleLine, err := ctl.Register(task.SamplerName, samplePriority, func() { sampler.Run() })
	if err != nil {
		return err
	}
	toggleLine, err := ctl.Register(task.BlinkerName, togglePriority, func() { blinker.Run() })
	if err != nil {
		return err
	}

	sampleTimer, err := timer.New(nil, rate.ADCRate, sampleLine)
	if err != nil {
		return err
	}
	toggleTimer, err := timer.New(nil, rate.LEDBaseRate, toggleLine)
	if err != nil {
		return err
	}
	sampleLine.Attach(sampleTimer)
	toggleLine.Attach(toggleTimer)

	w, r := rate.New(rate.DefaultRate, ctl.Poll, ctl.Ceiling(samplePriority))
	sampler = task.NewSampler(sensor, sampleTimer, w, report)
	blinker = task.NewBlinker(out, toggleTimer, r, report)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctl.Run(ctx)
	}()

	if err := sampleTimer.Start(); err != nil {
		return fault.TimerReconfigure("init", err)
	}
	defer sampleTimer.Stop()
	if err := toggleTimer.Start(); err != nil {
		return fault.TimerReconfigure("init", err)
	}
	defer toggleTimer.Stop()

	toggleLine.Pend()
	sampleLine.Pend()

	err = <-fatal
	cancel()
	<-done
	return err
}
