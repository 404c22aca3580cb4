// Package diag is the host-side diagnostic channel for task faults.
package diag

import (
	"errors"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/itohio/moistblink/pkg/fault"
)

var _ fault.Reporter = (*Log)(nil)

// Counts is a snapshot of reported faults by kind.
type Counts struct {
	SensorRead       uint64
	OutputWrite      uint64
	TimerReconfigure uint64
	Other            uint64
}

// Log reports faults to a zap logger and counts them.
type Log struct {
	logger *zap.SugaredLogger

	sensorRead       atomic.Uint64
	outputWrite      atomic.Uint64
	timerReconfigure atomic.Uint64
	other            atomic.Uint64
}

// New creates a Log reporter. A nil logger discards output but still counts.
func New(logger *zap.SugaredLogger) *Log {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Log{logger: logger}
}

// Report logs err at a level matching its severity.
func (l *Log) Report(err error) {
	if err == nil {
		return
	}

	var f *fault.Fault
	task := ""
	if errors.As(err, &f) {
		task = f.Task
	}

	switch {
	case errors.Is(err, fault.ErrTimerReconfigure):
		l.timerReconfigure.Inc()
		l.logger.Errorw("timer reconfigure fault, re-initialization required", "task", task, "error", err)
	case errors.Is(err, fault.ErrSensorRead):
		l.sensorRead.Inc()
		l.logger.Warnw("sensor read fault, keeping last rate", "task", task, "error", err)
	case errors.Is(err, fault.ErrOutputWrite):
		l.outputWrite.Inc()
		l.logger.Warnw("output write fault, toggle skipped", "task", task, "error", err)
	default:
		l.other.Inc()
		l.logger.Errorw("unclassified fault", "task", task, "error", err)
	}
}

// Counts returns the number of faults reported so far.
func (l *Log) Counts() Counts {
	return Counts{
		SensorRead:       l.sensorRead.Load(),
		OutputWrite:      l.outputWrite.Load(),
		TimerReconfigure: l.timerReconfigure.Load(),
		Other:            l.other.Load(),
	}
}
