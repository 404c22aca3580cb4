package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrSensorRead means the sensor read did not complete. The shared rate is kept.
	ErrSensorRead = errors.New("sensor read fault")
	// ErrOutputWrite means the actuator toggle failed. The toggle is skipped.
	ErrOutputWrite = errors.New("output write fault")
	// ErrTimerReconfigure means a timer could not be re-armed. The system must re-initialize.
	ErrTimerReconfigure = errors.New("timer reconfigure fault")
)

// Fault is a fault raised by a task. It matches both its Kind and its cause
// with errors.Is.
type Fault struct {
	Kind error
	Task string
	Err  error
}

func (f *Fault) Error() string {
	if f == nil {
		return ""
	}
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Task, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", f.Task, f.Kind, f.Err)
}

func (f *Fault) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Kind}
	}
	return []error{f.Kind, f.Err}
}

// SensorRead wraps err as a sensor read fault raised by task.
func SensorRead(task string, err error) error {
	return &Fault{Kind: ErrSensorRead, Task: task, Err: err}
}

// OutputWrite wraps err as an output write fault raised by task.
func OutputWrite(task string, err error) error {
	return &Fault{Kind: ErrOutputWrite, Task: task, Err: err}
}

// TimerReconfigure wraps err as a timer reconfigure fault raised by task.
func TimerReconfigure(task string, err error) error {
	return &Fault{Kind: ErrTimerReconfigure, Task: task, Err: err}
}

// IsFatal reports whether err requires re-initialization.
func IsFatal(err error) bool {
	return errors.Is(err, ErrTimerReconfigure)
}

// Reporter is the diagnostic channel faults are sent to. Report is called on
// the execution context and must not block.
type Reporter interface {
	Report(err error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(err error)

// Report calls f(err).
func (f ReporterFunc) Report(err error) { f(err) }

// Tee reports to every non-nil reporter in order.
func Tee(reporters ...Reporter) Reporter {
	return ReporterFunc(func(err error) {
		for _, r := range reporters {
			if r != nil {
				r.Report(err)
			}
		}
	})
}
