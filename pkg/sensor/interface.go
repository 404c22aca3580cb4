package sensor

import "github.com/itohio/moistblink/pkg/task"

// Device defines the interface for moisture probes (real or mocked).
type Device interface {
	task.Sensor
	Connect() error
	Close() error
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)

// Ensure Averaging implements task.Sensor.
var _ task.Sensor = (*Averaging)(nil)
