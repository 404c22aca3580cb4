package sensor

import (
	"fmt"

	"github.com/itohio/moistblink/pkg/task"
)

// Averaging reads its source N times per Read and returns the rounded mean.
// Any failed read fails the whole sample so a partial mean is never reported.
type Averaging struct {
	src task.Sensor
	n   int
}

// NewAveraging wraps src. A window below 1 is treated as 1.
func NewAveraging(src task.Sensor, n int) *Averaging {
	if n < 1 {
		n = 1
	}
	return &Averaging{src: src, n: n}
}

// Read returns the mean of N consecutive readings.
func (a *Averaging) Read() (uint16, error) {
	var sum uint32
	for i := range a.n {
		v, err := a.src.Read()
		if err != nil {
			return 0, fmt.Errorf("averaging read %d/%d: %w", i+1, a.n, err)
		}
		sum += uint32(v)
	}
	return uint16((sum + uint32(a.n)/2) / uint32(a.n)), nil // Round to nearest
}
