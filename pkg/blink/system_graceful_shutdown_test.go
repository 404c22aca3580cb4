package blink

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/moistblink/pkg/monitor"
	"github.com/itohio/moistblink/pkg/timer"
)

// TestSystem_GracefulShutdown tests that cancelling Run stops both timers and
// that no output is written afterwards.
func TestSystem_GracefulShutdown(t *testing.T) {
	clk := clock.NewMock()
	out := monitor.New(nil, clk)
	timers := &timerLog{}

	s, err := New(Options{
		Sensor: &constSensor{reading: 1000},
		Output: out,
		Clock:  clk,
		Timers: timers.factory,
	})
	require.NoError(t, err)
	stop := runSystem(t, s)

	assert.Eventually(t, func() bool {
		clk.Add(10 * time.Millisecond)
		return len(out.Edges()) >= 2
	}, 5*time.Second, time.Millisecond)

	assert.NoError(t, stop())

	sample, toggle := timers.latest()
	assert.ErrorIs(t, sample.Rearm(2), timer.ErrStopped)
	assert.ErrorIs(t, toggle.Rearm(2), timer.ErrStopped)

	edges := len(out.Edges())
	clk.Add(5 * time.Second)
	assert.Equal(t, edges, len(out.Edges()))
}
