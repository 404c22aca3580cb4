package timer

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingLine struct {
	n atomic.Int64
}

func (l *countingLine) Pend() { l.n.Inc() }

func TestPeriod(t *testing.T) {
	tests := []struct {
		hz      uint32
		want    time.Duration
		wantErr bool
	}{
		{0, 0, true},
		{1, time.Second, false},
		{2, 500 * time.Millisecond, false},
		{20, 50 * time.Millisecond, false},
		{22, 45454545 * time.Nanosecond, false},
	}

	for _, tt := range tests {
		got, err := Period(tt.hz)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrZeroRate)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "hz=%d", tt.hz)
	}
}

func TestNew_ZeroRate(t *testing.T) {
	_, err := New(nil, 0, &countingLine{})
	assert.ErrorIs(t, err, ErrZeroRate)
}

func TestPeriodic_Fires(t *testing.T) {
	clk := clock.NewMock()
	line := &countingLine{}
	p, err := New(clk, 2, line)
	require.NoError(t, err)
	require.NoError(t, p.Start())
	defer p.Stop()

	assert.False(t, p.Asserted())

	clk.Add(500 * time.Millisecond)
	assert.Eventually(t, func() bool { return line.n.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(1), p.Expirations())
	assert.True(t, p.Asserted())

	p.Acknowledge()
	assert.False(t, p.Asserted())

	clk.Add(500 * time.Millisecond)
	assert.Eventually(t, func() bool { return line.n.Load() == 2 }, time.Second, time.Millisecond)
	assert.True(t, p.Asserted())
}

func TestPeriodic_StartTwice(t *testing.T) {
	p, err := New(clock.NewMock(), 2, &countingLine{})
	require.NoError(t, err)
	require.NoError(t, p.Start())
	defer p.Stop()

	assert.ErrorIs(t, p.Start(), ErrRunning)
}

func TestPeriodic_Rearm(t *testing.T) {
	clk := clock.NewMock()
	line := &countingLine{}
	p, err := New(clk, 2, line)
	require.NoError(t, err)
	require.NoError(t, p.Start())
	defer p.Stop()

	require.NoError(t, p.Rearm(20))
	assert.Equal(t, 50*time.Millisecond, p.Period())

	clk.Add(50 * time.Millisecond)
	assert.Eventually(t, func() bool { return line.n.Load() == 1 }, time.Second, time.Millisecond)
}

func TestPeriodic_RearmZero(t *testing.T) {
	p, err := New(clock.NewMock(), 2, &countingLine{})
	require.NoError(t, err)
	require.NoError(t, p.Start())
	defer p.Stop()

	err = p.Rearm(0)
	assert.ErrorIs(t, err, ErrZeroRate)
	assert.Contains(t, err.Error(), "0 Hz")
	assert.Equal(t, 500*time.Millisecond, p.Period())
}

func TestPeriodic_RearmStopped(t *testing.T) {
	p, err := New(clock.NewMock(), 2, &countingLine{})
	require.NoError(t, err)

	assert.ErrorIs(t, p.Rearm(4), ErrStopped)

	require.NoError(t, p.Start())
	p.Stop()
	assert.ErrorIs(t, p.Rearm(4), ErrStopped)
}

func TestPeriodic_StopIdempotent(t *testing.T) {
	p, err := New(clock.NewMock(), 2, &countingLine{})
	require.NoError(t, err)

	p.Stop()
	require.NoError(t, p.Start())
	p.Stop()
	p.Stop()

	// A stopped timer can be started again
	require.NoError(t, p.Start())
	p.Stop()
}
