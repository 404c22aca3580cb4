package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSerial_GracefulShutdown tests that Close stops the reader goroutine and
// that reads fail afterwards.
func TestSerial_GracefulShutdown(t *testing.T) {
	w, open := newPipeOpener(t)
	dev := NewSerial("COM3", 0, time.Minute, WithOpener(open))
	require.NoError(t, dev.Connect())

	_, err := w.Write([]byte("1,1000\n"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		_, ok := dev.Latest()
		return ok
	}, time.Second, time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- dev.Close() }()

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return within timeout")
	}

	assert.False(t, dev.IsConnected())
	_, err = dev.Read()
	assert.ErrorIs(t, err, ErrNotConnected)

	// Writer side sees the closed pipe
	_, err = w.Write([]byte("2,1000\n"))
	assert.Error(t, err)
}

// TestMock_GracefulShutdown tests that a closed Mock refuses reads and can be reconnected.
func TestMock_GracefulShutdown(t *testing.T) {
	mock := NewMock(nil, nil)
	require.NoError(t, mock.Connect())

	_, err := mock.Read()
	require.NoError(t, err)

	require.NoError(t, mock.Close())
	_, err = mock.Read()
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, mock.Connect())
	_, err = mock.Read()
	assert.NoError(t, err)
}
