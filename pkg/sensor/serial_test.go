package sensor

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// pipeConn is an in-memory serial port fed through w.
type pipeConn struct {
	*io.PipeReader
	w *io.PipeWriter
}

func (p *pipeConn) Write(b []byte) (int, error) { return len(b), nil }

func newPipeOpener(t *testing.T) (*io.PipeWriter, func(string, *serial.Mode) (io.ReadWriteCloser, error)) {
	t.Helper()
	r, w := io.Pipe()
	return w, func(port string, mode *serial.Mode) (io.ReadWriteCloser, error) {
		return &pipeConn{PipeReader: r, w: w}, nil
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    RawSample
		wantErr bool
	}{
		{
			name: "valid line",
			line: "1234567890123,2048",
			want: RawSample{
				Timestamp: time.Unix(0, 1234567890123*1000),
				Reading:   2048,
			},
		},
		{
			name: "valid line - zero reading",
			line: "1234567890123,0",
			want: RawSample{
				Timestamp: time.Unix(0, 1234567890123*1000),
				Reading:   0,
			},
		},
		{
			name: "valid line - max ADC value",
			line: "1234567890123,4095",
			want: RawSample{
				Timestamp: time.Unix(0, 1234567890123*1000),
				Reading:   4095,
			},
		},
		{
			name:    "invalid - wrong number of fields",
			line:    "1234567890123",
			wantErr: true,
		},
		{
			name:    "invalid - too many fields",
			line:    "1234567890123,2048,1024",
			wantErr: true,
		},
		{
			name:    "invalid - non-numeric timestamp",
			line:    "abc,2048",
			wantErr: true,
		},
		{
			name:    "invalid - non-numeric reading",
			line:    "1234567890123,abc",
			wantErr: true,
		},
		{
			name:    "invalid - negative reading",
			line:    "1234567890123,-1",
			wantErr: true,
		},
		{
			name:    "invalid - reading out of range",
			line:    "1234567890123,5000",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want.Timestamp.UnixNano(), got.Timestamp.UnixNano())
				assert.Equal(t, tt.want.Reading, got.Reading)
			}
		})
	}
}

func TestNewSerial(t *testing.T) {
	dev := NewSerial("COM3", 57600, time.Second)
	assert.NotNil(t, dev)
	assert.Equal(t, "COM3", dev.port)
	assert.Equal(t, 57600, dev.baudRate)
	assert.Equal(t, time.Second, dev.maxAge)
	assert.False(t, dev.IsConnected())
}

func TestNewSerial_Defaults(t *testing.T) {
	dev := NewSerial("COM3", 0, 0)
	assert.NotNil(t, dev)
	assert.Equal(t, DefaultBaudRate, dev.baudRate)
	assert.Equal(t, DefaultMaxAge, dev.maxAge)
}

func TestSerial_ReadNotConnected(t *testing.T) {
	dev := NewSerial("COM3", 0, 0)
	_, err := dev.Read()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSerial_ConnectOpenError(t *testing.T) {
	boom := errors.New("no such port")
	dev := NewSerial("COM9", 0, 0, WithOpener(func(string, *serial.Mode) (io.ReadWriteCloser, error) {
		return nil, boom
	}))

	err := dev.Connect()
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "COM9")
	assert.False(t, dev.IsConnected())
}

func TestSerial_ReadLatest(t *testing.T) {
	clk := clock.NewMock()
	w, open := newPipeOpener(t)
	dev := NewSerial("COM3", 0, time.Second, WithClock(clk), WithOpener(open))

	require.NoError(t, dev.Connect())
	defer dev.Close()

	_, err := dev.Read()
	assert.ErrorIs(t, err, ErrNoReading)

	_, err = w.Write([]byte("1,100\ngarbage\n2,5000\n3,2048\n"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		s, ok := dev.Latest()
		return ok && s.Reading == 2048
	}, time.Second, time.Millisecond)

	v, err := dev.Read()
	require.NoError(t, err)
	assert.Equal(t, uint16(2048), v)

	s, ok := dev.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(3000), s.Timestamp.UnixNano())
	assert.Equal(t, clk.Now(), s.Received)
}

func TestSerial_ReadStale(t *testing.T) {
	clk := clock.NewMock()
	w, open := newPipeOpener(t)
	dev := NewSerial("COM3", 0, time.Second, WithClock(clk), WithOpener(open))

	require.NoError(t, dev.Connect())
	defer dev.Close()

	_, err := w.Write([]byte("1,300\n"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		_, ok := dev.Latest()
		return ok
	}, time.Second, time.Millisecond)

	clk.Add(500 * time.Millisecond)
	v, err := dev.Read()
	require.NoError(t, err)
	assert.Equal(t, uint16(300), v)

	clk.Add(time.Second)
	_, err = dev.Read()
	assert.ErrorIs(t, err, ErrStale)
}

func TestSerial_ConnectTwice(t *testing.T) {
	_, open := newPipeOpener(t)
	dev := NewSerial("COM3", 0, 0, WithOpener(open))

	require.NoError(t, dev.Connect())
	defer dev.Close()

	err := dev.Connect()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already connected")
}

func TestSerial_CloseNotConnected(t *testing.T) {
	dev := NewSerial("COM3", 0, 0)
	assert.NoError(t, dev.Close())
}
