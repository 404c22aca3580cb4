package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/itohio/moistblink/pkg/config"
	"github.com/itohio/moistblink/pkg/sensor"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		enabled zapcore.Level
		wantErr bool
	}{
		{"info", config.LogConfig{Level: "info"}, zapcore.InfoLevel, false},
		{"debug development", config.LogConfig{Level: "debug", Development: true}, zapcore.DebugLevel, false},
		{"warn", config.LogConfig{Level: "warn"}, zapcore.WarnLevel, false},
		{"unknown", config.LogConfig{Level: "loud"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := newLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			core := logger.Desugar().Core()
			assert.True(t, core.Enabled(tt.enabled))
			assert.False(t, core.Enabled(tt.enabled-1))
		})
	}
}

func TestNewSensor(t *testing.T) {
	logger := zap.NewNop().Sugar()

	tests := []struct {
		name     string
		source   string
		average  int
		wantDev  any
		averaged bool
	}{
		{"mock", config.SourceMock, 0, &sensor.Mock{}, false},
		{"mock averaged", config.SourceMock, 4, &sensor.Mock{}, true},
		{"serial", config.SourceSerial, 1, &sensor.Serial{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Sensor.Source = tt.source
			cfg.Sensor.AverageSamples = tt.average

			dev, probe := newSensor(cfg, logger)
			assert.IsType(t, tt.wantDev, dev)
			if tt.averaged {
				assert.IsType(t, &sensor.Averaging{}, probe)
			} else {
				assert.Equal(t, dev, probe)
			}
		})
	}
}
