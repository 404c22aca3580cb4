package main

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/itohio/moistblink/pkg/config"
	"github.com/itohio/moistblink/pkg/sensor"
	"github.com/itohio/moistblink/pkg/task"
)

// newLogger builds a zap logger from the log section of the configuration.
func newLogger(cfg config.LogConfig) (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// newSensor returns the probe device and the sensor the sampling task reads,
// which averages the device when configured to.
func newSensor(cfg *config.Config, logger *zap.SugaredLogger) (sensor.Device, task.Sensor) {
	var dev sensor.Device
	switch cfg.Sensor.Source {
	case config.SourceSerial:
		dev = sensor.NewSerial(cfg.Serial.Port, cfg.Serial.BaudRate, cfg.Serial.MaxAge,
			sensor.WithLogger(logger.With("port", cfg.Serial.Port)))
	default:
		dev = sensor.NewMock(&cfg.Mock, nil)
	}

	if cfg.Sensor.AverageSamples > 1 {
		return dev, sensor.NewAveraging(dev, cfg.Sensor.AverageSamples)
	}
	return dev, dev
}
