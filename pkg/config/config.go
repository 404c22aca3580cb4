package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Sensor sources.
const (
	SourceMock   = "mock"
	SourceSerial = "serial"
)

// Config represents the simulator configuration. The control constants of the
// loop itself are compiled in and are not configurable.
type Config struct {
	Sensor     SensorConfig     `yaml:"sensor"`
	Serial     SerialConfig     `yaml:"serial"`
	Mock       MockConfig       `yaml:"mock"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Log        LogConfig        `yaml:"log"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
}

// SensorConfig selects where moisture readings come from.
type SensorConfig struct {
	Source         string `yaml:"source"`          // "mock" or "serial"
	AverageSamples int    `yaml:"average_samples"` // Readings averaged per sample (0 or 1 = disabled)
}

// SerialConfig contains serial probe configuration.
type SerialConfig struct {
	Port     string        `yaml:"port"`
	BaudRate int           `yaml:"baud_rate"`
	MaxAge   time.Duration `yaml:"max_age"` // Readings older than this are treated as a read fault
}

// MockConfig contains simulated moisture sensor configuration.
type MockConfig struct {
	Base       float64       `yaml:"base"`       // Mean reading (ADC counts)
	Amplitude  float64       `yaml:"amplitude"`  // Peak deviation from Base (ADC counts)
	Period     time.Duration `yaml:"period"`     // Wet/dry cycle period
	NoiseLevel float64       `yaml:"noise_level"` // Noise amplitude (ADC counts)
	FailEvery  int           `yaml:"fail_every"` // Every Nth read fails (0 = never)
}

// MonitorConfig contains output monitor configuration.
type MonitorConfig struct {
	WindowSeconds float64       `yaml:"window_seconds"`
	ReportEvery   time.Duration `yaml:"report_every"`
	FailEvery     int           `yaml:"fail_every"` // Every Nth toggle fails (0 = never)
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// SupervisorConfig contains re-initialization limits.
type SupervisorConfig struct {
	MaxReinit int `yaml:"max_reinit"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Sensor: SensorConfig{
			Source:         SourceMock,
			AverageSamples: 0,
		},
		Serial: SerialConfig{
			Port:     "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
			BaudRate: 115200,
			MaxAge:   2 * time.Second,
		},
		Mock: MockConfig{
			Base:       2048,
			Amplitude:  2000,
			Period:     30 * time.Second,
			NoiseLevel: 20,
			FailEvery:  0,
		},
		Monitor: MonitorConfig{
			WindowSeconds: 5,
			ReportEvery:   time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Supervisor: SupervisorConfig{
			MaxReinit: 3,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	switch c.Sensor.Source {
	case SourceMock, SourceSerial:
	default:
		return fmt.Errorf("invalid sensor source %q: expected %q or %q", c.Sensor.Source, SourceMock, SourceSerial)
	}
	if c.Sensor.AverageSamples < 0 {
		return fmt.Errorf("invalid average_samples %d: must not be negative", c.Sensor.AverageSamples)
	}
	if c.Mock.FailEvery < 0 || c.Monitor.FailEvery < 0 {
		return fmt.Errorf("fail_every must not be negative")
	}
	if c.Serial.MaxAge < 0 {
		return fmt.Errorf("invalid max_age %s: must not be negative", c.Serial.MaxAge)
	}
	if c.Monitor.ReportEvery <= 0 {
		return fmt.Errorf("invalid report_every %s: must be positive", c.Monitor.ReportEvery)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Sensor.Source == "" {
		c.Sensor.Source = def.Sensor.Source
	}

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.MaxAge == 0 {
		c.Serial.MaxAge = def.Serial.MaxAge
	}

	if c.Mock.Period == 0 {
		c.Mock.Period = def.Mock.Period
	}

	if c.Monitor.WindowSeconds == 0 {
		c.Monitor.WindowSeconds = def.Monitor.WindowSeconds
	}
	if c.Monitor.ReportEvery == 0 {
		c.Monitor.ReportEvery = def.Monitor.ReportEvery
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}

	if c.Supervisor.MaxReinit == 0 {
		c.Supervisor.MaxReinit = def.Supervisor.MaxReinit
	}
}
