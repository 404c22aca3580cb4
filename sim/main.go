// Package main runs the moisture blink loop on the host against a mocked
// probe or a probe MCU streaming readings over a serial port.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/itohio/moistblink/pkg/blink"
	"github.com/itohio/moistblink/pkg/config"
	"github.com/itohio/moistblink/pkg/monitor"
	"github.com/itohio/moistblink/pkg/sensor"
)

const (
	flagConfig         = "config"
	flagPort           = "port"
	flagMock           = "mock"
	flagAverageSamples = "average-samples"
	flagDebug          = "debug"
)

func main() {
	app := &cli.App{
		Name:  "moistblink",
		Usage: "blink an indicator at a rate that follows soil moisture",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:    flagPort,
				Aliases: []string{"p"},
				Usage:   "serial port override (e.g., COM3 or /dev/ttyACM0)",
			},
			&cli.BoolFlag{
				Name:  flagMock,
				Usage: "use the mocked probe instead of the serial port",
			},
			&cli.IntFlag{
				Name:  flagAverageSamples,
				Value: -1,
				Usage: "readings averaged per sample (0 = disabled, overrides config)",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Action: runAction,
		Commands: []*cli.Command{
			{
				Name:   "ports",
				Usage:  "list available serial ports",
				Action: portsAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig loads the configuration file and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return nil, err
	}

	if port := c.String(flagPort); port != "" {
		cfg.Serial.Port = port
		cfg.Sensor.Source = config.SourceSerial
	}
	if c.Bool(flagMock) {
		cfg.Sensor.Source = config.SourceMock
	}
	if n := c.Int(flagAverageSamples); n >= 0 {
		cfg.Sensor.AverageSamples = n
	}
	if c.Bool(flagDebug) {
		cfg.Log.Level = "debug"
	}

	return cfg, cfg.Validate()
}

func runAction(c *cli.Context) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() {
		// Sync fails on terminals; only the run error matters.
		_ = logger.Sync()
	}()

	dev, probe := newSensor(cfg, logger)
	if err := dev.Connect(); err != nil {
		return fmt.Errorf("connect %s probe: %w", cfg.Sensor.Source, err)
	}
	defer func() {
		err = multierr.Append(err, dev.Close())
	}()

	clk := clock.New()
	out := monitor.New(&cfg.Monitor, clk)
	out.OnUpdate(func(edges []monitor.Edge, _ []time.Duration) {
		if n := len(edges); n > 0 {
			logger.Debugw("output", "level", edges[n-1].Level)
		}
	})

	system, err := blink.New(blink.Options{
		Sensor:    probe,
		Output:    out,
		Clock:     clk,
		Logger:    logger,
		MaxReinit: cfg.Supervisor.MaxReinit,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go report(ctx, clk, logger, out, system, cfg.Monitor.ReportEvery)

	logger.Infow("running", "source", cfg.Sensor.Source, "average_samples", cfg.Sensor.AverageSamples)
	if err := system.Run(ctx); err != nil {
		return err
	}
	logger.Infow("stopped", "reinits", system.Reinits())
	return nil
}

// report logs the observed toggle rate until ctx is done.
func report(ctx context.Context, clk clock.Clock, logger *zap.SugaredLogger, out *monitor.Monitor, system *blink.System, every time.Duration) {
	ticker := clk.Ticker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			faults := system.Faults()
			logger.Infow("toggle rate",
				"hz", fmt.Sprintf("%.2f", out.Frequency()),
				"level", out.Level(),
				"sensor_faults", faults.SensorRead,
				"output_faults", faults.OutputWrite,
				"reinits", system.Reinits(),
			)
		}
	}
}

func portsAction(c *cli.Context) error {
	ports, err := sensor.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(c.App.Writer, "no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(c.App.Writer, p.Name)
	}
	return nil
}
