// Package config loads the flashtool configuration file.
//
// A minimal file looks like:
//
//	bus:
//	  backend: rpio
//	  device: spi0
//	  chip_select: "8"
//	  speed_hz: 10000000
//	wait:
//	  attempts: 500
//	  interval: 1ms
//	log:
//	  level: info
//	  format: text
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Backends understood by Bus.Backend.
const (
	BackendRPIO   = "rpio"
	BackendPeriph = "periph"
	BackendSim    = "sim"
)

type Config struct {
	Bus  Bus  `yaml:"bus"`
	Wait Wait `yaml:"wait"`
	Log  Log  `yaml:"log"`
}

// Bus selects the transport the part is reached through.
type Bus struct {
	Backend string `yaml:"backend"`
	// Device is "spi0" or "spi1" for rpio, a periph.io port name otherwise.
	Device string `yaml:"device"`
	// ChipSelect is a BCM pin number for rpio, a GPIO name for periph.
	ChipSelect string `yaml:"chip_select"`
	SpeedHz    uint32 `yaml:"speed_hz"`
}

// Wait bounds busy polling after a program or erase.
type Wait struct {
	Attempts int           `yaml:"attempts"`
	Interval time.Duration `yaml:"interval"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Bus: Bus{
			Backend:    BackendRPIO,
			Device:     "spi0",
			ChipSelect: "8",
			SpeedHz:    10_000_000,
		},
		Wait: Wait{
			Attempts: 500,
			Interval: time.Millisecond,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Parse reads YAML on top of the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Load reads the file at path. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Bus.Backend {
	case BackendRPIO:
		if c.Bus.Device != "spi0" && c.Bus.Device != "spi1" {
			return fmt.Errorf("config: rpio device must be spi0 or spi1, got %q", c.Bus.Device)
		}
		if _, err := c.Bus.ChipSelectPin(); err != nil {
			return err
		}
	case BackendPeriph:
		if c.Bus.ChipSelect == "" {
			return fmt.Errorf("config: periph backend needs a chip_select gpio name")
		}
	case BackendSim:
	default:
		return fmt.Errorf("config: unknown bus backend %q", c.Bus.Backend)
	}
	if c.Bus.SpeedHz == 0 {
		return fmt.Errorf("config: speed_hz must be positive")
	}
	if c.Wait.Attempts < 1 {
		return fmt.Errorf("config: wait attempts must be at least 1")
	}
	if c.Wait.Interval < 0 {
		return fmt.Errorf("config: wait interval must not be negative")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("config: log format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ChipSelectPin parses ChipSelect as a BCM pin number.
func (b Bus) ChipSelectPin() (uint8, error) {
	n, err := strconv.ParseUint(b.ChipSelect, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("config: chip_select %q is not a pin number", b.ChipSelect)
	}
	return uint8(n), nil
}

// Logger builds a logrus logger from the log section.
func (l Log) Logger() *logrus.Logger {
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(l.Level); err == nil {
		logger.SetLevel(lvl)
	}
	if l.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
