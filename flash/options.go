package flash

import (
	"github.com/rabidaudio/tonttuflash/spi"
	"github.com/sirupsen/logrus"
)

type config struct {
	Settings spi.Settings
	Logger   logrus.FieldLogger
}

func defaultConfig() config {
	return config{
		Settings: spi.DefaultSettings,
		Logger:   logrus.StandardLogger(),
	}
}

// Option configures a Device.
type Option func(*config)

// WithSpeed sets the bus clock. The part supports much faster clocks than
// the 10 MHz default, but long wires may not.
func WithSpeed(hz uint32) Option {
	return func(c *config) {
		c.Settings.SpeedHz = hz
	}
}

// WithLogger routes command traces to logger. Traces are logged at debug
// and trace level.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *config) {
		c.Logger = logger
	}
}
