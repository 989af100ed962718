package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	pin, err := cfg.Bus.ChipSelectPin()
	require.NoError(t, err)
	assert.Equal(t, uint8(8), pin)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
bus:
  backend: periph
  device: /dev/spidev0.0
  chip_select: GPIO25
  speed_hz: 2000000
wait:
  attempts: 40
  interval: 250us
log:
  level: debug
  format: json
`))
	require.NoError(t, err)
	assert.Equal(t, BackendPeriph, cfg.Bus.Backend)
	assert.Equal(t, "/dev/spidev0.0", cfg.Bus.Device)
	assert.Equal(t, "GPIO25", cfg.Bus.ChipSelect)
	assert.Equal(t, uint32(2_000_000), cfg.Bus.SpeedHz)
	assert.Equal(t, 40, cfg.Wait.Attempts)
	assert.Equal(t, 250*time.Microsecond, cfg.Wait.Interval)

	logger := cfg.Log.Logger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestParseKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("bus:\n  backend: sim\n"))
	require.NoError(t, err)
	assert.Equal(t, BackendSim, cfg.Bus.Backend)
	assert.Equal(t, Default().Wait, cfg.Wait)
	assert.Equal(t, Default().Bus.SpeedHz, cfg.Bus.SpeedHz)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"backend":     func(c *Config) { c.Bus.Backend = "usb" },
		"rpio device": func(c *Config) { c.Bus.Device = "spi2" },
		"rpio pin":    func(c *Config) { c.Bus.ChipSelect = "GPIO8" },
		"periph pin": func(c *Config) {
			c.Bus.Backend = BackendPeriph
			c.Bus.ChipSelect = ""
		},
		"speed":    func(c *Config) { c.Bus.SpeedHz = 0 },
		"attempts": func(c *Config) { c.Wait.Attempts = 0 },
		"interval": func(c *Config) { c.Wait.Interval = -time.Second },
		"level":    func(c *Config) { c.Log.Level = "loud" },
		"format":   func(c *Config) { c.Log.Format = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "flashtool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bus:\n  backend: bogus\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "flashtool.yaml")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
