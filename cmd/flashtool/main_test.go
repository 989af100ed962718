package main

import (
	"context"
	"errors"
	"testing"

	"github.com/rabidaudio/tonttuflash/cmd/flashtool/commands"
	"github.com/rabidaudio/tonttuflash/config"
	"github.com/rabidaudio/tonttuflash/flash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useSim points openSession at the simulated part and counts closes.
func useSim(t *testing.T, closeErr error) *int {
	t.Helper()
	closed := new(int)
	orig := openSession
	openSession = func(cfg config.Config) (*commands.Session, error) {
		cfg.Bus.Backend = config.BackendSim
		cfg.Log.Level = "error"
		s, err := commands.Open(cfg)
		if err != nil {
			return nil, err
		}
		s.OnClose(func() error {
			*closed++
			return closeErr
		})
		return s, nil
	}
	t.Cleanup(func() { openSession = orig })
	return closed
}

func TestRunClosesOnSuccess(t *testing.T) {
	closed := useSim(t, nil)
	require.NoError(t, run(context.Background(), "erase", []string{"-sector", "2"}))
	assert.Equal(t, 1, *closed)
}

func TestRunClosesOnCommandError(t *testing.T) {
	closed := useSim(t, nil)
	err := run(context.Background(), "erase", []string{"-sector", "1048576"})
	var aerr *flash.AddressError
	assert.ErrorAs(t, err, &aerr)
	assert.Equal(t, 1, *closed)
}

func TestRunClosesOnUsageError(t *testing.T) {
	closed := useSim(t, nil)
	err := run(context.Background(), "write", nil)
	assert.ErrorIs(t, err, errUsage)
	assert.Equal(t, 1, *closed)
}

func TestRunReportsCloseError(t *testing.T) {
	gpio := errors.New("gpio release failed")
	closed := useSim(t, gpio)

	assert.ErrorIs(t, run(context.Background(), "erase", []string{"-sector", "0"}), gpio)

	// a command error wins over the close error
	err := run(context.Background(), "erase", []string{"-sector", "1048576"})
	var aerr *flash.AddressError
	assert.ErrorAs(t, err, &aerr)
	assert.Equal(t, 2, *closed)
}

func TestRunUnknownCommand(t *testing.T) {
	closed := useSim(t, nil)
	assert.ErrorIs(t, run(context.Background(), "format", nil), errUsage)
	assert.ErrorIs(t, run(context.Background(), "erase", []string{"-bogus"}), errUsage)
	assert.Equal(t, 0, *closed)
}
