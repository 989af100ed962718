// Package commands implements the flashtool subcommands on top of the
// flash driver.
package commands

import (
	"fmt"

	"github.com/rabidaudio/tonttuflash/config"
	"github.com/rabidaudio/tonttuflash/flash"
	"github.com/rabidaudio/tonttuflash/mock"
	"github.com/rabidaudio/tonttuflash/spi"
	"github.com/sirupsen/logrus"
	"github.com/stianeikeland/go-rpio/v4"
)

// Session is an opened, started device plus the wait policy used after
// every program and erase.
type Session struct {
	Dev  *flash.Device
	Wait flash.WaitPolicy
	Log  logrus.FieldLogger

	closefn func() error
}

// NewSession wraps a device that has already been started.
func NewSession(dev *flash.Device, wait flash.WaitPolicy, log logrus.FieldLogger) *Session {
	return &Session{
		Dev:     dev,
		Wait:    wait,
		Log:     log,
		closefn: func() error { return nil },
	}
}

// Open connects to the part described by cfg, starts it and checks its
// identity.
func Open(cfg config.Config) (*Session, error) {
	log := cfg.Log.Logger()

	var (
		conn    spi.Conn
		cs      spi.ChipSelect
		closefn = func() error { return nil }
	)
	switch cfg.Bus.Backend {
	case config.BackendRPIO:
		pin, err := cfg.Bus.ChipSelectPin()
		if err != nil {
			return nil, err
		}
		dev := rpio.Spi0
		if cfg.Bus.Device == "spi1" {
			dev = rpio.Spi1
		}
		r, p, err := spi.OpenRPIODevice(dev, pin)
		if err != nil {
			return nil, err
		}
		conn, cs, closefn = r, p, r.Close
	case config.BackendPeriph:
		port, pin, err := spi.OpenPeriph(cfg.Bus.Device, cfg.Bus.ChipSelect)
		if err != nil {
			return nil, err
		}
		conn, cs, closefn = port, pin, port.Close
	case config.BackendSim:
		sim := mock.NewFlash()
		conn, cs = sim, sim
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Bus.Backend)
	}

	entry := log.WithField("backend", cfg.Bus.Backend)
	dev := flash.New(conn, cs, flash.WithSpeed(cfg.Bus.SpeedHz), flash.WithLogger(entry))
	err := dev.Begin()
	if err == nil {
		err = dev.Identify()
	}
	if err != nil {
		closefn()
		return nil, err
	}

	s := NewSession(dev, flash.WaitPolicy{Attempts: cfg.Wait.Attempts, Interval: cfg.Wait.Interval}, entry)
	s.closefn = closefn
	return s, nil
}

// OnClose runs fn after the transport is released by Close.
func (s *Session) OnClose(fn func() error) {
	prev := s.closefn
	s.closefn = func() error {
		err := prev()
		if ferr := fn(); err == nil {
			err = ferr
		}
		return err
	}
}

func (s *Session) Close() error {
	return s.closefn()
}
