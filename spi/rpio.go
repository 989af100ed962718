package spi

import (
	"fmt"

	rpio "github.com/stianeikeland/go-rpio/v4"
)

// RPIO talks to the Raspberry Pi SPI peripheral through memory-mapped
// registers. The hardware chip select lines are left alone; the flash chip
// select is a plain GPIO (see RPIOPin) so it can stay asserted across
// several exchanges.
type RPIO struct {
	dev rpio.SpiDev
	cur *Settings
}

// RPIOPin is a GPIO output used as an active-low chip select.
type RPIOPin struct {
	pin rpio.Pin
}

var (
	_ Conn       = (*RPIO)(nil)
	_ ChipSelect = (*RPIOPin)(nil)
)

// OpenRPIO opens SPI0 with the flash chip select on GPIO csPin.
func OpenRPIO(csPin uint8) (*RPIO, *RPIOPin, error) {
	return OpenRPIODevice(rpio.Spi0, csPin)
}

func OpenRPIODevice(dev rpio.SpiDev, csPin uint8) (conn *RPIO, cs *RPIOPin, err error) {
	err = rpio.Open()
	if err != nil {
		return
	}
	err = rpio.SpiBegin(dev)
	if err != nil {
		rpio.Close()
		return
	}
	pin := rpio.Pin(csPin)
	pin.Output()
	pin.High()
	return &RPIO{dev: dev}, &RPIOPin{pin: pin}, nil
}

func (r *RPIO) BeginTransaction(s Settings) error {
	if s.BitOrder != MSBFirst {
		return fmt.Errorf("%w: rpio is msb-first only", ErrUnsupported)
	}
	// the peripheral keeps its configuration, only touch it on change
	if r.cur != nil && *r.cur == s {
		return nil
	}
	rpio.SpiSpeed(int(s.SpeedHz))
	rpio.SpiMode(s.Mode.Polarity(), s.Mode.Phase())
	r.cur = &s
	return nil
}

func (*RPIO) Exchange(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	rpio.SpiExchange(buf)
	return nil
}

func (*RPIO) EndTransaction() error { return nil }

func (r *RPIO) Close() error {
	rpio.SpiEnd(r.dev)
	return rpio.Close()
}

func (p *RPIOPin) Select() error {
	p.pin.Low()
	return nil
}

func (p *RPIOPin) Deselect() error {
	p.pin.High()
	return nil
}
