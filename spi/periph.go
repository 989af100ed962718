package spi

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	pspi "periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Periph is a transport over any SPI port registered with periph.io
// (spidev, FTDI MPSSE, ...). periph ports can only be connected once, so the
// first transaction fixes the settings for the life of the port.
type Periph struct {
	port pspi.PortCloser
	conn pspi.Conn
	cur  Settings
}

// PeriphPin is a periph.io GPIO used as an active-low chip select.
type PeriphPin struct {
	pin gpio.PinOut
}

var (
	_ Conn       = (*Periph)(nil)
	_ ChipSelect = (*PeriphPin)(nil)
)

// OpenPeriph initializes the host drivers and opens the named SPI port
// ("" for the first one) with the chip select on the named GPIO.
func OpenPeriph(portName, csName string) (*Periph, *PeriphPin, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("spi: periph host init: %w", err)
	}
	pin := gpioreg.ByName(csName)
	if pin == nil {
		return nil, nil, fmt.Errorf("spi: no gpio named %q", csName)
	}
	port, err := spireg.Open(portName)
	if err != nil {
		return nil, nil, fmt.Errorf("spi: open port %q: %w", portName, err)
	}
	cs := NewPeriphPin(pin)
	if err := cs.Deselect(); err != nil {
		port.Close()
		return nil, nil, err
	}
	return NewPeriph(port), cs, nil
}

func NewPeriph(port pspi.PortCloser) *Periph {
	return &Periph{port: port}
}

func NewPeriphPin(pin gpio.PinOut) *PeriphPin {
	return &PeriphPin{pin: pin}
}

// periphMode maps Settings onto periph's mode flags. The driver owns chip
// select, so the port is always told not to drive its own.
func periphMode(s Settings) pspi.Mode {
	var m pspi.Mode
	switch s.Mode {
	case Mode1:
		m = pspi.Mode1
	case Mode2:
		m = pspi.Mode2
	case Mode3:
		m = pspi.Mode3
	default:
		m = pspi.Mode0
	}
	if s.BitOrder == LSBFirst {
		m |= pspi.LSBFirst
	}
	return m | pspi.NoCS
}

func (p *Periph) BeginTransaction(s Settings) error {
	if p.conn != nil {
		if s != p.cur {
			return fmt.Errorf("%w: port already connected at %v", ErrUnsupported, p.cur)
		}
		return nil
	}
	conn, err := p.port.Connect(physic.Frequency(s.SpeedHz)*physic.Hertz, periphMode(s), 8)
	if err != nil {
		return fmt.Errorf("spi: connect %v: %w", s, err)
	}
	p.conn = conn
	p.cur = s
	return nil
}

func (p *Periph) Exchange(buf []byte) error {
	if p.conn == nil {
		return fmt.Errorf("spi: exchange outside of a transaction")
	}
	if len(buf) == 0 {
		return nil
	}
	return p.conn.Tx(buf, buf)
}

func (*Periph) EndTransaction() error { return nil }

func (p *Periph) Close() error {
	return p.port.Close()
}

func (p *PeriphPin) Select() error {
	return p.pin.Out(gpio.Low)
}

func (p *PeriphPin) Deselect() error {
	return p.pin.Out(gpio.High)
}
