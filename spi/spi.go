// Package spi provides the bus transports used by the flash driver.
//
// A transaction on the bus is always framed the same way:
//
//	conn.BeginTransaction(settings)
//	cs.Select()
//	conn.Exchange(...) // one or more times
//	cs.Deselect()
//	conn.EndTransaction()
//
// Exchange is full duplex and works in place: every byte written is replaced
// by the byte clocked in at the same time.
package spi

import "fmt"

const DefaultSpeed = 10_000_000 // 10 MHz

// BitOrder selects which end of each byte is shifted first.
type BitOrder int

const (
	MSBFirst BitOrder = iota
	LSBFirst
)

// Mode is the SPI clock polarity/phase combination (0-3).
//
//	Mode 0: CPOL=0, CPHA=0 (clock idle low, sample on leading edge)
//	Mode 1: CPOL=0, CPHA=1
//	Mode 2: CPOL=1, CPHA=0
//	Mode 3: CPOL=1, CPHA=1
type Mode uint8

const (
	Mode0 Mode = iota
	Mode1
	Mode2
	Mode3
)

// Polarity returns the clock idle level, CPOL.
func (m Mode) Polarity() uint8 { return uint8(m>>1) & 1 }

// Phase returns the sampling edge, CPHA.
func (m Mode) Phase() uint8 { return uint8(m) & 1 }

// Settings are the per-transaction bus parameters.
type Settings struct {
	SpeedHz  uint32
	BitOrder BitOrder
	Mode     Mode
}

// DefaultSettings are what serial NOR parts expect out of reset.
var DefaultSettings = Settings{SpeedHz: DefaultSpeed, BitOrder: MSBFirst, Mode: Mode0}

func (s Settings) String() string {
	order := "msb"
	if s.BitOrder == LSBFirst {
		order = "lsb"
	}
	return fmt.Sprintf("%dHz mode%d %s-first", s.SpeedHz, s.Mode, order)
}

// Conn is an exclusive, ordered byte exchange over the bus.
type Conn interface {
	BeginTransaction(s Settings) error
	Exchange(buf []byte) error
	EndTransaction() error
}

// ChipSelect drives the device's select line. Select asserts it (usually low).
type ChipSelect interface {
	Select() error
	Deselect() error
}

var ErrUnsupported = fmt.Errorf("spi: settings not supported by transport")
