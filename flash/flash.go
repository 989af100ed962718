// Package flash drives a serial NOR flash part with 4-byte addressing over
// SPI.
//
// The driver never caches device state. Busy, write enable and address mode
// are read back from the status registers whenever a command needs them,
// because program and erase cycles finish on their own time.
//
// Programming can only clear bits; a sector has to be erased before its
// pages are written. SectorErase hands back an ErasedSector token and
// WritePage only accepts pages covered by one:
//
//	dev := flash.New(conn, cs)
//	if err := dev.Begin(); err != nil { ... }
//	if err := dev.EnableWrite(); err != nil { ... }
//	erased, err := dev.SectorErase(0)
//	if err != nil { ... }
//	if err := dev.WaitReady(ctx, flash.WaitPolicy{Attempts: 100, Interval: time.Millisecond}); err != nil { ... }
//	if err := dev.EnableWrite(); err != nil { ... }
//	err = dev.WritePage(erased, 3, &page)
//
// A Device is not safe for concurrent use. Callers sharing a bus with other
// devices must serialize access to the whole Device.
package flash

import (
	"fmt"

	"github.com/rabidaudio/tonttuflash/spi"
	"github.com/sirupsen/logrus"
)

// DeviceID is the identity byte the supported part answers with.
const DeviceID = 0x18

// Device is one flash part on a bus.
type Device struct {
	conn     spi.Conn
	cs       spi.ChipSelect
	settings spi.Settings
	log      logrus.FieldLogger

	// latest erasure per sector, older tokens for the sector are stale
	erased map[uint32]*erasure
}

// New returns a driver for the part behind conn and cs. No bus traffic
// happens until Begin or the first command.
func New(conn spi.Conn, cs spi.ChipSelect, opts ...Option) *Device {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Device{
		conn:     conn,
		cs:       cs,
		settings: cfg.Settings,
		log:      cfg.Logger,
		erased:   make(map[uint32]*erasure),
	}
}

// Settings returns the bus settings used for every transaction.
func (d *Device) Settings() spi.Settings {
	return d.settings
}

// Begin releases chip select and switches the part to 4-byte addressing.
// The device is only usable if Begin succeeds.
func (d *Device) Begin() error {
	if err := d.cs.Deselect(); err != nil {
		return fmt.Errorf("flash: begin: %w", err)
	}
	if err := d.Enter4ByteAddressMode(); err != nil {
		return fmt.Errorf("flash: begin: %w", err)
	}
	d.log.WithField("settings", d.settings).Debug("flash: ready")
	return nil
}

// tx runs one transaction. The first byte of bufs[0] is the opcode. Every
// buffer is exchanged in place while chip select is held. Chip select is
// released and the transaction ended on every path.
func (d *Device) tx(bufs ...[]byte) (err error) {
	cmd := Command(bufs[0][0])
	if err = d.conn.BeginTransaction(d.settings); err != nil {
		return fmt.Errorf("flash: %v: %w", cmd, err)
	}
	defer func() {
		if endErr := d.conn.EndTransaction(); endErr != nil && err == nil {
			err = fmt.Errorf("flash: %v: %w", cmd, endErr)
		}
	}()

	if err = d.cs.Select(); err != nil {
		return fmt.Errorf("flash: %v: %w", cmd, err)
	}
	defer func() {
		if csErr := d.cs.Deselect(); csErr != nil && err == nil {
			err = fmt.Errorf("flash: %v: %w", cmd, csErr)
		}
	}()

	for _, buf := range bufs {
		if err = d.conn.Exchange(buf); err != nil {
			return fmt.Errorf("flash: %v: %w", cmd, err)
		}
	}
	return nil
}

// header builds an opcode followed by a big-endian 4-byte address.
func header(cmd Command, address uint32) []byte {
	return []byte{
		byte(cmd),
		byte(address >> 24),
		byte(address >> 16),
		byte(address >> 8),
		byte(address),
	}
}
