package flash

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Enter4ByteAddressMode switches the part to 32-bit addresses and confirms
// the switch by reading status register 3 back.
func (d *Device) Enter4ByteAddressMode() error {
	if err := d.ready(CmdEnter4ByteMode, false); err != nil {
		return err
	}
	if err := d.tx([]byte{byte(CmdEnter4ByteMode)}); err != nil {
		return err
	}
	sr3, err := d.ReadStatusRegister(Status3)
	if err != nil {
		return err
	}
	if sr3&(1<<0) == 0 {
		return &VerifyError{Command: CmdEnter4ByteMode, Register: Status3, Value: sr3}
	}
	d.log.Debug("flash: 4-byte address mode")
	return nil
}

// EnableWrite sets the write enable latch and confirms it by reading status
// register 1 back. The part clears the latch after every program or erase,
// so it has to be set again before each one.
func (d *Device) EnableWrite() error {
	if err := d.ready(CmdWriteEnable, false); err != nil {
		return err
	}
	if err := d.tx([]byte{byte(CmdWriteEnable)}); err != nil {
		return err
	}
	sr, err := d.Status()
	if err != nil {
		return err
	}
	if !sr.WriteEnabled() {
		return &VerifyError{Command: CmdWriteEnable, Register: Status1, Value: byte(sr)}
	}
	return nil
}

// ReadDeviceID returns the part's identity byte. The opcode is followed by
// three dummy bytes; the id comes back on the fifth byte.
func (d *Device) ReadDeviceID() (byte, error) {
	if err := d.ready(CmdReadID, false); err != nil {
		return 0, err
	}
	buf := []byte{byte(CmdReadID), 0x00, 0x00, 0x00, 0x00}
	if err := d.tx(buf); err != nil {
		return 0, err
	}
	return buf[4], nil
}

// Identify checks that the expected part is present.
func (d *Device) Identify() error {
	id, err := d.ReadDeviceID()
	if err != nil {
		return err
	}
	if id != DeviceID {
		return &DeviceMismatchError{Expected: DeviceID, Actual: id}
	}
	return nil
}

// Works reports whether the part answers with the expected identity.
func (d *Device) Works() bool {
	return d.Identify() == nil
}

// ReadRaw reads len(out) bytes starting at address in one transaction.
func (d *Device) ReadRaw(address uint32, out []byte) error {
	if len(out) > MaxReadLength {
		return ErrReadTooLong
	}
	if err := d.ready(CmdRead, false); err != nil {
		return err
	}
	clear(out)
	d.log.WithFields(logrus.Fields{"addr": fmt.Sprintf("0x%08X", address), "len": len(out)}).Trace("flash: read")
	return d.tx(header(CmdRead, address), out)
}

// ProgramPage programs one full page at a page aligned address. Bits can
// only go from 1 to 0; the page must have been erased first. The write
// enable latch must be set.
func (d *Device) ProgramPage(address uint32, data *Page) error {
	if address%PageSize != 0 {
		return &AddressError{Op: "program", Value: uint64(address), Reason: "not page aligned"}
	}
	if err := d.ready(CmdPageProgram, true); err != nil {
		return err
	}
	buf := *data
	d.log.WithField("addr", fmt.Sprintf("0x%08X", address)).Debug("flash: page program")
	return d.tx(header(CmdPageProgram, address), buf[:])
}

// EraseSector starts erasing the sector at a sector aligned address. The
// erase runs on after the call returns; the part reports busy until it is
// done. The write enable latch must be set.
func (d *Device) EraseSector(address uint32) error {
	if address%SectorSize != 0 {
		return &AddressError{Op: "erase", Value: uint64(address), Reason: "not sector aligned"}
	}
	if err := d.ready(CmdSectorErase, true); err != nil {
		return err
	}
	d.log.WithField("addr", fmt.Sprintf("0x%08X", address)).Debug("flash: sector erase")
	return d.tx(header(CmdSectorErase, address))
}
