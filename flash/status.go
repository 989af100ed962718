package flash

import (
	"fmt"
	"strings"
)

// Register selects one of the three status registers.
type Register int

const (
	Status1 Register = 1
	Status2 Register = 2
	Status3 Register = 3
)

func (r Register) command() (Command, error) {
	switch r {
	case Status1:
		return CmdReadStatus1, nil
	case Status2:
		return CmdReadStatus2, nil
	case Status3:
		return CmdReadStatus3, nil
	default:
		return 0, fmt.Errorf("flash: no status register %d", int(r))
	}
}

// StatusRegister is the content of status register 1.
//
//	Bit | Meaning
//	----+--------------------------------
//	7   | SRP: status register protect
//	6   | TB: top/bottom protect
//	5:2 | BP3-0: block protect
//	1   | WEL: write enable latch
//	0   | BUSY: erase/program in progress
type StatusRegister byte

// Busy reports a program or erase in progress.
func (sr StatusRegister) Busy() bool { return sr&(1<<0) != 0 }

// WriteEnabled reports the write enable latch.
func (sr StatusRegister) WriteEnabled() bool { return sr&(1<<1) != 0 }

// BlockProtect returns the BP3-0 field.
func (sr StatusRegister) BlockProtect() byte { return byte(sr>>2) & 0x0F }

// TopBottom reports whether block protection counts from the bottom.
func (sr StatusRegister) TopBottom() bool { return sr&(1<<6) != 0 }

// Protected reports the status register protect bit.
func (sr StatusRegister) Protected() bool { return sr&(1<<7) != 0 }

// State derives the observed device state.
func (sr StatusRegister) State() State {
	switch {
	case sr.Busy():
		return StateBusy
	case sr.WriteEnabled():
		return StateWriteEnabled
	default:
		return StateIdle
	}
}

func (sr StatusRegister) String() string {
	b := fmt.Sprintf("%08b", byte(sr))
	s := []string{}
	if sr.Protected() {
		s = append(s, "SRP")
	}
	if sr.TopBottom() {
		s = append(s, "TB")
	}
	if bp := sr.BlockProtect(); bp != 0 {
		s = append(s, fmt.Sprintf("BP=%d", bp))
	}
	if sr.WriteEnabled() {
		s = append(s, "WEL")
	}
	if sr.Busy() {
		s = append(s, "BUSY")
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}

// State is what the part is doing as of the last status read. The part
// moves Idle/WriteEnabled -> Busy on a program or erase and returns to Idle
// with the latch cleared on its own; the driver only observes it.
type State int

const (
	StateIdle State = iota
	StateWriteEnabled
	StateBusy
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWriteEnabled:
		return "idle (write enabled)"
	case StateBusy:
		return "busy"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ReadStatusRegister returns the raw content of status register r.
func (d *Device) ReadStatusRegister(r Register) (byte, error) {
	cmd, err := r.command()
	if err != nil {
		return 0, err
	}
	buf := []byte{byte(cmd), 0x00}
	if err := d.tx(buf); err != nil {
		return 0, err
	}
	d.log.WithField("sr", int(r)).Tracef("flash: status 0x%02X", buf[1])
	return buf[1], nil
}

// Status reads and decodes status register 1.
func (d *Device) Status() (StatusRegister, error) {
	b, err := d.ReadStatusRegister(Status1)
	return StatusRegister(b), err
}

// State reads status register 1 and reports the observed state.
func (d *Device) State() (State, error) {
	sr, err := d.Status()
	if err != nil {
		return 0, err
	}
	return sr.State(), nil
}

// Busy reads status register 1 and reports the busy bit.
func (d *Device) Busy() (bool, error) {
	sr, err := d.Status()
	return sr.Busy(), err
}

// WriteEnabled reads status register 1 and reports the write enable latch.
func (d *Device) WriteEnabled() (bool, error) {
	sr, err := d.Status()
	return sr.WriteEnabled(), err
}

// AddressMode4Byte reports the current address mode bit from status
// register 3.
func (d *Device) AddressMode4Byte() (bool, error) {
	b, err := d.ReadStatusRegister(Status3)
	return b&(1<<0) != 0, err
}

// ready checks the preconditions of cmd with a single read of status
// register 1, so busy and the latch are sampled together right before the
// command goes out.
func (d *Device) ready(cmd Command, needWrite bool) error {
	sr, err := d.Status()
	if err != nil {
		return err
	}
	if sr.Busy() {
		return fmt.Errorf("%w (%v)", ErrBusy, cmd)
	}
	if needWrite && !sr.WriteEnabled() {
		return fmt.Errorf("%w (%v)", ErrWriteDisabled, cmd)
	}
	return nil
}
