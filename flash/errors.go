package flash

import "fmt"

var (
	// ErrBusy is returned when the part reports an operation in progress.
	ErrBusy = fmt.Errorf("flash: device busy")
	// ErrWriteDisabled is returned when a program or erase is attempted
	// without the write enable latch set.
	ErrWriteDisabled = fmt.Errorf("flash: write enable latch not set")
	// ErrNotErased is returned by WritePage when the page is not covered by
	// a fresh erase of its sector.
	ErrNotErased = fmt.Errorf("flash: page not erased")
	// ErrTimeout is returned by WaitReady when the part stays busy for the
	// whole wait policy.
	ErrTimeout = fmt.Errorf("flash: timed out waiting for device")
	// ErrReadTooLong is returned when a single read would exceed MaxReadLength.
	ErrReadTooLong = fmt.Errorf("flash: read length exceeds %d bytes", MaxReadLength)
)

// Command is a single-byte opcode of the part's instruction set.
type Command byte

const (
	CmdReadStatus1    Command = 0x05
	CmdReadStatus2    Command = 0x35
	CmdReadStatus3    Command = 0x15
	CmdEnter4ByteMode Command = 0xB7
	CmdWriteEnable    Command = 0x06
	CmdReadID         Command = 0xAB
	CmdRead           Command = 0x13
	CmdPageProgram    Command = 0x12
	CmdSectorErase    Command = 0x21
)

func (c Command) name() string {
	switch c {
	case CmdReadStatus1:
		return "read status register 1"
	case CmdReadStatus2:
		return "read status register 2"
	case CmdReadStatus3:
		return "read status register 3"
	case CmdEnter4ByteMode:
		return "enter 4-byte address mode"
	case CmdWriteEnable:
		return "write enable"
	case CmdReadID:
		return "read device id"
	case CmdRead:
		return "read"
	case CmdPageProgram:
		return "page program"
	case CmdSectorErase:
		return "sector erase"
	default:
		return fmt.Sprintf("opcode 0x%02X", byte(c))
	}
}

func (c Command) String() string {
	return c.name()
}

// VerifyError is returned when a mode-setting command was accepted on the
// bus but re-reading the status register shows it did not take effect.
type VerifyError struct {
	Command  Command
	Register Register
	Value    byte
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("flash: %v did not take effect (status register %d = 0x%02X)",
		e.Command, e.Register, e.Value)
}

// DeviceMismatchError indicates the part answered with an unexpected identity.
type DeviceMismatchError struct {
	Expected byte
	Actual   byte
}

func (e *DeviceMismatchError) Error() string {
	return fmt.Sprintf("flash: device mismatch: expected id 0x%02X, got 0x%02X", e.Expected, e.Actual)
}

// AddressError reports an address, page or sector the operation cannot use.
type AddressError struct {
	Op     string
	Value  uint64
	Reason string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("flash: %s 0x%X: %s", e.Op, e.Value, e.Reason)
}

// EraseError reports a multi-sector erase that stopped part way. Sectors
// below Sector were erased, Sector and everything after it were not.
type EraseError struct {
	Sector uint32
	Err    error
}

func (e *EraseError) Error() string {
	return fmt.Sprintf("flash: erase stopped at sector %d: %v", e.Sector, e.Err)
}

func (e *EraseError) Unwrap() error {
	return e.Err
}
