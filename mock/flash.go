// Package mock provides a simulated serial NOR flash part that plugs into
// the spi transport interfaces. It decodes the command stream byte by byte
// the way the silicon does, so driver code can be exercised without
// hardware.
package mock

import (
	"fmt"

	"github.com/rabidaudio/tonttuflash/spi"
)

const (
	PageSize   = 256
	SectorSize = 4096

	DefaultID = 0x18
)

// opcodes understood by the simulated part
const (
	opReadStatus1 = 0x05
	opReadStatus2 = 0x35
	opReadStatus3 = 0x15
	opEnter4Byte  = 0xB7
	opWriteEnable = 0x06
	opReadID      = 0xAB
	opRead4       = 0x13
	opProgram4    = 0x12
	opErase4      = 0x21
)

// Transaction is one chip-select window as seen by the device.
type Transaction struct {
	Opcode  byte
	Address uint32
	Length  int // bytes clocked while selected, opcode included
	Failed  bool
}

// Flash simulates the part. The zero value is not usable, call NewFlash.
//
// Erase sets every byte of the sector to 0xFF, program ANDs the new data
// into the page. The write enable latch clears after every program or
// erase, and the part then reports busy for BusyPolls status reads.
type Flash struct {
	ID byte

	// StuckBusy forces the busy bit on regardless of internal state.
	StuckBusy bool
	// BusyPolls is how many status register reads a program or erase keeps
	// the busy bit set for.
	BusyPolls int
	// IgnoreWriteEnable makes the part drop write enable commands.
	IgnoreWriteEnable bool
	// Ignore4ByteMode makes the part drop the enter 4-byte mode command.
	Ignore4ByteMode bool

	Settings     spi.Settings
	Transactions []Transaction

	status2 byte
	wel     bool
	mode4   bool
	busy    int

	mem map[uint32]*[SectorSize]byte

	inTx     bool
	selected bool
	cur      Transaction
	pos      int
	staged   [PageSize]byte

	failures map[byte][]int
	seen     map[byte]int
}

var (
	_ spi.Conn       = (*Flash)(nil)
	_ spi.ChipSelect = (*Flash)(nil)
)

func NewFlash() *Flash {
	return &Flash{
		ID:       DefaultID,
		mem:      make(map[uint32]*[SectorSize]byte),
		failures: make(map[byte][]int),
		seen:     make(map[byte]int),
	}
}

// FailCommand makes the nth (0-indexed) transaction carrying opcode fail
// with a bus error when its opcode is exchanged.
func (m *Flash) FailCommand(opcode byte, nth int) {
	m.failures[opcode] = append(m.failures[opcode], nth)
}

// SetWriteEnabled sets the write enable latch directly.
func (m *Flash) SetWriteEnabled(on bool) { m.wel = on }

// Busy reports the internal busy state without consuming a status poll.
func (m *Flash) Busy() bool { return m.StuckBusy || m.busy > 0 }

func (m *Flash) WriteEnabled() bool { return m.wel }

func (m *Flash) AddressMode4Byte() bool { return m.mode4 }

// Count returns how many transactions carried opcode.
func (m *Flash) Count(opcode byte) int {
	n := 0
	for _, t := range m.Transactions {
		if t.Opcode == opcode {
			n++
		}
	}
	return n
}

// Commands returns the transactions that carried opcode, in order.
func (m *Flash) Commands(opcode byte) []Transaction {
	var out []Transaction
	for _, t := range m.Transactions {
		if t.Opcode == opcode {
			out = append(out, t)
		}
	}
	return out
}

// Reset forgets the recorded transactions.
func (m *Flash) Reset() {
	m.Transactions = nil
}

// Peek returns a copy of n bytes of memory starting at addr.
func (m *Flash) Peek(addr uint32, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = m.load(addr + uint32(i))
	}
	return out
}

// Poke writes raw bytes into memory, bypassing the command set.
func (m *Flash) Poke(addr uint32, data []byte) {
	for i, b := range data {
		m.store(addr+uint32(i), b)
	}
}

func (m *Flash) sector(addr uint32) *[SectorSize]byte {
	base := addr &^ (SectorSize - 1)
	s, ok := m.mem[base]
	if !ok {
		s = new([SectorSize]byte)
		for i := range s {
			s[i] = 0xFF
		}
		m.mem[base] = s
	}
	return s
}

func (m *Flash) load(addr uint32) byte {
	s, ok := m.mem[addr&^(SectorSize-1)]
	if !ok {
		return 0xFF
	}
	return s[addr&(SectorSize-1)]
}

func (m *Flash) store(addr uint32, b byte) {
	m.sector(addr)[addr&(SectorSize-1)] = b
}

func (m *Flash) status1() byte {
	var sr byte
	if m.Busy() {
		sr |= 1 << 0
	}
	if m.wel {
		sr |= 1 << 1
	}
	return sr
}

func (m *Flash) status3() byte {
	if m.mode4 {
		return 1 << 0
	}
	return 0
}

func (m *Flash) BeginTransaction(s spi.Settings) error {
	if m.inTx {
		return fmt.Errorf("mock: nested transaction")
	}
	m.inTx = true
	m.Settings = s
	return nil
}

func (m *Flash) EndTransaction() error {
	if !m.inTx {
		return fmt.Errorf("mock: end without begin")
	}
	if m.selected {
		return fmt.Errorf("mock: transaction ended with chip selected")
	}
	m.inTx = false
	return nil
}

func (m *Flash) Select() error {
	if !m.inTx {
		return fmt.Errorf("mock: select outside of a transaction")
	}
	m.selected = true
	m.cur = Transaction{}
	m.pos = 0
	return nil
}

func (m *Flash) Deselect() error {
	if !m.selected {
		return nil
	}
	m.selected = false
	if m.pos == 0 {
		return nil
	}
	m.cur.Length = m.pos
	m.Transactions = append(m.Transactions, m.cur)
	if !m.cur.Failed {
		m.execute()
	}
	return nil
}

func (m *Flash) Exchange(buf []byte) error {
	if !m.selected {
		return fmt.Errorf("mock: exchange without chip select")
	}
	for i, b := range buf {
		if m.pos == 0 {
			if m.shouldFail(b) {
				m.cur.Opcode = b
				m.cur.Failed = true
				m.pos++
				return fmt.Errorf("mock: bus error on opcode 0x%02X", b)
			}
		}
		buf[i] = m.shift(b)
		m.pos++
	}
	return nil
}

func (m *Flash) shouldFail(opcode byte) bool {
	n := m.seen[opcode]
	m.seen[opcode] = n + 1
	for _, f := range m.failures[opcode] {
		if f == n {
			return true
		}
	}
	return false
}

// shift consumes one byte from the controller and returns the byte the part
// drives back at the same time.
func (m *Flash) shift(b byte) byte {
	if m.pos == 0 {
		m.cur.Opcode = b
		return 0
	}
	switch m.cur.Opcode {
	case opReadStatus1:
		return m.status1()
	case opReadStatus2:
		return m.status2
	case opReadStatus3:
		return m.status3()
	case opReadID:
		if m.pos >= 4 {
			return m.ID
		}
		return 0
	case opRead4, opProgram4, opErase4:
		if m.pos <= 4 {
			m.cur.Address = m.cur.Address<<8 | uint32(b)
			if m.pos == 4 && m.cur.Opcode == opProgram4 {
				for i := range m.staged {
					m.staged[i] = 0xFF
				}
			}
			return 0
		}
		data := m.pos - 5
		switch m.cur.Opcode {
		case opRead4:
			if m.Busy() {
				return 0xFF
			}
			return m.load(m.cur.Address + uint32(data))
		case opProgram4:
			// page program wraps within the page
			off := (int(m.cur.Address&(PageSize-1)) + data) % PageSize
			m.staged[off] &= b
		}
	}
	return 0
}

// execute applies commands that take effect when chip select rises.
func (m *Flash) execute() {
	switch m.cur.Opcode {
	case opReadStatus1, opReadStatus2, opReadStatus3:
		if m.busy > 0 {
			m.busy--
		}
		return
	}
	// everything but status reads is ignored while an operation runs
	if m.Busy() {
		return
	}
	switch m.cur.Opcode {
	case opWriteEnable:
		if !m.IgnoreWriteEnable {
			m.wel = true
		}
	case opEnter4Byte:
		if !m.Ignore4ByteMode {
			m.mode4 = true
		}
	case opProgram4:
		if !m.wel || m.pos <= 5 {
			return
		}
		base := m.cur.Address &^ (PageSize - 1)
		for i, b := range m.staged {
			m.store(base+uint32(i), m.load(base+uint32(i))&b)
		}
		m.finishWrite()
	case opErase4:
		if !m.wel || m.pos != 5 {
			return
		}
		s := m.sector(m.cur.Address)
		for i := range s {
			s[i] = 0xFF
		}
		m.finishWrite()
	}
}

func (m *Flash) finishWrite() {
	m.wel = false
	m.busy = m.BusyPolls
}
