package mock

import (
	"bytes"
	"testing"

	"github.com/rabidaudio/tonttuflash/spi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failIfErr(t *testing.T, err error) {
	if err != nil {
		t.Fatal(err)
	}
}

// run performs one framed transaction and returns what the part drove back.
func run(t *testing.T, m *Flash, parts ...[]byte) [][]byte {
	failIfErr(t, m.BeginTransaction(spi.DefaultSettings))
	failIfErr(t, m.Select())
	for _, p := range parts {
		failIfErr(t, m.Exchange(p))
	}
	failIfErr(t, m.Deselect())
	failIfErr(t, m.EndTransaction())
	return parts
}

func status1(t *testing.T, m *Flash) byte {
	return run(t, m, []byte{opReadStatus1, 0})[0][1]
}

func TestFreshPartIsErased(t *testing.T) {
	m := NewFlash()
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF}, m.Peek(0x1234, 3))
	assert.Equal(t, byte(0), status1(t, m))
}

func TestReadID(t *testing.T) {
	m := NewFlash()
	buf := run(t, m, []byte{opReadID, 0, 0, 0, 0})[0]
	assert.Equal(t, byte(DefaultID), buf[4])
}

func TestWriteEnableAndProgram(t *testing.T) {
	m := NewFlash()
	m.BusyPolls = 2

	run(t, m, []byte{opWriteEnable})
	assert.Equal(t, byte(0x02), status1(t, m))

	data := make([]byte, PageSize)
	for i := range data {
		data[i] = byte(i)
	}
	want := bytes.Clone(data)
	run(t, m, []byte{opProgram4, 0x00, 0x00, 0x01, 0x00}, data)

	assert.False(t, m.WriteEnabled())
	assert.True(t, m.Busy())
	assert.Equal(t, byte(0x01), status1(t, m))
	assert.Equal(t, byte(0x01), status1(t, m))
	assert.Equal(t, byte(0x00), status1(t, m))
	assert.Equal(t, want, m.Peek(0x100, PageSize))
	// exchange is in place, the part drives zeros back while data shifts in
	assert.Equal(t, make([]byte, PageSize), data)

	tx := m.Commands(opProgram4)
	require.Len(t, tx, 1)
	assert.Equal(t, uint32(0x100), tx[0].Address)
	assert.Equal(t, PageSize+5, tx[0].Length)
}

func TestProgramOnlyClearsBits(t *testing.T) {
	m := NewFlash()
	m.Poke(0, []byte{0xF0})

	page := make([]byte, PageSize)
	for i := range page {
		page[i] = 0xFF
	}
	page[0] = 0x3C
	m.SetWriteEnabled(true)
	run(t, m, []byte{opProgram4, 0, 0, 0, 0}, page)
	assert.Equal(t, byte(0x30), m.Peek(0, 1)[0])
}

func TestProgramWithoutWriteEnableIsIgnored(t *testing.T) {
	m := NewFlash()
	run(t, m, []byte{opProgram4, 0, 0, 0, 0}, make([]byte, PageSize))
	assert.Equal(t, byte(0xFF), m.Peek(0, 1)[0])
	assert.Equal(t, 1, m.Count(opProgram4))
}

func TestEraseSector(t *testing.T) {
	m := NewFlash()
	m.Poke(SectorSize-1, []byte{0x00, 0x00})
	m.SetWriteEnabled(true)

	run(t, m, []byte{opErase4, 0x00, 0x00, 0x10, 0x00})
	assert.Equal(t, []byte{0x00, 0xFF}, m.Peek(SectorSize-1, 2))
	assert.False(t, m.WriteEnabled())
}

func TestCommandsIgnoredWhileBusy(t *testing.T) {
	m := NewFlash()
	m.StuckBusy = true
	run(t, m, []byte{opWriteEnable})
	assert.False(t, m.WriteEnabled())
	run(t, m, []byte{opEnter4Byte})
	assert.False(t, m.AddressMode4Byte())
}

func TestFailCommand(t *testing.T) {
	m := NewFlash()
	m.FailCommand(opWriteEnable, 1)

	run(t, m, []byte{opWriteEnable})
	assert.True(t, m.WriteEnabled())
	m.SetWriteEnabled(false)

	failIfErr(t, m.BeginTransaction(spi.DefaultSettings))
	failIfErr(t, m.Select())
	assert.Error(t, m.Exchange([]byte{opWriteEnable}))
	failIfErr(t, m.Deselect())
	failIfErr(t, m.EndTransaction())

	assert.False(t, m.WriteEnabled())
	assert.Equal(t, 2, m.Count(opWriteEnable))
	assert.True(t, m.Transactions[1].Failed)
}

func TestFramingErrors(t *testing.T) {
	m := NewFlash()
	assert.Error(t, m.Select())
	assert.Error(t, m.Exchange([]byte{0}))
	assert.Error(t, m.EndTransaction())

	failIfErr(t, m.BeginTransaction(spi.DefaultSettings))
	failIfErr(t, m.Select())
	assert.Error(t, m.EndTransaction())
}
