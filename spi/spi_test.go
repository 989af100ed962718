package spi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	pspi "periph.io/x/conn/v3/spi"
)

func TestModeBits(t *testing.T) {
	assert.Equal(t, uint8(0), Mode0.Polarity())
	assert.Equal(t, uint8(0), Mode0.Phase())
	assert.Equal(t, uint8(0), Mode1.Polarity())
	assert.Equal(t, uint8(1), Mode1.Phase())
	assert.Equal(t, uint8(1), Mode2.Polarity())
	assert.Equal(t, uint8(0), Mode2.Phase())
	assert.Equal(t, uint8(1), Mode3.Polarity())
	assert.Equal(t, uint8(1), Mode3.Phase())
}

func TestDefaultSettings(t *testing.T) {
	assert.Equal(t, uint32(10_000_000), DefaultSettings.SpeedHz)
	assert.Equal(t, MSBFirst, DefaultSettings.BitOrder)
	assert.Equal(t, Mode0, DefaultSettings.Mode)
	assert.Equal(t, "10000000Hz mode0 msb-first", DefaultSettings.String())
}

func TestPeriphMode(t *testing.T) {
	assert.Equal(t, pspi.Mode0|pspi.NoCS, periphMode(DefaultSettings))
	assert.Equal(t, pspi.Mode3|pspi.NoCS, periphMode(Settings{Mode: Mode3}))
	assert.Equal(t, pspi.Mode1|pspi.LSBFirst|pspi.NoCS, periphMode(Settings{Mode: Mode1, BitOrder: LSBFirst}))
}

type fakePort struct {
	connects int
	freq     physic.Frequency
	mode     pspi.Mode
	conn     *fakeConn
}

func (p *fakePort) String() string                      { return "fake" }
func (p *fakePort) LimitSpeed(f physic.Frequency) error { return nil }
func (p *fakePort) Close() error                        { return nil }

func (p *fakePort) Connect(f physic.Frequency, mode pspi.Mode, bits int) (pspi.Conn, error) {
	p.connects++
	p.freq = f
	p.mode = mode
	p.conn = &fakeConn{}
	return p.conn, nil
}

// fakeConn echoes every byte back inverted.
type fakeConn struct {
	written []byte
}

func (c *fakeConn) String() string                  { return "fake" }
func (c *fakeConn) Duplex() conn.Duplex             { return conn.Full }
func (c *fakeConn) TxPackets(p []pspi.Packet) error { return nil }

func (c *fakeConn) Tx(w, r []byte) error {
	c.written = append(c.written, w...)
	for i := range r {
		r[i] = ^w[i]
	}
	return nil
}

func TestPeriphConnectsOnce(t *testing.T) {
	port := &fakePort{}
	p := NewPeriph(port)

	require.NoError(t, p.BeginTransaction(DefaultSettings))
	require.NoError(t, p.EndTransaction())
	require.NoError(t, p.BeginTransaction(DefaultSettings))
	assert.Equal(t, 1, port.connects)
	assert.Equal(t, 10*physic.MegaHertz, port.freq)

	err := p.BeginTransaction(Settings{SpeedHz: 1_000_000})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestPeriphExchangeInPlace(t *testing.T) {
	port := &fakePort{}
	p := NewPeriph(port)

	assert.Error(t, p.Exchange([]byte{0x05}))

	require.NoError(t, p.BeginTransaction(DefaultSettings))
	buf := []byte{0x05, 0x00}
	require.NoError(t, p.Exchange(buf))
	assert.Equal(t, []byte{0x05, 0x00}, port.conn.written)
	assert.Equal(t, []byte{0xFA, 0xFF}, buf)
}

func TestPeriphPin(t *testing.T) {
	pin := &gpiotest.Pin{N: "CS", Num: 17}
	cs := NewPeriphPin(pin)

	require.NoError(t, cs.Select())
	assert.Equal(t, gpio.Low, pin.L)
	require.NoError(t, cs.Deselect())
	assert.Equal(t, gpio.High, pin.L)
}

func TestRPIORejectsLSBFirst(t *testing.T) {
	r := &RPIO{}
	err := r.BeginTransaction(Settings{SpeedHz: DefaultSpeed, BitOrder: LSBFirst})
	assert.ErrorIs(t, err, ErrUnsupported)
}
