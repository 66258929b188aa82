package memdev

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeekStart(t *testing.T) {
	assertT := assert.New(t)

	dev := newDev()

	o, err := dev.Seek(-1, io.SeekStart)
	assertT.Error(err)
	assertT.EqualValues(0, o)

	o, err = dev.Seek(0, io.SeekStart)
	assertT.NoError(err)
	assertT.EqualValues(0, o)

	o, err = dev.Seek(5, io.SeekStart)
	assertT.NoError(err)
	assertT.EqualValues(5, o)

	o, err = dev.Seek(10, io.SeekStart)
	assertT.NoError(err)
	assertT.EqualValues(10, o)

	o, err = dev.Seek(11, io.SeekStart)
	assertT.Error(err)
	assertT.EqualValues(0, o)
}

func TestSeekCurrent(t *testing.T) {
	assertT := assert.New(t)

	dev := newDev()

	o, err := dev.Seek(-1, io.SeekCurrent)
	assertT.Error(err)
	assertT.EqualValues(0, o)

	o, err = dev.Seek(11, io.SeekCurrent)
	assertT.Error(err)
	assertT.EqualValues(0, o)

	o, err = dev.Seek(10, io.SeekCurrent)
	assertT.NoError(err)
	assertT.EqualValues(10, o)

	o, err = dev.Seek(1, io.SeekCurrent)
	assertT.Error(err)
	assertT.EqualValues(0, o)

	o, err = dev.Seek(-5, io.SeekCurrent)
	assertT.NoError(err)
	assertT.EqualValues(5, o)

	o, err = dev.Seek(-6, io.SeekCurrent)
	assertT.Error(err)
	assertT.EqualValues(0, o)

	o, err = dev.Seek(-5, io.SeekCurrent)
	assertT.NoError(err)
	assertT.EqualValues(0, o)

	o, err = dev.Seek(7, io.SeekCurrent)
	assertT.NoError(err)
	assertT.EqualValues(7, o)

	o, err = dev.Seek(-1, io.SeekCurrent)
	assertT.NoError(err)
	assertT.EqualValues(6, o)

	o, err = dev.Seek(2, io.SeekCurrent)
	assertT.NoError(err)
	assertT.EqualValues(8, o)

	o, err = dev.Seek(0, io.SeekCurrent)
	assertT.NoError(err)
	assertT.EqualValues(8, o)
}

func TestSeekEnd(t *testing.T) {
	assertT := assert.New(t)

	dev := newDev()

	o, err := dev.Seek(0, io.SeekEnd)
	assertT.NoError(err)
	assertT.EqualValues(10, o)

	o, err = dev.Seek(1, io.SeekEnd)
	assertT.Error(err)
	assertT.EqualValues(0, o)

	o, err = dev.Seek(-1, io.SeekEnd)
	assertT.NoError(err)
	assertT.EqualValues(9, o)

	o, err = dev.Seek(-10, io.SeekEnd)
	assertT.NoError(err)
	assertT.EqualValues(0, o)

	o, err = dev.Seek(-11, io.SeekEnd)
	assertT.Error(err)
	assertT.EqualValues(0, o)

	o, err = dev.Seek(-5, io.SeekEnd)
	assertT.NoError(err)
	assertT.EqualValues(5, o)
}

func TestRead(t *testing.T) {
	assertT := assert.New(t)

	dev := newDev()

	n, err := dev.Read(nil)
	assertT.NoError(err)
	assertT.EqualValues(0, n)

	n, err = dev.Read([]byte{})
	assertT.NoError(err)
	assertT.EqualValues(0, n)

	buf := make([]byte, 3)
	n, err = dev.Read(buf)
	assertT.NoError(err)
	assertT.EqualValues(3, n)
	assertT.EqualValues([]byte{0x00, 0x01, 0x02}, buf)

	o, err := dev.Seek(1, io.SeekStart)
	assertT.NoError(err)
	assertT.EqualValues(1, o)
	n, err = dev.Read(buf)
	assertT.NoError(err)
	assertT.EqualValues(3, n)
	assertT.EqualValues([]byte{0x01, 0x02, 0x03}, buf)

	o, err = dev.Seek(-1, io.SeekEnd)
	assertT.NoError(err)
	assertT.EqualValues(9, o)
	n, err = dev.Read(buf)
	assertT.NoError(err)
	assertT.EqualValues(1, n)
	assertT.EqualValues([]byte{0x09, 0x02, 0x03}, buf)

	o, err = dev.Seek(0, io.SeekEnd)
	assertT.NoError(err)
	assertT.EqualValues(10, o)
	n, err = dev.Read(buf)
	assertT.NoError(err)
	assertT.EqualValues(0, n)
	assertT.EqualValues([]byte{0x09, 0x02, 0x03}, buf)

	o, err = dev.Seek(0, io.SeekStart)
	assertT.NoError(err)
	assertT.EqualValues(0, o)
	n, err = dev.Read(buf)
	assertT.NoError(err)
	assertT.EqualValues(3, n)
	n, err = dev.Read(buf)
	assertT.NoError(err)
	assertT.EqualValues(3, n)
	assertT.EqualValues([]byte{0x03, 0x04, 0x05}, buf)
}

func TestWrite(t *testing.T) {
	assertT := assert.New(t)

	dev := newDev()

	n, err := dev.Write(nil)
	assertT.NoError(err)
	assertT.EqualValues(0, n)

	n, err = dev.Write([]byte{})
	assertT.NoError(err)
	assertT.EqualValues(0, n)

	buf := []byte{0x10, 0x11, 0x12}
	n, err = dev.Write(buf)
	assertT.NoError(err)
	assertT.EqualValues(3, n)
	assertT.EqualValues([]byte{0x10, 0x11, 0x12, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09}, dev.data)

	o, err := dev.Seek(1, io.SeekStart)
	assertT.NoError(err)
	assertT.EqualValues(1, o)
	n, err = dev.Write(buf)
	assertT.NoError(err)
	assertT.EqualValues(3, n)
	assertT.EqualValues([]byte{0x10, 0x10, 0x11, 0x12, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09}, dev.data)

	o, err = dev.Seek(-1, io.SeekEnd)
	assertT.NoError(err)
	assertT.EqualValues(9, o)
	n, err = dev.Write(buf)
	assertT.NoError(err)
	assertT.EqualValues(1, n)
	assertT.EqualValues([]byte{0x10, 0x10, 0x11, 0x12, 0x04, 0x05, 0x06, 0x07, 0x08, 0x10}, dev.data)

	o, err = dev.Seek(0, io.SeekEnd)
	assertT.NoError(err)
	assertT.EqualValues(10, o)
	n, err = dev.Write(buf)
	assertT.NoError(err)
	assertT.EqualValues(0, n)
	assertT.EqualValues([]byte{0x10, 0x10, 0x11, 0x12, 0x04, 0x05, 0x06, 0x07, 0x08, 0x10}, dev.data)

	o, err = dev.Seek(2, io.SeekStart)
	assertT.NoError(err)
	assertT.EqualValues(2, o)
	n, err = dev.Write(buf)
	assertT.NoError(err)
	assertT.EqualValues(3, n)
	n, err = dev.Write(buf)
	assertT.NoError(err)
	assertT.EqualValues(3, n)
	assertT.EqualValues([]byte{0x10, 0x10, 0x10, 0x11, 0x12, 0x10, 0x11, 0x12, 0x08, 0x10}, dev.data)
}

func TestSync(t *testing.T) {
	assertT := assert.New(t)

	dev := newDev()
	assertT.NoError(dev.Sync())
}

func TestNewIsErased(t *testing.T) {
	assertT := assert.New(t)

	dev := New(16)
	assertT.EqualValues(16, dev.Size())
	for _, b := range dev.Bytes() {
		assertT.EqualValues(0xff, b)
	}
}

func TestCutPower(t *testing.T) {
	requireT := require.New(t)

	dev := newDev()
	dev.CutPowerAfter(1)

	n, err := dev.Write([]byte{0x20})
	requireT.NoError(err)
	requireT.Equal(1, n)
	requireT.Equal(1, dev.Writes())

	_, err = dev.Seek(0, io.SeekStart)
	requireT.NoError(err)
	n, err = dev.Write([]byte{0x30})
	requireT.ErrorIs(err, ErrPowerLoss)
	requireT.Zero(n)
	requireT.EqualValues(0x20, dev.Bytes()[0])

	dev.RestorePower()
	_, err = dev.Write([]byte{0x30})
	requireT.NoError(err)
	requireT.EqualValues(0x30, dev.Bytes()[0])
}

func TestFlipBit(t *testing.T) {
	dev := newDev()
	dev.FlipBit(3, 7)
	assert.EqualValues(t, 0x83, dev.Bytes()[3])
}

func newDev() *MemDev {
	const size = 10

	dev := New(size)
	for i := 0; i < size; i++ {
		dev.data[i] = byte(i)
	}

	return dev
}
