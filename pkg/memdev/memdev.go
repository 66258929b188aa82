package memdev

import (
	"io"

	"github.com/pkg/errors"
)

var (
	_ io.Seeker = &MemDev{}
	_ io.Reader = &MemDev{}
	_ io.Writer = &MemDev{}
)

// ErrPowerLoss is returned by writes issued after the write budget is exhausted.
var ErrPowerLoss = errors.New("simulated power loss")

const erasedByte = 0xff

// MemDev simulates device io operations in memory. Fresh device is erased.
type MemDev struct {
	size   int64
	offset int64
	data   []byte

	writeBudget int
	limited     bool
	writes      int
}

// New returns new memdev.
func New(size int64) *MemDev {
	data := make([]byte, size)
	for i := range data {
		data[i] = erasedByte
	}
	return &MemDev{
		size: size,
		data: data,
	}
}

// Seek seeks the position.
func (md *MemDev) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset = md.offset + offset
	case io.SeekEnd:
		offset = md.size + offset
	}

	if offset < 0 || offset > md.size {
		return 0, errors.Errorf("invalid offset: %d", offset)
	}

	md.offset = offset
	return offset, nil
}

// Read reads data from the memdev.
func (md *MemDev) Read(p []byte) (int, error) {
	if p == nil {
		return 0, nil
	}
	n := copy(p, md.data[md.offset:])
	md.offset += int64(n)
	return n, nil
}

// Write writes data to the memdev. Once the write budget is exhausted nothing is written.
func (md *MemDev) Write(p []byte) (int, error) {
	if p == nil {
		return 0, nil
	}
	if md.limited && md.writes >= md.writeBudget {
		return 0, errors.WithStack(ErrPowerLoss)
	}
	md.writes++
	n := copy(md.data[md.offset:], p)
	md.offset += int64(n)
	return n, nil
}

// Sync does nothing, memory is always in sync.
func (md *MemDev) Sync() error {
	return nil
}

// Size returns the byte size of the device.
func (md *MemDev) Size() int64 {
	return md.size
}

// Writes returns the number of successful writes.
func (md *MemDev) Writes() int {
	return md.writes
}

// CutPowerAfter lets n more writes succeed, all the following ones fail.
func (md *MemDev) CutPowerAfter(n int) {
	md.limited = true
	md.writeBudget = md.writes + n
}

// RestorePower removes the write budget.
func (md *MemDev) RestorePower() {
	md.limited = false
}

// FlipBit inverts the bit of the byte at offset, simulating bit rot.
func (md *MemDev) FlipBit(offset int64, bit uint) {
	md.data[offset] ^= 1 << bit
}

// Bytes returns the underlying memory.
func (md *MemDev) Bytes() []byte {
	return md.data
}
