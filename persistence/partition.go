package persistence

import (
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/outofforest/nvs/blocks"
)

// Partition is the flash region pages are stored in. Offsets are relative to the beginning of the partition.
// Write only programs bits: it may move bits from the erased value to data, never back. Only EraseRange
// restores the erased value.
type Partition interface {
	Read(offset uint32, p []byte) error
	Write(offset uint32, p []byte) error
	EraseRange(offset, size uint32) error
}

// Dev is the interface required from the device.
type Dev interface {
	io.ReadWriteSeeker
	Sync() error
	Size() int64
}

var _ Partition = &DevPartition{}

// DevPartition exposes the device as flash partition.
type DevPartition struct {
	mu  sync.Mutex
	dev Dev
}

// NewDevPartition returns partition backed by the device.
func NewDevPartition(dev Dev) *DevPartition {
	return &DevPartition{
		dev: dev,
	}
}

// Size returns the byte size of the partition.
func (dp *DevPartition) Size() uint32 {
	return uint32(dp.dev.Size())
}

// Read reads bytes from the partition.
func (dp *DevPartition) Read(offset uint32, p []byte) error {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	return dp.read(offset, p)
}

// Write programs bytes to the partition. Bits already cleared stay cleared.
func (dp *DevPartition) Write(offset uint32, p []byte) error {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	current := make([]byte, len(p))
	if err := dp.read(offset, current); err != nil {
		return err
	}
	for i := range current {
		current[i] &= p[i]
	}
	return dp.write(offset, current)
}

// EraseRange sets bytes of the range to the erased value.
func (dp *DevPartition) EraseRange(offset, size uint32) error {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	erased := make([]byte, size)
	for i := range erased {
		erased[i] = blocks.ErasedByte
	}
	if err := dp.write(offset, erased); err != nil {
		return err
	}
	return errors.WithStack(dp.dev.Sync())
}

// Sync forces data to be written to the dev.
func (dp *DevPartition) Sync() error {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	return errors.WithStack(dp.dev.Sync())
}

func (dp *DevPartition) read(offset uint32, p []byte) error {
	if err := dp.checkRange(offset, len(p)); err != nil {
		return err
	}
	if _, err := dp.dev.Seek(int64(offset), io.SeekStart); err != nil {
		return errors.WithStack(err)
	}
	if _, err := io.ReadFull(dp.dev, p); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (dp *DevPartition) write(offset uint32, p []byte) error {
	if err := dp.checkRange(offset, len(p)); err != nil {
		return err
	}
	if _, err := dp.dev.Seek(int64(offset), io.SeekStart); err != nil {
		return errors.WithStack(err)
	}
	n, err := dp.dev.Write(p)
	if err != nil {
		return errors.WithStack(err)
	}
	if n != len(p) {
		return errors.WithStack(io.ErrShortWrite)
	}
	return nil
}

func (dp *DevPartition) checkRange(offset uint32, size int) error {
	if int64(offset)+int64(size) > dp.dev.Size() {
		return errors.Errorf("range [%d, %d) exceeds partition size %d", offset, int64(offset)+int64(size), dp.dev.Size())
	}
	return nil
}
