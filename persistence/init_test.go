package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/nvs/blocks"
	"github.com/outofforest/nvs/pkg/memdev"
)

func TestFormat(t *testing.T) {
	requireT := require.New(t)

	dev := memdev.New(devSize)
	for i := range dev.Bytes() {
		dev.Bytes()[i] = 0x00
	}
	requireT.NoError(Format(dev, blocks.DefaultGeometry, true))
	for _, b := range dev.Bytes() {
		requireT.Equal(blocks.ErasedByte, b)
	}
	requireT.EqualValues(4, SectorCount(dev, blocks.DefaultGeometry))
}

func TestFormatRefusesProgrammedDevice(t *testing.T) {
	requireT := require.New(t)

	dev := memdev.New(devSize)
	requireT.NoError(Format(dev, blocks.DefaultGeometry, false))

	part := NewDevPartition(dev)
	requireT.NoError(part.Write(2*4096, []byte{0xfe, 0xff, 0xff, 0xff}))

	requireT.ErrorIs(Format(dev, blocks.DefaultGeometry, false), ErrAlreadyInitialized)
	requireT.EqualValues(0xfe, dev.Bytes()[2*4096])

	requireT.NoError(Format(dev, blocks.DefaultGeometry, true))
	requireT.EqualValues(0xff, dev.Bytes()[2*4096])
}

func TestTooSmall(t *testing.T) {
	requireT := require.New(t)

	requireT.NoError(Format(memdev.New(minSectors*4096), blocks.DefaultGeometry, true))
	requireT.Error(Format(memdev.New(4096), blocks.DefaultGeometry, true))
	requireT.Error(Format(memdev.New(minSectors*4096+1), blocks.DefaultGeometry, true))
}
