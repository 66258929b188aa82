package persistence

import (
	"github.com/pkg/errors"

	"github.com/outofforest/nvs/blocks"
)

// minSectors is the minimum number of sectors: one active page and one spare page used for compaction.
const minSectors = 2

// ErrAlreadyInitialized is returned if during formatting, programmed page is detected on the device.
var ErrAlreadyInitialized = errors.New("device already contains programmed pages")

// Format erases all the sectors of the device.
func Format(dev Dev, geometry blocks.Geometry, overwrite bool) error {
	nSectors, err := validateDev(dev, geometry)
	if err != nil {
		return err
	}

	part := NewDevPartition(dev)
	if !overwrite {
		programmed, err := hasProgrammedSector(part, geometry, nSectors)
		if err != nil {
			return err
		}
		if programmed {
			return errors.WithStack(ErrAlreadyInitialized)
		}
	}

	for sector := uint32(0); sector < nSectors; sector++ {
		if err := part.EraseRange(sector*geometry.SectorSize, geometry.SectorSize); err != nil {
			return err
		}
	}

	return part.Sync()
}

// SectorCount returns the number of sectors fitting into the device.
func SectorCount(dev Dev, geometry blocks.Geometry) uint32 {
	return uint32(dev.Size() / int64(geometry.SectorSize))
}

func validateDev(dev Dev, geometry blocks.Geometry) (uint32, error) {
	size := dev.Size()
	if size%int64(geometry.SectorSize) != 0 {
		return 0, errors.Errorf("device size %d is not a multiple of sector size %d", size, geometry.SectorSize)
	}

	nSectors := SectorCount(dev, geometry)
	if nSectors < minSectors {
		return 0, errors.Errorf("device is too small, minimum size is: %d bytes, provided: %d",
			minSectors*geometry.SectorSize, size)
	}
	return nSectors, nil
}

func hasProgrammedSector(part Partition, geometry blocks.Geometry, nSectors uint32) (bool, error) {
	header := make([]byte, blocks.HeaderSize)
	for sector := uint32(0); sector < nSectors; sector++ {
		if err := part.Read(sector*geometry.SectorSize, header); err != nil {
			return false, err
		}
		for _, b := range header {
			if b != blocks.ErasedByte {
				return true, nil
			}
		}
	}
	return false, nil
}
