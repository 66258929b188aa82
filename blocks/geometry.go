package blocks

import (
	"github.com/pkg/errors"
)

const (
	// DefaultSectorSize is the size of the flash sector used by default.
	DefaultSectorSize uint32 = 4096

	// MaxSectorSize is the largest supported sector size.
	MaxSectorSize uint32 = 8192

	// SectorAlignment is the granularity of the supported sector sizes.
	SectorAlignment uint32 = 512

	// maxEntryCount is limited by the span field of the item being a byte.
	maxEntryCount = 255
)

// DefaultGeometry is the layout of the 4 KiB sector.
var DefaultGeometry = func() Geometry {
	g, err := NewGeometry(DefaultSectorSize)
	if err != nil {
		panic(err)
	}
	return g
}()

// Geometry describes the layout of the page within the sector.
type Geometry struct {
	SectorSize      uint32
	EntryCount      int
	EntryTableSize  uint32
	EntryDataOffset uint32
	ChunkMaxSize    int
}

// NewGeometry computes the layout of the page for the sector size.
func NewGeometry(sectorSize uint32) (Geometry, error) {
	if sectorSize == 0 || sectorSize%SectorAlignment != 0 {
		return Geometry{}, errors.Errorf("sector size must be a multiple of %d, provided: %d", SectorAlignment, sectorSize)
	}
	if sectorSize > MaxSectorSize {
		return Geometry{}, errors.Errorf("sector size must not exceed %d, provided: %d", MaxSectorSize, sectorSize)
	}

	for n := maxEntryCount; n > 1; n-- {
		tableSize := entryTableSize(n)
		if HeaderSize+tableSize+uint32(n)*EntrySize > sectorSize {
			continue
		}
		return Geometry{
			SectorSize:      sectorSize,
			EntryCount:      n,
			EntryTableSize:  tableSize,
			EntryDataOffset: EntryTableOffset + tableSize,
			ChunkMaxSize:    (n - 1) * EntrySize,
		}, nil
	}

	return Geometry{}, errors.Errorf("sector size %d is too small", sectorSize)
}

// EntryTableWords returns the number of 32-bit words in the entry table.
func (g Geometry) EntryTableWords() int {
	return int(g.EntryTableSize / 4)
}

// EntryOffset returns the offset of the entry relative to the beginning of the page.
func (g Geometry) EntryOffset(index int) uint32 {
	return g.EntryDataOffset + uint32(index)*EntrySize
}

// entryTableSize rounds the bitmap up to whole words and then to whole entries, so entries stay aligned.
func entryTableSize(entryCount int) uint32 {
	words := uint32((entryCount + EntriesPerWord - 1) / EntriesPerWord)
	size := words * 4
	return (size + EntrySize - 1) / EntrySize * EntrySize
}
