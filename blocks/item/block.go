package item

import (
	"bytes"
	"encoding/binary"

	"github.com/outofforest/photon"

	"github.com/outofforest/nvs/blocks"
)

// Item is the record occupying one entry. Depending on the type, Data keeps the inline value,
// the descriptor of the variable-length value or the descriptor of the blob index.
// Entries following variable-length item are raw data chunks stored in the same structure.
type Item struct {
	NSIndex    uint8
	Type       blocks.ItemType
	Span       uint8
	ChunkIndex uint8
	Checksum   uint32
	Key        [blocks.KeySize]byte
	Data       [blocks.DataSize]byte
}

// VarLength describes value stored in entries following the item.
type VarLength struct {
	DataSize     uint16
	Reserved     uint16
	DataChecksum uint32
}

// BlobIndex describes blob split into chunks stored as separate items.
type BlobIndex struct {
	DataSize   uint32
	ChunkCount uint8
	ChunkStart blocks.VerOffset
	Reserved   uint16
}

// New returns new item header. Key is truncated to the maximum key length and data is left in erased state.
func New(nsIndex uint8, itemType blocks.ItemType, span uint8, key string, chunkIndex uint8) Item {
	i := Item{
		NSIndex:    nsIndex,
		Type:       itemType,
		Span:       span,
		ChunkIndex: chunkIndex,
	}
	copy(i.Key[:blocks.MaxKeyLength], key)
	for j := range i.Data {
		i.Data[j] = blocks.ErasedByte
	}
	return i
}

// Bytes returns the raw representation of the entry.
func (i *Item) Bytes() []byte {
	return photon.NewFromValue(i).B
}

// KeyString returns the key up to the first NUL.
func (i *Item) KeyString() string {
	k := i.Key[:]
	if n := bytes.IndexByte(k, 0); n >= 0 {
		k = k[:n]
	}
	return string(k)
}

// ComputeChecksum computes checksum of the item header and inline data.
func (i *Item) ComputeChecksum() uint32 {
	raw := i.Bytes()
	checksum := blocks.Checksum(raw[0:4])
	checksum = blocks.ChecksumUpdate(checksum, i.Key[:])
	return blocks.ChecksumUpdate(checksum, i.Data[:])
}

// ChecksumValid verifies that stored checksum matches the content.
func (i *Item) ChecksumValid() bool {
	return i.Checksum == i.ComputeChecksum()
}

// Inline returns the inline value of the fixed-size item.
func (i *Item) Inline() []byte {
	size := i.Type.Size()
	if size > len(i.Data) {
		size = len(i.Data)
	}
	return i.Data[:size]
}

// SetInline stores the inline value. Remaining bytes stay erased.
func (i *Item) SetInline(v []byte) {
	copy(i.Data[:], v)
}

// VarLength decodes the variable-length descriptor.
func (i *Item) VarLength() VarLength {
	return VarLength{
		DataSize:     binary.LittleEndian.Uint16(i.Data[0:2]),
		Reserved:     binary.LittleEndian.Uint16(i.Data[2:4]),
		DataChecksum: binary.LittleEndian.Uint32(i.Data[4:8]),
	}
}

// SetVarLength encodes the variable-length descriptor.
func (i *Item) SetVarLength(v VarLength) {
	binary.LittleEndian.PutUint16(i.Data[0:2], v.DataSize)
	binary.LittleEndian.PutUint16(i.Data[2:4], v.Reserved)
	binary.LittleEndian.PutUint32(i.Data[4:8], v.DataChecksum)
}

// BlobIndex decodes the blob index descriptor.
func (i *Item) BlobIndex() BlobIndex {
	return BlobIndex{
		DataSize:   binary.LittleEndian.Uint32(i.Data[0:4]),
		ChunkCount: i.Data[4],
		ChunkStart: blocks.VerOffset(i.Data[5]),
		Reserved:   binary.LittleEndian.Uint16(i.Data[6:8]),
	}
}

// SetBlobIndex encodes the blob index descriptor.
func (i *Item) SetBlobIndex(b BlobIndex) {
	binary.LittleEndian.PutUint32(i.Data[0:4], b.DataSize)
	i.Data[4] = b.ChunkCount
	i.Data[5] = byte(b.ChunkStart)
	binary.LittleEndian.PutUint16(i.Data[6:8], b.Reserved)
}

// Matches returns true if both items describe the same logical record.
func (i *Item) Matches(other *Item) bool {
	return i.NSIndex == other.NSIndex && i.Type == other.Type && i.ChunkIndex == other.ChunkIndex && i.Key == other.Key
}

// Span returns the number of entries needed to store the value of the type and size.
func Span(itemType blocks.ItemType, dataSize int) int {
	if !itemType.IsVariableLength() {
		return 1
	}
	return 1 + (dataSize+blocks.EntrySize-1)/blocks.EntrySize
}
