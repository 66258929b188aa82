package header

import (
	"github.com/outofforest/photon"

	"github.com/outofforest/nvs/blocks"
)

// Block is the header stored at the beginning of each page.
type Block struct {
	State     blocks.PageState
	SeqNumber uint32
	Version   uint8
	Reserved  [19]byte
	Checksum  uint32
}

// New returns header with reserved bytes left in erased state.
func New(state blocks.PageState, seqNumber uint32, version uint8) Block {
	b := Block{
		State:     state,
		SeqNumber: seqNumber,
		Version:   version,
	}
	for i := range b.Reserved {
		b.Reserved[i] = blocks.ErasedByte
	}
	b.Checksum = b.ComputeChecksum()
	return b
}

// ComputeChecksum computes checksum of the header. State is excluded because it is updated in place.
func (b Block) ComputeChecksum() uint32 {
	raw := photon.NewFromValue(&b).B
	return blocks.Checksum(raw[4:28])
}
