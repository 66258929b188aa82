package entrytable

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/outofforest/nvs/blocks"
)

const bitsPerEntry = 2

// Table stores 2-bit states of entries packed into 32-bit words, exactly as they are stored on flash.
type Table struct {
	words []uint32
}

// New returns table of the given number of words with all the entries empty.
func New(words int) *Table {
	t := &Table{
		words: make([]uint32, words),
	}
	t.Reset()
	return t
}

// Reset marks all the entries as empty.
func (t *Table) Reset() {
	for i := range t.words {
		t.words[i] = blocks.ErasedWord
	}
}

// Get returns the state of the entry.
func (t *Table) Get(index int) blocks.EntryState {
	shift := bitOffset(index)
	return blocks.EntryState((t.words[WordIndex(index)] >> shift) & 0b11)
}

// Set sets the state of the entry in memory.
func (t *Table) Set(index int, state blocks.EntryState) {
	shift := bitOffset(index)
	w := WordIndex(index)
	t.words[w] = t.words[w]&^(0b11<<shift) | uint32(state)<<shift
}

// WordBytes returns the little-endian representation of the word.
func (t *Table) WordBytes(index int) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, t.words[index])
	return b
}

// Load replaces the content of the table with the on-flash representation.
func (t *Table) Load(b []byte) error {
	if len(b) != len(t.words)*4 {
		return errors.Errorf("invalid size of entry table, expected: %d, provided: %d", len(t.words)*4, len(b))
	}
	for i := range t.words {
		t.words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return nil
}

// WordIndex returns the index of the word storing the state of the entry.
func WordIndex(index int) int {
	return index / blocks.EntriesPerWord
}

func bitOffset(index int) uint32 {
	return uint32(index%blocks.EntriesPerWord) * bitsPerEntry
}
