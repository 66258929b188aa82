package hashlist

import (
	"github.com/cespare/xxhash/v2"

	"github.com/outofforest/nvs/blocks"
	"github.com/outofforest/nvs/blocks/item"
)

// DefaultCapacity is larger than the number of entries in any supported page, so by default nothing is evicted.
const DefaultCapacity = 512

type entry struct {
	hash  uint64
	index int
}

// List maps hashes of (namespace, key, chunk) to indexes of entries in the page.
// Entries are kept in insertion order and the oldest ones are evicted when capacity is reached.
// Once anything has been evicted, missing hash is no longer a proof of absence.
type List struct {
	capacity  int
	entries   []entry
	truncated bool
}

// New returns new hash list.
func New(capacity int) *List {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &List{
		capacity: capacity,
		entries:  make([]entry, 0, capacity),
	}
}

// Hash computes the hash identifying the item. Type is intentionally not a part of it, so items stored
// under the same key with different types collide.
func Hash(nsIndex uint8, key string, chunkIndex uint8) uint64 {
	var buf [2 + blocks.KeySize]byte
	buf[0] = nsIndex
	buf[1] = chunkIndex
	n := copy(buf[2:2+blocks.MaxKeyLength], key)
	return xxhash.Sum64(buf[:2+n])
}

// HashItem computes the hash of the item.
func HashItem(i *item.Item) uint64 {
	return Hash(i.NSIndex, i.KeyString(), i.ChunkIndex)
}

// Insert records that item is stored at index.
func (l *List) Insert(i *item.Item, index int) {
	if len(l.entries) == l.capacity {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
		l.truncated = true
	}
	l.entries = append(l.entries, entry{hash: HashItem(i), index: index})
}

// Erase removes entries pointing to index.
func (l *List) Erase(index int) {
	entries := l.entries[:0]
	for _, e := range l.entries {
		if e.index != index {
			entries = append(entries, e)
		}
	}
	l.entries = entries
}

// Find returns the lowest index not lower than start, for which hash matches.
func (l *List) Find(start int, hash uint64) (int, bool) {
	found := -1
	for _, e := range l.entries {
		if e.hash != hash || e.index < start {
			continue
		}
		if found == -1 || e.index < found {
			found = e.index
		}
	}
	return found, found != -1
}

// Complete returns true if nothing has been evicted since the list was cleared.
func (l *List) Complete() bool {
	return !l.truncated
}

// Clear removes all the entries.
func (l *List) Clear() {
	l.entries = l.entries[:0]
	l.truncated = false
}
