package page

import "github.com/outofforest/nvs/blocks"

// Query selects items in the page.
type Query struct {
	// NSIndex is the namespace of the item, blocks.NSAny matches all.
	NSIndex uint8

	// Type is the type of the item, blocks.AnyItemType matches all.
	Type blocks.ItemType

	// Key is the key of the item, empty key matches all.
	Key string

	// ChunkIndex selects the chunk of the blob data, blocks.ChunkAny matches all.
	ChunkIndex uint8

	// ChunkStart selects the version of the blob index, blocks.VerAny matches all.
	ChunkStart blocks.VerOffset
}

// NewQuery returns query matching any chunk and any blob version.
func NewQuery(nsIndex uint8, itemType blocks.ItemType, key string) Query {
	return Query{
		NSIndex:    nsIndex,
		Type:       itemType,
		Key:        key,
		ChunkIndex: blocks.ChunkAny,
		ChunkStart: blocks.VerAny,
	}
}

// WithChunkIndex returns query restricted to the chunk.
func (q Query) WithChunkIndex(chunkIndex uint8) Query {
	q.ChunkIndex = chunkIndex
	return q
}

// WithChunkStart returns query restricted to the blob version.
func (q Query) WithChunkStart(chunkStart blocks.VerOffset) Query {
	q.ChunkStart = chunkStart
	return q
}

// bruteForce is true when nothing but the type is constrained. In that mode items of other types are skipped
// instead of reporting type mismatch.
func (q Query) bruteForce() bool {
	return q.Key == "" && q.NSIndex == blocks.NSAny && q.ChunkIndex == blocks.ChunkAny
}

// hashable is true when the query identifies exactly one hash list key.
func (q Query) hashable() bool {
	if q.NSIndex == blocks.NSAny || q.Type == blocks.AnyItemType || q.Key == "" {
		return false
	}
	return q.Type != blocks.BlobDataItemType || q.ChunkIndex != blocks.ChunkAny
}
