package page

import (
	"bytes"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/nvs/blocks"
	"github.com/outofforest/nvs/blocks/item"
	"github.com/outofforest/nvs/hashlist"
)

// FindItem returns the first item matching the query, stored at or after start.
// If item exists under the same key but with different type, index of that item is returned together
// with ErrTypeMismatch. Items with broken checksum are erased on the way and never returned.
func (p *Page) FindItem(q Query, start int) (int, item.Item, error) {
	if len(q.Key) > blocks.MaxKeyLength {
		return noEntry, item.Item{}, errors.Wrapf(ErrKeyTooLong, "key %q, maximum length: %d", q.Key,
			blocks.MaxKeyLength)
	}

	switch p.state {
	case blocks.UninitializedPageState, blocks.CorruptPageState, blocks.InvalidPageState:
		return noEntry, item.Item{}, errors.WithStack(ErrNotFound)
	}

	if p.firstUsedEntry == noEntry || start >= p.geometry.EntryCount {
		return noEntry, item.Item{}, errors.WithStack(ErrNotFound)
	}
	if start < p.firstUsedEntry {
		start = p.firstUsedEntry
	}

	end := p.nextFreeEntry
	if end > p.geometry.EntryCount {
		end = p.geometry.EntryCount
	}

	if q.hashable() {
		cached, exists := p.hashList.Find(start, hashlist.Hash(q.NSIndex, q.Key, q.ChunkIndex))
		switch {
		case exists:
			start = cached
		case p.hashList.Complete():
			return noEntry, item.Item{}, errors.WithStack(ErrNotFound)
		}
	}

	var next int
	for i := start; i < end; i = next {
		next = i + 1
		if p.entryTable.Get(i) != blocks.WrittenEntryState {
			continue
		}

		it, err := p.readEntry(i)
		if err != nil {
			return noEntry, item.Item{}, err
		}
		if !it.ChecksumValid() {
			p.log.Debug("Erasing item with invalid checksum", zap.Int("index", i))
			if err := p.eraseEntryAndSpan(i); err != nil {
				return noEntry, item.Item{}, err
			}
			continue
		}
		if !it.Type.IsValid() {
			p.log.Debug("Erasing item of unknown type", zap.Int("index", i), zap.Uint8("type", uint8(it.Type)))
			if err := p.eraseEntryAndSpan(i); err != nil {
				return noEntry, item.Item{}, err
			}
			continue
		}

		if it.Type.IsVariableLength() {
			next = i + itemSpan(&it)
		}

		if !q.matches(&it) {
			continue
		}

		if q.Type != blocks.AnyItemType && it.Type != q.Type {
			if q.bruteForce() {
				continue
			}
			return i, it, errors.Wrapf(ErrTypeMismatch, "requested type: %#x, stored type: %#x", q.Type, it.Type)
		}

		return i, it, nil
	}

	return noEntry, item.Item{}, errors.WithStack(ErrNotFound)
}

// ReadItem copies the value of the item into dst and returns the number of bytes copied.
// Variable-length value with broken checksum is erased and reported as missing.
func (p *Page) ReadItem(q Query, dst []byte) (int, error) {
	if p.state == blocks.InvalidPageState {
		return 0, errors.Wrapf(ErrInvalidState, "page state: %s", p.state)
	}

	index, it, err := p.FindItem(q, 0)
	if err != nil {
		return 0, err
	}

	if !it.Type.IsVariableLength() {
		if len(dst) != it.Type.Size() {
			return 0, errors.Wrapf(ErrTypeMismatch, "type %#x requires %d bytes, provided: %d",
				it.Type, it.Type.Size(), len(dst))
		}
		return copy(dst, it.Inline()), nil
	}

	varLength := it.VarLength()
	size := int(varLength.DataSize)
	if len(dst) < size {
		return 0, errors.Wrapf(ErrInvalidLength, "value size: %d, buffer size: %d", size, len(dst))
	}

	dst = dst[:size]
	if err := p.readVarData(index, &it, dst); err != nil {
		return 0, err
	}

	if err := blocks.VerifyChecksum(dst, varLength.DataChecksum); err != nil {
		p.log.Debug("Erasing item with invalid data checksum", zap.Int("index", index), zap.Error(err))
		if err := p.eraseEntryAndSpan(index); err != nil {
			return 0, err
		}
		return 0, errors.WithStack(ErrNotFound)
	}
	return size, nil
}

// CmpItem verifies that the stored value is equal to data. ErrContentDiffers is returned if it is not.
func (p *Page) CmpItem(q Query, data []byte) error {
	if p.state == blocks.InvalidPageState {
		return errors.Wrapf(ErrInvalidState, "page state: %s", p.state)
	}

	index, it, err := p.FindItem(q, 0)
	if err != nil {
		return err
	}

	if !it.Type.IsVariableLength() {
		if len(data) != it.Type.Size() {
			return errors.Wrapf(ErrTypeMismatch, "type %#x requires %d bytes, provided: %d",
				it.Type, it.Type.Size(), len(data))
		}
		if !bytes.Equal(data, it.Inline()) {
			return errors.WithStack(ErrContentDiffers)
		}
		return nil
	}

	varLength := it.VarLength()
	size := int(varLength.DataSize)
	if len(data) < size {
		return errors.Wrapf(ErrInvalidLength, "value size: %d, compared size: %d", size, len(data))
	}
	if len(data) > size {
		return errors.Wrapf(ErrContentDiffers, "value size: %d, compared size: %d", size, len(data))
	}

	stored := make([]byte, size)
	if err := p.readVarData(index, &it, stored); err != nil {
		return err
	}
	if !bytes.Equal(data, stored) {
		return errors.WithStack(ErrContentDiffers)
	}
	if blocks.Checksum(data) != varLength.DataChecksum {
		return errors.WithStack(ErrNotFound)
	}
	return nil
}

// EraseItem erases the item matching the query together with its data entries.
func (p *Page) EraseItem(q Query) error {
	index, _, err := p.FindItem(q, 0)
	if err != nil {
		return err
	}
	return p.eraseEntryAndSpan(index)
}

// readVarData reads data entries following the item into dst.
func (p *Page) readVarData(index int, it *item.Item, dst []byte) error {
	end := index + itemSpan(it)
	if end > p.geometry.EntryCount {
		end = p.geometry.EntryCount
	}
	for i := index + 1; i < end && len(dst) > 0; i++ {
		chunk, err := p.readEntry(i)
		if err != nil {
			return err
		}
		n := copy(dst, chunk.Bytes())
		dst = dst[n:]
	}
	return nil
}

// eraseEntryAndSpan erases the entry. If the entry is an intact item, all its data entries are erased too.
// When checksum is broken, span can't be trusted, so only the entry itself is erased.
func (p *Page) eraseEntryAndSpan(index int) error {
	span := 1
	if p.entryTable.Get(index) == blocks.WrittenEntryState {
		it, err := p.readEntry(index)
		if err != nil {
			return err
		}
		if it.ChecksumValid() && it.Type.IsValid() {
			span = itemSpan(&it)
			if index+span > p.geometry.EntryCount {
				span = p.geometry.EntryCount - index
			}
		}
	}

	p.hashList.Erase(index)
	for i := index; i < index+span; i++ {
		p.countErased(i)
	}

	var err error
	if span == 1 {
		err = p.alterEntryState(index, blocks.ErasedEntryState)
	} else {
		err = p.alterEntryRangeState(index, index+span, blocks.ErasedEntryState)
	}
	if err != nil {
		return err
	}

	if index == p.firstUsedEntry {
		p.updateFirstUsedEntry(index, span)
	}
	if index+span > p.nextFreeEntry {
		p.nextFreeEntry = index + span
	}
	return nil
}

func (p *Page) updateFirstUsedEntry(index, span int) {
	end := p.nextFreeEntry
	if end > p.geometry.EntryCount {
		end = p.geometry.EntryCount
	}
	p.firstUsedEntry = p.findWrittenEntry(index+span, end)
}

// matches applies namespace, key, chunk and version filters of the query to the item.
func (q Query) matches(it *item.Item) bool {
	if q.NSIndex != blocks.NSAny && it.NSIndex != q.NSIndex {
		return false
	}
	if q.Key != "" && it.KeyString() != q.Key {
		return false
	}
	if q.ChunkIndex != blocks.ChunkAny && q.Type == blocks.BlobDataItemType && it.ChunkIndex != q.ChunkIndex {
		return false
	}
	if q.Type == blocks.BlobIndexType && it.ChunkIndex != blocks.ChunkAny {
		return false
	}
	if q.Type == blocks.BlobIndexType && q.ChunkStart != blocks.VerAny && it.BlobIndex().ChunkStart != q.ChunkStart {
		return false
	}
	return true
}
