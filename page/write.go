package page

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/outofforest/nvs/blocks"
	"github.com/outofforest/nvs/blocks/item"
)

// WriteItem appends the item to the page. Uninitialized page is initialized first.
// Fixed-size values must have the exact size of the type.
func (p *Page) WriteItem(nsIndex uint8, itemType blocks.ItemType, key string, data []byte, chunkIndex uint8) error {
	switch p.state {
	case blocks.UninitializedPageState, blocks.ActivePageState:
	default:
		return errors.Wrapf(ErrInvalidState, "page state: %s", p.state)
	}

	if err := p.validateItem(itemType, key, data); err != nil {
		return err
	}

	if p.state == blocks.UninitializedPageState {
		if err := p.Initialize(); err != nil {
			return err
		}
	}

	span := item.Span(itemType, len(data))
	if p.nextFreeEntry+span > p.geometry.EntryCount {
		return errors.Wrapf(ErrPageFull, "next free entry: %d, span: %d", p.nextFreeEntry, span)
	}

	it := item.New(nsIndex, itemType, uint8(span), key, chunkIndex)
	if !itemType.IsVariableLength() {
		it.SetInline(data)
		it.Checksum = it.ComputeChecksum()
		p.hashList.Insert(&it, p.nextFreeEntry)
		return p.writeEntry(&it)
	}

	it.SetVarLength(item.VarLength{
		DataSize:     uint16(len(data)),
		Reserved:     0xffff,
		DataChecksum: blocks.Checksum(data),
	})
	it.Checksum = it.ComputeChecksum()
	p.hashList.Insert(&it, p.nextFreeEntry)
	if err := p.writeEntry(&it); err != nil {
		return err
	}

	aligned := len(data) / blocks.EntrySize * blocks.EntrySize
	if aligned > 0 {
		if err := p.writeEntryData(data[:aligned]); err != nil {
			return err
		}
	}

	if tail := data[aligned:]; len(tail) > 0 {
		var chunk item.Item
		raw := chunk.Bytes()
		for i := range raw {
			raw[i] = blocks.ErasedByte
		}
		copy(raw, tail)
		if err := p.writeEntry(&chunk); err != nil {
			return err
		}
	}
	return nil
}

func (p *Page) validateItem(itemType blocks.ItemType, key string, data []byte) error {
	if key == "" {
		return errors.WithStack(ErrKeyEmpty)
	}
	if len(key) > blocks.MaxKeyLength {
		return errors.Wrapf(ErrKeyTooLong, "key %q, maximum length: %d", key, blocks.MaxKeyLength)
	}
	if strings.IndexByte(key, 0) >= 0 {
		return errors.Wrapf(ErrInvalidArgument, "key %q contains NUL byte", key)
	}
	if !itemType.IsValid() {
		return errors.Wrapf(ErrInvalidType, "type: %#x", itemType)
	}
	if itemType.IsVariableLength() {
		if len(data) > p.geometry.ChunkMaxSize {
			return errors.Wrapf(ErrValueTooLong, "size: %d, maximum: %d", len(data), p.geometry.ChunkMaxSize)
		}
		return nil
	}
	if len(data) != itemType.Size() {
		return errors.Wrapf(ErrInvalidLength, "type %#x requires %d bytes, provided: %d",
			itemType, itemType.Size(), len(data))
	}
	return nil
}

// writeEntry programs the entry first and marks it as written afterwards, so entry programmed before power loss
// is detected on load.
func (p *Page) writeEntry(it *item.Item) error {
	if err := p.part.Write(p.entryAddress(p.nextFreeEntry), it.Bytes()); err != nil {
		p.state = blocks.InvalidPageState
		return errors.WithStack(err)
	}
	if err := p.alterEntryState(p.nextFreeEntry, blocks.WrittenEntryState); err != nil {
		return err
	}

	if p.firstUsedEntry == noEntry {
		p.firstUsedEntry = p.nextFreeEntry
	}
	p.usedEntryCount++
	p.nextFreeEntry++
	return nil
}

// writeEntryData programs consecutive raw data entries at once. Size of data must be a multiple of entry size.
func (p *Page) writeEntryData(data []byte) error {
	count := len(data) / blocks.EntrySize
	if err := p.part.Write(p.entryAddress(p.nextFreeEntry), data); err != nil {
		p.state = blocks.InvalidPageState
		return errors.WithStack(err)
	}
	if err := p.alterEntryRangeState(p.nextFreeEntry, p.nextFreeEntry+count, blocks.WrittenEntryState); err != nil {
		return err
	}

	p.usedEntryCount += count
	p.nextFreeEntry += count
	return nil
}
