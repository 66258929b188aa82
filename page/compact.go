package page

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/nvs/blocks"
)

// CopyItems copies all the intact items, together with their data entries, to the other page.
// Uninitialized destination is initialized first. ErrNotFound is returned if there is nothing to copy.
func (p *Page) CopyItems(other *Page) error {
	if p.firstUsedEntry == noEntry {
		return errors.WithStack(ErrNotFound)
	}

	if other.state == blocks.UninitializedPageState {
		if err := other.Initialize(); err != nil {
			return err
		}
	}
	if other.state != blocks.ActivePageState {
		return errors.Wrapf(ErrInvalidState, "destination page state: %s", other.state)
	}

	for i := p.firstUsedEntry; i < p.geometry.EntryCount; {
		if p.entryTable.Get(i) != blocks.WrittenEntryState {
			i++
			continue
		}

		it, err := p.readEntry(i)
		if err != nil {
			return err
		}
		if !it.ChecksumValid() || !it.Type.IsValid() {
			p.log.Debug("Skipping item with invalid checksum or type", zap.Int("index", i))
			if err := p.eraseEntryAndSpan(i); err != nil {
				return err
			}
			i++
			continue
		}

		span := itemSpan(&it)
		if !p.spanWritten(i, span) {
			p.log.Debug("Skipping partially written item", zap.Int("index", i), zap.Int("span", span))
			if err := p.eraseEntryAndSpan(i); err != nil {
				return err
			}
			i++
			continue
		}

		if other.nextFreeEntry+span > other.geometry.EntryCount {
			return errors.Wrapf(ErrPageFull, "destination next free entry: %d, span: %d", other.nextFreeEntry, span)
		}

		var data []byte
		if span > 1 {
			data = make([]byte, (span-1)*blocks.EntrySize)
			if err := p.part.Read(p.entryAddress(i+1), data); err != nil {
				p.state = blocks.InvalidPageState
				return errors.WithStack(err)
			}
		}

		other.hashList.Insert(&it, other.nextFreeEntry)
		if err := other.writeEntry(&it); err != nil {
			return err
		}
		if len(data) > 0 {
			if err := other.writeEntryData(data); err != nil {
				return err
			}
		}

		i += span
	}
	return nil
}
