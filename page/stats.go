package page

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/outofforest/nvs/blocks"
)

// Stats aggregates entry counts of pages.
type Stats struct {
	UsedEntries  int
	FreeEntries  int
	TotalEntries int
}

// CalcEntries adds entry counts of the page to stats.
// Erased entries are counted as free because they are reclaimed by compaction.
func (p *Page) CalcEntries(stats *Stats) error {
	switch p.state {
	case blocks.UninitializedPageState, blocks.CorruptPageState:
		stats.TotalEntries += p.geometry.EntryCount
		stats.FreeEntries += p.geometry.EntryCount
	case blocks.ActivePageState, blocks.FullPageState:
		stats.TotalEntries += p.geometry.EntryCount
		stats.UsedEntries += p.usedEntryCount
		stats.FreeEntries += p.geometry.EntryCount - p.usedEntryCount
	default:
		return errors.Wrapf(ErrInvalidState, "page state: %s", p.state)
	}
	return nil
}

// VarDataTailroom returns the size of the largest variable-length value which still fits into the page.
func (p *Page) VarDataTailroom() int {
	switch p.state {
	case blocks.UninitializedPageState:
		return p.geometry.ChunkMaxSize
	case blocks.ActivePageState:
		// One entry is taken by the item header.
		if p.nextFreeEntry < p.geometry.EntryCount-1 {
			return (p.geometry.EntryCount - p.nextFreeEntry - 1) * blocks.EntrySize
		}
		return 0
	default:
		return 0
	}
}

// DebugDump writes human-readable content of the page.
func (p *Page) DebugDump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "state=%x (%s) addr=%x seq=%d\nfirstUsed=%d nextFree=%d used=%d erased=%d\n",
		uint32(p.state), p.state, p.baseAddress, p.seqNumber, p.firstUsedEntry, p.nextFreeEntry,
		p.usedEntryCount, p.erasedEntryCount); err != nil {
		return errors.WithStack(err)
	}

	var skip int
	for i := 0; i < p.geometry.EntryCount; i++ {
		line, err := p.dumpEntry(i, &skip)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%3d: %s\n", i, line); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func (p *Page) dumpEntry(index int, skip *int) (string, error) {
	if state := p.entryTable.Get(index); state != blocks.WrittenEntryState {
		return state.String(), nil
	}

	if *skip > 0 {
		*skip--
		return "D", nil
	}

	it, err := p.readEntry(index)
	if err != nil {
		return "", err
	}

	length := -1
	if it.Span != 1 {
		length = int(it.VarLength().DataSize)
	}
	if it.Span > 0 && int(it.Span) <= p.geometry.EntryCount-index {
		*skip = int(it.Span) - 1
	}
	return fmt.Sprintf("W ns=%2d type=%2d span=%3d key=%q chunkIdx=%d len=%d",
		it.NSIndex, it.Type, it.Span, it.KeyString(), it.ChunkIndex, length), nil
}
