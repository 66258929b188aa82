package page

import (
	"encoding/binary"

	"github.com/outofforest/photon"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/nvs/blocks"
	"github.com/outofforest/nvs/blocks/header"
	"github.com/outofforest/nvs/blocks/item"
	"github.com/outofforest/nvs/entrytable"
	"github.com/outofforest/nvs/hashlist"
	"github.com/outofforest/nvs/persistence"
)

// noEntry marks absence of the entry index.
const noEntry = -1

// blankCheckBlockSize is the size of the block read at once while verifying that the sector is erased.
const blankCheckBlockSize = 512

// Page manages the content of one flash sector.
// Page is not safe for concurrent use, calls must be serialized by the owner.
type Page struct {
	config   Config
	geometry blocks.Geometry
	log      *zap.Logger

	part        persistence.Partition
	sector      uint32
	baseAddress uint32

	state     blocks.PageState
	seqNumber uint32
	version   uint8

	firstUsedEntry   int
	nextFreeEntry    int
	usedEntryCount   int
	erasedEntryCount int

	entryTable *entrytable.Table
	hashList   *hashlist.List
}

// New returns page which must be loaded before use.
func New(config Config) *Page {
	config = config.withDefaults()
	return &Page{
		config:         config,
		geometry:       config.Geometry,
		log:            config.Logger,
		state:          blocks.InvalidPageState,
		version:        blocks.CurrentVersion,
		firstUsedEntry: noEntry,
		entryTable:     entrytable.New(config.Geometry.EntryTableWords()),
		hashList:       hashlist.New(config.HashListCapacity),
	}
}

// Load reconstructs the state of the page from the sector, repairing everything left by interrupted writes.
func (p *Page) Load(part persistence.Partition, sector uint32) error {
	if part == nil {
		return errors.Wrap(ErrInvalidArgument, "partition is nil")
	}

	p.part = part
	p.sector = sector
	p.baseAddress = sector * p.geometry.SectorSize
	p.log = p.config.Logger.With(zap.Uint32("sector", sector))
	p.seqNumber = 0
	p.version = blocks.CurrentVersion
	p.reset()

	h := photon.NewFromValue(&header.Block{})
	if err := p.part.Read(p.baseAddress, h.B); err != nil {
		p.state = blocks.InvalidPageState
		return errors.WithStack(err)
	}

	switch {
	case h.V.State == blocks.UninitializedPageState:
		p.state = blocks.UninitializedPageState
		blank, err := p.isBlank()
		if err != nil {
			return err
		}
		if !blank {
			p.log.Warn("Page claims to be uninitialized but sector is not erased")
			p.state = blocks.CorruptPageState
		}
	case h.V.Checksum != h.V.ComputeChecksum():
		p.log.Warn("Page header checksum mismatch",
			zap.Uint32("stored", h.V.Checksum), zap.Uint32("computed", h.V.ComputeChecksum()))
		p.state = blocks.CorruptPageState
	default:
		p.state = h.V.State
		p.seqNumber = h.V.SeqNumber
		if h.V.Version < blocks.CurrentVersion {
			p.state = blocks.InvalidPageState
			return errors.Wrapf(ErrNewerVersionFound, "page version: %#x, supported: %#x", h.V.Version, blocks.CurrentVersion)
		}
		p.version = h.V.Version
	}

	switch p.state {
	case blocks.UninitializedPageState, blocks.CorruptPageState:
	case blocks.ActivePageState, blocks.FullPageState, blocks.FreeingPageState:
		return p.loadEntryTable()
	default:
		p.log.Warn("Unknown page state", zap.Uint32("state", uint32(p.state)))
		p.state = blocks.CorruptPageState
	}

	return nil
}

// Initialize turns uninitialized page into active one by writing its header.
func (p *Page) Initialize() error {
	if p.state != blocks.UninitializedPageState {
		return errors.Wrapf(ErrInvalidState, "page state: %s", p.state)
	}

	h := header.New(blocks.ActivePageState, p.seqNumber, p.version)
	if err := p.part.Write(p.baseAddress, photon.NewFromValue(&h).B); err != nil {
		p.state = blocks.InvalidPageState
		return errors.WithStack(err)
	}

	p.reset()
	p.nextFreeEntry = 0
	p.state = blocks.ActivePageState
	return nil
}

// MarkFull marks active page as full, no more writes are accepted.
func (p *Page) MarkFull() error {
	if p.state != blocks.ActivePageState {
		return errors.Wrapf(ErrInvalidState, "page state: %s", p.state)
	}
	return p.alterPageState(blocks.FullPageState)
}

// MarkFreeing marks page as the source of compaction.
func (p *Page) MarkFreeing() error {
	if p.state != blocks.FullPageState && p.state != blocks.ActivePageState {
		return errors.Wrapf(ErrInvalidState, "page state: %s", p.state)
	}
	return p.alterPageState(blocks.FreeingPageState)
}

// Erase erases the sector and resets the page to uninitialized state.
func (p *Page) Erase() error {
	if p.part == nil {
		return errors.Wrap(ErrInvalidState, "page has not been loaded")
	}

	if err := p.part.EraseRange(p.baseAddress, p.geometry.SectorSize); err != nil {
		p.state = blocks.InvalidPageState
		return errors.WithStack(err)
	}

	p.reset()
	p.state = blocks.UninitializedPageState
	return nil
}

// SeqNumber returns the sequence number of initialized page.
func (p *Page) SeqNumber() (uint32, error) {
	switch p.state {
	case blocks.UninitializedPageState, blocks.InvalidPageState, blocks.CorruptPageState:
		return 0, errors.WithStack(ErrNotInitialized)
	default:
		return p.seqNumber, nil
	}
}

// SetSeqNumber sets the sequence number stored in the header once the page is initialized.
func (p *Page) SetSeqNumber(seqNumber uint32) error {
	if p.state != blocks.UninitializedPageState {
		return errors.Wrapf(ErrInvalidState, "page state: %s", p.state)
	}
	p.seqNumber = seqNumber
	return nil
}

// Version returns the format version of the page.
func (p *Page) Version() uint8 {
	return p.version
}

// SetVersion sets the format version stored in the header once the page is initialized.
func (p *Page) SetVersion(version uint8) error {
	if p.state != blocks.UninitializedPageState {
		return errors.Wrapf(ErrInvalidState, "page state: %s", p.state)
	}
	p.version = version
	return nil
}

// State returns the lifecycle state of the page.
func (p *Page) State() blocks.PageState {
	return p.state
}

// Geometry returns the layout of the page.
func (p *Page) Geometry() blocks.Geometry {
	return p.geometry
}

// SectorNumber returns the number of the sector the page is stored in.
func (p *Page) SectorNumber() uint32 {
	return p.sector
}

// UsedEntryCount returns the number of written entries.
func (p *Page) UsedEntryCount() int {
	return p.usedEntryCount
}

// ErasedEntryCount returns the number of erased entries.
func (p *Page) ErasedEntryCount() int {
	return p.erasedEntryCount
}

// FirstUsedEntry returns the index of the first written entry or -1 if there is none.
func (p *Page) FirstUsedEntry() int {
	return p.firstUsedEntry
}

// NextFreeEntry returns the index of the entry the next write goes to.
func (p *Page) NextFreeEntry() int {
	return p.nextFreeEntry
}

// EntryState returns the state of the entry.
func (p *Page) EntryState(index int) blocks.EntryState {
	return p.entryTable.Get(index)
}

// ReadEntry returns raw content of the entry.
func (p *Page) ReadEntry(index int) (item.Item, error) {
	if index < 0 || index >= p.geometry.EntryCount {
		return item.Item{}, errors.Wrapf(ErrInvalidArgument, "entry index %d out of range", index)
	}
	return p.readEntry(index)
}

func (p *Page) reset() {
	p.firstUsedEntry = noEntry
	p.nextFreeEntry = 0
	p.usedEntryCount = 0
	p.erasedEntryCount = 0
	p.entryTable.Reset()
	p.hashList.Clear()
}

func (p *Page) isBlank() (bool, error) {
	block := make([]byte, blankCheckBlockSize)
	for offset := uint32(0); offset < p.geometry.SectorSize; offset += blankCheckBlockSize {
		if err := p.part.Read(p.baseAddress+offset, block); err != nil {
			p.state = blocks.InvalidPageState
			return false, errors.WithStack(err)
		}
		for i := 0; i < len(block); i += 4 {
			if binary.LittleEndian.Uint32(block[i:]) != blocks.ErasedWord {
				return false, nil
			}
		}
	}
	return true, nil
}

func (p *Page) loadEntryTable() error {
	raw := make([]byte, p.geometry.EntryTableSize)
	if err := p.part.Read(p.baseAddress+blocks.EntryTableOffset, raw); err != nil {
		p.state = blocks.InvalidPageState
		return errors.WithStack(err)
	}
	if err := p.entryTable.Load(raw); err != nil {
		p.state = blocks.InvalidPageState
		return err
	}

	for i := 0; i < p.geometry.EntryCount; i++ {
		switch p.entryTable.Get(i) {
		case blocks.WrittenEntryState:
			if p.firstUsedEntry == noEntry {
				p.firstUsedEntry = i
			}
			p.usedEntryCount++
		case blocks.ErasedEntryState:
			p.erasedEntryCount++
		}
	}

	p.nextFreeEntry = p.geometry.EntryCount
	if p.state != blocks.ActivePageState {
		return p.scanItems(p.geometry.EntryCount)
	}

	for i := 0; i < p.geometry.EntryCount; i++ {
		if p.entryTable.Get(i) == blocks.EmptyEntryState {
			p.nextFreeEntry = i
			break
		}
	}
	if err := p.repairPartialWrites(); err != nil {
		return err
	}
	return p.scanItems(p.nextFreeEntry)
}

// repairPartialWrites erases entries after the last one marked in the entry table, which have been programmed
// before the power was lost, but the entry table had not been updated.
func (p *Page) repairPartialWrites() error {
	word := make([]byte, 4)
	for p.nextFreeEntry < p.geometry.EntryCount {
		if err := p.part.Read(p.entryAddress(p.nextFreeEntry), word); err != nil {
			p.state = blocks.InvalidPageState
			return errors.WithStack(err)
		}
		if binary.LittleEndian.Uint32(word) == blocks.ErasedWord {
			break
		}

		p.log.Debug("Erasing partially written entry", zap.Int("index", p.nextFreeEntry))
		p.countErased(p.nextFreeEntry)
		if err := p.alterEntryState(p.nextFreeEntry, blocks.ErasedEntryState); err != nil {
			return err
		}
		p.nextFreeEntry++
	}

	p.firstUsedEntry = p.findWrittenEntry(0, p.geometry.EntryCount)
	return nil
}

// scanItems validates all the items in [0, end), rebuilds hash list and removes duplicates.
// When the same record is stored twice, the one with higher index is newer and wins.
func (p *Page) scanItems(end int) error {
	var span int
	for i := 0; i < end; i += span {
		span = 1

		switch p.entryTable.Get(i) {
		case blocks.EmptyEntryState, blocks.ErasedEntryState:
			continue
		case blocks.IllegalEntryState:
			p.log.Debug("Erasing entry in illegal state", zap.Int("index", i))
			if err := p.eraseEntryAndSpan(i); err != nil {
				return err
			}
			continue
		}

		it, err := p.readEntry(i)
		if err != nil {
			return err
		}
		if !it.ChecksumValid() {
			p.log.Debug("Erasing item with invalid checksum", zap.Int("index", i))
			if err := p.eraseEntryAndSpan(i); err != nil {
				return err
			}
			continue
		}
		if !it.Type.IsValid() {
			p.log.Debug("Erasing item of unknown type", zap.Int("index", i), zap.Uint8("type", uint8(it.Type)))
			if err := p.eraseEntryAndSpan(i); err != nil {
				return err
			}
			continue
		}

		if it.Type.IsVariableLength() {
			span = itemSpan(&it)
			if !p.spanWritten(i, span) {
				p.log.Debug("Erasing partially written item", zap.Int("index", i), zap.Int("span", span))
				if err := p.eraseEntryAndSpan(i); err != nil {
					return err
				}
				continue
			}
		}

		duplicate, exists, err := p.findDuplicate(&it, i)
		if err != nil {
			return err
		}
		p.hashList.Insert(&it, i)
		if exists {
			p.log.Debug("Erasing duplicated item", zap.Int("index", duplicate), zap.Int("newer", i),
				zap.String("key", it.KeyString()))
			if err := p.eraseEntryAndSpan(duplicate); err != nil {
				return err
			}
		}
	}
	return nil
}

// findDuplicate looks for the older copy of the item stored before index.
func (p *Page) findDuplicate(it *item.Item, before int) (int, bool, error) {
	hash := hashlist.HashItem(it)
	for start := 0; ; {
		candidate, exists := p.hashList.Find(start, hash)
		if !exists || candidate >= before {
			break
		}
		match, err := p.entryMatches(candidate, it)
		if err != nil || match {
			return candidate, match, err
		}
		start = candidate + 1
	}

	if p.hashList.Complete() {
		return 0, false, nil
	}

	for i := 0; i < before; {
		if p.entryTable.Get(i) != blocks.WrittenEntryState {
			i++
			continue
		}
		candidate, err := p.readEntry(i)
		if err != nil {
			return 0, false, err
		}
		if !candidate.ChecksumValid() {
			i++
			continue
		}
		if candidate.Matches(it) {
			return i, true, nil
		}
		if candidate.Type.IsVariableLength() {
			i += itemSpan(&candidate)
		} else {
			i++
		}
	}
	return 0, false, nil
}

func (p *Page) entryMatches(index int, it *item.Item) (bool, error) {
	if p.entryTable.Get(index) != blocks.WrittenEntryState {
		return false, nil
	}
	candidate, err := p.readEntry(index)
	if err != nil {
		return false, err
	}
	return candidate.ChecksumValid() && candidate.Matches(it), nil
}

func (p *Page) spanWritten(index, span int) bool {
	if index+span > p.geometry.EntryCount {
		return false
	}
	for i := index; i < index+span; i++ {
		if p.entryTable.Get(i) != blocks.WrittenEntryState {
			return false
		}
	}
	return true
}

func (p *Page) findWrittenEntry(begin, end int) int {
	for i := begin; i < end; i++ {
		if p.entryTable.Get(i) == blocks.WrittenEntryState {
			return i
		}
	}
	return noEntry
}

// countErased updates counters before the entry is marked as erased.
func (p *Page) countErased(index int) {
	switch p.entryTable.Get(index) {
	case blocks.WrittenEntryState:
		p.usedEntryCount--
		p.erasedEntryCount++
	case blocks.EmptyEntryState, blocks.IllegalEntryState:
		p.erasedEntryCount++
	}
}

func (p *Page) entryAddress(index int) uint32 {
	return p.baseAddress + p.geometry.EntryOffset(index)
}

func (p *Page) readEntry(index int) (item.Item, error) {
	var it item.Item
	if err := p.part.Read(p.entryAddress(index), it.Bytes()); err != nil {
		p.state = blocks.InvalidPageState
		return item.Item{}, errors.WithStack(err)
	}
	return it, nil
}

// alterEntryState updates the state in memory and persists the single word of the table containing it.
func (p *Page) alterEntryState(index int, state blocks.EntryState) error {
	p.entryTable.Set(index, state)
	return p.writeEntryTableWord(entrytable.WordIndex(index))
}

// alterEntryRangeState updates states of entries in [begin, end), writing each affected word once,
// starting from the last one.
func (p *Page) alterEntryRangeState(begin, end int, state blocks.EntryState) error {
	wordIndex := entrytable.WordIndex(end - 1)
	for i := end - 1; i >= begin; i-- {
		p.entryTable.Set(i, state)

		nextWordIndex := noEntry
		if i > begin {
			nextWordIndex = entrytable.WordIndex(i - 1)
		}
		if nextWordIndex != wordIndex {
			if err := p.writeEntryTableWord(wordIndex); err != nil {
				return err
			}
		}
		wordIndex = nextWordIndex
	}
	return nil
}

func (p *Page) writeEntryTableWord(wordIndex int) error {
	offset := p.baseAddress + blocks.EntryTableOffset + uint32(wordIndex)*4
	if err := p.part.Write(offset, p.entryTable.WordBytes(wordIndex)); err != nil {
		p.state = blocks.InvalidPageState
		return errors.WithStack(err)
	}
	return nil
}

func (p *Page) alterPageState(state blocks.PageState) error {
	word := make([]byte, 4)
	binary.LittleEndian.PutUint32(word, uint32(state))
	if err := p.part.Write(p.baseAddress, word); err != nil {
		p.state = blocks.InvalidPageState
		return errors.WithStack(err)
	}
	p.state = state
	return nil
}

func itemSpan(it *item.Item) int {
	if it.Span == 0 {
		return 1
	}
	return int(it.Span)
}
