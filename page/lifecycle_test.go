package page

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"github.com/outofforest/nvs/blocks"
	"github.com/outofforest/nvs/persistence"
	"github.com/outofforest/nvs/pkg/memdev"
)

type LifecycleSuite struct {
	suite.Suite

	dev  *memdev.MemDev
	part *persistence.DevPartition
	page *Page
}

func TestLifecycle(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}

func (s *LifecycleSuite) SetupTest() {
	s.dev, s.part = newPartition(blocks.DefaultGeometry)
	s.page = s.load()
}

func (s *LifecycleSuite) load() *Page {
	p := New(Config{Logger: zaptest.NewLogger(s.T())})
	s.Require().NoError(p.Load(s.part, 0))
	return p
}

func (s *LifecycleSuite) TestInitialize() {
	s.Require().NoError(s.page.SetSeqNumber(7))
	s.Require().NoError(s.page.Initialize())
	s.Equal(blocks.ActivePageState, s.page.State())

	seq, err := s.page.SeqNumber()
	s.Require().NoError(err)
	s.EqualValues(7, seq)

	s.ErrorIs(s.page.Initialize(), ErrInvalidState)
	s.ErrorIs(s.page.SetSeqNumber(8), ErrInvalidState)
	s.ErrorIs(s.page.SetVersion(blocks.Version1), ErrInvalidState)

	p := s.load()
	s.Equal(blocks.ActivePageState, p.State())
	seq, err = p.SeqNumber()
	s.Require().NoError(err)
	s.EqualValues(7, seq)
	s.Equal(blocks.CurrentVersion, p.Version())
}

func (s *LifecycleSuite) TestFullAndFreeing() {
	s.ErrorIs(s.page.MarkFull(), ErrInvalidState)
	s.ErrorIs(s.page.MarkFreeing(), ErrInvalidState)

	s.Require().NoError(s.page.WriteItem(nsIndex, blocks.U8ItemType, "k", []byte{1}, blocks.ChunkAny))
	s.Require().NoError(s.page.MarkFull())
	s.Equal(blocks.FullPageState, s.page.State())
	s.ErrorIs(s.page.WriteItem(nsIndex, blocks.U8ItemType, "j", []byte{1}, blocks.ChunkAny), ErrInvalidState)
	s.ErrorIs(s.page.MarkFull(), ErrInvalidState)

	p := s.load()
	s.Equal(blocks.FullPageState, p.State())
	s.Equal(1, p.UsedEntryCount())
	s.Equal(blocks.DefaultGeometry.EntryCount, p.NextFreeEntry())

	s.Require().NoError(p.MarkFreeing())
	s.Equal(blocks.FreeingPageState, p.State())
	s.ErrorIs(p.WriteItem(nsIndex, blocks.U8ItemType, "j", []byte{1}, blocks.ChunkAny), ErrInvalidState)

	p = s.load()
	s.Equal(blocks.FreeingPageState, p.State())

	buf := make([]byte, 1)
	_, err := p.ReadItem(NewQuery(nsIndex, blocks.U8ItemType, "k"), buf)
	s.Require().NoError(err)
	s.Equal([]byte{1}, buf)

	s.Require().NoError(p.EraseItem(NewQuery(nsIndex, blocks.U8ItemType, "k")))
	s.Equal(0, p.UsedEntryCount())
}

func (s *LifecycleSuite) TestErase() {
	s.Require().NoError(s.page.WriteItem(nsIndex, blocks.U8ItemType, "k", []byte{1}, blocks.ChunkAny))
	s.Require().NoError(s.page.MarkFull())
	s.Require().NoError(s.page.Erase())

	s.Equal(blocks.UninitializedPageState, s.page.State())
	s.Equal(0, s.page.UsedEntryCount())
	s.Equal(-1, s.page.FirstUsedEntry())
	for _, b := range s.dev.Bytes()[:blocks.DefaultGeometry.SectorSize] {
		s.Require().Equal(blocks.ErasedByte, b)
	}

	p := s.load()
	s.Equal(blocks.UninitializedPageState, p.State())
}

func (s *LifecycleSuite) TestIOErrorInvalidatesPage() {
	s.Require().NoError(s.page.Initialize())

	s.dev.CutPowerAfter(0)
	s.ErrorIs(s.page.WriteItem(nsIndex, blocks.U8ItemType, "k", []byte{1}, blocks.ChunkAny), memdev.ErrPowerLoss)
	s.Equal(blocks.InvalidPageState, s.page.State())

	_, err := s.page.ReadItem(NewQuery(nsIndex, blocks.U8ItemType, "k"), make([]byte, 1))
	s.ErrorIs(err, ErrInvalidState)
	s.ErrorIs(s.page.WriteItem(nsIndex, blocks.U8ItemType, "k", []byte{1}, blocks.ChunkAny), ErrInvalidState)
	s.ErrorIs(s.page.CalcEntries(&Stats{}), ErrInvalidState)
	_, err = s.page.SeqNumber()
	s.ErrorIs(err, ErrNotInitialized)

	s.ErrorIs(s.page.Erase(), memdev.ErrPowerLoss)
	s.Equal(blocks.InvalidPageState, s.page.State())

	s.dev.RestorePower()
	s.Require().NoError(s.page.Erase())
	s.Equal(blocks.UninitializedPageState, s.page.State())
	s.Require().NoError(s.page.WriteItem(nsIndex, blocks.U8ItemType, "k", []byte{1}, blocks.ChunkAny))
}

func (s *LifecycleSuite) TestReadEntry() {
	s.Require().NoError(s.page.WriteItem(nsIndex, blocks.U16ItemType, "k", []byte{1, 2}, blocks.ChunkAny))

	it, err := s.page.ReadEntry(0)
	s.Require().NoError(err)
	s.Equal("k", it.KeyString())
	s.Equal(blocks.U16ItemType, it.Type)
	s.EqualValues(1, it.Span)
	s.True(it.ChecksumValid())
	s.Equal([]byte{1, 2}, it.Inline())

	_, err = s.page.ReadEntry(blocks.DefaultGeometry.EntryCount)
	s.ErrorIs(err, ErrInvalidArgument)
}
