package inspect

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/outofforest/nvs/blocks"
	"github.com/outofforest/nvs/page"
	"github.com/outofforest/nvs/persistence"
)

// PageReport describes one page of the partition.
type PageReport struct {
	Sector           uint32
	State            blocks.PageState
	SeqNumber        uint32
	Initialized      bool
	Version          uint8
	UsedEntries      int
	ErasedEntries    int
	NextFreeEntry    int
	VarDataTailroom  int
	Stats            page.Stats
	Dump             string
	NewerVersionPage bool
}

// Report describes the whole partition. Freeing and invalid pages are not included in stats.
type Report struct {
	Geometry blocks.Geometry
	Pages    []PageReport
	Stats    page.Stats
}

// Load loads all the sectors of the partition concurrently. Partition must be safe for concurrent use.
// Nothing is written unless repairs are needed, exactly as during regular page loading.
func Load(ctx context.Context, part persistence.Partition, config page.Config, sectors uint32) (Report, error) {
	if config.Geometry.SectorSize == 0 {
		config.Geometry = blocks.DefaultGeometry
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	report := Report{
		Geometry: config.Geometry,
		Pages:    make([]PageReport, sectors),
	}

	g, ctx := errgroup.WithContext(ctx)
	for sector := uint32(0); sector < sectors; sector++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return errors.WithStack(err)
			}

			r, err := loadPage(part, config, sector)
			if err != nil {
				return errors.WithMessagef(err, "loading page in sector %d failed", sector)
			}
			report.Pages[sector] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	for _, r := range report.Pages {
		report.Stats.UsedEntries += r.Stats.UsedEntries
		report.Stats.FreeEntries += r.Stats.FreeEntries
		report.Stats.TotalEntries += r.Stats.TotalEntries
	}

	return report, nil
}

func loadPage(part persistence.Partition, config page.Config, sector uint32) (PageReport, error) {
	p := page.New(config)

	r := PageReport{Sector: sector}
	if err := p.Load(part, sector); err != nil {
		if !errors.Is(err, page.ErrNewerVersionFound) {
			return PageReport{}, err
		}
		config.Logger.Warn("Page uses newer format version", zap.Uint32("sector", sector), zap.Error(err))
		r.NewerVersionPage = true
	}

	r.State = p.State()
	r.Version = p.Version()
	r.UsedEntries = p.UsedEntryCount()
	r.ErasedEntries = p.ErasedEntryCount()
	r.NextFreeEntry = p.NextFreeEntry()
	r.VarDataTailroom = p.VarDataTailroom()
	if err := p.CalcEntries(&r.Stats); err != nil && !errors.Is(err, page.ErrInvalidState) {
		return PageReport{}, err
	}
	if seq, err := p.SeqNumber(); err == nil {
		r.SeqNumber = seq
		r.Initialized = true
	}

	switch r.State {
	case blocks.ActivePageState, blocks.FullPageState, blocks.FreeingPageState:
		buf := &bytes.Buffer{}
		if err := p.DebugDump(buf); err != nil {
			return PageReport{}, err
		}
		r.Dump = buf.String()
	}

	return r, nil
}
