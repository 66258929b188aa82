package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/nvs/blocks"
	"github.com/outofforest/nvs/page"
	"github.com/outofforest/nvs/persistence"
	"github.com/outofforest/nvs/pkg/badgerdev"
	"github.com/outofforest/nvs/pkg/filedev"
)

func TestDumpImage(t *testing.T) {
	requireT := require.New(t)

	path := filepath.Join(t.TempDir(), "nvs.bin")
	dev, err := filedev.Create(path, 3*int64(blocks.DefaultSectorSize))
	requireT.NoError(err)

	p := page.New(page.DefaultConfig())
	requireT.NoError(p.Load(persistence.NewDevPartition(dev), 1))
	requireT.NoError(p.WriteItem(1, blocks.StringItemType, "name", []byte("device"), blocks.ChunkAny))
	requireT.NoError(dev.Close())

	out := &bytes.Buffer{}
	requireT.NoError(run(context.Background(), config{
		Image:      path,
		SectorSize: uint(blocks.DefaultSectorSize),
		LogLevel:   "error",
	}, out))

	requireT.Contains(out.String(), "pages: 3")
	requireT.Contains(out.String(), "ACTIVE")
	requireT.Contains(out.String(), `key="name"`)
}

func TestDumpBadger(t *testing.T) {
	requireT := require.New(t)

	dir := t.TempDir()
	part, err := badgerdev.Open(dir, blocks.DefaultSectorSize, 2)
	requireT.NoError(err)
	p := page.New(page.DefaultConfig())
	requireT.NoError(p.Load(part, 0))
	requireT.NoError(p.WriteItem(1, blocks.U8ItemType, "flag", []byte{1}, blocks.ChunkAny))
	requireT.NoError(part.Close())

	out := &bytes.Buffer{}
	requireT.NoError(run(context.Background(), config{
		BadgerDir:  dir,
		SectorSize: uint(blocks.DefaultSectorSize),
		Sectors:    2,
		LogLevel:   "error",
	}, out))
	requireT.Contains(out.String(), `key="flag"`)
}

func TestInvalidConfig(t *testing.T) {
	requireT := require.New(t)

	ctx := context.Background()
	requireT.Error(run(ctx, config{SectorSize: uint(blocks.DefaultSectorSize), LogLevel: "info"}, &bytes.Buffer{}))
	requireT.Error(run(ctx, config{Image: "a", BadgerDir: "b", SectorSize: uint(blocks.DefaultSectorSize),
		LogLevel: "info"}, &bytes.Buffer{}))
	requireT.Error(run(ctx, config{BadgerDir: t.TempDir(), SectorSize: uint(blocks.DefaultSectorSize),
		LogLevel: "info"}, &bytes.Buffer{}))
	requireT.Error(run(ctx, config{Image: "a", SectorSize: 1000, LogLevel: "info"}, &bytes.Buffer{}))
	requireT.Error(run(ctx, config{Image: "a", SectorSize: uint(blocks.DefaultSectorSize), LogLevel: "loud"},
		&bytes.Buffer{}))
}
