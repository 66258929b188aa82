package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/outofforest/nvs/blocks"
	"github.com/outofforest/nvs/inspect"
	"github.com/outofforest/nvs/page"
	"github.com/outofforest/nvs/persistence"
	"github.com/outofforest/nvs/pkg/badgerdev"
	"github.com/outofforest/nvs/pkg/filedev"
)

type config struct {
	Image       string
	BadgerDir   string
	SectorSize  uint
	Sectors     uint
	Interactive bool
	LogLevel    string
}

func main() {
	var cfg config
	flag.StringVar(&cfg.Image, "image", "", "Path to the flash partition image")
	flag.StringVar(&cfg.BadgerDir, "badger", "", "Path to the badger database holding the partition")
	flag.UintVar(&cfg.SectorSize, "sector-size", uint(blocks.DefaultSectorSize), "Size of the flash sector")
	flag.UintVar(&cfg.Sectors, "sectors", 0, "Number of sectors, required for badger, defaults to the whole image")
	flag.BoolVar(&cfg.Interactive, "interactive", false, "Browse the dump in the scrollable viewer")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, out io.Writer) error {
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	geometry, err := blocks.NewGeometry(uint32(cfg.SectorSize))
	if err != nil {
		return err
	}

	part, sectors, closeFn, err := openPartition(cfg, geometry)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			log.Error("Closing partition failed", zap.Error(err))
		}
	}()

	log.Info("Loading pages", zap.Uint32("sectors", sectors), zap.Uint32("sectorSize", geometry.SectorSize))
	report, err := inspect.Load(ctx, part, page.Config{
		Geometry: geometry,
		Logger:   log,
	}, sectors)
	if err != nil {
		return err
	}

	if cfg.Interactive {
		return inspect.Run(report)
	}
	_, err = io.WriteString(out, inspect.Full(report))
	return errors.WithStack(err)
}

func openPartition(cfg config, geometry blocks.Geometry) (persistence.Partition, uint32, func() error, error) {
	switch {
	case cfg.Image != "" && cfg.BadgerDir != "":
		return nil, 0, nil, errors.New("only one of -image and -badger might be set")
	case cfg.Image != "":
		dev, err := filedev.Open(cfg.Image)
		if err != nil {
			return nil, 0, nil, err
		}
		if dev.Size()%int64(geometry.SectorSize) != 0 {
			_ = dev.Close()
			return nil, 0, nil, errors.Errorf("image size %d is not a multiple of sector size %d", dev.Size(),
				geometry.SectorSize)
		}
		sectors := persistence.SectorCount(dev, geometry)
		if cfg.Sectors != 0 && uint32(cfg.Sectors) < sectors {
			sectors = uint32(cfg.Sectors)
		}
		return persistence.NewDevPartition(dev), sectors, dev.Close, nil
	case cfg.BadgerDir != "":
		if cfg.Sectors == 0 {
			return nil, 0, nil, errors.New("-sectors must be set for badger partition")
		}
		part, err := badgerdev.Open(cfg.BadgerDir, geometry.SectorSize, uint32(cfg.Sectors))
		if err != nil {
			return nil, 0, nil, err
		}
		return part, uint32(cfg.Sectors), part.Close, nil
	default:
		return nil, 0, nil, errors.New("-image or -badger must be set")
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.OutputPaths = []string{"stderr"}
	log, err := config.Build()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return log, nil
}
