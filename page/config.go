package page

import (
	"go.uber.org/zap"

	"github.com/outofforest/nvs/blocks"
	"github.com/outofforest/nvs/hashlist"
)

// Config is the configuration of the page.
type Config struct {
	// Geometry is the layout of the sector. Zero value means blocks.DefaultGeometry.
	Geometry blocks.Geometry

	// Logger receives information about repairs done while scanning the page. Nil means no logging.
	Logger *zap.Logger

	// HashListCapacity is the maximum number of entries indexed in memory. Zero means hashlist.DefaultCapacity.
	HashListCapacity int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Geometry:         blocks.DefaultGeometry,
		Logger:           zap.NewNop(),
		HashListCapacity: hashlist.DefaultCapacity,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Geometry.SectorSize == 0 {
		c.Geometry = d.Geometry
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	if c.HashListCapacity <= 0 {
		c.HashListCapacity = d.HashListCapacity
	}
	return c
}
