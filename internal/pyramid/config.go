// Package pyramid implements the reconstructor (C6): event-driven
// child-ingress marking plus a scheduled three-phase daily pass that
// fills and refreshes parent tiles from their four children, per
// spec.md §4.6.
package pyramid

import (
	"log/slog"

	"github.com/MeKo-Tech/tilecache/internal/codec"
)

// Config is one source's reconstructor configuration.
type Config struct {
	Source string

	MinZoom, MaxZoom int
	TileSize         int

	// TerrainEncoding selects the terrain-aware downsample path; empty
	// means raster resampling instead.
	TerrainEncoding codec.Encoding
	TerrainMethod   codec.Method
	RasterMethod    codec.RasterMethod

	// OutputFormat is "png" or "webp"; WebP settings apply only when
	// OutputFormat == "webp".
	OutputFormat string
	WebPLossless bool
	WebPEffort   int
	WebPQuality  float32

	// ScheduleTime is "HH:MM" in UTC, checked once a minute.
	ScheduleTime string

	Logger *slog.Logger
}

func (c Config) log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c Config) terrainMethod() codec.Method {
	if c.TerrainMethod == "" {
		return codec.MethodAverage
	}
	return c.TerrainMethod
}
