package config

import "time"

const (
	DefaultMissTimeout    = 300 * time.Second
	DefaultMissMaxRecords = 10000
	DefaultTileSize       = 256
)

// WithDefaults returns a copy of s with zero-valued fields filled from
// spec.md §6's stated defaults. Applied once per source at startup,
// after Load, so wiring code always sees concrete values.
func (s Source) WithDefaults() Source {
	if s.MissTimeout == 0 {
		s.MissTimeout = DefaultMissTimeout
	}
	if s.MissMaxRecords == 0 {
		s.MissMaxRecords = DefaultMissMaxRecords
	}
	if s.SourceFormat == "" {
		s.SourceFormat = "png"
	}
	if s.Metadata.TileSize == 0 {
		s.Metadata.TileSize = DefaultTileSize
	}
	if s.Autoscan.Enabled && s.Autoscan.DailyLimit == 0 {
		s.Autoscan.DailyLimit = 10000
	}
	if s.Autoscan.Enabled && s.Autoscan.MaxScanZoom == 0 {
		s.Autoscan.MaxScanZoom = s.MaxZoom
	}
	if s.GapFilling.Enabled && s.GapFilling.OutputFormat.Type == "" {
		s.GapFilling.OutputFormat.Type = "png"
	}
	if s.GapFilling.Enabled && s.GapFilling.Schedule.Time == "" {
		s.GapFilling.Schedule.Time = "03:00"
	}
	if s.GapFilling.Enabled && s.GapFilling.RasterMethod == "" {
		s.GapFilling.RasterMethod = "linear"
	}
	if s.GapFilling.Enabled && s.GapFilling.TerrainMethod == "" {
		s.GapFilling.TerrainMethod = "average"
	}
	return s
}
