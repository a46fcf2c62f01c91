// Package config defines the typed schema loaded from YAML/viper and
// used to construct each source's store, client, engine, scanner, and
// reconstructor at startup.
package config

import "time"

// Config is the top-level file: a server port plus one entry per
// tile source, keyed by name.
type Config struct {
	Port    int               `mapstructure:"port"`
	Sources map[string]Source `mapstructure:"sources"`
}

// Source covers every per-source field spec.md §6 lists.
type Source struct {
	Path        string `mapstructure:"path"`
	Target      string `mapstructure:"target"`
	MinZoom     int    `mapstructure:"minzoom"`
	MaxZoom     int    `mapstructure:"maxzoom"`
	MBTilesFile string `mapstructure:"mbtiles_file"`

	MissTimeout    time.Duration `mapstructure:"miss_timeout"`
	MissMaxRecords int           `mapstructure:"miss_max_records"`
	SourceFormat   string        `mapstructure:"source_format"`

	QueryParams map[string]string `mapstructure:"query_params"`
	Metadata    Metadata          `mapstructure:"metadata"`
	Headers     Headers           `mapstructure:"headers"`

	Autoscan         Autoscan         `mapstructure:"autoscan"`
	WebPConfig       WebPConfig       `mapstructure:"webp_config"`
	DownsampleConfig DownsampleConfig `mapstructure:"downsample_config"`
	GapFilling       GapFilling       `mapstructure:"gap_filling"`
}

// Metadata drives the MapLibre style JSON and the metadata table.
type Metadata struct {
	Bounds   [4]float64 `mapstructure:"bounds"`
	Center   [3]float64 `mapstructure:"center"`
	Type     string     `mapstructure:"type"`
	Encoding string     `mapstructure:"encoding"` // "", "mapbox", "terrarium"
	Format   string     `mapstructure:"format"`
	TileSize int        `mapstructure:"tileSize"`
}

// Headers configures the upstream request headers and the
// hit/miss Cache-Control max-age pair.
type Headers struct {
	Request  map[string]string `mapstructure:"request"`
	Response ResponseHeaders   `mapstructure:"response"`
}

type ResponseHeaders struct {
	CacheControl CacheControlAges `mapstructure:"Cache-Control"`
}

type CacheControlAges struct {
	MaxAge MaxAgePair `mapstructure:"max-age"`
}

type MaxAgePair struct {
	Hit  time.Duration `mapstructure:"hit"`
	Miss time.Duration `mapstructure:"miss"`
}

// Autoscan configures the background scanner (C5).
type Autoscan struct {
	Enabled     bool        `mapstructure:"enabled"`
	DailyLimit  int         `mapstructure:"daily_limit"`
	MaxScanZoom int         `mapstructure:"max_scan_zoom"`
	Bounds      *[4]float64 `mapstructure:"bounds"`
}

// WebPConfig controls optional WebP re-encoding on the hot path (C2/C4)
// and the reconstructor's composed output (C6).
type WebPConfig struct {
	Lossless bool    `mapstructure:"lossless"`
	Effort   int     `mapstructure:"effort"`
	Quality  float32 `mapstructure:"quality"`
}

// DownsampleConfig controls the C4 transcode-time downsample step.
type DownsampleConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	TargetSize int    `mapstructure:"target_size"`
	Method     string `mapstructure:"method"`
}

// GapFilling configures the pyramid reconstructor (C6).
type GapFilling struct {
	Enabled           bool            `mapstructure:"enabled"`
	SourceRealMinZoom *int            `mapstructure:"source_real_minzoom"`
	RasterMethod      string          `mapstructure:"raster_method"`
	TerrainMethod     string          `mapstructure:"terrain_method"`
	OutputFormat      GapOutputFormat `mapstructure:"output_format"`
	Schedule          GapSchedule     `mapstructure:"schedule"`
}

type GapOutputFormat struct {
	Type   string `mapstructure:"type"` // "png" or "webp"
	Effort int    `mapstructure:"effort"`
}

type GapSchedule struct {
	Time string `mapstructure:"time"` // "HH:MM" UTC
}
