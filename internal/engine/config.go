// Package engine implements the on-demand tile read path: store lookup,
// negative-cache interpretation, per-key single-flight upstream fetch,
// and transcoding, per spec.md §4.4.
package engine

import (
	"log/slog"
	"time"

	"github.com/MeKo-Tech/tilecache/internal/codec"
)

// CacheStatus is reported on every response via X-Cache-Status.
type CacheStatus string

const (
	CacheHIT   CacheStatus = "HIT"
	CacheMISS  CacheStatus = "MISS"
	CacheGEN   CacheStatus = "GEN"
	CacheREGEN CacheStatus = "REGEN"
	CacheERROR CacheStatus = "ERROR"
)

// Miss reasons recorded in the negative cache, spec.md §4.4's taxonomy.
const (
	ReasonHTTPError            = "http_error"
	ReasonInvalidContentType   = "invalid_content_type"
	ReasonArcgisHTMLError      = "arcgis_html_error"
	ReasonArcgisNodata         = "arcgis_nodata"
	ReasonLERCDecodeError      = "lerc_decode_error"
	ReasonImageProcessingError = "image_processing_error"
	ReasonWebPConversionError  = "webp_conversion_error"
	ReasonFetchError           = "fetch_error"
)

// DownsampleConfig mirrors a source's downsample_config block.
type DownsampleConfig struct {
	Enabled    bool
	TargetSize int
	// TerrainMethod is used when TerrainEncoding is set; otherwise
	// RasterMethod resamples the raw image.
	TerrainMethod codec.Method
	RasterMethod  codec.RasterMethod
}

// WebPOutputConfig mirrors a source's webp_config block, applied after
// downsampling when the source's target wire format is WebP.
type WebPOutputConfig struct {
	Enabled  bool
	Lossless bool
	Effort   int
	Quality  float32
}

// Config is one source's engine configuration, analogous to the
// teacher's OnDemandTilesConfig but keyed on store/codec/upstream
// semantics instead of on-disk static tiles.
type Config struct {
	Source string

	// MissTimeout is how long a negative cache entry is trusted before
	// the engine retries the upstream (spec.md §4.4 step 3).
	MissTimeout    time.Duration
	MissMaxRecords int

	// RealMinZoom, when non-nil, short-circuits fetches below this
	// zoom without even checking the miss table (spec.md §4.4 step 2).
	RealMinZoom *int

	// SourceFormat is "png", "lerc", or any other upstream payload
	// shape; only "lerc" changes the validation/decode path.
	SourceFormat    string
	TerrainEncoding codec.Encoding
	LERCDecoder     codec.LERCDecoder

	// UpstreamPath renders (z, x, y_xyz) into the upstream URL; owned
	// by the caller since it depends on the source's target template.
	UpstreamPath func(z, x, yXYZ int) string
	// RequestHeaders are this source's headers.request overlay, merged
	// by the upstream client over defaults and under pass-through.
	RequestHeaders map[string]string

	GzipInflate bool
	Downsample  DownsampleConfig
	WebPOutput  WebPOutputConfig

	ContentType string
	HitMaxAge   time.Duration
	MissMaxAge  time.Duration
	ErrorTile   []byte
	ErrorTileCT string

	Logger *slog.Logger
}

func (c Config) log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
