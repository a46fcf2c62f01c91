// Package source wires one config.Source into its running components:
// the MBTiles store (C1), upstream client (C3), tile engine (C4),
// background scanner (C5), and pyramid reconstructor (C6), with the
// reconstructor installed as the engine's ChildNotifier so both the
// on-demand path and the scanner feed the same pyramid state.
package source

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/MeKo-Tech/tilecache/internal/codec"
	"github.com/MeKo-Tech/tilecache/internal/config"
	"github.com/MeKo-Tech/tilecache/internal/engine"
	"github.com/MeKo-Tech/tilecache/internal/pyramid"
	"github.com/MeKo-Tech/tilecache/internal/scanner"
	"github.com/MeKo-Tech/tilecache/internal/store"
	"github.com/MeKo-Tech/tilecache/internal/upstream"
)

// Source bundles one configured source's running components. Built
// once at startup; there is no process-wide mutable singleton beyond
// the logger, so tests can construct several independent Sources in
// the same process.
type Source struct {
	Name    string
	Cfg     config.Source
	Store   *store.Store
	Client  *upstream.Client
	Engine  *engine.Engine
	Scanner *scanner.Scanner // nil unless autoscan.enabled
	Pyramid *pyramid.Reconstructor

	log *slog.Logger
}

// New constructs and opens every component for one source. dataDir is
// where relative mbtiles_file paths are resolved against.
func New(name string, cfg config.Source, dataDir string, logger *slog.Logger) (*Source, error) {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("source", name)

	mbPath := cfg.MBTilesFile
	if !filepath.IsAbs(mbPath) {
		mbPath = filepath.Join(dataDir, mbPath)
	}
	st, err := store.Open(store.Config{Path: mbPath, Logger: log})
	if err != nil {
		return nil, fmt.Errorf("source %q: open store: %w", name, err)
	}

	if err := st.PutMetadata(toStoreMetadata(cfg)); err != nil {
		st.Close()
		return nil, fmt.Errorf("source %q: put metadata: %w", name, err)
	}

	client := upstream.New(upstream.Config{
		RequestHeaders: cfg.Headers.Request,
		Logger:         log,
	})

	recon := pyramid.New(st, pyramid.Config{
		Source:          name,
		MinZoom:         cfg.MinZoom,
		MaxZoom:         cfg.MaxZoom,
		TileSize:        cfg.Metadata.TileSize,
		TerrainEncoding: codec.Encoding(cfg.Metadata.Encoding),
		TerrainMethod:   codec.Method(cfg.GapFilling.TerrainMethod),
		RasterMethod:    codec.RasterMethod(cfg.GapFilling.RasterMethod),
		OutputFormat:    cfg.GapFilling.OutputFormat.Type,
		WebPLossless:    cfg.WebPConfig.Lossless,
		WebPEffort:      cfg.GapFilling.OutputFormat.Effort,
		WebPQuality:     cfg.WebPConfig.Quality,
		ScheduleTime:    cfg.GapFilling.Schedule.Time,
		Logger:          log,
	})

	var lercDecoder codec.LERCDecoder
	if cfg.SourceFormat == "lerc" {
		lercDecoder = codec.NewReferenceDecoder()
	}

	eng := engine.New(st, client, recon, engine.Config{
		Source:          name,
		MissTimeout:     cfg.MissTimeout,
		MissMaxRecords:  cfg.MissMaxRecords,
		RealMinZoom:     cfg.GapFilling.SourceRealMinZoom,
		SourceFormat:    cfg.SourceFormat,
		TerrainEncoding: codec.Encoding(cfg.Metadata.Encoding),
		LERCDecoder:     lercDecoder,
		UpstreamPath: func(z, x, yXYZ int) string {
			return renderTarget(cfg.Target, cfg.QueryParams, z, x, yXYZ)
		},
		RequestHeaders: cfg.Headers.Request,
		Downsample: engine.DownsampleConfig{
			Enabled:       cfg.DownsampleConfig.Enabled,
			TargetSize:    cfg.DownsampleConfig.TargetSize,
			TerrainMethod: codec.Method(cfg.DownsampleConfig.Method),
			RasterMethod:  codec.RasterMethod(cfg.DownsampleConfig.Method),
		},
		WebPOutput: engine.WebPOutputConfig{
			Enabled:  cfg.Metadata.Format == "webp",
			Lossless: cfg.WebPConfig.Lossless,
			Effort:   cfg.WebPConfig.Effort,
			Quality:  cfg.WebPConfig.Quality,
		},
		ContentType: contentTypeFor(cfg.Metadata.Format),
		HitMaxAge:   cfg.Headers.Response.CacheControl.MaxAge.Hit,
		MissMaxAge:  cfg.Headers.Response.CacheControl.MaxAge.Miss,
		Logger:      log,
	})

	s := &Source{Name: name, Cfg: cfg, Store: st, Client: client, Engine: eng, Pyramid: recon, log: log}

	if cfg.Autoscan.Enabled {
		bounds := cfg.Metadata.Bounds
		if cfg.Autoscan.Bounds != nil {
			bounds = *cfg.Autoscan.Bounds
		}
		s.Scanner = scanner.New(st, eng, scanner.Config{
			Source:      name,
			MinZoom:     cfg.MinZoom,
			MaxScanZoom: cfg.Autoscan.MaxScanZoom,
			RealMinZoom: cfg.GapFilling.SourceRealMinZoom,
			Bounds:      bounds,
			DailyLimit:  cfg.Autoscan.DailyLimit,
			Logger:      log,
		})
	}

	return s, nil
}

// Close releases the store's resources. Client/Engine/Scanner hold no
// separate handles beyond the store.
func (s *Source) Close() error {
	return s.Store.Close()
}

// Log returns this source's scoped logger, for callers outside the
// package (the HTTP handlers) that need to log with the same
// "source" field the components themselves use.
func (s *Source) Log() *slog.Logger {
	return s.log
}

func toStoreMetadata(cfg config.Source) store.Metadata {
	return store.Metadata{
		Name:     cfg.Path,
		Format:   cfg.Metadata.Format,
		Type:     cfg.Metadata.Type,
		Bounds:   cfg.Metadata.Bounds,
		Center:   cfg.Metadata.Center,
		MinZoom:  cfg.MinZoom,
		MaxZoom:  cfg.MaxZoom,
		TileSize: cfg.Metadata.TileSize,
		Encoding: cfg.Metadata.Encoding,
	}
}

func contentTypeFor(format string) string {
	switch format {
	case "webp":
		return "image/webp"
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}
