package server

import (
	"encoding/json"
	"net/http"

	"github.com/MeKo-Tech/tilecache/internal/source"
)

// mapLibreStyle is the minimal subset of the MapLibre style spec this
// proxy needs to describe one source: a raster (or raster-dem, for
// terrain/elevation sources) layer with its tile template.
type mapLibreStyle struct {
	Version int                    `json:"version"`
	Sources map[string]styleSource `json:"sources"`
	Layers  []styleLayer           `json:"layers"`
	Terrain *styleTerrain          `json:"terrain,omitempty"`
}

type styleSource struct {
	Type     string     `json:"type"`
	Tiles    []string   `json:"tiles"`
	TileSize int        `json:"tileSize"`
	MinZoom  int        `json:"minzoom"`
	MaxZoom  int        `json:"maxzoom"`
	Bounds   [4]float64 `json:"bounds,omitempty"`
	Encoding string     `json:"encoding,omitempty"`
}

type styleLayer struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Source string `json:"source"`
}

type styleTerrain struct {
	Source       string  `json:"source"`
	Exaggeration float64 `json:"exaggeration"`
}

// styleHandler serves the MapLibre style JSON at a source's bare path
// (spec.md §6: `GET /{source.path}`), picking raster vs raster-dem
// based on whether metadata.encoding names a DEM encoding. tilePath is
// the Express-style template (e.g. "/basemap/:z/:x/:y"); the
// client-facing tile URL is resolved against the incoming request's
// host so the style works behind any proxy/port.
func styleHandler(name string, src *source.Source, tilePath string) http.HandlerFunc {
	tileURLPath := expressParam.ReplaceAllString(tilePath, "{$1}")

	return func(w http.ResponseWriter, r *http.Request) {
		cfg := src.Cfg
		isDEM := cfg.Metadata.Encoding == "mapbox" || cfg.Metadata.Encoding == "terrarium"

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		tileURL := scheme + "://" + r.Host + tileURLPath

		srcType := "raster"
		if isDEM {
			srcType = "raster-dem"
		}

		ss := styleSource{
			Type:     srcType,
			Tiles:    []string{tileURL},
			TileSize: cfg.Metadata.TileSize,
			MinZoom:  cfg.MinZoom,
			MaxZoom:  cfg.MaxZoom,
			Encoding: cfg.Metadata.Encoding,
		}
		if cfg.Metadata.Bounds != [4]float64{} {
			ss.Bounds = cfg.Metadata.Bounds
		}

		style := mapLibreStyle{
			Version: 8,
			Sources: map[string]styleSource{name: ss},
		}

		if isDEM {
			style.Terrain = &styleTerrain{Source: name, Exaggeration: 1.0}
			style.Layers = []styleLayer{{ID: name + "-hillshade", Type: "hillshade", Source: name}}
		} else {
			style.Layers = []styleLayer{{ID: name, Type: "raster", Source: name}}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if err := json.NewEncoder(w).Encode(style); err != nil {
			src.Log().Error("encode style json failed", "source", name, "err", err)
		}
	}
}
