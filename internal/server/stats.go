package server

import (
	"encoding/json"
	"net/http"

	"github.com/MeKo-Tech/tilecache/internal/source"
)

// SourceStats is one source's row in /api/stats's route_stats map.
type SourceStats struct {
	TilesCount         int64          `json:"tiles_count"`
	MissesCount        int64          `json:"misses_count"`
	CacheSize          int64          `json:"cache_size"`
	CoverageData       map[int]string `json:"coverage_data"`
	CoveragePercentage float64        `json:"coverage_percentage"`
}

// StatsResponse is the full /api/stats body, spec.md §6.
type StatsResponse struct {
	RouteStats map[string]SourceStats `json:"route_stats"`
	Totals     SourceStats            `json:"totals"`
}

func computeSourceStats(src *source.Source) (SourceStats, error) {
	var stats SourceStats
	stats.CoverageData = make(map[int]string)

	for z := src.Cfg.MinZoom; z <= src.Cfg.MaxZoom; z++ {
		n, err := src.Store.CountTiles(z)
		if err != nil {
			return stats, err
		}
		stats.TilesCount += n

		m, err := src.Store.CountMisses(z)
		if err != nil {
			return stats, err
		}
		stats.MissesCount += m
	}

	size, err := src.Store.SumTileBytes()
	if err != nil {
		return stats, err
	}
	stats.CacheSize = size

	progress, err := src.Store.AllScanProgress(src.Name)
	if err != nil {
		return stats, err
	}
	completed := 0
	for _, p := range progress {
		stats.CoverageData[p.Zoom] = string(p.Status)
		if p.Status == "completed" {
			completed++
		}
	}
	zoomCount := src.Cfg.MaxZoom - src.Cfg.MinZoom + 1
	if zoomCount > 0 {
		stats.CoveragePercentage = 100 * float64(completed) / float64(zoomCount)
	}

	return stats, nil
}

// statsHandler implements `GET /api/stats`.
func statsHandler(sources map[string]*source.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatsResponse{RouteStats: make(map[string]SourceStats)}

		for name, src := range sources {
			stats, err := computeSourceStats(src)
			if err != nil {
				src.Log().Error("compute stats failed", "source", name, "err", err)
				http.Error(w, "failed to compute stats", http.StatusInternalServerError)
				return
			}
			resp.RouteStats[name] = stats
			resp.Totals.TilesCount += stats.TilesCount
			resp.Totals.MissesCount += stats.MissesCount
			resp.Totals.CacheSize += stats.CacheSize
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
