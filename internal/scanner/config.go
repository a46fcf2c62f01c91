// Package scanner implements the background preloader (C5): a resumable
// grid walk that warms a source's tile store inside a daily fetch
// budget without exceeding upstream rate policy, per spec.md §4.5.
package scanner

import (
	"log/slog"
	"time"
)

// Config is one source's scanner configuration.
type Config struct {
	Source string

	MinZoom     int
	MaxScanZoom int
	RealMinZoom *int
	Bounds      [4]float64

	// DailyLimit is the target number of successful fetches per UTC
	// day; the pacing interval is derived as 86400/DailyLimit seconds.
	DailyLimit int

	MaxRetries    int
	RetryBaseSecs float64
	RetryCap      time.Duration

	Logger *slog.Logger
}

func (c Config) log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c Config) startZoom() int {
	if c.RealMinZoom != nil && *c.RealMinZoom > c.MinZoom {
		return *c.RealMinZoom
	}
	return c.MinZoom
}
