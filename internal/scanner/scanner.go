package scanner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/MeKo-Tech/tilecache/internal/engine"
	"github.com/MeKo-Tech/tilecache/internal/store"
	"github.com/MeKo-Tech/tilecache/internal/tile"
)

// errCriticalStop aborts the whole source (401/403 from upstream).
var errCriticalStop = errors.New("scanner: critical error, source stopped")

// errZoomAborted aborts just the current zoom after retries are
// exhausted on a transient error; the scanner moves on to the next zoom.
var errZoomAborted = errors.New("scanner: zoom aborted, source_unavailable")

// Scanner is one source's background preloader.
type Scanner struct {
	store   *store.Store
	engine  *engine.Engine
	cfg     Config
	limiter *rate.Limiter
}

// New builds a Scanner paced to cfg.DailyLimit successful fetches/day.
func New(st *store.Store, eng *engine.Engine, cfg Config) *Scanner {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 15
	}
	if cfg.RetryBaseSecs <= 0 {
		cfg.RetryBaseSecs = 2.5
	}
	if cfg.RetryCap <= 0 {
		cfg.RetryCap = 4 * time.Hour
	}
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = 1
	}

	interval := 86400.0 / float64(cfg.DailyLimit)
	limiter := rate.NewLimiter(rate.Limit(1.0/interval), 1)

	return &Scanner{store: st, engine: eng, cfg: cfg, limiter: limiter}
}

// Run walks every configured zoom in order, resuming from persisted
// progress, until ctx is cancelled or every zoom completes.
func (s *Scanner) Run(ctx context.Context) error {
	if err := s.resetStaleZooms(); err != nil {
		return fmt.Errorf("scanner: reset stale zooms: %w", err)
	}

	for z := s.cfg.startZoom(); z <= s.cfg.MaxScanZoom; z++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.scanZoom(ctx, z); err != nil {
			if errors.Is(err, errCriticalStop) {
				s.cfg.log().Error("scanner stopped: critical error", "source", s.cfg.Source, "zoom", z)
				return err
			}
			if errors.Is(err, errZoomAborted) {
				s.cfg.log().Warn("scanner: zoom aborted after exhausting retries", "source", s.cfg.Source, "zoom", z)
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("scanner: zoom %d: %w", z, err)
		}
	}
	return nil
}

// resetStaleZooms implements spec.md §4.5's startup reset rule: zooms
// left in error/critical_error/source_unavailable go back to waiting,
// and completed zooms whose counts fell below expected are reopened.
func (s *Scanner) resetStaleZooms() error {
	all, err := s.store.AllScanProgress(s.cfg.Source)
	if err != nil {
		return err
	}
	for _, p := range all {
		switch p.Status {
		case store.ScanError, store.ScanCriticalError, store.ScanSourceUnavailable:
			p.Status = store.ScanWaiting
			if err := s.store.UpsertScanProgress(p); err != nil {
				return err
			}
		case store.ScanCompleted:
			expected := tile.TileCount(s.cfg.Bounds, p.Zoom, p.Zoom)
			tiles, _ := s.store.CountTiles(p.Zoom)
			misses, _ := s.store.CountMisses(p.Zoom)
			if int(tiles+misses) < expected {
				p.Status = store.ScanWaiting
				if err := s.store.UpsertScanProgress(p); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *Scanner) scanZoom(ctx context.Context, z int) error {
	progress, err := s.store.GetScanProgress(s.cfg.Source, z)
	if err != nil {
		return err
	}
	if progress.Status == store.ScanCompleted {
		return nil
	}

	minX, maxX, minY, maxY := tile.ZoomXYBounds(s.cfg.Bounds, z)
	startX, startY := minX, minY
	if progress.LastX > 0 || progress.LastY > 0 {
		startX, startY = uint32(progress.LastX), uint32(progress.LastY)
	}

	today := time.Now().UTC().Format("2006-01-02")
	if progress.LastScanDate != today {
		progress.TilesToday = 0
		progress.LastScanDate = today
	}
	progress.Status = store.ScanActive
	if err := s.store.UpsertScanProgress(progress); err != nil {
		return err
	}

	processed := 0
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			if x < startX || (x == startX && y < startY) {
				continue
			}

			select {
			case <-ctx.Done():
				progress.Status = store.ScanStopped
				progress.LastX, progress.LastY = int(x), int(y)
				_ = s.store.UpsertScanProgress(progress)
				return ctx.Err()
			default:
			}

			class, perr := s.processTile(ctx, z, int(x), int(y))
			if perr != nil {
				progress.Status = classStatus(class)
				progress.LastX, progress.LastY = int(x), int(y)
				_ = s.store.UpsertScanProgress(progress)
				return perr
			}
			if class == ClassSuccess {
				progress.TilesToday++
			}

			processed++
			if processed%10 == 0 {
				progress.LastX, progress.LastY = int(x), int(y)
				progress.Status = store.ScanActive
				if err := s.store.UpsertScanProgress(progress); err != nil {
					return err
				}
			}
		}
	}

	return s.finishZoom(z, progress)
}

func (s *Scanner) finishZoom(z int, progress store.ScanProgress) error {
	expected := tile.TileCount(s.cfg.Bounds, z, z)
	tiles, err := s.store.CountTiles(z)
	if err != nil {
		return err
	}
	misses, err := s.store.CountMisses(z)
	if err != nil {
		return err
	}

	progress.LastX, progress.LastY = 0, 0
	if int(tiles+misses) >= expected {
		progress.Status = store.ScanCompleted
	} else {
		progress.Status = store.ScanWaiting
	}
	return s.store.UpsertScanProgress(progress)
}

func classStatus(class Class) store.ScanStatus {
	if class == ClassCritical {
		return store.ScanCriticalError
	}
	return store.ScanSourceUnavailable
}

// processTile fetches one tile, retrying transient failures with
// exponential backoff (spec.md §4.5: base 2.5^(attempt-2)s, capped 4h,
// ±20% jitter, up to cfg.MaxRetries retries after the first attempt).
func (s *Scanner) processTile(ctx context.Context, z, x, yXYZ int) (Class, error) {
	attempt := 0
	for {
		outcome, err := s.engine.ScanFetch(ctx, z, x, yXYZ)
		if err != nil {
			return "", err
		}
		if outcome.Skipped {
			return ClassSuccess, nil
		}
		if outcome.Success {
			if err := s.pace(ctx); err != nil {
				return "", err
			}
			return ClassSuccess, nil
		}

		class := Classify(outcome.Status, outcome.NetErr)
		switch class {
		case ClassCritical:
			return class, errCriticalStop
		case ClassPermanent:
			if outcome.Reason == "" {
				// ScanFetch only records a miss itself when it classifies the
				// failure (Reason set); a bare upstream status code needs it
				// recorded here instead.
				s.engine.RecordMiss(z, x, yXYZ, "http_error", "", outcome.Status)
			}
			return class, nil
		case ClassTransient:
			if outcome.Status == 429 {
				s.cfg.log().Warn("scanner: upstream rate limited, daily_limit may be too high",
					"source", s.cfg.Source, "daily_limit", s.cfg.DailyLimit)
			}
			attempt++
			if attempt > s.cfg.MaxRetries {
				return class, errZoomAborted
			}
			if err := s.sleepBackoff(ctx, attempt); err != nil {
				return "", err
			}
		default:
			return class, nil
		}
	}
}

func (s *Scanner) sleepBackoff(ctx context.Context, attempt int) error {
	base := math.Pow(s.cfg.RetryBaseSecs, float64(attempt-2))
	delay := time.Duration(base * float64(time.Second))
	if delay > s.cfg.RetryCap {
		delay = s.cfg.RetryCap
	}
	delay = jitter(delay)

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pace enforces the daily-budget target interval after every success,
// re-jittering the limiter's rate by ±20% each time per spec.md §4.5.
func (s *Scanner) pace(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	interval := jitter(time.Duration(86400.0 / float64(s.cfg.DailyLimit) * float64(time.Second)))
	s.limiter.SetLimit(rate.Limit(float64(time.Second) / float64(interval)))
	return nil
}

func jitter(d time.Duration) time.Duration {
	factor := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(d) * factor)
}
