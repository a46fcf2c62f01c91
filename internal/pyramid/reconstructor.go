package pyramid

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/tilecache/internal/store"
)

// Reconstructor fills and refreshes one source's parent pyramid levels.
// It implements engine.ChildNotifier so C4 and C5 can both feed it
// child-ingress events without importing this package.
type Reconstructor struct {
	store *store.Store
	cfg   Config

	running atomic.Bool
	lastRun atomic.Value // string, UTC date of last completed pass
}

// New builds a Reconstructor for one source.
func New(st *store.Store, cfg Config) *Reconstructor {
	if cfg.TileSize <= 0 {
		cfg.TileSize = 256
	}
	r := &Reconstructor{store: st, cfg: cfg}
	r.lastRun.Store("")
	return r
}

// NotifyChildIngress implements engine.ChildNotifier: a tile just wrote
// at (z, x, tmsRow); mark its parent as a regeneration candidate.
func (r *Reconstructor) NotifyChildIngress(z, x, tmsRow int) {
	if z == 0 {
		return
	}
	if err := r.markCandidate(z-1, x/2, tmsRow/2); err != nil {
		r.cfg.log().Error("pyramid: mark candidate failed", "source", r.cfg.Source, "err", err)
	}
}

// markCandidate implements spec.md §4.6's promotion rule: insert a
// placeholder if the parent is absent, promote 1→2 if present as a
// reconstructed tile, and leave origin (0) or an existing candidate (2)
// unchanged.
func (r *Reconstructor) markCandidate(z, x, tmsRow int) error {
	t, err := r.store.GetTile(z, x, tmsRow)
	if err == store.ErrNotFound {
		return r.store.PutTile(z, x, tmsRow, []byte{}, store.GeneratedCandidate)
	}
	if err != nil {
		return fmt.Errorf("pyramid: get parent %d/%d/%d: %w", z, x, tmsRow, err)
	}
	if t.Generated == store.GeneratedReconstructed {
		return r.store.SetGenerated(z, x, tmsRow, store.GeneratedCandidate)
	}
	return nil
}

// Status reports whether a pass is currently running and the UTC date
// of the last completed scheduled pass, for the admin status endpoint.
func (r *Reconstructor) Status() (running bool, lastRunDate string) {
	return r.running.Load(), r.lastRun.Load().(string)
}

// ScheduleHourMinute parses the configured "HH:MM" schedule time for
// the admin status endpoint. Returns -1, -1 if unset or malformed.
func (r *Reconstructor) ScheduleHourMinute() (hour, minute int) {
	t, err := time.Parse("15:04", r.cfg.ScheduleTime)
	if err != nil {
		return -1, -1
	}
	return t.Hour(), t.Minute()
}

// TryStartAsync launches a pass in the background if one isn't already
// running, for the admin-triggered `/api/reconstructor/:source/start`
// endpoint. Returns false if a pass is already in flight (spec.md §6:
// 409 in that case); RunPass's own compare-and-swap is the actual
// guard, so a benign race here just means both callers see "started".
func (r *Reconstructor) TryStartAsync(ctx context.Context) bool {
	if r.running.Load() {
		return false
	}
	go func() {
		if err := r.RunPass(ctx); err != nil {
			r.cfg.log().Error("pyramid: admin-triggered pass failed", "source", r.cfg.Source, "err", err)
		}
	}()
	return true
}

// Run starts the once-a-minute schedule check; it blocks until ctx is
// cancelled.
func (r *Reconstructor) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.maybeRunPass(ctx)
		}
	}
}

func (r *Reconstructor) maybeRunPass(ctx context.Context) {
	now := time.Now().UTC()
	if now.Format("15:04") != r.cfg.ScheduleTime {
		return
	}
	today := now.Format("2006-01-02")
	if r.lastRun.Load().(string) == today {
		return
	}
	if err := r.RunPass(ctx); err != nil {
		r.cfg.log().Error("pyramid: scheduled pass failed", "source", r.cfg.Source, "err", err)
		return
	}
	r.lastRun.Store(today)
}

// RunPass walks zooms maxzoom-1 down to minzoom, performing the three
// phases spec.md §4.6 describes in order at each zoom. It is safe to
// re-enter after a crash since candidates/misses are persisted rows.
func (r *Reconstructor) RunPass(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return nil // already running
	}
	defer r.running.Store(false)

	for z := r.cfg.MaxZoom - 1; z >= r.cfg.MinZoom; z-- {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := r.regenerateCandidates(z); err != nil {
			return fmt.Errorf("pyramid: regenerate candidates z=%d: %w", z, err)
		}
		if err := r.convertMisses(z); err != nil {
			return fmt.Errorf("pyramid: convert misses z=%d: %w", z, err)
		}
		if err := r.createPlaceholders(z); err != nil {
			return fmt.Errorf("pyramid: create placeholders z=%d: %w", z, err)
		}
	}
	return nil
}

func (r *Reconstructor) regenerateCandidates(z int) error {
	candidates, err := r.store.CandidatesAtZoom(z)
	if err != nil {
		return err
	}
	for _, c := range candidates {
		ok, body, err := r.compose(z, c.X, c.TMSRow)
		if err != nil {
			r.cfg.log().Warn("pyramid: compose failed", "source", r.cfg.Source, "z", z, "x", c.X, "tms", c.TMSRow, "err", err)
			continue
		}
		if !ok {
			continue
		}
		if err := r.store.PutTile(z, c.X, c.TMSRow, body, store.GeneratedReconstructed); err != nil {
			return err
		}
		r.NotifyChildIngress(z, c.X, c.TMSRow)
	}
	return nil
}

func (r *Reconstructor) convertMisses(z int) error {
	misses, err := r.store.MissesAtZoom(z)
	if err != nil {
		return err
	}
	for _, m := range misses {
		ok, body, err := r.compose(z, m.X, m.TMSRow)
		if err != nil {
			r.cfg.log().Warn("pyramid: compose from miss failed", "source", r.cfg.Source, "z", z, "x", m.X, "tms", m.TMSRow, "err", err)
			continue
		}
		if !ok {
			continue
		}
		if err := r.store.PutTile(z, m.X, m.TMSRow, body, store.GeneratedReconstructed); err != nil {
			return err
		}
		if err := r.store.DeleteMiss(z, m.X, m.TMSRow); err != nil {
			return err
		}
		r.NotifyChildIngress(z, m.X, m.TMSRow)
	}
	return nil
}

func (r *Reconstructor) createPlaceholders(childZoom int) error {
	parentZoom := childZoom - 1
	if parentZoom < r.cfg.MinZoom {
		return nil
	}
	keys, err := r.store.DistinctParentKeys(childZoom)
	if err != nil {
		return err
	}
	for _, k := range keys {
		px, ptms := k[0], k[1]
		if _, err := r.store.GetTile(parentZoom, px, ptms); err == store.ErrNotFound {
			if err := r.store.PutTile(parentZoom, px, ptms, []byte{}, store.GeneratedCandidate); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}
	return nil
}
