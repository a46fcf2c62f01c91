package engine

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MeKo-Tech/tilecache/internal/store"
	"github.com/MeKo-Tech/tilecache/internal/tile"
	"github.com/MeKo-Tech/tilecache/internal/upstream"
)

// ChildNotifier receives child-ingress events so the reconstructor (C6)
// can mark the parent as a regeneration candidate without polling.
type ChildNotifier interface {
	NotifyChildIngress(z, x, tmsRow int)
}

// Result is what Serve returns; the server package renders it to HTTP.
type Result struct {
	Status       int
	CacheStatus  CacheStatus
	ContentType  string
	Body         []byte
	CacheControl string
}

// Engine is one source's on-demand tile read path.
type Engine struct {
	store    *store.Store
	client   *upstream.Client
	notifier ChildNotifier
	cfg      Config
	sf       singleflight.Group

	activeRenders atomic.Int32
	totalRendered atomic.Int64
	totalFailed   atomic.Int64
	totalHits     atomic.Int64
}

// New builds an Engine for one source.
func New(st *store.Store, client *upstream.Client, notifier ChildNotifier, cfg Config) *Engine {
	if cfg.MissMaxRecords <= 0 {
		cfg.MissMaxRecords = store.DefaultMissMaxRecords
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "image/png"
	}
	return &Engine{store: st, client: client, notifier: notifier, cfg: cfg}
}

// Status is a snapshot of in-flight and lifetime render counters,
// generalized from the teacher's ondemand_tiles.go atomic counters.
type Status struct {
	ActiveRenders int32
	TotalRendered int64
	TotalFailed   int64
	TotalHits     int64
}

func (e *Engine) Status() Status {
	return Status{
		ActiveRenders: e.activeRenders.Load(),
		TotalRendered: e.totalRendered.Load(),
		TotalFailed:   e.totalFailed.Load(),
		TotalHits:     e.totalHits.Load(),
	}
}

// Serve implements spec.md §4.4's algorithm for a single tile request.
func (e *Engine) Serve(ctx context.Context, z, x, yXYZ int, debug bool) (*Result, error) {
	tmsRow := int(tile.Coords{Z: uint32(z), X: uint32(x), Y: uint32(yXYZ)}.TMSRow())

	// Step 1: store lookup.
	if t, err := e.store.GetTile(z, x, tmsRow); err == nil {
		e.totalHits.Add(1)
		return e.hitResult(t), nil
	} else if err != store.ErrNotFound {
		return nil, fmt.Errorf("engine: get tile: %w", err)
	}

	// Step 2: real-minzoom short circuit.
	if e.cfg.RealMinZoom != nil && z < *e.cfg.RealMinZoom {
		return e.negativeResult(debug), nil
	}

	// Step 3: negative cache.
	if neg, err := e.checkMiss(z, x, tmsRow); err != nil {
		return nil, err
	} else if neg {
		return e.negativeResult(debug), nil
	}

	// Step 4: single-flight per (z, x, yXYZ).
	key := fmt.Sprintf("%d/%d/%d", z, x, yXYZ)
	v, err, _ := e.sf.Do(key, func() (interface{}, error) {
		// Double-checked: another waiter may have populated the tile
		// or miss while we queued for the singleflight slot.
		if t, gerr := e.store.GetTile(z, x, tmsRow); gerr == nil {
			return e.hitResult(t), nil
		} else if gerr != store.ErrNotFound {
			return nil, fmt.Errorf("engine: recheck tile: %w", gerr)
		}
		if neg, merr := e.checkMiss(z, x, tmsRow); merr != nil {
			return nil, merr
		} else if neg {
			return e.negativeResult(debug), nil
		}
		return e.fetchAndStore(ctx, z, x, yXYZ, tmsRow, debug)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (e *Engine) checkMiss(z, x, tmsRow int) (bool, error) {
	m, err := e.store.GetMiss(z, x, tmsRow)
	if err == store.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("engine: get miss: %w", err)
	}

	fresh := time.Now().Add(-e.cfg.MissTimeout).Unix() < m.TS
	if fresh {
		return true, nil
	}
	if err := e.store.DeleteMiss(z, x, tmsRow); err != nil {
		return false, fmt.Errorf("engine: delete stale miss: %w", err)
	}
	return false, nil
}

// fetchAndStore is steps 5-8: fetch from upstream, transcode, persist,
// notify the reconstructor, respond MISS.
func (e *Engine) fetchAndStore(ctx context.Context, z, x, yXYZ, tmsRow int, debug bool) (*Result, error) {
	e.activeRenders.Add(1)
	defer e.activeRenders.Add(-1)

	url := e.cfg.UpstreamPath(z, x, yXYZ)
	resp, err := e.client.Get(ctx, url, nil)
	if err != nil {
		e.recordMiss(z, x, tmsRow, ReasonFetchError, err.Error(), 0, nil)
		e.totalFailed.Add(1)
		return e.negativeResult(debug), nil
	}

	if resp.Status >= 400 {
		e.recordMiss(z, x, tmsRow, ReasonHTTPError, "", resp.Status, resp.Body)
		e.totalFailed.Add(1)
		return e.negativeResult(debug), nil
	}

	contentType := resp.Headers.Get("Content-Type")

	body, outCT, reason, detail := e.decodeAndTranscode(contentType, resp.Body)
	if reason != "" {
		e.recordMiss(z, x, tmsRow, reason, detail, resp.Status, resp.Body)
		e.totalFailed.Add(1)
		return e.negativeResult(debug), nil
	}

	if err := e.store.PutTile(z, x, tmsRow, body, store.GeneratedOrigin); err != nil {
		return nil, fmt.Errorf("engine: put tile: %w", err)
	}
	if e.notifier != nil {
		e.notifier.NotifyChildIngress(z, x, tmsRow)
	}

	e.totalRendered.Add(1)
	return &Result{
		Status:       http.StatusOK,
		CacheStatus:  CacheMISS,
		ContentType:  outCT,
		Body:         body,
		CacheControl: e.cacheControl(e.cfg.MissMaxAge),
	}, nil
}

func (e *Engine) recordMiss(z, x, tmsRow int, reason, detail string, status int, body []byte) {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	m := store.Miss{
		Z: z, X: x, TMSRow: tmsRow,
		TS: time.Now().Unix(), Reason: reason, Details: detail,
		Status: status, ResponseBody: body,
	}
	if err := e.store.RecordMiss(m, e.cfg.MissMaxRecords); err != nil {
		e.cfg.log().Error("record miss failed", "source", e.cfg.Source, "z", z, "x", x, "tms", tmsRow, "err", err)
	}
}

func (e *Engine) hitResult(t *store.Tile) *Result {
	status := CacheGEN
	switch t.Generated {
	case store.GeneratedOrigin:
		status = CacheHIT
	case store.GeneratedReconstructed:
		status = CacheGEN
	case store.GeneratedCandidate:
		status = CacheREGEN
	}
	return &Result{
		Status:       http.StatusOK,
		CacheStatus:  status,
		ContentType:  e.cfg.ContentType,
		Body:         t.Data,
		CacheControl: e.cacheControl(e.cfg.HitMaxAge),
	}
}

func (e *Engine) negativeResult(debug bool) *Result {
	if debug && len(e.cfg.ErrorTile) > 0 {
		return &Result{
			Status:       http.StatusOK,
			CacheStatus:  CacheERROR,
			ContentType:  e.cfg.ErrorTileCT,
			Body:         e.cfg.ErrorTile,
			CacheControl: "no-store",
		}
	}
	return &Result{
		Status:       http.StatusNoContent,
		CacheStatus:  CacheERROR,
		CacheControl: "no-store",
	}
}

func (e *Engine) cacheControl(maxAge time.Duration) string {
	return "public, max-age=" + strconv.Itoa(int(maxAge.Seconds()))
}

func isHTML(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}

func isImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}
