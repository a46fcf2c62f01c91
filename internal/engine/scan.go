package engine

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/tilecache/internal/store"
	"github.com/MeKo-Tech/tilecache/internal/tile"
)

// ScanOutcome is the result of one scanner-driven fetch attempt. The
// scanner classifies Status/NetErr into success/permanent/transient/
// critical per spec.md §4.5; the engine only composes C3/C2/C1 and
// reports what happened.
type ScanOutcome struct {
	Skipped bool // already present as a Tile or a fresh Miss
	Success bool
	Status  int // upstream HTTP status, or 0 on network error
	NetErr  error
	Reason  string // transcoding miss reason, if any
}

// ScanFetch drives C3 (upstream fetch), C2 (transcode) and C1 (store)
// for a single tile outside the on-demand request path: no
// single-flight (the scanner is a single sequential walker per source),
// and tiles/fresh misses already present are skipped to conserve quota.
func (e *Engine) ScanFetch(ctx context.Context, z, x, yXYZ int) (ScanOutcome, error) {
	tmsRow := int(tile.Coords{Z: uint32(z), X: uint32(x), Y: uint32(yXYZ)}.TMSRow())

	if _, err := e.store.GetTile(z, x, tmsRow); err == nil {
		return ScanOutcome{Skipped: true}, nil
	} else if err != store.ErrNotFound {
		return ScanOutcome{}, fmt.Errorf("engine: scan get tile: %w", err)
	}

	if neg, err := e.checkMiss(z, x, tmsRow); err != nil {
		return ScanOutcome{}, err
	} else if neg {
		return ScanOutcome{Skipped: true}, nil
	}

	url := e.cfg.UpstreamPath(z, x, yXYZ)
	resp, err := e.client.Get(ctx, url, nil)
	if err != nil {
		return ScanOutcome{NetErr: err}, nil
	}

	if resp.Status >= 400 {
		return ScanOutcome{Status: resp.Status}, nil
	}

	contentType := resp.Headers.Get("Content-Type")
	body, _, reason, detail := e.decodeAndTranscode(contentType, resp.Body)
	if reason != "" {
		e.recordMiss(z, x, tmsRow, reason, detail, resp.Status, resp.Body)
		return ScanOutcome{Status: resp.Status, Reason: reason}, nil
	}

	if err := e.store.PutTile(z, x, tmsRow, body, store.GeneratedOrigin); err != nil {
		return ScanOutcome{}, fmt.Errorf("engine: scan put tile: %w", err)
	}
	if e.notifier != nil {
		e.notifier.NotifyChildIngress(z, x, tmsRow)
	}
	e.totalRendered.Add(1)
	return ScanOutcome{Success: true, Status: resp.Status}, nil
}

// RecordMiss lets the scanner persist a negative-cache entry for
// outcomes it classifies as permanent (status-only, no transcoding
// reason available).
func (e *Engine) RecordMiss(z, x, yXYZ int, reason, detail string, status int) {
	tmsRow := int(tile.Coords{Z: uint32(z), X: uint32(x), Y: uint32(yXYZ)}.TMSRow())
	e.recordMiss(z, x, tmsRow, reason, detail, status, nil)
}
