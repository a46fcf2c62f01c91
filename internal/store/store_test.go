package store

import (
	"os"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.mbtiles")
	s, err := Open(Config{Path: dbPath})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.mbtiles")
	s, err := Open(Config{Path: dbPath})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file was not created")
	}

	for _, table := range []string{"tiles", "metadata", "misses", "scan_progress", "schema_info"} {
		var count int
		err := s.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("query schema for %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("expected table %q to exist", table)
		}
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.mbtiles")
	s1, err := Open(Config{Path: dbPath})
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s1.PutTile(5, 10, 11, []byte("AAAA"), GeneratedOrigin); err != nil {
		t.Fatalf("put tile: %v", err)
	}
	s1.Close()

	s2, err := Open(Config{Path: dbPath})
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()

	tile, err := s2.GetTile(5, 10, 11)
	if err != nil {
		t.Fatalf("get tile after reopen: %v", err)
	}
	if string(tile.Data) != "AAAA" {
		t.Errorf("tile data = %q, want AAAA", tile.Data)
	}
}

func TestPutGetTile(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetTile(5, 10, 11); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound before write, got %v", err)
	}

	if err := s.PutTile(5, 10, 11, []byte("hello"), GeneratedOrigin); err != nil {
		t.Fatalf("put tile: %v", err)
	}

	tile, err := s.GetTile(5, 10, 11)
	if err != nil {
		t.Fatalf("get tile: %v", err)
	}
	if string(tile.Data) != "hello" {
		t.Errorf("tile data = %q, want hello", tile.Data)
	}
	if tile.Generated != GeneratedOrigin {
		t.Errorf("generated = %d, want %d", tile.Generated, GeneratedOrigin)
	}
}

func TestPutTileClearsMiss(t *testing.T) {
	s := openTestStore(t)

	if err := s.RecordMiss(Miss{Z: 5, X: 10, TMSRow: 11, TS: 1, Reason: "http_error", Status: 404}, 0); err != nil {
		t.Fatalf("record miss: %v", err)
	}
	if _, err := s.GetMiss(5, 10, 11); err != nil {
		t.Fatalf("expected miss to exist: %v", err)
	}

	if err := s.PutTile(5, 10, 11, []byte("ok"), GeneratedOrigin); err != nil {
		t.Fatalf("put tile: %v", err)
	}

	if _, err := s.GetMiss(5, 10, 11); err != ErrNotFound {
		t.Errorf("expected miss to be cleared after tile write, got %v", err)
	}
}

func TestMissTrim(t *testing.T) {
	s := openTestStore(t)

	// maxRecords=10 keeps newest 80% == 8 after trimming once count > 10.
	for i := 0; i < 15; i++ {
		m := Miss{Z: 1, X: i, TMSRow: 0, TS: int64(i), Reason: "http_error", Status: 404}
		if err := s.RecordMiss(m, 10); err != nil {
			t.Fatalf("record miss %d: %v", i, err)
		}
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM misses").Scan(&count); err != nil {
		t.Fatalf("count misses: %v", err)
	}
	if count > 10 {
		t.Errorf("expected trim to keep misses <= 10, got %d", count)
	}

	// The most recent miss (highest ts) must have survived the trim.
	if _, err := s.GetMiss(1, 14, 0); err != nil {
		t.Errorf("expected most recent miss to survive trim: %v", err)
	}
}

func TestSetGeneratedRequiresExistingRow(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetGenerated(5, 10, 11, GeneratedCandidate); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.PutTile(5, 10, 11, nil, GeneratedCandidate); err != nil {
		t.Fatalf("put placeholder: %v", err)
	}
	if err := s.SetGenerated(5, 10, 11, GeneratedReconstructed); err != nil {
		t.Fatalf("set generated: %v", err)
	}

	tile, err := s.GetTile(5, 10, 11)
	if err != nil {
		t.Fatalf("get tile: %v", err)
	}
	if tile.Generated != GeneratedReconstructed {
		t.Errorf("generated = %d, want %d", tile.Generated, GeneratedReconstructed)
	}
}

func TestScanProgressUpsert(t *testing.T) {
	s := openTestStore(t)

	p, err := s.GetScanProgress("osm", 5)
	if err != nil {
		t.Fatalf("get scan progress: %v", err)
	}
	if p.Status != ScanWaiting {
		t.Errorf("default status = %q, want waiting", p.Status)
	}

	p.LastX, p.LastY, p.TilesToday, p.Status = 3, 4, 100, ScanActive
	p.LastScanDate = "2026-07-30"
	if err := s.UpsertScanProgress(p); err != nil {
		t.Fatalf("upsert scan progress: %v", err)
	}

	got, err := s.GetScanProgress("osm", 5)
	if err != nil {
		t.Fatalf("get scan progress after upsert: %v", err)
	}
	if got.LastX != 3 || got.LastY != 4 || got.TilesToday != 100 || got.Status != ScanActive {
		t.Errorf("got %+v, want LastX=3 LastY=4 TilesToday=100 Status=active", got)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	s := openTestStore(t)

	m := Metadata{
		Name: "test", Format: "png", MinZoom: 0, MaxZoom: 14,
		Bounds: [4]float64{-10, 40, 10, 60}, Center: [3]float64{0, 50, 5},
		Type: "baselayer", TileSize: 256, Encoding: "terrarium",
	}
	if err := s.PutMetadata(m); err != nil {
		t.Fatalf("put metadata: %v", err)
	}

	got, err := s.GetMetadata()
	if err != nil {
		t.Fatalf("get metadata: %v", err)
	}
	if got.Name != m.Name || got.Format != m.Format || got.Encoding != m.Encoding {
		t.Errorf("got %+v, want %+v", got, m)
	}
	if got.MinZoom != 0 || got.MaxZoom != 14 {
		t.Errorf("zoom range = [%d,%d], want [0,14]", got.MinZoom, got.MaxZoom)
	}
}

func TestPruneOutOfBounds(t *testing.T) {
	s := openTestStore(t)

	// Tile well within Europe bbox, and one far away.
	if err := s.PutTile(5, 16, 20, []byte("in"), GeneratedOrigin); err != nil {
		t.Fatalf("put in-bounds tile: %v", err)
	}
	if err := s.PutTile(5, 0, 0, []byte("out"), GeneratedOrigin); err != nil {
		t.Fatalf("put out-of-bounds tile: %v", err)
	}

	europe := [4]float64{-10, 35, 40, 70}
	deleted, err := s.PruneOutOfBounds(europe, 5, 5)
	if err != nil {
		t.Fatalf("prune out of bounds: %v", err)
	}
	if deleted == 0 {
		t.Errorf("expected at least one tile pruned")
	}
}

func TestChecksAndVacuum(t *testing.T) {
	s := openTestStore(t)

	if err := s.Checkpoint(CheckpointPassive); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if err := s.Vacuum(); err != nil {
		t.Fatalf("vacuum: %v", err)
	}
}
