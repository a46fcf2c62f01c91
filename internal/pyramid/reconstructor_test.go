package pyramid

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/tilecache/internal/codec"
	"github.com/MeKo-Tech/tilecache/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(store.Config{Path: filepath.Join(dir, "pyr.mbtiles")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func solidPNG(t *testing.T, size int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	data, err := codec.EncodePNG(img)
	if err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return data
}

func TestNotifyChildIngressInsertsPlaceholder(t *testing.T) {
	st := openTestStore(t)
	r := New(st, Config{Source: "t", MinZoom: 0, MaxZoom: 10, TileSize: 4})

	r.NotifyChildIngress(5, 10, 10) // parent at (4, 5, 5)

	parent, err := st.GetTile(4, 5, 5)
	if err != nil {
		t.Fatalf("get parent: %v", err)
	}
	if parent.Generated != store.GeneratedCandidate {
		t.Errorf("generated = %v, want candidate", parent.Generated)
	}
}

func TestNotifyChildIngressPromotesReconstructed(t *testing.T) {
	st := openTestStore(t)
	r := New(st, Config{Source: "t", MinZoom: 0, MaxZoom: 10, TileSize: 4})

	if err := st.PutTile(4, 5, 5, []byte("parent-bytes"), store.GeneratedReconstructed); err != nil {
		t.Fatalf("seed parent: %v", err)
	}

	r.NotifyChildIngress(5, 10, 10)

	parent, err := st.GetTile(4, 5, 5)
	if err != nil {
		t.Fatalf("get parent: %v", err)
	}
	if parent.Generated != store.GeneratedCandidate {
		t.Errorf("generated = %v, want promoted to candidate", parent.Generated)
	}
}

func TestNotifyChildIngressLeavesOriginUnchanged(t *testing.T) {
	st := openTestStore(t)
	r := New(st, Config{Source: "t", MinZoom: 0, MaxZoom: 10, TileSize: 4})

	if err := st.PutTile(4, 5, 5, []byte("origin-bytes"), store.GeneratedOrigin); err != nil {
		t.Fatalf("seed parent: %v", err)
	}

	r.NotifyChildIngress(5, 10, 10)

	parent, err := st.GetTile(4, 5, 5)
	if err != nil {
		t.Fatalf("get parent: %v", err)
	}
	if parent.Generated != store.GeneratedOrigin {
		t.Errorf("generated = %v, want unchanged origin", parent.Generated)
	}
}

func TestRegenerateCandidatesComposesFromChildren(t *testing.T) {
	st := openTestStore(t)
	r := New(st, Config{Source: "t", MinZoom: 0, MaxZoom: 2, TileSize: 4, RasterMethod: codec.RasterNearest})

	red := solidPNG(t, 4, color.RGBA{R: 255, A: 255})
	for _, c := range [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		if err := st.PutTile(1, c[0], c[1], red, store.GeneratedOrigin); err != nil {
			t.Fatalf("seed child: %v", err)
		}
	}
	if err := st.PutTile(0, 0, 0, []byte{}, store.GeneratedCandidate); err != nil {
		t.Fatalf("seed candidate: %v", err)
	}

	if err := r.regenerateCandidates(0); err != nil {
		t.Fatalf("regenerate candidates: %v", err)
	}

	parent, err := st.GetTile(0, 0, 0)
	if err != nil {
		t.Fatalf("get parent: %v", err)
	}
	if parent.Generated != store.GeneratedReconstructed {
		t.Errorf("generated = %v, want reconstructed", parent.Generated)
	}
	if len(parent.Data) == 0 {
		t.Errorf("expected non-empty composed tile data")
	}
}

func TestConvertMissesComposesAndDeletesMiss(t *testing.T) {
	st := openTestStore(t)
	r := New(st, Config{Source: "t", MinZoom: 0, MaxZoom: 2, TileSize: 4, RasterMethod: codec.RasterNearest})

	blue := solidPNG(t, 4, color.RGBA{B: 255, A: 255})
	if err := st.PutTile(1, 0, 0, blue, store.GeneratedOrigin); err != nil {
		t.Fatalf("seed child: %v", err)
	}
	if err := st.RecordMiss(store.Miss{Z: 0, X: 0, TMSRow: 0, Reason: "http_error", Status: 404}, 100); err != nil {
		t.Fatalf("seed miss: %v", err)
	}

	if err := r.convertMisses(0); err != nil {
		t.Fatalf("convert misses: %v", err)
	}

	if _, err := st.GetMiss(0, 0, 0); err != store.ErrNotFound {
		t.Errorf("miss should have been deleted after conversion")
	}
	parent, err := st.GetTile(0, 0, 0)
	if err != nil {
		t.Fatalf("get parent: %v", err)
	}
	if parent.Generated != store.GeneratedReconstructed {
		t.Errorf("generated = %v, want reconstructed", parent.Generated)
	}
}

func TestRegenerateCandidatesSkipsWhenAllChildrenMissing(t *testing.T) {
	st := openTestStore(t)
	r := New(st, Config{Source: "t", MinZoom: 0, MaxZoom: 2, TileSize: 4})

	if err := st.PutTile(0, 0, 0, []byte{}, store.GeneratedCandidate); err != nil {
		t.Fatalf("seed candidate: %v", err)
	}

	if err := r.regenerateCandidates(0); err != nil {
		t.Fatalf("regenerate candidates: %v", err)
	}

	parent, err := st.GetTile(0, 0, 0)
	if err != nil {
		t.Fatalf("get parent: %v", err)
	}
	if parent.Generated != store.GeneratedCandidate {
		t.Errorf("generated = %v, want left as candidate when no children exist", parent.Generated)
	}
}

func TestCreatePlaceholdersForAbsentParent(t *testing.T) {
	st := openTestStore(t)
	r := New(st, Config{Source: "t", MinZoom: 0, MaxZoom: 2, TileSize: 4})

	if err := st.PutTile(1, 4, 4, []byte("child"), store.GeneratedOrigin); err != nil {
		t.Fatalf("seed child: %v", err)
	}

	if err := r.createPlaceholders(1); err != nil {
		t.Fatalf("create placeholders: %v", err)
	}

	parent, err := st.GetTile(0, 2, 2)
	if err != nil {
		t.Fatalf("get parent: %v", err)
	}
	if parent.Generated != store.GeneratedCandidate {
		t.Errorf("generated = %v, want candidate placeholder", parent.Generated)
	}
}

func TestRunPassIdempotent(t *testing.T) {
	st := openTestStore(t)
	r := New(st, Config{Source: "t", MinZoom: 0, MaxZoom: 2, TileSize: 4, RasterMethod: codec.RasterNearest})

	green := solidPNG(t, 4, color.RGBA{G: 255, A: 255})
	for _, c := range [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		if err := st.PutTile(1, c[0], c[1], green, store.GeneratedOrigin); err != nil {
			t.Fatalf("seed child: %v", err)
		}
	}

	ctx := context.Background()
	if err := r.RunPass(ctx); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if err := r.RunPass(ctx); err != nil {
		t.Fatalf("second pass: %v", err)
	}
}
