package codec

import (
	"math"
	"testing"
)

func TestReferenceLERCRoundTrip(t *testing.T) {
	values := make([]float64, 256*256)
	for i := range values {
		values[i] = 123.4
	}
	blob := EncodeReferenceLERC(256, 256, values)

	dec := NewReferenceDecoder()
	raster, err := dec.Decode(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if raster.Width != 256 || raster.Height != 256 {
		t.Fatalf("size = %dx%d, want 256x256", raster.Width, raster.Height)
	}
	if math.Abs(raster.Values[0]-123.4) > 0.01 {
		t.Errorf("value = %v, want ~123.4", raster.Values[0])
	}
}

func TestReferenceLERCRejectsBadMagic(t *testing.T) {
	dec := NewReferenceDecoder()
	if _, err := dec.Decode([]byte("not a lerc blob at all")); err == nil {
		t.Fatalf("expected error for bad magic")
	}
}

func TestReferenceLERCEmptySentinel(t *testing.T) {
	values := make([]float64, 4)
	for i := range values {
		values[i] = math.NaN()
	}
	blob := EncodeReferenceLERC(2, 2, values)

	dec := NewReferenceDecoder()
	_, err := dec.Decode(blob)
	if err != ErrLERCEmpty {
		t.Fatalf("expected ErrLERCEmpty, got %v", err)
	}
}

func TestLERCToTerrainPNGCropsOverlapPixel(t *testing.T) {
	values := make([]float64, 257*257)
	for i := range values {
		values[i] = 500
	}
	blob := EncodeReferenceLERC(257, 257, values)

	png, err := LERCToTerrainPNG(NewReferenceDecoder(), blob)
	if err != nil {
		t.Fatalf("lerc to terrain png: %v", err)
	}

	img, err := DecodePNG(png)
	if err != nil {
		t.Fatalf("decode resulting png: %v", err)
	}
	if img.Bounds().Dx() != 256 || img.Bounds().Dy() != 256 {
		t.Errorf("output size = %v, want 256x256", img.Bounds())
	}
}
