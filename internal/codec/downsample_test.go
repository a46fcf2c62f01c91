package codec

import (
	"image"
	"math"
	"testing"
)

func uniformTerrainImage(size int, enc Encoding, elev float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	c := EncodeElevation(enc, elev)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestTerrainDownsampleUniformAverage(t *testing.T) {
	const elev = 500.0
	src := uniformTerrainImage(512, EncodingMapbox, elev)

	out := TerrainDownsample(src, 256, EncodingMapbox, MethodAverage)
	if out.Bounds().Dx() != 256 || out.Bounds().Dy() != 256 {
		t.Fatalf("output size = %v, want 256x256", out.Bounds())
	}

	rgba := out.(*image.RGBA)
	got := DecodeElevation(EncodingMapbox, rgba.RGBAAt(10, 10))
	if math.Abs(got-elev) > 0.1 {
		t.Errorf("average of uniform tile: got %v, want %v ±0.1", got, elev)
	}
}

func TestTerrainDownsampleInvalidSizeReturnsUnchanged(t *testing.T) {
	src := uniformTerrainImage(300, EncodingMapbox, 10)
	out := TerrainDownsample(src, 256, EncodingMapbox, MethodAverage)
	if out.Bounds().Dx() != 300 {
		t.Errorf("expected unchanged input when size constraints fail, got width %d", out.Bounds().Dx())
	}
}

func TestTerrainDownsampleMaximum(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.SetRGBA(0, 0, EncodeElevation(EncodingMapbox, 10))
	src.SetRGBA(1, 0, EncodeElevation(EncodingMapbox, 50))
	src.SetRGBA(0, 1, EncodeElevation(EncodingMapbox, 20))
	src.SetRGBA(1, 1, EncodeElevation(EncodingMapbox, 5))

	out := terrainDownsampleStep(src, EncodingMapbox, MethodMaximum)
	got := DecodeElevation(EncodingMapbox, out.RGBAAt(0, 0))
	if math.Abs(got-50) > 0.1 {
		t.Errorf("maximum of 2x2 block: got %v, want 50", got)
	}
}

func TestTerrainDownsampleNearestCopiesVerbatim(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	tl := EncodeElevation(EncodingMapbox, 10)
	src.SetRGBA(0, 0, tl)
	src.SetRGBA(1, 0, EncodeElevation(EncodingMapbox, 999))
	src.SetRGBA(0, 1, EncodeElevation(EncodingMapbox, 999))
	src.SetRGBA(1, 1, EncodeElevation(EncodingMapbox, 999))

	out := terrainDownsampleStep(src, EncodingMapbox, MethodNearest)
	if out.RGBAAt(0, 0) != tl {
		t.Errorf("nearest should copy top-left pixel verbatim, got %+v want %+v", out.RGBAAt(0, 0), tl)
	}
}

func TestCombine2x2PlacesQuadrants(t *testing.T) {
	mk := func(v float64) *image.RGBA { return uniformTerrainImage(4, EncodingMapbox, v) }
	children := [4]image.Image{mk(1), mk(2), mk(3), mk(4)}

	canvas := Combine2x2(children, 4)
	if canvas.Bounds().Dx() != 8 || canvas.Bounds().Dy() != 8 {
		t.Fatalf("canvas size = %v, want 8x8", canvas.Bounds())
	}

	tl := DecodeElevation(EncodingMapbox, canvas.RGBAAt(0, 0))
	tr := DecodeElevation(EncodingMapbox, canvas.RGBAAt(4, 0))
	bl := DecodeElevation(EncodingMapbox, canvas.RGBAAt(0, 4))
	br := DecodeElevation(EncodingMapbox, canvas.RGBAAt(4, 4))

	if tl != 1 || tr != 2 || bl != 3 || br != 4 {
		t.Errorf("quadrant placement wrong: TL=%v TR=%v BL=%v BR=%v", tl, tr, bl, br)
	}
}

func TestCombine2x2AllMissingReturnsNil(t *testing.T) {
	canvas := Combine2x2([4]image.Image{nil, nil, nil, nil}, 4)
	if canvas != nil {
		t.Errorf("expected nil canvas when all children missing")
	}
}
