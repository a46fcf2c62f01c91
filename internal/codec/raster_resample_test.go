package codec

import (
	"image"
	"image/color"
	"testing"
)

func TestResizeAllMethods(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			src.SetRGBA(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}

	for _, method := range []RasterMethod{RasterNearest, RasterLinear, RasterCubic, RasterMitchell, RasterLanczos2, RasterLanczos3} {
		out, err := Resize(src, 4, 4, method)
		if err != nil {
			t.Fatalf("resize with %s: %v", method, err)
		}
		if out.Bounds().Dx() != 4 || out.Bounds().Dy() != 4 {
			t.Errorf("%s: output size = %v, want 4x4", method, out.Bounds())
		}
	}
}

func TestResizeUnknownMethod(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if _, err := Resize(src, 2, 2, "bogus"); err == nil {
		t.Fatalf("expected error for unknown method")
	}
}
