package codec

import (
	"image"
	"image/color"
	"testing"
)

func solidImage(size int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestPNGEncodeDecodeRoundTrip(t *testing.T) {
	src := solidImage(16, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	data, err := EncodePNG(src)
	if err != nil {
		t.Fatalf("encode png: %v", err)
	}
	img, err := DecodePNG(data)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds() != src.Bounds() {
		t.Errorf("bounds = %v, want %v", img.Bounds(), src.Bounds())
	}
}

func TestWebPLosslessRoundTrip(t *testing.T) {
	src := solidImage(16, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	data, err := EncodeWebP(src, WebPConfig{Lossless: true, Effort: 4})
	if err != nil {
		t.Fatalf("encode webp: %v", err)
	}
	img, err := DecodeWebP(data)
	if err != nil {
		t.Fatalf("decode webp: %v", err)
	}
	if img.Bounds() != src.Bounds() {
		t.Errorf("bounds = %v, want %v", img.Bounds(), src.Bounds())
	}
}

func TestPNGToWebPAndBack(t *testing.T) {
	src := solidImage(8, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	pngData, err := EncodePNG(src)
	if err != nil {
		t.Fatalf("encode png: %v", err)
	}

	webpData, err := PNGToWebP(pngData, WebPConfig{Lossless: true})
	if err != nil {
		t.Fatalf("png to webp: %v", err)
	}

	back, err := WebPToPNG(webpData)
	if err != nil {
		t.Fatalf("webp to png: %v", err)
	}
	if len(back) == 0 {
		t.Errorf("expected non-empty png output")
	}
}
