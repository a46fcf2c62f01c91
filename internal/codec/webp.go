package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/gen2brain/webp"
)

// WebPConfig controls lossless/lossy WebP encoding, mirroring spec.md
// §6's webp_config (lossless, effort, quality).
type WebPConfig struct {
	Lossless bool
	Effort   int     // 0..9, only meaningful when Lossless
	Quality  float32 // 0..100, only meaningful when !Lossless
}

// DecodePNG decodes PNG bytes into an image.Image.
func DecodePNG(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("codec: png decode: %w", err)
	}
	return img, nil
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("codec: png encode: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWebP decodes WebP bytes into an image.Image using the pure-Go
// (purego/wazero, no CGo) gen2brain/webp codec.
func DecodeWebP(data []byte) (image.Image, error) {
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("codec: webp decode: %w", err)
	}
	return img, nil
}

// EncodeWebP encodes img as WebP bytes per cfg.
func EncodeWebP(img image.Image, cfg WebPConfig) ([]byte, error) {
	var buf bytes.Buffer

	opts := webp.Options{Lossless: cfg.Lossless}
	if cfg.Lossless {
		opts.Method = clampEffort(cfg.Effort)
	} else {
		opts.Quality = clampQuality(cfg.Quality)
	}

	if err := webp.Encode(&buf, img, opts); err != nil {
		return nil, fmt.Errorf("codec: webp encode: %w", err)
	}
	return buf.Bytes(), nil
}

// PNGToWebP converts a PNG payload to WebP.
func PNGToWebP(pngData []byte, cfg WebPConfig) ([]byte, error) {
	img, err := DecodePNG(pngData)
	if err != nil {
		return nil, err
	}
	return EncodeWebP(img, cfg)
}

// WebPToPNG converts a WebP payload to PNG, used by the transcoding
// pipeline's "round-trip through PNG for the codec" step.
func WebPToPNG(webpData []byte) ([]byte, error) {
	img, err := DecodeWebP(webpData)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

func clampEffort(e int) int {
	if e < 0 {
		return 0
	}
	if e > 9 {
		return 9
	}
	return e
}

func clampQuality(q float32) float32 {
	if q <= 0 {
		return 75
	}
	if q > 100 {
		return 100
	}
	return q
}
