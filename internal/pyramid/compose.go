package pyramid

import (
	"bytes"
	"fmt"
	"image"

	"github.com/MeKo-Tech/tilecache/internal/codec"
	"github.com/MeKo-Tech/tilecache/internal/store"
)

// childCoords returns a parent's four children in TMS-row space, in the
// TL/TR/BL/BR order codec.Combine2x2 expects. TMS rows grow northward,
// so the top (northern) children sit at row 2*tmsRow+1.
func childCoords(x, tmsRow int) [4][2]int {
	cx, ctms := x*2, tmsRow*2
	return [4][2]int{
		{cx, ctms + 1},     // TL
		{cx + 1, ctms + 1}, // TR
		{cx, ctms},         // BL
		{cx + 1, ctms},     // BR
	}
}

// compose builds the parent tile at (z, x, tmsRow) from its four
// children. ok is false when every child is missing or undecodable, in
// which case the caller should leave the candidate/miss alone.
func (r *Reconstructor) compose(z, x, tmsRow int) (ok bool, body []byte, err error) {
	coords := childCoords(x, tmsRow)

	var children [4]image.Image
	any := false
	for i, c := range coords {
		t, gerr := r.store.GetTile(z+1, c[0], c[1])
		if gerr == store.ErrNotFound || (gerr == nil && len(t.Data) == 0) {
			continue
		}
		if gerr != nil {
			return false, nil, fmt.Errorf("get child %d/%d/%d: %w", z+1, c[0], c[1], gerr)
		}
		img, derr := decodeStoredImage(t.Data)
		if derr != nil {
			continue // undecodable child treated as missing
		}
		children[i] = img
		any = true
	}
	if !any {
		return false, nil, nil
	}

	canvas := codec.Combine2x2(children, r.cfg.TileSize)
	if canvas == nil {
		return false, nil, nil
	}

	var result image.Image
	if r.cfg.TerrainEncoding != "" {
		result = codec.TerrainDownsample(canvas, r.cfg.TileSize, r.cfg.TerrainEncoding, r.cfg.terrainMethod())
	} else {
		resized, rerr := codec.Resize(canvas, r.cfg.TileSize, r.cfg.TileSize, r.cfg.RasterMethod)
		if rerr != nil {
			return false, nil, fmt.Errorf("resize: %w", rerr)
		}
		result = resized
	}

	png, err := codec.EncodePNG(result)
	if err != nil {
		return false, nil, fmt.Errorf("encode png: %w", err)
	}
	if r.cfg.OutputFormat != "webp" {
		return true, png, nil
	}

	webp, err := codec.PNGToWebP(png, codec.WebPConfig{
		Lossless: r.cfg.WebPLossless,
		Effort:   r.cfg.WebPEffort,
		Quality:  r.cfg.WebPQuality,
	})
	if err != nil {
		return false, nil, fmt.Errorf("encode webp: %w", err)
	}
	return true, webp, nil
}

var pngMagic = []byte{0x89, 'P', 'N', 'G'}
var riffMagic = []byte("RIFF")

// decodeStoredImage sniffs a stored tile's container format since the
// store keeps raw bytes without a separate content-type column.
func decodeStoredImage(data []byte) (image.Image, error) {
	if bytes.HasPrefix(data, pngMagic) {
		return codec.DecodePNG(data)
	}
	if bytes.HasPrefix(data, riffMagic) {
		return codec.DecodeWebP(data)
	}
	return codec.DecodePNG(data)
}
