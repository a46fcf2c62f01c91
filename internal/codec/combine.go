package codec

import (
	"image"
)

// Combine2x2 places four child tiles, in the fixed [TL, TR, BL, BR] XYZ
// order, into a 2*tileSize x 2*tileSize canvas: TL top-left, TR
// top-right, BL bottom-left, BR bottom-right. Missing (nil) children are
// left fully transparent. Returns nil ("no data") if all four are nil —
// the reconstructor's skip-this-parent case.
func Combine2x2(children [4]image.Image, tileSize int) *image.RGBA {
	present := 0
	for _, c := range children {
		if c != nil {
			present++
		}
	}
	if present == 0 {
		return nil
	}

	canvas := image.NewRGBA(image.Rect(0, 0, tileSize*2, tileSize*2))

	offsets := [4]image.Point{
		{X: 0, Y: 0},               // TL
		{X: tileSize, Y: 0},        // TR
		{X: 0, Y: tileSize},        // BL
		{X: tileSize, Y: tileSize}, // BR
	}

	for i, child := range children {
		if child == nil {
			continue
		}
		off := offsets[i]
		b := child.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				canvas.Set(off.X+(x-b.Min.X), off.Y+(y-b.Min.Y), child.At(x, y))
			}
		}
	}

	return canvas
}
