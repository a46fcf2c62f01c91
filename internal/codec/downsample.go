package codec

import (
	"image"
	"image/color"
	"math"
)

// Method selects how a 2:1 terrain downsample step combines each 2x2
// source block into one output pixel.
type Method string

const (
	MethodAverage Method = "average"
	MethodNearest Method = "nearest"
	MethodMaximum Method = "maximum"
)

// TerrainDownsample reduces src (a terrain-encoded RGB tile) to outSize
// by repeated 2:1 steps. outSize must be a power of two no larger than
// 1024 and must evenly divide src's width; otherwise src is returned
// unchanged, per spec.
func TerrainDownsample(src image.Image, outSize int, enc Encoding, method Method) image.Image {
	srcW := src.Bounds().Dx()

	if outSize <= 0 || outSize > 1024 || !isPowerOfTwo(outSize) || srcW%outSize != 0 {
		return src
	}

	ratio := srcW / outSize
	if !isPowerOfTwo(ratio) {
		return src
	}

	cur := toRGBA(src)
	for cur.Bounds().Dx() > outSize {
		cur = terrainDownsampleStep(cur, enc, method)
	}
	return cur
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x-b.Min.X, y-b.Min.Y, src.At(x, y))
		}
	}
	return dst
}

// terrainDownsampleStep halves src's dimensions, decoding each 2x2
// block under enc and re-encoding the combined elevation, except for
// nearest which copies the top-left source pixel verbatim (no
// decode/re-encode round trip), as spec.md §4.2 requires.
func terrainDownsampleStep(src *image.RGBA, enc Encoding, method Method) *image.RGBA {
	srcSize := src.Bounds().Dx()
	outSize := srcSize / 2
	dst := image.NewRGBA(image.Rect(0, 0, outSize, outSize))

	for dy := 0; dy < outSize; dy++ {
		for dx := 0; dx < outSize; dx++ {
			sx, sy := dx*2, dy*2

			if method == MethodNearest {
				dst.SetRGBA(dx, dy, srcPixel(src, sx, sy, srcSize))
				continue
			}

			p00 := srcPixel(src, sx, sy, srcSize)
			p10 := srcPixel(src, sx+1, sy, srcSize)
			p01 := srcPixel(src, sx, sy+1, srcSize)
			p11 := srcPixel(src, sx+1, sy+1, srcSize)

			dst.SetRGBA(dx, dy, combineElevations(enc, method, p00, p10, p01, p11))
		}
	}
	return dst
}

func combineElevations(enc Encoding, method Method, pixels ...color.RGBA) color.RGBA {
	var sum float64
	var max float64
	var count int
	for _, p := range pixels {
		e := DecodeElevation(enc, p)
		if math.IsNaN(e) {
			continue
		}
		sum += e
		if count == 0 || e > max {
			max = e
		}
		count++
	}

	if count == 0 {
		return color.RGBA{} // all nodata, leave transparent
	}

	switch method {
	case MethodMaximum:
		return EncodeElevation(enc, max)
	default: // average
		return EncodeElevation(enc, sum/float64(count))
	}
}

// srcPixel reads a pixel from src, clamping coordinates to [0, size-1].
func srcPixel(src *image.RGBA, x, y, size int) color.RGBA {
	if x >= size {
		x = size - 1
	}
	if y >= size {
		y = size - 1
	}
	return src.RGBAAt(x, y)
}
