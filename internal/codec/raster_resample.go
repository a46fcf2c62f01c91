package codec

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/gift"
)

// RasterMethod selects the resampling kernel the reconstructor uses to
// halve a combined 2x2 canvas into a parent tile for non-terrain
// (plain raster) sources.
type RasterMethod string

const (
	RasterNearest  RasterMethod = "nearest"
	RasterLinear   RasterMethod = "linear"
	RasterCubic    RasterMethod = "cubic"
	RasterMitchell RasterMethod = "mitchell"
	RasterLanczos2 RasterMethod = "lanczos2"
	RasterLanczos3 RasterMethod = "lanczos3"
)

// mitchellResampling implements the Mitchell-Netravali cubic filter
// (B=C=1/3), gift's own kernel shape but a filter gift doesn't ship.
type mitchellResampling struct{}

func (mitchellResampling) Support() float32 { return 2 }

func (mitchellResampling) Kernel(x float32) float32 {
	const b, c = 1.0 / 3.0, 1.0 / 3.0
	x = float32(math.Abs(float64(x)))

	if x < 1 {
		return float32((((12-9*b-6*c)*x*x*x + (-18+12*b+6*c)*x*x + (6 - 2*b)) / 6))
	}
	if x < 2 {
		return float32((((-b-6*c)*x*x*x + (6*b+30*c)*x*x + (-12*b-48*c)*x + (8*b + 24*c)) / 6))
	}
	return 0
}

// lanczos2Resampling implements a 2-lobe Lanczos filter; gift ships a
// 3-lobe LanczosResampling but no 2-lobe variant.
type lanczos2Resampling struct{}

func (lanczos2Resampling) Support() float32 { return 2 }

func (lanczos2Resampling) Kernel(x float32) float32 {
	return lanczosKernel(x, 2)
}

func lanczosKernel(x float32, a float64) float32 {
	xf := float64(x)
	if xf == 0 {
		return 1
	}
	if xf < 0 {
		xf = -xf
	}
	if xf >= a {
		return 0
	}
	piX := math.Pi * xf
	return float32((a * math.Sin(piX) * math.Sin(piX/a)) / (piX * piX))
}

func resamplingFor(method RasterMethod) (gift.Resampling, error) {
	switch method {
	case RasterNearest:
		return gift.NearestNeighborResampling, nil
	case RasterLinear:
		return gift.LinearResampling, nil
	case RasterCubic:
		return gift.CubicResampling, nil
	case RasterMitchell:
		return mitchellResampling{}, nil
	case RasterLanczos2:
		return lanczos2Resampling{}, nil
	case RasterLanczos3:
		return gift.LanczosResampling, nil
	default:
		return nil, fmt.Errorf("codec: unknown raster resampling method %q", method)
	}
}

// Resize scales src to width x height using the given kernel, following
// the teacher's gift.New(...).Draw(dst, src) idiom (internal/mask's
// GaussianBlur does the same for its own gift filter).
func Resize(src image.Image, width, height int, method RasterMethod) (image.Image, error) {
	resampling, err := resamplingFor(method)
	if err != nil {
		return nil, err
	}

	g := gift.New(gift.Resize(width, height, resampling))
	dst := image.NewRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst, nil
}
