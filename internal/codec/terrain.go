// Package codec implements the LERC, terrain-encoding, downsample,
// combine, and PNG/WebP transcoding primitives used by the engine and
// the pyramid reconstructor. All operations here are pure functions
// over byte buffers and in-memory images.
package codec

import (
	"image/color"
	"math"
)

// Encoding selects the elevation-to-RGB mapping a terrain tile uses.
type Encoding string

const (
	EncodingMapbox    Encoding = "mapbox"
	EncodingTerrarium Encoding = "terrarium"
)

// EncodeElevation maps an elevation in meters to the RGBA pixel that
// represents it under enc. Unknown encodings return a fully transparent
// pixel, treated as nodata by downstream decoders.
func EncodeElevation(enc Encoding, elevation float64) color.RGBA {
	switch enc {
	case EncodingMapbox:
		return encodeMapbox(elevation)
	case EncodingTerrarium:
		return encodeTerrarium(elevation)
	default:
		return color.RGBA{}
	}
}

// DecodeElevation maps an RGBA pixel back to elevation in meters under
// enc. Returns NaN for a fully transparent (nodata) pixel.
func DecodeElevation(enc Encoding, c color.RGBA) float64 {
	switch enc {
	case EncodingMapbox:
		return decodeMapbox(c)
	case EncodingTerrarium:
		return decodeTerrarium(c)
	default:
		return math.NaN()
	}
}

// encodeMapbox implements the GLOSSARY formula:
// code = clamp(round((elev + 10000) / 0.1), 0, 2^24-1)
// R=code>>16, G=(code>>8)&0xFF, B=code&0xFF.
func encodeMapbox(elevation float64) color.RGBA {
	if math.IsNaN(elevation) || math.IsInf(elevation, 0) {
		return color.RGBA{}
	}

	const maxCode = (1 << 24) - 1
	code := math.Round((elevation + 10000) / 0.1)
	if code < 0 {
		code = 0
	}
	if code > maxCode {
		code = maxCode
	}

	ic := uint32(code)
	return color.RGBA{
		R: uint8(ic >> 16),
		G: uint8((ic >> 8) & 0xFF),
		B: uint8(ic & 0xFF),
		A: 255,
	}
}

// decodeMapbox inverts encodeMapbox: elev = -10000 + (R*65536+G*256+B)*0.1.
func decodeMapbox(c color.RGBA) float64 {
	if c.A == 0 {
		return math.NaN()
	}
	code := float64(c.R)*65536 + float64(c.G)*256 + float64(c.B)
	return -10000 + code*0.1
}

// encodeTerrarium implements h = (R*256 + G + B/256) - 32768, inverted:
// value = elev + 32768, R = floor(value/256), G = floor(remainder),
// B = floor((remainder-G)*256).
func encodeTerrarium(elevation float64) color.RGBA {
	if math.IsNaN(elevation) || math.IsInf(elevation, 0) {
		return color.RGBA{}
	}

	value := elevation + 32768.0
	if value < 0 {
		value = 0
	}
	if value > 65535.996 {
		value = 65535.996
	}

	rVal := int(value / 256)
	if rVal > 255 {
		rVal = 255
	}
	remainder := value - float64(rVal)*256.0
	gVal := int(remainder)
	if gVal > 255 {
		gVal = 255
	}
	bVal := int((remainder - float64(gVal)) * 256.0)
	if bVal > 255 {
		bVal = 255
	}

	return color.RGBA{R: uint8(rVal), G: uint8(gVal), B: uint8(bVal), A: 255}
}

// decodeTerrarium inverts encodeTerrarium.
func decodeTerrarium(c color.RGBA) float64 {
	if c.A == 0 {
		return math.NaN()
	}
	return float64(c.R)*256.0 + float64(c.G) + float64(c.B)/256.0 - 32768.0
}
