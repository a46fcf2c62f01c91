package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"
)

// LERC (Limited Error Raster Compression) decode is a narrow adapter
// boundary: spec.md §1 treats the native LERC codec's implementation as
// an external collaborator and specifies only its contract. LERCRaster,
// LERCDecoder and referenceLERCDecoder below provide that contract plus
// a minimal pure-Go reference decoder for the single-band float case,
// enough to exercise the engine's transcoding pipeline and its tests.
// A production deployment may supply a cgo-backed LERCDecoder instead.

// ErrLERCNotFloat is returned when the blob's declared pixel type is not
// float, which spec.md §4.2 requires rejecting outright.
var ErrLERCNotFloat = errors.New("codec: lerc blob is not single-band float")

// ErrLERCEmpty is the "empty-tile" sentinel for a blob that decodes
// successfully but reports zero valid pixels — distinct from a decoder
// error so the caller can map it to the arcgis_nodata miss reason
// instead of lerc_decode_error.
var ErrLERCEmpty = errors.New("codec: lerc blob has no valid pixels")

// LERCRaster is a decoded single-band elevation raster. Values is
// row-major; NaN marks a nodata pixel.
type LERCRaster struct {
	Width, Height int
	Values        []float64
}

// ValidCount returns the number of non-NaN pixels.
func (r *LERCRaster) ValidCount() int {
	n := 0
	for _, v := range r.Values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// LERCDecoder decodes an opaque LERC blob into a single-band elevation
// raster.
type LERCDecoder interface {
	Decode(blob []byte) (*LERCRaster, error)
}

// referenceLERCDecoder implements a small, documented raw format used
// only by this module's own writers/tests to exercise the pipeline
// contract; it is not a full implementation of the real LERC bitstream.
// Layout: 5-byte magic "LERC1", 1 type byte (0=float32), big-endian
// uint32 width, height, then width*height float32 values (NaN = nodata).
type referenceLERCDecoder struct{}

// NewReferenceDecoder returns the in-repo reference LERCDecoder.
func NewReferenceDecoder() LERCDecoder { return referenceLERCDecoder{} }

var lercMagic = []byte("LERC1")

func (referenceLERCDecoder) Decode(blob []byte) (*LERCRaster, error) {
	if len(blob) < len(lercMagic)+1+8 {
		return nil, fmt.Errorf("codec: lerc blob too short")
	}
	if !bytes.Equal(blob[:len(lercMagic)], lercMagic) {
		return nil, fmt.Errorf("codec: lerc blob missing magic header")
	}

	r := bytes.NewReader(blob[len(lercMagic):])

	var dataType uint8
	if err := binary.Read(r, binary.BigEndian, &dataType); err != nil {
		return nil, fmt.Errorf("codec: lerc read type: %w", err)
	}
	if dataType != 0 {
		return nil, ErrLERCNotFloat
	}

	var width, height uint32
	if err := binary.Read(r, binary.BigEndian, &width); err != nil {
		return nil, fmt.Errorf("codec: lerc read width: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &height); err != nil {
		return nil, fmt.Errorf("codec: lerc read height: %w", err)
	}

	values := make([]float64, int(width)*int(height))
	for i := range values {
		var v float32
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return nil, fmt.Errorf("codec: lerc read pixel %d: %w", i, err)
		}
		values[i] = float64(v)
	}

	raster := &LERCRaster{Width: int(width), Height: int(height), Values: values}
	if raster.ValidCount() == 0 {
		return nil, ErrLERCEmpty
	}
	return raster, nil
}

// EncodeReferenceLERC produces a blob referenceLERCDecoder can decode,
// used by tests to manufacture fixtures without a real LERC encoder.
func EncodeReferenceLERC(width, height int, values []float64) []byte {
	buf := &bytes.Buffer{}
	buf.Write(lercMagic)
	binary.Write(buf, binary.BigEndian, uint8(0)) //nolint:errcheck
	binary.Write(buf, binary.BigEndian, uint32(width))  //nolint:errcheck
	binary.Write(buf, binary.BigEndian, uint32(height)) //nolint:errcheck
	for _, v := range values {
		binary.Write(buf, binary.BigEndian, float32(v)) //nolint:errcheck
	}
	return buf.Bytes()
}

// LERCToTerrainPNG decodes a LERC blob and re-encodes it as a 256x256
// Mapbox Terrain-RGB PNG, per spec.md §4.2. A 257x257 input (the ArcGIS
// overlap pixel) is cropped to its top-left 256x256 before encoding.
func LERCToTerrainPNG(dec LERCDecoder, blob []byte) ([]byte, error) {
	raster, err := dec.Decode(blob)
	if err != nil {
		return nil, err
	}

	const size = 256
	w, h := raster.Width, raster.Height
	if w == size+1 && h == size+1 {
		raster = cropTopLeft(raster, size, size)
		w, h = size, size
	}
	if w != size || h != size {
		return nil, fmt.Errorf("codec: lerc raster is %dx%d, expected %dx%d (or %dx%d)", w, h, size, size, size+1, size+1)
	}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			elev := raster.Values[y*w+x]
			img.SetRGBA(x, y, EncodeElevation(EncodingMapbox, elev))
		}
	}

	return EncodePNG(img)
}

func cropTopLeft(r *LERCRaster, w, h int) *LERCRaster {
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		copy(out[y*w:(y+1)*w], r.Values[y*r.Width:y*r.Width+w])
	}
	return &LERCRaster{Width: w, Height: h, Values: out}
}
