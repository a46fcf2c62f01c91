package engine

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"

	"github.com/MeKo-Tech/tilecache/internal/codec"
)

const sourceFormatLERC = "lerc"

// decodeAndTranscode implements spec.md §4.4 steps 5-6: validate the
// upstream payload, run LERC decode for terrain sources, then apply the
// optional gzip-inflate / downsample / PNG-to-WebP pipeline. On failure
// it returns a non-empty miss reason instead of an error, since every
// transcoding failure in this path becomes an explicit miss record
// rather than a propagated error.
func (e *Engine) decodeAndTranscode(contentType string, body []byte) (out []byte, outContentType, reason, detail string) {
	if e.cfg.GzipInflate && looksGzipped(body) {
		inflated, err := gunzip(body)
		if err != nil {
			return nil, "", ReasonImageProcessingError, "gzip inflate: " + err.Error()
		}
		body = inflated
	}

	if e.cfg.SourceFormat == sourceFormatLERC {
		if isHTML(contentType) {
			return nil, "", ReasonArcgisHTMLError, "upstream returned HTML instead of LERC"
		}
		png, err := codec.LERCToTerrainPNG(e.cfg.LERCDecoder, body)
		if err != nil {
			if err == codec.ErrLERCEmpty {
				return nil, "", ReasonArcgisNodata, err.Error()
			}
			return nil, "", ReasonLERCDecodeError, err.Error()
		}
		body, contentType = png, "image/png"
	} else if !isImage(contentType) {
		return nil, "", ReasonInvalidContentType, "content-type: " + contentType
	}

	isWebP := strings.Contains(strings.ToLower(contentType), "webp")

	if e.cfg.Downsample.Enabled {
		png := body
		if isWebP {
			converted, err := codec.WebPToPNG(body)
			if err != nil {
				return nil, "", ReasonImageProcessingError, "webp to png: " + err.Error()
			}
			png = converted
		}

		img, err := codec.DecodePNG(png)
		if err != nil {
			return nil, "", ReasonImageProcessingError, "decode png: " + err.Error()
		}

		result := img
		if e.cfg.TerrainEncoding != "" {
			result = codec.TerrainDownsample(img, e.cfg.Downsample.TargetSize, e.cfg.TerrainEncoding, e.cfg.Downsample.TerrainMethod)
		} else {
			resizedImg, rerr := codec.Resize(img, e.cfg.Downsample.TargetSize, e.cfg.Downsample.TargetSize, e.cfg.Downsample.RasterMethod)
			if rerr != nil {
				return nil, "", ReasonImageProcessingError, "resize: " + rerr.Error()
			}
			result = resizedImg
		}

		encoded, err := codec.EncodePNG(result)
		if err != nil {
			return nil, "", ReasonImageProcessingError, "encode png: " + err.Error()
		}
		body, contentType = encoded, "image/png"
		isWebP = false
	}

	if e.cfg.WebPOutput.Enabled && !isWebP {
		webpData, err := codec.PNGToWebP(body, codec.WebPConfig{
			Lossless: e.cfg.WebPOutput.Lossless,
			Effort:   e.cfg.WebPOutput.Effort,
			Quality:  e.cfg.WebPOutput.Quality,
		})
		if err != nil {
			return nil, "", ReasonWebPConversionError, err.Error()
		}
		body, contentType = webpData, "image/webp"
	}

	return body, contentType, "", ""
}

func looksGzipped(b []byte) bool {
	return len(b) >= 2 && b[0] == 0x1f && b[1] == 0x8b
}

func gunzip(b []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
