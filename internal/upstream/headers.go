package upstream

import "net/http"

// defaultHeaders mimics a browser fetching a tile image, matching
// spec.md §4.3's required default set.
var defaultHeaders = map[string]string{
	"Accept":          "image/webp,image/apng,image/*,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Accept-Encoding": "gzip, deflate, br",
	"DNT":             "1",
	"Connection":      "keep-alive",
	"Sec-Fetch-Dest":  "image",
	"Sec-Fetch-Mode":  "no-cors",
	"Sec-Fetch-Site":  "cross-site",
	"Cache-Control":   "no-cache",
	"Pragma":          "no-cache",
}

// strippedHeaders are never forwarded from the inbound client request
// to the upstream source.
var strippedHeaders = map[string]bool{
	"Host":              true,
	"Connection":        true,
	"Proxy-Connection":  true,
	"Content-Length":    true,
	"If-None-Match":     true,
	"If-Modified-Since": true,
}

// MergeHeaders layers spec.md §4.3's three header tiers: browser-like
// defaults, overridden by per-source configured request headers,
// overridden by the inbound client's pass-through headers (minus the
// hop-by-hop and conditional-request headers in strippedHeaders).
func MergeHeaders(sourceHeaders map[string]string, passthrough http.Header) map[string]string {
	merged := make(map[string]string, len(defaultHeaders)+len(sourceHeaders))
	for k, v := range defaultHeaders {
		merged[k] = v
	}
	for k, v := range sourceHeaders {
		merged[k] = v
	}
	for k, values := range passthrough {
		if strippedHeaders[http.CanonicalHeaderKey(k)] || len(values) == 0 {
			continue
		}
		merged[k] = values[0]
	}
	return merged
}
