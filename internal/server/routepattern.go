package server

import (
	"regexp"
)

var expressParam = regexp.MustCompile(`:(\w+)`)

// toMuxPattern translates an Express-style path template
// ("/basemap/:z/:x/:y") into the net/http.ServeMux pattern syntax
// ("/basemap/{z}/{x}/{y}") introduced in Go 1.22, so each source's
// configured path can be registered directly without a hand-rolled
// router.
func toMuxPattern(path string) string {
	return expressParam.ReplaceAllString(path, "{$1}")
}
