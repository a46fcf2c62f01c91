package source

import (
	"net/url"
	"strconv"
	"strings"
)

// renderTarget substitutes {z} {x} {y} in a source's target template and
// appends query_params, producing the upstream URL for one tile.
// yXYZ is the XYZ-convention row (north-up); spec.md §6's target
// templates are always expressed in XYZ, never TMS.
func renderTarget(target string, queryParams map[string]string, z, x, yXYZ int) string {
	path := target
	path = strings.ReplaceAll(path, "{z}", strconv.Itoa(z))
	path = strings.ReplaceAll(path, "{x}", strconv.Itoa(x))
	path = strings.ReplaceAll(path, "{y}", strconv.Itoa(yXYZ))

	if len(queryParams) == 0 {
		return path
	}

	q := url.Values{}
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		existing, _ := url.ParseQuery(path[idx+1:])
		for k, vs := range existing {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		path = path[:idx]
	}
	for k, v := range queryParams {
		q.Set(k, v)
	}
	return path + "?" + q.Encode()
}
