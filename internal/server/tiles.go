package server

import (
	"net/http"
	"strconv"

	"github.com/MeKo-Tech/tilecache/internal/source"
)

// tileHandler serves one source's tile route, matching spec.md §6's
// `GET /{source.path}/:z/:x/:y`. Response headers/status/body are
// whatever the engine computed; this handler is a thin HTTP adapter,
// grounded on the teacher's mbtiles_handler.go's serveTile shape.
func tileHandler(src *source.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		z, err := strconv.Atoi(r.PathValue("z"))
		if err != nil {
			http.Error(w, "invalid z", http.StatusBadRequest)
			return
		}
		x, err := strconv.Atoi(r.PathValue("x"))
		if err != nil {
			http.Error(w, "invalid x", http.StatusBadRequest)
			return
		}
		y, err := strconv.Atoi(r.PathValue("y"))
		if err != nil {
			http.Error(w, "invalid y", http.StatusBadRequest)
			return
		}
		debug := r.URL.Query().Get("debug") == "true"

		res, err := src.Engine.Serve(r.Context(), z, x, y, debug)
		if err != nil {
			src.Log().Error("tile serve failed", "source", src.Name, "z", z, "x", x, "y", y, "err", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("X-Cache-Status", string(res.CacheStatus))
		w.Header().Set("Cache-Control", res.CacheControl)
		if res.ContentType != "" {
			w.Header().Set("Content-Type", res.ContentType)
		}
		w.WriteHeader(res.Status)
		if len(res.Body) > 0 {
			_, _ = w.Write(res.Body)
		}
	}
}
