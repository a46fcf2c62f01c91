package server

import (
	"net/http"
	"strings"

	"github.com/MeKo-Tech/tilecache/internal/source"
)

// tileSuffix is the trailing coordinate segment every source's
// "path" carries (spec.md §6: "GET /{source.path}/:z/:x/:y"); the
// style.json for a source is served at the path with this trimmed off.
const tileSuffix = "/:z/:x/:y"

// New builds the full HTTP surface: each source's tile and style
// routes (registered at its configured path, spec.md §6) plus the
// shared dashboard, stats, admin, and reconstructor routes. Mirrors
// the teacher's serve.go mux assembly, generalized to N sources.
func New(sources map[string]*source.Source) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("GET /{$}", withCORS(dashboardHandler(sources)))
	mux.Handle("GET /api/stats", withCORS(statsHandler(sources)))
	mux.Handle("GET /admin/vacuum", withCORS(vacuumHandler(sources)))
	mux.Handle("GET /api/reconstructor/{source}/status", withCORS(reconstructorStatusHandler(sources)))
	mux.Handle("POST /api/reconstructor/{source}/start", withCORS(reconstructorStartHandler(sources)))

	for name, src := range sources {
		stylePath := strings.TrimSuffix(src.Cfg.Path, tileSuffix)
		tilePattern := toMuxPattern(src.Cfg.Path)

		mux.Handle("GET "+tilePattern, withCORS(tileHandler(src)))
		mux.Handle("GET "+stylePath, withCORS(styleHandler(name, src, src.Cfg.Path)))
	}

	return mux
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
