package server

import (
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/MeKo-Tech/tilecache/internal/source"
)

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head><title>tilecache</title></head>
<body>
<h1>tilecache</h1>
<table border="1" cellpadding="6">
<tr><th>source</th><th>path</th><th>zoom</th><th>format</th><th>style</th></tr>
{{range .}}
<tr>
<td>{{.Name}}</td>
<td>{{.Path}}</td>
<td>{{.MinZoom}}-{{.MaxZoom}}</td>
<td>{{.Format}}</td>
<td><a href="{{.StylePath}}">style.json</a></td>
</tr>
{{end}}
</table>
<p><a href="/api/stats">stats</a></p>
</body>
</html>
`))

type dashboardRow struct {
	Name      string
	Path      string
	StylePath string
	MinZoom   int
	MaxZoom   int
	Format    string
}

// dashboardHandler implements `GET /`, spec.md §6: an HTML page
// listing every configured source and its style.json link.
func dashboardHandler(sources map[string]*source.Source) http.HandlerFunc {
	rows := make([]dashboardRow, 0, len(sources))
	for name, src := range sources {
		rows = append(rows, dashboardRow{
			Name:      name,
			Path:      src.Cfg.Path,
			StylePath: strings.TrimSuffix(src.Cfg.Path, tileSuffix),
			MinZoom:   src.Cfg.MinZoom,
			MaxZoom:   src.Cfg.MaxZoom,
			Format:    src.Cfg.Metadata.Format,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := dashboardTemplate.Execute(w, rows); err != nil {
			slog.Default().Error("render dashboard failed", "err", err)
		}
	}
}
