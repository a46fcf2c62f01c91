package server

import (
	"encoding/json"
	"net/http"

	"github.com/MeKo-Tech/tilecache/internal/source"
)

type vacuumResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// vacuumHandler implements `GET /admin/vacuum`: runs VACUUM across
// every configured source and reports the first failure, if any.
func vacuumHandler(sources map[string]*source.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		for name, src := range sources {
			if err := src.Store.Vacuum(); err != nil {
				src.Log().Error("vacuum failed", "source", name, "err", err)
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(vacuumResponse{
					Status:  "error",
					Message: "vacuum failed for source " + name + ": " + err.Error(),
				})
				return
			}
		}

		_ = json.NewEncoder(w).Encode(vacuumResponse{
			Status:  "ok",
			Message: "vacuum completed for all sources",
		})
	}
}
