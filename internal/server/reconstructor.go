package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/MeKo-Tech/tilecache/internal/source"
)

type scheduleTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

type reconstructorStatus struct {
	Running      bool         `json:"running"`
	LastRun      string       `json:"last_run"`
	ScheduleTime scheduleTime `json:"schedule_time"`
}

type reconstructorStartResponse struct {
	Success bool `json:"success"`
}

// reconstructorStatusHandler implements `GET /api/reconstructor/{source}/status`.
func reconstructorStatusHandler(sources map[string]*source.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		src, ok := sources[r.PathValue("source")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		running, lastRun := src.Pyramid.Status()
		hour, minute := src.Pyramid.ScheduleHourMinute()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reconstructorStatus{
			Running:      running,
			LastRun:      lastRun,
			ScheduleTime: scheduleTime{Hour: hour, Minute: minute},
		})
	}
}

// reconstructorStartHandler implements `POST /api/reconstructor/{source}/start`:
// 200 {success:true} if a pass was launched, 409 if one is already running.
func reconstructorStartHandler(sources map[string]*source.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		src, ok := sources[r.PathValue("source")]
		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if !src.Pyramid.TryStartAsync(context.Background()) {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(reconstructorStartResponse{Success: false})
			return
		}
		_ = json.NewEncoder(w).Encode(reconstructorStartResponse{Success: true})
	}
}
