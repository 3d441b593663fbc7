package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"analytics/internal/dto"
	"analytics/internal/logger"
	"analytics/internal/model"
)

// HealthSources are the components /health reads from.
type HealthSources struct {
	Stats interface {
		Snapshot() model.StatsSnapshot
	}
	Viewers  ViewerCounter
	InFlight interface {
		InFlight() int
	}
	Alerts interface {
		Counters() dto.AlertCounters
	}
	Workers       int
	ComputeDevice string
}

// HealthHandler reports liveness and pipeline counters as JSON.
func HealthHandler(src HealthSources, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		snap := src.Stats.Snapshot()
		health := dto.Health{
			Status:               "ok",
			UptimeSeconds:        snap.Uptime(time.Now()).Seconds(),
			ProcessingFPS:        snap.FPS,
			LastDetectedObjects:  snap.LastDetected,
			LastTrackedObjects:   snap.LastTracked,
			TotalFramesProcessed: snap.TotalFrames,
			ActiveConnections:    src.Viewers.GetClientCount(),
			DroppedFrames:        snap.DroppedFrames,
			FailedFrames:         snap.FailedFrames,
			Workers:              src.Workers,
			ComputeDevice:        src.ComputeDevice,
		}
		if src.InFlight != nil {
			health.InFlight = src.InFlight.InFlight()
		}
		if src.Alerts != nil {
			health.Alerts = src.Alerts.Counters()
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(health); err != nil {
			logger.Error("Failed to write health response: %v", err)
		}
	}
}
