package dto

// Health is the body of GET /health.
type Health struct {
	Status               string        `json:"status"`
	UptimeSeconds        float64       `json:"uptime_seconds"`
	ProcessingFPS        float64       `json:"processing_fps"`
	LastDetectedObjects  int           `json:"last_detected_objects"`
	LastTrackedObjects   int           `json:"last_tracked_objects"`
	TotalFramesProcessed uint64        `json:"total_frames_processed"`
	ActiveConnections    int           `json:"active_connections"`
	DroppedFrames        uint64        `json:"dropped_frames"`
	FailedFrames         uint64        `json:"failed_frames"`
	InFlight             int           `json:"in_flight"`
	Workers              int           `json:"workers"`
	ComputeDevice        string        `json:"compute_device"`
	Alerts               AlertCounters `json:"alerts"`
}

type AlertCounters struct {
	Scheduled uint64 `json:"scheduled"`
	Sent      uint64 `json:"sent"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}
