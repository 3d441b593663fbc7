package model

import "time"

// StatsSnapshot is an immutable copy of the pipeline counters.
type StatsSnapshot struct {
	TotalFrames    uint64
	IntervalFrames uint64
	FPS            float64
	LastDetected   int
	LastTracked    int
	DroppedFrames  uint64
	FailedFrames   uint64
	StartedAt      time.Time
}

// Uptime returns the time elapsed since the collector started.
func (s StatsSnapshot) Uptime(now time.Time) time.Duration {
	return now.Sub(s.StartedAt)
}
