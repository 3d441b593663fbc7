package model

import "time"

// StoredAlert is an alert persisted by the alerts API.
type StoredAlert struct {
	ID         int64
	UID        string
	Timestamp  time.Time
	TrackID    string
	BBox       [4]float64
	Confidence float64
	ClassID    int
	SourceInfo string
	ReceivedAt time.Time
}

// AlertStats summarizes stored alerts.
type AlertStats struct {
	Tracks    int
	Alerts    int
	LastAlert *time.Time
}
