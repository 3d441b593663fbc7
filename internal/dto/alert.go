package dto

// Alert is the JSON body posted to the alerts endpoint.
type Alert struct {
	Timestamp      float64    `json:"timestamp"`
	TrackID        string     `json:"track_id"`
	BBoxNormalized [4]float64 `json:"bbox_normalized"`
	Confidence     float64    `json:"confidence"`
	ClassID        int        `json:"class_id"`
	SourceInfo     string     `json:"source_info"`
}

// AlertCreated is returned by the alerts API after storing an alert.
type AlertCreated struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// StoredAlert is an alert as listed by the alerts API.
type StoredAlert struct {
	Alert
	ID       string `json:"id"`
	Datetime string `json:"datetime"`
}

type AlertList struct {
	Alerts []StoredAlert `json:"alerts"`
}

type AlertStats struct {
	Tracks    int     `json:"tracks"`
	Alerts    int     `json:"alerts"`
	LastAlert *string `json:"last_alert"`
}

type StreamInfo struct {
	AnalyticsStream string `json:"analytics_stream"`
	Status          string `json:"status"`
}
