// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	// FramesAdmitted counts frames accepted by the dispatcher
	FramesAdmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_frames_admitted_total",
			Help: "Frames admitted into the processing pipeline",
		},
	)

	// FramesDropped counts frames refused under backpressure
	FramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_frames_dropped_total",
			Help: "Frames dropped because the in-flight limit was reached",
		},
	)

	// FramesFailed counts frames aborted by a decode or capability failure
	FramesFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_frames_failed_total",
			Help: "Frames aborted during decode, detection, tracking or rendering",
		},
	)

	FramesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analytics_frames_in_flight",
			Help: "Frames admitted and not yet reaped",
		},
	)

	// FrameProcessingDuration tracks worker time per frame in seconds
	FrameProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analytics_frame_processing_seconds",
			Help:    "Time spent processing one frame in a worker",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	ProcessingFPS = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analytics_processing_fps",
			Help: "Processing rate computed at the last window boundary",
		},
	)

	LastDetectedObjects = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analytics_last_detected_objects",
			Help: "Detections in the most recently completed frame",
		},
	)

	LastTrackedObjects = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analytics_last_tracked_objects",
			Help: "Tracks in the most recently completed frame",
		},
	)
)

// Viewer metrics
var (
	ViewersConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analytics_viewers_connected",
			Help: "Websocket viewers currently connected",
		},
	)

	// ViewersRefused counts upgrades closed with 1008 at capacity
	ViewersRefused = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_viewers_refused_total",
			Help: "Viewer connections refused because the limit was reached",
		},
	)
)

// Alert metrics
var (
	// AlertsTotal counts alerts by outcome (scheduled/sent/failed/dropped)
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_alerts_total",
			Help: "Alerts by outcome",
		},
		[]string{"result"},
	)

	// AlertSendDuration tracks primary sink latency in seconds
	AlertSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analytics_alert_send_seconds",
			Help:    "Alert delivery duration to the primary sink",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2},
		},
	)
)
