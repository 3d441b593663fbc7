// Package pipeline admits camera frames into a bounded pool of workers and runs
// each one through decode, detect, track, render and publish.
package pipeline

import (
	"errors"

	"analytics/internal/model"
	"analytics/internal/service/vision"
)

var (
	// ErrBackpressure is returned when the in-flight limit is reached and the
	// frame was dropped.
	ErrBackpressure = errors.New("in-flight limit reached, frame dropped")
	ErrPoolFull     = errors.New("worker pool queue is full")
	ErrPoolClosed   = errors.New("worker pool is stopped")
)

// Detector finds objects on a decoded image.
type Detector interface {
	Detect(img vision.Canvas) ([]model.Detection, error)
}

// Tracker links detections across frames. Implementations keep their own
// state and must be safe for concurrent calls.
type Tracker interface {
	Update(detections []model.Detection, img vision.Canvas) ([]model.Track, error)
}

// AlertScheduler hands an alert to another goroutine and returns immediately.
type AlertScheduler interface {
	Schedule(track model.Track, frameWidth, frameHeight int) bool
}

// FramePublisher receives fully rendered frames.
type FramePublisher interface {
	Set(frame *model.AnnotatedFrame)
}

// Recorder receives per-frame counters.
type Recorder interface {
	RecordFrame()
	RecordDrop()
	RecordFailure()
	RecordObjects(detected, tracked int)
	FPS() float64
}

// Processor runs one frame through the pipeline.
type Processor interface {
	Process(frame model.Frame) error
}
