package pipeline

import (
	"errors"
	"fmt"
	"image"
	"time"

	"analytics/internal/logger"
	"analytics/internal/metrics"
	"analytics/internal/model"
	"analytics/internal/service/vision"
)

// ProcessorOptions controls filtering and failure handling.
type ProcessorOptions struct {
	// TargetClasses limits detections to these class ids. Empty keeps all classes.
	TargetClasses       []int
	ConfidenceThreshold float64
	// PublishRawOnFailure publishes the decoded input when a later stage fails.
	PublishRawOnFailure bool
}

// FrameProcessor runs decode, detect, track, render and publish for one frame.
type FrameProcessor struct {
	codec    vision.Codec
	detector Detector
	tracker  Tracker
	store    FramePublisher
	alerts   AlertScheduler
	stats    Recorder
	logger   *logger.Logger

	targets    map[int]struct{}
	confidence float64
	publishRaw bool
}

func NewFrameProcessor(codec vision.Codec, detector Detector, tracker Tracker, store FramePublisher,
	alerts AlertScheduler, stats Recorder, opts ProcessorOptions, logger *logger.Logger) *FrameProcessor {
	targets := make(map[int]struct{}, len(opts.TargetClasses))
	for _, id := range opts.TargetClasses {
		targets[id] = struct{}{}
	}
	return &FrameProcessor{
		codec:      codec,
		detector:   detector,
		tracker:    tracker,
		store:      store,
		alerts:     alerts,
		stats:      stats,
		logger:     logger,
		targets:    targets,
		confidence: opts.ConfidenceThreshold,
		publishRaw: opts.PublishRawOnFailure,
	}
}

// Process handles one frame. The store receives either the fully rendered
// frame or, on failure after decode, the unmodified decoded image.
func (fp *FrameProcessor) Process(frame model.Frame) error {
	start := time.Now()

	img, err := fp.codec.Decode(frame.Data)
	if err != nil {
		fp.stats.RecordFailure()
		return fmt.Errorf("frame %d: %w", frame.Seq, err)
	}
	defer img.Close()

	detected, tracked, err := fp.render(frame, img)
	if err != nil {
		fp.stats.RecordFailure()
		if fp.publishRaw {
			fp.publishDecoded(frame, img)
		}
		return fmt.Errorf("frame %d: %w", frame.Seq, err)
	}

	fp.stats.RecordObjects(detected, tracked)
	metrics.FrameProcessingDuration.Observe(time.Since(start).Seconds())
	fp.logger.Debug("Frame %d processed in %s (detect=%d track=%d)", frame.Seq, time.Since(start), detected, tracked)
	return nil
}

// render runs the capability stages and draws on a private copy of img.
// Nothing reaches the store unless every stage succeeded.
func (fp *FrameProcessor) render(frame model.Frame, img vision.Canvas) (detected, tracked int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panicked: %v", r)
		}
	}()

	detections, err := fp.detector.Detect(img)
	if err != nil {
		return 0, 0, fmt.Errorf("detect: %w", err)
	}
	detections = fp.filter(detections)

	tracks, err := fp.tracker.Update(detections, img)
	if err != nil {
		return 0, 0, fmt.Errorf("track: %w", err)
	}

	annotated, err := img.Clone()
	if err != nil {
		return 0, 0, fmt.Errorf("clone: %w", err)
	}
	defer annotated.Close()

	width, height := img.Width(), img.Height()
	for _, track := range tracks {
		if !track.Visible() {
			continue
		}
		tracked++

		box := track.Box.Rect()
		if err := annotated.Rectangle(box, vision.Green, 2); err != nil {
			return 0, 0, err
		}
		label := fmt.Sprintf("ID:%d C:%.2f", track.ID, track.Confidence)
		if err := annotated.Text(label, image.Pt(box.Min.X, box.Min.Y-10), 0.5, vision.Green, 2); err != nil {
			return 0, 0, err
		}

		if track.Fresh() && fp.alerts != nil {
			if !fp.alerts.Schedule(track, width, height) {
				fp.logger.WarningEvery("alert-queue", 10*time.Second, "Alert queue full, alert for track %d dropped", track.ID)
			}
		}
	}
	detected = len(detections)

	if err := annotated.Text(fmt.Sprintf("FPS: %.1f", fp.stats.FPS()), image.Pt(10, 30), 0.8, vision.Red, 2); err != nil {
		return 0, 0, err
	}
	if err := annotated.Text(fmt.Sprintf("Detect:%d Track:%d", detected, tracked), image.Pt(10, 60), 0.8, vision.Red, 2); err != nil {
		return 0, 0, err
	}

	raster, err := annotated.Raster()
	if err != nil {
		return 0, 0, fmt.Errorf("snapshot: %w", err)
	}
	fp.store.Set(&model.AnnotatedFrame{
		Image:      raster,
		Seq:        frame.Seq,
		RenderedAt: time.Now(),
	})
	return detected, tracked, nil
}

func (fp *FrameProcessor) filter(detections []model.Detection) []model.Detection {
	kept := detections[:0]
	for _, d := range detections {
		if d.Confidence < fp.confidence {
			continue
		}
		if len(fp.targets) > 0 {
			if _, ok := fp.targets[d.ClassID]; !ok {
				continue
			}
		}
		kept = append(kept, d)
	}
	return kept
}

func (fp *FrameProcessor) publishDecoded(frame model.Frame, img vision.Canvas) {
	raster, err := img.Raster()
	if err != nil {
		fp.logger.Error("Frame %d: raw image unavailable: %v", frame.Seq, err)
		return
	}
	fp.store.Set(&model.AnnotatedFrame{
		Image:      raster,
		Seq:        frame.Seq,
		RenderedAt: time.Now(),
		Raw:        true,
	})
}

// IsDecodeFailure reports whether err came from an undecodable payload.
func IsDecodeFailure(err error) bool {
	return errors.Is(err, vision.ErrDecode)
}
