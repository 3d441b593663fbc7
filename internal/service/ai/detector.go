package ai

import (
	"fmt"
	"image"
	"os"

	"analytics/internal/config"
	"analytics/internal/logger"
	"analytics/internal/model"
	"analytics/internal/service/ai/nms"
	"analytics/internal/service/vision"
	"analytics/internal/service/vision/opencv"

	"gocv.io/x/gocv"
)

// DetectorService runs an SSD network through OpenCV DNN. A gocv.Net must not
// be used by two goroutines at once, so the service keeps one network per
// worker and hands them out through a channel.
type DetectorService struct {
	nets       chan gocv.Net
	all        []gocv.Net
	modelPath  string
	configPath string
	inputSize  image.Point
	confidence float64
	overlap    float64
	logger     *logger.Logger
}

// NewDetectorService loads instances copies of the network. A missing or
// unreadable model is returned as an error; the server cannot run without it.
func NewDetectorService(config *config.Config, instances int, logger *logger.Logger) (*DetectorService, error) {
	if instances < 1 {
		instances = 1
	}
	service := &DetectorService{
		nets:       make(chan gocv.Net, instances),
		modelPath:  config.ModelPath,
		configPath: config.ConfigPath,
		inputSize:  image.Pt(config.ImageWidth, config.ImageHeight),
		confidence: config.ConfidenceThreshold,
		overlap:    config.IOUThreshold,
		logger:     logger,
	}

	for i := 0; i < instances; i++ {
		net, err := service.initializeNet()
		if err != nil {
			service.Close()
			return nil, err
		}
		service.all = append(service.all, net)
		service.nets <- net
	}

	service.logger.Info("Detection network initialized successfully (%d instance(s), input %dx%d)",
		instances, service.inputSize.X, service.inputSize.Y)
	return service, nil
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (s *DetectorService) initializeNet() (gocv.Net, error) {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return gocv.Net{}, fmt.Errorf("model file not found: %s", s.modelPath)
	}

	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return gocv.Net{}, fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)

	if net.Empty() {
		return gocv.Net{}, fmt.Errorf("failed to load network")
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)

	if errBackend != nil || errTarget != nil {
		net.Close()
		return gocv.Net{}, fmt.Errorf("failed to set preferable backend or target")
	}

	return net, nil
}

// Detect runs the network on the image and returns detections above the
// confidence threshold after overlap suppression. Boxes are in pixels.
func (s *DetectorService) Detect(img vision.Canvas) ([]model.Detection, error) {
	canvas, ok := img.(*opencv.Canvas)
	if !ok {
		return nil, fmt.Errorf("unsupported image type %T", img)
	}
	mat := canvas.Mat()
	if mat.Empty() {
		return nil, fmt.Errorf("image is empty")
	}

	net := <-s.nets
	defer func() { s.nets <- net }()

	// Blob parameters fit the SSD COCO network input
	blob := gocv.BlobFromImage(mat, 1.0/127.5, s.inputSize, gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	net.SetInput(blob, "")

	output := net.Forward("")
	defer output.Close()

	// Rows of [ batch_id, class_id, confidence, x1, y1, x2, y2 ], coordinates relative
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	cols, height := float64(mat.Cols()), float64(mat.Rows())
	var results []model.Detection
	for i := 0; i < rows.Rows(); i++ {
		confidence := float64(rows.GetFloatAt(i, 2))
		if confidence < s.confidence {
			continue
		}
		classID := int(rows.GetFloatAt(i, 1))
		results = append(results, model.Detection{
			Box: model.Box{
				X1: float64(rows.GetFloatAt(i, 3)) * cols,
				Y1: float64(rows.GetFloatAt(i, 4)) * height,
				X2: float64(rows.GetFloatAt(i, 5)) * cols,
				Y2: float64(rows.GetFloatAt(i, 6)) * height,
			},
			Confidence: confidence,
			ClassID:    classID,
		})
	}

	results = nms.Suppress(results, s.overlap)
	for _, object := range results {
		s.logger.Debug("Detected %s (%.2f)", ClassLabel(object.ClassID), object.Confidence)
	}
	return results, nil
}

// Close releases every network. Detect must not be called afterwards.
func (s *DetectorService) Close() error {
	for _, net := range s.all {
		net.Close()
	}
	s.all = nil
	return nil
}

// ComputeDevice names the backend the networks run on.
func (s *DetectorService) ComputeDevice() string {
	return "cpu"
}

// ClassLabel maps model class IDs to human-readable labels.
func ClassLabel(classID int) string {
	labels := map[int]string{
		1:  "osoba",
		2:  "rower",
		3:  "samochod",
		4:  "motocykl",
		5:  "samolot",
		6:  "autobus",
		8:  "ciezarowka",
		16: "ptak",
		17: "kot",
		18: "pies",
	}

	if label, exists := labels[classID]; exists {
		return label
	}
	return fmt.Sprintf("nieznany%d", classID)
}
