// Command sender captures frames from a camera, stream URL or video file and
// sends each one as a single JPEG datagram to the analytics server.
package main

import (
	"context"
	"fmt"
	"image"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"analytics/internal/config"
	"analytics/internal/logger"

	"gocv.io/x/gocv"
)

// maxPayload is the largest payload a single IPv4 UDP datagram can carry.
const maxPayload = 65507

func main() {
	cfg := config.LoadSender()
	log := logger.NewLogger(&config.Config{LogDirectory: cfg.LogDirectory, LogLevel: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Sender stopped: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.SenderConfig, log *logger.Logger) error {
	target := net.JoinHostPort(cfg.AnalyticsHost, fmt.Sprint(cfg.UDPPort))
	conn, err := net.Dial("udp", target)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", target, err)
	}
	defer conn.Close()

	capture, err := openCapture(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if capture != nil {
			capture.Close()
		}
	}()

	log.Info("📡 Sending %dx%d JPEG q%d to %s every %s", cfg.FrameWidth, cfg.FrameHeight, cfg.JPEGQuality, target, cfg.SendInterval)

	frame := gocv.NewMat()
	defer frame.Close()
	resized := gocv.NewMat()
	defer resized.Close()

	ticker := time.NewTicker(cfg.SendInterval)
	defer ticker.Stop()

	var sent, skipped uint64
	lastLog := time.Now()
	params := []int{int(gocv.IMWriteJpegQuality), cfg.JPEGQuality}

	for {
		select {
		case <-ctx.Done():
			log.Info("Sender stopped after %d frame(s)", sent)
			return nil
		case <-ticker.C:
		}

		if ok := capture.Read(&frame); !ok || frame.Empty() {
			if cfg.LoopVideo {
				log.Info("End of video reached, restarting")
				capture.Set(gocv.VideoCapturePosFrames, 0)
				continue
			}
			log.Warning("Lost camera connection, reconnecting...")
			capture.Close()
			capture = nil
			if capture, err = reconnect(ctx, cfg, log); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			continue
		}

		if err := gocv.Resize(frame, &resized, image.Pt(cfg.FrameWidth, cfg.FrameHeight), 0, 0, gocv.InterpolationLinear); err != nil {
			log.Error("Failed to resize frame: %v", err)
			continue
		}
		buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, resized, params)
		if err != nil {
			log.Error("Failed to encode frame: %v", err)
			continue
		}
		payload := buf.GetBytes()
		if len(payload) > maxPayload {
			skipped++
			log.WarningEvery("oversize", 5*time.Second, "Frame of %d bytes exceeds one datagram, skipped (%d so far)", len(payload), skipped)
			buf.Close()
			continue
		}
		_, err = conn.Write(payload)
		size := len(payload)
		buf.Close()
		if err != nil {
			log.WarningEvery("send", 5*time.Second, "Failed to send frame: %v", err)
			continue
		}

		sent++
		if time.Since(lastLog) > 5*time.Second {
			log.Info("Sent %d frame(s), last %d bytes", sent, size)
			lastLog = time.Now()
		}
	}
}

// openCapture opens CAMERA_URL when set, otherwise CAMERA_ID, otherwise the
// first of the local devices 0..2 that opens.
func openCapture(cfg *config.SenderConfig, log *logger.Logger) (*gocv.VideoCapture, error) {
	if cfg.CameraURL != "" {
		capture, err := gocv.OpenVideoCapture(cfg.CameraURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", cfg.CameraURL, err)
		}
		log.Info("Using video source %s", cfg.CameraURL)
		return capture, nil
	}

	ids := []int{0, 1, 2}
	if cfg.CameraID >= 0 {
		ids = []int{cfg.CameraID}
	}
	for _, id := range ids {
		capture, err := gocv.VideoCaptureDevice(id)
		if err == nil && capture.IsOpened() {
			log.Info("Opened camera %d", id)
			return capture, nil
		}
		if capture != nil {
			capture.Close()
		}
	}
	return nil, fmt.Errorf("no camera could be opened")
}

func reconnect(ctx context.Context, cfg *config.SenderConfig, log *logger.Logger) (*gocv.VideoCapture, error) {
	delay := 2 * time.Second
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		capture, err := openCapture(cfg, log)
		if err == nil {
			return capture, nil
		}
		log.Error("Reconnect failed: %v", err)
		delay = 5 * time.Second
	}
}
