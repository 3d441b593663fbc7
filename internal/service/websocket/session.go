package websocket

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"analytics/internal/model"
	"analytics/internal/service/vision"

	"github.com/gorilla/websocket"
)

const dataURLPrefix = "data:image/jpeg;base64,"

// FrameSource returns the latest published frame, if any.
type FrameSource interface {
	Get() (*model.AnnotatedFrame, bool)
}

// FrameEncoder compresses a raster for transmission.
type FrameEncoder interface {
	Encode(r *vision.Raster, quality int) ([]byte, error)
}

type StreamOptions struct {
	Interval     time.Duration
	Quality      int
	WriteTimeout time.Duration
}

// Stream pushes the latest frame to the client every interval until the
// client disconnects, a write fails, ctx is cancelled or the hub closes.
// The caller unregisters the client.
func (h *HubService) Stream(ctx context.Context, client *Client, source FrameSource, encoder FrameEncoder, opts StreamOptions) error {
	if opts.Interval <= 0 {
		opts.Interval = 20 * time.Millisecond
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	// Close frames are only seen by reading.
	gone := make(chan error, 1)
	go func() {
		for {
			if _, _, err := client.Conn.ReadMessage(); err != nil {
				gone <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var (
		last    *model.AnnotatedFrame
		payload []byte
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.done:
			return nil
		case err := <-gone:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("client %s read: %w", client.ID, err)
		case <-ticker.C:
		}

		frame, ok := source.Get()
		if !ok {
			continue
		}
		if frame != last {
			jpeg, err := encoder.Encode(frame.Image, opts.Quality)
			if err != nil {
				h.logger.WarningEvery("encode", 10*time.Second, "Failed to encode frame %d: %v", frame.Seq, err)
				continue
			}
			payload = []byte(dataURLPrefix + base64.StdEncoding.EncodeToString(jpeg))
			last = frame
		}

		client.Conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
		if err := client.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return fmt.Errorf("client %s write: %w", client.ID, err)
		}
	}
}
