package model

import (
	"time"

	"analytics/internal/service/vision"
)

// Frame is one compressed image received from a camera.
type Frame struct {
	Data       []byte
	ReceivedAt time.Time
	Seq        uint64
	Source     string
}

// AnnotatedFrame is the rendered result held by the frame store.
// It is replaced wholesale and never mutated after publication.
type AnnotatedFrame struct {
	Image      *vision.Raster
	Seq        uint64
	RenderedAt time.Time
	Raw        bool // true when rendering failed and the decoded input was published instead
}
