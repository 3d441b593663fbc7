// Package vision defines the image operations the pipeline needs, independent of
// the imaging library that implements them.
package vision

import (
	"errors"
	"image"
	"image/color"
)

var ErrDecode = errors.New("failed to decode image")

var (
	Green = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	Red   = color.RGBA{R: 255, G: 0, B: 0, A: 0}
)

// Raster is a decoded image held on the Go heap. Pix is interleaved BGR, 8 bits
// per channel, row-major. A Raster handed to the frame store is never modified.
type Raster struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// Canvas is a mutable decoded image that can be drawn on.
type Canvas interface {
	Width() int
	Height() int
	Rectangle(r image.Rectangle, c color.RGBA, thickness int) error
	Text(text string, at image.Point, scale float64, c color.RGBA, thickness int) error
	// Clone returns an independent copy that must be closed separately.
	Clone() (Canvas, error)
	// Raster copies the current pixels out of the canvas.
	Raster() (*Raster, error)
	Close() error
}

// Codec converts between compressed payloads and images.
type Codec interface {
	Decode(data []byte) (Canvas, error)
	Encode(r *Raster, quality int) ([]byte, error)
}
