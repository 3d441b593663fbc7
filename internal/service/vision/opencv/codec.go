package opencv

import (
	"fmt"
	"image"
	"image/color"

	"analytics/internal/service/vision"

	"gocv.io/x/gocv"
)

// Codec implements vision.Codec on top of OpenCV.
type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

// Decode turns a compressed image into a BGR canvas.
func (c *Codec) Decode(data []byte) (vision.Canvas, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vision.ErrDecode, err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: decoded image is empty", vision.ErrDecode)
	}
	return &Canvas{mat: mat}, nil
}

// Encode compresses a raster to JPEG with the given quality (1-100).
func (c *Codec) Encode(r *vision.Raster, quality int) ([]byte, error) {
	if r == nil || len(r.Pix) == 0 {
		return nil, fmt.Errorf("empty raster")
	}
	mat, err := gocv.NewMatFromBytes(r.Height, r.Width, matType(r.Channels), r.Pix)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap raster: %w", err)
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

func matType(channels int) gocv.MatType {
	if channels == 1 {
		return gocv.MatTypeCV8UC1
	}
	return gocv.MatTypeCV8UC3
}

// Canvas wraps a gocv.Mat.
type Canvas struct {
	mat gocv.Mat
}

// Mat exposes the underlying matrix to other OpenCV-backed components.
func (c *Canvas) Mat() gocv.Mat {
	return c.mat
}

func (c *Canvas) Width() int  { return c.mat.Cols() }
func (c *Canvas) Height() int { return c.mat.Rows() }

func (c *Canvas) Rectangle(r image.Rectangle, col color.RGBA, thickness int) error {
	if err := gocv.Rectangle(&c.mat, r, col, thickness); err != nil {
		return fmt.Errorf("failed to draw rectangle: %w", err)
	}
	return nil
}

func (c *Canvas) Text(text string, at image.Point, scale float64, col color.RGBA, thickness int) error {
	if err := gocv.PutText(&c.mat, text, at, gocv.FontHersheySimplex, scale, col, thickness); err != nil {
		return fmt.Errorf("failed to draw text: %w", err)
	}
	return nil
}

func (c *Canvas) Clone() (vision.Canvas, error) {
	clone := c.mat.Clone()
	if clone.Empty() {
		clone.Close()
		return nil, fmt.Errorf("failed to clone image")
	}
	return &Canvas{mat: clone}, nil
}

func (c *Canvas) Raster() (*vision.Raster, error) {
	if c.mat.Empty() {
		return nil, fmt.Errorf("image is empty")
	}
	return &vision.Raster{
		Width:    c.mat.Cols(),
		Height:   c.mat.Rows(),
		Channels: c.mat.Channels(),
		Pix:      c.mat.ToBytes(),
	}, nil
}

func (c *Canvas) Close() error {
	return c.mat.Close()
}

var _ vision.Codec = (*Codec)(nil)
var _ vision.Canvas = (*Canvas)(nil)
