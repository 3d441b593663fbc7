package model

import (
	"image"
	"math"
)

// Box is an axis-aligned bounding box in pixel coordinates (left, top, right, bottom).
type Box struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

func (b Box) Width() float64  { return math.Max(0, b.X2-b.X1) }
func (b Box) Height() float64 { return math.Max(0, b.Y2-b.Y1) }
func (b Box) Area() float64   { return b.Width() * b.Height() }

// Rect converts the box to integer pixel coordinates for drawing.
func (b Box) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

// IoU returns the intersection over union of two boxes.
func (b Box) IoU(o Box) float64 {
	inter := Box{
		X1: math.Max(b.X1, o.X1),
		Y1: math.Max(b.Y1, o.Y1),
		X2: math.Min(b.X2, o.X2),
		Y2: math.Min(b.Y2, o.Y2),
	}.Area()
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Normalize scales the box into [0,1] relative to the frame size.
// A frame without geometry leaves the box unchanged.
func (b Box) Normalize(width, height int) [4]float64 {
	if width <= 0 || height <= 0 {
		return [4]float64{b.X1, b.Y1, b.X2, b.Y2}
	}
	w, h := float64(width), float64(height)
	return [4]float64{
		clamp01(b.X1 / w),
		clamp01(b.Y1 / h),
		clamp01(b.X2 / w),
		clamp01(b.Y2 / h),
	}
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

// Detection is a single detector output.
type Detection struct {
	Box        Box
	Confidence float64
	ClassID    int
}
