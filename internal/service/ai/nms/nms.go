// Package nms removes overlapping detections of the same class.
package nms

import (
	"sort"

	"analytics/internal/model"
)

// Suppress keeps the most confident detection out of every group whose boxes
// overlap by more than threshold (IoU). Detections of different classes never
// suppress each other. The result is ordered by decreasing confidence.
func Suppress(detections []model.Detection, threshold float64) []model.Detection {
	if len(detections) < 2 || threshold <= 0 {
		return detections
	}

	sorted := make([]model.Detection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]model.Detection, 0, len(sorted))
	for _, d := range sorted {
		overlaps := false
		for _, k := range kept {
			if k.ClassID == d.ClassID && k.Box.IoU(d.Box) > threshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, d)
		}
	}
	return kept
}
