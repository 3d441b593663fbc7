// Package tracker links detections across frames by bounding-box overlap.
package tracker

import (
	"sort"
	"sync"

	"analytics/internal/model"
	"analytics/internal/service/vision"
)

// Options mirror the usual SORT-style parameters.
type Options struct {
	MaxAge         int     // frames a confirmed track survives without a match
	NInit          int     // consecutive matches before a track is confirmed
	MaxIOUDistance float64 // matches with 1-IoU above this are rejected
}

func DefaultOptions() Options {
	return Options{MaxAge: 30, NInit: 3, MaxIOUDistance: 0.7}
}

type track struct {
	id              int
	box             model.Box
	state           model.TrackState
	hits            int
	timeSinceUpdate int
	classID         int
	confidence      float64
}

func (t *track) view() model.Track {
	return model.Track{
		ID:              t.id,
		Box:             t.box,
		State:           t.state,
		TimeSinceUpdate: t.timeSinceUpdate,
		ClassID:         t.classID,
		Confidence:      t.confidence,
	}
}

// IOUTracker is safe for concurrent use. Frames processed out of order are
// treated as arriving in call order.
type IOUTracker struct {
	opts Options

	mu     sync.Mutex
	tracks []*track
	nextID int
}

func New(opts Options) *IOUTracker {
	def := DefaultOptions()
	if opts.MaxAge <= 0 {
		opts.MaxAge = def.MaxAge
	}
	if opts.NInit <= 0 {
		opts.NInit = def.NInit
	}
	if opts.MaxIOUDistance <= 0 || opts.MaxIOUDistance > 1 {
		opts.MaxIOUDistance = def.MaxIOUDistance
	}
	return &IOUTracker{opts: opts, nextID: 1}
}

type candidate struct {
	track, detection int
	distance         float64
}

// Update advances every track by one frame and associates the detections.
// The image is not used; association is purely geometric.
func (t *IOUTracker) Update(detections []model.Detection, _ vision.Canvas) ([]model.Track, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, tr := range t.tracks {
		tr.timeSinceUpdate++
	}

	var candidates []candidate
	for ti, tr := range t.tracks {
		for di, d := range detections {
			dist := 1 - tr.box.IoU(d.Box)
			if dist <= t.opts.MaxIOUDistance {
				candidates = append(candidates, candidate{track: ti, detection: di, distance: dist})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	trackMatched := make([]bool, len(t.tracks))
	detMatched := make([]bool, len(detections))
	for _, c := range candidates {
		if trackMatched[c.track] || detMatched[c.detection] {
			continue
		}
		trackMatched[c.track] = true
		detMatched[c.detection] = true

		tr := t.tracks[c.track]
		d := detections[c.detection]
		tr.box = d.Box
		tr.classID = d.ClassID
		tr.confidence = d.Confidence
		tr.hits++
		tr.timeSinceUpdate = 0
		if tr.state == model.TrackTentative && tr.hits >= t.opts.NInit {
			tr.state = model.TrackConfirmed
		}
	}

	alive := t.tracks[:0]
	for i, tr := range t.tracks {
		if !trackMatched[i] {
			if tr.state == model.TrackTentative || tr.timeSinceUpdate > t.opts.MaxAge {
				continue
			}
		}
		alive = append(alive, tr)
	}
	for i := len(alive); i < len(t.tracks); i++ {
		t.tracks[i] = nil
	}
	t.tracks = alive

	for di, d := range detections {
		if detMatched[di] {
			continue
		}
		tr := &track{
			id:         t.nextID,
			box:        d.Box,
			state:      model.TrackTentative,
			hits:       1,
			classID:    d.ClassID,
			confidence: d.Confidence,
		}
		if t.opts.NInit <= 1 {
			tr.state = model.TrackConfirmed
		}
		t.nextID++
		t.tracks = append(t.tracks, tr)
	}

	out := make([]model.Track, 0, len(t.tracks))
	for _, tr := range t.tracks {
		out = append(out, tr.view())
	}
	return out, nil
}

// Len returns the number of live tracks.
func (t *IOUTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tracks)
}
