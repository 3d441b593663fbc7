package model

type TrackState int

const (
	TrackTentative TrackState = iota
	TrackConfirmed
)

func (s TrackState) String() string {
	if s == TrackConfirmed {
		return "confirmed"
	}
	return "tentative"
}

// Track is a point-in-time view of a tracker identity.
type Track struct {
	ID              int
	Box             Box
	State           TrackState
	TimeSinceUpdate int // frames since the last successful association
	ClassID         int
	Confidence      float64
}

// Visible reports whether the track should be drawn on the current frame.
func (t Track) Visible() bool {
	return t.State == TrackConfirmed && t.TimeSinceUpdate <= 1
}

// Fresh reports whether the track was associated in the current frame.
func (t Track) Fresh() bool {
	return t.State == TrackConfirmed && t.TimeSinceUpdate == 0
}
