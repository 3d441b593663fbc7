package tracker

import (
	"sync"
	"testing"

	"analytics/internal/model"
)

func det(x1, y1, x2, y2 float64) model.Detection {
	return model.Detection{Box: model.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}, Confidence: 0.9, ClassID: 1}
}

func TestTracker_ConfirmsAfterNInit(t *testing.T) {
	tr := New(Options{MaxAge: 5, NInit: 3, MaxIOUDistance: 0.7})

	var tracks []model.Track
	for i := 0; i < 3; i++ {
		var err error
		tracks, err = tr.Update([]model.Detection{det(10+float64(i), 10, 50+float64(i), 80)}, nil)
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if len(tracks) != 1 {
			t.Fatalf("Expected 1 track, got %d", len(tracks))
		}
		if i < 2 && tracks[0].State != model.TrackTentative {
			t.Fatalf("Track confirmed too early at frame %d", i)
		}
	}

	got := tracks[0]
	if got.State != model.TrackConfirmed {
		t.Errorf("Expected confirmed after 3 matches, got %s", got.State)
	}
	if got.ID != 1 {
		t.Errorf("Expected the identity to persist as 1, got %d", got.ID)
	}
	if !got.Fresh() {
		t.Error("Expected a matched track to be fresh")
	}
}

func TestTracker_TentativeDeletedOnMiss(t *testing.T) {
	tr := New(Options{MaxAge: 5, NInit: 3, MaxIOUDistance: 0.7})

	tr.Update([]model.Detection{det(0, 0, 10, 10)}, nil)
	tracks, _ := tr.Update(nil, nil)
	if len(tracks) != 0 {
		t.Errorf("Expected an unmatched tentative track to be deleted, got %d tracks", len(tracks))
	}
}

func TestTracker_ConfirmedAgesOut(t *testing.T) {
	tr := New(Options{MaxAge: 2, NInit: 1, MaxIOUDistance: 0.7})

	tr.Update([]model.Detection{det(0, 0, 10, 10)}, nil)

	tracks, _ := tr.Update(nil, nil)
	if len(tracks) != 1 || tracks[0].TimeSinceUpdate != 1 {
		t.Fatalf("Expected a coasting track with staleness 1, got %+v", tracks)
	}
	if !tracks[0].Visible() || tracks[0].Fresh() {
		t.Error("Expected a coasting track to be drawn but not alerted")
	}

	tr.Update(nil, nil)
	tracks, _ = tr.Update(nil, nil)
	if len(tracks) != 0 {
		t.Errorf("Expected the track to be removed after max age, got %d", len(tracks))
	}
}

func TestTracker_SeparateObjectsGetSeparateIDs(t *testing.T) {
	tr := New(Options{NInit: 1})

	tracks, _ := tr.Update([]model.Detection{det(0, 0, 10, 10), det(100, 100, 120, 130)}, nil)
	if len(tracks) != 2 || tracks[0].ID == tracks[1].ID {
		t.Fatalf("Expected two distinct tracks, got %+v", tracks)
	}

	tracks, _ = tr.Update([]model.Detection{det(101, 101, 121, 131), det(1, 0, 11, 10)}, nil)
	ids := map[int]model.Box{}
	for _, tk := range tracks {
		ids[tk.ID] = tk.Box
	}
	if len(ids) != 2 {
		t.Fatalf("Expected identities to be kept, got %+v", tracks)
	}
	if ids[1].X1 != 1 || ids[2].X1 != 101 {
		t.Errorf("Detections matched to the wrong identities: %+v", ids)
	}
}

func TestTracker_ConcurrentUpdates(t *testing.T) {
	tr := New(DefaultOptions())

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if _, err := tr.Update([]model.Detection{det(0, 0, 10, 10)}, nil); err != nil {
					t.Errorf("Update failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if tr.Len() != 1 {
		t.Errorf("Expected a single stable track, got %d", tr.Len())
	}
}
