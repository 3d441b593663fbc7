package stats

import (
	"math"
	"sync"
	"testing"
	"time"

	"analytics/internal/logger"
	"analytics/internal/metrics"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var epoch = time.Unix(1_700_000_000, 0)

func TestCollector_RateConvergesToInputRate(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	c := newCollector(5*time.Second, logger.NewNop(), clock)

	const rate = 25.0
	step := time.Duration(float64(time.Second) / rate)

	// 12 seconds of input at a fixed rate: two full windows.
	for i := 0; i < int(12*rate); i++ {
		clock.Advance(step)
		c.RecordFrame()
	}

	fps := c.FPS()
	if math.Abs(fps-rate)/rate > 0.10 {
		t.Errorf("Expected rate within 10%% of %.1f, got %.2f", rate, fps)
	}
	t.Logf("Reported rate %.2f for input %.1f", fps, rate)

	snap := c.Snapshot()
	if snap.TotalFrames != uint64(12*rate) {
		t.Errorf("Expected %d total frames, got %d", int(12*rate), snap.TotalFrames)
	}
}

func TestCollector_RateZeroBeforeFirstWindow(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	c := newCollector(5*time.Second, logger.NewNop(), clock)

	for i := 0; i < 10; i++ {
		clock.Advance(100 * time.Millisecond)
		c.RecordFrame()
	}

	if c.FPS() != 0 {
		t.Errorf("Expected 0 FPS before the window closes, got %.2f", c.FPS())
	}
	if snap := c.Snapshot(); snap.IntervalFrames != 10 {
		t.Errorf("Expected 10 frames in the open window, got %d", snap.IntervalFrames)
	}
}

func TestCollector_WindowResetsIntervalCounter(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	c := newCollector(5*time.Second, logger.NewNop(), clock)

	c.RecordFrame()
	clock.Advance(5 * time.Second)
	c.RecordFrame()

	snap := c.Snapshot()
	if snap.IntervalFrames != 0 {
		t.Errorf("Expected interval counter reset, got %d", snap.IntervalFrames)
	}
	if snap.FPS != 2.0/5.0 {
		t.Errorf("Expected FPS 0.4, got %v", snap.FPS)
	}
}

func TestCollector_ConcurrentWriters(t *testing.T) {
	c := NewCollector(time.Hour, logger.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.RecordFrame()
				c.RecordObjects(n, n)
				if j%10 == 0 {
					c.RecordDrop()
				}
			}
		}(i)
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.TotalFrames != 8000 {
		t.Errorf("Expected 8000 frames, got %d", snap.TotalFrames)
	}
	if snap.DroppedFrames != 800 {
		t.Errorf("Expected 800 drops, got %d", snap.DroppedFrames)
	}
	if snap.LastDetected < 0 || snap.LastDetected > 7 {
		t.Errorf("Unexpected last detected count %d", snap.LastDetected)
	}
}

func TestCollector_ExportsMetrics(t *testing.T) {
	c := NewCollector(time.Hour, logger.NewNop())

	admitted := testutil.ToFloat64(metrics.FramesAdmitted)
	dropped := testutil.ToFloat64(metrics.FramesDropped)
	failed := testutil.ToFloat64(metrics.FramesFailed)

	c.RecordFrame()
	c.RecordDrop()
	c.RecordDrop()
	c.RecordFailure()
	c.RecordObjects(4, 2)

	if got := testutil.ToFloat64(metrics.FramesAdmitted) - admitted; got != 1 {
		t.Errorf("Expected admitted counter +1, got %+v", got)
	}
	if got := testutil.ToFloat64(metrics.FramesDropped) - dropped; got != 2 {
		t.Errorf("Expected dropped counter +2, got %+v", got)
	}
	if got := testutil.ToFloat64(metrics.FramesFailed) - failed; got != 1 {
		t.Errorf("Expected failed counter +1, got %+v", got)
	}
	if got := testutil.ToFloat64(metrics.LastTrackedObjects); got != 2 {
		t.Errorf("Expected tracked gauge 2, got %v", got)
	}
}
