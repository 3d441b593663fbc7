package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"analytics/internal/logger"
	"analytics/internal/metrics"
	"analytics/internal/model"

	"github.com/jonboulle/clockwork"
)

// DefaultWindow is the interval over which the processing rate is averaged.
const DefaultWindow = 5 * time.Second

// Collector tracks pipeline counters. All methods are safe for concurrent use.
type Collector struct {
	total   atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64

	detected atomic.Int64
	tracked  atomic.Int64

	mu          sync.Mutex
	interval    uint64
	windowStart time.Time
	fps         float64

	window    time.Duration
	startedAt time.Time
	clock     clockwork.Clock
	logger    *logger.Logger
}

// NewCollector creates a collector averaging the rate over window.
func NewCollector(window time.Duration, logger *logger.Logger) *Collector {
	return newCollector(window, logger, clockwork.NewRealClock())
}

func newCollector(window time.Duration, logger *logger.Logger, clock clockwork.Clock) *Collector {
	if window <= 0 {
		window = DefaultWindow
	}
	start := clock.Now()
	return &Collector{
		window:      window,
		windowStart: start,
		startedAt:   start,
		clock:       clock,
		logger:      logger,
	}
}

// RecordFrame counts one ingested frame and rolls the rate window when due.
func (c *Collector) RecordFrame() {
	c.total.Add(1)
	metrics.FramesAdmitted.Inc()

	c.mu.Lock()
	c.interval++
	now := c.clock.Now()
	elapsed := now.Sub(c.windowStart)
	var rolled bool
	if elapsed >= c.window {
		c.fps = float64(c.interval) / elapsed.Seconds()
		c.interval = 0
		c.windowStart = now
		rolled = true
	}
	fps := c.fps
	c.mu.Unlock()

	if rolled {
		metrics.ProcessingFPS.Set(fps)
		c.logger.Info("Processing rate: %.2f FPS", fps)
	}
}

// RecordObjects stores the counts from the latest completed frame.
func (c *Collector) RecordObjects(detected, tracked int) {
	c.detected.Store(int64(detected))
	c.tracked.Store(int64(tracked))
	metrics.LastDetectedObjects.Set(float64(detected))
	metrics.LastTrackedObjects.Set(float64(tracked))
}

func (c *Collector) RecordDrop() {
	c.dropped.Add(1)
	metrics.FramesDropped.Inc()
}

func (c *Collector) RecordFailure() {
	c.failed.Add(1)
	metrics.FramesFailed.Inc()
}

// FPS returns the rate computed at the last window boundary.
func (c *Collector) FPS() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

// Snapshot returns a consistent copy of the counters.
func (c *Collector) Snapshot() model.StatsSnapshot {
	c.mu.Lock()
	interval := c.interval
	fps := c.fps
	c.mu.Unlock()

	return model.StatsSnapshot{
		TotalFrames:    c.total.Load(),
		IntervalFrames: interval,
		FPS:            fps,
		LastDetected:   int(c.detected.Load()),
		LastTracked:    int(c.tracked.Load()),
		DroppedFrames:  c.dropped.Load(),
		FailedFrames:   c.failed.Load(),
		StartedAt:      c.startedAt,
	}
}
