package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"analytics/internal/logger"
	"analytics/internal/metrics"
	"analytics/internal/model"
)

const (
	DefaultMaxInFlight = 10
	DefaultReapEvery   = 10
)

// Submitter accepts frames for asynchronous processing.
type Submitter interface {
	Submit(frame model.Frame) (*Task, error)
}

// Dispatcher admits frames into the pool under a fixed in-flight limit. When the
// limit is reached the newest frame is dropped; ingestion is never blocked.
type Dispatcher struct {
	pool        Submitter
	stats       Recorder
	logger      *logger.Logger
	maxInFlight int
	reapEvery   int

	mu       sync.Mutex
	inFlight []*Task
	admitted uint64
	dropped  uint64
}

// NewDispatcher creates a dispatcher holding at most maxInFlight task handles and
// reaping finished ones every reapEvery admitted frames.
func NewDispatcher(pool Submitter, maxInFlight, reapEvery int, stats Recorder, logger *logger.Logger) *Dispatcher {
	if maxInFlight < 1 {
		maxInFlight = DefaultMaxInFlight
	}
	if reapEvery < 1 {
		reapEvery = DefaultReapEvery
	}
	return &Dispatcher{
		pool:        pool,
		stats:       stats,
		logger:      logger,
		maxInFlight: maxInFlight,
		reapEvery:   reapEvery,
		inFlight:    make([]*Task, 0, maxInFlight),
	}
}

// Submit admits the frame or drops it. It returns ErrBackpressure when the frame
// was dropped because of the in-flight limit, or the pool error when the pool
// declined it. It never waits for a worker.
func (d *Dispatcher) Submit(frame model.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.inFlight) >= d.maxInFlight {
		d.dropped++
		d.stats.RecordDrop()
		d.reapLocked()
		return ErrBackpressure
	}

	task, err := d.pool.Submit(frame)
	if err != nil {
		d.dropped++
		d.stats.RecordDrop()
		return fmt.Errorf("frame %d declined: %w", frame.Seq, err)
	}

	d.inFlight = append(d.inFlight, task)
	metrics.FramesInFlight.Set(float64(len(d.inFlight)))
	d.admitted++
	d.stats.RecordFrame()

	if d.admitted%uint64(d.reapEvery) == 0 {
		d.reapLocked()
	}
	return nil
}

// Reap drops handles of finished tasks and logs their errors.
func (d *Dispatcher) Reap() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reapLocked()
}

func (d *Dispatcher) reapLocked() int {
	kept := d.inFlight[:0]
	reaped := 0
	for _, task := range d.inFlight {
		if !task.Done() {
			kept = append(kept, task)
			continue
		}
		reaped++
		if err := task.Err(); err != nil {
			if IsDecodeFailure(err) {
				d.logger.WarningEvery("decode", 10*time.Second, "Dropping undecodable frame: %v", err)
			} else {
				d.logger.Error("Frame %d processing failed: %v", task.Seq, err)
			}
		}
	}
	for i := len(kept); i < len(d.inFlight); i++ {
		d.inFlight[i] = nil
	}
	d.inFlight = kept
	metrics.FramesInFlight.Set(float64(len(d.inFlight)))
	if reaped > 0 {
		d.logger.Debug("Reaped %d finished task(s), %d in flight", reaped, len(d.inFlight))
	}
	return reaped
}

// InFlight returns the number of tracked task handles (never above the limit).
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inFlight)
}

func (d *Dispatcher) Admitted() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.admitted
}

func (d *Dispatcher) Dropped() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Drain waits until every admitted frame finished or the timeout expires.
func (d *Dispatcher) Drain(timeout time.Duration) error {
	d.mu.Lock()
	pending := make([]*Task, len(d.inFlight))
	copy(pending, d.inFlight)
	d.mu.Unlock()

	deadline := time.After(timeout)
	for _, task := range pending {
		select {
		case <-task.done:
		case <-deadline:
			return errors.New("timed out waiting for in-flight frames")
		}
	}
	d.Reap()
	return nil
}
