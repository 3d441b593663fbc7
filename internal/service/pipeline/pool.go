package pipeline

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"analytics/internal/logger"
	"analytics/internal/model"
)

// Task is the handle of one submitted frame.
type Task struct {
	Seq   uint64
	frame model.Frame
	done  chan struct{}
	err   error
}

func newTask(frame model.Frame) *Task {
	return &Task{Seq: frame.Seq, frame: frame, done: make(chan struct{})}
}

func (t *Task) finish(err error) {
	t.err = err
	t.frame = model.Frame{} // the worker owned the payload until now
	close(t.done)
}

// Done reports whether processing finished, without blocking.
func (t *Task) Done() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the frame was processed and returns its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Err returns the processing error. Only meaningful once Done is true.
func (t *Task) Err() error {
	if !t.Done() {
		return nil
	}
	return t.err
}

// Pool runs frames on a fixed number of worker goroutines.
type Pool struct {
	jobs      chan *Task
	processor Processor
	size      int
	logger    *logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	busy atomic.Int32
	peak atomic.Int32
}

// NewPool starts size workers. queue bounds the number of frames waiting for a
// worker; Submit fails instead of blocking once it is full.
func NewPool(size, queue int, processor Processor, logger *logger.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if queue < 1 {
		queue = 1
	}
	p := &Pool{
		jobs:      make(chan *Task, queue),
		processor: processor,
		size:      size,
		logger:    logger,
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Info("🔧 Worker pool started with %d worker(s), queue %d", size, queue)
	return p
}

// Submit queues a frame for processing without blocking.
func (p *Pool) Submit(frame model.Frame) (*Task, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	task := newTask(frame)
	select {
	case p.jobs <- task:
		return task, nil
	default:
		return nil, ErrPoolFull
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Busy returns the number of frames being processed right now.
func (p *Pool) Busy() int {
	return int(p.busy.Load())
}

// PeakBusy returns the highest concurrent processing count observed.
func (p *Pool) PeakBusy() int {
	return int(p.peak.Load())
}

// Stop lets queued frames finish and waits for all workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("🛑 All processing workers stopped")
}

func (p *Pool) worker(workerID int) {
	defer p.wg.Done()

	for task := range p.jobs {
		task.finish(p.run(workerID, task.frame))
	}
}

// run processes one frame. A panic in any stage is confined to the frame.
func (p *Pool) run(workerID int, frame model.Frame) (err error) {
	n := p.busy.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	defer p.busy.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker %d panicked on frame %d: %v\n%s", workerID, frame.Seq, r, debug.Stack())
			err = fmt.Errorf("panic while processing frame %d: %v", frame.Seq, r)
		}
	}()

	return p.processor.Process(frame)
}
