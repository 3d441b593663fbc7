package framestore

import (
	"sync"
	"sync/atomic"

	"analytics/internal/model"
)

// Store holds the most recent annotated frame. Writers replace the whole value,
// readers share the published value, which is never mutated afterwards.
// The lock is held only for the pointer swap.
type Store struct {
	mu        sync.RWMutex
	frame     *model.AnnotatedFrame
	publishes atomic.Uint64
}

func New() *Store {
	return &Store{}
}

// Set publishes a frame, replacing the previous one. Nil is ignored.
func (s *Store) Set(frame *model.AnnotatedFrame) {
	if frame == nil {
		return
	}
	s.mu.Lock()
	s.frame = frame
	s.mu.Unlock()
	s.publishes.Add(1)
}

// Get returns the latest frame, or false when nothing was published yet.
func (s *Store) Get() (*model.AnnotatedFrame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.frame != nil
}

// Publishes returns how many frames were published since start.
func (s *Store) Publishes() uint64 {
	return s.publishes.Load()
}

// Seq returns the sequence number of the current frame, 0 when empty.
func (s *Store) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.frame == nil {
		return 0
	}
	return s.frame.Seq
}
