package handler

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"analytics/internal/logger"
	"analytics/internal/model"
	"analytics/internal/service/pipeline"
)

type recordingSubmitter struct {
	mu     sync.Mutex
	frames []model.Frame
	reject bool
}

func (s *recordingSubmitter) Submit(frame model.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return pipeline.ErrBackpressure
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *recordingSubmitter) InFlight() int { return 0 }

func (s *recordingSubmitter) Frames() []model.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Frame(nil), s.frames...)
}

type staticViewers int

func (v staticViewers) GetClientCount() int { return int(v) }

// setupCamera starts the UDP handler on a loopback port and returns a socket
// connected to it.
func setupCamera(t *testing.T, submitter FrameSubmitter) (*net.UDPConn, context.CancelFunc, <-chan error) {
	t.Helper()

	conn, err := ListenUDPCamera("127.0.0.1:0", 1<<16)
	if err != nil {
		t.Fatalf("Failed to bind UDP: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- UDPCameraHandler(ctx, conn, submitter, staticViewers(0), logger.NewNop())
	}()

	sender, err := net.DialUDP("udp", nil, conn.LocalAddr().(*net.UDPAddr))
	if err != nil {
		cancel()
		t.Fatalf("Failed to dial UDP: %v", err)
	}
	t.Cleanup(func() { sender.Close() })
	return sender, cancel, done
}

func TestUDPCameraHandler_ForwardsDatagrams(t *testing.T) {
	submitter := &recordingSubmitter{}
	sender, cancel, done := setupCamera(t, submitter)
	defer cancel()

	payloads := [][]byte{
		{0xFF, 0xD8, 0x01, 0xFF, 0xD9},
		{0xFF, 0xD8, 0x02, 0xFF, 0xD9},
		{},
		{0xFF, 0xD8, 0x03, 0xFF, 0xD9},
	}
	for _, p := range payloads {
		if _, err := sender.Write(p); err != nil {
			t.Fatalf("Failed to send datagram: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(submitter.Frames()) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	frames := submitter.Frames()
	if len(frames) != 3 {
		t.Fatalf("Expected 3 frames (empty datagram dropped), got %d", len(frames))
	}
	for i, f := range frames {
		if f.Seq != uint64(i+1) {
			t.Errorf("Expected sequence %d, got %d", i+1, f.Seq)
		}
		if f.Data[2] != byte(i+1) {
			t.Errorf("Frame %d carries the wrong payload: %v", i, f.Data)
		}
		if f.Source == "" || f.ReceivedAt.IsZero() {
			t.Errorf("Frame %d is missing metadata: %+v", i, f)
		}
	}
	// Each payload must own its bytes, not alias the shared read buffer.
	if bytes.Equal(frames[0].Data, frames[2].Data) {
		t.Error("Frames share the read buffer")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected a clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Handler did not stop after cancel")
	}
}

func TestUDPCameraHandler_KeepsReadingWhenDeclined(t *testing.T) {
	submitter := &recordingSubmitter{reject: true}
	sender, cancel, done := setupCamera(t, submitter)

	for i := 0; i < 5; i++ {
		sender.Write([]byte{0xFF, 0xD8, byte(i)})
	}
	time.Sleep(50 * time.Millisecond)

	submitter.mu.Lock()
	submitter.reject = false
	submitter.mu.Unlock()
	sender.Write([]byte{0xFF, 0xD8, 0x42})

	deadline := time.Now().Add(2 * time.Second)
	for len(submitter.Frames()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(submitter.Frames()) != 1 {
		t.Errorf("Expected ingestion to continue after drops, got %d frames", len(submitter.Frames()))
	}

	cancel()
	<-done
}

func TestListenUDPCamera_BindFailure(t *testing.T) {
	conn, err := ListenUDPCamera("127.0.0.1:0", 0)
	if err != nil {
		t.Fatalf("Failed to bind UDP: %v", err)
	}
	defer conn.Close()

	if _, err := ListenUDPCamera(conn.LocalAddr().String(), 0); err == nil {
		t.Error("Expected an error binding a port that is already in use")
	}
}
