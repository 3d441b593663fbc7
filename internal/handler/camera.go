package handler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"analytics/internal/logger"
	"analytics/internal/model"
	"analytics/internal/service/pipeline"
)

// MaxDatagramSize is the largest UDP payload; one datagram carries one JPEG.
const MaxDatagramSize = 65535

const summaryInterval = 60 * time.Second

// FrameSubmitter admits frames for processing without blocking.
type FrameSubmitter interface {
	Submit(frame model.Frame) error
	InFlight() int
}

// ViewerCounter reports connected viewers.
type ViewerCounter interface {
	GetClientCount() int
}

// ListenUDPCamera binds the camera socket. A bind failure is fatal for the caller.
func ListenUDPCamera(address string, readBuffer int) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address %s: %w", address, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP %s: %w", address, err)
	}

	if readBuffer > 0 {
		if err := conn.SetReadBuffer(readBuffer); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set UDP read buffer: %w", err)
		}
	}
	return conn, nil
}

// UDPCameraHandler reads datagrams from conn and hands each one to the
// dispatcher as a frame. It never waits for processing. It returns when ctx
// is cancelled; conn is closed on return.
func UDPCameraHandler(ctx context.Context, conn *net.UDPConn, dispatcher FrameSubmitter, viewers ViewerCounter, logger *logger.Logger) error {
	var received, declined atomic.Uint64

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		conn.Close()
	}()

	go func() {
		ticker := time.NewTicker(summaryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				logger.Info("📷 Frames received: %d, declined: %d, viewers: %d, in flight: %d",
					received.Load(), declined.Load(), viewers.GetClientCount(), dispatcher.InFlight())
			}
		}
	}()

	logger.Info("UDP Camera handler started on %s", conn.LocalAddr())
	buffer := make([]byte, MaxDatagramSize)
	var seq uint64

	for {
		n, remoteAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Info("UDP Camera handler stopped after %d frame(s)", received.Load())
				return nil
			}
			logger.Error("Error reading UDP packet: %v", err)
			continue
		}
		if n == 0 {
			logger.Debug("Empty datagram from %s dropped", remoteAddr)
			continue
		}

		// The read buffer is reused for the next datagram.
		data := make([]byte, n)
		copy(data, buffer[:n])

		seq++
		received.Add(1)
		frame := model.Frame{
			Data:       data,
			ReceivedAt: time.Now(),
			Seq:        seq,
			Source:     remoteAddr.String(),
		}

		if err := dispatcher.Submit(frame); err != nil {
			declined.Add(1)
			if errors.Is(err, pipeline.ErrBackpressure) {
				logger.WarningEvery("backpressure", 5*time.Second, "Processing saturated, dropping frames (%d declined so far)", declined.Load())
			} else {
				logger.WarningEvery("submit", 5*time.Second, "Frame %d declined: %v", seq, err)
			}
		}
	}
}
