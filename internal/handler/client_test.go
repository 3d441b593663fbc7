package handler

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"analytics/internal/config"
	"analytics/internal/logger"
	"analytics/internal/model"
	"analytics/internal/service/framestore"
	"analytics/internal/service/vision"
	wshub "analytics/internal/service/websocket"

	"github.com/gorilla/websocket"
)

type byteEncoder struct{}

func (byteEncoder) Encode(r *vision.Raster, quality int) ([]byte, error) {
	return r.Pix, nil
}

func setupViewerServer(t *testing.T, maxConnections int) (*httptest.Server, *wshub.HubService, *framestore.Store) {
	t.Helper()

	cfg := &config.Config{
		MaxConnections: maxConnections,
		PushInterval:   10 * time.Millisecond,
		JPEGQuality:    50,
	}
	log := logger.NewNop()
	hub := wshub.NewHubService(cfg, log)
	store := framestore.New()

	server := httptest.NewServer(ViewWebsocketHandler(hub, store, byteEncoder{}, cfg, log))
	t.Cleanup(func() {
		hub.CloseAll()
		server.Close()
	})
	return server, hub, store
}

func dialViewer(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial viewer: %v", err)
	}
	return conn
}

func waitForCount(t *testing.T, hub *wshub.HubService, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() != want && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := hub.GetClientCount(); got != want {
		t.Fatalf("Expected %d connected viewers, got %d", want, got)
	}
}

// ========================================
// Streaming
// ========================================

func TestViewWebsocketHandler_StreamsLatestFrame(t *testing.T) {
	server, hub, store := setupViewerServer(t, 2)
	store.Set(&model.AnnotatedFrame{Image: &vision.Raster{Width: 1, Height: 1, Channels: 3, Pix: []byte("abc")}, Seq: 1})

	conn := dialViewer(t, server)
	defer conn.Close()
	waitForCount(t, hub, 1)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Errorf("Expected a text message, got type %d", kind)
	}
	if want := "data:image/jpeg;base64,YWJj"; string(msg) != want {
		t.Errorf("Expected %q, got %q", want, msg)
	}
}

func TestViewWebsocketHandler_NothingSentBeforeFirstFrame(t *testing.T) {
	server, hub, _ := setupViewerServer(t, 2)

	conn := dialViewer(t, server)
	defer conn.Close()
	waitForCount(t, hub, 1)

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected no message while the store is empty")
	}
}

// ========================================
// Connection limits
// ========================================

func TestViewWebsocketHandler_RefusesBeyondMaxConnections(t *testing.T) {
	server, hub, _ := setupViewerServer(t, 1)

	first := dialViewer(t, server)
	defer first.Close()
	waitForCount(t, hub, 1)

	second := dialViewer(t, server)
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := second.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("Expected close code 1008, got %v", err)
	}
	if ce, ok := err.(*websocket.CloseError); ok && ce.Text != "Max connections reached" {
		t.Errorf("Unexpected close reason %q", ce.Text)
	}
	if got := hub.GetClientCount(); got != 1 {
		t.Errorf("Expected the refused viewer not to be counted, got %d", got)
	}
}

func TestViewWebsocketHandler_DisconnectRemovesViewer(t *testing.T) {
	server, hub, _ := setupViewerServer(t, 3)

	conn := dialViewer(t, server)
	waitForCount(t, hub, 1)

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	conn.Close()

	waitForCount(t, hub, 0)
}

func TestViewWebsocketHandler_ConcurrentViewers(t *testing.T) {
	const viewers = 5
	server, hub, store := setupViewerServer(t, viewers)
	store.Set(&model.AnnotatedFrame{Image: &vision.Raster{Pix: []byte("x")}, Seq: 1})

	var wg sync.WaitGroup
	for i := 0; i < viewers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
			if err != nil {
				t.Errorf("Dial failed: %v", err)
				return
			}
			defer conn.Close()
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				t.Errorf("Viewer got no frame: %v", err)
			}
		}()
	}
	wg.Wait()

	waitForCount(t, hub, 0)
}
