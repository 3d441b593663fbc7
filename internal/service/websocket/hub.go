package websocket

import (
	"errors"
	"sync"
	"time"

	"analytics/internal/config"
	"analytics/internal/logger"
	"analytics/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrHubFull is returned by TryRegister when MaxConnections viewers are connected.
var ErrHubFull = errors.New("max connections reached")

// Client is one registered viewer connection.
type Client struct {
	ID          string
	Conn        *websocket.Conn
	ConnectedAt time.Time
}

type HubService struct {
	clients        map[string]*Client
	maxConnections int
	mutex          sync.RWMutex
	done           chan struct{}
	closeOnce      sync.Once
	logger         *logger.Logger
}

func NewHubService(config *config.Config, logger *logger.Logger) *HubService {
	return &HubService{
		clients:        make(map[string]*Client),
		maxConnections: config.MaxConnections,
		done:           make(chan struct{}),
		logger:         logger,
	}
}

// TryRegister admits a viewer unless the hub is full or shutting down.
// The check and the insert happen under one lock.
func (h *HubService) TryRegister(conn *websocket.Conn) (*Client, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	select {
	case <-h.done:
		return nil, ErrHubFull
	default:
	}

	if h.maxConnections > 0 && len(h.clients) >= h.maxConnections {
		metrics.ViewersRefused.Inc()
		return nil, ErrHubFull
	}

	client := &Client{
		ID:          uuid.NewString(),
		Conn:        conn,
		ConnectedAt: time.Now(),
	}
	h.clients[client.ID] = client
	metrics.ViewersConnected.Set(float64(len(h.clients)))
	h.logger.Info("Client %s connected. Total: %d", client.ID, len(h.clients))
	return client, nil
}

// Unregister removes the viewer and closes its connection. Safe to call twice.
func (h *HubService) Unregister(id string) {
	h.mutex.Lock()
	client, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	total := len(h.clients)
	metrics.ViewersConnected.Set(float64(total))
	h.mutex.Unlock()

	if !ok {
		return
	}
	client.Conn.Close()
	h.logger.Info("Client %s disconnected after %s. Total: %d", id, time.Since(client.ConnectedAt).Round(time.Second), total)
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Done is closed when the hub shuts down.
func (h *HubService) Done() <-chan struct{} {
	return h.done
}

// CloseAll refuses new viewers and disconnects the current ones.
func (h *HubService) CloseAll() {
	h.closeOnce.Do(func() {
		h.mutex.Lock()
		close(h.done)
		clients := make([]*Client, 0, len(h.clients))
		for _, c := range h.clients {
			clients = append(clients, c)
		}
		h.mutex.Unlock()

		deadline := time.Now().Add(time.Second)
		for _, c := range clients {
			c.Conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
			h.Unregister(c.ID)
		}
		h.logger.Info("Closed %d viewer connection(s)", len(clients))
	})
}
