package handler

import (
	"errors"
	"net/http"
	"time"

	"analytics/internal/config"
	"analytics/internal/logger"
	wshub "analytics/internal/service/websocket"

	"github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler streams the latest annotated frame to a viewer. Viewers
// beyond MaxConnections receive close code 1008 and are disconnected.
func ViewWebsocketHandler(hub *wshub.HubService, source wshub.FrameSource, encoder wshub.FrameEncoder, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	opts := wshub.StreamOptions{
		Interval: cfg.PushInterval,
		Quality:  cfg.JPEGQuality,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		client, err := hub.TryRegister(connection)
		if err != nil {
			if errors.Is(err, wshub.ErrHubFull) {
				logger.Warning("Viewer %s refused: max connections reached", r.RemoteAddr)
			}
			connection.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Max connections reached"),
				time.Now().Add(time.Second))
			connection.Close()
			return
		}
		defer hub.Unregister(client.ID)

		if err := hub.Stream(r.Context(), client, source, encoder, opts); err != nil {
			logger.Warning("Viewer %s disconnected with error: %v", client.ID, err)
			return
		}
		logger.Info("Viewer %s disconnected normally", client.ID)
	}
}
