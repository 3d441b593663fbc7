package route

import (
	"net/http"
	"os"
	"path/filepath"

	"analytics/internal/config"
	"analytics/internal/handler"
	"analytics/internal/logger"
	"analytics/internal/middleware"
	wshub "analytics/internal/service/websocket"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the components the HTTP surface reads from.
type Dependencies struct {
	Config  *config.Config
	Logger  *logger.Logger
	Hub     *wshub.HubService
	Frames  wshub.FrameSource
	Encoder wshub.FrameEncoder
	Health  handler.HealthSources
}

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers the viewer socket, status and log endpoints and wraps
// the mux with the logging middleware.
func SetupRoutes(deps Dependencies) http.Handler {
	cfg, logger := deps.Config, deps.Logger
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// Viewer stream and status
	mux.HandleFunc("/ws", handler.ViewWebsocketHandler(deps.Hub, deps.Frames, deps.Encoder, cfg, logger))
	mux.HandleFunc("/health", handler.HealthHandler(deps.Health, logger))
	mux.Handle("GET /metrics", promhttp.Handler())

	// Log endpoints
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(logger))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(logger))

	// Automatic HTML handler mapping, e.g. / -> /static/index.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	return middleware.LoggingMiddleware(logger, mux)
}
