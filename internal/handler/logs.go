package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"analytics/internal/logger"
)

var logFiles = map[string]string{
	"info":    "info.log",
	"warning": "warning.log",
	"error":   "error.log",
}

// ShowLogsHandler serves the log file named by the {level} path value as text/plain.
func ShowLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := logFiles[r.PathValue("level")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		serveLogFile(w, r, logger.Dir(), filename)
	}
}

// serveLogFile is a helper that sets headers and serves a log file if it exists.
func serveLogFile(w http.ResponseWriter, r *http.Request, logDir, filename string) {
	filePath := filepath.Join(logDir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Log file not found: " + filename))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, filePath)
}

// ClearLogsHandler truncates the log file named by the {level} path value.
func ClearLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := logFiles[r.PathValue("level")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		logger.CleanLogs(filename)
		w.WriteHeader(http.StatusNoContent)
	}
}
