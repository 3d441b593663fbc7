package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"analytics/internal/config"

	"golang.org/x/time/rate"
)

// Logger provides leveled logging (debug/info/warning/error) to files and stdout/stderr.
type Logger struct {
	debugLog   *log.Logger
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	logDir     string
	debug      bool
	mu         sync.Mutex

	limitersMu sync.Mutex
	limiters   map[string]*rate.Sometimes
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(config *config.Config) *Logger {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	logger := &Logger{
		logDir:   config.LogDirectory,
		debug:    config.LogLevel == "DEBUG",
		limiters: make(map[string]*rate.Sometimes),
	}

	logger.setupLoggers()
	return logger
}

// NewNop returns a Logger that discards everything. Used by tests.
func NewNop() *Logger {
	l := &Logger{limiters: make(map[string]*rate.Sometimes)}
	l.debugLog = log.New(io.Discard, "", 0)
	l.infoLog = log.New(io.Discard, "", 0)
	l.warningLog = log.New(io.Discard, "", 0)
	l.errorLog = log.New(io.Discard, "", 0)
	return l
}

// setupLoggers initializes writers and per-level loggers.
func (l *Logger) setupLoggers() {
	infoFileHandle := l.openLogFile(filepath.Join(l.logDir, "info.log"))
	warningFileHandle := l.openLogFile(filepath.Join(l.logDir, "warning.log"))
	errorFileHandle := l.openLogFile(filepath.Join(l.logDir, "error.log"))

	infoWriter := io.MultiWriter(os.Stdout, infoFileHandle)
	warningWriter := io.MultiWriter(os.Stdout, warningFileHandle)
	errorWriter := io.MultiWriter(os.Stderr, errorFileHandle)

	l.debugLog = log.New(os.Stdout, "🔍 DEBUG   ", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	l.infoLog = log.New(infoWriter, "ℹ️  INFO    ", log.Ldate|log.Ltime|log.Lshortfile)
	l.warningLog = log.New(warningWriter, "⚠️  WARNING ", log.Ldate|log.Ltime|log.Lshortfile)
	l.errorLog = log.New(errorWriter, "❌ ERROR   ", log.Ldate|log.Ltime|log.Lshortfile)
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(filename string) *os.File {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file %s: %v", filename, err)
	}
	return file
}

// Dir returns the directory holding the log files.
func (l *Logger) Dir() string {
	return l.logDir
}

// Debug writes a formatted debug-level entry when LOG_LEVEL=DEBUG.
func (l *Logger) Debug(format string, v ...interface{}) {
	if !l.debug {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugLog.Output(2, fmt.Sprintf(format, v...))
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Output(2, fmt.Sprintf(format, v...))
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Output(2, fmt.Sprintf(format, v...))
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Output(2, fmt.Sprintf(format, v...))
}

// WarningEvery writes a warning at most once per interval for the given key.
// Used on hot paths such as backpressure drops.
func (l *Logger) WarningEvery(key string, interval time.Duration, format string, v ...interface{}) {
	l.limitersMu.Lock()
	s, ok := l.limiters[key]
	if !ok {
		s = &rate.Sometimes{First: 1, Interval: interval}
		l.limiters[key] = s
	}
	l.limitersMu.Unlock()

	s.Do(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.warningLog.Output(3, fmt.Sprintf(format, v...))
	})
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) {
	filePath := filepath.Join(l.logDir, fileName)
	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		l.Error("Error opening file: %v", err)
		return
	}
	defer file.Close()

	l.Info("File %s has been cleared.", fileName)
}
