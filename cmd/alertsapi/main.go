// Command alertsapi receives alerts posted by the analytics server and serves
// them to dashboards.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"analytics/internal/alertsapi"
	"analytics/internal/config"
	"analytics/internal/logger"
	"analytics/internal/repository/sqlite"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	appLogger := logger.NewLogger(cfg)

	db, err := sqlite.New(cfg.AlertsDB)
	if err != nil {
		log.Fatalf("Failed to open alerts database: %v", err)
	}
	defer db.Close()

	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}
	api := alertsapi.New(sqlite.NewAlertRepository(db), cfg, appLogger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AlertsPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	fmt.Printf("🚨 Alerts API\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", cfg.AlertsPort)
	fmt.Printf("💾 Database: %s (keeping %d alerts)\n", cfg.AlertsDB, cfg.AlertsRetention)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start alerts API: %v", err)
	}
	appLogger.Info("Alerts API stopped")
}
