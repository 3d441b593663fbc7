package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"time"

	"analytics/internal/config"
	"analytics/internal/handler"
	"analytics/internal/logger"
	"analytics/internal/route"
	"analytics/internal/service/ai"
	"analytics/internal/service/alert"
	"analytics/internal/service/framestore"
	"analytics/internal/service/pipeline"
	"analytics/internal/service/stats"
	"analytics/internal/service/tracker"
	"analytics/internal/service/vision/opencv"
	"analytics/internal/service/websocket"

	"github.com/shirou/gopsutil/v4/cpu"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config        *config.Config
	logger        *logger.Logger
	detector      *ai.DetectorService
	mqtt          *alert.MQTTSink
	alerts        *alert.Dispatcher
	pool          *pipeline.Pool
	dispatcher    *pipeline.Dispatcher
	hubService    *websocket.HubService
	stats         *stats.Collector
	router        http.Handler
	workers       int
	computeDevice string
}

// NewApp loads configuration and builds every component. A detector that
// cannot load its model is a startup error.
func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	workers := cfg.ProcessingWorkers
	if workers <= 0 {
		workers = cpuCount()
	}

	detector, err := ai.NewDetectorService(cfg, workers, log) // osobna siec dla kazdego workera
	if err != nil {
		return nil, fmt.Errorf("failed to initialize detector: %w", err)
	}

	var mirrors []alert.Sink
	var mqttSink *alert.MQTTSink
	if cfg.AlertMQTTBroker != "" {
		mqttSink, err = alert.NewMQTTSink(cfg.AlertMQTTBroker, cfg.AlertMQTTTopic, "analytics-"+cfg.SourceInfo, log)
		if err != nil {
			log.Warning("MQTT alert mirror disabled: %v", err)
		} else {
			mirrors = append(mirrors, mqttSink)
		}
	}

	codec := opencv.NewCodec()
	store := framestore.New()
	collector := stats.NewCollector(cfg.StatsWindow, log)
	alerts := alert.NewDispatcher(cfg, alert.NewHTTPSink(cfg.APIURL, cfg.AlertTimeout), log, mirrors...)
	tracks := tracker.New(tracker.Options{
		MaxAge:         cfg.TrackerMaxAge,
		NInit:          cfg.TrackerNInit,
		MaxIOUDistance: cfg.TrackerMaxIOUDistance,
	})

	processor := pipeline.NewFrameProcessor(codec, detector, tracks, store, alerts, collector, pipeline.ProcessorOptions{
		TargetClasses:       cfg.TargetClasses,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		PublishRawOnFailure: cfg.PublishRawOnFailure,
	}, log)
	pool := pipeline.NewPool(workers, cfg.MaxQueueSize, processor, log)
	dispatcher := pipeline.NewDispatcher(pool, cfg.MaxQueueSize, cfg.ReapEvery, collector, log)
	hub := websocket.NewHubService(cfg, log)

	a := &App{
		config:        cfg,
		logger:        log,
		detector:      detector,
		mqtt:          mqttSink,
		alerts:        alerts,
		pool:          pool,
		dispatcher:    dispatcher,
		hubService:    hub,
		stats:         collector,
		workers:       workers,
		computeDevice: computeDevice(detector),
	}

	a.router = route.SetupRoutes(route.Dependencies{
		Config:  cfg,
		Logger:  log,
		Hub:     hub,
		Frames:  store,
		Encoder: codec,
		Health: handler.HealthSources{
			Stats:         collector,
			Viewers:       hub,
			InFlight:      dispatcher,
			Alerts:        alerts,
			Workers:       workers,
			ComputeDevice: a.computeDevice,
		},
	})
	return a, nil
}

// Run serves until ctx is cancelled or a component fails, then shuts down:
// viewers are disconnected, admitted frames drained and workers stopped.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	conn, err := handler.ListenUDPCamera(fmt.Sprintf(":%d", a.config.UDPPort), a.config.UDPReadBuffer)
	if err != nil {
		return err
	}
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.HTTPPort))
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to listen on HTTP port %d: %w", a.config.HTTPPort, err)
	}

	server := &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("🚀 Vision Analytics Server\n")
	fmt.Printf("📍 Viewer: ws://localhost:%d/ws\n", a.config.HTTPPort)
	fmt.Printf("📷 Cameras: udp://0.0.0.0:%d\n", a.config.UDPPort)
	fmt.Printf("🤖 AI Model: %s (%d worker(s), %s)\n", a.config.ModelPath, a.workers, a.computeDevice)
	fmt.Printf("🚨 Alerts: %s/alerts\n", a.config.APIURL)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return handler.UDPCameraHandler(gctx, conn, a.dispatcher, a.hubService, a.logger)
	})
	g.Go(func() error {
		return a.alerts.Run(gctx)
	})
	g.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down...")
		a.hubService.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warning("HTTP shutdown: %v", err)
		}
		return nil
	})

	err = g.Wait()

	if derr := a.dispatcher.Drain(shutdownTimeout); derr != nil {
		a.logger.Warning("%v", derr)
	}
	return err
}

func (a *App) close() {
	a.pool.Stop()
	a.detector.Close()
	if a.mqtt != nil {
		a.mqtt.Close()
	}

	snap := a.stats.Snapshot()
	a.logger.Info("🛑 Stopped after %s: %d frame(s), %d dropped, %d failed",
		snap.Uptime(time.Now()).Round(time.Second), snap.TotalFrames, snap.DroppedFrames, snap.FailedFrames)
}

func cpuCount() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func computeDevice(detector *ai.DetectorService) string {
	device := detector.ComputeDevice()
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 && infos[0].ModelName != "" {
		return fmt.Sprintf("%s (%s)", device, infos[0].ModelName)
	}
	return device
}
