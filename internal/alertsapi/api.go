// Package alertsapi receives alerts from the analytics server and serves them
// back to dashboards.
package alertsapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"analytics/internal/config"
	"analytics/internal/dto"
	"analytics/internal/logger"
	"analytics/internal/model"
	"analytics/internal/repository"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
	pruneEvery       = 50
	datetimeLayout   = "2006-01-02 15:04:05"
)

// TrackID accepts a JSON string or number.
type TrackID string

func (id *TrackID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TrackID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("track_id must be a string or a number: %w", err)
	}
	*id = TrackID(n.String())
	return nil
}

type createAlertInput struct {
	Timestamp      float64    `json:"timestamp"`
	TrackID        TrackID    `json:"track_id"`
	BBoxNormalized [4]float64 `json:"bbox_normalized"`
	Confidence     float64    `json:"confidence"`
	ClassID        int        `json:"class_id"`
	SourceInfo     string     `json:"source_info"`
}

type API struct {
	repo      repository.AlertRepository
	retention int
	streamURL string
	logger    *logger.Logger
	inserted  atomic.Uint64
	now       func() time.Time
}

func New(repo repository.AlertRepository, cfg *config.Config, logger *logger.Logger) *API {
	return &API{
		repo:      repo,
		retention: cfg.AlertsRetention,
		streamURL: fmt.Sprintf("http://%s:%d/ws", cfg.HostIP, cfg.HTTPPort),
		logger:    logger,
		now:       time.Now,
	}
}

// Router builds the gin engine with recovery, request logging and allow-all CORS.
func (a *API) Router() *gin.Engine {
	r := gin.New()
	r.Use(
		gin.CustomRecovery(func(c *gin.Context, err any) {
			a.logger.Error("panic in %s %s: %v\n%s", c.Request.Method, c.Request.URL.Path, err, debug.Stack())
			c.AbortWithStatus(http.StatusInternalServerError)
		}),
		a.requestLogger(),
	)
	r.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
		AllowOriginFunc: func(_ string) bool {
			return true
		},
	}))

	r.GET("/", a.root)
	r.POST("/alerts", a.createAlert)
	r.GET("/alerts", a.listAlerts)
	r.GET("/stats", a.stats)
	r.GET("/stream-info", a.streamInfo)
	return r
}

func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.Method == http.MethodOptions {
			return
		}
		a.logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (a *API) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": "1.0.0"})
}

func (a *API) createAlert(c *gin.Context) {
	var in createAlertInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	now := a.now()
	ts := now
	if in.Timestamp > 0 {
		ts = time.Unix(0, int64(in.Timestamp*1e9))
	}

	alert := &model.StoredAlert{
		UID:        uuid.NewString(),
		Timestamp:  ts,
		TrackID:    string(in.TrackID),
		BBox:       in.BBoxNormalized,
		Confidence: in.Confidence,
		ClassID:    in.ClassID,
		SourceInfo: in.SourceInfo,
		ReceivedAt: now,
	}
	if _, err := a.repo.Insert(alert); err != nil {
		a.logger.Error("Failed to store alert for track %s: %v", alert.TrackID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to store alert"})
		return
	}
	a.logger.Info("🚨 Alert stored: track %s class %d (%.2f) from %s", alert.TrackID, alert.ClassID, alert.Confidence, alert.SourceInfo)

	if a.retention > 0 && a.inserted.Add(1)%pruneEvery == 0 {
		if removed, err := a.repo.Prune(a.retention); err != nil {
			a.logger.Warning("Failed to prune alerts: %v", err)
		} else if removed > 0 {
			a.logger.Info("Pruned %d old alert(s)", removed)
		}
	}

	c.JSON(http.StatusOK, dto.AlertCreated{Status: "success", ID: alert.UID})
}

func (a *API) listAlerts(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	alerts, err := a.repo.List(limit)
	if err != nil {
		a.logger.Error("Failed to list alerts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to list alerts"})
		return
	}

	out := dto.AlertList{Alerts: make([]dto.StoredAlert, 0, len(alerts))}
	for _, al := range alerts {
		out.Alerts = append(out.Alerts, toDTO(al))
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) stats(c *gin.Context) {
	stats, err := a.repo.Stats()
	if err != nil {
		a.logger.Error("Failed to read alert stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to read stats"})
		return
	}

	out := dto.AlertStats{Tracks: stats.Tracks, Alerts: stats.Alerts}
	if stats.LastAlert != nil {
		last := stats.LastAlert.Format(datetimeLayout)
		out.LastAlert = &last
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) streamInfo(c *gin.Context) {
	c.JSON(http.StatusOK, dto.StreamInfo{AnalyticsStream: a.streamURL, Status: "active"})
}

func toDTO(a model.StoredAlert) dto.StoredAlert {
	return dto.StoredAlert{
		Alert: dto.Alert{
			Timestamp:      float64(a.Timestamp.UnixNano()) / 1e9,
			TrackID:        a.TrackID,
			BBoxNormalized: a.BBox,
			Confidence:     a.Confidence,
			ClassID:        a.ClassID,
			SourceInfo:     a.SourceInfo,
		},
		ID:       a.UID,
		Datetime: a.Timestamp.Format(datetimeLayout),
	}
}
