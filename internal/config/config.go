package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	HTTPPort      int
	UDPPort       int
	UDPReadBuffer int

	ModelPath           string
	ConfigPath          string
	ConfidenceThreshold float64
	IOUThreshold        float64
	ImageWidth          int // Docelowy rozmiar wejścia sieci
	ImageHeight         int
	TargetClasses       []int

	TrackerMaxAge         int
	TrackerNInit          int
	TrackerMaxIOUDistance float64

	JPEGQuality         int
	MaxConnections      int
	MaxQueueSize        int // Maksymalna liczba klatek w trakcie przetwarzania
	ReapEvery           int
	ProcessingWorkers   int // 0 = liczba rdzeni
	PushInterval        time.Duration
	StatsWindow         time.Duration
	PublishRawOnFailure bool

	APIURL           string
	AlertTimeout     time.Duration
	AlertQueue       int
	AlertConcurrency int
	AlertMQTTBroker  string
	AlertMQTTTopic   string
	SourceInfo       string

	AlertsPort      int
	AlertsDB        string
	AlertsRetention int
	HostIP          string // Adres podawany klientom w /stream-info

	LogDirectory string
	LogLevel     string
}

// fileConfig mirrors the optional TOML file. Zero values leave defaults untouched.
type fileConfig struct {
	HTTPPort            int     `toml:"http_port"`
	UDPPort             int     `toml:"udp_port"`
	ModelPath           string  `toml:"model_path"`
	ConfigPath          string  `toml:"config_path"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	IOUThreshold        float64 `toml:"iou_threshold"`
	ImageWidth          int     `toml:"img_size_w"`
	ImageHeight         int     `toml:"img_size_h"`
	TargetClasses       []int   `toml:"target_classes"`
	JPEGQuality         int     `toml:"jpeg_quality"`
	MaxConnections      int     `toml:"max_connections"`
	MaxQueueSize        int     `toml:"max_queue_size"`
	ProcessingWorkers   int     `toml:"processing_workers"`
	APIURL              string  `toml:"api_url"`
	SourceInfo          string  `toml:"source_info"`
	LogDirectory        string  `toml:"log_dir"`
	LogLevel            string  `toml:"log_level"`
}

// Load builds the configuration from defaults, an optional TOML file (CONFIG_FILE),
// a .env file and the process environment, in increasing priority.
func Load() *Config {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", path, err)
		}
	}
	cfg.applyEnv()
	return cfg
}

func defaults() *Config {
	return &Config{
		HTTPPort:              8080,
		UDPPort:               5005,
		UDPReadBuffer:         262144,
		ModelPath:             filepath.Join(".", "models", "frozen_inference_graph.pb"),
		ConfigPath:            filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt"),
		ConfidenceThreshold:   0.5,
		IOUThreshold:          0.45,
		ImageWidth:            320,
		ImageHeight:           320,
		TargetClasses:         []int{1}, // osoba w COCO dla SSD
		TrackerMaxAge:         30,
		TrackerNInit:          3,
		TrackerMaxIOUDistance: 0.7,
		JPEGQuality:           50,
		MaxConnections:        10,
		MaxQueueSize:          10,
		ReapEvery:             10,
		ProcessingWorkers:     0,
		PushInterval:          20 * time.Millisecond,
		StatsWindow:           5 * time.Second,
		PublishRawOnFailure:   true,
		APIURL:                "http://api:8000",
		AlertTimeout:          2 * time.Second,
		AlertQueue:            256,
		AlertConcurrency:      4,
		AlertMQTTTopic:        "analytics/alerts",
		SourceInfo:            "camera_udp_0",
		AlertsPort:            8000,
		AlertsDB:              filepath.Join(".", "data", "alerts.db"),
		AlertsRetention:       1000,
		HostIP:                "localhost",
		LogDirectory:          filepath.Join(".", "logs"),
		LogLevel:              "INFO",
	}
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse toml: %w", err)
	}

	setInt(&c.HTTPPort, fc.HTTPPort)
	setInt(&c.UDPPort, fc.UDPPort)
	setString(&c.ModelPath, fc.ModelPath)
	setString(&c.ConfigPath, fc.ConfigPath)
	setFloat(&c.ConfidenceThreshold, fc.ConfidenceThreshold)
	setFloat(&c.IOUThreshold, fc.IOUThreshold)
	setInt(&c.ImageWidth, fc.ImageWidth)
	setInt(&c.ImageHeight, fc.ImageHeight)
	if len(fc.TargetClasses) > 0 {
		c.TargetClasses = fc.TargetClasses
	}
	setInt(&c.JPEGQuality, fc.JPEGQuality)
	setInt(&c.MaxConnections, fc.MaxConnections)
	setInt(&c.MaxQueueSize, fc.MaxQueueSize)
	setInt(&c.ProcessingWorkers, fc.ProcessingWorkers)
	setString(&c.APIURL, fc.APIURL)
	setString(&c.SourceInfo, fc.SourceInfo)
	setString(&c.LogDirectory, fc.LogDirectory)
	setString(&c.LogLevel, fc.LogLevel)
	return nil
}

func (c *Config) applyEnv() {
	c.HTTPPort = getEnvAsInt("HTTP_PORT", c.HTTPPort)
	c.UDPPort = getEnvAsInt("UDP_PORT", c.UDPPort)
	c.UDPReadBuffer = getEnvAsInt("UDP_READ_BUFFER", c.UDPReadBuffer)

	c.ModelPath = getEnv("MODEL_PATH", c.ModelPath)
	c.ConfigPath = getEnv("CONFIG_PATH", c.ConfigPath)
	c.ConfidenceThreshold = getEnvAsFloat("CONFIDENCE_THRESHOLD", c.ConfidenceThreshold)
	c.IOUThreshold = getEnvAsFloat("IOU_THRESHOLD", c.IOUThreshold)
	c.ImageWidth = getEnvAsInt("IMG_SIZE_W", c.ImageWidth)
	c.ImageHeight = getEnvAsInt("IMG_SIZE_H", c.ImageHeight)
	c.TargetClasses = getEnvAsIntList("TARGET_CLASSES", c.TargetClasses)

	c.TrackerMaxAge = getEnvAsInt("TRACKER_MAX_AGE", c.TrackerMaxAge)
	c.TrackerNInit = getEnvAsInt("TRACKER_N_INIT", c.TrackerNInit)
	c.TrackerMaxIOUDistance = getEnvAsFloat("TRACKER_MAX_IOU_DISTANCE", c.TrackerMaxIOUDistance)

	c.JPEGQuality = getEnvAsInt("JPEG_QUALITY", c.JPEGQuality)
	c.MaxConnections = getEnvAsInt("MAX_CONNECTIONS", c.MaxConnections)
	c.MaxQueueSize = getEnvAsInt("MAX_QUEUE_SIZE", c.MaxQueueSize)
	c.ReapEvery = getEnvAsInt("REAP_EVERY", c.ReapEvery)
	c.ProcessingWorkers = getEnvAsInt("PROCESSING_WORKERS", c.ProcessingWorkers)
	c.PushInterval = getEnvAsMillis("PUSH_INTERVAL_MS", c.PushInterval)
	c.StatsWindow = time.Duration(getEnvAsInt("STATS_WINDOW_S", int(c.StatsWindow/time.Second))) * time.Second
	c.PublishRawOnFailure = getEnvAsBool("PUBLISH_RAW_ON_FAILURE", c.PublishRawOnFailure)

	c.APIURL = strings.TrimRight(getEnv("API_URL", c.APIURL), "/")
	c.AlertTimeout = getEnvAsMillis("ALERT_TIMEOUT_MS", c.AlertTimeout)
	c.AlertQueue = getEnvAsInt("ALERT_QUEUE", c.AlertQueue)
	c.AlertConcurrency = getEnvAsInt("ALERT_CONCURRENCY", c.AlertConcurrency)
	c.AlertMQTTBroker = getEnv("ALERT_MQTT_BROKER", c.AlertMQTTBroker)
	c.AlertMQTTTopic = getEnv("ALERT_MQTT_TOPIC", c.AlertMQTTTopic)
	c.SourceInfo = getEnv("SOURCE_INFO", c.SourceInfo)

	c.AlertsPort = getEnvAsInt("ALERTS_PORT", c.AlertsPort)
	c.AlertsDB = getEnv("ALERTS_DB", c.AlertsDB)
	c.AlertsRetention = getEnvAsInt("ALERTS_RETENTION", c.AlertsRetention)
	c.HostIP = getEnv("HOST_IP", c.HostIP)

	c.LogDirectory = getEnv("LOG_DIR", c.LogDirectory)
	c.LogLevel = strings.ToUpper(getEnv("LOG_LEVEL", c.LogLevel))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsMillis(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

// getEnvAsIntList parses a comma separated list such as "1,3,8".
func getEnvAsIntList(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// SenderConfig configures the camera sender.
type SenderConfig struct {
	AnalyticsHost string
	UDPPort       int
	CameraURL     string // URL albo plik wideo; pusty = lokalna kamera
	CameraID      int
	LoopVideo     bool
	FrameWidth    int
	FrameHeight   int
	JPEGQuality   int
	SendInterval  time.Duration
	LogDirectory  string
	LogLevel      string
}

// LoadSender reads the sender settings from .env and the environment.
func LoadSender() *SenderConfig {
	_ = godotenv.Load()

	return &SenderConfig{
		AnalyticsHost: getEnv("ANALYTICS_HOST", "analytics"),
		UDPPort:       getEnvAsInt("UDP_PORT", 5005),
		CameraURL:     getEnv("CAMERA_URL", ""),
		CameraID:      getEnvAsInt("CAMERA_ID", -1),
		LoopVideo:     getEnvAsBool("USE_TEST_VIDEO", false),
		FrameWidth:    getEnvAsInt("FRAME_WIDTH", 640),
		FrameHeight:   getEnvAsInt("FRAME_HEIGHT", 480),
		JPEGQuality:   getEnvAsInt("SENDER_JPEG_QUALITY", 80),
		SendInterval:  getEnvAsMillis("SEND_INTERVAL_MS", 50*time.Millisecond),
		LogDirectory:  getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:      strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
	}
}
