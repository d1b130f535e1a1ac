package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Drowsiness model variants selectable with DROWSINESS_MODE.
const (
	DrowsinessModeNone        = "none"
	DrowsinessModeProbability = "probability"
	DrowsinessModeDetection   = "detection"
)

type Config struct {
	Port           int
	GatewayPort    int
	ModelServerURL string
	GatewayTimeout int // seconds
	MaxBodyMB      int64
	Password       string

	DistractionModelPath  string
	DistractionLabelsPath string
	DistractionConfidence float64
	InputSize             int // longer side of the detector input
	NMSThreshold          float64

	DrowsinessMode        string
	DrowsinessModelPath   string
	DrowsinessLabelsPath  string
	DrowsinessConfidence  float64
	DrowsinessInputSize   int
	ProcessingWorkers     int
	SnapshotsEnabled      bool
	SnapshotDirectory     string
	SnapshotBufferLimit   int
	SnapshotFlushInterval int // seconds

	DatabasePath string
	LogDirectory string
}

// Load reads ENV_FILE (default .env) when present and builds the Config from the environment.
func Load() *Config {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("no %s file found, using system environment variables", envFile)
	}

	modelDir := getEnv("MODEL_DIR", filepath.Join(".", "models"))

	return &Config{
		Port:           getEnvAsInt("PORT", 5000),
		GatewayPort:    getEnvAsInt("GATEWAY_PORT", 3000),
		ModelServerURL: getEnv("MODEL_SERVER_URL", "http://localhost:5000/infer"),
		GatewayTimeout: getEnvAsInt("GATEWAY_TIMEOUT", 10),
		MaxBodyMB:      getEnvAsInt64("MAX_BODY_MB", 50),
		Password:       getEnv("PASSWORD", "driver-monitor"),

		DistractionModelPath:  getEnv("DISTRACTION_MODEL_PATH", filepath.Join(modelDir, "driver-behavior.onnx")),
		DistractionLabelsPath: getEnv("DISTRACTION_LABELS_PATH", filepath.Join(modelDir, "driver-behavior.txt")),
		DistractionConfidence: getEnvAsFloat("DISTRACTION_CONFIDENCE", 0.45),
		InputSize:             getEnvAsInt("DRIVER_INPUT_SIZE", 640),
		NMSThreshold:          getEnvAsFloat("NMS_THRESHOLD", 0.45),

		DrowsinessMode:        strings.ToLower(getEnv("DROWSINESS_MODE", DrowsinessModeProbability)),
		DrowsinessModelPath:   getEnv("DROWSINESS_MODEL_PATH", filepath.Join(modelDir, "drowsiness.onnx")),
		DrowsinessLabelsPath:  getEnv("DROWSINESS_LABELS_PATH", filepath.Join(modelDir, "drowsiness.txt")),
		DrowsinessConfidence:  getEnvAsFloat("DROWSINESS_CONFIDENCE", 0.45),
		DrowsinessInputSize:   getEnvAsInt("DROWSINESS_INPUT_SIZE", 224),
		ProcessingWorkers:     getEnvAsInt("PROCESSING_WORKERS", 2),
		SnapshotsEnabled:      getEnvAsBool("SNAPSHOTS_ENABLED", true),
		SnapshotDirectory:     getEnv("SNAPSHOT_DIR", filepath.Join(".", "snapshots")),
		SnapshotBufferLimit:   getEnvAsInt("SNAPSHOT_BUFFER_LIMIT", 10),
		SnapshotFlushInterval: getEnvAsInt("SNAPSHOT_FLUSH_INTERVAL", 30),

		DatabasePath: getEnv("DATABASE_PATH", filepath.Join(".", "data", "alerts.db")),
		LogDirectory: getEnv("LOG_DIR", filepath.Join(".", "logs")),
	}
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.DistractionConfidence <= 0 || c.DistractionConfidence >= 1 {
		return fmt.Errorf("distraction confidence must be in (0,1), got %v", c.DistractionConfidence)
	}
	if c.InputSize <= 0 || c.DrowsinessInputSize <= 0 {
		return fmt.Errorf("input sizes must be positive")
	}
	switch c.DrowsinessMode {
	case DrowsinessModeNone, DrowsinessModeProbability, DrowsinessModeDetection:
	default:
		return fmt.Errorf("unknown drowsiness mode %q", c.DrowsinessMode)
	}
	if c.ProcessingWorkers < 1 {
		return fmt.Errorf("at least one processing worker is required")
	}
	if c.SnapshotsEnabled && c.SnapshotBufferLimit < 1 {
		return fmt.Errorf("snapshot buffer limit must be positive when snapshots are enabled")
	}
	return nil
}

// ValidateGateway rejects values the relay gateway cannot run with.
func (c *Config) ValidateGateway() error {
	if c.GatewayPort <= 0 || c.GatewayPort > 65535 {
		return fmt.Errorf("invalid gateway port: %d", c.GatewayPort)
	}
	u, err := url.Parse(c.ModelServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("model server URL must be an absolute http(s) URL, got %q", c.ModelServerURL)
	}
	return nil
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
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
