package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Pipeline
	Paths    PathsConfig
	Pipeline PipelineConfig
	Alerts   AlertConfig
	Schedule ScheduleConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	// Enabled false → file-only mode (no postgres sink)
	Enabled bool
	URL     string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// PathsConfig holds file locations
type PathsConfig struct {
	DataDir    string // raw partitions: <DataDir>/ingest_date=YYYY-MM-DD/
	OutDir     string // clean/quarantine/metrics outputs
	ReportsDir string // validation + alert reports
	RulesFile  string // optional YAML rules; "" = built-in defaults
}

// PipelineConfig holds runner settings
type PipelineConfig struct {
	Parallelism     int           // dates processed concurrently by ProcessRange
	LockTTL         time.Duration // per-date redis lock
	EventsChunkSize int           // 0 = read events in one pass
}

// AlertConfig holds partial-load heuristics and notification settings
type AlertConfig struct {
	MissingHoursThreshold int
	TrailingDays          int
	VolumeDropPct         float64
	ExpectedHours         int

	WebhookURL string  // "" disables notification
	WebhookRPS float64 // notifications per second
}

// ScheduleConfig holds cron specs (with seconds)
type ScheduleConfig struct {
	Daily         string
	Retention     string
	RetentionDays int
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Enabled:         getEnvAsBool("DB_ENABLED", false),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Paths: PathsConfig{
			DataDir:    getEnv("DATA_DIR", "data/raw"),
			OutDir:     getEnv("OUT_DIR", "data/out"),
			ReportsDir: getEnv("REPORTS_DIR", "reports"),
			RulesFile:  getEnv("RULES_FILE", ""),
		},

		Pipeline: PipelineConfig{
			Parallelism:     getEnvAsInt("PIPELINE_PARALLELISM", 4),
			LockTTL:         getEnvAsDuration("PIPELINE_LOCK_TTL", "10m"),
			EventsChunkSize: getEnvAsInt("EVENTS_CHUNK_SIZE", 0),
		},

		Alerts: AlertConfig{
			MissingHoursThreshold: getEnvAsInt("ALERT_MISSING_HOURS_THRESHOLD", 4),
			TrailingDays:          getEnvAsInt("ALERT_TRAILING_DAYS", 7),
			VolumeDropPct:         getEnvAsFloat("ALERT_VOLUME_DROP_PCT", 0.50),
			ExpectedHours:         getEnvAsInt("ALERT_EXPECTED_HOURS", 24),
			WebhookURL:            getEnv("ALERT_WEBHOOK_URL", ""),
			WebhookRPS:            getEnvAsFloat("ALERT_WEBHOOK_RPS", 1),
		},

		Schedule: ScheduleConfig{
			Daily:         getEnv("SCHEDULE_DAILY", "0 30 1 * * *"),
			Retention:     getEnv("SCHEDULE_RETENTION", "0 0 3 * * 0"),
			RetentionDays: getEnvAsInt("RETENTION_DAYS", 90),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required only with the postgres sink
	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when DB_ENABLED=true")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" && c.Env != "test" {
		return fmt.Errorf("ENV must be one of: development, staging, production, test")
	}

	if c.Pipeline.Parallelism < 1 {
		return fmt.Errorf("PIPELINE_PARALLELISM must be >= 1")
	}

	if c.Alerts.VolumeDropPct < 0 || c.Alerts.VolumeDropPct > 1 {
		return fmt.Errorf("ALERT_VOLUME_DROP_PCT must be within [0, 1]")
	}

	if c.Alerts.ExpectedHours < 1 || c.Alerts.ExpectedHours > 24 {
		return fmt.Errorf("ALERT_EXPECTED_HOURS must be within [1, 24]")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
