package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	BotToken string
	AdminID  string

	Environment string
	LogLevel    string

	// Ledger backend: "postgres", "redis" or "memory".
	LedgerBackend string
	DatabaseURL   string
	RedisURL      string

	MaxFreeUses  int
	MaxImageSize int64
	MaxVideoSize int64

	WorkDir         string
	JanitorInterval time.Duration
	JanitorMaxAge   time.Duration

	MaxConcurrentJobs int
	ImageJobTimeout   time.Duration
	VideoJobTimeout   time.Duration
	FetchTimeout      time.Duration

	MetricsPort int

	ArchiveEnabled    bool
	MinIOEndpoint     string
	MinIOAccessKey    string
	MinIOSecretKey    string
	MinIOBucket       string
	MinIOUseSSL       bool
	MinIORegion       string
	ArchiveRetainDays int
}

func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.BotToken = os.Getenv("BOT_TOKEN")
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}

	cfg.AdminID = os.Getenv("ADMIN_ID")

	cfg.LedgerBackend = getEnvString("LEDGER_BACKEND", "postgres")
	switch cfg.LedgerBackend {
	case "postgres":
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when LEDGER_BACKEND=postgres")
		}
	case "redis":
		cfg.RedisURL = os.Getenv("REDIS_URL")
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when LEDGER_BACKEND=redis")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unknown LEDGER_BACKEND: %s", cfg.LedgerBackend)
	}

	cfg.MaxFreeUses = getEnvInt("MAX_FREE_USES", 10)
	cfg.MaxImageSize = getEnvInt64("MAX_IMAGE_SIZE", 20*1024*1024)
	cfg.MaxVideoSize = getEnvInt64("MAX_VIDEO_SIZE", 50*1024*1024)

	cfg.WorkDir = getEnvString("WORK_DIR", os.TempDir()+"/upscalerd")
	cfg.JanitorInterval, err = getEnvDuration("JANITOR_INTERVAL", "1h")
	if err != nil {
		return nil, fmt.Errorf("invalid JANITOR_INTERVAL: %w", err)
	}
	cfg.JanitorMaxAge, err = getEnvDuration("JANITOR_MAX_AGE", "1h")
	if err != nil {
		return nil, fmt.Errorf("invalid JANITOR_MAX_AGE: %w", err)
	}

	cfg.MaxConcurrentJobs = getEnvInt("MAX_CONCURRENT_JOBS", 4)
	cfg.ImageJobTimeout, err = getEnvDuration("IMAGE_JOB_TIMEOUT", "5m")
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_JOB_TIMEOUT: %w", err)
	}
	cfg.VideoJobTimeout, err = getEnvDuration("VIDEO_JOB_TIMEOUT", "60m")
	if err != nil {
		return nil, fmt.Errorf("invalid VIDEO_JOB_TIMEOUT: %w", err)
	}
	cfg.FetchTimeout, err = getEnvDuration("FETCH_TIMEOUT", "2m")
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_TIMEOUT: %w", err)
	}

	cfg.MetricsPort = getEnvInt("METRICS_PORT", 9090)

	cfg.ArchiveEnabled = getEnvBool("ARCHIVE_ENABLED", false)
	if cfg.ArchiveEnabled {
		cfg.MinIOEndpoint = os.Getenv("MINIO_ENDPOINT")
		if cfg.MinIOEndpoint == "" {
			return nil, fmt.Errorf("MINIO_ENDPOINT is required when ARCHIVE_ENABLED=true")
		}
		cfg.MinIOAccessKey = os.Getenv("MINIO_ACCESS_KEY")
		if cfg.MinIOAccessKey == "" {
			return nil, fmt.Errorf("MINIO_ACCESS_KEY is required when ARCHIVE_ENABLED=true")
		}
		cfg.MinIOSecretKey = os.Getenv("MINIO_SECRET_KEY")
		if cfg.MinIOSecretKey == "" {
			return nil, fmt.Errorf("MINIO_SECRET_KEY is required when ARCHIVE_ENABLED=true")
		}
	}
	cfg.MinIOBucket = getEnvString("MINIO_BUCKET", "upscaler-results")
	cfg.MinIOUseSSL = getEnvBool("MINIO_USE_SSL", false)
	cfg.MinIORegion = getEnvString("MINIO_REGION", "us-east-1")
	cfg.ArchiveRetainDays = getEnvInt("ARCHIVE_RETAIN_DAYS", 30)

	cfg.Environment = getEnvString("ENVIRONMENT", "development")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key, defaultValue string) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	return time.ParseDuration(value)
}

func (c *Config) Validate() error {
	if c.MaxFreeUses < 0 {
		return fmt.Errorf("invalid max free uses: %d", c.MaxFreeUses)
	}

	if c.MaxImageSize < 1 || c.MaxVideoSize < 1 {
		return fmt.Errorf("invalid media size limits: image=%d video=%d", c.MaxImageSize, c.MaxVideoSize)
	}

	if c.MaxConcurrentJobs < 1 {
		return fmt.Errorf("invalid max concurrent jobs: %d", c.MaxConcurrentJobs)
	}

	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.MetricsPort)
	}

	return nil
}
