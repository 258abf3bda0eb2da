package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppURL  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Storage backend: "local" or "s3"
	StorageDriver string
	LocalPath     string

	// S3-compatible storage (MinIO, AWS S3, Cloudflare R2, etc.)
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string // Optional: for S3-compatible services

	// Uploads
	MaxUploadSize int64 // bytes

	// Thumbnails
	FFmpegPath       string
	ThumbnailQuality int
	DeriveTimeout    time.Duration

	// Background processing
	QueueInterval     time.Duration
	ThumbnailSchedule string // cron expression for the thumbnail sweep
	StatsSchedule     string // cron expression for user stats aggregation

	// Observability (optional)
	SentryDSN string
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "pxldrop"),
		AppEnv:  envString("APP_ENV", "development"),
		AppURL:  envString("APP_URL", "http://localhost:8090"),
		Port:    envString("PORT", "8090"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/pxldrop.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),

		// Storage
		StorageDriver: envString("STORAGE_DRIVER", "local"),
		LocalPath:     envString("STORAGE_LOCAL_PATH", "./data/uploads"),
		S3Region:      envString("S3_REGION", "us-east-1"),
		S3Bucket:      envString("S3_BUCKET", "pxldrop"),
		S3AccessKey:   envString("S3_ACCESS_KEY", ""),
		S3SecretKey:   envString("S3_SECRET_KEY", ""),
		S3Endpoint:    envString("S3_ENDPOINT", ""), // Optional: for non-AWS providers

		// Uploads
		MaxUploadSize: envInt64("MAX_UPLOAD_SIZE", 100<<20), // 100 MB

		// Thumbnails
		FFmpegPath:       envString("FFMPEG_PATH", "ffmpeg"),
		ThumbnailQuality: envInt("THUMBNAIL_QUALITY", 80),
		DeriveTimeout:    envDuration("DERIVE_TIMEOUT", 30*time.Second),

		// Background processing
		QueueInterval:     envDuration("QUEUE_INTERVAL", 2*time.Second),
		ThumbnailSchedule: envString("THUMBNAIL_SCHEDULE", "*/15 * * * *"),
		StatsSchedule:     envString("STATS_SCHEDULE", "0 0 * * *"),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),
	}

	// Production: the S3 backend needs credentials up front
	if cfg.IsProduction() && cfg.StorageDriver == "s3" {
		if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
			slog.Error("production S3 storage requires S3_ACCESS_KEY and S3_SECRET_KEY",
				"hint", "set STORAGE_DRIVER=local for local disk storage")
			os.Exit(1)
		}
	}

	return cfg
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
