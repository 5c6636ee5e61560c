package configuration

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	StoreMemory = "memory"
	StoreRemote = "remote"

	ImagesPostgres = "postgres"
	ImagesMinio    = "minio"
)

type Config struct {
	Database      DatabaseConfig
	MinIO         MinIOConfig
	Server        ServerConfig
	Thumbnails    ThumbnailConfig
	Watch         WatchConfig
	StoreBackend  string
	ImageBackend  string
	PublicationID string
	NATSURL       string
	CLAMAVURL     string
	WriteTimeout  time.Duration
	TraceEnabled  bool
	LogLevel      string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type MinIOConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	UseSSL     bool
}

type ServerConfig struct {
	Port string
}

type ThumbnailConfig struct {
	SmallBound int
	LargeBound int
	Quality    float64
	CacheSize  int
	CacheTTL   time.Duration
}

type WatchConfig struct {
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Resync         time.Duration
}

func Load() (*Config, error) {
	var errs []error
	intVar := func(key string, def int) int {
		v, err := strconv.Atoi(getEnv(key, strconv.Itoa(def)))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return v
	}
	floatVar := func(key string, def float64) float64 {
		v, err := strconv.ParseFloat(getEnv(key, strconv.FormatFloat(def, 'f', -1, 64)), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return v
	}
	durationVar := func(key string, def time.Duration) time.Duration {
		v, err := time.ParseDuration(getEnv(key, def.String()))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return v
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "fileuser"),
			Password: getEnv("DB_PASSWORD", "filepassword"),
			DBName:   getEnv("DB_NAME", "publications"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		MinIO: MinIOConfig{
			Endpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin"),
			BucketName: getEnv("MINIO_BUCKET", "publication-images"),
			UseSSL:     getEnv("MINIO_USE_SSL", "false") == "true",
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Thumbnails: ThumbnailConfig{
			SmallBound: intVar("THUMB_SMALL", 200),
			LargeBound: intVar("THUMB_LARGE", 600),
			Quality:    floatVar("THUMB_QUALITY", 1.0),
			CacheSize:  intVar("THUMB_CACHE_SIZE", 512),
			CacheTTL:   durationVar("THUMB_CACHE_TTL", 10*time.Minute),
		},
		Watch: WatchConfig{
			BackoffInitial: durationVar("WATCH_BACKOFF_INITIAL", time.Second),
			BackoffMax:     durationVar("WATCH_BACKOFF_MAX", 30*time.Second),
			Resync:         durationVar("WATCH_RESYNC", 30*time.Second),
		},
		StoreBackend:  getEnv("STORE_BACKEND", StoreMemory),
		ImageBackend:  getEnv("IMAGE_BACKEND", ImagesPostgres),
		PublicationID: getEnv("PUBLICATION_ID", "-Juqip8bcmF7u3z97fbe"),
		NATSURL:       getEnv("NATS_URL", "nats://localhost:4222"),
		CLAMAVURL:     getEnv("CLAMAV_URL", ""),
		WriteTimeout:  durationVar("REMOTE_WRITE_TIMEOUT", 10*time.Second),
		TraceEnabled:  getEnv("DD_TRACE_ENABLED", "false") == "true",
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory, StoreRemote:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.ImageBackend {
	case ImagesPostgres, ImagesMinio:
	default:
		return fmt.Errorf("unknown IMAGE_BACKEND %q", c.ImageBackend)
	}
	if c.Thumbnails.SmallBound <= 0 || c.Thumbnails.LargeBound <= 0 {
		return fmt.Errorf("thumbnail bounds must be positive")
	}
	if c.Thumbnails.Quality <= 0 || c.Thumbnails.Quality > 1 {
		return fmt.Errorf("THUMB_QUALITY must be in (0, 1]")
	}
	if c.Thumbnails.CacheSize <= 0 {
		return fmt.Errorf("THUMB_CACHE_SIZE must be positive")
	}
	if c.PublicationID == "" {
		return fmt.Errorf("PUBLICATION_ID is required")
	}
	if c.WriteTimeout <= 0 || c.Watch.BackoffInitial <= 0 || c.Watch.BackoffMax < c.Watch.BackoffInitial {
		return fmt.Errorf("invalid timeout or backoff settings")
	}
	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
