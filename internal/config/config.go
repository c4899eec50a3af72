package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the filmstack server and worker.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Ingest   IngestConfig
	API      APIConfig
	Admin    AdminConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type StorageConfig struct {
	// UploadDir is where submitted CSV files are kept. Files are not
	// deleted after processing.
	UploadDir string
}

type IngestConfig struct {
	// ChunkSize is the number of CSV rows read and inserted per batch.
	// It bounds peak memory regardless of file size.
	ChunkSize int
	// QueueKey is the Redis list the dispatcher pushes job IDs onto.
	QueueKey string
}

type APIConfig struct {
	DefaultPageSize int
	RateLimitPerMin int
	SessionTTL      time.Duration
}

type AdminConfig struct {
	Username string
	Password string
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("FILMSTACK_PORT", 8080),
			Env:  envString("FILMSTACK_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Storage: StorageConfig{
			UploadDir: envString("UPLOAD_DIR", "/var/lib/filmstack/uploads"),
		},
		Ingest: IngestConfig{
			ChunkSize: envInt("INGEST_CHUNK_SIZE", 500),
			QueueKey:  envString("INGEST_QUEUE_KEY", "ingest:jobs"),
		},
		API: APIConfig{
			DefaultPageSize: envInt("API_DEFAULT_PAGE_SIZE", 20),
			RateLimitPerMin: envInt("API_RATE_LIMIT_PER_MIN", 60),
			SessionTTL:      envDuration("API_SESSION_TTL", 24*time.Hour),
		},
		Admin: AdminConfig{
			Username: envString("ADMIN_USERNAME", "admin"),
			Password: os.Getenv("ADMIN_PASSWORD"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Storage.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR must not be empty")
	}

	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("INGEST_CHUNK_SIZE must be positive, got %d", c.Ingest.ChunkSize)
	}

	if c.API.DefaultPageSize <= 0 {
		return fmt.Errorf("API_DEFAULT_PAGE_SIZE must be positive, got %d", c.API.DefaultPageSize)
	}

	if c.Admin.Password == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
