package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// SQLiteConfig holds the embedded store settings.
type SQLiteConfig struct {
	Path string
}

// StoreConfig selects and configures the point store.
type StoreConfig struct {
	Backend  string
	DataDir  string
	SQLite   SQLiteConfig
	Database DatabaseConfig
}

// MinIOConfig holds object storage settings for MinIO. Archives are disabled when Endpoint is empty.
type MinIOConfig struct {
	Endpoint         string
	AccessKey        string
	SecretKey        string
	Bucket           string
	UseSSL           bool
	URLExpirySeconds int
}

// Enabled reports whether object storage is configured.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

// ConsulConfig holds service registration settings. Registration is skipped when Address is empty.
type ConsulConfig struct {
	Address        string
	ServiceName    string
	ServiceAddress string
}

// Enabled reports whether consul registration is configured.
func (c ConsulConfig) Enabled() bool {
	return c.Address != ""
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
	File  string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost            string
	Port               string
	Timezone           string
	BodyLimitBytes     int
	MaxBatchSize       int
	ShutdownTimeoutSec int
	Log                LogConfig
	Store              StoreConfig
	MinIO              MinIOConfig
	Consul             ConsulConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	dataDir := getEnv("DATA_DIR", defaultDataDir())

	return &AppConfig{
		AppHost:            getEnv("APP_HOST", "localhost:8080"),
		Port:               getEnv("PORT", "8080"),
		Timezone:           getEnv("APP_TIMEZONE", "UTC"),
		BodyLimitBytes:     getEnvInt("BODY_LIMIT_BYTES", 4<<20),
		MaxBatchSize:       getEnvInt("MAX_BATCH_SIZE", 1000),
		ShutdownTimeoutSec: getEnvInt("SHUTDOWN_TIMEOUT_SEC", 10),
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", BackendSQLite)),
			DataDir: dataDir,
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", filepath.Join(dataDir, "paustdb.db")),
			},
			Database: DatabaseConfig{
				Host:               getEnv("DB_HOST", ""),
				Port:               getEnv("DB_PORT", "5432"),
				User:               getEnv("DB_USER", ""),
				Password:           getEnv("DB_PASSWORD", ""),
				Name:               getEnv("DB_NAME", ""),
				SSLMode:            getEnv("DB_SSLMODE", "disable"),
				MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
				MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
				ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
			},
		},
		MinIO: MinIOConfig{
			Endpoint:         getEnv("MINIO_ENDPOINT", ""),
			AccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:        getEnv("MINIO_SECRET_KEY", ""),
			Bucket:           getEnv("MINIO_BUCKET", ""),
			UseSSL:           getEnvBool("MINIO_USE_SSL", false),
			URLExpirySeconds: getEnvInt("ARCHIVE_URL_EXPIRY_SEC", 900),
		},
		Consul: ConsulConfig{
			Address:        getEnv("CONSUL_ADDR", ""),
			ServiceName:    getEnv("CONSUL_SERVICE_NAME", "paustdb"),
			ServiceAddress: getEnv("CONSUL_SERVICE_ADDRESS", ""),
		},
	}
}

// Validate rejects settings the server cannot start with.
func (c *AppConfig) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendSQLite, BackendPostgres:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: want memory, sqlite or postgres", c.Store.Backend)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "error", "none":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q: want debug, info, error or none", c.Log.Level)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("MAX_BATCH_SIZE must be positive, got %d", c.MaxBatchSize)
	}
	return nil
}

// Location returns the configured log timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".paust-db"
	}
	return filepath.Join(home, ".paust-db")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
