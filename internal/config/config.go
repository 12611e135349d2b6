package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	BackendLocal = "local"
	BackendMinIO = "minio"
)

// Delete modes.
const (
	DeleteModeSoft = "soft"
	DeleteModeHard = "hard"
)

// Config aggregates runtime configuration for the CryptoVault API.
type Config struct {
	Server      ServerConfig
	Postgres    PostgresConfig
	MinIO       MinIOConfig
	Auth        AuthConfig
	Metrics     MetricsConfig
	Storage     StorageConfig
	Maintenance MaintenanceConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Database      string
	SSLMode       string
	RunMigrations bool
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MinIOConfig carries MinIO connection and bucket information.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	BcryptCost         int
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// StorageConfig controls where ciphertext lives and how much a tenant may keep.
type StorageConfig struct {
	Backend          string
	Root             string
	QuotaBytes       int64
	MaxFileSize      int64
	DeleteMode       string
	PermissionScheme string
}

// MaintenanceConfig drives the reconciliation sweep.
type MaintenanceConfig struct {
	// SweepInterval of zero disables the in-process sweep.
	SweepInterval time.Duration
	// OrphanGracePeriod protects blobs of uploads still waiting on their metadata commit.
	OrphanGracePeriod time.Duration
	DryRun            bool
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:         getString("VAULT_API_HOST", "0.0.0.0"),
			Port:         getInt("VAULT_API_PORT", 8080),
			ReadTimeout:  getDuration("VAULT_API_READ_TIMEOUT", 60*time.Second),
			WriteTimeout: getDuration("VAULT_API_WRITE_TIMEOUT", 120*time.Second),
			IdleTimeout:  getDuration("VAULT_API_IDLE_TIMEOUT", 60*time.Second),
		},
		Postgres: PostgresConfig{
			Host:          getString("POSTGRES_HOST", "localhost"),
			Port:          getInt("POSTGRES_PORT", 5432),
			User:          getString("POSTGRES_USER", "vault_app"),
			Password:      getString("POSTGRES_PASSWORD", "change-me"),
			Database:      getString("POSTGRES_DB", "cryptovault"),
			SSLMode:       strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
			RunMigrations: getBool("POSTGRES_RUN_MIGRATIONS", true),
		},
		MinIO: MinIOConfig{
			Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("MINIO_ROOT_USER", "cryptovault"),
			SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
			Bucket:          getString("MINIO_BUCKET", "cryptovault"),
			UseSSL:          getBool("MINIO_USE_SSL", false),
			Region:          getString("MINIO_REGION", ""),
		},
		Auth: loadAuthConfig(),
		Metrics: MetricsConfig{
			PrometheusPath: getString("VAULT_METRICS_PATH", "/metrics"),
		},
		Storage: StorageConfig{
			Backend:          strings.ToLower(getString("VAULT_STORAGE_BACKEND", BackendLocal)),
			Root:             getString("VAULT_STORAGE_ROOT", "./storage"),
			QuotaBytes:       getInt64("VAULT_QUOTA_BYTES", 512*1024*1024),
			MaxFileSize:      getInt64("VAULT_MAX_FILE_SIZE", 100*1024*1024),
			DeleteMode:       strings.ToLower(getString("VAULT_DELETE_MODE", DeleteModeSoft)),
			PermissionScheme: strings.ToLower(getString("VAULT_PERMISSION_SCHEME", "tiered")),
		},
		Maintenance: MaintenanceConfig{
			SweepInterval:     getDuration("VAULT_SWEEP_INTERVAL", time.Hour),
			OrphanGracePeriod: getDuration("VAULT_ORPHAN_GRACE_PERIOD", 15*time.Minute),
			DryRun:            getBool("VAULT_SWEEP_DRY_RUN", false),
		},
	}

	if err := cfg.Storage.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (s StorageConfig) validate() error {
	switch s.Backend {
	case BackendLocal, BackendMinIO:
	default:
		return fmt.Errorf("unknown storage backend %q", s.Backend)
	}
	switch s.DeleteMode {
	case DeleteModeSoft, DeleteModeHard:
	default:
		return fmt.Errorf("unknown delete mode %q", s.DeleteMode)
	}
	switch s.PermissionScheme {
	case "tiered", "readwrite":
	default:
		return fmt.Errorf("unknown permission scheme %q", s.PermissionScheme)
	}
	if s.QuotaBytes <= 0 {
		return fmt.Errorf("quota must be positive, got %d", s.QuotaBytes)
	}
	if s.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive, got %d", s.MaxFileSize)
	}
	if s.Backend == BackendLocal && strings.TrimSpace(s.Root) == "" {
		return fmt.Errorf("storage root required for local backend")
	}
	return nil
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func loadAuthConfig() AuthConfig {
	cost := getInt("VAULT_AUTH_BCRYPT_COST", 12)
	if cost < 4 || cost > 31 {
		cost = 12
	}

	return AuthConfig{
		AccessTokenSecret:  getString("VAULT_JWT_SECRET", "change-me-to-a-32-byte-secret"),
		RefreshTokenSecret: getString("VAULT_JWT_REFRESH_SECRET", "change-me-to-a-64-byte-secret"),
		AccessTokenTTL:     getDuration("VAULT_AUTH_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    getDuration("VAULT_AUTH_REFRESH_TOKEN_TTL", 720*time.Hour),
		BcryptCost:         cost,
	}
}
