package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/solarpro/erp/pkg/httputil"
	"github.com/solarpro/erp/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Session configuration
	Auth AuthConfig

	// Observability configuration
	Observability ObservabilityConfig

	// Audit trail destinations
	Audit AuditConfig

	// Seed file and maintenance schedules
	Maintenance MaintenanceConfig

	// OpenID Connect sign-in
	SSO SSOConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// Proxies (IPs or CIDRs) whose X-Forwarded-For is believed
	TrustedProxies []string

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig holds session token settings
type AuthConfig struct {
	JWTSecret           string
	Issuer              string
	TokenTTL            time.Duration
	CookieName          string
	RevocationCacheSize int

	// Sign-in attempts allowed per client IP within SignInWindow
	SignInAttempts int
	SignInWindow   time.Duration

	// First admin created during setup; public sign-up only makes technicians
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel string

	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// AuditConfig selects where audit events go besides the log
type AuditConfig struct {
	// Persist events to the audit_logs collection
	StoreEnabled bool

	// Deliver through a worker pool instead of on the request path
	Async   bool
	Workers int

	// S3 archive; disabled when ArchiveBucket is empty
	ArchiveBucket    string
	ArchiveRegion    string
	ArchiveEndpoint  string
	ArchivePrefix    string
	ArchiveAccessKey string
	ArchiveSecretKey string
	ArchivePathStyle bool
	ArchiveBatchSize int
}

// MaintenanceConfig holds background job settings
type MaintenanceConfig struct {
	SeedFile  string // empty means the built-in defaults
	WatchSeed bool

	ArchiveFlushSchedule string
	DBStatsSchedule      string
	JobTimeout           time.Duration
}

// SSOConfig holds the OIDC client registration. SSO is off unless
// IssuerURL is set.
type SSOConfig struct {
	IssuerURL         string
	ClientID          string
	ClientSecret      string
	RedirectURL       string
	PostLoginRedirect string
}

// LoadDotEnv loads variables from the given .env files without overriding
// variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Auth:          loadAuthConfig(),
		Observability: loadObservabilityConfig(),
		Audit:         loadAuditConfig(),
		Maintenance:   loadMaintenanceConfig(),
		SSO:           loadSSOConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SOLARPRO_HOST", "0.0.0.0"),
		Port:            getEnv("SOLARPRO_PORT", "8080"),
		ReadTimeout:     getEnvDuration("SOLARPRO_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SOLARPRO_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("SOLARPRO_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SOLARPRO_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("SOLARPRO_MAX_BODY_BYTES", 1<<20),
		TrustedProxies:  getEnvList("SOLARPRO_TRUSTED_PROXIES"),
		HealthPort:      getEnv("SOLARPRO_HEALTH_PORT", "9090"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if storeType := getEnv("SOLARPRO_STORE_TYPE", ""); storeType != "" {
		cfg.Type = storeType
	}
	cfg.URL = getEnv("SOLARPRO_STORE_URL", "")
	cfg.APIKey = getEnv("SOLARPRO_STORE_API_KEY", "")
	cfg.ReplicaURLs = getEnv("SOLARPRO_STORE_REPLICA_URLS", "")

	if maxConns := getEnvInt("SOLARPRO_STORE_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("SOLARPRO_STORE_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("SOLARPRO_STORE_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}

	cfg.RedisURL = getEnv("SOLARPRO_REDIS_URL", "")
	cfg.RedisPassword = getEnv("SOLARPRO_REDIS_PASSWORD", "")
	if redisDB := getEnvInt("SOLARPRO_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisPoolSize := getEnvInt("SOLARPRO_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	return cfg
}

// loadAuthConfig loads session configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:           getEnv("SOLARPRO_AUTH_JWT_SECRET", ""),
		Issuer:              getEnv("SOLARPRO_AUTH_ISSUER", "solarpro"),
		TokenTTL:            getEnvDuration("SOLARPRO_AUTH_TOKEN_TTL", 24*time.Hour),
		CookieName:          getEnv("SOLARPRO_AUTH_COOKIE_NAME", "solarpro_session"),
		RevocationCacheSize: getEnvInt("SOLARPRO_AUTH_REVOCATION_CACHE_SIZE", 10000),
		SignInAttempts:      getEnvInt("SOLARPRO_AUTH_SIGNIN_ATTEMPTS", 10),
		SignInWindow:        getEnvDuration("SOLARPRO_AUTH_SIGNIN_WINDOW", time.Minute),

		BootstrapAdminEmail:    getEnv("SOLARPRO_BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapAdminPassword: getEnv("SOLARPRO_BOOTSTRAP_ADMIN_PASSWORD", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           strings.ToLower(getEnv("SOLARPRO_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("SOLARPRO_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("SOLARPRO_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("SOLARPRO_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("SOLARPRO_OTEL_SERVICE_NAME", "solarpro-erp"),
		OTelServiceVersion: getEnv("SOLARPRO_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("SOLARPRO_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("SOLARPRO_OTEL_SAMPLE_RATIO", 1),
	}
}

// loadAuditConfig loads audit destinations from environment
func loadAuditConfig() AuditConfig {
	return AuditConfig{
		StoreEnabled:     getEnvBool("SOLARPRO_AUDIT_STORE_ENABLED", true),
		Async:            getEnvBool("SOLARPRO_AUDIT_ASYNC", true),
		Workers:          getEnvInt("SOLARPRO_AUDIT_WORKERS", 4),
		ArchiveBucket:    getEnv("SOLARPRO_AUDIT_ARCHIVE_BUCKET", ""),
		ArchiveRegion:    getEnv("SOLARPRO_AUDIT_ARCHIVE_REGION", "us-east-1"),
		ArchiveEndpoint:  getEnv("SOLARPRO_AUDIT_ARCHIVE_ENDPOINT", ""),
		ArchivePrefix:    getEnv("SOLARPRO_AUDIT_ARCHIVE_PREFIX", "audit"),
		ArchiveAccessKey: getEnv("SOLARPRO_AUDIT_ARCHIVE_ACCESS_KEY", ""),
		ArchiveSecretKey: getEnv("SOLARPRO_AUDIT_ARCHIVE_SECRET_KEY", ""),
		ArchivePathStyle: getEnvBool("SOLARPRO_AUDIT_ARCHIVE_PATH_STYLE", false),
		ArchiveBatchSize: getEnvInt("SOLARPRO_AUDIT_ARCHIVE_BATCH_SIZE", 500),
	}
}

// loadMaintenanceConfig loads seed and scheduler settings from environment
func loadMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		SeedFile:             getEnv("SOLARPRO_SEED_FILE", ""),
		WatchSeed:            getEnvBool("SOLARPRO_SEED_WATCH", false),
		ArchiveFlushSchedule: getEnv("SOLARPRO_AUDIT_FLUSH_SCHEDULE", "@every 1m"),
		DBStatsSchedule:      getEnv("SOLARPRO_DB_STATS_SCHEDULE", "@every 15s"),
		JobTimeout:           getEnvDuration("SOLARPRO_JOB_TIMEOUT", time.Minute),
	}
}

// loadSSOConfig loads the OIDC client from environment
func loadSSOConfig() SSOConfig {
	return SSOConfig{
		IssuerURL:         getEnv("SOLARPRO_SSO_ISSUER_URL", ""),
		ClientID:          getEnv("SOLARPRO_SSO_CLIENT_ID", ""),
		ClientSecret:      getEnv("SOLARPRO_SSO_CLIENT_SECRET", ""),
		RedirectURL:       getEnv("SOLARPRO_SSO_REDIRECT_URL", ""),
		PostLoginRedirect: getEnv("SOLARPRO_SSO_POST_LOGIN_REDIRECT", "/"),
	}
}

// Enabled reports whether OIDC sign-in is configured
func (s SSOConfig) Enabled() bool {
	return s.IssuerURL != ""
}

// ArchiveEnabled reports whether audit events are archived to S3
func (a AuditConfig) ArchiveEnabled() bool {
	return a.ArchiveBucket != ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if _, err := httputil.NewClientIPResolver(c.Server.TrustedProxies); err != nil {
		return fmt.Errorf("SOLARPRO_TRUSTED_PROXIES: %w", err)
	}

	// The store location and key are required whatever the backend.
	if c.Storage.URL == "" {
		return fmt.Errorf("SOLARPRO_STORE_URL: %w", storage.ErrMissingURL)
	}
	if c.Storage.APIKey == "" {
		return fmt.Errorf("SOLARPRO_STORE_API_KEY: %w", storage.ErrMissingAPIKey)
	}
	switch c.Storage.Type {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid storage type: %s (must be postgres or memory)", c.Storage.Type)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("SOLARPRO_AUTH_JWT_SECRET is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("session token TTL must be positive")
	}
	if (c.Auth.BootstrapAdminEmail == "") != (c.Auth.BootstrapAdminPassword == "") {
		return fmt.Errorf("SOLARPRO_BOOTSTRAP_ADMIN_EMAIL and SOLARPRO_BOOTSTRAP_ADMIN_PASSWORD must be set together")
	}
	if c.Auth.SignInAttempts <= 0 || c.Auth.SignInWindow <= 0 {
		return fmt.Errorf("sign-in rate limit must be positive")
	}

	if c.Audit.Async && c.Audit.Workers <= 0 {
		return fmt.Errorf("audit workers must be positive when async delivery is enabled")
	}
	if c.Maintenance.WatchSeed && c.Maintenance.SeedFile == "" {
		return fmt.Errorf("SOLARPRO_SEED_WATCH requires SOLARPRO_SEED_FILE")
	}

	if c.SSO.Enabled() && (c.SSO.ClientID == "" || c.SSO.RedirectURL == "") {
		return fmt.Errorf("SOLARPRO_SSO_CLIENT_ID and SOLARPRO_SSO_REDIRECT_URL are required when SSO is enabled")
	}

	if _, err := logrus.ParseLevel(c.Observability.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// Addr returns the API listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// HealthAddr returns the health/metrics listen address.
func (s ServerConfig) HealthAddr() string {
	return s.Host + ":" + s.HealthPort
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
// getEnvList splits a comma-separated variable, dropping empty entries
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
