package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarpro/erp/pkg/storage"
)

func setRequired(t *testing.T) {
	t.Setenv("SOLARPRO_STORE_URL", "postgres://localhost/solarpro")
	t.Setenv("SOLARPRO_STORE_API_KEY", "anon-key")
	t.Setenv("SOLARPRO_AUTH_JWT_SECRET", "secret")
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "custom")
	t.Setenv("TEST_BOOL", "1")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty")
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_FLOAT", "0.25")

	assert.Equal(t, "custom", getEnv("TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("TEST_STR_UNSET", "default"))
	assert.True(t, getEnvBool("TEST_BOOL", false))
	assert.True(t, getEnvBool("TEST_BOOL_UNSET", true))
	assert.Equal(t, 42, getEnvInt("TEST_INT", 0))
	assert.Equal(t, 7, getEnvInt("TEST_BAD_INT", 7))
	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DURATION", 0))
	assert.Equal(t, time.Second, getEnvDuration("TEST_DURATION_UNSET", time.Second))
	assert.Equal(t, 0.25, getEnvFloat("TEST_FLOAT", 1))
	assert.Equal(t, 1.0, getEnvFloat("TEST_BAD_INT", 1))

	t.Setenv("TEST_LIST", " 10.0.0.0/8, ,192.168.1.5 ")
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.5"}, getEnvList("TEST_LIST"))
	assert.Nil(t, getEnvList("TEST_LIST_UNSET"))
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, "anon-key", cfg.Storage.APIKey)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "solarpro_session", cfg.Auth.CookieName)
	assert.Equal(t, 10, cfg.Auth.SignInAttempts)
	assert.Equal(t, time.Minute, cfg.Auth.SignInWindow)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.False(t, cfg.Observability.OTelEnabled)
	assert.True(t, cfg.Audit.StoreEnabled)
	assert.True(t, cfg.Audit.Async)
	assert.False(t, cfg.Audit.ArchiveEnabled())
	assert.Equal(t, "@every 1m", cfg.Maintenance.ArchiveFlushSchedule)
	assert.Empty(t, cfg.Maintenance.SeedFile)
	assert.False(t, cfg.SSO.Enabled())
	assert.Empty(t, cfg.Server.TrustedProxies)
	assert.Empty(t, cfg.Auth.BootstrapAdminEmail)
}

func TestLoadConfig_TrustedProxies(t *testing.T) {
	setRequired(t)
	t.Setenv("SOLARPRO_TRUSTED_PROXIES", "10.0.0.0/8,172.16.0.1")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.1"}, cfg.Server.TrustedProxies)

	t.Setenv("SOLARPRO_TRUSTED_PROXIES", "10.0.0.0/8,lb.internal")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, `SOLARPRO_TRUSTED_PROXIES: invalid trusted proxy "lb.internal"`)
}

func TestLoadConfig_BootstrapAdmin(t *testing.T) {
	setRequired(t)
	t.Setenv("SOLARPRO_BOOTSTRAP_ADMIN_EMAIL", "admin@example.com")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "must be set together")

	t.Setenv("SOLARPRO_BOOTSTRAP_ADMIN_PASSWORD", "change-me")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", cfg.Auth.BootstrapAdminEmail)
}

func TestLoadConfig_SSO(t *testing.T) {
	setRequired(t)
	t.Setenv("SOLARPRO_SSO_ISSUER_URL", "https://accounts.example.com")
	t.Setenv("SOLARPRO_SSO_CLIENT_ID", "solarpro")
	t.Setenv("SOLARPRO_SSO_REDIRECT_URL", "https://erp.example.com/sso/callback")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.SSO.Enabled())
	assert.Equal(t, "solarpro", cfg.SSO.ClientID)
	assert.Equal(t, "/", cfg.SSO.PostLoginRedirect)

	t.Setenv("SOLARPRO_SSO_CLIENT_ID", "")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "SOLARPRO_SSO_CLIENT_ID")
}

func TestLoadConfig_AuditArchive(t *testing.T) {
	setRequired(t)
	t.Setenv("SOLARPRO_AUDIT_ARCHIVE_BUCKET", "solarpro-audit")
	t.Setenv("SOLARPRO_AUDIT_ARCHIVE_ENDPOINT", "http://minio:9000")
	t.Setenv("SOLARPRO_AUDIT_ARCHIVE_PATH_STYLE", "true")
	t.Setenv("SOLARPRO_SEED_FILE", "/etc/solarpro/seed.yaml")
	t.Setenv("SOLARPRO_SEED_WATCH", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.Audit.ArchiveEnabled())
	assert.Equal(t, "http://minio:9000", cfg.Audit.ArchiveEndpoint)
	assert.True(t, cfg.Audit.ArchivePathStyle)
	assert.Equal(t, "audit", cfg.Audit.ArchivePrefix)
	assert.True(t, cfg.Maintenance.WatchSeed)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SOLARPRO_STORE_TYPE", "memory")
	t.Setenv("SOLARPRO_STORE_REPLICA_URLS", "postgres://r1/db")
	t.Setenv("SOLARPRO_STORE_MAX_CONNS", "5")
	t.Setenv("SOLARPRO_REDIS_URL", "redis://localhost:6379")
	t.Setenv("SOLARPRO_REDIS_DB", "2")
	t.Setenv("SOLARPRO_LOG_LEVEL", "DEBUG")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "postgres://r1/db", cfg.Storage.ReplicaURLs)
	assert.Equal(t, 5, cfg.Storage.MaxConns)
	assert.Equal(t, "redis://localhost:6379", cfg.Storage.RedisURL)
	assert.Equal(t, 2, cfg.Storage.RedisDB)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestLoadConfig_FailsFastWithoutStoreSettings(t *testing.T) {
	t.Setenv("SOLARPRO_AUTH_JWT_SECRET", "secret")
	t.Setenv("SOLARPRO_STORE_URL", "")
	t.Setenv("SOLARPRO_STORE_API_KEY", "")

	_, err := LoadConfig()
	assert.ErrorIs(t, err, storage.ErrMissingURL)

	t.Setenv("SOLARPRO_STORE_URL", "postgres://localhost/solarpro")
	_, err = LoadConfig()
	assert.ErrorIs(t, err, storage.ErrMissingAPIKey)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: "8080", HealthPort: "9090"},
			Storage: storage.Config{Type: "postgres", URL: "postgres://x", APIKey: "k"},
			Auth:    AuthConfig{JWTSecret: "s", TokenTTL: time.Hour, SignInAttempts: 5, SignInWindow: time.Minute},
			Observability: ObservabilityConfig{
				LogLevel: "info",
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"same ports", func(c *Config) { c.Server.HealthPort = "8080" }, "must be different"},
		{"bad store type", func(c *Config) { c.Storage.Type = "sqlite" }, "invalid storage type"},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }, "JWT_SECRET"},
		{"zero ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, "TTL"},
		{"no sign-in attempts", func(c *Config) { c.Auth.SignInAttempts = 0 }, "rate limit"},
		{"async audit without workers", func(c *Config) { c.Audit.Async = true }, "audit workers"},
		{"seed watch without file", func(c *Config) { c.Maintenance.WatchSeed = true }, "SOLARPRO_SEED_FILE"},
		{"bad log level", func(c *Config) { c.Observability.LogLevel = "loud" }, "invalid log level"},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelServiceName = "svc"
		}, "endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SOLARPRO_TEST_DOTENV=from-file\nSOLARPRO_TEST_PRESET=from-file\n"), 0o600))

	t.Setenv("SOLARPRO_TEST_PRESET", "from-env")
	t.Cleanup(func() { os.Unsetenv("SOLARPRO_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("SOLARPRO_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("SOLARPRO_TEST_PRESET"))
}
