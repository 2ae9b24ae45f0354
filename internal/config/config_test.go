package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t,
		"SERVER_HOST", "SERVER_PORT", "STORAGE_DRIVER", "DATABASE_URL", "DB_USER", "DB_PASSWORD",
		"DB_HOST", "DB_PORT", "DB_NAME", "DB_SSLMODE", "JWT_TTL", "SMTP_PORT", "BOLTDB_PATH",
		"SYNC_INTERVAL_SECONDS", "MAX_RETRY_ATTEMPTS", "AUTH_RATE_LIMIT_RPS", "AUTH_RATE_LIMIT_BURST",
		"SERVER_MAX_BODY_BYTES", "REDIS_URL",
	)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
	assert.Equal(t, StorageDriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://taskdesk:@localhost:5432/taskdesk?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, 30*24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.Equal(t, "./data/outbox.db", cfg.Outbox.Path)
	assert.Equal(t, 30*time.Second, cfg.Outbox.SyncInterval)
	assert.Equal(t, 3, cfg.Outbox.MaxRetry)
	assert.Equal(t, 1.0, cfg.RateLimit.RPS)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, 50<<20, cfg.HTTP.MaxRequestBodySize)
	assert.Empty(t, cfg.Redis.URL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("DATABASE_URL", "postgres://app@db/tasks")
	t.Setenv("SYNC_INTERVAL_SECONDS", "45")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("SMTP_PORT", "not-a-number")
	t.Setenv("AUTH_RATE_LIMIT_RPS", "2.5")
	t.Setenv("SERVER_ENABLE_METRICS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTP.Port)
	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "postgres://app@db/tasks", cfg.Database.URL)
	assert.Equal(t, 45*time.Second, cfg.Outbox.SyncInterval)
	assert.Equal(t, 2*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 587, cfg.Mail.Port, "unparsable values fall back")
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.True(t, cfg.HTTP.EnableMetrics)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Storage: StorageConfig{Driver: StorageDriverMemory},
			JWT:     JWTConfig{Secret: "s3cret"},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing secret", func(c *Config) { c.JWT.Secret = "  " }, "JWT_SECRET"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, "STORAGE_DRIVER"},
		{"drive without folder", func(c *Config) { c.Drive.Credentials = "{}" }, "GOOGLE_DRIVE_FOLDER_ID"},
		{"smtp without sender", func(c *Config) { c.Mail.Host = "smtp.example.com" }, "MAIL_FROM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
