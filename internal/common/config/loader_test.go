package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
database:
  postgres:
    host: localhost
    database: jobboard
    user: jobboard
  redis:
    address: localhost:6379
`

// ==========================
// Tests
// ==========================

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, QueueDriverRedis, cfg.Notifications.Queue.Driver)
	assert.Equal(t, "notifications:queue", cfg.Notifications.Queue.Key)
	assert.Equal(t, "notifications:dead", cfg.Notifications.Queue.DeadLetterKey)
	assert.Equal(t, 5, cfg.Notifications.Queue.MaxAttempts)
	assert.Equal(t, []string{"offered", "hired"}, cfg.Notifications.SMS.Statuses)
	assert.Equal(t, "jobs", cfg.Database.Elasticsearch.JobsIndex)
	assert.Equal(t, 10, cfg.Database.Redis.PoolSize)
	assert.Equal(t, "status:write", cfg.Auth.RequiredScope)
	assert.False(t, cfg.Status.EnforceTransitions)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("JB_TEST_PG_PASSWORD", "s3cret")

	cfg, err := LoadFromFile(writeConfig(t, `
database:
  postgres:
    host: localhost
    database: jobboard
    user: jobboard
    password: ${JB_TEST_PG_PASSWORD}
  redis:
    address: localhost:6379
`))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
}

func TestLoadFromFile_WorkerDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
workers:
  send-status-notification:
    enabled: true
`))
	require.NoError(t, err)

	w := GetWorkerConfig(cfg, "send-status-notification")
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)

	assert.True(t, IsWorkerEnabled(cfg, "unknown-worker"))
}

func TestValidateConfig(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.Database.Postgres.Host = "localhost"
		cfg.Database.Postgres.Database = "jobboard"
		cfg.Database.Postgres.User = "jobboard"
		cfg.Database.Redis.Address = "localhost:6379"
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid minimal",
			mutate: func(*Config) {},
		},
		{
			name:    "missing postgres host",
			mutate:  func(c *Config) { c.Database.Postgres.Host = "" },
			wantErr: "database.postgres.host is required",
		},
		{
			name:    "missing redis",
			mutate:  func(c *Config) { c.Database.Redis.Address = "" },
			wantErr: "database.redis.address is required",
		},
		{
			name:    "unknown queue driver",
			mutate:  func(c *Config) { c.Notifications.Queue.Driver = "kafka" },
			wantErr: "notifications.queue.driver must be",
		},
		{
			name:    "camunda driver without camunda",
			mutate:  func(c *Config) { c.Notifications.Queue.Driver = QueueDriverCamunda },
			wantErr: "requires camunda.enabled",
		},
		{
			name: "camunda enabled without broker",
			mutate: func(c *Config) {
				c.Camunda.Enabled = true
			},
			wantErr: "camunda.broker_address is required",
		},
		{
			name:    "alerts without elasticsearch",
			mutate:  func(c *Config) { c.Alerts.Enabled = true },
			wantErr: "elasticsearch",
		},
		{
			name:    "email without sender",
			mutate:  func(c *Config) { c.Notifications.Email.Enabled = true },
			wantErr: "from_email",
		},
		{
			name:    "auth without keycloak",
			mutate:  func(c *Config) { c.Auth.Enabled = true },
			wantErr: "auth.keycloak.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "jb", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=jb sslmode=require application_name=jobboard-workers", p.GetDSN())
}
