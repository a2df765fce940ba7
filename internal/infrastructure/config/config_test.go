package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hubEnvKeys = []string{
	"HUB_APP_NAME",
	"HUB_APP_ENV",
	"HUB_APP_PORT",
	"HUB_DATABASE_HOST",
	"HUB_DATABASE_PORT",
	"HUB_DATABASE_PASSWORD",
	"HUB_DATABASE_DBNAME",
	"HUB_DATABASE_SSLMODE",
	"HUB_DATABASE_MAX_OPEN_CONNS",
	"HUB_DATABASE_MAX_IDLE_CONNS",
	"HUB_REDIS_ENABLED",
	"HUB_SCHEDULER_ENABLED",
	"HUB_SCHEDULER_SYNC_CRON",
	"HUB_SCHEDULER_WORKERS",
	"HUB_CONNECTORS_PAGE_SIZE",
	"HUB_CONNECTORS_RATE_LIMIT_RPS",
	"HUB_CONNECTORS_SERVICENOW_USERNAME",
	"HUB_CONNECTORS_SERVICENOW_PASSWORD",
	"HUB_CONNECTORS_JIRA_TOKEN",
	"HUB_DASHBOARD_CACHE_TTL",
	"HUB_ARCHIVE_ENABLED",
	"HUB_ARCHIVE_BUCKET",
	"HUB_TELEMETRY_SAMPLING_RATIO",
	"HUB_TELEMETRY_DB_LOG_FULL_SQL",
}

// clearHubEnv unsets every variable the tests touch; t.Setenv restores them afterwards
func clearHubEnv(t *testing.T) {
	t.Helper()
	for _, k := range hubEnvKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearHubEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "staffhub", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "staffhub", cfg.Database.DBName)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)

	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "@every 30m", cfg.Scheduler.SyncCron)
	assert.Equal(t, 4, cfg.Scheduler.Workers)
	assert.Equal(t, 100, cfg.Scheduler.QueueSize)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.JobTimeout)
	assert.Equal(t, time.Hour, cfg.Scheduler.RunLockTTL)

	assert.Equal(t, 30*time.Second, cfg.Connectors.Timeout)
	assert.Equal(t, 100, cfg.Connectors.PageSize)
	assert.Equal(t, 5.0, cfg.Connectors.RateLimitRPS)
	assert.Equal(t, 3, cfg.Connectors.MaxRetries)

	assert.Zero(t, cfg.Dashboard.CacheTTL)
	assert.Equal(t, 100, cfg.Import.MaxErrors)
	assert.False(t, cfg.Archive.Enabled)
	assert.Equal(t, "us-east-1", cfg.Archive.Region)
	assert.Equal(t, "staffhub", cfg.Telemetry.ServiceName)
	assert.Equal(t, 200*time.Millisecond, cfg.Telemetry.DBSlowQueryThresh)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearHubEnv(t)
	t.Setenv("HUB_APP_NAME", "staffhub-test")
	t.Setenv("HUB_APP_PORT", "9000")
	t.Setenv("HUB_DATABASE_HOST", "db.internal")
	t.Setenv("HUB_DATABASE_PORT", "5433")
	t.Setenv("HUB_REDIS_ENABLED", "true")
	t.Setenv("HUB_SCHEDULER_ENABLED", "true")
	t.Setenv("HUB_SCHEDULER_SYNC_CRON", "*/15 * * * *")
	t.Setenv("HUB_SCHEDULER_WORKERS", "8")
	t.Setenv("HUB_CONNECTORS_SERVICENOW_USERNAME", "svc-staffing")
	t.Setenv("HUB_CONNECTORS_SERVICENOW_PASSWORD", "secret")
	t.Setenv("HUB_CONNECTORS_JIRA_TOKEN", "jira-token")
	t.Setenv("HUB_DASHBOARD_CACHE_TTL", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "staffhub-test", cfg.App.Name)
	assert.Equal(t, "9000", cfg.App.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "*/15 * * * *", cfg.Scheduler.SyncCron)
	assert.Equal(t, 8, cfg.Scheduler.Workers)
	assert.Equal(t, ConnectorCredentials{Username: "svc-staffing", Password: "secret"}, cfg.Connectors.ServiceNow)
	assert.Equal(t, "jira-token", cfg.Connectors.Jira.Token)
	assert.Empty(t, cfg.Connectors.Asana.Token)
	assert.Equal(t, 45*time.Second, cfg.Dashboard.CacheTTL)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		contains string
	}{
		{
			name:     "idle conns exceed open conns",
			env:      map[string]string{"HUB_DATABASE_MAX_OPEN_CONNS": "10", "HUB_DATABASE_MAX_IDLE_CONNS": "20"},
			contains: "cannot exceed",
		},
		{
			name:     "negative idle conns",
			env:      map[string]string{"HUB_DATABASE_MAX_IDLE_CONNS": "-1"},
			contains: "max_idle_conns cannot be negative",
		},
		{
			name:     "page size above the connector maximum",
			env:      map[string]string{"HUB_CONNECTORS_PAGE_SIZE": "5000"},
			contains: "connectors.page_size",
		},
		{
			name:     "negative rate limit",
			env:      map[string]string{"HUB_CONNECTORS_RATE_LIMIT_RPS": "-2"},
			contains: "rate_limit_rps",
		},
		{
			name:     "archive without bucket",
			env:      map[string]string{"HUB_ARCHIVE_ENABLED": "true"},
			contains: "archive.bucket",
		},
		{
			name:     "sampling ratio out of range",
			env:      map[string]string{"HUB_TELEMETRY_SAMPLING_RATIO": "1.5"},
			contains: "sampling_ratio",
		},
		{
			name:     "production without database password",
			env:      map[string]string{"HUB_APP_ENV": "production"},
			contains: "database.password",
		},
		{
			name: "production with sslmode disabled",
			env: map[string]string{
				"HUB_APP_ENV":           "production",
				"HUB_DATABASE_PASSWORD": "pw",
			},
			contains: "sslmode",
		},
		{
			name: "production with full SQL logging",
			env: map[string]string{
				"HUB_APP_ENV":                   "production",
				"HUB_DATABASE_PASSWORD":         "pw",
				"HUB_DATABASE_SSLMODE":          "require",
				"HUB_TELEMETRY_DB_LOG_FULL_SQL": "true",
			},
			contains: "db_log_full_sql",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearHubEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoad_ProductionValid(t *testing.T) {
	clearHubEnv(t)
	t.Setenv("HUB_APP_ENV", "production")
	t.Setenv("HUB_DATABASE_PASSWORD", "pw")
	t.Setenv("HUB_DATABASE_SSLMODE", "require")
	t.Setenv("HUB_ARCHIVE_ENABLED", "true")
	t.Setenv("HUB_ARCHIVE_BUCKET", "staffhub-uploads")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "staffhub-uploads", cfg.Archive.Bucket)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "hub",
		Password: "p@ss#word",
		DBName:   "staffhub",
		SSLMode:  "disable",
	}
	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://hub:")
	assert.Contains(t, dsn, "p%40ss%23word")
	assert.Contains(t, dsn, "@localhost:5432/staffhub?sslmode=disable")
}
