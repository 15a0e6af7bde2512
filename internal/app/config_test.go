package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)

	require.Equal(t, "Gatehouse", cfg.App.Name)
	require.True(t, cfg.Production())
	require.Equal(t, "https://auth.example.com", cfg.App.BaseURL)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.Equal(t, 12*time.Hour, cfg.Auth.Session.TTL)
	require.Equal(t, "gate_session", cfg.Auth.Session.CookieName)
	require.Equal(t, "cookie-secret", cfg.Auth.Session.Secret)
	require.True(t, cfg.Auth.Verification.Required)
	require.Equal(t, 48*time.Hour, cfg.Auth.Verification.TokenTTL)
	require.Equal(t, 64, cfg.Auth.Verification.TokenLength)
	require.Equal(t, 10, cfg.Auth.Password.MinLength)
	require.Equal(t, 64, cfg.Auth.Password.MaxLength)
	require.Equal(t, 12, cfg.Auth.Password.HashCost)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/internal/metrics", cfg.Monitoring.Prometheus.Endpoint)

	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)
	require.Equal(t, 2525, cfg.Email.SMTP.Port)
	require.Equal(t, 15*time.Second, cfg.Email.SMTP.Timeout)
}

func TestConfigDefaults(t *testing.T) {
	t.Setenv("AUTHGATE_AUTH_SESSION_SECRET", "env-secret")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "Authgate", cfg.App.Name)
	require.False(t, cfg.Production())
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 24*time.Hour, cfg.Auth.Session.TTL)
	require.Equal(t, "authgate_session", cfg.Auth.Session.CookieName)
	require.Equal(t, "env-secret", cfg.Auth.Session.Secret)
	require.True(t, cfg.Auth.Verification.Required)
	require.Equal(t, 24*time.Hour, cfg.Auth.Verification.TokenTTL)
	require.Equal(t, 8, cfg.Auth.Password.MinLength)
	require.Equal(t, 128, cfg.Auth.Password.MaxLength)
	require.Equal(t, 10, cfg.Auth.Password.HashCost)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.False(t, cfg.Email.SMTP.Enabled)
}

func TestValidateRejectsMissingSecret(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
}

func TestValidateRequiresSMTPInProduction(t *testing.T) {
	cfg := &Config{
		App:  AppConfig{Environment: "production"},
		Auth: AuthConfig{Session: SessionSettings{Secret: "secret"}},
	}
	require.Error(t, cfg.Validate())

	cfg.Email.SMTP.Enabled = true
	require.NoError(t, cfg.Validate())
}

func TestDatabaseSettingsAdapter(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{
			Driver: "postgres",
			Postgres: DBAuthConfig{
				Host:     "db.example.com",
				Port:     5433,
				Database: "authgate",
				Username: "gate",
				Password: "keeper",
			},
		},
	}

	settings := cfg.DatabaseSettings()
	require.Equal(t, "postgres", settings.Driver)
	require.Equal(t, "db.example.com", settings.Host)
	require.Equal(t, 5433, settings.Port)
	require.Equal(t, "authgate", settings.Name)
	require.Equal(t, "gate", settings.User)
	require.Equal(t, "keeper", settings.Password)

	sqlite := &Config{Database: DatabaseConfig{Driver: "sqlite", Path: "./data/authgate.sqlite"}}
	require.Equal(t, "./data/authgate.sqlite", sqlite.DatabaseSettings().Path)
	require.Empty(t, sqlite.DatabaseSettings().Host)
}

func TestSMTPSettingsAdapter(t *testing.T) {
	cfg := &Config{
		Email: EmailConfig{SMTP: SMTPConfig{
			Enabled:  true,
			Host:     "smtp.example.com",
			Port:     2525,
			Username: "user",
			Password: "pass",
			From:     "no-reply@example.com",
			UseTLS:   true,
			Timeout:  10 * time.Second,
		}},
	}

	settings := cfg.SMTPSettings()
	require.True(t, settings.Enabled)
	require.Equal(t, "smtp.example.com", settings.Host)
	require.Equal(t, 2525, settings.Port)
	require.Equal(t, "no-reply@example.com", settings.From)
	require.Equal(t, 10*time.Second, settings.Timeout)
}
