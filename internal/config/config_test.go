package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vendosync/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("POSTGRES_CONN", "postgres://localhost/vendosync?sslmode=disable")

	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:8080", cfg.Server.Address)
	require.Equal(t, 7*24*time.Hour, cfg.Token.RFQTTL)
	require.Equal(t, 50, cfg.Reputation.ReviewLimit)
	require.True(t, cfg.Mail.Suppress)
	require.False(t, cfg.Production())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("POSTGRES_CONN", "postgres://db/vendosync")
	t.Setenv("SERVER_ADDRESS", "127.0.0.1:9999")
	t.Setenv("TOKEN_RFQ_TTL", "24h")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("MAIL_SUPPRESS", "false")

	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:9999", cfg.Server.Address)
	require.Equal(t, 24*time.Hour, cfg.Token.RFQTTL)
	require.Equal(t, 3, cfg.Redis.DB)
	require.False(t, cfg.Mail.Suppress)
}

func TestLoadRequiresPostgres(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("POSTGRES_CONN", "")

	_, err := config.Load()
	require.ErrorContains(t, err, "POSTGRES_CONN")
}

func TestProductionRequiresSecrets(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("POSTGRES_CONN", "postgres://db/vendosync")
	t.Setenv("APP_ENV", "production")

	_, err := config.Load()
	require.ErrorContains(t, err, "TOKEN_SECRET")

	t.Setenv("TOKEN_SECRET", "s1")
	t.Setenv("IDENTITY_SECRET", "s2")
	cfg, err := config.Load()
	require.NoError(t, err)
	require.True(t, cfg.Production())
}
