package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	chdirTemp(t)
	for _, key := range []string{"PORT", "ENV", "PAYPAL_BASE_URL", "PAYPAL_CURRENCY", "DEPOSIT_EXCHANGE_RATE", "GATEWAY_TIMEOUT", "SMTP_PORT", "PAYPAL_CLIENT_ID", "PAYPAL_CLIENT_SECRET"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "https://api-m.sandbox.paypal.com", cfg.Gateway.BaseURL)
	assert.Equal(t, "USD", cfg.Gateway.Currency)
	assert.Equal(t, "1", cfg.Gateway.ExchangeRate.String())
	assert.Equal(t, 15*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 587, cfg.Notify.SMTPPort)
	assert.False(t, cfg.Gateway.Configured())
}

func TestLoadConfigFromEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PAYPAL_CLIENT_ID", "client")
	t.Setenv("PAYPAL_CLIENT_SECRET", "secret")
	t.Setenv("DEPOSIT_EXCHANGE_RATE", "80")
	t.Setenv("DB_NAME", "settlesphere")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.Gateway.Configured())
	assert.Equal(t, "80", cfg.Gateway.ExchangeRate.String())
	assert.Contains(t, cfg.DB.DSN(), "dbname=settlesphere")
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	chdirTemp(t)

	tests := map[string]string{
		"DEPOSIT_EXCHANGE_RATE": "0",
		"GATEWAY_TIMEOUT":       "soon",
		"SMTP_PORT":             "smtp",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

// chdirTemp moves into an empty directory so a developer's .env is not loaded
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
