package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  secret_key: "0123456789abcdef0123"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddr, cfg.Server.ListenAddr)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, DefaultQueueSize, cfg.Queue.Size)
	assert.Equal(t, DefaultTokenTTL, cfg.Auth.TokenTTL)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, DefaultEventLogDir, cfg.EventLog.Dir)
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: ":9090"
  request_timeout: 10s
database:
  path: /tmp/test.db
auth:
  secret_key: "0123456789abcdef0123"
  token_ttl: 1h
queue:
  size: 16
smtp:
  host: smtp.example.com
  port: 2525
  from: noreply@example.com
calendar:
  base_url: http://calendar.local
  calendar_id: primary
esign:
  base_url: http://esign.local
  account_id: acct-1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 16, cfg.Queue.Size)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, "http://calendar.local", cfg.Calendar.BaseURL)
	assert.Equal(t, "acct-1", cfg.ESign.AccountID)
}

func TestLoadEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_CRM_SECRET", "supersecretsigningkey")
	path := writeConfig(t, `
auth:
  secret_key: "${TEST_CRM_SECRET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "supersecretsigningkey", cfg.Auth.SecretKey)
}

func TestLoadMissingSecret(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: ":9090"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret_key")
}

func TestLoadShortSecret(t *testing.T) {
	path := writeConfig(t, `
auth:
  secret_key: "short"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 16")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
