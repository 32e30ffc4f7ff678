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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  jwt_secret: s3cret
database:
  url: postgres://localhost/test
whatsapp:
  system_user_id: 7
  default_assignee_ids: [2, 3]
  forward_timeout: 3s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Server.JWTSecret)
	assert.Equal(t, "postgres://localhost/test", cfg.Database.DSN)
	assert.Equal(t, int64(7), cfg.WhatsApp.SystemUserID)
	assert.Equal(t, []int64{2, 3}, cfg.WhatsApp.DefaultAssigneeIDs)
	assert.Equal(t, 3*time.Second, cfg.WhatsApp.ForwardTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  jwt_secret: x\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 12*time.Hour, cfg.Server.TokenTTL)
	assert.Equal(t, "https://graph.facebook.com", cfg.WhatsApp.GraphBaseURL)
	assert.Equal(t, 10*time.Second, cfg.WhatsApp.ForwardTimeout)
	assert.Equal(t, "furniplan.chat", cfg.AMQP.Exchange)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 1000\ndatabase:\n  url: from-yaml\n")
	t.Setenv("PORT", "7070")
	t.Setenv("DATABASE_URL", "from-env")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Database.DSN)
	assert.Equal(t, "env-secret", cfg.Server.JWTSecret)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
