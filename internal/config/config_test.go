package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SCREENMARK_CONFIG_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, "stdio", cfg.Transport.Mode)
	require.Equal(t, int64(250), cfg.Capture.DefaultToleranceMs)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screenmark.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
db:
  path: /var/lib/screenmark/data.db
transport:
  mode: http
auth:
  enabled: false
capture:
  persist_timeout: 30s
  default_tolerance_ms: 500
telemetry:
  enabled: true
`), 0o644))

	t.Setenv("SCREENMARK_CONFIG_PATH", path)
	t.Setenv("SCREENMARK_SERVER_PORT", "9191")
	t.Setenv("SCREENMARK_PERMISSION_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9191, cfg.Server.Port)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, "/var/lib/screenmark/data.db", cfg.DB.Path)
	require.Equal(t, "http", cfg.Transport.Mode)
	require.False(t, cfg.Auth.Enabled)
	require.Equal(t, 30*time.Second, cfg.Capture.PersistTimeout)
	require.Equal(t, 2*time.Second, cfg.Capture.PermissionTimeout)
	require.Equal(t, 10*time.Second, cfg.Capture.GeolocationTimeout)
	require.Equal(t, int64(500), cfg.Capture.DefaultToleranceMs)
	require.True(t, cfg.Telemetry.Enabled)
	require.Equal(t, "screenmark", cfg.Telemetry.ServiceName)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "port", key: "SCREENMARK_SERVER_PORT", val: "eighty"},
		{name: "transport", key: "SCREENMARK_TRANSPORT_MODE", val: "websocket"},
		{name: "auth flag", key: "SCREENMARK_AUTH_ENABLED", val: "maybe"},
		{name: "duration", key: "SCREENMARK_PERSIST_TIMEOUT", val: "soon"},
		{name: "zero duration", key: "SCREENMARK_GEOLOCATION_TIMEOUT", val: "0s"},
		{name: "negative tolerance", key: "SCREENMARK_DEFAULT_TOLERANCE_MS", val: "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SCREENMARK_CONFIG_PATH", "")
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("SCREENMARK_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	require.ErrorContains(t, err, "read config file")
}
