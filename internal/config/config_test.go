package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("STOCKVIEW_CONFIG", filepath.Join(dir, "missing.yaml"))
	for _, k := range []string{
		"STOCKVIEW_API_URL", "STOCKVIEW_HTTP_TIMEOUT", "LOG_LEVEL", "STOCKVIEW_LOG_FILE",
		"STOCKVIEW_SESSION_BACKEND", "STOCKVIEW_SESSION_PATH", "STOCKVIEW_REDIS_URL",
		"STOCKVIEW_STUB_ADDR", "STOCKVIEW_STUB_SECRET", "STOCKVIEW_STUB_TOKEN_TTL",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000", cfg.APIURL)
	assert.Equal(t, BackendSQLite, cfg.Session.Backend)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "session.db", filepath.Base(cfg.Session.Path))
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: http://stocks.internal:8080
http_timeout: 3s
session:
  backend: file
  path: /tmp/stockview-session.yaml
`), 0o600))
	t.Setenv("STOCKVIEW_CONFIG", path)
	t.Setenv("STOCKVIEW_HTTP_TIMEOUT", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://stocks.internal:8080", cfg.APIURL)
	assert.Equal(t, BackendFile, cfg.Session.Backend)
	assert.Equal(t, "/tmp/stockview-session.yaml", cfg.Session.Path)
	assert.Equal(t, 7*time.Second, cfg.HTTPTimeout, "env overrides the file")
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"relative api url", map[string]string{"STOCKVIEW_API_URL": "localhost"}, "absolute URL"},
		{"unknown backend", map[string]string{"STOCKVIEW_SESSION_BACKEND": "etcd"}, "unknown session backend"},
		{"redis without url", map[string]string{"STOCKVIEW_SESSION_BACKEND": "redis"}, "STOCKVIEW_REDIS_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadBadYAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session: [oops"), 0o600))
	t.Setenv("STOCKVIEW_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}
