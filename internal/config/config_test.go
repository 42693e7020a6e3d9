package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/subsonic/subsonic"
)

var envVars = []string{
	"SUBSONIC_CONFIG",
	"SUBSONIC_URL",
	"SUBSONIC_AUTH",
	"SUBSONIC_USERNAME",
	"SUBSONIC_PASSWORD",
	"SUBSONIC_API_KEY",
	"SUBSONIC_REDACT_LOGS",
	"SUBSONIC_CACHE_TTL",
	"SUBSONIC_TIMEOUT",
	"SUBSONIC_LOG_LEVEL",
}

// clearEnv unsets every SUBSONIC_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "subsonic.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUBSONIC_URL", "http://localhost:4533")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:4533", cfg.URL)
	assert.Equal(t, "token", cfg.Auth)
	assert.True(t, cfg.RedactLogs)
	assert.Equal(t, 300, cfg.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.File)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUBSONIC_URL", "https://music.example.com")
	t.Setenv("SUBSONIC_AUTH", "apikey")
	t.Setenv("SUBSONIC_API_KEY", "k3y")
	t.Setenv("SUBSONIC_REDACT_LOGS", "false")
	t.Setenv("SUBSONIC_CACHE_TTL", "60")
	t.Setenv("SUBSONIC_TIMEOUT", "5s")
	t.Setenv("SUBSONIC_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "apikey", cfg.Auth)
	assert.Equal(t, "k3y", cfg.APIKey)
	assert.False(t, cfg.RedactLogs)
	assert.Equal(t, 60, cfg.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
url = "http://from-file:4533"
auth = "plaintext"
username = "admin"
password = "from-file"
cache_ttl = 10
timeout = "2s"
`)
	t.Setenv("SUBSONIC_CONFIG", path)
	t.Setenv("SUBSONIC_PASSWORD", "from-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "http://from-file:4533", cfg.URL)
	assert.Equal(t, "plaintext", cfg.Auth)
	assert.Equal(t, "admin", cfg.Username)
	assert.Equal(t, "from-env", cfg.Password, "environment overrides the file")
	assert.Equal(t, 10, cfg.CacheTTL)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.True(t, cfg.RedactLogs, "defaults survive when neither source sets a value")
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "does not exist")

	_, err = LoadFile(writeFile(t, `url = `))
	assert.ErrorContains(t, err, "parse config")

	_, err = LoadFile(writeFile(t, "url = \"http://x\"\ntimeout = \"soon\""))
	assert.ErrorContains(t, err, "invalid timeout")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no url", func(c *Config) { c.URL = " " }, "no server configured"},
		{"bad auth", func(c *Config) { c.Auth = "kerberos" }, "SUBSONIC_AUTH"},
		{"negative ttl", func(c *Config) { c.CacheTTL = -1 }, "CACHE_TTL"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			cfg.URL = "http://localhost:4533"
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestClientConfig(t *testing.T) {
	cfg := defaults()
	cfg.URL = "http://localhost:4533"
	cfg.Username = "admin"
	cfg.Password = "sesame"
	cfg.CacheTTL = 0

	cc, err := cfg.ClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4533", cc.BaseURL)
	assert.Equal(t, subsonic.TokenCredentials{Username: "admin", Password: "sesame"}, cc.Credentials)
	assert.True(t, cc.RedactLogs)
	assert.Negative(t, int64(cc.CacheTTL), "zero TTL turns caching off")
	assert.Equal(t, 30*time.Second, cc.Timeout)

	cfg.CacheTTL = 120
	cc, err = cfg.ClientConfig()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cc.CacheTTL)

	cfg.Auth = "apikey"
	_, err = cfg.ClientConfig()
	var ce *subsonic.ConfigurationError
	assert.ErrorAs(t, err, &ce, "api key scheme without a key")
}
