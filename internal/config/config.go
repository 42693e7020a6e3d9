// Package config handles client configuration from environment variables
// and an optional TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/briangreenhill/subsonic/subsonic"
)

const envPrefix = "SUBSONIC_"

// Config holds all client configuration. Environment variables override
// values from the config file, which override the defaults.
type Config struct {
	URL        string        `env:"URL" toml:"url"`
	Auth       string        `env:"AUTH" toml:"auth"`
	Username   string        `env:"USERNAME" toml:"username"`
	Password   string        `env:"PASSWORD" toml:"password"`
	APIKey     string        `env:"API_KEY" toml:"api_key"`
	RedactLogs bool          `env:"REDACT_LOGS" toml:"redact_logs"`
	CacheTTL   int           `env:"CACHE_TTL" toml:"cache_ttl"` // seconds
	Timeout    time.Duration `env:"TIMEOUT" toml:"-"`
	LogLevel   string        `env:"LOG_LEVEL" toml:"log_level"`

	// File is the config file that was read, if any.
	File string `toml:"-"`
}

// fileTimeout carries the timeout as a duration string, which TOML has no
// native type for.
type fileTimeout struct {
	Timeout string `toml:"timeout"`
}

func defaults() Config {
	return Config{
		Auth:       "token",
		RedactLogs: true,
		CacheTTL:   int(subsonic.DefaultCacheTTL / time.Second),
		Timeout:    subsonic.DefaultTimeout,
		LogLevel:   "info",
	}
}

// Load reads SUBSONIC_CONFIG (if set) and then the SUBSONIC_* environment.
func Load() (*Config, error) {
	var loc struct {
		Path string `env:"SUBSONIC_CONFIG"`
	}
	if err := env.Parse(&loc); err != nil {
		return nil, fmt.Errorf("read SUBSONIC_CONFIG: %w", err)
	}

	cfg := defaults()
	if loc.Path != "" {
		if err := loadFile(loc.Path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads only the given TOML file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()
	if err := loadFile(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s does not exist", path)
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	var ft fileTimeout
	if err := toml.Unmarshal(data, &ft); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if s := strings.TrimSpace(ft.Timeout); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", s, err)
		}
		cfg.Timeout = d
	}

	cfg.File = path
	return nil
}

// Validate checks that the values can produce a working client.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("no server configured - set %sURL or url in the config file", envPrefix)
	}
	if _, err := subsonic.ParseScheme(c.Auth); err != nil {
		return fmt.Errorf("invalid %sAUTH: %w", envPrefix, err)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("%sCACHE_TTL must not be negative, got %d", envPrefix, c.CacheTTL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%sTIMEOUT must be positive, got %s", envPrefix, c.Timeout)
	}
	return nil
}

// ClientConfig converts the loaded values into a subsonic.Config. A cache
// TTL of zero disables caching.
func (c *Config) ClientConfig() (subsonic.Config, error) {
	scheme, err := subsonic.ParseScheme(c.Auth)
	if err != nil {
		return subsonic.Config{}, err
	}
	creds, err := subsonic.NewCredentials(scheme, c.Username, c.Password, c.APIKey)
	if err != nil {
		return subsonic.Config{}, err
	}

	ttl := time.Duration(c.CacheTTL) * time.Second
	if ttl == 0 {
		ttl = -1
	}
	return subsonic.Config{
		BaseURL:     c.URL,
		Credentials: creds,
		RedactLogs:  c.RedactLogs,
		CacheTTL:    ttl,
		Timeout:     c.Timeout,
	}, nil
}
