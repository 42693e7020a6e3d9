package subsonic

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultClientName is sent as c on every request.
	DefaultClientName = "subsonic-go"
	// DefaultProtocolVersion is sent as v on every request.
	DefaultProtocolVersion = "1.16.1"
	// DefaultTimeout bounds every network call.
	DefaultTimeout = 30 * time.Second
	// DefaultCacheTTL is the lifetime of cached envelopes.
	DefaultCacheTTL = 5 * time.Minute
)

// Config holds everything needed to talk to one server.
type Config struct {
	BaseURL     string
	Credentials Credentials

	// RedactLogs masks secrets in logged request URLs.
	RedactLogs bool
	// CacheTTL is the lifetime of cached envelopes. Zero selects
	// DefaultCacheTTL; a negative value stores entries already expired,
	// which turns caching off.
	CacheTTL time.Duration
	Timeout  time.Duration

	ClientName      string
	ProtocolVersion string
}

// Validate checks that the base URL parses and the credentials are complete
// for their scheme.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base URL %q: scheme must be http or https", c.BaseURL)
	}
	if c.Credentials == nil {
		return ErrNoCredentials
	}
	return c.Credentials.validate()
}

func (c Config) withDefaults() Config {
	if c.ClientName == "" {
		c.ClientName = DefaultClientName
	}
	if c.ProtocolVersion == "" {
		c.ProtocolVersion = DefaultProtocolVersion
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}
