package subsonic

import (
	"fmt"
	"strings"
)

// Scheme selects how credentials are sent to the server.
type Scheme int

const (
	// PlainText sends username and password verbatim.
	PlainText Scheme = iota
	// Obfuscated sends the password hex encoded with an "enc:" prefix.
	Obfuscated
	// Token sends md5(password + salt) and the salt.
	Token
	// APIKey sends a server-issued key; requires the apiKeyAuthentication extension.
	APIKey
)

func (s Scheme) String() string {
	switch s {
	case PlainText:
		return "plaintext"
	case Obfuscated:
		return "obfuscated"
	case Token:
		return "token"
	case APIKey:
		return "apikey"
	default:
		return fmt.Sprintf("scheme(%d)", int(s))
	}
}

// ParseScheme maps a config value to a Scheme. Matching is case-insensitive.
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain", "plaintext", "plain_text":
		return PlainText, nil
	case "obfuscated", "enc":
		return Obfuscated, nil
	case "token", "":
		return Token, nil
	case "apikey", "api_key", "api-key":
		return APIKey, nil
	default:
		return 0, fmt.Errorf("unknown auth scheme %q", s)
	}
}

// Credentials is one of PlainTextCredentials, ObfuscatedCredentials,
// TokenCredentials or APIKeyCredentials.
type Credentials interface {
	Scheme() Scheme
	validate() error
}

// PlainTextCredentials authenticate with u/p, password in clear.
type PlainTextCredentials struct {
	Username string
	Password string
}

// ObfuscatedCredentials authenticate with u/p, password hex encoded.
type ObfuscatedCredentials struct {
	Username string
	Password string
}

// TokenCredentials authenticate with u/t/s salted token.
type TokenCredentials struct {
	Username string
	Password string
}

// APIKeyCredentials authenticate with a server-issued apiKey.
type APIKeyCredentials struct {
	Key string
}

func (PlainTextCredentials) Scheme() Scheme  { return PlainText }
func (ObfuscatedCredentials) Scheme() Scheme { return Obfuscated }
func (TokenCredentials) Scheme() Scheme      { return Token }
func (APIKeyCredentials) Scheme() Scheme     { return APIKey }

func (c PlainTextCredentials) validate() error {
	return requireUserPass(PlainText, c.Username, c.Password)
}

func (c ObfuscatedCredentials) validate() error {
	return requireUserPass(Obfuscated, c.Username, c.Password)
}

func (c TokenCredentials) validate() error {
	return requireUserPass(Token, c.Username, c.Password)
}

func (c APIKeyCredentials) validate() error {
	if strings.TrimSpace(c.Key) == "" {
		return &ConfigurationError{Scheme: APIKey, Reason: "api key is required"}
	}
	return nil
}

func requireUserPass(s Scheme, user, pass string) error {
	if strings.TrimSpace(user) == "" || strings.TrimSpace(pass) == "" {
		return &ConfigurationError{Scheme: s, Reason: "username and password are required"}
	}
	return nil
}

// NewCredentials builds the credential variant for scheme from loosely
// typed config values and validates it.
func NewCredentials(scheme Scheme, username, password, apiKey string) (Credentials, error) {
	var c Credentials
	switch scheme {
	case PlainText:
		c = PlainTextCredentials{Username: username, Password: password}
	case Obfuscated:
		c = ObfuscatedCredentials{Username: username, Password: password}
	case Token:
		c = TokenCredentials{Username: username, Password: password}
	case APIKey:
		c = APIKeyCredentials{Key: apiKey}
	default:
		return nil, &ConfigurationError{Scheme: scheme, Reason: "unsupported scheme"}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// username returns the login name sent as u, or "" for APIKey.
func username(c Credentials) string {
	switch v := c.(type) {
	case PlainTextCredentials:
		return v.Username
	case ObfuscatedCredentials:
		return v.Username
	case TokenCredentials:
		return v.Username
	default:
		return ""
	}
}
