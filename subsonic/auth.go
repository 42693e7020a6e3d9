package subsonic

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/briangreenhill/subsonic/logging"
)

// Extension name and version a server must advertise before API keys are sent.
const (
	apiKeyExtension        = "apiKeyAuthentication"
	apiKeyExtensionVersion = 1
)

const msgWeakSchemeSent = "not using token authentication: credentials are sent in a weak form, especially unsafe without HTTPS"

// saltBytes gives the token salt 128 bits of entropy.
const saltBytes = 16

// capabilityChecker is the slice of the capability registry the auth
// builder needs.
type capabilityChecker interface {
	supports(ctx context.Context, name string, version int) (bool, error)
}

// authBuilder produces the per-request authentication query parameters.
type authBuilder struct {
	creds Credentials
	caps  capabilityChecker
	log   logging.Logger
	salt  func() (string, error)
}

func newAuthBuilder(creds Credentials, caps capabilityChecker, log logging.Logger) *authBuilder {
	return &authBuilder{
		creds: creds,
		caps:  caps,
		log:   logging.OrNop(log),
		salt:  randomSalt,
	}
}

// build returns the auth parameters for one request. Token requests get a
// fresh salt every time.
func (b *authBuilder) build(ctx context.Context) (url.Values, error) {
	if err := b.creds.validate(); err != nil {
		return nil, err
	}

	scheme := b.creds.Scheme()
	if scheme == APIKey {
		ok, err := b.caps.supports(ctx, apiKeyExtension, apiKeyExtensionVersion)
		if err != nil {
			// The caller gave up; that says nothing about server support.
			if ctx.Err() != nil {
				return nil, err
			}
			return nil, &ConfigurationError{Scheme: APIKey, Reason: "could not confirm server support for " + apiKeyExtension, Err: err}
		}
		if !ok {
			return nil, &ConfigurationError{Scheme: APIKey, Reason: fmt.Sprintf("server does not advertise %s version %d", apiKeyExtension, apiKeyExtensionVersion)}
		}
	}

	params := url.Values{}
	// Added once here so the scheme branches below don't repeat it.
	if user := username(b.creds); user != "" {
		b.log.Debug("authenticating", logging.F("user", user), logging.F("scheme", scheme.String()))
		params.Set("u", user)
	}

	switch c := b.creds.(type) {
	case PlainTextCredentials:
		params.Set("p", c.Password)
	case ObfuscatedCredentials:
		params.Set("p", "enc:"+hex.EncodeToString([]byte(c.Password)))
	case TokenCredentials:
		salt, err := b.salt()
		if err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		params.Set("t", tokenFor(c.Password, salt))
		params.Set("s", salt)
	case APIKeyCredentials:
		params.Set("apiKey", c.Key)
	}

	if scheme == PlainText || scheme == Obfuscated {
		b.log.Warn(msgWeakSchemeSent,
			logging.F("scheme", scheme.String()))
	}
	return params, nil
}

// tokenFor computes hex(md5(password + salt)).
func tokenFor(password, salt string) string {
	sum := md5.Sum([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

func randomSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
