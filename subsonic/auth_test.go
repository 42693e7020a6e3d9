package subsonic

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/subsonic/logging"
)

// stubCaps answers capability checks from a fixed table.
type stubCaps struct {
	table map[string][]int
	err   error
	calls int
}

func (s *stubCaps) supports(_ context.Context, name string, version int) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	for _, v := range s.table[name] {
		if v == version {
			return true, nil
		}
	}
	return false, nil
}

func keysOf(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestBuildParameterKeys(t *testing.T) {
	caps := &stubCaps{table: map[string][]int{"apiKeyAuthentication": {1}}}

	tests := []struct {
		name  string
		creds Credentials
		keys  []string
	}{
		{"plaintext", PlainTextCredentials{Username: "admin", Password: "sesame"}, []string{"p", "u"}},
		{"obfuscated", ObfuscatedCredentials{Username: "admin", Password: "sesame"}, []string{"p", "u"}},
		{"token", TokenCredentials{Username: "admin", Password: "sesame"}, []string{"s", "t", "u"}},
		{"apikey", APIKeyCredentials{Key: "k3y"}, []string{"apiKey"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newAuthBuilder(tt.creds, caps, nil)
			params, err := b.build(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.keys, keysOf(params))
			for _, k := range tt.keys {
				assert.Len(t, params[k], 1, "param %s must appear once", k)
			}
		})
	}
}

func TestBuildValues(t *testing.T) {
	caps := &stubCaps{}

	plain, err := newAuthBuilder(PlainTextCredentials{Username: "admin", Password: "sesame"}, caps, nil).build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin", plain.Get("u"))
	assert.Equal(t, "sesame", plain.Get("p"))

	obf, err := newAuthBuilder(ObfuscatedCredentials{Username: "admin", Password: "sesame"}, caps, nil).build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin", obf.Get("u"))
	assert.Equal(t, "enc:736573616d65", obf.Get("p"))

	assert.Zero(t, caps.calls, "only the API key scheme probes the server")
}

func TestTokenSaltIsFresh(t *testing.T) {
	b := newAuthBuilder(TokenCredentials{Username: "admin", Password: "sesame"}, &stubCaps{}, nil)

	first, err := b.build(context.Background())
	require.NoError(t, err)
	second, err := b.build(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.Get("s"), second.Get("s"))
	assert.NotEqual(t, first.Get("t"), second.Get("t"))

	for _, params := range []map[string][]string{first, second} {
		salt := params["s"][0]
		assert.Len(t, salt, 2*saltBytes, "salt carries 128 bits")
		sum := md5.Sum([]byte("sesame" + salt))
		assert.Equal(t, hex.EncodeToString(sum[:]), params["t"][0])
	}
}

func TestTokenKnownVector(t *testing.T) {
	// Example from the Subsonic API documentation.
	assert.Equal(t, "26719a1196d2a940705a59634eb18eab", tokenFor("sesame", "c19b2d"))
}

func TestTokenSaltFailure(t *testing.T) {
	b := newAuthBuilder(TokenCredentials{Username: "admin", Password: "sesame"}, &stubCaps{}, nil)
	b.salt = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, err := b.build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entropy exhausted")
}

func TestAPIKeyRequiresExtension(t *testing.T) {
	tests := []struct {
		name string
		caps *stubCaps
	}{
		{"extension absent", &stubCaps{table: map[string][]int{}}},
		{"wrong version", &stubCaps{table: map[string][]int{"apiKeyAuthentication": {2}}}},
		{"probe failed", &stubCaps{err: &TransportError{Endpoint: extensionsEndpoint, Err: errors.New("connection refused")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newAuthBuilder(APIKeyCredentials{Key: "k3y"}, tt.caps, nil)
			params, err := b.build(context.Background())

			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, APIKey, ce.Scheme)
			assert.Nil(t, params)
			assert.Equal(t, 1, tt.caps.calls)
		})
	}
}

func TestAPIKeyProbeErrorIsWrapped(t *testing.T) {
	probeErr := &TransportError{Endpoint: extensionsEndpoint, Err: errors.New("connection refused")}
	b := newAuthBuilder(APIKeyCredentials{Key: "k3y"}, &stubCaps{err: probeErr}, nil)

	_, err := b.build(context.Background())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Same(t, probeErr, te)
}

func TestWeakSchemesWarn(t *testing.T) {
	caps := &stubCaps{table: map[string][]int{"apiKeyAuthentication": {1}}}

	tests := []struct {
		creds Credentials
		warns int
	}{
		{PlainTextCredentials{Username: "admin", Password: "sesame"}, 1},
		{ObfuscatedCredentials{Username: "admin", Password: "sesame"}, 1},
		{TokenCredentials{Username: "admin", Password: "sesame"}, 0},
		{APIKeyCredentials{Key: "k3y"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.creds.Scheme().String(), func(t *testing.T) {
			rec := &logging.Recorder{}
			_, err := newAuthBuilder(tt.creds, caps, rec).build(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.warns, rec.Count("warn"))
		})
	}
}

func TestBuildRejectsBlankCredentials(t *testing.T) {
	b := newAuthBuilder(TokenCredentials{Username: "admin", Password: "  "}, &stubCaps{}, nil)
	_, err := b.build(context.Background())

	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, Token, ce.Scheme)
}

func TestNewCredentials(t *testing.T) {
	tests := []struct {
		name    string
		scheme  Scheme
		user    string
		pass    string
		key     string
		want    Credentials
		wantErr bool
	}{
		{"plaintext", PlainText, "admin", "sesame", "", PlainTextCredentials{"admin", "sesame"}, false},
		{"obfuscated", Obfuscated, "admin", "sesame", "", ObfuscatedCredentials{"admin", "sesame"}, false},
		{"token", Token, "admin", "sesame", "ignored", TokenCredentials{"admin", "sesame"}, false},
		{"apikey", APIKey, "", "", "k3y", APIKeyCredentials{"k3y"}, false},
		{"token without password", Token, "admin", "", "", nil, true},
		{"plaintext without user", PlainText, "", "sesame", "", nil, true},
		{"apikey without key", APIKey, "admin", "sesame", " ", nil, true},
		{"unknown scheme", Scheme(9), "admin", "sesame", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewCredentials(tt.scheme, tt.user, tt.pass, tt.key)
			if tt.wantErr {
				var ce *ConfigurationError
				require.ErrorAs(t, err, &ce)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseScheme(t *testing.T) {
	tests := map[string]Scheme{
		"plaintext":  PlainText,
		"PLAIN":      PlainText,
		"obfuscated": Obfuscated,
		"enc":        Obfuscated,
		"token":      Token,
		"":           Token,
		"apikey":     APIKey,
		"API_KEY":    APIKey,
	}
	for in, want := range tests {
		got, err := ParseScheme(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseScheme("kerberos")
	assert.Error(t, err)
}
