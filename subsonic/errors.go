package subsonic

import (
	"context"
	"errors"
	"fmt"

	"github.com/briangreenhill/subsonic/cache"
)

// ErrRateLimited is wrapped in a TransportError when the client-side rate
// limiter refuses a request.
var ErrRateLimited = errors.New("client rate limit exceeded")

// ErrNoCredentials is returned by Config.Validate when Credentials is nil.
var ErrNoCredentials = errors.New("credentials are required")

// ConfigurationError reports credentials that are missing or unusable for
// the selected scheme, including an API key the server cannot accept.
type ConfigurationError struct {
	Scheme Scheme
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration: %s auth: %s", e.Scheme, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TransportError reports a failed or timed out network call.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("GET %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the call hit its deadline.
func (e *TransportError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// transportErr wraps a caller cancellation or deadline hit while waiting on
// a cached load. Errors that already carry a TransportError pass through.
func transportErr(endpoint string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Endpoint: endpoint, Err: err}
	}
	return err
}

// ProtocolError reports an envelope that is malformed or carries a value the
// protocol does not allow.
type ProtocolError struct {
	Endpoint string
	Reason   string
	Err      error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("protocol: %s: %s", e.Endpoint, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// HTTPStatusError is returned by Client.Get when the server answers with a
// non-2xx status. Ping and the capability queries treat that case as a soft
// negative instead.
type HTTPStatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected HTTP status %d", e.Endpoint, e.StatusCode)
}

// APIError carries the error object of an envelope whose status is "error".
type APIError struct {
	Endpoint string
	Code     int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: server error %d: %s", e.Endpoint, e.Code, e.Message)
}

// CacheConsistencyError reports duplicate live cache entries for one key.
type CacheConsistencyError = cache.ConsistencyError
