// Package subsonic is a client for the Subsonic/OpenSubsonic music server
// protocol. It builds authenticated requests, negotiates OpenSubsonic
// extensions and caches decoded responses.
package subsonic

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/briangreenhill/subsonic/api"
	"github.com/briangreenhill/subsonic/cache"
	"github.com/briangreenhill/subsonic/logging"
)

// Logged once by New for the plain text and obfuscated schemes; msgWeakSchemeSent
// is logged for every request that uses them.
const msgWeakSchemeConfigured = "client configured with a weak authentication scheme, prefer token or apikey"

// Client is the entry point for talking to one server.
type Client struct {
	cfg   Config
	cache cache.Store
	pipe  *pipeline
	caps  *capabilityRegistry
	log   logging.Logger
	tel   *telemetry
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	http   *http.Client
	cache  cache.Store
	logger logging.Logger
	tp     trace.TracerProvider
	mp     metric.MeterProvider
	rate   int
	burst  int
}

// WithHTTPClient replaces the HTTP client used for every request.
func WithHTTPClient(h *http.Client) Option {
	return func(o *clientOptions) { o.http = h }
}

// WithCache replaces the default in-memory response cache.
func WithCache(c cache.Store) Option {
	return func(o *clientOptions) { o.cache = c }
}

// WithLogger sets the sink for client diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithTracerProvider sets a custom tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *clientOptions) { o.tp = tp }
}

// WithMeterProvider sets a custom meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *clientOptions) { o.mp = mp }
}

// WithRateLimit caps outgoing requests at rate per second with the given
// burst. Requests over the limit fail with ErrRateLimited.
func WithRateLimit(rate, burst int) Option {
	return func(o *clientOptions) { o.rate, o.burst = rate, burst }
}

// New validates cfg and builds a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	log := logging.OrNop(o.logger)
	if o.http == nil {
		o.http = &http.Client{
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		}
	}
	if o.cache == nil {
		o.cache = cache.NewMemory(cfg.CacheTTL, cache.WithLogger(log))
	}

	tel := newTelemetry(o.tp, o.mp)
	pipe := &pipeline{
		baseURL:    base,
		http:       o.http,
		log:        log,
		tel:        tel,
		redact:     cfg.RedactLogs,
		timeout:    cfg.Timeout,
		clientName: cfg.ClientName,
		version:    cfg.ProtocolVersion,
	}
	if o.rate > 0 {
		pipe.limit = ratelimit.New(&ratelimit.Config{
			Rate:     o.rate,
			Burst:    max(o.burst, 1),
			Interval: time.Second,
		})
	}
	caps := &capabilityRegistry{pipe: pipe, cache: o.cache, log: log, tel: tel}
	pipe.auth = newAuthBuilder(cfg.Credentials, caps, log)

	log.Info("subsonic client initialised",
		logging.F("url", base.String()),
		logging.F("scheme", cfg.Credentials.Scheme().String()),
		logging.F("client", cfg.ClientName),
	)
	if s := cfg.Credentials.Scheme(); s == PlainText || s == Obfuscated {
		log.Warn(msgWeakSchemeConfigured,
			logging.F("scheme", s.String()))
	}

	return &Client{
		cfg:   cfg,
		cache: o.cache,
		pipe:  pipe,
		caps:  caps,
		log:   log,
		tel:   tel,
	}, nil
}

// Ping reports whether the server is reachable and accepts the credentials.
// A non-2xx HTTP status yields false without decoding the body.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	res, err := c.pipe.do(ctx, pingEndpoint, nil)
	if err != nil {
		return false, err
	}
	if res.Response == nil {
		c.log.Info("returning false from ping", logging.F("status", res.StatusCode))
		return false, nil
	}

	c.log.Info("ping returned", logging.F("status", res.Response.Status))
	switch res.Response.Status {
	case api.StatusOK:
		return true, nil
	case api.StatusFailed:
		if e := res.Response.Error; e != nil {
			c.log.Warn("ping rejected", logging.F("code", e.Code), logging.F("message", e.Message))
		}
		return false, nil
	default:
		return false, &ProtocolError{
			Endpoint: pingEndpoint,
			Reason:   fmt.Sprintf("unexpected status value %q, expected ok or error", res.Response.Status),
		}
	}
}

// Extensions returns the OpenSubsonic extensions the server advertises,
// name -> supported versions. Servers that cannot answer have none.
func (c *Client) Extensions(ctx context.Context) (map[string][]int, error) {
	return c.caps.extensions(ctx)
}

// HasExtension reports whether extension name is supported at version.
func (c *Client) HasExtension(ctx context.Context, name string, version int) (bool, error) {
	return c.caps.supports(ctx, name, version)
}

// Get sends an authenticated request to any endpoint and returns the
// decoded envelope. Successful envelopes are cached per endpoint + params.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string) (*api.Response, error) {
	endpoint = strings.Trim(endpoint, "/")
	if endpoint == "" || strings.Contains(endpoint, "/") {
		return nil, fmt.Errorf("invalid endpoint %q", endpoint)
	}

	resp, hit, err := c.cache.GetOrLoad(ctx, endpoint, params, func(ctx context.Context) (*api.Response, error) {
		res, err := c.pipe.do(ctx, endpoint, values(params))
		if err != nil {
			return nil, err
		}
		if res.Response == nil {
			return nil, &HTTPStatusError{Endpoint: endpoint, StatusCode: res.StatusCode}
		}
		return res.Response, nil
	})
	c.tel.cacheLookup(ctx, endpoint, hit)
	if err != nil {
		var ce *CacheConsistencyError
		if errors.As(err, &ce) {
			c.log.Error("refusing cached response", logging.F("endpoint", endpoint), logging.F("error", err))
		}
		return nil, transportErr(endpoint, err)
	}

	switch resp.Status {
	case api.StatusOK:
		return resp, nil
	case api.StatusFailed:
		apiErr := &APIError{Endpoint: endpoint}
		if resp.Error != nil {
			apiErr.Code, apiErr.Message = resp.Error.Code, resp.Error.Message
		}
		return resp, apiErr
	default:
		return nil, &ProtocolError{Endpoint: endpoint, Reason: fmt.Sprintf("unexpected status value %q", resp.Status)}
	}
}

// Invalidate drops cached responses for endpoint: the exact params entry,
// or all entries when params is nil.
func (c *Client) Invalidate(endpoint string, params map[string]string) {
	c.cache.Delete(endpoint, params)
}

// Scheme returns the active authentication scheme.
func (c *Client) Scheme() Scheme {
	return c.cfg.Credentials.Scheme()
}
