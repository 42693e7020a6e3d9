package subsonic

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/briangreenhill/subsonic/api"
	"github.com/briangreenhill/subsonic/logging"
)

const (
	extensionsEndpoint = "getOpenSubsonicExtensions"
	pingEndpoint       = "ping"
)

// publicEndpoints answer without authentication.
var publicEndpoints = map[string]bool{
	extensionsEndpoint: true,
}

// limiter is satisfied by fortify's token bucket.
type limiter interface {
	Allow(ctx context.Context, key string) bool
}

// result is the outcome of one request. Response is nil when the server
// answered with a non-2xx status; the body is never decoded in that case.
type result struct {
	StatusCode int
	Response   *api.Response
}

// pipeline turns (endpoint, params) into a sent request and a decoded
// envelope.
type pipeline struct {
	baseURL *url.URL
	http    *http.Client
	auth    *authBuilder
	log     logging.Logger
	tel     *telemetry
	limit   limiter

	redact     bool
	timeout    time.Duration
	clientName string
	version    string
}

// buildURL returns <base>/rest/<endpoint> with the fixed v, c and f params
// and any extra params.
func (p *pipeline) buildURL(endpoint string, params url.Values) *url.URL {
	u := *p.baseURL
	u.Path = path.Join("/", u.Path, "rest", endpoint)

	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("v", p.version)
	q.Set("c", p.clientName)
	q.Set("f", "json")
	u.RawQuery = q.Encode()
	return &u
}

func isPublic(endpoint string) bool {
	return publicEndpoints[endpoint]
}

// do runs one request through the pipeline.
func (p *pipeline) do(ctx context.Context, endpoint string, params url.Values) (res *result, err error) {
	requestID := uuid.NewString()
	ctx, span, started := p.tel.start(ctx, endpoint, requestID)
	defer func() {
		status := 0
		if res != nil {
			status = res.StatusCode
		}
		p.tel.finish(ctx, span, started, endpoint, status, err)
	}()

	if p.limit != nil && !p.limit.Allow(ctx, "global") {
		p.log.Warn("rate limit exceeded", logging.F("endpoint", endpoint))
		return nil, &TransportError{Endpoint: endpoint, Err: ErrRateLimited}
	}

	u := p.buildURL(endpoint, params)
	if !isPublic(endpoint) {
		authParams, err := p.auth.build(ctx)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		for k, vs := range authParams {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
	}

	logged := u.String()
	if p.redact {
		logged = redactURL(u)
	}
	p.log.Debug("sending request", logging.F("url", logged), logging.F("request_id", requestID))

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := p.http.Do(req)
	if err != nil {
		p.log.Error("request failed", logging.F("endpoint", endpoint), logging.F("request_id", requestID), logging.F("error", err))
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Early fail to save on decoding.
		_, _ = io.Copy(io.Discard, resp.Body)
		p.log.Info("non-success status, skipping decode",
			logging.F("endpoint", endpoint),
			logging.F("status", resp.StatusCode),
			logging.F("request_id", requestID),
		)
		return &result{StatusCode: resp.StatusCode}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	env, err := api.DecodeBytes(body)
	if err != nil {
		return nil, &ProtocolError{Endpoint: endpoint, Reason: "malformed envelope", Err: err}
	}

	p.log.Debug("response decoded",
		logging.F("endpoint", endpoint),
		logging.F("status", env.Status),
		logging.F("server_version", env.ServerVersion),
		logging.F("request_id", requestID),
	)
	return &result{StatusCode: resp.StatusCode, Response: env}, nil
}

// values converts a flat parameter map to url.Values.
func values(params map[string]string) url.Values {
	if params == nil {
		return nil
	}
	v := make(url.Values, len(params))
	for k, s := range params {
		v.Set(k, s)
	}
	return v
}
