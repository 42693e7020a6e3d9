package subsonic

import (
	"context"

	"github.com/briangreenhill/subsonic/api"
	"github.com/briangreenhill/subsonic/cache"
	"github.com/briangreenhill/subsonic/logging"
)

// capabilityRegistry answers which OpenSubsonic extensions the server
// advertises. Answers are memoized through the response cache, so they
// follow its TTL.
type capabilityRegistry struct {
	pipe  *pipeline
	cache cache.Store
	log   logging.Logger
	tel   *telemetry
}

// extensions returns the advertised extension table. Servers that answer
// with a non-2xx status or an error envelope have no extensions; that
// answer is not cached.
func (r *capabilityRegistry) extensions(ctx context.Context) (map[string][]int, error) {
	resp, hit, err := r.cache.GetOrLoad(ctx, extensionsEndpoint, nil, func(ctx context.Context) (*api.Response, error) {
		res, err := r.pipe.do(ctx, extensionsEndpoint, nil)
		if err != nil {
			return nil, err
		}
		if res.Response == nil {
			r.log.Info("returning no OpenSubsonic extensions", logging.F("status", res.StatusCode))
			return nil, nil
		}
		return res.Response, nil
	})
	r.tel.cacheLookup(ctx, extensionsEndpoint, hit)
	if err != nil {
		return nil, transportErr(extensionsEndpoint, err)
	}

	if !resp.OK() {
		if resp != nil && resp.Error != nil {
			r.log.Info("server rejected extension query",
				logging.F("code", resp.Error.Code),
				logging.F("message", resp.Error.Message),
			)
		}
		return map[string][]int{}, nil
	}
	return resp.Extensions(), nil
}

// supports reports whether name is advertised at exactly version.
func (r *capabilityRegistry) supports(ctx context.Context, name string, version int) (bool, error) {
	table, err := r.extensions(ctx)
	if err != nil {
		return false, err
	}
	ok := api.Supports(table, name, version)
	r.log.Debug("checked OpenSubsonic extension",
		logging.F("extension", name),
		logging.F("version", version),
		logging.F("supported", ok),
	)
	return ok, nil
}
