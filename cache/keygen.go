package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cache entry. Params holds the normalized parameter
// encoding; HasParams separates "no params" from an empty parameter set.
type Key struct {
	Endpoint  string
	Params    string
	HasParams bool
}

// KeyFor builds a stable key from endpoint + sorted params, so two maps with
// the same contents always produce the same key.
func KeyFor(endpoint string, params map[string]string) Key {
	if params == nil {
		return Key{Endpoint: endpoint}
	}

	parts := make([]string, 0, len(params))
	for k, v := range params {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
	}
	sort.Strings(parts)

	return Key{
		Endpoint:  endpoint,
		Params:    strings.Join(parts, "&"),
		HasParams: true,
	}
}

func (k Key) String() string {
	if !k.HasParams {
		return k.Endpoint
	}
	return k.Endpoint + "?" + k.Params
}
