// Package cache provides the response cache used by the Subsonic client:
// decoded envelopes keyed by endpoint and normalized parameters, with
// TTL-based expiry.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/briangreenhill/subsonic/api"
)

// ErrEntryExists is returned by Put when a live entry already holds the key.
var ErrEntryExists = errors.New("cache entry already exists")

// ConsistencyError reports more than one live entry matching a single key.
// Put never stores a second live entry for a key, so this means the store was modified another way.
type ConsistencyError struct {
	Key     Key
	Matches int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("cache state is invalid: %d entries match %s", e.Matches, e.Key)
}

// Entry is a cached envelope with its absolute expiry instant.
type Entry struct {
	Key      Key
	Response *api.Response
	Expires  time.Time
}

// Expired reports whether the entry is dead at now.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.Expires)
}

// Reader defines the interface for reading cache entries.
type Reader interface {
	// Get returns the unique live entry for endpoint and params.
	// A nil params map matches only entries stored without params.
	Get(endpoint string, params map[string]string) (*api.Response, bool, error)
}

// Writer defines the interface for writing cache entries.
type Writer interface {
	// Put stores resp until now + TTL. It fails with ErrEntryExists when a
	// live entry holds the same key.
	Put(endpoint string, params map[string]string, resp *api.Response) error
	// Delete removes the exact key, or every entry of endpoint when params is nil.
	Delete(endpoint string, params map[string]string)
}

// LoadFunc fetches a response on a cache miss.
type LoadFunc func(ctx context.Context) (*api.Response, error)

// Loader fills misses.
type Loader interface {
	// GetOrLoad returns the cached response or calls load once per key,
	// however many callers miss concurrently. The bool reports a cache hit.
	GetOrLoad(ctx context.Context, endpoint string, params map[string]string, load LoadFunc) (*api.Response, bool, error)
}

// Store is the main interface that combines all cache operations.
type Store interface {
	Reader
	Writer
	Loader
}
