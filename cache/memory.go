package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/briangreenhill/subsonic/api"
	"github.com/briangreenhill/subsonic/logging"
)

const defaultSweepInterval = time.Minute

// Memory implements Store in process memory. Entries are grouped per
// endpoint so that Delete without params can drop a whole endpoint.
type Memory struct {
	ttl time.Duration
	now func() time.Time
	log logging.Logger

	mu      sync.RWMutex
	entries map[string][]*Entry

	loads singleflight.Group
}

// Option configures a Memory cache.
type Option func(*Memory)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

// WithLogger sets the logger for cache events.
func WithLogger(l logging.Logger) Option {
	return func(m *Memory) { m.log = logging.OrNop(l) }
}

// NewMemory creates an empty cache whose entries live for ttl.
// A ttl of zero or less stores entries that are already expired.
func NewMemory(ttl time.Duration, opts ...Option) *Memory {
	m := &Memory{
		ttl:     ttl,
		now:     time.Now,
		log:     logging.Nop,
		entries: make(map[string][]*Entry),
	}
	for _, o := range opts {
		o(m)
	}
	m.log.Debug("cache initialised", logging.F("ttl", ttl))
	return m
}

// TTL returns the lifetime given to new entries.
func (m *Memory) TTL() time.Duration {
	return m.ttl
}

// Get implements Reader.
func (m *Memory) Get(endpoint string, params map[string]string) (*api.Response, bool, error) {
	key := KeyFor(endpoint, params)
	now := m.now()

	m.mu.RLock()
	var found []*Entry
	for _, e := range m.entries[endpoint] {
		if e.Key == key && !e.Expired(now) {
			found = append(found, e)
		}
	}
	m.mu.RUnlock()

	switch len(found) {
	case 0:
		m.log.Debug("cache miss", logging.F("key", key.String()))
		return nil, false, nil
	case 1:
		m.log.Debug("cache hit", logging.F("key", key.String()), logging.F("expires", found[0].Expires))
		return found[0].Response, true, nil
	default:
		err := &ConsistencyError{Key: key, Matches: len(found)}
		m.log.Error("cache consistency fault", logging.F("key", key.String()), logging.F("matches", len(found)))
		return nil, false, err
	}
}

// Put implements Writer. Expired entries for the same key are replaced.
func (m *Memory) Put(endpoint string, params map[string]string, resp *api.Response) error {
	key := KeyFor(endpoint, params)
	now := m.now()
	entry := &Entry{Key: key, Response: resp, Expires: now.Add(m.ttl)}

	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.entries[endpoint]
	for _, e := range list {
		if e.Key == key && !e.Expired(now) {
			return ErrEntryExists
		}
	}
	kept := list[:0]
	for _, e := range list {
		if e.Key != key {
			kept = append(kept, e)
		}
	}
	m.entries[endpoint] = append(kept, entry)

	m.log.Debug("cache entry added", logging.F("key", key.String()), logging.F("expires", entry.Expires))
	return nil
}

// Delete implements Writer. Deleting a missing key is a no-op.
func (m *Memory) Delete(endpoint string, params map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if params == nil {
		delete(m.entries, endpoint)
		return
	}

	key := KeyFor(endpoint, params)
	list := m.entries[endpoint]
	kept := list[:0]
	for _, e := range list {
		if e.Key != key {
			kept = append(kept, e)
		}
	}
	m.store(endpoint, kept)
}

// GetOrLoad implements Loader. Concurrent misses for one key share a single
// load. The load runs detached from any one caller's cancellation; a caller
// whose ctx ends stops waiting and gets ctx.Err() while the others still
// receive the result. Only complete, successful ("ok") responses are stored.
// A load returning a nil response with a nil error is passed through
// untouched.
func (m *Memory) GetOrLoad(ctx context.Context, endpoint string, params map[string]string, load LoadFunc) (*api.Response, bool, error) {
	if resp, ok, err := m.Get(endpoint, params); err != nil || ok {
		return resp, ok, err
	}

	type result struct {
		resp *api.Response
		hit  bool
	}

	key := KeyFor(endpoint, params)
	ch := m.loads.DoChan(key.String(), func() (any, error) {
		// Another flight may have filled the key between our miss and now.
		if resp, ok, err := m.Get(endpoint, params); err != nil || ok {
			return result{resp: resp, hit: ok}, err
		}

		// Shared by every waiter, so it keeps ctx values but not its cancellation.
		resp, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return result{}, err
		}
		if resp.OK() {
			if err := m.Put(endpoint, params, resp); err != nil && !errors.Is(err, ErrEntryExists) {
				return result{}, err
			}
		}
		return result{resp: resp}, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case r := <-ch:
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if r.Err != nil {
			return nil, false, r.Err
		}
		res := r.Val.(result)
		return res.resp, res.hit, nil
	}
}

// Sweep removes every entry whose expiry is at or before now and returns
// how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for endpoint, list := range m.entries {
		kept := list[:0]
		for _, e := range list {
			if e.Expired(now) {
				m.log.Debug("removing expired cache entry", logging.F("key", e.Key.String()))
				removed++
				continue
			}
			kept = append(kept, e)
		}
		m.store(endpoint, kept)
	}
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, list := range m.entries {
		n += len(list)
	}
	return n
}

// StartSweeper launches a background goroutine that sweeps the cache at a
// fixed cadence until ctx is done. It returns immediately.
func (m *Memory) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					m.log.Debug("cache sweep", logging.F("removed", n))
				}
			}
		}
	}()
}

// store must be called with mu held.
func (m *Memory) store(endpoint string, list []*Entry) {
	if len(list) == 0 {
		delete(m.entries, endpoint)
		return
	}
	m.entries[endpoint] = list
}

var _ Store = (*Memory)(nil)
