// Package filecache memoizes network files such as remote definition sets.
//
// Lookups for the same name are coalesced: while a fetch is in flight every
// other caller waits on it and receives the same result. Successful results
// live in a bounded LRU, optionally backed by a persistent Store. Failures are
// never cached.
package filecache

import (
	"container/list"
	"context"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	hinterrors "codehint/internal/errors"
	"codehint/internal/metrics"
	"codehint/internal/slogutil"
)

var networkName = regexp.MustCompile(`^https?://`)

// IsNetworkName reports whether name is fetched over the network.
func IsNetworkName(name string) bool {
	return networkName.MatchString(name)
}

// Store persists fetched files between processes.
type Store interface {
	Get(ctx context.Context, name string) (string, bool, error)
	Put(ctx context.Context, name, content string) error
}

// Options configures a Cache.
type Options struct {
	MaxEntries   int
	FetchTimeout time.Duration
}

// DefaultOptions matches the config defaults.
func DefaultOptions() Options {
	return Options{
		MaxEntries:   256,
		FetchTimeout: 10 * time.Second,
	}
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries  int
	Hits     int64
	Misses   int64
	Shared   int64
	Fetches  int64
	Failures int64
}

type entry struct {
	name    string
	content string
}

// Cache is a bounded, coalescing cache of network files.
type Cache struct {
	mu  sync.Mutex
	cap int
	ll  *list.List
	m   map[string]*list.Element

	flight  singleflight.Group
	fetcher Fetcher
	store   Store
	timeout time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics

	hits     int64
	misses   int64
	shared   int64
	fetches  int64
	failures int64
}

// New creates a cache that fetches misses through fetcher.
func New(fetcher Fetcher, opts Options, logger *slog.Logger, m *metrics.Metrics) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 1
	}
	return &Cache{
		cap:     opts.MaxEntries,
		ll:      list.New(),
		m:       make(map[string]*list.Element),
		fetcher: fetcher,
		timeout: opts.FetchTimeout,
		logger:  slogutil.Component(logger, "filecache"),
		metrics: m,
	}
}

// SetStore attaches a persistent tier consulted before the network.
func (c *Cache) SetStore(s Store) {
	c.mu.Lock()
	c.store = s
	c.mu.Unlock()
}

// Load returns the contents of a network file, fetching it at most once
// per cache lifetime. Non-network names are rejected with INVALID_NAME.
//
// A cancelled ctx abandons the wait but not the shared fetch, whose result
// is still cached for later callers.
func (c *Cache) Load(ctx context.Context, name string) (string, error) {
	if !IsNetworkName(name) {
		return "", hinterrors.Newf(hinterrors.InvalidName, "not a network file: %s", name)
	}

	if content, ok := c.lookup(name); ok {
		atomic.AddInt64(&c.hits, 1)
		c.metrics.RecordCacheLookup("hit")
		return content, nil
	}

	// singleflight runs only the first caller's function, so leader tells
	// the fetching caller apart from those that joined its flight. The
	// write happens before the result is sent on ch.
	var leader bool
	ch := c.flight.DoChan(name, func() (interface{}, error) {
		leader = true
		return c.fill(context.WithoutCancel(ctx), name)
	})

	select {
	case <-ctx.Done():
		return "", hinterrors.New(hinterrors.Timeout, "waiting for "+name, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			c.metrics.RecordCacheLookup("error")
			return "", res.Err
		}
		if leader {
			atomic.AddInt64(&c.misses, 1)
			c.metrics.RecordCacheLookup("miss")
		} else {
			atomic.AddInt64(&c.shared, 1)
			c.metrics.RecordCacheLookup("shared")
		}
		return res.Val.(string), nil
	}
}

// Get is the fail-soft form of Load: any failure yields empty content.
func (c *Cache) Get(ctx context.Context, name string) string {
	content, err := c.Load(ctx, name)
	if err != nil {
		c.logger.Warn("file unavailable, using empty content",
			"name", name,
			"error", err.Error(),
		)
		return ""
	}
	return content
}

// fill runs once per in-flight name.
func (c *Cache) fill(ctx context.Context, name string) (string, error) {
	// A flight that finished between the caller's lookup and DoChan has
	// already stored the result.
	if content, ok := c.lookup(name); ok {
		return content, nil
	}

	c.mu.Lock()
	store := c.store
	c.mu.Unlock()

	if store != nil {
		content, ok, err := store.Get(ctx, name)
		if err != nil {
			c.logger.Debug("persistent lookup failed", "name", name, "error", err.Error())
		} else if ok {
			c.add(name, content)
			return content, nil
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	atomic.AddInt64(&c.fetches, 1)
	start := time.Now()
	content, err := c.fetcher.Fetch(ctx, name)
	if err != nil {
		atomic.AddInt64(&c.failures, 1)
		c.metrics.RecordFetch("error")
		if hinterrors.CodeOf(err) == "" {
			err = hinterrors.New(hinterrors.FileReadFailure, "fetch "+name, err)
		}
		return "", err
	}
	c.metrics.RecordFetch("ok")
	c.logger.Debug("fetched file",
		"name", name,
		"bytes", len(content),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	c.add(name, content)
	if store != nil {
		if err := store.Put(ctx, name, content); err != nil {
			c.logger.Warn("failed to persist fetched file", "name", name, "error", err.Error())
		}
	}
	return content, nil
}

func (c *Cache) lookup(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.m[name]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*entry).content, true
	}
	return "", false
}

func (c *Cache) add(name, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.m[name]; ok {
		el.Value.(*entry).content = content
		c.ll.MoveToFront(el)
		return
	}

	c.m[name] = c.ll.PushFront(&entry{name: name, content: content})
	for c.ll.Len() > c.cap {
		last := c.ll.Back()
		delete(c.m, last.Value.(*entry).name)
		c.ll.Remove(last)
	}
	c.metrics.SetCacheEntries(c.ll.Len())
}

// Contains reports whether name is cached in memory.
func (c *Cache) Contains(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.m[name]
	return ok
}

// Len returns the number of cached files.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:  c.Len(),
		Hits:     atomic.LoadInt64(&c.hits),
		Misses:   atomic.LoadInt64(&c.misses),
		Shared:   atomic.LoadInt64(&c.shared),
		Fetches:  atomic.LoadInt64(&c.fetches),
		Failures: atomic.LoadInt64(&c.failures),
	}
}
