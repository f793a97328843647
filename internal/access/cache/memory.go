package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

// MemoryClient is an in-process Client for single-node deployments and
// tests. Expiry is lazy: entries are checked on read and swept when new
// writes land on them.
type MemoryClient struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
	closed  bool
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func (c *MemoryClient) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.expired(c.now()) {
		delete(c.entries, key)
		return "", ErrMiss
	}
	return e.value, nil
}

func (c *MemoryClient) GetDel(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	delete(c.entries, key)
	if !ok || e.expired(c.now()) {
		return "", ErrMiss
	}
	return e.value, nil
}

func (c *MemoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = memoryEntry{value: value, expiresAt: expiresAt}
	return nil
}

func (c *MemoryClient) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *MemoryClient) Keys(ctx context.Context, pattern string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var out []string
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (c *MemoryClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	now := c.now()
	if !ok || e.expired(now) {
		delete(c.entries, key)
		return 0, ErrMiss
	}
	if e.expiresAt.IsZero() {
		return -1, nil
	}
	return e.expiresAt.Sub(now), nil
}

func (c *MemoryClient) Ping(ctx context.Context) error { return nil }

func (c *MemoryClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
	c.closed = true
	return nil
}
