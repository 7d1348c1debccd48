// Package metadata resolves item token URIs into display metadata. The
// fetch itself is delegated to a backend (the IPFS gateway client); results
// are cached per URI so repeated reads never refetch. Resolution is off the
// projection's critical path: a failed or slow fetch leaves an item's
// metadata unresolved and is retried on the next read.
package metadata

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vbonduro/auctionhouse/internal/domain"
)

// Resolver fetches the metadata document behind a token URI.
type Resolver interface {
	Resolve(ctx context.Context, uri string) (*domain.Metadata, error)
}

// Cache stores resolved metadata per URI. Get returns (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, uri string) (*domain.Metadata, error)
	Set(ctx context.Context, uri string, md *domain.Metadata) error
}

// Cached wraps a Resolver with a Cache. Cache errors degrade to a plain
// fetch; only fetch errors propagate.
type Cached struct {
	inner  Resolver
	cache  Cache
	logger *slog.Logger
}

func NewCached(inner Resolver, cache Cache, logger *slog.Logger) *Cached {
	return &Cached{inner: inner, cache: cache, logger: logger}
}

func (c *Cached) Resolve(ctx context.Context, uri string) (*domain.Metadata, error) {
	md, err := c.cache.Get(ctx, uri)
	if err != nil {
		c.logger.Warn("metadata cache read failed", "uri", uri, "error", err)
	} else if md != nil {
		return md, nil
	}

	md, err = c.inner.Resolve(ctx, uri)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, uri, md); err != nil {
		c.logger.Warn("metadata cache write failed", "uri", uri, "error", err)
	}
	return md, nil
}

// MemoryCache is the default in-process cache backend.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*domain.Metadata
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*domain.Metadata)}
}

func (m *MemoryCache) Get(_ context.Context, uri string) (*domain.Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[uri], nil
}

func (m *MemoryCache) Set(_ context.Context, uri string, md *domain.Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[uri] = md
	return nil
}
