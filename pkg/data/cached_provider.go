package data

import (
	"sync"

	"tradecore/pkg/types"
)

// MemoryCache is an in-memory bar cache keyed by source.
type MemoryCache struct {
	mu    sync.RWMutex
	cache map[string][]types.Bar
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{cache: make(map[string][]types.Bar)}
}

// Get returns a copy of the cached series, if present.
func (c *MemoryCache) Get(key string) ([]types.Bar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	bars, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	out := make([]types.Bar, len(bars))
	copy(out, bars)
	return out, true
}

// Set stores a copy of the series.
func (c *MemoryCache) Set(key string, bars []types.Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]types.Bar, len(bars))
	copy(stored, bars)
	c.cache[key] = stored
}

// Clear removes all cached series.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string][]types.Bar)
}

// Size returns the number of cached series.
func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// CachedProvider wraps a Provider with a bar cache so repeated backtest
// runs against the same file load it once.
type CachedProvider struct {
	provider Provider
	cache    Cache
}

// NewCachedProvider wraps the provider with an in-memory cache.
func NewCachedProvider(provider Provider) *CachedProvider {
	return &CachedProvider{provider: provider, cache: NewMemoryCache()}
}

// Name implements Provider.
func (p *CachedProvider) Name() string { return "cached " + p.provider.Name() }

// LoadBars implements Provider with read-through caching.
func (p *CachedProvider) LoadBars(source, symbol string) ([]types.Bar, error) {
	key := source + "|" + symbol
	if bars, ok := p.cache.Get(key); ok {
		return bars, nil
	}

	bars, err := p.provider.LoadBars(source, symbol)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, bars)
	return bars, nil
}

// ValidateBars implements Provider.
func (p *CachedProvider) ValidateBars(bars []types.Bar) error {
	return p.provider.ValidateBars(bars)
}

// ClearCache drops every cached series.
func (p *CachedProvider) ClearCache() { p.cache.Clear() }
