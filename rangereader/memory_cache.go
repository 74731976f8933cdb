package rangereader

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// memoryCacheKey identifies one previously-fetched range. Two requests for
// the same (offset, length) against the same Source return the same
// bytes, which holds for PMTiles archives because ranges only ever cover
// immutable header/directory/tile regions.
type memoryCacheKey struct {
	offset uint64
	length uint32
}

// MemoryCache wraps a Source with an in-process LRU cache of recently
// read ranges, sized in bytes rather than entry count so a handful of
// large tile reads cannot starve out many small directory reads. Modeled
// on the request-coalescing cache loop the reference server keeps for
// header and directory fetches, generalized here to cache arbitrary
// ranges for any Source.
type MemoryCache struct {
	inner      Source
	mu         sync.Mutex
	entries    *lru.Cache[memoryCacheKey, []byte]
	maxBytes   int64
	usedBytes  int64
	sizeOnce   sync.Once
	size       uint64
	sizeErr    error
}

// NewMemoryCache wraps inner with an LRU cache capped at approximately
// maxBytes of cached range data. maxEntries bounds the number of distinct
// ranges tracked, independent of their size.
func NewMemoryCache(inner Source, maxEntries int, maxBytes int64) (*MemoryCache, error) {
	c := &MemoryCache{inner: inner, maxBytes: maxBytes}
	cache, err := lru.NewWithEvict[memoryCacheKey, []byte](maxEntries, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("rangereader: building memory cache: %w", err)
	}
	c.entries = cache
	return c, nil
}

func (c *MemoryCache) onEvict(_ memoryCacheKey, value []byte) {
	c.usedBytes -= int64(len(value))
}

func (c *MemoryCache) Size(ctx context.Context) (uint64, error) {
	c.sizeOnce.Do(func() {
		c.size, c.sizeErr = c.inner.Size(ctx)
	})
	return c.size, c.sizeErr
}

func (c *MemoryCache) ReadRange(ctx context.Context, offset uint64, length uint32) ([]byte, error) {
	key := memoryCacheKey{offset, length}

	c.mu.Lock()
	if cached, ok := c.entries.Get(key); ok {
		c.mu.Unlock()
		out := make([]byte, len(cached))
		copy(out, cached)
		return out, nil
	}
	c.mu.Unlock()

	data, err := c.inner.ReadRange(ctx, offset, length)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.usedBytes+int64(len(data)) <= c.maxBytes {
		c.entries.Add(key, data)
		c.usedBytes += int64(len(data))
	}
	c.mu.Unlock()

	return data, nil
}

func (c *MemoryCache) ReadRangeInto(ctx context.Context, offset uint64, length uint32, dst []byte) (int, error) {
	data, err := c.ReadRange(ctx, offset, length)
	if err != nil {
		return 0, err
	}
	n := copy(dst[:length], data)
	return n, nil
}

func (c *MemoryCache) Close() error {
	return c.inner.Close()
}
