package rangereader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	fakeSource
	reads int
}

func (c *countingSource) ReadRange(ctx context.Context, offset uint64, length uint32) ([]byte, error) {
	c.reads++
	return c.fakeSource.ReadRange(ctx, offset, length)
}

func TestMemoryCacheServesRepeatRangesWithoutRefetch(t *testing.T) {
	backing := make([]byte, 256)
	for i := range backing {
		backing[i] = byte(i)
	}
	inner := &countingSource{fakeSource: fakeSource{data: backing}}

	cache, err := NewMemoryCache(inner, 16, 1<<20)
	require.NoError(t, err)

	data1, err := cache.ReadRange(context.Background(), 10, 20)
	require.NoError(t, err)
	data2, err := cache.ReadRange(context.Background(), 10, 20)
	require.NoError(t, err)

	assert.Equal(t, data1, data2)
	assert.Equal(t, 1, inner.reads)
}

func TestMemoryCacheDistinctRangesBothFetch(t *testing.T) {
	backing := make([]byte, 256)
	inner := &countingSource{fakeSource: fakeSource{data: backing}}

	cache, err := NewMemoryCache(inner, 16, 1<<20)
	require.NoError(t, err)

	_, err = cache.ReadRange(context.Background(), 0, 20)
	require.NoError(t, err)
	_, err = cache.ReadRange(context.Background(), 100, 20)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.reads)
}

func TestMemoryCacheRespectsByteBudget(t *testing.T) {
	backing := make([]byte, 256)
	inner := &countingSource{fakeSource: fakeSource{data: backing}}

	// budget too small to retain anything
	cache, err := NewMemoryCache(inner, 16, 1)
	require.NoError(t, err)

	_, err = cache.ReadRange(context.Background(), 0, 20)
	require.NoError(t, err)
	_, err = cache.ReadRange(context.Background(), 0, 20)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.reads)
}
