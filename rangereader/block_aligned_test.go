package rangereader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockAlignedAlign(t *testing.T) {
	b := &BlockAligned{blockSize: 1024}

	off, length, skip := b.align(100, 50)
	assert.Equal(t, uint64(0), off)
	assert.Equal(t, uint32(1024), length)
	assert.Equal(t, uint32(100), skip)

	off, length, skip = b.align(1024, 1024)
	assert.Equal(t, uint64(1024), off)
	assert.Equal(t, uint32(1024), length)
	assert.Equal(t, uint32(0), skip)

	off, length, skip = b.align(2000, 100)
	assert.Equal(t, uint64(1024), off)
	assert.Equal(t, uint32(2048), length)
	assert.Equal(t, uint32(976), skip)
}

func TestBlockAlignedReadRangeTrimsToRequestedWindow(t *testing.T) {
	backing := make([]byte, 4096)
	for i := range backing {
		backing[i] = byte(i)
	}
	inner := &fakeSource{data: backing}
	b := NewBlockAligned(inner, 1024)

	data, err := b.ReadRange(context.Background(), 1000, 10)
	require.NoError(t, err)
	assert.Equal(t, backing[1000:1010], data)
	// underlying fetch must have been block-aligned, not a 10-byte read
	assert.Equal(t, uint64(0), inner.lastOffset)
	assert.Equal(t, uint32(1024), inner.lastLength)
}

type fakeSource struct {
	data       []byte
	lastOffset uint64
	lastLength uint32
}

func (f *fakeSource) Size(ctx context.Context) (uint64, error) {
	return uint64(len(f.data)), nil
}

func (f *fakeSource) ReadRange(ctx context.Context, offset uint64, length uint32) ([]byte, error) {
	f.lastOffset, f.lastLength = offset, length
	end := offset + uint64(length)
	if end > uint64(len(f.data)) {
		end = uint64(len(f.data))
	}
	return f.data[offset:end], nil
}

func (f *fakeSource) ReadRangeInto(ctx context.Context, offset uint64, length uint32, dst []byte) (int, error) {
	data, err := f.ReadRange(ctx, offset, length)
	if err != nil {
		return 0, err
	}
	return copy(dst, data), nil
}

func (f *fakeSource) Close() error { return nil }
