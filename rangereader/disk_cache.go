package rangereader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DiskCache wraps a Source with a chunked on-disk cache, for long-running
// processes (a tile server, a batch job iterating the same remote archive
// many times) where MemoryCache's process-lifetime-only cache is too
// short-lived and refetching ranges over HTTP or a cloud API is the
// dominant cost. Chunks are written to a temp file in dir and atomically
// renamed into place, so a crash mid-write never leaves a corrupt chunk
// for a later run to read.
type DiskCache struct {
	inner     Source
	dir       string
	chunkSize uint64

	mu sync.Mutex
}

// NewDiskCache wraps inner, storing fetched chunkSize-aligned chunks
// under dir. dir is created if it does not exist.
func NewDiskCache(inner Source, dir string, chunkSize uint64) (*DiskCache, error) {
	if chunkSize == 0 {
		chunkSize = DefaultBlockSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("rangereader: creating disk cache dir: %w", err)
	}
	return &DiskCache{inner: inner, dir: dir, chunkSize: chunkSize}, nil
}

func (d *DiskCache) chunkPath(chunkIdx uint64) string {
	return filepath.Join(d.dir, fmt.Sprintf("chunk-%016x", chunkIdx))
}

func (d *DiskCache) Size(ctx context.Context) (uint64, error) {
	return d.inner.Size(ctx)
}

// readChunk returns the full contents of the chunk containing offset,
// fetching and persisting it from inner if not already cached.
func (d *DiskCache) readChunk(ctx context.Context, chunkIdx uint64) ([]byte, error) {
	path := d.chunkPath(chunkIdx)

	d.mu.Lock()
	defer d.mu.Unlock()

	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}

	size, err := d.inner.Size(ctx)
	if err != nil {
		return nil, err
	}
	chunkStart := chunkIdx * d.chunkSize
	if chunkStart >= size {
		return nil, fmt.Errorf("rangereader: chunk %d past end of object", chunkIdx)
	}
	length := d.chunkSize
	if chunkStart+length > size {
		length = size - chunkStart
	}

	data, err := d.inner.ReadRange(ctx, chunkStart, uint32(length))
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(d.dir, "chunk-*.tmp")
	if err != nil {
		// caching is best-effort; serve the data even if we can't persist it
		return data, nil
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return data, nil
	}
	tmp.Close()
	os.Rename(tmp.Name(), path)

	return data, nil
}

func (d *DiskCache) ReadRange(ctx context.Context, offset uint64, length uint32) ([]byte, error) {
	out := make([]byte, length)
	n, err := d.ReadRangeInto(ctx, offset, length, out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

func (d *DiskCache) ReadRangeInto(ctx context.Context, offset uint64, length uint32, dst []byte) (int, error) {
	remaining := dst[:length]
	pos := offset
	written := 0

	for len(remaining) > 0 {
		chunkIdx := pos / d.chunkSize
		chunkData, err := d.readChunk(ctx, chunkIdx)
		if err != nil {
			return written, err
		}
		chunkStart := chunkIdx * d.chunkSize
		offsetInChunk := pos - chunkStart
		if offsetInChunk >= uint64(len(chunkData)) {
			break
		}
		n := copy(remaining, chunkData[offsetInChunk:])
		remaining = remaining[n:]
		pos += uint64(n)
		written += n
	}

	return written, nil
}

func (d *DiskCache) Close() error {
	return d.inner.Close()
}
