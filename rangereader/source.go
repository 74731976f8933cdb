// Package rangereader provides the byte-range source abstraction PMTiles
// archives are read through: a small capability set (Size, ReadRange,
// ReadRangeInto, Close) that every backend - local file, HTTP, S3, Azure,
// GCS, or any other gocloud.dev-supported bucket - implements directly,
// plus decorators (BlockAligned, MemoryCache, DiskCache) that compose over
// any Source to add request coalescing and caching.
package rangereader

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors a Source implementation should wrap with fmt.Errorf's
// %w verb so callers can errors.Is against them regardless of backend.
var (
	ErrObjectNotFound   = errors.New("rangereader: object not found")
	ErrRangeUnsupported = errors.New("rangereader: range reads not supported")
	ErrIO               = errors.New("rangereader: i/o error")
)

// Source is a read-only, randomly addressable byte range over some
// immutable object - a PMTiles archive sitting in a file, behind an HTTP
// server, or in a cloud bucket. Implementations must be safe for
// concurrent use: a Reader issues overlapping ReadRange calls from
// multiple goroutines.
type Source interface {
	// Size returns the total length of the underlying object in bytes.
	Size(ctx context.Context) (uint64, error)

	// ReadRange returns length bytes starting at offset. Implementations
	// return ErrObjectNotFound if the object no longer exists, and
	// ErrRangeUnsupported if the backend cannot honor partial reads
	// (some HTTP origins silently hand back the entire body instead of
	// a 206; rangereader.HTTPSource treats that as ErrRangeUnsupported
	// rather than returning the wrong bytes).
	ReadRange(ctx context.Context, offset uint64, length uint32) ([]byte, error)

	// ReadRangeInto behaves like ReadRange but writes into dst, avoiding
	// an allocation when the caller already owns a reusable buffer. dst
	// must have at least length capacity. Returns the number of bytes
	// written, which is always length on success.
	ReadRangeInto(ctx context.Context, offset uint64, length uint32, dst []byte) (int, error)

	// Close releases any resources (open file descriptors, connection
	// pools) held by the source.
	Close() error
}

// wrapIOErr normalizes a backend-specific I/O failure into ErrIO while
// preserving the original error text and chain for errors.Is/As.
func wrapIOErr(backend string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", backend, ErrIO, err)
}
