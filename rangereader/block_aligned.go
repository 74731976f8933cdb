package rangereader

import "context"

// DefaultBlockSize is the alignment BlockAligned rounds requests up to
// when none is specified. It matches the smallest root-directory fetch a
// Reader typically issues, so a single aligned read usually satisfies the
// header-plus-root-directory probe in one round trip.
const DefaultBlockSize = 16384

// BlockAligned wraps a Source so every ReadRange is rounded outward to a
// multiple of blockSize before hitting the underlying backend, then
// trimmed back to the caller's window. This turns many small, oddly
// offset directory reads into fewer, cache-friendly aligned ones -
// particularly valuable in front of HTTPSource and the cloud backends,
// where every request carries fixed per-call latency.
type BlockAligned struct {
	inner     Source
	blockSize uint64
}

// NewBlockAligned wraps inner with block-size alignment. blockSize must
// be a power of two; if zero, DefaultBlockSize is used.
func NewBlockAligned(inner Source, blockSize uint64) *BlockAligned {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	return &BlockAligned{inner: inner, blockSize: blockSize}
}

func (b *BlockAligned) Size(ctx context.Context) (uint64, error) {
	return b.inner.Size(ctx)
}

func (b *BlockAligned) align(offset uint64, length uint32) (alignedOffset uint64, alignedLength uint32, skip uint32) {
	alignedOffset = (offset / b.blockSize) * b.blockSize
	skip = uint32(offset - alignedOffset)
	end := offset + uint64(length)
	alignedEnd := ((end + b.blockSize - 1) / b.blockSize) * b.blockSize
	alignedLength = uint32(alignedEnd - alignedOffset)
	return
}

func (b *BlockAligned) ReadRange(ctx context.Context, offset uint64, length uint32) ([]byte, error) {
	alignedOffset, alignedLength, skip := b.align(offset, length)
	data, err := b.inner.ReadRange(ctx, alignedOffset, alignedLength)
	if err != nil {
		return nil, err
	}
	end := skip + length
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	return data[skip:end], nil
}

func (b *BlockAligned) ReadRangeInto(ctx context.Context, offset uint64, length uint32, dst []byte) (int, error) {
	data, err := b.ReadRange(ctx, offset, length)
	if err != nil {
		return 0, err
	}
	n := copy(dst[:length], data)
	return n, nil
}

func (b *BlockAligned) Close() error {
	return b.inner.Close()
}
