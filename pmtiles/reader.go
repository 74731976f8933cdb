package pmtiles

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/protomaps/pmtiles-go/rangereader"
)

// streamPrefetchConcurrency bounds how many leaf directories StreamTiles
// fetches at once: enough to hide I/O latency behind parallel requests
// without opening an unbounded number of ranges against a remote source.
const streamPrefetchConcurrency = 8

// maxDirectoryDepth bounds how many leaf-directory hops GetTileByID will
// follow before giving up; a well-formed archive never nests more than a
// couple of levels deep, so a runaway chain indicates directory
// corruption rather than a legitimately deep pyramid.
const maxDirectoryDepth = 4

// ReaderOptions configures a Reader at construction.
type ReaderOptions struct {
	// LeafDirectoryCacheSize bounds how many leaf directories are kept
	// decoded in memory at once. Zero selects the default of 64.
	LeafDirectoryCacheSize int
}

func (o ReaderOptions) withDefaults() ReaderOptions {
	if o.LeafDirectoryCacheSize == 0 {
		o.LeafDirectoryCacheSize = 64
	}
	return o
}

// Reader serves tiles and metadata from a PMTiles v3 archive over any
// rangereader.Source, caching the root directory (read once at Open) and
// recently used leaf directories. A single Reader is safe for concurrent
// use by multiple goroutines.
type Reader struct {
	source rangereader.Source
	logger *log.Logger
	header HeaderV3

	mu          sync.RWMutex
	rootEntries []EntryV3
	leafCache   *lru.Cache[uint64, []EntryV3]
}

// NewReader opens an archive over source, reading and validating its
// header and root directory. The Reader takes ownership of source and
// closes it when Close is called.
func NewReader(ctx context.Context, source rangereader.Source, logger *log.Logger, options ReaderOptions) (*Reader, error) {
	options = options.withDefaults()

	headerBytes, err := source.ReadRange(ctx, 0, HeaderV3LenBytes)
	if err != nil {
		return nil, fmt.Errorf("pmtiles: reading header: %w", err)
	}
	header, err := DeserializeHeader(headerBytes)
	if err != nil {
		return nil, fmt.Errorf("pmtiles: %w", err)
	}
	if !supportedCompression(header.InternalCompression) {
		return nil, fmt.Errorf("pmtiles: directory compression: %w", ErrUnsupportedCompression)
	}
	if !supportedCompression(header.TileCompression) {
		return nil, fmt.Errorf("pmtiles: tile compression: %w", ErrUnsupportedCompression)
	}

	rootBytes, err := source.ReadRange(ctx, header.RootOffset, uint32(header.RootLength))
	if err != nil {
		return nil, fmt.Errorf("pmtiles: reading root directory: %w", err)
	}
	rootEntries, err := DeserializeEntries(bytes.NewBuffer(rootBytes), header.InternalCompression)
	if err != nil {
		return nil, fmt.Errorf("pmtiles: decoding root directory: %w", err)
	}

	leafCache, err := lru.New[uint64, []EntryV3](options.LeafDirectoryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("pmtiles: building leaf directory cache: %w", err)
	}

	return &Reader{
		source:      source,
		logger:      logger,
		header:      header,
		rootEntries: rootEntries,
		leafCache:   leafCache,
	}, nil
}

// Header returns the archive's decoded header.
func (r *Reader) Header() HeaderV3 {
	return r.header
}

// GetMetadata returns the archive's decoded JSON metadata map.
func (r *Reader) GetMetadata(ctx context.Context) (map[string]interface{}, error) {
	metadataBytes, err := r.source.ReadRange(ctx, r.header.MetadataOffset, uint32(r.header.MetadataLength))
	if err != nil {
		return nil, fmt.Errorf("pmtiles: reading metadata: %w", err)
	}
	metadata, err := DeserializeMetadata(bytes.NewReader(metadataBytes), r.header.InternalCompression)
	if err != nil {
		return nil, fmt.Errorf("pmtiles: decoding metadata: %w", err)
	}
	return metadata, nil
}

// GetTile returns the tile body at (z, x, y), and false if no such tile
// is addressed by the archive. It returns ErrInvalidTileID if x or y is
// outside the valid range for z.
func (r *Reader) GetTile(ctx context.Context, z uint8, x uint32, y uint32) ([]byte, bool, error) {
	if err := validateZxy(z, x, y); err != nil {
		return nil, false, err
	}
	return r.GetTileByID(ctx, ZxyToID(z, x, y))
}

// GetTileByID is GetTile addressed directly by Hilbert tile ID.
func (r *Reader) GetTileByID(ctx context.Context, tileID uint64) ([]byte, bool, error) {
	entries := r.rootEntries
	dirOffset := r.header.LeafDirectoryOffset

	for depth := 0; depth < maxDirectoryDepth; depth++ {
		entry, found := findTile(entries, tileID)
		if !found {
			return nil, false, nil
		}
		if entry.RunLength > 0 {
			data, err := r.source.ReadRange(ctx, r.header.TileDataOffset+entry.Offset, entry.Length)
			if err != nil {
				return nil, false, fmt.Errorf("pmtiles: reading tile %d: %w", tileID, err)
			}
			return data, true, nil
		}

		// RunLength == 0 marks an internal entry pointing at a further
		// leaf directory rather than tile data.
		leafAbsOffset := dirOffset + entry.Offset
		leafEntries, err := r.loadLeaf(ctx, leafAbsOffset, uint32(entry.Length))
		if err != nil {
			return nil, false, err
		}
		entries = leafEntries
	}

	return nil, false, fmt.Errorf("pmtiles: tile %d: %w", tileID, ErrDirectoryCorrupt)
}

func (r *Reader) loadLeaf(ctx context.Context, offset uint64, length uint32) ([]EntryV3, error) {
	r.mu.RLock()
	if cached, ok := r.leafCache.Get(offset); ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	leafBytes, err := r.source.ReadRange(ctx, offset, length)
	if err != nil {
		return nil, fmt.Errorf("pmtiles: reading leaf directory at %d: %w", offset, err)
	}
	leafEntries, err := DeserializeEntries(bytes.NewBuffer(leafBytes), r.header.InternalCompression)
	if err != nil {
		return nil, fmt.Errorf("pmtiles: decoding leaf directory at %d: %w", offset, err)
	}

	r.mu.Lock()
	r.leafCache.Add(offset, leafEntries)
	r.mu.Unlock()

	return leafEntries, nil
}

// FindClosestTileID walks up the Hilbert tile-id parent chain from
// tileID until it finds an addressed tile or reaches zoom 0, returning
// the ID of that tile. This supports overzoomed clients that request a
// tile beyond the archive's MaxZoom and should fall back to the nearest
// available ancestor rather than receiving nothing.
func (r *Reader) FindClosestTileID(ctx context.Context, tileID uint64) (uint64, bool, error) {
	for {
		_, ok, err := r.GetTileByID(ctx, tileID)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return tileID, true, nil
		}
		z, _, _ := IDToZxy(tileID)
		if z == 0 {
			return 0, false, nil
		}
		tileID = ParentID(tileID)
	}
}

// StreamTiles calls fn once per addressed tile in the archive, in
// directory order. Leaf directories are fetched and decoded several at a
// time via errgroup, since each is an independent round trip against the
// source; fn itself is always called from a single goroutine, in order,
// so callers never need their own synchronization.
func (r *Reader) StreamTiles(ctx context.Context, fn func(z uint8, x uint32, y uint32, data []byte) error) error {
	root := r.rootEntries
	resolved := make([][]EntryV3, len(root))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(streamPrefetchConcurrency)

	for i, entry := range root {
		if entry.RunLength > 0 {
			resolved[i] = []EntryV3{entry}
			continue
		}
		i, entry := i, entry
		group.Go(func() error {
			leafEntries, err := r.loadLeaf(gctx, r.header.LeafDirectoryOffset+entry.Offset, uint32(entry.Length))
			if err != nil {
				return fmt.Errorf("pmtiles: fetching leaf directory: %w", err)
			}
			resolved[i] = leafEntries
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for _, entries := range resolved {
		for _, e := range entries {
			data, err := r.source.ReadRange(ctx, r.header.TileDataOffset+e.Offset, e.Length)
			if err != nil {
				return fmt.Errorf("pmtiles: streaming tiles: %w", err)
			}
			for i := uint32(0); i < e.RunLength; i++ {
				z, x, y := IDToZxy(e.TileID + uint64(i))
				if err := fn(z, x, y, data); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Close releases the underlying Source.
func (r *Reader) Close() error {
	return r.source.Close()
}
