package pmtiles

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// WriterOptions configures a Writer at construction, validated once up
// front rather than threaded through every method call.
type WriterOptions struct {
	// TileType and TileCompression describe every tile body the caller
	// will pass to AddTile; they are written verbatim into the header.
	TileType        TileType
	TileCompression Compression

	// InternalCompression controls how the metadata blob and directories
	// are compressed. Gzip unless explicitly set to NoCompression.
	InternalCompression Compression

	// Deduplicate enables content-hash deduplication of tile bodies via
	// AddTile's resolver. Disable only when the caller has already
	// deduplicated (e.g. re-clustering an archive that guarantees unique
	// bodies), to skip the hashing cost.
	Deduplicate bool

	// TmpDir is the directory scratch tile bodies are staged in before
	// Complete assembles the final archive. Defaults to os.TempDir().
	TmpDir string
}

func (o WriterOptions) withDefaults() WriterOptions {
	if o.InternalCompression == UnknownCompression {
		o.InternalCompression = Gzip
	}
	return o
}

// writerState tracks which phase of the Writer's lifecycle it is in, so
// out-of-order calls (AddTile after Complete, Complete twice) fail fast
// with ErrWriterStateViolation instead of corrupting the output archive.
type writerState int

const (
	writerOpen writerState = iota
	writerCompleted
)

// pendingTile is one tile body staged by AddTile/AddTileByID, recording
// where its bytes landed in the raw staging file rather than its final
// position, since tiles may arrive in any order and are only sorted and
// deduplicated once, at Complete.
type pendingTile struct {
	tileID    uint64
	hash      uint64
	rawOffset uint64
	length    uint32
}

// Writer assembles a clustered PMTiles v3 archive from tiles added in
// any order. Tile bodies are staged to a raw scratch file as AddTile is
// called; Complete sorts every staged tile by Hilbert tile ID, resolves
// duplicates, and writes the finished archive. It is not safe for
// concurrent use; callers that produce tiles concurrently must
// serialize their own calls to AddTile.
type Writer struct {
	logger   *log.Logger
	options  WriterOptions
	resolver *resolver
	metadata map[string]interface{}

	rawFile   *os.File
	rawOffset uint64
	pending   []pendingTile

	state   writerState
	minZoom uint8
	maxZoom uint8
	sawTile bool
}

// NewWriter creates a Writer that stages tile bodies in a temp file and
// assembles them into a complete archive on Complete.
func NewWriter(logger *log.Logger, options WriterOptions) (*Writer, error) {
	options = options.withDefaults()

	raw, err := os.CreateTemp(options.TmpDir, "pmtiles-write-raw-*")
	if err != nil {
		return nil, fmt.Errorf("pmtiles: creating tile staging file: %w", err)
	}

	return &Writer{
		logger:   logger,
		options:  options,
		resolver: newResolver(options.Deduplicate),
		metadata: make(map[string]interface{}),
		rawFile:  raw,
	}, nil
}

// SetMetadata sets a top-level key in the archive's JSON metadata blob
// (name, description, attribution, vector_layers, ...).
func (w *Writer) SetMetadata(key string, value interface{}) {
	w.metadata[key] = value
}

// AddTile adds the tile at (z, x, y) with body data, which must already
// be compressed according to the Writer's TileCompression option. Tiles
// may be added in any order; Complete sorts them by Hilbert tile ID
// before building the directory.
func (w *Writer) AddTile(z uint8, x uint32, y uint32, data []byte) error {
	if err := validateZxy(z, x, y); err != nil {
		return err
	}
	return w.AddTileByID(ZxyToID(z, x, y), data)
}

// AddTileByID is AddTile addressed directly by Hilbert tile ID, for
// callers that already compute IDs (e.g. Cluster).
func (w *Writer) AddTileByID(tileID uint64, data []byte) error {
	return w.stageTile(tileID, data, xxhash.Sum64(data))
}

// AddTilePrehashed is AddTileByID for a caller that has already computed
// data's content hash; AddTile and AddTileByID use xxhash.Sum64(data).
func (w *Writer) AddTilePrehashed(tileID uint64, data []byte, hash uint64) error {
	return w.stageTile(tileID, data, hash)
}

func (w *Writer) stageTile(tileID uint64, data []byte, hash uint64) error {
	if w.state != writerOpen {
		return fmt.Errorf("AddTile after Complete: %w", ErrWriterStateViolation)
	}

	offset := w.rawOffset
	n, err := w.rawFile.Write(data)
	if err != nil {
		return fmt.Errorf("pmtiles: staging tile %d: %w", tileID, err)
	}
	w.rawOffset += uint64(n)
	w.pending = append(w.pending, pendingTile{tileID: tileID, hash: hash, rawOffset: offset, length: uint32(len(data))})

	z, _, _ := IDToZxy(tileID)
	if !w.sawTile {
		w.minZoom, w.maxZoom = z, z
	} else {
		if z < w.minZoom {
			w.minZoom = z
		}
		if z > w.maxZoom {
			w.maxZoom = z
		}
	}
	w.sawTile = true

	return nil
}

// Complete finalizes the archive, writing header, root directory,
// metadata, leaf directories and tile data to output in PMTiles v3
// layout order. Staged tiles are sorted by tile ID and deduplicated
// before any of this is written. progress may be nil; if non-nil and
// IsCancelled reports true before assembly begins, Complete returns
// ErrCancelled and leaves output untouched.
func (w *Writer) Complete(output io.WriteSeeker, header HeaderV3, progress CancellableProgress) error {
	if w.state != writerOpen {
		return fmt.Errorf("Complete called twice: %w", ErrWriterStateViolation)
	}
	if progress != nil && progress.IsCancelled() {
		return ErrCancelled
	}
	w.state = writerCompleted
	defer w.rawFile.Close()
	defer os.Remove(w.rawFile.Name())

	sort.Slice(w.pending, func(i, j int) bool { return w.pending[i].tileID < w.pending[j].tileID })

	tileFile, err := os.CreateTemp(w.options.TmpDir, "pmtiles-write-tiles-*")
	if err != nil {
		return fmt.Errorf("pmtiles: creating tile data file: %w", err)
	}
	defer tileFile.Close()
	defer os.Remove(tileFile.Name())

	buf := make([]byte, 0, 64*1024)
	for _, p := range w.pending {
		if cap(buf) < int(p.length) {
			buf = make([]byte, p.length)
		}
		buf = buf[:p.length]
		if _, err := w.rawFile.ReadAt(buf, int64(p.rawOffset)); err != nil {
			return fmt.Errorf("pmtiles: rereading staged tile %d: %w", p.tileID, err)
		}
		isNew, _ := w.resolver.addTile(p.hash, buf, p.tileID)
		if isNew {
			if _, err := tileFile.Write(buf); err != nil {
				return fmt.Errorf("pmtiles: writing tile %d: %w", p.tileID, err)
			}
		}
	}

	header.TileType = w.options.TileType
	header.TileCompression = w.options.TileCompression
	header.InternalCompression = w.options.InternalCompression
	header.Clustered = true
	header.MinZoom = w.minZoom
	header.MaxZoom = w.maxZoom
	header.AddressedTilesCount = w.resolver.addressedTiles
	header.TileEntriesCount = uint64(len(w.resolver.entries))
	header.TileContentsCount = w.resolver.tileContentsCount

	metadataBytes, err := SerializeMetadata(w.metadata, header.InternalCompression)
	if err != nil {
		return fmt.Errorf("pmtiles: serializing metadata: %w", err)
	}

	rootBytes, leavesBytes, _, err := optimizeDirectories(w.resolver.entries, 16384-HeaderV3LenBytes, header.InternalCompression)
	if err != nil {
		return fmt.Errorf("pmtiles: building directory: %w", err)
	}
	if progress != nil {
		progress.OnProgress(0.5)
		if progress.IsCancelled() {
			return ErrCancelled
		}
	}

	header.RootOffset = HeaderV3LenBytes
	header.RootLength = uint64(len(rootBytes))
	header.MetadataOffset = header.RootOffset + header.RootLength
	header.MetadataLength = uint64(len(metadataBytes))
	header.LeafDirectoryOffset = header.MetadataOffset + header.MetadataLength
	header.LeafDirectoryLength = uint64(len(leavesBytes))
	header.TileDataOffset = header.LeafDirectoryOffset + header.LeafDirectoryLength
	header.TileDataLength = w.resolver.offset

	if _, err := output.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("pmtiles: seeking output: %w", err)
	}

	headerBytes := SerializeHeader(header)
	for _, chunk := range [][]byte{headerBytes, rootBytes, metadataBytes, leavesBytes} {
		if _, err := output.Write(chunk); err != nil {
			return fmt.Errorf("pmtiles: writing archive: %w", err)
		}
	}

	if _, err := tileFile.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("pmtiles: rewinding tile data file: %w", err)
	}
	if _, err := io.Copy(output.(io.Writer), tileFile); err != nil {
		return fmt.Errorf("pmtiles: copying tile data: %w", err)
	}

	if progress != nil {
		progress.OnProgress(1)
	}

	return nil
}

// resolver deduplicates tile bodies by content hash as they are replayed
// in increasing tile ID order at Complete, merging a run of identical
// consecutive bodies into one run-length-encoded directory entry and
// giving each distinct body exactly one offset in the tile data
// section.
type resolver struct {
	deduplicate       bool
	entries           []EntryV3
	offset            uint64
	offsetMap         map[uint64][]hashedOffset
	addressedTiles    uint64
	tileContentsCount uint64
}

type hashedOffset struct {
	offset uint64
	length uint32
	data   []byte
}

func newResolver(deduplicate bool) *resolver {
	return &resolver{
		deduplicate: deduplicate,
		offsetMap:   make(map[uint64][]hashedOffset),
	}
}

// addTile records tileID's body, returning whether it required a new
// slot in the tile data section (isNew) and the offset it was assigned.
// Call in strictly increasing tileID order.
func (r *resolver) addTile(hash uint64, data []byte, tileID uint64) (isNew bool, offset uint64) {
	last := len(r.entries) - 1

	if r.deduplicate {
		if candidates, ok := r.offsetMap[hash]; ok {
			for _, c := range candidates {
				if string(c.data) == string(data) {
					if last >= 0 && r.entries[last].Offset == c.offset && r.entries[last].TileID+uint64(r.entries[last].RunLength) == tileID {
						r.entries[last].RunLength++
					} else {
						r.entries = append(r.entries, EntryV3{TileID: tileID, Offset: c.offset, Length: c.length, RunLength: 1})
					}
					r.addressedTiles++
					return false, c.offset
				}
			}
		}
	}

	newOffset := r.offset
	r.entries = append(r.entries, EntryV3{TileID: tileID, Offset: newOffset, Length: uint32(len(data)), RunLength: 1})
	r.offset += uint64(len(data))
	r.addressedTiles++
	r.tileContentsCount++

	if r.deduplicate {
		stored := make([]byte, len(data))
		copy(stored, data)
		r.offsetMap[hash] = append(r.offsetMap[hash], hashedOffset{offset: newOffset, length: uint32(len(data)), data: stored})
	}

	return true, newOffset
}
