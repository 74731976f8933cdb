package pmtiles

import (
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"sort"

	"github.com/RoaringBitmap/roaring/roaring64"
)

// joinEntry is one directory entry tagged with which input archive it
// came from and where its tile bytes sit in that archive's tile section.
type joinEntry struct {
	entry       EntryV3
	inputIdx    int
	inputOffset uint64
}

// copyOp describes one contiguous run of bytes to stream from an input
// archive's tile section into the joined output, after adjacent entries
// from the same input have been coalesced.
type copyOp struct {
	inputIdx int
	length   uint64
}

// remapping records where a tile's bytes moved to in the joined output,
// so that a later back-reference (a repeated entry pointing at bytes
// already written by an earlier entry) can be resolved without copying
// the bytes twice.
type remapping struct {
	srcOffset uint64
	dstOffset uint64
}

// loadJoinInputs reads every input archive's header and directory,
// verifying that all inputs share a tile type and compression and that
// their tile ID ranges are disjoint. Join requires disjoint, already
// clustered inputs because it reassembles their directories by a single
// merge sort rather than resolving overlaps tile by tile.
func loadJoinInputs(inputs []io.ReadSeeker) ([]HeaderV3, []joinEntry, error) {
	headers := make([]HeaderV3, 0, len(inputs))
	var entries []joinEntry
	seen := roaring64.New()

	for idx, input := range inputs {
		buf := make([]byte, HeaderV3LenBytes)
		if _, err := io.ReadFull(input, buf); err != nil {
			return nil, nil, fmt.Errorf("reading header of input %d: %w", idx, err)
		}
		header, err := DeserializeHeader(buf)
		if err != nil {
			return nil, nil, fmt.Errorf("deserializing header of input %d: %w", idx, err)
		}
		headers = append(headers, header)

		if !header.Clustered {
			return nil, nil, fmt.Errorf("input %d: join requires clustered archives: %w", idx, ErrNotClustered)
		}
		if idx > 0 {
			if header.TileType != headers[0].TileType {
				return nil, nil, fmt.Errorf("input %d tile type does not match input 0", idx)
			}
			if header.TileCompression != headers[0].TileCompression {
				return nil, nil, fmt.Errorf("input %d tile compression does not match input 0", idx)
			}
			if header.InternalCompression != headers[0].InternalCompression {
				return nil, nil, fmt.Errorf("input %d internal compression does not match input 0", idx)
			}
		}

		tileset := roaring64.New()
		err = IterateEntries(header,
			func(offset uint64, length uint64) ([]byte, error) {
				if _, err := input.Seek(int64(offset), io.SeekStart); err != nil {
					return nil, err
				}
				return io.ReadAll(io.LimitReader(input, int64(length)))
			},
			func(e EntryV3) {
				tileset.AddRange(e.TileID, e.TileID+uint64(e.RunLength))
				entries = append(entries, joinEntry{entry: e, inputIdx: idx, inputOffset: e.Offset})
			})
		if err != nil {
			return nil, nil, fmt.Errorf("reading directory of input %d: %w", idx, err)
		}

		if seen.Intersects(tileset) {
			return nil, nil, fmt.Errorf("input %d overlaps a tile range already covered by an earlier input", idx)
		}
		seen.Or(tileset)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].entry.TileID < entries[j].entry.TileID
	})

	return headers, entries, nil
}

// remapJoinEntries reassigns each entry's Offset into the joined output's
// tile section, deduplicating entries that pointed at the same bytes in
// their source archive.
func remapJoinEntries(entries []joinEntry, numInputs int) (addressedTiles, tileContents, tileDataLength uint64, err error) {
	var acc uint64
	remappings := make([][]remapping, numInputs)

	for i, je := range entries {
		perInput := remappings[je.inputIdx]
		if len(perInput) > 0 && je.inputOffset <= perInput[len(perInput)-1].srcOffset {
			pos, ok := slices.BinarySearchFunc(perInput, je.inputOffset, func(r remapping, k uint64) int {
				switch {
				case r.srcOffset < k:
					return -1
				case r.srcOffset > k:
					return 1
				default:
					return 0
				}
			})
			if !ok {
				return 0, 0, 0, fmt.Errorf("input %d has an out-of-order back-reference at offset %d", je.inputIdx, je.inputOffset)
			}
			entries[i].entry.Offset = perInput[pos].dstOffset
		} else {
			entries[i].entry.Offset = acc
			remappings[je.inputIdx] = append(remappings[je.inputIdx], remapping{srcOffset: je.inputOffset, dstOffset: acc})
			acc += uint64(je.entry.Length)
			tileContents++
		}
		addressedTiles += uint64(entries[i].entry.RunLength)
	}
	return addressedTiles, tileContents, acc, nil
}

// planCopyOps collapses consecutive entries from the same input into as
// few streaming copies as possible, skipping entries that were resolved
// as back-references in remapJoinEntries.
func planCopyOps(entries []joinEntry, numInputs int) []copyOp {
	lastOffset := make([]uint64, numInputs)
	lastEnd := make([]uint64, numInputs)
	copied := make([]bool, numInputs)
	var ops []copyOp
	for _, je := range entries {
		if copied[je.inputIdx] && je.inputOffset <= lastOffset[je.inputIdx] {
			continue
		}
		length := uint64(je.entry.Length)
		if n := len(ops); n > 0 && ops[n-1].inputIdx == je.inputIdx && je.inputOffset == lastEnd[je.inputIdx] {
			ops[n-1].length += length
		} else {
			ops = append(ops, copyOp{inputIdx: je.inputIdx, length: length})
		}
		copied[je.inputIdx] = true
		lastOffset[je.inputIdx] = je.inputOffset
		lastEnd[je.inputIdx] = je.inputOffset + length
	}
	return ops
}

func joinZoomBounds(entries []joinEntry) (uint8, uint8) {
	minZ, _, _ := IDToZxy(entries[0].entry.TileID)
	last := entries[len(entries)-1].entry
	maxZ, _, _ := IDToZxy(last.TileID + uint64(last.RunLength) - 1)
	return minZ, maxZ
}

func joinBounds(headers []HeaderV3) (minLonE7, minLatE7, maxLonE7, maxLatE7 int32) {
	minLonE7, minLatE7 = math.MaxInt32, math.MaxInt32
	maxLonE7, maxLatE7 = math.MinInt32, math.MinInt32
	for _, h := range headers {
		minLonE7 = min(minLonE7, h.MinLonE7)
		minLatE7 = min(minLatE7, h.MinLatE7)
		maxLonE7 = max(maxLonE7, h.MaxLonE7)
		maxLatE7 = max(maxLatE7, h.MaxLatE7)
	}
	return
}

// Join concatenates a set of disjoint, clustered PMTiles archives into a
// single archive with one merged directory, without decompressing or
// re-reading any tile body. Tile ID ranges across inputs must not
// overlap; the archive's own metadata blob is copied from the first
// input verbatim, since joined archives are assumed to share one
// metadata schema.
func Join(inputPaths []string, outputPath string) error {
	handles := make([]io.ReadSeeker, 0, len(inputPaths))
	for _, name := range inputPaths {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("opening input %q: %w", name, err)
		}
		defer f.Close()
		handles = append(handles, f)
	}

	headers, entries, err := loadJoinInputs(handles)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no tiles found across %d input(s)", len(inputPaths))
	}

	addressedTiles, tileContents, tileDataLength, err := remapJoinEntries(entries, len(headers))
	if err != nil {
		return err
	}

	flat := make([]EntryV3, len(entries))
	for i := range entries {
		flat[i] = entries[i].entry
	}
	rootBytes, leavesBytes, _, err := optimizeDirectories(flat, 16384-HeaderV3LenBytes, Gzip)
	if err != nil {
		return fmt.Errorf("building joined directory: %w", err)
	}

	var header HeaderV3
	header.RootOffset = HeaderV3LenBytes
	header.RootLength = uint64(len(rootBytes))
	header.MetadataOffset = header.RootOffset + header.RootLength
	header.MetadataLength = headers[0].MetadataLength
	header.InternalCompression = headers[0].InternalCompression
	header.TileCompression = headers[0].TileCompression
	header.TileType = headers[0].TileType
	header.Clustered = true
	header.LeafDirectoryOffset = header.MetadataOffset + header.MetadataLength
	header.LeafDirectoryLength = uint64(len(leavesBytes))
	header.TileDataOffset = header.LeafDirectoryOffset + header.LeafDirectoryLength
	header.TileDataLength = tileDataLength
	header.AddressedTilesCount = addressedTiles
	header.TileEntriesCount = uint64(len(entries))
	header.TileContentsCount = tileContents

	header.MinZoom, header.MaxZoom = joinZoomBounds(entries)
	header.MinLonE7, header.MinLatE7, header.MaxLonE7, header.MaxLatE7 = joinBounds(headers)
	header.CenterZoom = header.MinZoom
	header.CenterLonE7 = (header.MinLonE7 + header.MaxLonE7) / 2
	header.CenterLatE7 = (header.MinLatE7 + header.MaxLatE7) / 2

	output, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating output %q: %w", outputPath, err)
	}
	defer output.Close()

	if _, err := output.Write(SerializeHeader(header)); err != nil {
		return err
	}
	if _, err := output.Write(rootBytes); err != nil {
		return err
	}
	if _, err := handles[0].Seek(int64(headers[0].MetadataOffset), io.SeekStart); err != nil {
		return err
	}
	if _, err := io.CopyN(output, handles[0], int64(headers[0].MetadataLength)); err != nil {
		return fmt.Errorf("copying metadata from first input: %w", err)
	}
	if _, err := output.Write(leavesBytes); err != nil {
		return err
	}

	for i, h := range handles {
		if _, err := h.Seek(int64(headers[i].TileDataOffset), io.SeekStart); err != nil {
			return err
		}
	}
	for _, op := range planCopyOps(entries, len(headers)) {
		if _, err := io.CopyN(output, handles[op.inputIdx], int64(op.length)); err != nil {
			return fmt.Errorf("copying tile bytes from input %d: %w", op.inputIdx, err)
		}
	}

	return nil
}
