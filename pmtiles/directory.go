package pmtiles

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

type Zxy struct {
	Z uint8
	X uint32
	Y uint32
}

// Compression is the compression algorithm applied to individual tiles (or none)
type Compression uint8

const (
	UnknownCompression Compression = 0
	NoCompression                  = 1
	Gzip                           = 2
	Brotli                         = 3
	Zstd                           = 4
)

// TileType is the format of individual tile contents in the archive.
type TileType uint8

const (
	UnknownTileType TileType = 0
	Mvt                      = 1
	Png                      = 2
	Jpeg                     = 3
	Webp                     = 4
	Avif                     = 5
)

// HeaderV3LenBytes is the fixed-size binary header size.
const HeaderV3LenBytes = 127

// HeaderV3 is a binary header for PMTiles specification version 3.
type HeaderV3 struct {
	SpecVersion         uint8
	RootOffset          uint64
	RootLength          uint64
	MetadataOffset      uint64
	MetadataLength      uint64
	LeafDirectoryOffset uint64
	LeafDirectoryLength uint64
	TileDataOffset      uint64
	TileDataLength      uint64
	AddressedTilesCount uint64
	TileEntriesCount    uint64
	TileContentsCount   uint64
	Clustered           bool
	InternalCompression Compression
	TileCompression     Compression
	TileType            TileType
	MinZoom             uint8
	MaxZoom             uint8
	MinLonE7            int32
	MinLatE7            int32
	MaxLonE7            int32
	MaxLatE7            int32
	CenterZoom          uint8
	CenterLonE7         int32
	CenterLatE7         int32
}

// HeaderJson is a human-readable representation of parts of the binary header
// that may need to be manually edited.
// Omitted parts are the responsibility of the generator program and not editable.
// The formatting is aligned with the TileJSON / MBTiles specification.
type HeaderJson struct {
	TileCompression string    `json:"tile_compression"`
	TileType        string    `json:"tile_type"`
	MinZoom         int       `json:"minzoom"`
	MaxZoom         int       `json:"maxzoom"`
	Bounds          []float64 `json:"bounds"`
	Center          []float64 `json:"center"`
}

func headerContentType(header HeaderV3) (string, bool) {
	switch header.TileType {
	case Mvt:
		return "application/x-protobuf", true
	case Png:
		return "image/png", true
	case Jpeg:
		return "image/jpeg", true
	case Webp:
		return "image/webp", true
	case Avif:
		return "image/avif", true
	default:
		return "", false
	}
}

func tileTypeToString(t TileType) string {
	switch t {
	case Mvt:
		return "mvt"
	case Png:
		return "png"
	case Jpeg:
		return "jpg"
	case Webp:
		return "webp"
	case Avif:
		return "avif"
	default:
		return ""
	}
}

func stringToTileType(t string) TileType {
	switch t {
	case "mvt":
		return Mvt
	case "png":
		return Png
	case "jpg":
		return Jpeg
	case "webp":
		return Webp
	case "avif":
		return Avif
	default:
		return UnknownTileType
	}
}

func headerExt(header HeaderV3) string {
	base := tileTypeToString(header.TileType)
	if base == "" {
		return ""
	}
	return "." + base
}

func compressionToString(compression Compression) (string, bool) {
	switch compression {
	case NoCompression:
		return "none", false
	case Gzip:
		return "gzip", true
	case Brotli:
		return "br", true
	case Zstd:
		return "zstd", true
	default:
		return "unknown", false
	}
}

func stringToCompression(s string) Compression {
	switch s {
	case "none":
		return NoCompression
	case "gzip":
		return Gzip
	case "br":
		return Brotli
	case "zstd":
		return Zstd
	default:
		return UnknownCompression
	}
}

// supportedCompression reports whether this build can actually encode and
// decode bodies compressed with c. Brotli and Zstd are valid values of the
// Compression enum per the archive format, but this module only implements
// Gzip and the identity (NoCompression) codec.
func supportedCompression(c Compression) bool {
	return c == NoCompression || c == Gzip
}

// HeaderSummary renders a header's compression/type enums and E7 lon/lat
// fields into plain strings and degrees, the form the CLI's inspect
// output and TileJSON generation both want instead of the raw wire
// encoding.
func HeaderSummary(header HeaderV3) HeaderJson {
	compressionString, _ := compressionToString(header.TileCompression)
	return HeaderJson{
		TileCompression: compressionString,
		TileType:        tileTypeToString(header.TileType),
		MinZoom:         int(header.MinZoom),
		MaxZoom:         int(header.MaxZoom),
		Bounds:          []float64{float64(header.MinLonE7) / 10000000, float64(header.MinLatE7) / 10000000, float64(header.MaxLonE7) / 10000000, float64(header.MaxLatE7) / 10000000},
		Center:          []float64{float64(header.CenterLonE7) / 10000000, float64(header.CenterLatE7) / 10000000, float64(header.CenterZoom)},
	}
}

func headerToStringifiedJson(header HeaderV3) string {
	s, _ := json.MarshalIndent(HeaderSummary(header), "", "    ")
	return string(s)
}

// EntryV3 is an entry in a PMTiles spec version 3 directory.
type EntryV3 struct {
	TileID    uint64
	Offset    uint64
	Length    uint32
	RunLength uint32
}

// passthroughWriter adapts a *bytes.Buffer to io.WriteCloser for the
// uncompressed directory encoding path, where closing does nothing.
type passthroughWriter struct {
	*bytes.Buffer
}

func (w *passthroughWriter) Close() error { return nil }

func SerializeMetadata(metadata map[string]interface{}, compression Compression) ([]byte, error) {
	jsonBytes, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}

	switch compression {
	case NoCompression:
		return jsonBytes, nil
	case Gzip:
		var b bytes.Buffer
		w, err := gzip.NewWriterLevel(&b, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		w.Write(jsonBytes)
		w.Close()
		return b.Bytes(), nil
	default:
		return nil, fmt.Errorf("pmtiles: serializing metadata: %w", ErrUnsupportedCompression)
	}
}

func DeserializeMetadataBytes(reader io.Reader, compression Compression) ([]byte, error) {
	switch compression {
	case NoCompression:
		return io.ReadAll(reader)
	case Gzip:
		gzipReader, err := gzip.NewReader(reader)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		return io.ReadAll(gzipReader)
	default:
		return nil, fmt.Errorf("pmtiles: deserializing metadata: %w", ErrUnsupportedCompression)
	}
}

func DeserializeMetadata(reader io.Reader, compression Compression) (map[string]interface{}, error) {
	jsonBytes, err := DeserializeMetadataBytes(reader, compression)
	if err != nil {
		return nil, err
	}

	var metadata map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

// SerializeEntries encodes entries as the directory wire format: a
// varint entry count, then four parallel delta/RLE-coded varint
// columns (tile ID deltas, run lengths, byte lengths, offsets), each
// compressed as a unit under compression.
func SerializeEntries(entries []EntryV3, compression Compression) ([]byte, error) {
	var b bytes.Buffer
	var w io.WriteCloser

	switch compression {
	case NoCompression:
		w = &passthroughWriter{&b}
	case Gzip:
		gz, err := gzip.NewWriterLevel(&b, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		w = gz
	default:
		return nil, fmt.Errorf("pmtiles: serializing directory: %w", ErrUnsupportedCompression)
	}

	tmp := make([]byte, binary.MaxVarintLen64)
	putUvarint := func(v uint64) {
		n := binary.PutUvarint(tmp, v)
		w.Write(tmp[:n])
	}

	putUvarint(uint64(len(entries)))

	var lastID uint64
	for _, entry := range entries {
		putUvarint(entry.TileID - lastID)
		lastID = entry.TileID
	}
	for _, entry := range entries {
		putUvarint(uint64(entry.RunLength))
	}
	for _, entry := range entries {
		putUvarint(uint64(entry.Length))
	}
	for i, entry := range entries {
		if i > 0 && entry.Offset == entries[i-1].Offset+uint64(entries[i-1].Length) {
			putUvarint(0)
		} else {
			putUvarint(entry.Offset + 1) // +1 so a contiguous run never reads as an explicit zero offset
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// DeserializeEntries decodes the wire format SerializeEntries produces.
// Any truncated or malformed varint column (including a declared entry
// count the rest of the stream cannot back up) fails with
// ErrDirectoryCorrupt rather than returning a partially populated or
// garbage slice.
func DeserializeEntries(data *bytes.Buffer, compression Compression) ([]EntryV3, error) {
	var reader io.Reader
	switch compression {
	case NoCompression:
		reader = data
	case Gzip:
		gz, err := gzip.NewReader(data)
		if err != nil {
			return nil, fmt.Errorf("pmtiles: deserializing directory: %w: %v", ErrDirectoryCorrupt, err)
		}
		reader = gz
	default:
		return nil, fmt.Errorf("pmtiles: deserializing directory: %w", ErrUnsupportedCompression)
	}
	byteReader := bufio.NewReader(reader)

	readUvarint := func(column string) (uint64, error) {
		v, err := binary.ReadUvarint(byteReader)
		if err != nil {
			return 0, fmt.Errorf("pmtiles: directory %s column: %w: %v", column, ErrDirectoryCorrupt, err)
		}
		return v, nil
	}

	numEntries, err := readUvarint("count")
	if err != nil {
		return nil, err
	}

	entries := make([]EntryV3, 0, numEntries)
	var lastID uint64
	for i := uint64(0); i < numEntries; i++ {
		delta, err := readUvarint("tile id")
		if err != nil {
			return nil, err
		}
		lastID += delta
		entries = append(entries, EntryV3{TileID: lastID})
	}

	for i := range entries {
		runLength, err := readUvarint("run length")
		if err != nil {
			return nil, err
		}
		entries[i].RunLength = uint32(runLength)
	}

	for i := range entries {
		length, err := readUvarint("length")
		if err != nil {
			return nil, err
		}
		entries[i].Length = uint32(length)
	}

	for i := range entries {
		raw, err := readUvarint("offset")
		if err != nil {
			return nil, err
		}
		if i > 0 && raw == 0 {
			entries[i].Offset = entries[i-1].Offset + uint64(entries[i-1].Length)
		} else {
			entries[i].Offset = raw - 1
		}
	}

	return entries, nil
}

// findTile binary-searches entries for the one addressing tileID,
// falling back to the run-length or leaf-directory entry immediately
// before tileID when there is no exact tile ID match.
func findTile(entries []EntryV3, tileID uint64) (EntryV3, bool) {
	lo, hi := 0, len(entries)-1
	for lo <= hi {
		mid := (lo + hi) >> 1
		switch {
		case entries[mid].TileID < tileID:
			lo = mid + 1
		case entries[mid].TileID > tileID:
			hi = mid - 1
		default:
			return entries[mid], true
		}
	}

	// lo > hi now; hi is the index of the last entry with TileID < tileID,
	// which for a leaf pointer (RunLength == 0) or a run-length entry that
	// still covers tileID is the entry we want.
	if hi >= 0 {
		candidate := entries[hi]
		if candidate.RunLength == 0 {
			return candidate, true
		}
		if tileID-candidate.TileID < uint64(candidate.RunLength) {
			return candidate, true
		}
	}
	return EntryV3{}, false
}

func SerializeHeader(header HeaderV3) []byte {
	b := make([]byte, HeaderV3LenBytes)
	copy(b[0:7], "PMTiles")

	b[7] = 3
	binary.LittleEndian.PutUint64(b[8:8+8], header.RootOffset)
	binary.LittleEndian.PutUint64(b[16:16+8], header.RootLength)
	binary.LittleEndian.PutUint64(b[24:24+8], header.MetadataOffset)
	binary.LittleEndian.PutUint64(b[32:32+8], header.MetadataLength)
	binary.LittleEndian.PutUint64(b[40:40+8], header.LeafDirectoryOffset)
	binary.LittleEndian.PutUint64(b[48:48+8], header.LeafDirectoryLength)
	binary.LittleEndian.PutUint64(b[56:56+8], header.TileDataOffset)
	binary.LittleEndian.PutUint64(b[64:64+8], header.TileDataLength)
	binary.LittleEndian.PutUint64(b[72:72+8], header.AddressedTilesCount)
	binary.LittleEndian.PutUint64(b[80:80+8], header.TileEntriesCount)
	binary.LittleEndian.PutUint64(b[88:88+8], header.TileContentsCount)
	if header.Clustered {
		b[96] = 0x1
	}
	b[97] = uint8(header.InternalCompression)
	b[98] = uint8(header.TileCompression)
	b[99] = uint8(header.TileType)
	b[100] = header.MinZoom
	b[101] = header.MaxZoom
	binary.LittleEndian.PutUint32(b[102:102+4], uint32(header.MinLonE7))
	binary.LittleEndian.PutUint32(b[106:106+4], uint32(header.MinLatE7))
	binary.LittleEndian.PutUint32(b[110:110+4], uint32(header.MaxLonE7))
	binary.LittleEndian.PutUint32(b[114:114+4], uint32(header.MaxLatE7))
	b[118] = header.CenterZoom
	binary.LittleEndian.PutUint32(b[119:119+4], uint32(header.CenterLonE7))
	binary.LittleEndian.PutUint32(b[123:123+4], uint32(header.CenterLatE7))
	return b
}

// DeserializeHeader decodes the fixed 127-byte PMTiles v3 header,
// failing with ErrInvalidHeader on a short buffer, bad magic, or a spec
// version newer than this reader supports.
func DeserializeHeader(d []byte) (HeaderV3, error) {
	h := HeaderV3{}
	if len(d) < HeaderV3LenBytes {
		return h, fmt.Errorf("pmtiles: header is %d bytes, want %d: %w", len(d), HeaderV3LenBytes, ErrInvalidHeader)
	}

	magicNumber := d[0:7]
	if string(magicNumber) != "PMTiles" {
		return h, fmt.Errorf("pmtiles: bad magic number, not a PMTiles archive: %w", ErrInvalidHeader)
	}

	specVersion := d[7]
	if specVersion > uint8(3) {
		return h, fmt.Errorf("pmtiles: archive is spec version %d, only version 3 is supported: %w", specVersion, ErrInvalidHeader)
	}

	h.SpecVersion = specVersion
	h.RootOffset = binary.LittleEndian.Uint64(d[8 : 8+8])
	h.RootLength = binary.LittleEndian.Uint64(d[16 : 16+8])
	h.MetadataOffset = binary.LittleEndian.Uint64(d[24 : 24+8])
	h.MetadataLength = binary.LittleEndian.Uint64(d[32 : 32+8])
	h.LeafDirectoryOffset = binary.LittleEndian.Uint64(d[40 : 40+8])
	h.LeafDirectoryLength = binary.LittleEndian.Uint64(d[48 : 48+8])
	h.TileDataOffset = binary.LittleEndian.Uint64(d[56 : 56+8])
	h.TileDataLength = binary.LittleEndian.Uint64(d[64 : 64+8])
	h.AddressedTilesCount = binary.LittleEndian.Uint64(d[72 : 72+8])
	h.TileEntriesCount = binary.LittleEndian.Uint64(d[80 : 80+8])
	h.TileContentsCount = binary.LittleEndian.Uint64(d[88 : 88+8])
	h.Clustered = (d[96] == 0x1)
	h.InternalCompression = Compression(d[97])
	h.TileCompression = Compression(d[98])
	h.TileType = TileType(d[99])
	h.MinZoom = d[100]
	h.MaxZoom = d[101]
	h.MinLonE7 = int32(binary.LittleEndian.Uint32(d[102 : 102+4]))
	h.MinLatE7 = int32(binary.LittleEndian.Uint32(d[106 : 106+4]))
	h.MaxLonE7 = int32(binary.LittleEndian.Uint32(d[110 : 110+4]))
	h.MaxLatE7 = int32(binary.LittleEndian.Uint32(d[114 : 114+4]))
	h.CenterZoom = d[118]
	h.CenterLonE7 = int32(binary.LittleEndian.Uint32(d[119 : 119+4]))
	h.CenterLatE7 = int32(binary.LittleEndian.Uint32(d[123 : 123+4]))

	return h, nil
}

// buildRootsLeaves splits entries into leafSize-sized chunks, each
// serialized as its own leaf directory, plus a root directory of one
// pointer entry per leaf.
func buildRootsLeaves(entries []EntryV3, leafSize int, compression Compression) (rootBytes []byte, leavesBytes []byte, numLeaves int, err error) {
	rootEntries := make([]EntryV3, 0)

	for idx := 0; idx < len(entries); idx += leafSize {
		end := idx + leafSize
		if end > len(entries) {
			end = len(entries)
		}
		serialized, err := SerializeEntries(entries[idx:end], compression)
		if err != nil {
			return nil, nil, 0, err
		}

		rootEntries = append(rootEntries, EntryV3{TileID: entries[idx].TileID, Offset: uint64(len(leavesBytes)), Length: uint32(len(serialized))})
		leavesBytes = append(leavesBytes, serialized...)
		numLeaves++
	}

	rootBytes, err = SerializeEntries(rootEntries, compression)
	if err != nil {
		return nil, nil, 0, err
	}
	return rootBytes, leavesBytes, numLeaves, nil
}

// optimizeDirectories picks the smallest directory layout that keeps the
// root directory within targetRootLen: the full directory serialized flat
// if it already fits, otherwise a root of leaf pointers with leaf size
// grown geometrically until the root does fit.
func optimizeDirectories(entries []EntryV3, targetRootLen int, compression Compression) (rootBytes []byte, leavesBytes []byte, numLeaves int, err error) {
	testRootBytes, err := SerializeEntries(entries, compression)
	if err != nil {
		return nil, nil, 0, err
	}
	if len(testRootBytes) <= targetRootLen {
		return testRootBytes, make([]byte, 0), 0, nil
	}

	// TODO: mixed tile entries/directory entries in root, for archives
	// between the flat and leaf-pointers-only regimes.

	leafSize := float32(len(entries)) / 3500
	if leafSize < 4096 {
		leafSize = 4096
	}

	for {
		rootBytes, leavesBytes, numLeaves, err := buildRootsLeaves(entries, int(leafSize), compression)
		if err != nil {
			return nil, nil, 0, err
		}
		if len(rootBytes) <= targetRootLen {
			return rootBytes, leavesBytes, numLeaves, nil
		}
		leafSize *= 1.2
	}
}

// IterateEntries walks every tile entry reachable from header's root
// directory, recursing into leaf directories as needed. fetch retrieves
// the raw (possibly compressed) bytes of a directory at a given
// offset/length; operation is called once per tile-bearing entry (never
// for an internal leaf pointer).
func IterateEntries(header HeaderV3, fetch func(uint64, uint64) ([]byte, error), operation func(EntryV3)) error {
	var walk func(dirOffset uint64, dirLength uint64) error
	walk = func(dirOffset uint64, dirLength uint64) error {
		data, err := fetch(dirOffset, dirLength)
		if err != nil {
			return err
		}

		directory, err := DeserializeEntries(bytes.NewBuffer(data), header.InternalCompression)
		if err != nil {
			return err
		}
		for _, entry := range directory {
			if entry.RunLength > 0 {
				operation(entry)
			} else if err := walk(header.LeafDirectoryOffset+entry.Offset, uint64(entry.Length)); err != nil {
				return err
			}
		}
		return nil
	}

	return walk(header.RootOffset, header.RootLength)
}
