package pmtiles

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeHeaderRoundTrip(t *testing.T) {
	h := HeaderV3{
		RootOffset:          HeaderV3LenBytes,
		RootLength:          100,
		MetadataOffset:      HeaderV3LenBytes + 100,
		MetadataLength:      50,
		LeafDirectoryOffset: 1000,
		LeafDirectoryLength: 200,
		TileDataOffset:      2000,
		TileDataLength:      123456,
		AddressedTilesCount: 10,
		TileEntriesCount:    8,
		TileContentsCount:   6,
		Clustered:           true,
		InternalCompression: Gzip,
		TileCompression:     Gzip,
		TileType:            Mvt,
		MinZoom:             0,
		MaxZoom:             14,
		MinLonE7:            -180000000,
		MinLatE7:            -85000000,
		MaxLonE7:            180000000,
		MaxLatE7:            85000000,
		CenterZoom:          7,
		CenterLonE7:         0,
		CenterLatE7:         0,
	}

	serialized := SerializeHeader(h)
	assert.Len(t, serialized, HeaderV3LenBytes)

	got, err := DeserializeHeader(serialized)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestDeserializeHeaderRejectsBadMagic(t *testing.T) {
	buf := make([]byte, HeaderV3LenBytes)
	copy(buf, []byte("NOTPMTIL"))
	_, err := DeserializeHeader(buf)
	assert.Error(t, err)
}

func TestSerializeDeserializeEntriesRoundTrip(t *testing.T) {
	entries := []EntryV3{
		{TileID: 0, Offset: 0, Length: 100, RunLength: 1},
		{TileID: 1, Offset: 100, Length: 200, RunLength: 1},
		{TileID: 5, Offset: 300, Length: 50, RunLength: 3},
	}

	for _, compression := range []Compression{NoCompression, Gzip} {
		serialized, err := SerializeEntries(entries, compression)
		require.NoError(t, err)
		got, err := DeserializeEntries(bytes.NewBuffer(serialized), compression)
		require.NoError(t, err)
		assert.Equal(t, entries, got, "compression=%v", compression)
	}
}

func TestSerializeEntriesUsesZeroOffsetForContiguousRuns(t *testing.T) {
	entries := []EntryV3{
		{TileID: 0, Offset: 0, Length: 100, RunLength: 1},
		{TileID: 1, Offset: 100, Length: 100, RunLength: 1},
	}
	serialized, err := SerializeEntries(entries, NoCompression)
	require.NoError(t, err)
	got, err := DeserializeEntries(bytes.NewBuffer(serialized), NoCompression)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestDeserializeEntriesRejectsTruncatedInput(t *testing.T) {
	entries := []EntryV3{
		{TileID: 0, Offset: 0, Length: 100, RunLength: 1},
		{TileID: 1, Offset: 100, Length: 200, RunLength: 1},
	}
	serialized, err := SerializeEntries(entries, NoCompression)
	require.NoError(t, err)

	_, err = DeserializeEntries(bytes.NewBuffer(serialized[:1]), NoCompression)
	assert.ErrorIs(t, err, ErrDirectoryCorrupt)
}

func TestSerializeEntriesRejectsUnsupportedCompression(t *testing.T) {
	_, err := SerializeEntries(nil, Brotli)
	assert.ErrorIs(t, err, ErrUnsupportedCompression)

	_, err = DeserializeEntries(bytes.NewBuffer(nil), Zstd)
	assert.ErrorIs(t, err, ErrUnsupportedCompression)
}

func TestFindTile(t *testing.T) {
	entries := []EntryV3{
		{TileID: 0, Offset: 0, Length: 10, RunLength: 1},
		{TileID: 5, Offset: 10, Length: 10, RunLength: 3},
		{TileID: 10, Offset: 20, Length: 10, RunLength: 1},
	}

	e, ok := findTile(entries, 0)
	require.True(t, ok)
	assert.Equal(t, uint64(0), e.TileID)

	// 6 falls inside the run-length range [5, 8)
	e, ok = findTile(entries, 6)
	require.True(t, ok)
	assert.Equal(t, uint64(5), e.TileID)

	_, ok = findTile(entries, 9)
	assert.False(t, ok)

	_, ok = findTile(entries, 999)
	assert.False(t, ok)
}

func TestHeaderToJson(t *testing.T) {
	h := HeaderV3{
		TileCompression: Gzip,
		TileType:        Mvt,
		MinZoom:         2,
		MaxZoom:         10,
		MinLonE7:        -1234567,
		MinLatE7:        -7654321,
		MaxLonE7:        1234567,
		MaxLatE7:        7654321,
		CenterZoom:      5,
		CenterLonE7:     0,
		CenterLatE7:     0,
	}

	j := HeaderSummary(h)
	assert.Equal(t, "gzip", j.TileCompression)
	assert.Equal(t, "mvt", j.TileType)
	assert.Equal(t, 2, j.MinZoom)
	assert.Equal(t, 10, j.MaxZoom)
	assert.InDelta(t, -0.1234567, j.Bounds[0], 1e-9)
	assert.InDelta(t, 0.1234567, j.Bounds[2], 1e-9)
	assert.Equal(t, []float64{0, 0, 5}, j.Center)
}

func TestSerializeDeserializeMetadataRoundTrip(t *testing.T) {
	metadata := map[string]interface{}{"name": "test", "version": "1.0"}

	for _, compression := range []Compression{NoCompression, Gzip} {
		serialized, err := SerializeMetadata(metadata, compression)
		require.NoError(t, err)

		got, err := DeserializeMetadata(bytes.NewReader(serialized), compression)
		require.NoError(t, err)
		assert.Equal(t, metadata["name"], got["name"])
		assert.Equal(t, metadata["version"], got["version"])
	}
}
