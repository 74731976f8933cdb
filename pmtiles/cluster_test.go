package pmtiles

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildArchiveWithDuplicateBodies(t *testing.T) []byte {
	t.Helper()
	w, err := NewWriter(log.New(os.Stderr, "", 0), WriterOptions{
		TileType:        Mvt,
		TileCompression: NoCompression,
		Deduplicate:     false,
	})
	require.NoError(t, err)
	w.SetMetadata("name", "unclustered")
	require.NoError(t, w.AddTile(0, 0, 0, []byte("root")))
	require.NoError(t, w.AddTile(1, 0, 0, []byte("same body")))
	require.NoError(t, w.AddTile(1, 1, 1, []byte("same body")))

	var buf bytes.Buffer
	out := &writeSeekerAdapter{Buffer: &buf}
	bounds := HeaderV3{MinLonE7: -1800000000, MinLatE7: -850000000, MaxLonE7: 1800000000, MaxLatE7: 850000000}
	require.NoError(t, w.Complete(out, bounds, nil))
	return buf.Bytes()
}

func TestClusterProducesClusteredArchive(t *testing.T) {
	archive := buildArchiveWithDuplicateBodies(t)
	src := &memorySource{data: archive}

	outputPath := filepath.Join(t.TempDir(), "clustered.pmtiles")
	err := Cluster(context.Background(), log.New(os.Stderr, "", 0), src, outputPath, true)
	require.NoError(t, err)

	clustered, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	out := &memorySource{data: clustered}
	err = Verify(context.Background(), nil, out)
	assert.NoError(t, err)

	reader, err := NewReader(context.Background(), out, nil, ReaderOptions{})
	require.NoError(t, err)
	defer reader.Close()

	data, ok, err := reader.GetTile(context.Background(), 1, 1, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("same body"), data)
}
