package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protomaps/pmtiles-go/pmtiles"
	"github.com/protomaps/pmtiles-go/rangereader"
)

type memorySource struct {
	data []byte
}

func (m *memorySource) Size(ctx context.Context) (uint64, error) { return uint64(len(m.data)), nil }

func (m *memorySource) ReadRange(ctx context.Context, offset uint64, length uint32) ([]byte, error) {
	if offset >= uint64(len(m.data)) {
		return nil, rangereader.ErrObjectNotFound
	}
	end := offset + uint64(length)
	if end > uint64(len(m.data)) {
		end = uint64(len(m.data))
	}
	out := make([]byte, end-offset)
	copy(out, m.data[offset:end])
	return out, nil
}

func (m *memorySource) ReadRangeInto(ctx context.Context, offset uint64, length uint32, dst []byte) (int, error) {
	b, err := m.ReadRange(ctx, offset, length)
	if err != nil {
		return 0, err
	}
	return copy(dst, b), nil
}

func (m *memorySource) Close() error { return nil }

type writeSeekerBuffer struct {
	*bytes.Buffer
}

func (w *writeSeekerBuffer) Seek(offset int64, whence int) (int64, error) {
	return int64(w.Buffer.Len()), nil
}

func buildTestArchive(t *testing.T) []byte {
	t.Helper()
	w, err := pmtiles.NewWriter(log.New(io.Discard, "", 0), pmtiles.WriterOptions{
		TileType:            pmtiles.Mvt,
		TileCompression:     pmtiles.Gzip,
		InternalCompression: pmtiles.Gzip,
	})
	require.NoError(t, err)
	w.SetMetadata("name", "test archive")

	require.NoError(t, w.AddTile(0, 0, 0, []byte("tile-0-0-0")))

	buf := &writeSeekerBuffer{Buffer: &bytes.Buffer{}}
	header := pmtiles.HeaderV3{
		MinZoom:             0,
		MaxZoom:             0,
		TileType:            pmtiles.Mvt,
		TileCompression:     pmtiles.Gzip,
		InternalCompression: pmtiles.Gzip,
	}
	require.NoError(t, w.Complete(buf, header, nil))
	return buf.Bytes()
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	archiveBytes := buildTestArchive(t)
	opener := func(ctx context.Context, name string) (rangereader.Source, error) {
		if name != "testarchive" {
			return nil, rangereader.ErrObjectNotFound
		}
		return &memorySource{data: archiveBytes}, nil
	}
	return NewServer(opener, log.New(io.Discard, "", 0), "*", "https://example.com/tiles")
}

func TestServerServesTile(t *testing.T) {
	s := newTestServer(t)
	status, headers, body := s.Get(context.Background(), "/testarchive/0/0/0.mvt")
	assert.Equal(t, 200, status)
	assert.Equal(t, "tile-0-0-0", string(body))
	assert.NotEmpty(t, headers["ETag"])
	assert.Equal(t, "gzip", headers["Content-Encoding"])
}

func TestServerReturns404ForMissingArchive(t *testing.T) {
	s := newTestServer(t)
	status, _, _ := s.Get(context.Background(), "/nope/0/0/0.mvt")
	assert.Equal(t, 404, status)
}

func TestServerReturns404ForMissingTile(t *testing.T) {
	s := newTestServer(t)
	status, _, _ := s.Get(context.Background(), "/testarchive/5/1/1.mvt")
	assert.Equal(t, 404, status)
}

func TestServerRejectsExtensionMismatch(t *testing.T) {
	s := newTestServer(t)
	status, _, body := s.Get(context.Background(), "/testarchive/0/0/0.png")
	assert.Equal(t, 400, status)
	assert.Contains(t, string(body), "path mismatch")
}

func TestServerServesMetadata(t *testing.T) {
	s := newTestServer(t)
	status, headers, body := s.Get(context.Background(), "/testarchive/metadata")
	require.Equal(t, 200, status)
	assert.Equal(t, "application/json", headers["Content-Type"])

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &meta))
	assert.Equal(t, "test archive", meta["name"])
}

func TestServerServesTileJSON(t *testing.T) {
	s := newTestServer(t)
	status, headers, body := s.Get(context.Background(), "/testarchive.json")
	require.Equal(t, 200, status)
	assert.Equal(t, "application/json", headers["Content-Type"])

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, []interface{}{"https://example.com/tiles/testarchive/{z}/{x}/{y}.mvt"}, doc["tiles"])
}

func TestServerServeHTTPIntegration(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/testarchive/0/0/0.mvt", nil)
	require.NoError(t, err)
	// An explicit Accept-Encoding stops the transport from transparently
	// gunzipping the body, which the fixture stores uncompressed.
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "tile-0-0-0", string(body))
}

func TestServerInvalidateForcesReopen(t *testing.T) {
	s := newTestServer(t)
	_, _, _ = s.Get(context.Background(), "/testarchive/0/0/0.mvt")

	s.mu.Lock()
	_, cached := s.archives["testarchive"]
	s.mu.Unlock()
	require.True(t, cached)

	s.Invalidate("testarchive")

	s.mu.Lock()
	_, stillCached := s.archives["testarchive"]
	s.mu.Unlock()
	assert.False(t, stillCached)
}

func TestArchiveErrorStatusMapsNotFound(t *testing.T) {
	assert.Equal(t, 404, archiveErrorStatus(rangereader.ErrObjectNotFound))
	assert.Equal(t, 500, archiveErrorStatus(errors.New("boom")))
}
