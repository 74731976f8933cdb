// Package httpserver serves PMTiles archives over HTTP: tile requests,
// a TileJSON endpoint, and a metadata endpoint, routed by the same path
// conventions as the teacher's own server (still the reference client
// of the archive engine, even though spec.md scopes network serving as
// supporting rather than core).
package httpserver

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/rs/cors"

	"github.com/protomaps/pmtiles-go/pmtiles"
	"github.com/protomaps/pmtiles-go/rangereader"
)

// ArchiveOpener opens the backing Source for a named archive. Server
// keeps the first successfully opened reader per archive name until
// Invalidate is called for that name; concurrent first requests for the
// same name may each call the opener, and the extra sources are closed.
type ArchiveOpener func(ctx context.Context, name string) (rangereader.Source, error)

type cachedArchive struct {
	reader *pmtiles.Reader
	source rangereader.Source
}

// Server answers HTTP requests for tiles, TileJSON, and metadata across
// any number of named archives, opening and caching a pmtiles.Reader
// per archive on first use.
type Server struct {
	opener    ArchiveOpener
	logger    *log.Logger
	cors      string
	publicURL string
	metrics   *metrics

	mu       sync.Mutex
	archives map[string]*cachedArchive
}

// NewServer builds a Server. cors is the Access-Control-Allow-Origin
// value to send, or empty to disable CORS headers. publicURL, if set,
// is the base URL TileJSON responses advertise for tile requests.
func NewServer(opener ArchiveOpener, logger *log.Logger, corsOrigin string, publicURL string) *Server {
	return &Server{
		opener:    opener,
		logger:    logger,
		cors:      corsOrigin,
		publicURL: publicURL,
		metrics:   createMetrics("", logger),
		archives:  make(map[string]*cachedArchive),
	}
}

// Handler wraps the Server in net/http middleware (CORS) and returns a
// ready-to-mount http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.ServeHTTP(w, r)
	})
	if s.cors == "" {
		return mux
	}
	return cors.New(cors.Options{
		AllowedOrigins: []string{s.cors},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	}).Handler(mux)
}

// Invalidate drops the cached reader for name, forcing the next request
// to reopen it. Call this when the underlying archive has changed.
func (s *Server) Invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.archives[name]; ok {
		entry.source.Close()
		delete(s.archives, name)
		s.metrics.reloadArchive(name)
	}
}

func (s *Server) getArchive(ctx context.Context, name string) (*pmtiles.Reader, error) {
	s.mu.Lock()
	if entry, ok := s.archives[name]; ok {
		s.mu.Unlock()
		return entry.reader, nil
	}
	s.mu.Unlock()

	source, err := s.opener(ctx, name)
	if err != nil {
		return nil, err
	}
	reader, err := pmtiles.NewReader(ctx, source, s.logger, pmtiles.ReaderOptions{})
	if err != nil {
		source.Close()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.archives[name]; ok {
		source.Close()
		return entry.reader, nil
	}
	s.archives[name] = &cachedArchive{reader: reader, source: source}
	return reader, nil
}

var (
	tilePattern     = regexp.MustCompile(`^/([-A-Za-z0-9_/!\-\.\*'\(\)]+)/(\d+)/(\d+)/(\d+)\.([a-z]+)$`)
	metadataPattern = regexp.MustCompile(`^/([-A-Za-z0-9_/!\-\.\*'\(\)]+)/metadata$`)
	tileJSONPattern = regexp.MustCompile(`^/([-A-Za-z0-9_/!\-\.\*'\(\)]+)\.json$`)
)

func parseTilePath(path string) (ok bool, name string, z uint8, x uint32, y uint32, ext string) {
	res := tilePattern.FindStringSubmatch(path)
	if res == nil {
		return false, "", 0, 0, 0, ""
	}
	zi, _ := strconv.ParseUint(res[2], 10, 8)
	xi, _ := strconv.ParseUint(res[3], 10, 32)
	yi, _ := strconv.ParseUint(res[4], 10, 32)
	return true, res[1], uint8(zi), uint32(xi), uint32(yi), res[5]
}

func parseNamedPath(pattern *regexp.Regexp, path string) (bool, string) {
	res := pattern.FindStringSubmatch(path)
	if res == nil {
		return false, ""
	}
	return true, res[1]
}

// Get answers one request path, returning an HTTP status code, response
// headers, and body. It never writes to an http.ResponseWriter itself,
// so it can be exercised directly in tests or reused by non-HTTP
// transports.
func (s *Server) Get(ctx context.Context, path string) (status int, headers map[string]string, body []byte) {
	tracker := s.metrics.startRequest()
	archive, handler, status, headers, body := s.get(ctx, path)
	tracker.finish(ctx, archive, handler, status, len(body))
	return status, headers, body
}

func (s *Server) get(ctx context.Context, path string) (archive, handler string, status int, headers map[string]string, body []byte) {
	headers = make(map[string]string)

	if ok, name, z, x, y, ext := parseTilePath(path); ok {
		status, headers, body = s.serveTile(ctx, headers, name, z, x, y, ext)
		return name, "tile", status, headers, body
	}
	if ok, name := parseNamedPath(tileJSONPattern, path); ok {
		status, headers, body = s.serveTileJSON(ctx, headers, name)
		return name, "tilejson", status, headers, body
	}
	if ok, name := parseNamedPath(metadataPattern, path); ok {
		status, headers, body = s.serveMetadata(ctx, headers, name)
		return name, "metadata", status, headers, body
	}
	if path == "/" {
		return "", "/", 204, headers, nil
	}
	return "", "404", 404, headers, []byte("path not found")
}

func (s *Server) serveTile(ctx context.Context, headers map[string]string, name string, z uint8, x uint32, y uint32, ext string) (int, map[string]string, []byte) {
	reader, err := s.getArchive(ctx, name)
	if err != nil {
		return archiveErrorStatus(err), headers, []byte(err.Error())
	}

	header := reader.Header()
	if wantExt, ok := extensionForTileType(header.TileType); ok && ext != wantExt {
		return 400, headers, []byte(fmt.Sprintf("path mismatch: archive is type %s", wantExt))
	}

	data, found, err := reader.GetTile(ctx, z, x, y)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return 499, headers, []byte("canceled")
		}
		return 500, headers, []byte(err.Error())
	}
	if !found {
		return 404, headers, []byte("tile not found")
	}

	headers["ETag"] = generateEtag(data)
	if contentType, ok := contentTypeForTileType(header.TileType); ok {
		headers["Content-Type"] = contentType
	}
	if encoding, ok := contentEncodingForCompression(header.TileCompression); ok {
		headers["Content-Encoding"] = encoding
	}
	return 200, headers, data
}

func (s *Server) serveMetadata(ctx context.Context, headers map[string]string, name string) (int, map[string]string, []byte) {
	reader, err := s.getArchive(ctx, name)
	if err != nil {
		return archiveErrorStatus(err), headers, []byte(err.Error())
	}
	metadata, err := reader.GetMetadata(ctx)
	if err != nil {
		return 500, headers, []byte(err.Error())
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return 500, headers, []byte(err.Error())
	}
	headers["Content-Type"] = "application/json"
	headers["ETag"] = generateEtag(data)
	return 200, headers, data
}

func (s *Server) serveTileJSON(ctx context.Context, headers map[string]string, name string) (int, map[string]string, []byte) {
	if s.publicURL == "" {
		return 501, headers, []byte("public URL must be configured for TileJSON")
	}
	reader, err := s.getArchive(ctx, name)
	if err != nil {
		return archiveErrorStatus(err), headers, []byte(err.Error())
	}
	metadata, err := reader.GetMetadata(ctx)
	if err != nil {
		return 500, headers, []byte(err.Error())
	}
	data, err := pmtiles.CreateTileJSON(reader.Header(), metadata, s.publicURL+"/"+name)
	if err != nil {
		return 500, headers, []byte(err.Error())
	}
	headers["Content-Type"] = "application/json"
	headers["ETag"] = generateEtag(data)
	return 200, headers, data
}

func archiveErrorStatus(err error) int {
	if errors.Is(err, rangereader.ErrObjectNotFound) {
		return 404
	}
	return 500
}

func extensionForTileType(t pmtiles.TileType) (string, bool) {
	switch t {
	case pmtiles.Mvt:
		return "mvt", true
	case pmtiles.Png:
		return "png", true
	case pmtiles.Jpeg:
		return "jpg", true
	case pmtiles.Webp:
		return "webp", true
	case pmtiles.Avif:
		return "avif", true
	default:
		return "", false
	}
}

func contentTypeForTileType(t pmtiles.TileType) (string, bool) {
	switch t {
	case pmtiles.Mvt:
		return "application/vnd.mapbox-vector-tile", true
	case pmtiles.Png:
		return "image/png", true
	case pmtiles.Jpeg:
		return "image/jpeg", true
	case pmtiles.Webp:
		return "image/webp", true
	case pmtiles.Avif:
		return "image/avif", true
	default:
		return "", false
	}
}

func contentEncodingForCompression(c pmtiles.Compression) (string, bool) {
	switch c {
	case pmtiles.Gzip:
		return "gzip", true
	case pmtiles.Brotli:
		return "br", true
	default:
		return "", false
	}
}

func generateEtag(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf(`"%x"`, sum[:8])
}

// loggingResponseWriter records the status code ServeHTTP's downstream
// http.ServeContent call ends up choosing (e.g. 304 for a conditional
// request it serves itself), so metrics reflect what the client saw.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tracker := s.metrics.startRequest()
	archive, handler, status, headers, body := s.get(r.Context(), r.URL.Path)
	for k, v := range headers {
		w.Header().Set(k, v)
	}

	if status == 200 {
		lrw := &loggingResponseWriter{w, 200}
		http.ServeContent(lrw, r, "", time.Unix(0, 0), bytes.NewReader(body))
		status = lrw.statusCode
	} else {
		w.WriteHeader(status)
		w.Write(body)
	}
	tracker.finish(r.Context(), archive, handler, status, len(body))
}
