package rangereader

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

// Options configures the Source Open returns.
type Options struct {
	// HTTPClient is used for http:// and https:// URIs. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// BlockSize, if nonzero, wraps the opened Source in BlockAligned.
	BlockSize uint64

	// MemoryCacheEntries and MemoryCacheBytes, if nonzero, wrap the
	// opened Source in a MemoryCache.
	MemoryCacheEntries int
	MemoryCacheBytes   int64
}

// Open resolves uri to a Source, dispatching on its scheme: a bare path
// or file:// URI opens a FileSource, http(s):// opens an HTTPSource, and
// any other scheme (s3://, azblob://, gs://, ...) is handed to
// gocloud.dev/blob's generic bucket opener and wrapped in a CloudSource.
// A schemeless uri that isLooksLikeURL accepts (such as
// tiles.example.com/archive.pmtiles) opens an HTTPSource over https://.
// The returned Source has BlockAligned and MemoryCache layered on top
// per opts, matching the canonical cache stack every call site in this
// module builds by hand otherwise.
func Open(ctx context.Context, uri string, opts Options) (Source, error) {
	base, err := openBase(ctx, uri, opts)
	if err != nil {
		return nil, err
	}

	var src Source = base
	if opts.BlockSize > 0 {
		src = NewBlockAligned(src, opts.BlockSize)
	}
	if opts.MemoryCacheEntries > 0 {
		cached, err := NewMemoryCache(src, opts.MemoryCacheEntries, opts.MemoryCacheBytes)
		if err != nil {
			return nil, err
		}
		src = cached
	}
	return src, nil
}

func openBase(ctx context.Context, uri string, opts Options) (Source, error) {
	switch {
	case strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://"):
		return NewHTTPSource(uri, opts.HTTPClient), nil

	case strings.HasPrefix(uri, "file://"):
		return NewFileSource(strings.TrimPrefix(uri, "file://"))

	case hasScheme(uri):
		dir, key := splitBlobURL(uri)
		bucket, err := blob.OpenBucket(ctx, dir)
		if err != nil {
			return nil, fmt.Errorf("rangereader: opening bucket %s: %w", dir, err)
		}
		return NewCloudSource(bucket, key), nil

	case isLooksLikeURL(uri):
		return NewHTTPSource("https://"+uri, opts.HTTPClient), nil

	default:
		abs, err := filepath.Abs(uri)
		if err != nil {
			return nil, fmt.Errorf("rangereader: resolving path %s: %w", uri, err)
		}
		return NewFileSource(abs)
	}
}

// hasScheme reports whether uri carries a non-Windows-drive-letter scheme
// prefix (s3://, gs://, azblob://, mem://, ...), the same heuristic the
// reference implementation uses to decide "is this a remote bucket URI or
// a local path" before any scheme-specific dispatch runs.
func hasScheme(uri string) bool {
	idx := strings.Index(uri, "://")
	return idx > 1
}

// isLooksLikeURL reports whether a schemeless uri should be treated as an
// https:// host, rather than a local file path. A string that is
// unambiguously a path — absolute, or explicitly relative via "./" or
// "../" — is never reinterpreted this way. Otherwise it must contain
// both a "." (a hostname) and a "/" (a path separator), with no
// whitespace or backslash, which would indicate a Windows path or
// something that isn't a URL at all.
func isLooksLikeURL(uri string) bool {
	if strings.HasPrefix(uri, "/") || strings.HasPrefix(uri, "./") || strings.HasPrefix(uri, "../") {
		return false
	}
	if strings.ContainsAny(uri, " \t\r\n\\") {
		return false
	}
	return strings.Contains(uri, ".") && strings.Contains(uri, "/")
}

// splitBlobURL separates a scheme://bucket/key URI into the
// gocloud.dev/blob bucket URL (scheme://bucket) and the object key,
// mirroring the reference implementation's bucket/key split for cloud
// storage URIs.
func splitBlobURL(uri string) (bucketURL string, key string) {
	schemeEnd := strings.Index(uri, "://") + 3
	rest := uri[schemeEnd:]
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 1 {
		return uri, ""
	}
	return uri[:schemeEnd] + parts[0], parts[1]
}
