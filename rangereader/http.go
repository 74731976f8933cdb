package rangereader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// HTTPSource reads byte ranges from an HTTP(S) object via Range requests.
type HTTPSource struct {
	client *http.Client
	url    string

	sizeOnce sync.Once
	size     uint64
	sizeErr  error
}

// NewHTTPSource creates a Source backed by url. client may be nil, in
// which case http.DefaultClient is used.
func NewHTTPSource(url string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{client: client, url: url}
}

func (s *HTTPSource) Size(ctx context.Context) (uint64, error) {
	s.sizeOnce.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.url, nil)
		if err != nil {
			s.sizeErr = wrapIOErr("http", err)
			return
		}
		resp, err := s.client.Do(req)
		if err != nil {
			s.sizeErr = wrapIOErr("http", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			s.sizeErr = fmt.Errorf("%s: %w", s.url, ErrObjectNotFound)
			return
		}
		if resp.StatusCode != http.StatusOK {
			s.sizeErr = fmt.Errorf("http: unexpected status %d for HEAD %s", resp.StatusCode, s.url)
			return
		}
		if resp.ContentLength < 0 {
			s.sizeErr = fmt.Errorf("http: %s did not report Content-Length", s.url)
			return
		}
		s.size = uint64(resp.ContentLength)
	})
	return s.size, s.sizeErr
}

func (s *HTTPSource) ReadRange(ctx context.Context, offset uint64, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	n, err := s.ReadRangeInto(ctx, offset, length, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (s *HTTPSource) ReadRangeInto(ctx context.Context, offset uint64, length uint32, dst []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, wrapIOErr("http", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+uint64(length)-1))

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, wrapIOErr("http", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return 0, fmt.Errorf("%s: %w", s.url, ErrObjectNotFound)
	case http.StatusRequestedRangeNotSatisfiable:
		return 0, fmt.Errorf("%s: %w", s.url, ErrRangeUnsupported)
	case http.StatusPartialContent:
		// expected path
	case http.StatusOK:
		// origin ignored our Range header and sent the whole object back;
		// we cannot trust dst to hold only the requested window.
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("%s: %w", s.url, ErrRangeUnsupported)
	default:
		return 0, fmt.Errorf("http: unexpected status %d for GET %s", resp.StatusCode, s.url)
	}

	n, err := io.ReadFull(resp.Body, dst[:length])
	if err != nil && err != io.ErrUnexpectedEOF {
		return n, wrapIOErr("http", err)
	}
	return n, nil
}

func (s *HTTPSource) Close() error {
	return nil
}
