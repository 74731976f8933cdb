package rangereader

import (
	"context"
	"fmt"
	"io"
	"os"
)

// FileSource reads byte ranges from a local file via pread (ReadAt),
// which requires no seek lock and is safe for concurrent callers.
type FileSource struct {
	f *os.File
}

// NewFileSource opens path for reading. The returned Source owns the
// file descriptor; Close it when done.
func NewFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrObjectNotFound)
		}
		return nil, wrapIOErr("file", err)
	}
	return &FileSource{f: f}, nil
}

func (s *FileSource) Size(ctx context.Context) (uint64, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, wrapIOErr("file", err)
	}
	return uint64(fi.Size()), nil
}

func (s *FileSource) ReadRange(ctx context.Context, offset uint64, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := s.ReadRangeInto(ctx, offset, length, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *FileSource) ReadRangeInto(ctx context.Context, offset uint64, length uint32, dst []byte) (int, error) {
	n, err := s.f.ReadAt(dst[:length], int64(offset))
	if err != nil && err != io.EOF {
		return n, wrapIOErr("file", err)
	}
	return n, nil
}

func (s *FileSource) Close() error {
	return s.f.Close()
}
