package rangereader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"cloud.google.com/go/storage"
)

// GCSSource reads byte ranges from a Google Cloud Storage object using
// native ranged NewRangeReader calls.
type GCSSource struct {
	client *storage.Client
	bucket string
	object string

	sizeOnce sync.Once
	size     uint64
	sizeErr  error
}

// NewGCSSource creates a Source for the object at bucket/object.
func NewGCSSource(client *storage.Client, bucket, object string) *GCSSource {
	return &GCSSource{client: client, bucket: bucket, object: object}
}

func (s *GCSSource) handle() *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.object)
}

func (s *GCSSource) Size(ctx context.Context) (uint64, error) {
	s.sizeOnce.Do(func() {
		attrs, err := s.handle().Attrs(ctx)
		if err != nil {
			s.sizeErr = translateGCSErr(s.object, err)
			return
		}
		s.size = uint64(attrs.Size)
	})
	return s.size, s.sizeErr
}

func (s *GCSSource) ReadRange(ctx context.Context, offset uint64, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	n, err := s.ReadRangeInto(ctx, offset, length, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (s *GCSSource) ReadRangeInto(ctx context.Context, offset uint64, length uint32, dst []byte) (int, error) {
	r, err := s.handle().NewRangeReader(ctx, int64(offset), int64(length))
	if err != nil {
		return 0, translateGCSErr(s.object, err)
	}
	defer r.Close()

	n, err := io.ReadFull(r, dst[:length])
	if err != nil && err != io.ErrUnexpectedEOF {
		return n, wrapIOErr("gcs", err)
	}
	return n, nil
}

func (s *GCSSource) Close() error {
	return nil
}

func translateGCSErr(object string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%s: %w", object, ErrObjectNotFound)
	}
	return wrapIOErr("gcs", err)
}
