package rangereader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// CloudSource adapts a gocloud.dev/blob.Bucket to Source. Open uses it for
// every bucket URI scheme, including s3://, gs:// and azblob://;
// AzureSource, S3Source and GCSSource are native alternatives built
// directly from an SDK client.
type CloudSource struct {
	bucket *blob.Bucket
	key    string

	sizeOnce sync.Once
	size     uint64
	sizeErr  error
}

// NewCloudSource creates a Source for the object at key within bucket.
// The caller retains ownership of bucket and must close it separately;
// CloudSource.Close is a no-op.
func NewCloudSource(bucket *blob.Bucket, key string) *CloudSource {
	return &CloudSource{bucket: bucket, key: key}
}

func (s *CloudSource) Size(ctx context.Context) (uint64, error) {
	s.sizeOnce.Do(func() {
		attrs, err := s.bucket.Attributes(ctx, s.key)
		if err != nil {
			s.sizeErr = translateCloudErr(s.key, err)
			return
		}
		s.size = uint64(attrs.Size)
	})
	return s.size, s.sizeErr
}

func (s *CloudSource) ReadRange(ctx context.Context, offset uint64, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	n, err := s.ReadRangeInto(ctx, offset, length, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (s *CloudSource) ReadRangeInto(ctx context.Context, offset uint64, length uint32, dst []byte) (int, error) {
	r, err := s.bucket.NewRangeReader(ctx, s.key, int64(offset), int64(length), nil)
	if err != nil {
		return 0, translateCloudErr(s.key, err)
	}
	defer r.Close()

	n, err := io.ReadFull(r, dst[:length])
	if err != nil && err != io.ErrUnexpectedEOF {
		return n, wrapIOErr("cloud", err)
	}
	return n, nil
}

func (s *CloudSource) Close() error {
	return nil
}

func translateCloudErr(key string, err error) error {
	if gcerrors.Code(err) == gcerrors.NotFound {
		return fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	var unsupported *blob.ErrNotSupportedError
	if errors.As(err, &unsupported) {
		return fmt.Errorf("%s: %w", key, ErrRangeUnsupported)
	}
	return wrapIOErr("cloud", err)
}
