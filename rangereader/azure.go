package rangereader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// AzureSource reads byte ranges from an Azure Blob Storage object using
// native ranged DownloadStream calls.
type AzureSource struct {
	client    *azblob.Client
	container string
	name      string

	sizeOnce sync.Once
	size     uint64
	sizeErr  error
}

// NewAzureSource creates a Source for the blob at container/name.
func NewAzureSource(client *azblob.Client, container, name string) *AzureSource {
	return &AzureSource{client: client, container: container, name: name}
}

func (s *AzureSource) Size(ctx context.Context) (uint64, error) {
	s.sizeOnce.Do(func() {
		props, err := s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(s.name).GetProperties(ctx, nil)
		if err != nil {
			s.sizeErr = translateAzureErr(s.name, err)
			return
		}
		if props.ContentLength == nil {
			s.sizeErr = fmt.Errorf("azure: %s did not report a content length", s.name)
			return
		}
		s.size = uint64(*props.ContentLength)
	})
	return s.size, s.sizeErr
}

func (s *AzureSource) ReadRange(ctx context.Context, offset uint64, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	n, err := s.ReadRangeInto(ctx, offset, length, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (s *AzureSource) ReadRangeInto(ctx context.Context, offset uint64, length uint32, dst []byte) (int, error) {
	count := int64(length)
	resp, err := s.client.DownloadStream(ctx, s.container, s.name, &azblob.DownloadStreamOptions{
		Range: blob.HTTPRange{Offset: int64(offset), Count: count},
	})
	if err != nil {
		return 0, translateAzureErr(s.name, err)
	}
	body := resp.Body
	defer body.Close()

	buf := &bytes.Buffer{}
	if _, err := io.CopyN(buf, body, count); err != nil && err != io.EOF {
		return 0, wrapIOErr("azure", err)
	}
	n := copy(dst[:length], buf.Bytes())
	return n, nil
}

func (s *AzureSource) Close() error {
	return nil
}

func translateAzureErr(name string, err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.ErrorCode {
		case "BlobNotFound", "ContainerNotFound":
			return fmt.Errorf("%s: %w", name, ErrObjectNotFound)
		case "InvalidRange":
			return fmt.Errorf("%s: %w", name, ErrRangeUnsupported)
		}
	}
	return wrapIOErr("azure", err)
}
