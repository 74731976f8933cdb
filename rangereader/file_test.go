package rangereader

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSourceReadRange(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "rangereader-*")
	require.NoError(t, err)
	_, err = f.Write([]byte("0123456789abcdef"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	src, err := NewFileSource(f.Name())
	require.NoError(t, err)
	defer src.Close()

	size, err := src.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(16), size)

	data, err := src.ReadRange(context.Background(), 4, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte("456789"), data)
}

func TestFileSourceNotFound(t *testing.T) {
	_, err := NewFileSource("/nonexistent/path/does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestFileSourceReadRangeInto(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "rangereader-*")
	require.NoError(t, err)
	_, err = f.Write([]byte("abcdefgh"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	src, err := NewFileSource(f.Name())
	require.NoError(t, err)
	defer src.Close()

	dst := make([]byte, 4)
	n, err := src.ReadRangeInto(context.Background(), 2, 4, dst)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("cdef"), dst)
}
