package pmtiles

import "errors"

// Sentinel errors returned by the archive engine. Callers should use
// errors.Is against these rather than comparing strings.
var (
	// ErrInvalidHeader is returned when a byte slice does not decode to a
	// valid 127-byte PMTiles v3 header (bad magic, unsupported version).
	ErrInvalidHeader = errors.New("pmtiles: invalid header")

	// ErrUnsupportedCompression is returned for a compression byte outside
	// the Compression enum, or one this build cannot decode.
	ErrUnsupportedCompression = errors.New("pmtiles: unsupported compression")

	// ErrDirectoryCorrupt is returned when a directory's entry count,
	// run-length, or offset stream fails to decode consistently.
	ErrDirectoryCorrupt = errors.New("pmtiles: directory corrupt")

	// ErrInvalidTileID is returned for a (z,x,y) outside the valid range
	// for its zoom, or a tile ID with no corresponding (z,x,y).
	ErrInvalidTileID = errors.New("pmtiles: invalid tile coordinate")

	// ErrWriterStateViolation is returned when Writer methods are called
	// out of order (AddTile after Complete, Complete twice, etc).
	ErrWriterStateViolation = errors.New("pmtiles: writer state violation")

	// ErrCancelled is returned from Writer.Complete when the supplied
	// progress listener's IsCancelled reported true.
	ErrCancelled = errors.New("pmtiles: operation cancelled")

	// ErrNotClustered is returned by Join when an input archive is not
	// clustered.
	ErrNotClustered = errors.New("pmtiles: archive is not clustered")
)
