package main

import (
	"errors"

	"github.com/protomaps/pmtiles-go/pmtiles"
	"github.com/protomaps/pmtiles-go/rangereader"
)

func isCancelled(err error) bool {
	return errors.Is(err, pmtiles.ErrCancelled)
}

func isNotFoundOrInvalid(err error) bool {
	return errors.Is(err, rangereader.ErrObjectNotFound) ||
		errors.Is(err, rangereader.ErrRangeUnsupported) ||
		errors.Is(err, pmtiles.ErrInvalidHeader) ||
		errors.Is(err, pmtiles.ErrUnsupportedCompression) ||
		errors.Is(err, pmtiles.ErrDirectoryCorrupt) ||
		errors.Is(err, pmtiles.ErrInvalidTileID) ||
		errors.Is(err, pmtiles.ErrNotClustered)
}
