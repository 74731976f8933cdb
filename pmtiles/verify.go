package pmtiles

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/protomaps/pmtiles-go/rangereader"
)

// Verify checks that an archive's header statistics match its directory
// contents, and that tiles are stored in ascending offset order if the
// header claims the archive is clustered. It reads the whole directory
// tree but never the tile data section itself.
func Verify(ctx context.Context, logger *log.Logger, source rangereader.Source) error {
	start := time.Now()

	size, err := source.Size(ctx)
	if err != nil {
		return fmt.Errorf("pmtiles: verify: reading size: %w", err)
	}

	headerBytes, err := source.ReadRange(ctx, 0, HeaderV3LenBytes)
	if err != nil {
		return fmt.Errorf("pmtiles: verify: reading header: %w", err)
	}
	header, err := DeserializeHeader(headerBytes)
	if err != nil {
		return fmt.Errorf("pmtiles: verify: %w", err)
	}

	lengthFromHeader := HeaderV3LenBytes + header.RootLength + header.MetadataLength + header.LeafDirectoryLength + header.TileDataLength
	if size != lengthFromHeader {
		return fmt.Errorf("pmtiles: verify: archive length %d does not match header-derived length %d", size, lengthFromHeader)
	}

	var collectErr error
	var collectEntries func(dirOffset uint64, dirLength uint64, f func(EntryV3))
	collectEntries = func(dirOffset uint64, dirLength uint64, f func(EntryV3)) {
		if collectErr != nil {
			return
		}
		dirBytes, err := source.ReadRange(ctx, dirOffset, uint32(dirLength))
		if err != nil {
			collectErr = fmt.Errorf("pmtiles: verify: reading directory at %d: %w", dirOffset, err)
			return
		}
		directory, err := DeserializeEntries(bytes.NewBuffer(dirBytes), header.InternalCompression)
		if err != nil {
			collectErr = fmt.Errorf("pmtiles: verify: decoding directory at %d: %w", dirOffset, err)
			return
		}
		for _, entry := range directory {
			if entry.RunLength > 0 {
				f(entry)
			} else {
				collectEntries(header.LeafDirectoryOffset+entry.Offset, uint64(entry.Length), f)
			}
		}
	}

	minTileID := uint64(math.MaxUint64)
	var maxTileID uint64
	var addressedTiles, tileEntries uint64
	offsets := roaring64.New()
	var currentOffset uint64
	var orderingErr error

	collectEntries(header.RootOffset, header.RootLength, func(e EntryV3) {
		alreadySeen := offsets.Contains(e.Offset)
		offsets.Add(e.Offset)
		addressedTiles += uint64(e.RunLength)
		tileEntries++

		if e.TileID < minTileID {
			minTileID = e.TileID
		}
		if e.TileID > maxTileID {
			maxTileID = e.TileID
		}

		if e.Offset+uint64(e.Length) > header.TileDataLength {
			if orderingErr == nil {
				orderingErr = fmt.Errorf("pmtiles: verify: entry %+v lies outside the tile data section", e)
			}
		}

		if header.Clustered && !alreadySeen {
			if e.Offset != currentOffset && orderingErr == nil {
				orderingErr = fmt.Errorf("pmtiles: verify: out-of-order entry %+v in clustered archive", e)
			}
			currentOffset += uint64(e.Length)
		}
	})
	if collectErr != nil {
		return collectErr
	}
	if orderingErr != nil {
		return orderingErr
	}

	if addressedTiles != header.AddressedTilesCount {
		return fmt.Errorf("pmtiles: verify: header AddressedTilesCount=%d but %d tiles addressed", header.AddressedTilesCount, addressedTiles)
	}
	if tileEntries != header.TileEntriesCount {
		return fmt.Errorf("pmtiles: verify: header TileEntriesCount=%d but %d tile entries", header.TileEntriesCount, tileEntries)
	}
	if offsets.GetCardinality() != header.TileContentsCount {
		return fmt.Errorf("pmtiles: verify: header TileContentsCount=%d but %d distinct tile contents", header.TileContentsCount, offsets.GetCardinality())
	}
	if z, _, _ := IDToZxy(minTileID); z != header.MinZoom {
		return fmt.Errorf("pmtiles: verify: header MinZoom=%d does not match minimum tile zoom %d", header.MinZoom, z)
	}
	if z, _, _ := IDToZxy(maxTileID); z != header.MaxZoom {
		return fmt.Errorf("pmtiles: verify: header MaxZoom=%d does not match maximum tile zoom %d", header.MaxZoom, z)
	}
	if header.CenterZoom < header.MinZoom || header.CenterZoom > header.MaxZoom {
		return fmt.Errorf("pmtiles: verify: header CenterZoom=%d not within [MinZoom, MaxZoom]", header.CenterZoom)
	}
	if header.MinLonE7 >= header.MaxLonE7 || header.MinLatE7 >= header.MaxLatE7 {
		return fmt.Errorf("pmtiles: verify: bounds has non-positive area")
	}

	if logger != nil {
		logger.Printf("verify completed in %v", time.Since(start))
	}
	return nil
}
