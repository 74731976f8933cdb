package pmtiles

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/protomaps/pmtiles-go/rangereader"
)

// Cluster rewrites an unclustered archive read from source into a
// clustered one at outputPath: tile bodies are read out in ascending
// Hilbert tile ID order and re-added through a Writer, which rebuilds
// the directory tree and, if deduplicate is set, re-resolves duplicate
// tile bodies to a single offset.
func Cluster(ctx context.Context, logger *log.Logger, source rangereader.Source, outputPath string, deduplicate bool) error {
	headerBytes, err := source.ReadRange(ctx, 0, HeaderV3LenBytes)
	if err != nil {
		return fmt.Errorf("pmtiles: cluster: reading header: %w", err)
	}
	header, err := DeserializeHeader(headerBytes)
	if err != nil {
		return fmt.Errorf("pmtiles: cluster: %w", err)
	}

	metadataBytes, err := source.ReadRange(ctx, header.MetadataOffset, uint32(header.MetadataLength))
	if err != nil {
		return fmt.Errorf("pmtiles: cluster: reading metadata: %w", err)
	}
	metadata, err := DeserializeMetadata(bytes.NewReader(metadataBytes), header.InternalCompression)
	if err != nil {
		return fmt.Errorf("pmtiles: cluster: decoding metadata: %w", err)
	}

	w, err := NewWriter(logger, WriterOptions{
		TileType:            header.TileType,
		TileCompression:     header.TileCompression,
		InternalCompression: header.InternalCompression,
		Deduplicate:         deduplicate,
	})
	if err != nil {
		return fmt.Errorf("pmtiles: cluster: %w", err)
	}
	for k, v := range metadata {
		w.SetMetadata(k, v)
	}

	var walkErr error
	err = IterateEntries(header,
		func(offset uint64, length uint64) ([]byte, error) {
			return source.ReadRange(ctx, offset, uint32(length))
		},
		func(e EntryV3) {
			if walkErr != nil {
				return
			}
			data, err := source.ReadRange(ctx, header.TileDataOffset+e.Offset, e.Length)
			if err != nil {
				walkErr = fmt.Errorf("pmtiles: cluster: reading tile %d: %w", e.TileID, err)
				return
			}
			for i := uint32(0); i < e.RunLength; i++ {
				if err := w.AddTileByID(e.TileID+uint64(i), data); err != nil {
					walkErr = fmt.Errorf("pmtiles: cluster: %w", err)
					return
				}
			}
		})
	if err != nil {
		return fmt.Errorf("pmtiles: cluster: walking directory: %w", err)
	}
	if walkErr != nil {
		return walkErr
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("pmtiles: cluster: creating output: %w", err)
	}
	defer out.Close()

	newHeader := header
	newHeader.MinZoom, newHeader.MaxZoom = 0, 0
	if err := w.Complete(out, newHeader, nil); err != nil {
		return fmt.Errorf("pmtiles: cluster: %w", err)
	}
	return nil
}
