package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/dustin/go-humanize"

	"github.com/protomaps/pmtiles-go/pmtiles"
	"github.com/protomaps/pmtiles-go/rangereader"
)

// InspectCmd prints an archive's header and metadata as JSON, with a
// human-readable byte-count summary on stderr.
type InspectCmd struct {
	Archive string `arg:"" help:"Path or URI of the archive to inspect."`
}

func (c *InspectCmd) Run(logger *log.Logger) error {
	ctx := context.Background()

	source, err := rangereader.Open(ctx, c.Archive, rangereader.Options{})
	if err != nil {
		return fmt.Errorf("opening %q: %w", c.Archive, err)
	}
	defer source.Close()

	reader, err := pmtiles.NewReader(ctx, source, logger, pmtiles.ReaderOptions{})
	if err != nil {
		return fmt.Errorf("reading header of %q: %w", c.Archive, err)
	}
	defer reader.Close()

	header := reader.Header()
	metadata, err := reader.GetMetadata(ctx)
	if err != nil {
		return fmt.Errorf("reading metadata of %q: %w", c.Archive, err)
	}

	out := struct {
		Header   pmtiles.HeaderJson     `json:"header"`
		Metadata map[string]interface{} `json:"metadata"`
	}{
		Header:   pmtiles.HeaderSummary(header),
		Metadata: metadata,
	}
	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding inspect output: %w", err)
	}
	fmt.Println(string(encoded))

	logger.Printf("tiles: %s addressed, %s unique contents, %s tile data, zoom %d-%d",
		humanize.Comma(int64(header.AddressedTilesCount)),
		humanize.Comma(int64(header.TileContentsCount)),
		humanize.Bytes(header.TileDataLength),
		header.MinZoom, header.MaxZoom)

	return nil
}
