package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/protomaps/pmtiles-go/pmtiles"
	"github.com/protomaps/pmtiles-go/rangereader"
	"github.com/protomaps/pmtiles-go/tilematrix"
)

// GetTileCmd fetches one tile's raw (still compressed, if the archive is
// compressed) bytes and writes them to stdout.
type GetTileCmd struct {
	Archive  string `arg:"" help:"Path or URI of the archive to read."`
	Z        uint8  `arg:"" help:"Zoom level."`
	X        uint32 `arg:"" help:"Tile column."`
	Y        uint32 `arg:"" help:"Tile row."`
	FlippedY bool   `help:"Treat Y as a TMS (south-up) row instead of XYZ (north-up), and flip it before the lookup."`
}

func (c *GetTileCmd) Run(logger *log.Logger) error {
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

	z, x, y := c.Z, c.X, c.Y
	if c.FlippedY {
		flipped := tilematrix.FlipY(tilematrix.Zxy{Z: z, X: x, Y: y})
		z, x, y = flipped.Z, flipped.X, flipped.Y
	}

	data, found, err := reader.GetTile(ctx, z, x, y)
	if err != nil {
		return fmt.Errorf("fetching tile %d/%d/%d: %w", z, x, y, err)
	}
	if !found {
		return fmt.Errorf("tile %d/%d/%d: %w", z, x, y, rangereader.ErrObjectNotFound)
	}

	_, err = os.Stdout.Write(data)
	return err
}
