package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/protomaps/pmtiles-go/httpserver"
	"github.com/protomaps/pmtiles-go/rangereader"
)

// ServeCmd serves every archive found in a directory (or a single
// archive file) over HTTP, by name derived from its filename.
type ServeCmd struct {
	Path          string `arg:"" help:"Directory of .pmtiles archives, or a single archive file."`
	Addr          string `default:":8080" help:"Address to listen on."`
	CORS          string `help:"Access-Control-Allow-Origin value to send. Empty disables CORS headers."`
	PublicURL     string `help:"Base URL advertised in TileJSON responses."`
	BlockSize     uint64 `default:"16384" help:"Byte-range read alignment for the underlying source."`
	CacheEntries  int    `default:"64" help:"Number of decoded byte ranges kept in the in-memory cache."`
	CacheSize     int64  `default:"67108864" help:"Byte budget of the in-memory cache."`
}

func (c *ServeCmd) Run(logger *log.Logger) error {
	dir := c.Path
	if ext := filepath.Ext(dir); ext == ".pmtiles" {
		dir = filepath.Dir(dir)
	}

	opener := func(ctx context.Context, name string) (rangereader.Source, error) {
		path := filepath.Join(dir, name+".pmtiles")
		return rangereader.Open(ctx, path, rangereader.Options{
			BlockSize:          c.BlockSize,
			MemoryCacheEntries: c.CacheEntries,
			MemoryCacheBytes:   c.CacheSize,
		})
	}

	server := httpserver.NewServer(opener, logger, c.CORS, strings.TrimSuffix(c.PublicURL, "/"))
	logger.Printf("serving archives from %s on %s", dir, c.Addr)
	if err := http.ListenAndServe(c.Addr, server.Handler()); err != nil {
		return fmt.Errorf("serving on %s: %w", c.Addr, err)
	}
	return nil
}
