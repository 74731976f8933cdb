// Command pmtiles inspects, fetches tiles from, joins, and serves
// PMTiles v3 archives, local or remote.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/alecthomas/kong"
)

// exit codes per the CLI surface's contract: 0 ok, 1 not-found/invalid,
// 2 usage, 3 cancelled.
const (
	exitOK        = 0
	exitNotFound  = 1
	exitUsage     = 2
	exitCancelled = 3
)

var cli struct {
	Inspect InspectCmd `cmd:"" help:"Print an archive's header and metadata."`
	GetTile GetTileCmd `cmd:"get-tile" help:"Fetch a single tile and write it to stdout."`
	Join    JoinCmd    `cmd:"" help:"Concatenate disjoint, clustered archives into one."`
	Serve   ServeCmd   `cmd:"" help:"Serve one or more archives over HTTP."`
}

func main() {
	parser, err := kong.New(&cli, kong.Name("pmtiles"), kong.Description("Inspect and serve PMTiles v3 archives."))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}

	ctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}

	logger := log.New(os.Stderr, "", 0)
	if err := ctx.Run(logger); err != nil {
		fmt.Fprintln(os.Stderr, "pmtiles:", err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	switch {
	case isCancelled(err):
		return exitCancelled
	case isNotFoundOrInvalid(err):
		return exitNotFound
	default:
		return exitUsage
	}
}
