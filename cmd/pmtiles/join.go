package main

import (
	"fmt"
	"log"

	"github.com/protomaps/pmtiles-go/pmtiles"
)

// JoinCmd concatenates disjoint, clustered input archives into a single
// output archive with one merged directory.
type JoinCmd struct {
	Inputs []string `arg:"" help:"Paths of the archives to join, in any order."`
	Output string   `help:"Path of the joined output archive." required:""`
}

func (c *JoinCmd) Run(logger *log.Logger) error {
	if len(c.Inputs) < 2 {
		return fmt.Errorf("join requires at least two input archives")
	}
	if err := pmtiles.Join(c.Inputs, c.Output); err != nil {
		return fmt.Errorf("joining %d archives into %q: %w", len(c.Inputs), c.Output, err)
	}
	logger.Printf("joined %d archives into %s", len(c.Inputs), c.Output)
	return nil
}
