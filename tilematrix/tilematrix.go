// Package tilematrix provides tile pyramid helpers that sit above the
// archive engine: tile coordinate ranges (contiguous and sparse),
// conversions to and from orb/maptile tiles, region coverage, and the
// axis-origin transform between XYZ (origin top-left) and TMS (origin
// bottom-left) tile addressing. None of this is applied implicitly by pmtiles.Reader or
// pmtiles.Writer; callers opt in explicitly.
package tilematrix

import (
	"github.com/paulmach/orb/maptile"

	"github.com/protomaps/pmtiles-go/pmtiles"
)

// Zxy is the (zoom, x, y) tile coordinate; an alias of pmtiles.Zxy so
// values round-trip between the two packages without conversion.
type Zxy = pmtiles.Zxy

// ToMaptile converts a Zxy into an orb/maptile.Tile for use with orb's
// bound/center/sibling helpers.
func ToMaptile(z Zxy) maptile.Tile {
	return maptile.New(z.X, z.Y, maptile.Zoom(z.Z))
}

// FromMaptile converts an orb/maptile.Tile back into a Zxy.
func FromMaptile(t maptile.Tile) Zxy {
	return Zxy{Z: uint8(t.Z), X: t.X, Y: t.Y}
}

// FlipY converts between XYZ (origin top-left, Y increases southward)
// and TMS (origin bottom-left, Y increases northward) addressing at the
// same zoom level. The transform is its own inverse.
func FlipY(z Zxy) Zxy {
	maxIndex := uint32(1)<<z.Z - 1
	return Zxy{Z: z.Z, X: z.X, Y: maxIndex - z.Y}
}

// Matches reports whether candidate falls within the box [minX,maxX] x
// [minY,maxY] at zoom z, accounting for candidate being at a coarser or
// finer zoom than z (an ancestor or descendant tile covering part of
// the box counts as a match).
func Matches(z uint8, minX, minY, maxX, maxY uint32, candidate Zxy) bool {
	switch {
	case candidate.Z < z:
		levels := z - candidate.Z
		minXOnLevel := candidate.X << levels
		minYOnLevel := candidate.Y << levels
		maxXOnLevel := ((candidate.X + 1) << levels) - 1
		maxYOnLevel := ((candidate.Y + 1) << levels) - 1
		return !(maxXOnLevel < minX || maxYOnLevel < minY || minXOnLevel > maxX || minYOnLevel > maxY)
	case candidate.Z == z:
		return candidate.X >= minX && candidate.Y >= minY && candidate.X <= maxX && candidate.Y <= maxY
	default:
		levels := candidate.Z - z
		ancestorX := candidate.X >> levels
		ancestorY := candidate.Y >> levels
		return ancestorX >= minX && ancestorY >= minY && ancestorX <= maxX && ancestorY <= maxY
	}
}
