package pmtiles

import "fmt"

// validateZxy reports ErrInvalidTileID if x or y falls outside [0, 2^z)
// for zoom z, the range ZxyToID's Hilbert derivation assumes.
func validateZxy(z uint8, x uint32, y uint32) error {
	side := uint64(1) << z
	if uint64(x) >= side || uint64(y) >= side {
		return fmt.Errorf("pmtiles: tile %d/%d/%d: %w", z, x, y, ErrInvalidTileID)
	}
	return nil
}

// hilbertRotate rotates and flips a quadrant of the curve so that the
// recursive construction lines up with the standard Hilbert d2xy/xy2d
// derivation: see https://en.wikipedia.org/wiki/Hilbert_curve.
func hilbertRotate(n uint64, x, y *uint64, rx, ry uint64) {
	if ry != 0 {
		return
	}
	if rx == 1 {
		*x = n - 1 - *x
		*y = n - 1 - *y
	}
	*x, *y = *y, *x
}

// bit returns 1 if the s-bit of v is set, else 0.
func bit(v, s uint64) uint64 {
	if v&s != 0 {
		return 1
	}
	return 0
}

func hilbertXYOnLevel(z uint8, pos uint64) (uint8, uint32, uint32) {
	side := uint64(1) << z
	rx, ry, t := pos, pos, pos
	var x, y uint64
	for s := uint64(1); s < side; s *= 2 {
		rx = bit(t, 2)
		ry = bit(t^rx, 1)
		hilbertRotate(s, &x, &y, rx, ry)
		x += s * rx
		y += s * ry
		t /= 4
	}
	return z, uint32(x), uint32(y)
}

// ZxyToID converts (Z,X,Y) tile coordinates to a Hilbert curve TileID.
// TileIDs are assigned zoom level by zoom level, so a tile's ID encodes
// both its zoom and its position on the space-filling curve at that
// zoom.
func ZxyToID(z uint8, x uint32, y uint32) uint64 {
	var firstIDAtZoom uint64
	for tz := uint8(0); tz < z; tz++ {
		side := uint64(1) << tz
		firstIDAtZoom += side * side
	}

	var distance uint64
	var rx, ry uint64
	tx, ty := uint64(x), uint64(y)
	for s := (uint64(1) << z) / 2; s > 0; s /= 2 {
		rx = bit(tx, s)
		ry = bit(ty, s)
		distance += s * s * ((3 * rx) ^ ry)
		hilbertRotate(s, &tx, &ty, rx, ry)
	}
	return firstIDAtZoom + distance
}

// IDToZxy converts a Hilbert curve TileID back to (Z,X,Y) tile
// coordinates.
func IDToZxy(id uint64) (uint8, uint32, uint32) {
	var firstIDAtZoom uint64
	var z uint8
	for {
		tilesAtZoom := (uint64(1) << z) * (uint64(1) << z)
		if firstIDAtZoom+tilesAtZoom > id {
			return hilbertXYOnLevel(z, id-firstIDAtZoom)
		}
		firstIDAtZoom += tilesAtZoom
		z++
	}
}

// ParentID finds the TileID of id's parent tile one zoom level up,
// without round-tripping through (Z,X,Y) coordinates.
func ParentID(id uint64) uint64 {
	var firstIDAtZoom, firstIDAtPrevZoom uint64
	var z uint8
	for {
		tilesAtZoom := (uint64(1) << z) * (uint64(1) << z)
		if firstIDAtZoom+tilesAtZoom > id {
			return firstIDAtPrevZoom + (id-firstIDAtZoom)/4
		}
		firstIDAtPrevZoom = firstIDAtZoom
		firstIDAtZoom += tilesAtZoom
		z++
	}
}
