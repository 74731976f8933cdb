package mvt

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Command IDs in the MVT geometry command stream.
const (
	cmdMoveTo    = 1
	cmdLineTo    = 2
	cmdClosePath = 7
)

func packCommand(id uint32, count uint32) uint32 {
	return (id & 0x7) | (count << 3)
}

func unpackCommand(cmd uint32) (id uint32, count uint32) {
	return cmd & 0x7, cmd >> 3
}

func zigzagEncode(v int64) uint32 {
	return uint32((v << 1) ^ (v >> 63))
}

func zigzagDecode(v uint32) int64 {
	return int64((v >> 1)) ^ -int64(v&1)
}

// encodeGeometry packs already tile-pixel-projected geometry (coordinates
// expected in [0, extent]) into the MVT command stream, snapping each
// coordinate to the nearest integer.
func encodeGeometry(geom orb.Geometry) ([]uint32, GeomType, error) {
	switch g := geom.(type) {
	case orb.Point:
		return encodeMultiPoint(orb.MultiPoint{g}), GeomTypePoint, nil
	case orb.MultiPoint:
		return encodeMultiPoint(g), GeomTypePoint, nil
	case orb.LineString:
		return encodeMultiLine(orb.MultiLineString{g}), GeomTypeLine, nil
	case orb.MultiLineString:
		return encodeMultiLine(g), GeomTypeLine, nil
	case orb.Polygon:
		return encodeMultiPolygon(orb.MultiPolygon{g}), GeomTypePolygon, nil
	case orb.MultiPolygon:
		return encodeMultiPolygon(g), GeomTypePolygon, nil
	default:
		return nil, GeomTypeUnknown, fmt.Errorf("mvt: unsupported geometry type %T", geom)
	}
}

func snap(v float64) int64 {
	return int64(math.Round(v))
}

func encodeMultiPoint(mp orb.MultiPoint) []uint32 {
	if len(mp) == 0 {
		return nil
	}
	commands := []uint32{packCommand(cmdMoveTo, uint32(len(mp)))}
	var x, y int64
	for _, p := range mp {
		nx, ny := snap(p[0]), snap(p[1])
		commands = append(commands, zigzagEncode(nx-x), zigzagEncode(ny-y))
		x, y = nx, ny
	}
	return commands
}

func encodeMultiLine(mls orb.MultiLineString) []uint32 {
	var commands []uint32
	var x, y int64
	for _, ls := range mls {
		if len(ls) < 2 {
			continue
		}
		commands = append(commands, packCommand(cmdMoveTo, 1))
		nx, ny := snap(ls[0][0]), snap(ls[0][1])
		commands = append(commands, zigzagEncode(nx-x), zigzagEncode(ny-y))
		x, y = nx, ny

		commands = append(commands, packCommand(cmdLineTo, uint32(len(ls)-1)))
		for _, p := range ls[1:] {
			nx, ny := snap(p[0]), snap(p[1])
			commands = append(commands, zigzagEncode(nx-x), zigzagEncode(ny-y))
			x, y = nx, ny
		}
	}
	return commands
}

func encodeMultiPolygon(mp orb.MultiPolygon) []uint32 {
	var commands []uint32
	var x, y int64
	for _, polygon := range mp {
		for _, ring := range polygon {
			pts := ring
			// orb closes rings by repeating the first point as the last;
			// the command stream implies closure via ClosePath instead.
			if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
				pts = pts[:len(pts)-1]
			}
			if len(pts) < 3 {
				continue
			}
			commands = append(commands, packCommand(cmdMoveTo, 1))
			nx, ny := snap(pts[0][0]), snap(pts[0][1])
			commands = append(commands, zigzagEncode(nx-x), zigzagEncode(ny-y))
			x, y = nx, ny

			commands = append(commands, packCommand(cmdLineTo, uint32(len(pts)-1)))
			for _, p := range pts[1:] {
				nx, ny := snap(p[0]), snap(p[1])
				commands = append(commands, zigzagEncode(nx-x), zigzagEncode(ny-y))
				x, y = nx, ny
			}
			commands = append(commands, packCommand(cmdClosePath, 1))
		}
	}
	return commands
}

// decodeGeometry parses an MVT command stream back into tile-pixel-space
// orb geometry (coordinates in [0, extent], not yet projected to
// lon/lat). It collapses a single-part Multi* result to the singular
// type, matching how most MVT consumers expose single-ring/single-line
// features.
func decodeGeometry(geomType GeomType, commands []uint32) (orb.Geometry, error) {
	switch geomType {
	case GeomTypePoint:
		mp, err := decodePoints(commands)
		if err != nil {
			return nil, err
		}
		if len(mp) == 1 {
			return mp[0], nil
		}
		return mp, nil
	case GeomTypeLine:
		mls, err := decodeLines(commands)
		if err != nil {
			return nil, err
		}
		if len(mls) == 1 {
			return mls[0], nil
		}
		return mls, nil
	case GeomTypePolygon:
		mpoly, err := decodePolygons(commands)
		if err != nil {
			return nil, err
		}
		if len(mpoly) == 1 {
			return mpoly[0], nil
		}
		return mpoly, nil
	default:
		return nil, fmt.Errorf("mvt: unknown geometry type %d", geomType)
	}
}

func decodePoints(commands []uint32) (orb.MultiPoint, error) {
	var mp orb.MultiPoint
	var x, y int64
	i := 0
	for i < len(commands) {
		id, count := unpackCommand(commands[i])
		i++
		if id != cmdMoveTo {
			return nil, fmt.Errorf("mvt: expected MoveTo in point geometry, got command %d", id)
		}
		for n := uint32(0); n < count; n++ {
			if i+1 >= len(commands) {
				return nil, fmt.Errorf("mvt: truncated point command stream")
			}
			x += zigzagDecode(commands[i])
			y += zigzagDecode(commands[i+1])
			i += 2
			mp = append(mp, orb.Point{float64(x), float64(y)})
		}
	}
	return mp, nil
}

func decodeLines(commands []uint32) (orb.MultiLineString, error) {
	var mls orb.MultiLineString
	var x, y int64
	i := 0
	for i < len(commands) {
		id, count := unpackCommand(commands[i])
		i++
		if id != cmdMoveTo || count != 1 {
			return nil, fmt.Errorf("mvt: expected single MoveTo at line start, got command %d count %d", id, count)
		}
		if i+1 >= len(commands) {
			return nil, fmt.Errorf("mvt: truncated line command stream")
		}
		x += zigzagDecode(commands[i])
		y += zigzagDecode(commands[i+1])
		i += 2
		line := orb.LineString{{float64(x), float64(y)}}

		if i >= len(commands) {
			mls = append(mls, line)
			break
		}
		id, count = unpackCommand(commands[i])
		if id != cmdLineTo {
			mls = append(mls, line)
			continue
		}
		i++
		for n := uint32(0); n < count; n++ {
			if i+1 >= len(commands) {
				return nil, fmt.Errorf("mvt: truncated line command stream")
			}
			x += zigzagDecode(commands[i])
			y += zigzagDecode(commands[i+1])
			i += 2
			line = append(line, orb.Point{float64(x), float64(y)})
		}
		mls = append(mls, line)
	}
	return mls, nil
}

func decodePolygons(commands []uint32) (orb.MultiPolygon, error) {
	var result orb.MultiPolygon
	var current orb.Polygon
	var x, y int64
	i := 0
	for i < len(commands) {
		id, count := unpackCommand(commands[i])
		i++
		switch id {
		case cmdMoveTo:
			if count != 1 || i+1 >= len(commands) {
				return nil, fmt.Errorf("mvt: malformed MoveTo in polygon geometry")
			}
			x += zigzagDecode(commands[i])
			y += zigzagDecode(commands[i+1])
			i += 2
			current = append(current, orb.Ring{{float64(x), float64(y)}})
		case cmdLineTo:
			if len(current) == 0 {
				return nil, fmt.Errorf("mvt: LineTo before any MoveTo in polygon geometry")
			}
			ring := &current[len(current)-1]
			for n := uint32(0); n < count; n++ {
				if i+1 >= len(commands) {
					return nil, fmt.Errorf("mvt: truncated polygon command stream")
				}
				x += zigzagDecode(commands[i])
				y += zigzagDecode(commands[i+1])
				i += 2
				*ring = append(*ring, orb.Point{float64(x), float64(y)})
			}
		case cmdClosePath:
			if len(current) == 0 {
				return nil, fmt.Errorf("mvt: ClosePath before any MoveTo in polygon geometry")
			}
			ring := &current[len(current)-1]
			if len(*ring) > 0 {
				*ring = append(*ring, (*ring)[0])
			}
			// An exterior ring (see ringIsExterior for its winding) that is
			// not the very first ring starts a new polygon: everything
			// accumulated so far becomes a completed polygon, and this
			// ring seeds the next one.
			if len(current) > 1 && ringIsExterior(*ring) {
				finished := current[:len(current)-1]
				result = append(result, finished)
				current = orb.Polygon{*ring}
			}
		default:
			return nil, fmt.Errorf("mvt: unexpected command %d in polygon geometry", id)
		}
	}
	if len(current) > 0 {
		result = append(result, current)
	}
	return result, nil
}

// ringIsExterior reports whether ring is an exterior ring: one that winds
// counter-clockwise as drawn in the tile's Y-down pixel space (clockwise
// when plotted with Y pointing up). Holes wind the other way.
func ringIsExterior(ring orb.Ring) bool {
	var sum float64
	for i := 0; i < len(ring)-1; i++ {
		p1, p2 := ring[i], ring[i+1]
		sum += (p2[0] - p1[0]) * (p2[1] + p1[1])
	}
	return sum >= 0
}
