package mvt

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
	"github.com/paulmach/orb/simplify"
)

// InputFeature is a feature in WGS84 lon/lat space, the unit LayerBuilder
// accepts before running it through the tile-generation pipeline.
type InputFeature struct {
	ID         uint64
	Geometry   orb.Geometry
	Properties map[string]interface{}
}

// LayerBuilder assembles one tile's Layer from WGS84 input features by
// running each through simplify, clip, and tile-space projection. It
// mirrors the pipeline stages of the ecosystem's own GeoJSON-to-MVT
// generators (simplify in degree space, clip against the tile bound in
// degree space, then project into tile-pixel space), rather than
// projecting first and clipping in pixel space.
type LayerBuilder struct {
	Name   string
	Extent uint32

	// SimplifyEpsilon is the Douglas-Peucker tolerance, in degrees,
	// applied before clipping. Zero disables simplification.
	SimplifyEpsilon float64

	// MinPixelArea and MinPixelLength drop polygon and line features
	// that, after projection into tile-pixel space, are too small to
	// render meaningfully; both zero disables the filter.
	MinPixelArea   float64
	MinPixelLength float64

	// AutoScale divides projected coordinates by Extent/256 before
	// packing them into the command stream, matching consumers built
	// against the legacy 256-unit tile coordinate space instead of the
	// 4096-unit default. Disabled unless explicitly set; decode never
	// applies the inverse implicitly.
	AutoScale bool

	features []InputFeature
}

// NewLayerBuilder returns a LayerBuilder for the named layer using the
// package's default extent.
func NewLayerBuilder(name string) *LayerBuilder {
	return &LayerBuilder{Name: name, Extent: DefaultExtent}
}

// AddFeature queues a WGS84 feature for inclusion in the built layer.
// Geometry collections are exploded into one queued feature per member
// geometry, each carrying the same ID and properties.
func (b *LayerBuilder) AddFeature(f InputFeature) {
	for _, g := range explode(f.Geometry) {
		b.features = append(b.features, InputFeature{ID: f.ID, Geometry: g, Properties: f.Properties})
	}
}

func explode(g orb.Geometry) []orb.Geometry {
	if collection, ok := g.(orb.Collection); ok {
		var out []orb.Geometry
		for _, member := range collection {
			out = append(out, explode(member)...)
		}
		return out
	}
	return []orb.Geometry{g}
}

// Build runs the pipeline (simplify, clip, project, size-filter) against
// tile and returns the resulting Layer. A Layer with no features after
// filtering is still returned, with an empty Features slice, so callers
// can distinguish "nothing in this tile" from an encode error.
func (b *LayerBuilder) Build(tile maptile.Tile) (*Layer, error) {
	extent := b.Extent
	if extent == 0 {
		extent = DefaultExtent
	}
	tileBound := tile.Bound()

	layer := &Layer{Name: b.Name, Version: DefaultVersion, Extent: extent}

	var simplifier simplify.Simplifier
	if b.SimplifyEpsilon > 0 {
		simplifier = simplify.DouglasPeucker(b.SimplifyEpsilon)
	}

	for _, f := range b.features {
		if !f.Geometry.Bound().Intersects(tileBound) {
			continue
		}

		geom := f.Geometry
		if simplifier != nil {
			geom = simplifier.Simplify(geom)
		}

		geom = clip.Geometry(tileBound, geom)
		if geom == nil || isEmptyGeometry(geom) {
			continue
		}

		geom = projectToTile(geom, tile, extent)
		if b.AutoScale {
			geom = scaleGeometry(geom, 256/float64(extent))
		}
		if !passesSizeFilter(geom, b.MinPixelArea, b.MinPixelLength) {
			continue
		}

		layer.Features = append(layer.Features, NewFeature(f.ID, geom, f.Properties))
	}

	return layer, nil
}

// projectToTile maps WGS84 lon/lat geometry into the tile's [0, extent]
// pixel space: project to spherical Mercator, then scale linearly within
// the tile's Mercator bound, flipping Y since Mercator northing increases
// with latitude while tile pixel rows increase southward.
func projectToTile(g orb.Geometry, tile maptile.Tile, extent uint32) orb.Geometry {
	merc := project.Geometry(g, project.WGS84.ToMercator)

	bound := tile.Bound()
	mercMin := project.Point(bound.Min, project.WGS84.ToMercator)
	mercMax := project.Point(bound.Max, project.WGS84.ToMercator)
	tileBoundMerc := orb.Bound{Min: mercMin, Max: mercMax}

	dx := tileBoundMerc.Max[0] - tileBoundMerc.Min[0]
	dy := tileBoundMerc.Max[1] - tileBoundMerc.Min[1]

	return project.Geometry(merc, func(p orb.Point) orb.Point {
		var px, py float64
		if dx != 0 {
			px = (p[0] - tileBoundMerc.Min[0]) / dx * float64(extent)
		}
		if dy != 0 {
			py = float64(extent) - (p[1]-tileBoundMerc.Min[1])/dy*float64(extent)
		}
		return orb.Point{px, py}
	})
}

func scaleGeometry(g orb.Geometry, factor float64) orb.Geometry {
	return project.Geometry(g, func(p orb.Point) orb.Point {
		return orb.Point{p[0] * factor, p[1] * factor}
	})
}

func isEmptyGeometry(g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.MultiPoint:
		return len(v) == 0
	case orb.LineString:
		return len(v) < 2
	case orb.MultiLineString:
		return len(v) == 0
	case orb.Polygon:
		return len(v) == 0
	case orb.MultiPolygon:
		return len(v) == 0
	case orb.Collection:
		return len(v) == 0
	default:
		return false
	}
}

// passesSizeFilter drops polygons with too little projected pixel area
// and lines with too little projected pixel length; points always pass.
// Area and length are computed in tile-pixel space by orb/planar, the
// same package the teacher's bitmap.go reaches for on projected geometry.
func passesSizeFilter(g orb.Geometry, minArea, minLength float64) bool {
	switch v := g.(type) {
	case orb.Polygon:
		return minArea <= 0 || math.Abs(planar.Area(v)) >= minArea
	case orb.MultiPolygon:
		if minArea <= 0 {
			return true
		}
		var total float64
		for _, p := range v {
			total += math.Abs(planar.Area(p))
		}
		return total >= minArea
	case orb.LineString:
		return minLength <= 0 || planar.Length(v) >= minLength
	case orb.MultiLineString:
		if minLength <= 0 {
			return true
		}
		var total float64
		for _, ls := range v {
			total += planar.Length(ls)
		}
		return total >= minLength
	default:
		return true
	}
}

// EncodeLayersForTile is a convenience wrapper building and encoding
// several layers for the same tile in one call.
func EncodeLayersForTile(tile maptile.Tile, builders []*LayerBuilder) ([]byte, error) {
	layers := make([]*Layer, 0, len(builders))
	for _, b := range builders {
		layer, err := b.Build(tile)
		if err != nil {
			return nil, fmt.Errorf("mvt: building layer %q: %w", b.Name, err)
		}
		if len(layer.Features) == 0 {
			continue
		}
		layers = append(layers, layer)
	}
	return EncodeTile(layers)
}
