// Package mvt encodes and decodes Mapbox Vector Tile protobuf payloads:
// the per-layer command stream of MoveTo/LineTo/ClosePath operations,
// the ZigZag-varint coordinate deltas, and the ordered key/value
// attribute dedup tables every feature's tags reference by index.
//
// Geometry is represented with github.com/paulmach/orb, the same model
// used by the rest of the tile-processing ecosystem this package draws
// from, so callers can hand this package geometry straight out of
// orb/geojson or any other orb-producing source.
package mvt

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"
)

// GeomType is the wire-level geometry type tag MVT features carry.
type GeomType uint32

const (
	GeomTypeUnknown GeomType = 0
	GeomTypePoint   GeomType = 1
	GeomTypeLine    GeomType = 2
	GeomTypePolygon GeomType = 3
)

// geomTypeOf maps an orb.Geometry to its MVT wire type.
func geomTypeOf(g orb.Geometry) GeomType {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return GeomTypePoint
	case orb.LineString, orb.MultiLineString:
		return GeomTypeLine
	case orb.Polygon, orb.MultiPolygon:
		return GeomTypePolygon
	default:
		return GeomTypeUnknown
	}
}

// GeometryTransform rewrites a feature's decoded geometry, for example to
// reproject tile-pixel coordinates or to simplify a geometry before it is
// handed to a caller. A Decoder's transform runs once per feature, at the
// point that feature's geometry is first decoded.
type GeometryTransform func(orb.Geometry) orb.Geometry

// rawFeature holds a feature's undecoded command stream and tag indices,
// kept around until the feature's Geometry or Properties is first asked
// for.
type rawFeature struct {
	tags      []uint32
	geomType  GeomType
	commands  []uint32
	keys      []string
	values    []interface{}
	transform GeometryTransform
}

// Feature is one vector tile feature, either built directly for encoding
// or produced by decoding a tile. A decoded feature's geometry and
// properties are not parsed out of the command stream and tag table
// until Geometry or Properties is first called; the result is cached, so
// repeated calls do no further work.
type Feature struct {
	ID uint64

	once       sync.Once
	decodeErr  error
	geometry   orb.Geometry
	properties map[string]interface{}
	raw        *rawFeature
}

// NewFeature builds a fully materialized feature for encoding; geometry
// and properties are returned as given, with no lazy decode involved.
func NewFeature(id uint64, geometry orb.Geometry, properties map[string]interface{}) *Feature {
	return &Feature{ID: id, geometry: geometry, properties: properties}
}

// Geometry returns the feature's geometry, decoding and running any
// transform on first call and returning the cached result thereafter.
func (f *Feature) Geometry() (orb.Geometry, error) {
	if err := f.decode(); err != nil {
		return nil, err
	}
	return f.geometry, nil
}

// Properties returns the feature's attribute map, decoding on first call
// and returning the cached result thereafter.
func (f *Feature) Properties() (map[string]interface{}, error) {
	if err := f.decode(); err != nil {
		return nil, err
	}
	return f.properties, nil
}

func (f *Feature) decode() error {
	f.once.Do(func() {
		if f.raw == nil {
			return
		}
		raw := f.raw
		f.raw = nil

		props := make(map[string]interface{}, len(raw.tags)/2)
		for i := 0; i+1 < len(raw.tags); i += 2 {
			keyIdx, valIdx := int(raw.tags[i]), int(raw.tags[i+1])
			if keyIdx < 0 || keyIdx >= len(raw.keys) || valIdx < 0 || valIdx >= len(raw.values) {
				f.decodeErr = fmt.Errorf("mvt: tag index out of range (key=%d value=%d)", keyIdx, valIdx)
				return
			}
			props[raw.keys[keyIdx]] = raw.values[valIdx]
		}

		geom, err := decodeGeometry(raw.geomType, raw.commands)
		if err != nil {
			f.decodeErr = err
			return
		}
		if raw.transform != nil {
			geom = raw.transform(geom)
		}

		f.geometry = geom
		f.properties = props
	})
	return f.decodeErr
}

// Layer is a complete decoded vector tile layer, or the input to
// EncodeLayer building one.
type Layer struct {
	Name     string
	Version  uint32
	Extent   uint32
	Features []*Feature
}

// DefaultExtent is the coordinate space (in tile-local units) a layer's
// geometry is encoded against absent an explicit Extent; 4096 is the de
// facto standard used by nearly every MVT producer and consumer.
const DefaultExtent = 4096

// DefaultVersion is the MVT spec version this package encodes.
const DefaultVersion = 2
