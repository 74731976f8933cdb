package tilematrix

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"
)

// ParseBboxRegion parses a "minLon,minLat,maxLon,maxLat" string into a
// one-ring MultiPolygon, grounded on the teacher's region.go BboxRegion.
func ParseBboxRegion(bbox string) (orb.MultiPolygon, error) {
	parts := strings.Split(bbox, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("tilematrix: bbox %q must have 4 comma-separated fields", bbox)
	}
	coords := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("tilematrix: bbox field %d: %w", i, err)
		}
		coords[i] = v
	}
	minLon, minLat, maxLon, maxLat := coords[0], coords[1], coords[2], coords[3]
	ring := orb.Ring{
		{minLon, maxLat}, {maxLon, maxLat}, {maxLon, minLat}, {minLon, minLat}, {minLon, maxLat},
	}
	return orb.MultiPolygon{{ring}}, nil
}

// ParseGeoJSONRegion extracts a MultiPolygon region from GeoJSON bytes,
// accepting a FeatureCollection, a single Feature, or a bare geometry,
// grounded on the teacher's region.go UnmarshalRegion.
func ParseGeoJSONRegion(data []byte) (orb.MultiPolygon, error) {
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil {
		var polys []orb.Polygon
		for _, f := range fc.Features {
			switch v := f.Geometry.(type) {
			case orb.Polygon:
				polys = append(polys, v)
			case orb.MultiPolygon:
				polys = append(polys, v...)
			}
		}
		if len(polys) > 0 {
			return polys, nil
		}
	}

	if f, err := geojson.UnmarshalFeature(data); err == nil {
		switch v := f.Geometry.(type) {
		case orb.Polygon:
			return orb.MultiPolygon{v}, nil
		case orb.MultiPolygon:
			return v, nil
		}
	}

	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("tilematrix: no polygon geometry found: %w", err)
	}
	switch v := g.Geometry().(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}, nil
	case orb.MultiPolygon:
		return v, nil
	}
	return nil, fmt.Errorf("tilematrix: no polygon geometry found")
}

// CoverRegion returns the sparse set of tiles at z that intersect region,
// using orb/maptile/tilecover the way the teacher's bitmap.go computes a
// region's tile coverage before a bulk extract or delete.
func CoverRegion(region orb.MultiPolygon, z maptile.Zoom) (*SparseSet, error) {
	tiles, err := tilecover.Geometry(region, z)
	if err != nil {
		return nil, fmt.Errorf("tilematrix: covering region: %w", err)
	}
	set := NewSparseSet()
	for t := range tiles {
		set.Add(FromMaptile(t))
	}
	return set, nil
}
