package mvt

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTileRoundTrip(t *testing.T) {
	layers := []*Layer{
		{
			Name:   "water",
			Extent: 4096,
			Features: []*Feature{
				NewFeature(1, orb.Polygon{orb.Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}}}, nil),
			},
		},
		{
			Name:   "roads",
			Extent: 4096,
			Features: []*Feature{
				NewFeature(2, orb.LineString{{0, 0}, {100, 100}}, map[string]interface{}{"class": "primary"}),
			},
		},
	}

	data, err := EncodeTile(layers)
	require.NoError(t, err)

	decoded, err := DecodeTile(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, "water", decoded[0].Name)
	assert.Equal(t, "roads", decoded[1].Name)

	props, err := decoded[1].Features[0].Properties()
	require.NoError(t, err)
	assert.Equal(t, "primary", props["class"])
}

func TestDecoderLayersDoesNotMaterializeFeatures(t *testing.T) {
	layers := []*Layer{
		{Name: "buildings", Version: 2, Extent: 4096, Features: []*Feature{
			NewFeature(1, orb.Point{1, 1}, nil),
		}},
	}
	data, err := EncodeTile(layers)
	require.NoError(t, err)

	d := NewDecoder(data)
	infos, err := d.Layers()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "buildings", infos[0].Name)
	assert.Equal(t, uint32(2), infos[0].Version)
	assert.Equal(t, uint32(4096), infos[0].Extent)

	layer, err := infos[0].Decode()
	require.NoError(t, err)
	require.Len(t, layer.Features, 1)
}

func TestDecoderLayerByName(t *testing.T) {
	data, err := EncodeTile([]*Layer{
		{Name: "a", Features: []*Feature{NewFeature(1, orb.Point{0, 0}, nil)}},
		{Name: "b", Features: []*Feature{NewFeature(2, orb.Point{1, 1}, nil)}},
	})
	require.NoError(t, err)

	d := NewDecoder(data)
	layer, ok, err := d.Layer("b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", layer.Name)

	_, ok, err = d.Layer("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecoderGeometryTransformAppliesLazily(t *testing.T) {
	data, err := EncodeTile([]*Layer{
		{Name: "points", Extent: 4096, Features: []*Feature{
			NewFeature(1, orb.Point{10, 20}, nil),
		}},
	})
	require.NoError(t, err)

	var transformCalls int
	offset := func(g orb.Geometry) orb.Geometry {
		transformCalls++
		p := g.(orb.Point)
		return orb.Point{p[0] + 1, p[1] + 1}
	}

	d := NewDecoder(data, WithGeometryTransform(offset))
	layer, ok, err := d.Layer("points")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, layer.Features, 1)

	assert.Equal(t, 0, transformCalls, "transform must not run until Geometry is accessed")

	geom, err := layer.Features[0].Geometry()
	require.NoError(t, err)
	assert.Equal(t, orb.Point{11, 21}, geom)
	assert.Equal(t, 1, transformCalls)

	_, err = layer.Features[0].Geometry()
	require.NoError(t, err)
	assert.Equal(t, 1, transformCalls, "second access must be memoized, not re-decoded")
}
