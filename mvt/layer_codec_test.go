package mvt

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeLayerRoundTrip(t *testing.T) {
	layer := &Layer{
		Name:    "roads",
		Version: 2,
		Extent:  4096,
		Features: []*Feature{
			NewFeature(1, orb.LineString{{0, 0}, {100, 100}}, map[string]interface{}{
				"name":   "Main St",
				"lanes":  int64(2),
				"oneway": true,
			}),
			NewFeature(2, orb.Point{50, 50}, map[string]interface{}{
				"name": "Stop sign",
			}),
		},
	}

	data, err := EncodeLayer(layer)
	require.NoError(t, err)

	decoded, err := decodeLayerBytes(data, nil)
	require.NoError(t, err)

	assert.Equal(t, layer.Name, decoded.Name)
	assert.Equal(t, layer.Version, decoded.Version)
	assert.Equal(t, layer.Extent, decoded.Extent)
	require.Len(t, decoded.Features, 2)

	wantGeom0, err := layer.Features[0].Geometry()
	require.NoError(t, err)
	gotGeom0, err := decoded.Features[0].Geometry()
	require.NoError(t, err)
	assert.Equal(t, layer.Features[0].ID, decoded.Features[0].ID)
	assert.Equal(t, wantGeom0, gotGeom0)

	gotProps0, err := decoded.Features[0].Properties()
	require.NoError(t, err)
	assert.Equal(t, "Main St", gotProps0["name"])
	assert.Equal(t, int64(2), gotProps0["lanes"])
	assert.Equal(t, true, gotProps0["oneway"])

	wantGeom1, err := layer.Features[1].Geometry()
	require.NoError(t, err)
	gotGeom1, err := decoded.Features[1].Geometry()
	require.NoError(t, err)
	assert.Equal(t, wantGeom1, gotGeom1)

	gotProps1, err := decoded.Features[1].Properties()
	require.NoError(t, err)
	assert.Equal(t, "Stop sign", gotProps1["name"])
}

func TestEncodeLayerDedupsRepeatedValues(t *testing.T) {
	layer := &Layer{
		Name: "places",
		Features: []*Feature{
			NewFeature(1, orb.Point{0, 0}, map[string]interface{}{"kind": "city"}),
			NewFeature(2, orb.Point{1, 1}, map[string]interface{}{"kind": "city"}),
			NewFeature(3, orb.Point{2, 2}, map[string]interface{}{"kind": "town"}),
		},
	}

	data, err := EncodeLayer(layer)
	require.NoError(t, err)

	decoded, err := decodeLayerBytes(data, nil)
	require.NoError(t, err)
	require.Len(t, decoded.Features, 3)

	for i, want := range []string{"city", "city", "town"} {
		props, err := decoded.Features[i].Properties()
		require.NoError(t, err)
		assert.Equal(t, want, props["kind"])
	}
}

func TestFeatureDecodeIsLazyAndMemoized(t *testing.T) {
	layer := &Layer{
		Name: "lazy",
		Features: []*Feature{
			NewFeature(1, orb.Point{3, 4}, map[string]interface{}{"k": "v"}),
		},
	}
	data, err := EncodeLayer(layer)
	require.NoError(t, err)

	decoded, err := decodeLayerBytes(data, nil)
	require.NoError(t, err)
	require.Len(t, decoded.Features, 1)

	f := decoded.Features[0]
	assert.NotNil(t, f.raw, "feature should carry undecoded raw state before first access")

	geom, err := f.Geometry()
	require.NoError(t, err)
	assert.Equal(t, orb.Point{3, 4}, geom)
	assert.Nil(t, f.raw, "raw state should be released once decoded")

	props, err := f.Properties()
	require.NoError(t, err)
	assert.Equal(t, "v", props["k"])
}
