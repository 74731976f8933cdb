package mvt

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodePointRoundTrip(t *testing.T) {
	geom := orb.Point{100, 200}
	commands, geomType, err := encodeGeometry(geom)
	require.NoError(t, err)
	assert.Equal(t, GeomTypePoint, geomType)

	decoded, err := decodeGeometry(geomType, commands)
	require.NoError(t, err)
	assert.Equal(t, geom, decoded)
}

func TestEncodeDecodeLineStringRoundTrip(t *testing.T) {
	geom := orb.LineString{{0, 0}, {10, 10}, {20, 0}}
	commands, geomType, err := encodeGeometry(geom)
	require.NoError(t, err)
	assert.Equal(t, GeomTypeLine, geomType)

	decoded, err := decodeGeometry(geomType, commands)
	require.NoError(t, err)
	assert.Equal(t, geom, decoded)
}

func TestEncodeDecodeMultiLineStringRoundTrip(t *testing.T) {
	geom := orb.MultiLineString{
		{{0, 0}, {1, 1}},
		{{5, 5}, {6, 7}, {8, 9}},
	}
	commands, geomType, err := encodeGeometry(geom)
	require.NoError(t, err)

	decoded, err := decodeGeometry(geomType, commands)
	require.NoError(t, err)
	assert.Equal(t, geom, decoded)
}

func TestEncodeDecodePolygonRoundTrip(t *testing.T) {
	geom := orb.Polygon{
		orb.Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}},
	}
	commands, geomType, err := encodeGeometry(geom)
	require.NoError(t, err)
	assert.Equal(t, GeomTypePolygon, geomType)

	decoded, err := decodeGeometry(geomType, commands)
	require.NoError(t, err)
	assert.Equal(t, geom, decoded)
}

func TestEncodeDecodePolygonWithHoleRoundTrip(t *testing.T) {
	geom := orb.Polygon{
		orb.Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}},
		orb.Ring{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}},
	}
	commands, geomType, err := encodeGeometry(geom)
	require.NoError(t, err)

	decoded, err := decodeGeometry(geomType, commands)
	require.NoError(t, err)
	assert.Equal(t, geom, decoded)
}

func TestEncodeDecodeMultiPolygonRoundTrip(t *testing.T) {
	geom := orb.MultiPolygon{
		{orb.Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}}},
		{orb.Ring{{20, 20}, {20, 30}, {30, 30}, {30, 20}, {20, 20}}},
	}
	commands, geomType, err := encodeGeometry(geom)
	require.NoError(t, err)

	decoded, err := decodeGeometry(geomType, commands)
	require.NoError(t, err)
	assert.Equal(t, geom, decoded)
}

func TestRingIsExteriorDetectsWindingDirection(t *testing.T) {
	clockwise := orb.Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}}
	counterClockwise := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}

	assert.True(t, ringIsExterior(clockwise))
	assert.False(t, ringIsExterior(counterClockwise))
}

func TestZigzagEncodeDecodeRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 1000, -1000, 2147483647, -2147483648} {
		encoded := zigzagEncode(v)
		assert.Equal(t, v, zigzagDecode(encoded))
	}
}
