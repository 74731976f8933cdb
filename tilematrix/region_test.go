package tilematrix

import (
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBboxRegionBuildsOneRingPolygon(t *testing.T) {
	region, err := ParseBboxRegion("-1,-1,1,1")
	require.NoError(t, err)
	require.Len(t, region, 1)
	assert.Len(t, region[0], 1)
	assert.Len(t, region[0][0], 5)
}

func TestParseBboxRegionRejectsMalformedInput(t *testing.T) {
	_, err := ParseBboxRegion("-1,-1,1")
	assert.Error(t, err)
}

func TestParseGeoJSONRegionAcceptsBareGeometry(t *testing.T) {
	data := []byte(`{"type":"Polygon","coordinates":[[[-1,-1],[1,-1],[1,1],[-1,1],[-1,-1]]]}`)
	region, err := ParseGeoJSONRegion(data)
	require.NoError(t, err)
	require.Len(t, region, 1)
}

func TestCoverRegionReturnsNonEmptySet(t *testing.T) {
	region, err := ParseBboxRegion("-1,-1,1,1")
	require.NoError(t, err)
	set, err := CoverRegion(region, maptile.Zoom(4))
	require.NoError(t, err)
	assert.Greater(t, set.Len(), uint64(0))
}
