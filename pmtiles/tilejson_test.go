package pmtiles

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTileJSON(t *testing.T) {
	header := HeaderV3{
		TileType:    Mvt,
		MinZoom:     0,
		MaxZoom:     14,
		MinLonE7:    -1800000000 / 10,
		MinLatE7:    -850000000 / 10,
		MaxLonE7:    1800000000 / 10,
		MaxLatE7:    850000000 / 10,
		CenterZoom:  5,
		CenterLonE7: 0,
		CenterLatE7: 0,
	}
	metadata := map[string]interface{}{
		"name":          "Test Archive",
		"attribution":   "© Example",
		"vector_layers": []interface{}{map[string]interface{}{"id": "roads"}},
	}

	raw, err := CreateTileJSON(header, metadata, "https://example.com/tiles/test")
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "3.0.0", doc["tilejson"])
	assert.Equal(t, "Test Archive", doc["name"])
	assert.Equal(t, "© Example", doc["attribution"])
	assert.Contains(t, doc["tiles"].([]interface{})[0], "{z}/{x}/{y}")
	assert.NotNil(t, doc["vector_layers"])
}

func TestCreateTileJSONOmitsAbsentMetadataFields(t *testing.T) {
	header := HeaderV3{TileType: Png}
	raw, err := CreateTileJSON(header, map[string]interface{}{}, "https://example.com/tiles/x")
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	_, hasName := doc["name"]
	assert.False(t, hasName)
}
