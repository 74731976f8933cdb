package pmtiles

import "encoding/json"

// CreateTileJSON builds a TileJSON 3.0.0 document for an archive from
// its decoded header and metadata map, pointing clients at tileURL with
// the standard {z}/{x}/{y} template. Schema validation of the archive's
// opaque metadata blob is out of scope here; vector_layers, attribution
// and similar fields are passed through verbatim if present.
func CreateTileJSON(header HeaderV3, metadata map[string]interface{}, tileURL string) ([]byte, error) {
	const e7 = 10000000.0

	doc := map[string]interface{}{
		"tilejson": "3.0.0",
		"scheme":   "xyz",
		"tiles":    []string{tileURL + "/{z}/{x}/{y}" + headerExt(header)},
		"minzoom":  header.MinZoom,
		"maxzoom":  header.MaxZoom,
		"bounds": []float64{
			float64(header.MinLonE7) / e7,
			float64(header.MinLatE7) / e7,
			float64(header.MaxLonE7) / e7,
			float64(header.MaxLatE7) / e7,
		},
		"center": []interface{}{
			float64(header.CenterLonE7) / e7,
			float64(header.CenterLatE7) / e7,
			header.CenterZoom,
		},
	}

	for _, key := range []string{"vector_layers", "attribution", "description", "name", "version"} {
		if v, ok := metadata[key]; ok {
			doc[key] = v
		}
	}

	return json.Marshal(doc)
}
