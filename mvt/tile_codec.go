package mvt

import "fmt"

const tileFieldLayers = 3

// EncodeTile serializes a set of layers into a complete MVT tile payload.
func EncodeTile(layers []*Layer) ([]byte, error) {
	var w pbWriter
	for _, layer := range layers {
		encoded, err := EncodeLayer(layer)
		if err != nil {
			return nil, fmt.Errorf("mvt: encoding layer %q: %w", layer.Name, err)
		}
		w.bytesField(tileFieldLayers, encoded)
	}
	return w.buf, nil
}

// DecodeTile eagerly parses every layer of an MVT tile payload. Callers
// that only need a subset of layers, or want to defer feature
// materialization, should use Decoder instead.
func DecodeTile(data []byte) ([]*Layer, error) {
	d := NewDecoder(data)
	infos, err := d.Layers()
	if err != nil {
		return nil, err
	}
	layers := make([]*Layer, 0, len(infos))
	for _, info := range infos {
		layer, err := info.Decode()
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}
	return layers, nil
}
