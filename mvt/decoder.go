package mvt

import "fmt"

// Decoder parses an MVT tile payload's layers without eagerly
// materializing every feature. Listing layers only walks each Layer
// message's header fields (name, version, extent); the feature list
// itself is built when LayerInfo.Decode is called, and even then each
// feature's geometry and properties stay undecoded until that feature is
// asked for them.
type Decoder struct {
	data      []byte
	transform GeometryTransform
}

// DecoderOption configures a Decoder at construction.
type DecoderOption func(*Decoder)

// WithGeometryTransform makes every feature this Decoder produces run fn
// over its geometry the first time that feature's Geometry is accessed.
// A common use is reprojecting tile-pixel coordinates into lon/lat, or
// simplifying geometry before it reaches a caller.
func WithGeometryTransform(fn GeometryTransform) DecoderOption {
	return func(d *Decoder) { d.transform = fn }
}

// NewDecoder wraps a raw MVT tile protobuf payload for lazy decoding.
func NewDecoder(data []byte, opts ...DecoderOption) *Decoder {
	d := &Decoder{data: data}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// LayerInfo is one layer's header, with its feature bytes retained
// unparsed until Decode is called.
type LayerInfo struct {
	Name    string
	Version uint32
	Extent  uint32

	raw       []byte
	transform GeometryTransform
}

// Layers walks the tile's top-level fields and returns one LayerInfo per
// embedded Layer message, in wire order. It does not parse any feature.
func (d *Decoder) Layers() ([]LayerInfo, error) {
	var infos []LayerInfo
	err := parseFields(d.data, func(f pbField) error {
		if f.number != tileFieldLayers {
			return nil
		}
		info, err := decodeLayerHeader(f.payload)
		if err != nil {
			return fmt.Errorf("mvt: decoding layer header: %w", err)
		}
		info.transform = d.transform
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// Layer returns the first layer with the given name, decoding its
// features, or false if no such layer exists.
func (d *Decoder) Layer(name string) (*Layer, bool, error) {
	infos, err := d.Layers()
	if err != nil {
		return nil, false, err
	}
	for _, info := range infos {
		if info.Name == name {
			layer, err := info.Decode()
			if err != nil {
				return nil, false, err
			}
			return layer, true, nil
		}
	}
	return nil, false, nil
}

func decodeLayerHeader(data []byte) (LayerInfo, error) {
	info := LayerInfo{raw: data}
	err := parseFields(data, func(f pbField) error {
		switch f.number {
		case layerFieldName:
			info.Name = string(f.payload)
		case layerFieldVersion:
			info.Version = uint32(f.varint)
		case layerFieldExtent:
			info.Extent = uint32(f.varint)
		}
		return nil
	})
	return info, err
}

// Decode parses this layer's key/value tables and per-feature framing.
// Each returned feature's geometry and properties remain undecoded until
// that feature's Geometry or Properties method is called.
func (info LayerInfo) Decode() (*Layer, error) {
	return decodeLayerBytes(info.raw, info.transform)
}
